package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"consult-queue-backend/internal/queue"
	"consult-queue-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	engine  *queue.Engine
	store   store.Store
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(engine *queue.Engine, s store.Store, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		engine:  engine,
		store:   s,
		webpush: webpushOptions,
	}
}

// respondError maps engine outcomes to HTTP responses. Business
// conditions keep their specific reason; unexpected failures collapse to
// a 500 without leaking internals.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, queue.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
	case errors.Is(err, queue.ErrQueueClosed):
		c.JSON(http.StatusConflict, gin.H{"error": queue.ErrQueueClosed.Error()})
	case errors.Is(err, queue.ErrQueueFull):
		c.JSON(http.StatusConflict, gin.H{"error": queue.ErrQueueFull.Error()})
	case queue.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
