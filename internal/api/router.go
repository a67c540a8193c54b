package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"consult-queue-backend/config"
	"consult-queue-backend/internal/mw"
	"consult-queue-backend/internal/queue"
	"consult-queue-backend/internal/realtime"
	"consult-queue-backend/internal/store"
)

// NewRouter creates and configures the Gin router.
func NewRouter(engine *queue.Engine, s store.Store, hub *realtime.Hub, webpushOptions *webpush.Options, cfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()
	handler := NewHandler(engine, s, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/register", handler.Register)
		api.GET("/status", caching, handler.GetStatus)
		api.GET("/entries/:number", handler.GetEntryStatus)
		api.GET("/search", handler.Search)

		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		api.GET("/ws", realtime.ServeWS(hub))
	}

	// Authorization happens upstream; the engine assumes callers of these
	// routes are already vetted.
	admin := r.Group("/api/admin")
	{
		admin.GET("/entries", handler.ListEntries)
		admin.GET("/entries/:id", handler.GetEntry)
		admin.POST("/call-next", handler.CallNext)
		admin.PATCH("/entries/:id/status", handler.SetStatus)
		admin.PATCH("/entries/:id/position", handler.MoveEntry)
		admin.PATCH("/entries/:id", handler.UpdateEntry)
		admin.PUT("/order", handler.ApplyOrder)
		admin.POST("/renumber", handler.Renumber)
		admin.DELETE("/entries/:id", handler.DeleteEntry)
		admin.DELETE("/entries", handler.ClearAll)
		admin.GET("/duplicates", handler.GetDuplicates)
		admin.GET("/settings", handler.GetSettings)
		admin.PUT("/settings", handler.UpdateSettings)
	}

	return r
}
