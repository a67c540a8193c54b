package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"consult-queue-backend/internal/queue"
	"consult-queue-backend/internal/store"
)

func entryID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry id"})
		return 0, false
	}
	return uint(id), true
}

// ListEntries handles GET /api/admin/entries.
func (h *Handler) ListEntries(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	entries, pagination, err := h.engine.List(c.Request.Context(), store.ListFilter{
		Status:   c.Query("status"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": entries, "pagination": pagination})
}

// GetEntry handles GET /api/admin/entries/:id.
func (h *Handler) GetEntry(c *gin.Context) {
	id, ok := entryID(c)
	if !ok {
		return
	}
	entry, err := h.engine.Entry(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// CallNext handles POST /api/admin/call-next. An empty queue is a normal
// business outcome, reported as such rather than as an error status.
func (h *Handler) CallNext(c *gin.Context) {
	result, err := h.engine.CallNext(c.Request.Context())
	if errors.Is(err, queue.ErrQueueEmpty) {
		c.JSON(http.StatusOK, gin.H{"queueEmpty": true, "message": "queue is empty"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetStatus handles PATCH /api/admin/entries/:id/status.
func (h *Handler) SetStatus(c *gin.Context) {
	id, ok := entryID(c)
	if !ok {
		return
	}
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.engine.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

type moveEntryRequest struct {
	Position int `json:"position" binding:"required,min=1"`
}

// MoveEntry handles PATCH /api/admin/entries/:id/position.
func (h *Handler) MoveEntry(c *gin.Context) {
	id, ok := entryID(c)
	if !ok {
		return
	}
	var req moveEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entries, err := h.engine.MoveEntry(c.Request.Context(), id, req.Position)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": entries})
}

type applyOrderRequest struct {
	IDs []uint `json:"ids" binding:"required"`
}

// ApplyOrder handles PUT /api/admin/order.
func (h *Handler) ApplyOrder(c *gin.Context) {
	var req applyOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entries, err := h.engine.ApplyOrder(c.Request.Context(), req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": entries})
}

// Renumber handles POST /api/admin/renumber, the maintenance repair pass.
func (h *Handler) Renumber(c *gin.Context) {
	entries, err := h.engine.Renumber(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": entries})
}

// UpdateEntry handles PATCH /api/admin/entries/:id, replacing registrant
// data while leaving number, status and position untouched.
func (h *Handler) UpdateEntry(c *gin.Context) {
	id, ok := entryID(c)
	if !ok {
		return
	}
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.engine.UpdateEntry(c.Request.Context(), id, req.draft())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// DeleteEntry handles DELETE /api/admin/entries/:id.
func (h *Handler) DeleteEntry(c *gin.Context) {
	id, ok := entryID(c)
	if !ok {
		return
	}
	if err := h.engine.DeleteEntry(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearAll handles DELETE /api/admin/entries: the administrative purge.
func (h *Handler) ClearAll(c *gin.Context) {
	if err := h.engine.ClearAll(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetDuplicates handles GET /api/admin/duplicates.
func (h *Handler) GetDuplicates(c *gin.Context) {
	numbers, err := h.engine.Duplicates(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"duplicateNumbers": numbers})
}

// GetSettings handles GET /api/admin/settings.
func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.engine.QueueSettings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// UpdateSettings handles PUT /api/admin/settings.
func (h *Handler) UpdateSettings(c *gin.Context) {
	var patch queue.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := h.engine.UpdateSettings(c.Request.Context(), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
