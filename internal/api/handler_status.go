package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetStatus handles GET /api/status.
func (h *Handler) GetStatus(c *gin.Context) {
	status, err := h.engine.Status(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetEntryStatus handles GET /api/entries/:number. A number normally maps
// to one entry; if the integrity detector would flag duplicates, every
// holder is returned.
func (h *Handler) GetEntryStatus(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid queue number"})
		return
	}

	views, err := h.engine.EntryStatus(c.Request.Context(), number)
	if err != nil {
		respondError(c, err)
		return
	}
	if len(views) == 1 {
		c.JSON(http.StatusOK, views[0])
		return
	}
	c.JSON(http.StatusOK, views)
}

// Search handles GET /api/search?name=&phone=.
func (h *Handler) Search(c *gin.Context) {
	views, err := h.engine.Search(c.Request.Context(), c.Query("name"), c.Query("phone"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": views})
}
