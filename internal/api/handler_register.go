package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"consult-queue-backend/internal/model"
	"consult-queue-backend/internal/queue"
)

type addressRequest struct {
	Category string `json:"category" binding:"required"`
	Line     string `json:"line" binding:"required"`
}

type dependentRequest struct {
	Name      string           `json:"name" binding:"required"`
	Gender    string           `json:"gender"`
	Relation  string           `json:"relation"`
	Birth     model.BirthDate  `json:"birth"`
	Addresses []addressRequest `json:"addresses" binding:"max=3,dive"`
}

type registerRequest struct {
	Name       string             `json:"name" binding:"required"`
	Phone      string             `json:"phone" binding:"required"`
	Email      string             `json:"email" binding:"omitempty,email"`
	Gender     string             `json:"gender"`
	Birth      model.BirthDate    `json:"birth"`
	Addresses  []addressRequest   `json:"addresses" binding:"required,min=1,max=3,dive"`
	Dependents []dependentRequest `json:"dependents" binding:"max=5,dive"`
	Topics     []string           `json:"topics"`
	Remarks    string             `json:"remarks"`
}

func toAddresses(reqs []addressRequest) []model.Address {
	addresses := make([]model.Address, len(reqs))
	for i, r := range reqs {
		addresses[i] = model.Address{Category: r.Category, Line: r.Line}
	}
	return addresses
}

func (r *registerRequest) draft() queue.Draft {
	dependents := make([]model.Dependent, len(r.Dependents))
	for i, d := range r.Dependents {
		dependents[i] = model.Dependent{
			Name:      d.Name,
			Gender:    d.Gender,
			Relation:  d.Relation,
			Birth:     d.Birth,
			Addresses: toAddresses(d.Addresses),
		}
	}
	return queue.Draft{
		Name:       r.Name,
		Phone:      r.Phone,
		Email:      r.Email,
		Gender:     r.Gender,
		Birth:      r.Birth,
		Addresses:  toAddresses(r.Addresses),
		Dependents: dependents,
		Topics:     r.Topics,
		Remarks:    r.Remarks,
	}
}

// Register handles POST /api/register.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.engine.Register(c.Request.Context(), req.draft())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"number":               result.Number,
		"position":             result.Position,
		"estimatedWaitMinutes": result.EstimatedWaitMinutes,
	})
}
