package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutoring-adm-api/internal/service"
	appErrors "github.com/noah-isme/tutoring-adm-api/pkg/errors"
	"github.com/noah-isme/tutoring-adm-api/pkg/response"
)

// CycleHandler exposes prepaid cycle endpoints.
type CycleHandler struct {
	cycles *service.CycleService
}

// NewCycleHandler constructs CycleHandler.
func NewCycleHandler(cycles *service.CycleService) *CycleHandler {
	return &CycleHandler{cycles: cycles}
}

// Get godoc
// @Summary Get cycle
// @Tags Cycles
// @Produce json
// @Param id path string true "Cycle ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cycles/{id} [get]
func (h *CycleHandler) Get(c *gin.Context) {
	cycle, err := h.cycles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cycle, nil)
}

// Current godoc
// @Summary Get a student's open cycle
// @Tags Cycles
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students/{id}/cycles/current [get]
func (h *CycleHandler) Current(c *gin.Context) {
	cycle, err := h.cycles.Current(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cycle, nil)
}

// Start godoc
// @Summary Start a new cycle for a student
// @Tags Cycles
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /students/{id}/cycles [post]
func (h *CycleHandler) Start(c *gin.Context) {
	var payload struct {
		StartDate *string `json:"start_date,omitempty"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil && err.Error() != "EOF" {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	startDate := time.Now().UTC()
	if payload.StartDate != nil {
		parsed, err := parseDate(*payload.StartDate)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "start_date must be YYYY-MM-DD"))
			return
		}
		startDate = parsed
	}
	cycle, err := h.cycles.Start(c.Request.Context(), c.Param("id"), startDate)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cycle)
}

// Complete godoc
// @Summary Complete a cycle and create its invoice
// @Tags Cycles
// @Produce json
// @Param id path string true "Cycle ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /cycles/{id}/complete [post]
func (h *CycleHandler) Complete(c *gin.Context) {
	cycle, payment, err := h.cycles.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"cycle": cycle, "payment": payment}, nil)
}

// Recount godoc
// @Summary Recompute a cycle's session count
// @Tags Cycles
// @Produce json
// @Param id path string true "Cycle ID"
// @Success 200 {object} response.Envelope
// @Router /cycles/{id}/recount [post]
func (h *CycleHandler) Recount(c *gin.Context) {
	cycle, err := h.cycles.Recount(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cycle, nil)
}
