package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutoring-adm-api/internal/models"
	"github.com/noah-isme/tutoring-adm-api/internal/service"
	appErrors "github.com/noah-isme/tutoring-adm-api/pkg/errors"
	"github.com/noah-isme/tutoring-adm-api/pkg/response"
)

// ExportHandler streams rendered attendance and payment reports.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Attendance godoc
// @Summary Export attendance report
// @Tags Exports
// @Produce octet-stream
// @Param from query string true "Start date YYYY-MM-DD"
// @Param to query string true "End date YYYY-MM-DD"
// @Param classGroupId query string false "Filter by class group"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /exports/attendance [get]
func (h *ExportHandler) Attendance(c *gin.Context) {
	from, err := parseDate(c.Query("from"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD"))
		return
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD"))
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))

	result, err := h.exports.Attendance(c.Request.Context(), c.Query("classGroupId"), from, to, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeExport(c, result)
}

// Payments godoc
// @Summary Export payments report
// @Tags Exports
// @Produce octet-stream
// @Param from query string true "Start date YYYY-MM-DD"
// @Param to query string true "End date YYYY-MM-DD"
// @Param status query string false "Payment status"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /exports/payments [get]
func (h *ExportHandler) Payments(c *gin.Context) {
	from, err := parseDate(c.Query("from"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD"))
		return
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD"))
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	status := models.PaymentStatus(c.Query("status"))

	result, err := h.exports.Payments(c.Request.Context(), status, from, to, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeExport(c, result)
}

func writeExport(c *gin.Context, result *service.ExportResult) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}
