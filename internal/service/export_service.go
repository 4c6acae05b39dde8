package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-adm-api/internal/models"
	appErrors "github.com/noah-isme/tutoring-adm-api/pkg/errors"
	"github.com/noah-isme/tutoring-adm-api/pkg/export"
)

// ExportFormat selects the rendered file type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type attendanceRangeLister interface {
	ListRange(ctx context.Context, classGroupID string, from, to time.Time) ([]models.AttendanceDetail, error)
}

type paymentRangeLister interface {
	ListRange(ctx context.Context, status models.PaymentStatus, from, to time.Time) ([]models.PaymentDetail, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult is a rendered report ready to stream to the client.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders attendance and payment reports as CSV or PDF.
type ExportService struct {
	attendance attendanceRangeLister
	payments   paymentRangeLister
	csv        csvRenderer
	pdf        pdfRenderer
	logger     *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(attendance attendanceRangeLister, payments paymentRangeLister, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{attendance: attendance, payments: payments, csv: csv, pdf: pdf, logger: logger}
}

// Attendance renders attendance rows for a date range.
func (s *ExportService) Attendance(ctx context.Context, classGroupID string, from, to time.Time, format ExportFormat) (*ExportResult, error) {
	rows, err := s.attendance.ListRange(ctx, classGroupID, Midnight(from), Midnight(to))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance rows")
	}

	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		reason := ""
		if row.ExcuseReason != nil {
			reason = string(*row.ExcuseReason)
		}
		dataRows = append(dataRows, map[string]string{
			"Date":    row.Date.Format("2006-01-02"),
			"Student": row.StudentName,
			"Status":  string(row.Status),
			"Counts":  strconv.FormatBool(row.CountsTowardCycle),
			"Excuse":  reason,
			"Cycle":   fmt.Sprintf("%d/%d", row.CurrentCount, row.TotalCount),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Date", "Student", "Status", "Counts", "Excuse", "Cycle"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Attendance %s ~ %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	return s.render(dataset, title, "attendance", format)
}

// Payments renders payments for a date range, optionally filtered by status.
func (s *ExportService) Payments(ctx context.Context, status models.PaymentStatus, from, to time.Time, format ExportFormat) (*ExportResult, error) {
	rows, err := s.payments.ListRange(ctx, status, Midnight(from), Midnight(to).AddDate(0, 0, 1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}

	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		method := ""
		if row.PaymentMethod != nil {
			method = string(*row.PaymentMethod)
		}
		paidAt := ""
		if row.PaidAt != nil {
			paidAt = row.PaidAt.Format("2006-01-02")
		}
		dataRows = append(dataRows, map[string]string{
			"Student": row.StudentName,
			"Cycle":   strconv.Itoa(row.CycleNumber),
			"Amount":  formatWon(row.Amount),
			"Status":  string(row.Status),
			"Method":  method,
			"Paid At": paidAt,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Student", "Cycle", "Amount", "Status", "Method", "Paid At"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Payments %s ~ %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	return s.render(dataset, title, "payments", format)
}

func (s *ExportService) render(dataset export.Dataset, title, prefix string, format ExportFormat) (*ExportResult, error) {
	timestamp := time.Now().UTC().Format("20060102_150405")
	switch format {
	case ExportFormatCSV:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{
			Filename:    fmt.Sprintf("%s_%s.csv", prefix, timestamp),
			ContentType: "text/csv",
			Payload:     payload,
		}, nil
	case ExportFormatPDF:
		payload, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{
			Filename:    fmt.Sprintf("%s_%s.pdf", prefix, timestamp),
			ContentType: "application/pdf",
			Payload:     payload,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}
