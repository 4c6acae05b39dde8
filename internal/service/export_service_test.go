package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-adm-api/internal/models"
	appErrors "github.com/noah-isme/tutoring-adm-api/pkg/errors"
)

type mockAttendanceRange struct {
	rows []models.AttendanceDetail
	from time.Time
	to   time.Time
}

func (m *mockAttendanceRange) ListRange(ctx context.Context, classGroupID string, from, to time.Time) ([]models.AttendanceDetail, error) {
	m.from = from
	m.to = to
	return m.rows, nil
}

type mockPaymentRange struct {
	rows   []models.PaymentDetail
	status models.PaymentStatus
	from   time.Time
	to     time.Time
}

func (m *mockPaymentRange) ListRange(ctx context.Context, status models.PaymentStatus, from, to time.Time) ([]models.PaymentDetail, error) {
	m.status = status
	m.from = from
	m.to = to
	return m.rows, nil
}

func TestExportServiceAttendanceCSV(t *testing.T) {
	attendance := &mockAttendanceRange{rows: []models.AttendanceDetail{
		{
			Attendance: models.Attendance{
				ID: "a1", StudentID: "s1", CycleID: "c1",
				Date: day(2026, 3, 2), Status: models.AttendancePresent, CountsTowardCycle: true,
			},
			StudentName:  "김민준",
			CurrentCount: 5,
			TotalCount:   8,
		},
	}}
	svc := NewExportService(attendance, &mockPaymentRange{}, nil, nil, zap.NewNop())

	result, err := svc.Attendance(context.Background(), "", day(2026, 3, 1), day(2026, 3, 31), ExportFormatCSV)
	require.NoError(t, err)

	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasPrefix(result.Filename, "attendance_"))
	assert.True(t, strings.HasSuffix(result.Filename, ".csv"))

	body := string(result.Payload)
	assert.Contains(t, body, "Date,Student,Status,Counts,Excuse,Cycle")
	assert.Contains(t, body, "2026-03-02,김민준,present,true,,5/8")
}

func TestExportServicePaymentsRangeIsInclusive(t *testing.T) {
	payments := &mockPaymentRange{}
	svc := NewExportService(&mockAttendanceRange{}, payments, nil, nil, zap.NewNop())

	_, err := svc.Payments(context.Background(), models.PaymentPending, day(2026, 3, 1), day(2026, 3, 31), ExportFormatCSV)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentPending, payments.status)
	assert.Equal(t, day(2026, 3, 1), payments.from)
	// Payments carry timestamps, so the end of the range moves past the last day.
	assert.Equal(t, day(2026, 4, 1), payments.to)
}

func TestExportServicePaymentsCSV(t *testing.T) {
	method := models.PaymentTransfer
	paidAt := day(2026, 3, 10)
	payments := &mockPaymentRange{rows: []models.PaymentDetail{
		{
			Payment: models.Payment{
				ID: "pay-1", StudentID: "s1", CycleID: "c1", Amount: 220000,
				Status: models.PaymentPaid, PaymentMethod: &method, PaidAt: &paidAt,
			},
			StudentName: "김민준",
			CycleNumber: 2,
		},
	}}
	svc := NewExportService(&mockAttendanceRange{}, payments, nil, nil, zap.NewNop())

	result, err := svc.Payments(context.Background(), "", day(2026, 3, 1), day(2026, 3, 31), ExportFormatCSV)
	require.NoError(t, err)
	body := string(result.Payload)
	assert.Contains(t, body, "김민준,2,\"220,000\",paid,transfer,2026-03-10")
}

func TestExportServicePDF(t *testing.T) {
	svc := NewExportService(&mockAttendanceRange{}, &mockPaymentRange{}, nil, nil, zap.NewNop())

	result, err := svc.Attendance(context.Background(), "", day(2026, 3, 1), day(2026, 3, 31), ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.NotEmpty(t, result.Payload)
}

func TestExportServiceUnknownFormat(t *testing.T) {
	svc := NewExportService(&mockAttendanceRange{}, &mockPaymentRange{}, nil, nil, zap.NewNop())

	_, err := svc.Attendance(context.Background(), "", day(2026, 3, 1), day(2026, 3, 31), "xlsx")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
