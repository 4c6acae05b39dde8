package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-adm-api/internal/models"
	"github.com/noah-isme/tutoring-adm-api/pkg/config"
	appErrors "github.com/noah-isme/tutoring-adm-api/pkg/errors"
)

type paymentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	FindDetailByID(ctx context.Context, id string) (*models.PaymentDetail, error)
	FindByCycle(ctx context.Context, studentID, cycleID string) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	MarkPaid(ctx context.Context, id string, method models.PaymentMethod, paidAt time.Time, memo *string) error
	MarkMessageSent(ctx context.Context, id string, sentAt time.Time) error
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
}

// ConfirmPaymentRequest marks an invoice as settled.
type ConfirmPaymentRequest struct {
	PaymentMethod models.PaymentMethod `json:"payment_method" validate:"required"`
	PaidAt        *time.Time           `json:"paid_at,omitempty"`
	Memo          *string              `json:"memo,omitempty"`
}

// ReminderMessage is the rendered tuition reminder for one invoice.
type ReminderMessage struct {
	PaymentID string `json:"payment_id"`
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

// PaymentService manages tuition invoices created when a cycle completes.
type PaymentService struct {
	repo      paymentRepository
	billing   config.BillingConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(repo paymentRepository, billing config.BillingConfig, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{repo: repo, billing: billing, validator: validate, logger: logger}
}

// Ensure creates the pending invoice for a completed cycle if it does not
// exist yet. Calling it again for the same cycle returns the existing
// payment unchanged, including its amount.
func (s *PaymentService) Ensure(ctx context.Context, student *models.Student, cycle *models.Cycle) (*models.Payment, error) {
	existing, err := s.repo.FindByCycle(ctx, student.ID, cycle.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing payment")
	}

	amount := s.billing.TuitionFor(string(student.Grade))
	if student.TuitionOverride != nil {
		amount = *student.TuitionOverride
	}

	payment := &models.Payment{
		StudentID: student.ID,
		CycleID:   cycle.ID,
		Amount:    amount,
		Status:    models.PaymentPending,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment")
	}

	// Re-read in case a concurrent completion won the insert.
	created, err := s.repo.FindByCycle(ctx, student.ID, cycle.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load created payment")
	}

	s.logger.Info("payment created",
		zap.String("payment_id", created.ID),
		zap.String("student_id", student.ID),
		zap.String("cycle_id", cycle.ID),
		zap.Int("amount", created.Amount))
	return created, nil
}

// Get returns a payment with student and cycle context.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.PaymentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return detail, nil
}

// List returns payments with pagination metadata.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, *models.Pagination, error) {
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return payments, pagination, nil
}

// Confirm settles a pending invoice.
func (s *PaymentService) Confirm(ctx context.Context, id string, req ConfirmPaymentRequest) (*models.PaymentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if !req.PaymentMethod.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown payment method")
	}

	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if payment.Status == models.PaymentPaid {
		return nil, appErrors.ErrAlreadyPaid
	}

	paidAt := time.Now().UTC()
	if req.PaidAt != nil {
		paidAt = req.PaidAt.UTC()
	}
	if err := s.repo.MarkPaid(ctx, id, req.PaymentMethod, paidAt, req.Memo); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm payment")
	}

	s.logger.Info("payment confirmed",
		zap.String("payment_id", id),
		zap.String("method", string(req.PaymentMethod)))
	return s.Get(ctx, id)
}

// Message renders the tuition reminder for an invoice and marks it sent.
// The text is returned to the caller; delivery happens outside the system.
func (s *PaymentService) Message(ctx context.Context, id string) (*ReminderMessage, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	academy := s.billing.AcademyName
	if academy == "" {
		academy = "수학공부방"
	}
	text := fmt.Sprintf("[%s] %s 학생의 %d회차 수업이 완료되었습니다. 수업료 %s원을 납부해 주세요. 감사합니다.",
		academy, detail.StudentName, detail.CycleNumber, formatWon(detail.Amount))

	sentAt := time.Now().UTC()
	if err := s.repo.MarkMessageSent(ctx, id, sentAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark message sent")
	}

	return &ReminderMessage{
		PaymentID: detail.ID,
		Recipient: detail.StudentName,
		Message:   text,
	}, nil
}

// formatWon inserts thousands separators into a won amount.
func formatWon(amount int) string {
	digits := strconv.Itoa(amount)
	negative := false
	if len(digits) > 0 && digits[0] == '-' {
		negative = true
		digits = digits[1:]
	}
	out := make([]byte, 0, len(digits)+len(digits)/3)
	for i, d := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, d)
	}
	if negative {
		return "-" + string(out)
	}
	return string(out)
}
