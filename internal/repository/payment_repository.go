package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutoring-adm-api/internal/models"
)

// PaymentRepository handles persistence of tuition invoices.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, student_id, cycle_id, amount, payment_method, status, message_sent, message_sent_at, paid_at, memo, created_at`

// FindByID returns a payment by its ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindDetailByID returns a payment with student and cycle context.
func (r *PaymentRepository) FindDetailByID(ctx context.Context, id string) (*models.PaymentDetail, error) {
	const query = `SELECT p.id, p.student_id, p.cycle_id, p.amount, p.payment_method, p.status,
        p.message_sent, p.message_sent_at, p.paid_at, p.memo, p.created_at,
        s.name AS student_name, g.name AS class_group_name, c.cycle_number
        FROM payments p
        JOIN students s ON s.id = p.student_id
        JOIN cycles c ON c.id = p.cycle_id
        LEFT JOIN class_groups g ON g.id = s.class_group_id
        WHERE p.id = $1`
	var detail models.PaymentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByCycle returns the payment for a (student, cycle) pair, or
// sql.ErrNoRows; at most one exists.
func (r *PaymentRepository) FindByCycle(ctx context.Context, studentID, cycleID string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE student_id = $1 AND cycle_id = $2`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, studentID, cycleID); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Create persists a new pending payment. ON CONFLICT DO NOTHING backs the
// one-payment-per-cycle idempotence against concurrent completion calls.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.Status == "" {
		payment.Status = models.PaymentPending
	}
	payment.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO payments (id, student_id, cycle_id, amount, payment_method, status, message_sent, message_sent_at, paid_at, memo, created_at)
        VALUES (:id, :student_id, :cycle_id, :amount, :payment_method, :status, :message_sent, :message_sent_at, :paid_at, :memo, :created_at)
        ON CONFLICT (student_id, cycle_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// MarkPaid confirms the payment with its settlement details.
func (r *PaymentRepository) MarkPaid(ctx context.Context, id string, method models.PaymentMethod, paidAt time.Time, memo *string) error {
	const query = `UPDATE payments SET status = $2, payment_method = $3, paid_at = $4, memo = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.PaymentPaid, method, paidAt, memo); err != nil {
		return fmt.Errorf("mark payment paid: %w", err)
	}
	return nil
}

// MarkMessageSent flags that the reminder message was produced.
func (r *PaymentRepository) MarkMessageSent(ctx context.Context, id string, sentAt time.Time) error {
	const query = `UPDATE payments SET message_sent = true, message_sent_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, sentAt); err != nil {
		return fmt.Errorf("mark message sent: %w", err)
	}
	return nil
}

// List returns payments with student/cycle context, newest first.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	base := `FROM payments p
        JOIN students s ON s.id = p.student_id
        JOIN cycles c ON c.id = p.cycle_id
        LEFT JOIN class_groups g ON g.id = s.class_group_id`
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("p.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT p.id, p.student_id, p.cycle_id, p.amount, p.payment_method, p.status,
        p.message_sent, p.message_sent_at, p.paid_at, p.memo, p.created_at,
        s.name AS student_name, g.name AS class_group_name, c.cycle_number
        %s ORDER BY p.created_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// ListRange returns payments created inside the date range for export.
func (r *PaymentRepository) ListRange(ctx context.Context, status models.PaymentStatus, from, to time.Time) ([]models.PaymentDetail, error) {
	query := `SELECT p.id, p.student_id, p.cycle_id, p.amount, p.payment_method, p.status,
        p.message_sent, p.message_sent_at, p.paid_at, p.memo, p.created_at,
        s.name AS student_name, g.name AS class_group_name, c.cycle_number
        FROM payments p
        JOIN students s ON s.id = p.student_id
        JOIN cycles c ON c.id = p.cycle_id
        LEFT JOIN class_groups g ON g.id = s.class_group_id
        WHERE p.created_at >= $1 AND p.created_at <= $2`
	args := []interface{}{from, to}
	if status != "" {
		query += ` AND p.status = $3`
		args = append(args, status)
	}
	query += ` ORDER BY p.created_at`
	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, fmt.Errorf("list payments range: %w", err)
	}
	return payments, nil
}

// PendingSummary aggregates outstanding invoices for the dashboard.
func (r *PaymentRepository) PendingSummary(ctx context.Context) (count int, amount int, err error) {
	const query = `SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM payments WHERE status = $1`
	row := r.db.QueryRowxContext(ctx, query, models.PaymentPending)
	if err := row.Scan(&count, &amount); err != nil {
		return 0, 0, fmt.Errorf("pending payment summary: %w", err)
	}
	return count, amount, nil
}
