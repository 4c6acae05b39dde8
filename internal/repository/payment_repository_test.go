package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutoring-adm-api/internal/models"
)

func newPaymentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPaymentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	payment := &models.Payment{StudentID: "s1", CycleID: "c1", Amount: 220000}
	err := repo.Create(context.Background(), payment)
	require.NoError(t, err)
	assert.NotEmpty(t, payment.ID)
	assert.Equal(t, models.PaymentPending, payment.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryFindByCycle(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "cycle_id", "amount", "payment_method", "status", "message_sent", "message_sent_at", "paid_at", "memo", "created_at"}).
		AddRow("pay-1", "s1", "c1", 220000, nil, "pending", false, nil, nil, nil, time.Now())
	mock.ExpectQuery(`SELECT id, student_id, cycle_id, amount, payment_method, status, message_sent, message_sent_at, paid_at, memo, created_at FROM payments WHERE student_id = \$1 AND cycle_id = \$2`).
		WithArgs("s1", "c1").
		WillReturnRows(rows)

	payment, err := repo.FindByCycle(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "pay-1", payment.ID)
	assert.Equal(t, 220000, payment.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryMarkPaid(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	paidAt := time.Now().UTC()
	mock.ExpectExec(`UPDATE payments SET status = \$2, payment_method = \$3, paid_at = \$4, memo = \$5 WHERE id = \$1`).
		WithArgs("pay-1", models.PaymentPaid, models.PaymentTransfer, paidAt, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkPaid(context.Background(), "pay-1", models.PaymentTransfer, paidAt, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryListFiltersByStatus(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "cycle_id", "amount", "payment_method", "status", "message_sent", "message_sent_at", "paid_at", "memo", "created_at", "student_name", "class_group_name", "cycle_number"}).
		AddRow("pay-1", "s1", "c1", 220000, nil, "pending", false, nil, nil, nil, time.Now(), "김민준", "월수 6시", 2)
	mock.ExpectQuery(`ORDER BY p.created_at DESC LIMIT 50 OFFSET 0`).
		WithArgs(models.PaymentPending).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(models.PaymentPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	payments, total, err := repo.List(context.Background(), models.PaymentFilter{Status: models.PaymentPending})
	require.NoError(t, err)
	assert.Len(t, payments, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "김민준", payments[0].StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryPendingSummary(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\), COALESCE\(SUM\(amount\), 0\) FROM payments WHERE status = \$1`).
		WithArgs(models.PaymentPending).
		WillReturnRows(sqlmock.NewRows([]string{"count", "coalesce"}).AddRow(3, 660000))

	count, amount, err := repo.PendingSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 660000, amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
