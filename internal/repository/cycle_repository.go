package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutoring-adm-api/internal/models"
)

// CycleRepository handles persistence of prepaid cycles.
type CycleRepository struct {
	db *sqlx.DB
}

// NewCycleRepository constructs the repository.
func NewCycleRepository(db *sqlx.DB) *CycleRepository {
	return &CycleRepository{db: db}
}

const cycleColumns = `id, student_id, cycle_number, current_count, total_count, status, started_at, completed_at, created_at`

// FindByID returns a cycle by its ID.
func (r *CycleRepository) FindByID(ctx context.Context, id string) (*models.Cycle, error) {
	query := fmt.Sprintf(`SELECT %s FROM cycles WHERE id = $1`, cycleColumns)
	var cycle models.Cycle
	if err := r.db.GetContext(ctx, &cycle, query, id); err != nil {
		return nil, err
	}
	return &cycle, nil
}

// FindInProgressByStudent returns the student's open cycle, or sql.ErrNoRows.
func (r *CycleRepository) FindInProgressByStudent(ctx context.Context, studentID string) (*models.Cycle, error) {
	query := fmt.Sprintf(`SELECT %s FROM cycles WHERE student_id = $1 AND status = $2`, cycleColumns)
	var cycle models.Cycle
	if err := r.db.GetContext(ctx, &cycle, query, studentID, models.CycleInProgress); err != nil {
		return nil, err
	}
	return &cycle, nil
}

// FindLatestByStudent returns the student's highest-numbered cycle, or
// sql.ErrNoRows when the student has none yet.
func (r *CycleRepository) FindLatestByStudent(ctx context.Context, studentID string) (*models.Cycle, error) {
	query := fmt.Sprintf(`SELECT %s FROM cycles WHERE student_id = $1 ORDER BY cycle_number DESC LIMIT 1`, cycleColumns)
	var cycle models.Cycle
	if err := r.db.GetContext(ctx, &cycle, query, studentID); err != nil {
		return nil, err
	}
	return &cycle, nil
}

// CreateWithSchedule persists the cycle and its pre-scheduled attendance
// rows in one transaction; the prepaid model commits all capacity up front.
// The unique partial index on (student_id) WHERE status = 'in_progress'
// backs the at-most-one-open-cycle invariant against concurrent writers.
func (r *CycleRepository) CreateWithSchedule(ctx context.Context, cycle *models.Cycle, rows []models.Attendance) error {
	now := time.Now().UTC()
	if cycle.ID == "" {
		cycle.ID = uuid.NewString()
	}
	cycle.CreatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create cycle: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	const insertCycle = `INSERT INTO cycles (id, student_id, cycle_number, current_count, total_count, status, started_at, completed_at, created_at)
        VALUES (:id, :student_id, :cycle_number, :current_count, :total_count, :status, :started_at, :completed_at, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertCycle, cycle); err != nil {
		return fmt.Errorf("create cycle: %w", err)
	}

	const insertAttendance = `INSERT INTO attendance (id, student_id, cycle_id, date, status, counts_toward_cycle, excuse_reason, memo, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NULL, NULL, $7, $7)`
	for i := range rows {
		row := &rows[i]
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		row.CycleID = cycle.ID
		row.CreatedAt = now
		row.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, insertAttendance, row.ID, row.StudentID, row.CycleID, row.Date, row.Status, row.CountsTowardCycle, now); err != nil {
			return fmt.Errorf("create scheduled attendance: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create cycle: %w", err)
	}
	committed = true
	return nil
}

// CountCountable returns the number of the cycle's attendance rows that
// consume cycle capacity.
func (r *CycleRepository) CountCountable(ctx context.Context, cycleID string) (int, error) {
	const query = `SELECT COUNT(*) FROM attendance WHERE cycle_id = $1 AND counts_toward_cycle = true`
	var count int
	if err := r.db.GetContext(ctx, &count, query, cycleID); err != nil {
		return 0, fmt.Errorf("count countable attendance: %w", err)
	}
	return count, nil
}

// UpdateCount stores a recomputed current_count without touching status.
func (r *CycleRepository) UpdateCount(ctx context.Context, cycleID string, count int) error {
	const query = `UPDATE cycles SET current_count = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, cycleID, count); err != nil {
		return fmt.Errorf("update cycle count: %w", err)
	}
	return nil
}

// MarkCompleted transitions the cycle to completed at the given date.
func (r *CycleRepository) MarkCompleted(ctx context.Context, cycleID string, completedAt time.Time) error {
	const query = `UPDATE cycles SET status = $2, completed_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, cycleID, models.CycleCompleted, completedAt); err != nil {
		return fmt.Errorf("mark cycle completed: %w", err)
	}
	return nil
}

// ListAlerts returns cycles of active students at or past the alert
// threshold, highest count first.
func (r *CycleRepository) ListAlerts(ctx context.Context, minCount int) ([]models.CycleAlert, error) {
	const query = `SELECT c.student_id, s.name AS student_name, g.name AS class_group_name,
        c.id AS cycle_id, c.cycle_number, c.current_count, c.total_count, c.status
        FROM cycles c
        JOIN students s ON s.id = c.student_id
        LEFT JOIN class_groups g ON g.id = s.class_group_id
        WHERE c.current_count >= $1 AND s.enrollment_status = $2
        ORDER BY c.current_count DESC`
	var alerts []models.CycleAlert
	if err := r.db.SelectContext(ctx, &alerts, query, minCount, models.StatusActive); err != nil {
		return nil, fmt.Errorf("list cycle alerts: %w", err)
	}
	return alerts, nil
}

// HasUnpaid reports whether the cycle has a payment that is not yet paid,
// and whether any payment exists at all.
func (r *CycleRepository) HasUnpaid(ctx context.Context, cycleID string) (exists bool, unpaid bool, err error) {
	const query = `SELECT status FROM payments WHERE cycle_id = $1 LIMIT 1`
	var status models.PaymentStatus
	if err := r.db.GetContext(ctx, &status, query, cycleID); err != nil {
		if err == sql.ErrNoRows {
			return false, false, nil
		}
		return false, false, fmt.Errorf("check cycle payment: %w", err)
	}
	return true, status != models.PaymentPaid, nil
}
