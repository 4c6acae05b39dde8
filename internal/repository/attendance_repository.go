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

// AttendanceRepository handles persistence of attendance rows.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = `id, student_id, cycle_id, date, status, counts_toward_cycle, excuse_reason, memo, created_at, updated_at`

// FindByID returns an attendance row by its ID.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance WHERE id = $1`, attendanceColumns)
	var att models.Attendance
	if err := r.db.GetContext(ctx, &att, query, id); err != nil {
		return nil, err
	}
	return &att, nil
}

// FindDetailByID returns an attendance row with student and cycle progress.
func (r *AttendanceRepository) FindDetailByID(ctx context.Context, id string) (*models.AttendanceDetail, error) {
	const query = `SELECT a.id, a.student_id, a.cycle_id, a.date, a.status, a.counts_toward_cycle,
        a.excuse_reason, a.memo, a.created_at, a.updated_at,
        s.name AS student_name, c.current_count, c.total_count
        FROM attendance a
        JOIN students s ON s.id = a.student_id
        JOIN cycles c ON c.id = a.cycle_id
        WHERE a.id = $1`
	var detail models.AttendanceDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create persists a new attendance row.
func (r *AttendanceRepository) Create(ctx context.Context, att *models.Attendance) error {
	now := time.Now().UTC()
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	att.CreatedAt = now
	att.UpdatedAt = now
	const query = `INSERT INTO attendance (id, student_id, cycle_id, date, status, counts_toward_cycle, excuse_reason, memo, created_at, updated_at)
        VALUES (:id, :student_id, :cycle_id, :date, :status, :counts_toward_cycle, :excuse_reason, :memo, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, att); err != nil {
		return fmt.Errorf("create attendance: %w", err)
	}
	return nil
}

// Update persists mutable attendance fields.
func (r *AttendanceRepository) Update(ctx context.Context, att *models.Attendance) error {
	att.UpdatedAt = time.Now().UTC()
	const query = `UPDATE attendance SET status = :status, counts_toward_cycle = :counts_toward_cycle,
        excuse_reason = :excuse_reason, memo = :memo, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, att); err != nil {
		return fmt.Errorf("update attendance: %w", err)
	}
	return nil
}

// Delete removes an attendance row.
func (r *AttendanceRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM attendance WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	return nil
}

// MaxDateForCycle returns the latest scheduled date within a cycle.
func (r *AttendanceRepository) MaxDateForCycle(ctx context.Context, cycleID string) (time.Time, error) {
	const query = `SELECT MAX(date) FROM attendance WHERE cycle_id = $1`
	var max sql.NullTime
	if err := r.db.GetContext(ctx, &max, query, cycleID); err != nil {
		return time.Time{}, fmt.Errorf("max attendance date: %w", err)
	}
	if !max.Valid {
		return time.Time{}, sql.ErrNoRows
	}
	return max.Time, nil
}

// ExistsForStudentOnDate reports whether the student already has a row on
// the given date; bulk recording uses it to skip duplicates.
func (r *AttendanceRepository) ExistsForStudentOnDate(ctx context.Context, studentID string, date time.Time) (bool, error) {
	const query = `SELECT 1 FROM attendance WHERE student_id = $1 AND date = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, date); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check attendance exists: %w", err)
	}
	return true, nil
}

// ListDaily returns attendance rows for a date, optionally scoped to a
// class group.
func (r *AttendanceRepository) ListDaily(ctx context.Context, date time.Time, classGroupID string) ([]models.AttendanceDetail, error) {
	query := `SELECT a.id, a.student_id, a.cycle_id, a.date, a.status, a.counts_toward_cycle,
        a.excuse_reason, a.memo, a.created_at, a.updated_at,
        s.name AS student_name, c.current_count, c.total_count
        FROM attendance a
        JOIN students s ON s.id = a.student_id
        JOIN cycles c ON c.id = a.cycle_id
        WHERE a.date = $1`
	args := []interface{}{date}
	if classGroupID != "" {
		query += ` AND s.class_group_id = $2`
		args = append(args, classGroupID)
	}
	query += ` ORDER BY s.name`
	var rows []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list daily attendance: %w", err)
	}
	return rows, nil
}

// ListRange returns attendance rows in a date range for export, optionally
// scoped to a class group, chronological per student.
func (r *AttendanceRepository) ListRange(ctx context.Context, classGroupID string, from, to time.Time) ([]models.AttendanceDetail, error) {
	query := `SELECT a.id, a.student_id, a.cycle_id, a.date, a.status, a.counts_toward_cycle,
        a.excuse_reason, a.memo, a.created_at, a.updated_at,
        s.name AS student_name, c.current_count, c.total_count
        FROM attendance a
        JOIN students s ON s.id = a.student_id
        JOIN cycles c ON c.id = a.cycle_id
        WHERE a.date >= $1 AND a.date <= $2`
	args := []interface{}{from, to}
	if classGroupID != "" {
		query += ` AND s.class_group_id = $3`
		args = append(args, classGroupID)
	}
	query += ` ORDER BY s.name, a.date`
	var rows []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance range: %w", err)
	}
	return rows, nil
}
