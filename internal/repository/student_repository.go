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

// StudentRepository handles persistence of students and their enrollment
// history trail.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, name, phone, school, grade, parent_phone, class_group_id,
        tuition_override, memo, enrollment_status, level_test_date, level_test_time,
        level_test_result, created_at, updated_at`

// List returns students filtered by the provided criteria. By default
// stopped students are hidden; pass "all" to include everyone.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := `FROM students s LEFT JOIN class_groups g ON g.id = s.class_group_id`
	var conditions []string
	var args []interface{}

	switch filter.EnrollmentStatus {
	case "all":
	case "":
		conditions = append(conditions, fmt.Sprintf("s.enrollment_status <> $%d", len(args)+1))
		args = append(args, models.StatusStopped)
	default:
		conditions = append(conditions, fmt.Sprintf("s.enrollment_status = $%d", len(args)+1))
		args = append(args, filter.EnrollmentStatus)
	}
	if filter.ClassGroupID != "" {
		conditions = append(conditions, fmt.Sprintf("s.class_group_id = $%d", len(args)+1))
		args = append(args, filter.ClassGroupID)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"name":       "s.name",
		"created_at": "s.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "s.name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf(`SELECT s.id, s.name, s.phone, s.school, s.grade, s.parent_phone,
        s.class_group_id, s.tuition_override, s.memo, s.enrollment_status,
        s.level_test_date, s.level_test_time, s.level_test_result, s.created_at, s.updated_at,
        g.name AS class_group_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID returns a student by its ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindDetailByID returns a student joined with class group info.
func (r *StudentRepository) FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	const query = `SELECT s.id, s.name, s.phone, s.school, s.grade, s.parent_phone,
        s.class_group_id, s.tuition_override, s.memo, s.enrollment_status,
        s.level_test_date, s.level_test_time, s.level_test_result, s.created_at, s.updated_at,
        g.name AS class_group_name
        FROM students s LEFT JOIN class_groups g ON g.id = s.class_group_id
        WHERE s.id = $1`
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create persists the student and its initial enrollment history row in one
// transaction. Exactly one history row with a null from_status exists per
// student.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	now := time.Now().UTC()
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	student.CreatedAt = now
	student.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create student: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	const insertStudent = `INSERT INTO students (id, name, phone, school, grade, parent_phone,
        class_group_id, tuition_override, memo, enrollment_status, level_test_date,
        level_test_time, level_test_result, created_at, updated_at)
        VALUES (:id, :name, :phone, :school, :grade, :parent_phone, :class_group_id,
        :tuition_override, :memo, :enrollment_status, :level_test_date, :level_test_time,
        :level_test_result, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertStudent, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}

	const insertHistory = `INSERT INTO enrollment_history (id, student_id, from_status, to_status, changed_at, memo)
        VALUES ($1, $2, NULL, $3, $4, NULL)`
	if _, err := tx.ExecContext(ctx, insertHistory, uuid.NewString(), student.ID, student.EnrollmentStatus, now); err != nil {
		return fmt.Errorf("create initial enrollment history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create student: %w", err)
	}
	committed = true
	return nil
}

// Update persists editable student fields.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET name = :name, phone = :phone, school = :school,
        grade = :grade, parent_phone = :parent_phone, class_group_id = :class_group_id,
        tuition_override = :tuition_override, memo = :memo, level_test_date = :level_test_date,
        level_test_time = :level_test_time, level_test_result = :level_test_result,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// UpdateLevelTest persists only the level test fields.
func (r *StudentRepository) UpdateLevelTest(ctx context.Context, id string, date *time.Time, timeOfDay, result *string) error {
	const query = `UPDATE students SET level_test_date = $2, level_test_time = $3,
        level_test_result = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, date, timeOfDay, result, time.Now().UTC()); err != nil {
		return fmt.Errorf("update level test: %w", err)
	}
	return nil
}

// ChangeStatus appends the history row and mutates the student's status in
// one transaction so the trail can never diverge from the current state.
func (r *StudentRepository) ChangeStatus(ctx context.Context, studentID string, from, to models.EnrollmentStatus, memo *string) (*models.EnrollmentHistory, error) {
	now := time.Now().UTC()
	entry := &models.EnrollmentHistory{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		FromStatus: &from,
		ToStatus:   to,
		ChangedAt:  now,
		Memo:       memo,
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin change status: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	const insertHistory = `INSERT INTO enrollment_history (id, student_id, from_status, to_status, changed_at, memo)
        VALUES (:id, :student_id, :from_status, :to_status, :changed_at, :memo)`
	if _, err := tx.NamedExecContext(ctx, insertHistory, entry); err != nil {
		return nil, fmt.Errorf("append enrollment history: %w", err)
	}

	const updateStudent = `UPDATE students SET enrollment_status = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateStudent, studentID, to, now); err != nil {
		return nil, fmt.Errorf("update enrollment status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit change status: %w", err)
	}
	committed = true
	return entry, nil
}

// ListHistory returns the student's enrollment history, newest first.
func (r *StudentRepository) ListHistory(ctx context.Context, studentID string) ([]models.EnrollmentHistory, error) {
	const query = `SELECT id, student_id, from_status, to_status, changed_at, memo
        FROM enrollment_history WHERE student_id = $1 ORDER BY changed_at DESC`
	var entries []models.EnrollmentHistory
	if err := r.db.SelectContext(ctx, &entries, query, studentID); err != nil {
		return nil, fmt.Errorf("list enrollment history: %w", err)
	}
	return entries, nil
}
