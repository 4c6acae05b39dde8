package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-adm-api/internal/models"
	"github.com/noah-isme/tutoring-adm-api/pkg/config"
	appErrors "github.com/noah-isme/tutoring-adm-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	UpdateLevelTest(ctx context.Context, id string, date *time.Time, timeOfDay, result *string) error
	ChangeStatus(ctx context.Context, studentID string, from, to models.EnrollmentStatus, memo *string) (*models.EnrollmentHistory, error)
	ListHistory(ctx context.Context, studentID string) ([]models.EnrollmentHistory, error)
}

type studentClassGroupReader interface {
	FindByID(ctx context.Context, id string) (*models.ClassGroup, error)
}

type currentCycleReader interface {
	FindInProgressByStudent(ctx context.Context, studentID string) (*models.Cycle, error)
}

// CreateStudentRequest registers a new student.
type CreateStudentRequest struct {
	Name             string                  `json:"name" validate:"required"`
	Phone            string                  `json:"phone"`
	School           string                  `json:"school"`
	Grade            models.Grade            `json:"grade" validate:"required"`
	ParentPhone      string                  `json:"parent_phone"`
	ClassGroupID     string                  `json:"class_group_id"`
	TuitionOverride  *int                    `json:"tuition_override,omitempty"`
	Memo             *string                 `json:"memo,omitempty"`
	EnrollmentStatus models.EnrollmentStatus `json:"enrollment_status,omitempty"`
}

// UpdateStudentRequest edits student master data. Status changes go through
// the enrollment workflow, not here.
type UpdateStudentRequest struct {
	Name            string       `json:"name" validate:"required"`
	Phone           string       `json:"phone"`
	School          string       `json:"school"`
	Grade           models.Grade `json:"grade" validate:"required"`
	ParentPhone     string       `json:"parent_phone"`
	ClassGroupID    string       `json:"class_group_id"`
	TuitionOverride *int         `json:"tuition_override,omitempty"`
	Memo            *string      `json:"memo,omitempty"`
}

// UpdateLevelTestRequest records level test scheduling and outcome.
type UpdateLevelTestRequest struct {
	Date   *time.Time `json:"date,omitempty"`
	Time   *string    `json:"time,omitempty"`
	Result *string    `json:"result,omitempty"`
}

// StudentService manages student master data and derived billing context.
type StudentService struct {
	repo      studentRepository
	groups    studentClassGroupReader
	cycles    currentCycleReader
	billing   config.BillingConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, groups studentClassGroupReader, cycles currentCycleReader, billing config.BillingConfig, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, groups: groups, cycles: cycles, billing: billing, validator: validate, logger: logger}
}

// effectiveTuition resolves what the student actually pays: the per-student
// override when set, otherwise the configured amount for the grade.
func (s *StudentService) effectiveTuition(student *models.Student) int {
	if student.TuitionOverride != nil {
		return *student.TuitionOverride
	}
	return s.billing.TuitionFor(string(student.Grade))
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	if filter.EnrollmentStatus != "" && filter.EnrollmentStatus != "all" {
		if !models.EnrollmentStatus(filter.EnrollmentStatus).Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown enrollment status filter")
		}
	}
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	for i := range students {
		students[i].EffectiveTuition = s.effectiveTuition(&students[i].Student)
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
	return students, pagination, nil
}

// Get returns one student with billing context, the open cycle if any, and
// the dates each status was first entered.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	detail.EffectiveTuition = s.effectiveTuition(&detail.Student)

	cycle, err := s.cycles.FindInProgressByStudent(ctx, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current cycle")
	}
	detail.CurrentCycle = cycle

	history, err := s.repo.ListHistory(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment history")
	}
	applyStatusDates(detail, history)
	return detail, nil
}

// applyStatusDates derives first-entered dates per status from the trail.
// History arrives newest first, so walking backwards visits entries in
// chronological order.
func applyStatusDates(detail *models.StudentDetail, history []models.EnrollmentHistory) {
	for i := len(history) - 1; i >= 0; i-- {
		entry := history[i]
		changedAt := entry.ChangedAt
		switch entry.ToStatus {
		case models.StatusInquiry:
			if detail.InquiryDate == nil {
				detail.InquiryDate = &changedAt
			}
		case models.StatusLevelTest:
			if detail.LevelTestStatusDate == nil {
				detail.LevelTestStatusDate = &changedAt
			}
		case models.StatusActive:
			if detail.ActiveDate == nil {
				detail.ActiveDate = &changedAt
			}
		case models.StatusStopped:
			if detail.StoppedDate == nil {
				detail.StoppedDate = &changedAt
			}
		}
	}
}

// Create registers a student. The initial status defaults to inquiry and is
// written together with the first history row.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if !req.Grade.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown grade")
	}
	status := req.EnrollmentStatus
	if status == "" {
		status = models.StatusInquiry
	}
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown enrollment status")
	}
	if req.ClassGroupID != "" {
		if _, err := s.groups.FindByID(ctx, req.ClassGroupID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "class group not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class group")
		}
	}

	student := &models.Student{
		Name:             req.Name,
		Phone:            req.Phone,
		School:           req.School,
		Grade:            req.Grade,
		ParentPhone:      req.ParentPhone,
		ClassGroupID:     req.ClassGroupID,
		TuitionOverride:  req.TuitionOverride,
		Memo:             req.Memo,
		EnrollmentStatus: status,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	s.logger.Info("student created", zap.String("student_id", student.ID), zap.String("name", student.Name))
	return s.Get(ctx, student.ID)
}

// Update edits master data. Stopped students are treated as removed.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if !req.Grade.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown grade")
	}

	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.EnrollmentStatus == models.StatusStopped {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	if req.ClassGroupID != "" && req.ClassGroupID != student.ClassGroupID {
		if _, err := s.groups.FindByID(ctx, req.ClassGroupID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "class group not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class group")
		}
	}

	student.Name = req.Name
	student.Phone = req.Phone
	student.School = req.School
	student.Grade = req.Grade
	student.ParentPhone = req.ParentPhone
	student.ClassGroupID = req.ClassGroupID
	student.TuitionOverride = req.TuitionOverride
	student.Memo = req.Memo
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return s.Get(ctx, id)
}

// UpdateLevelTest records level test scheduling or its outcome.
func (s *StudentService) UpdateLevelTest(ctx context.Context, id string, req UpdateLevelTestRequest) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.EnrollmentStatus == models.StatusStopped {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	if err := s.repo.UpdateLevelTest(ctx, id, req.Date, req.Time, req.Result); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update level test")
	}
	return s.Get(ctx, id)
}

// Delete stops a student. The row stays for history; an already stopped
// student is indistinguishable from a missing one.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.EnrollmentStatus == models.StatusStopped {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	if _, err := s.repo.ChangeStatus(ctx, id, student.EnrollmentStatus, models.StatusStopped, nil); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stop student")
	}

	s.logger.Info("student stopped", zap.String("student_id", id))
	return nil
}
