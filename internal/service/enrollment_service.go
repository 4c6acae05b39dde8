package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-adm-api/internal/models"
	appErrors "github.com/noah-isme/tutoring-adm-api/pkg/errors"
)

type enrollmentStudentStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ChangeStatus(ctx context.Context, studentID string, from, to models.EnrollmentStatus, memo *string) (*models.EnrollmentHistory, error)
	ListHistory(ctx context.Context, studentID string) ([]models.EnrollmentHistory, error)
}

type cycleStarter interface {
	Start(ctx context.Context, studentID string, startDate time.Time) (*models.Cycle, error)
}

// ChangeStatusRequest moves a student through the enrollment lifecycle.
// StartDate only applies when activating; without it the status flips but
// no cycle is started.
type ChangeStatusRequest struct {
	ToStatus  models.EnrollmentStatus `json:"to_status" validate:"required"`
	Memo      *string                 `json:"memo,omitempty"`
	StartDate *time.Time              `json:"start_date,omitempty"`
}

// EnrollmentService runs the student status machine. Activation and cycle
// start are decoupled: a cycle begins only when the caller supplies a start
// date, so a student can be activated before the first class date is known.
type EnrollmentService struct {
	students  enrollmentStudentStore
	cycles    cycleStarter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(students enrollmentStudentStore, cycles cycleStarter, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{students: students, cycles: cycles, validator: validate, logger: logger}
}

// ChangeStatus validates and applies one transition, appending to the
// history trail. The transition table has no self-loops; a stopped student
// can only be reactivated.
func (s *EnrollmentService) ChangeStatus(ctx context.Context, studentID string, req ChangeStatusRequest) (*models.EnrollmentHistory, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !req.ToStatus.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown enrollment status")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if !student.EnrollmentStatus.CanTransitionTo(req.ToStatus) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot transition from %s to %s", student.EnrollmentStatus, req.ToStatus))
	}

	// Activation with a start date begins the next cycle before the status
	// flips. An already open cycle is kept and the activation proceeds;
	// other start failures (unpaid tuition, unresolvable schedule) leave
	// the status put.
	if req.ToStatus == models.StatusActive && req.StartDate != nil {
		if _, err := s.cycles.Start(ctx, studentID, *req.StartDate); err != nil {
			if appErrors.FromError(err).Code != appErrors.ErrCycleInProgress.Code {
				return nil, err
			}
		}
	}

	entry, err := s.students.ChangeStatus(ctx, studentID, student.EnrollmentStatus, req.ToStatus, req.Memo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change enrollment status")
	}

	s.logger.Info("enrollment status changed",
		zap.String("student_id", studentID),
		zap.String("from", string(student.EnrollmentStatus)),
		zap.String("to", string(req.ToStatus)))
	return entry, nil
}

// History returns the student's transition trail, newest first.
func (s *EnrollmentService) History(ctx context.Context, studentID string) ([]models.EnrollmentHistory, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	entries, err := s.students.ListHistory(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollment history")
	}
	return entries, nil
}
