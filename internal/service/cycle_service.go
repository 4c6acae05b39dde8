package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-adm-api/internal/models"
	"github.com/noah-isme/tutoring-adm-api/pkg/config"
	appErrors "github.com/noah-isme/tutoring-adm-api/pkg/errors"
)

type cycleRepository interface {
	FindByID(ctx context.Context, id string) (*models.Cycle, error)
	FindInProgressByStudent(ctx context.Context, studentID string) (*models.Cycle, error)
	FindLatestByStudent(ctx context.Context, studentID string) (*models.Cycle, error)
	CreateWithSchedule(ctx context.Context, cycle *models.Cycle, rows []models.Attendance) error
	CountCountable(ctx context.Context, cycleID string) (int, error)
	UpdateCount(ctx context.Context, cycleID string, count int) error
	MarkCompleted(ctx context.Context, cycleID string, completedAt time.Time) error
	HasUnpaid(ctx context.Context, cycleID string) (bool, bool, error)
}

type cycleStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type cycleClassGroupReader interface {
	FindByID(ctx context.Context, id string) (*models.ClassGroup, error)
}

type paymentEnsurer interface {
	Ensure(ctx context.Context, student *models.Student, cycle *models.Cycle) (*models.Payment, error)
}

// CycleService drives the prepaid cycle lifecycle: start with a fully
// allocated schedule, recount after attendance edits, and explicit
// completion that hands off to billing.
type CycleService struct {
	repo     cycleRepository
	students cycleStudentReader
	groups   cycleClassGroupReader
	payments paymentEnsurer
	billing  config.BillingConfig
	logger   *zap.Logger
}

// NewCycleService constructs CycleService.
func NewCycleService(repo cycleRepository, students cycleStudentReader, groups cycleClassGroupReader, payments paymentEnsurer, billing config.BillingConfig, logger *zap.Logger) *CycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if billing.CycleSessions <= 0 {
		billing.CycleSessions = 8
	}
	if billing.ScheduleHorizonDays <= 0 {
		billing.ScheduleHorizonDays = 365
	}
	return &CycleService{repo: repo, students: students, groups: groups, payments: payments, billing: billing, logger: logger}
}

// Get returns a cycle by ID.
func (s *CycleService) Get(ctx context.Context, id string) (*models.Cycle, error) {
	cycle, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "cycle not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cycle")
	}
	return cycle, nil
}

// Current returns the student's in-progress cycle.
func (s *CycleService) Current(ctx context.Context, studentID string) (*models.Cycle, error) {
	cycle, err := s.repo.FindInProgressByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNoActiveCycle, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cycle")
	}
	return cycle, nil
}

// Start opens a new prepaid cycle for the student beginning at startDate.
// The cycle is created fully allocated: current_count equals total_count and
// every session already has a scheduled attendance row. Starting is refused
// while another cycle is open or while the previous cycle's tuition is still
// pending.
func (s *CycleService) Start(ctx context.Context, studentID string, startDate time.Time) (*models.Cycle, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if _, err := s.repo.FindInProgressByStudent(ctx, studentID); err == nil {
		return nil, appErrors.ErrCycleInProgress
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open cycle")
	}

	cycleNumber := 1
	latest, err := s.repo.FindLatestByStudent(ctx, studentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load previous cycle")
	}
	if latest != nil {
		exists, unpaid, err := s.repo.HasUnpaid(ctx, latest.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check previous cycle payment")
		}
		if exists && unpaid {
			return nil, appErrors.ErrPreviousCycleUnpaid
		}
		cycleNumber = latest.CycleNumber + 1
	}

	if student.ClassGroupID == "" {
		return nil, appErrors.Clone(appErrors.ErrScheduleUnresolvable, "student has no class group")
	}
	group, err := s.groups.FindByID(ctx, student.ClassGroupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class group")
	}

	dates, err := NextMatchingDates(startDate, models.WeekdaySet(group.DaysOfWeek), s.billing.CycleSessions, s.billing.ScheduleHorizonDays)
	if err != nil {
		return nil, err
	}

	cycle := &models.Cycle{
		StudentID:    studentID,
		CycleNumber:  cycleNumber,
		CurrentCount: s.billing.CycleSessions,
		TotalCount:   s.billing.CycleSessions,
		Status:       models.CycleInProgress,
		StartedAt:    dates[0],
	}
	rows := make([]models.Attendance, 0, len(dates))
	for _, date := range dates {
		rows = append(rows, models.Attendance{
			StudentID:         studentID,
			Date:              date,
			Status:            models.AttendancePresent,
			CountsTowardCycle: true,
		})
	}
	if err := s.repo.CreateWithSchedule(ctx, cycle, rows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create cycle")
	}

	s.logger.Info("cycle started",
		zap.String("student_id", studentID),
		zap.String("cycle_id", cycle.ID),
		zap.Int("cycle_number", cycle.CycleNumber))
	return cycle, nil
}

// Recount recomputes current_count from the cycle's countable attendance
// rows. Recounting never changes the cycle's status; reaching total_count
// only makes the cycle eligible for explicit completion.
func (s *CycleService) Recount(ctx context.Context, cycleID string) (*models.Cycle, error) {
	cycle, err := s.Get(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.CountCountable(ctx, cycleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to recount cycle")
	}
	if count != cycle.CurrentCount {
		if err := s.repo.UpdateCount(ctx, cycleID, count); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store cycle count")
		}
		cycle.CurrentCount = count
	}
	return cycle, nil
}

// Complete closes the cycle and ensures the tuition invoice exists. Only a
// cycle that has consumed its full allocation can be completed.
func (s *CycleService) Complete(ctx context.Context, cycleID string) (*models.Cycle, *models.Payment, error) {
	cycle, err := s.Recount(ctx, cycleID)
	if err != nil {
		return nil, nil, err
	}
	if cycle.Status == models.CycleCompleted {
		return nil, nil, appErrors.ErrCycleCompleted
	}
	if cycle.CurrentCount < cycle.TotalCount {
		return nil, nil, appErrors.ErrCycleIncomplete
	}

	completedAt := time.Now().UTC()
	if err := s.repo.MarkCompleted(ctx, cycleID, completedAt); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete cycle")
	}
	cycle.Status = models.CycleCompleted
	cycle.CompletedAt = &completedAt

	student, err := s.students.FindByID(ctx, cycle.StudentID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student for billing")
	}
	payment, err := s.payments.Ensure(ctx, student, cycle)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("cycle completed",
		zap.String("cycle_id", cycle.ID),
		zap.String("student_id", cycle.StudentID),
		zap.Int("cycle_number", cycle.CycleNumber))
	return cycle, payment, nil
}
