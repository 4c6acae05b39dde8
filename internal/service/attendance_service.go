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

type attendanceRepository interface {
	FindByID(ctx context.Context, id string) (*models.Attendance, error)
	FindDetailByID(ctx context.Context, id string) (*models.AttendanceDetail, error)
	Create(ctx context.Context, att *models.Attendance) error
	Update(ctx context.Context, att *models.Attendance) error
	Delete(ctx context.Context, id string) error
	MaxDateForCycle(ctx context.Context, cycleID string) (time.Time, error)
	ExistsForStudentOnDate(ctx context.Context, studentID string, date time.Time) (bool, error)
	ListDaily(ctx context.Context, date time.Time, classGroupID string) ([]models.AttendanceDetail, error)
}

type attendanceCycleStore interface {
	FindByID(ctx context.Context, id string) (*models.Cycle, error)
	FindInProgressByStudent(ctx context.Context, studentID string) (*models.Cycle, error)
	CountCountable(ctx context.Context, cycleID string) (int, error)
	UpdateCount(ctx context.Context, cycleID string, count int) error
}

type attendanceStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type attendanceClassGroupReader interface {
	FindByID(ctx context.Context, id string) (*models.ClassGroup, error)
}

// RecordAttendanceRequest describes a single attendance entry. The caller
// states whether the row consumes cycle capacity.
type RecordAttendanceRequest struct {
	StudentID         string                  `json:"student_id" validate:"required"`
	Date              time.Time               `json:"date" validate:"required"`
	Status            models.AttendanceStatus `json:"status" validate:"required"`
	CountsTowardCycle bool                    `json:"counts_toward_cycle"`
	ExcuseReason      *models.ExcuseReason    `json:"excuse_reason,omitempty"`
	Memo              *string                 `json:"memo,omitempty"`
}

// UpdateAttendanceRequest describes an attendance correction.
type UpdateAttendanceRequest struct {
	Status            models.AttendanceStatus `json:"status" validate:"required"`
	CountsTowardCycle bool                    `json:"counts_toward_cycle"`
	ExcuseReason      *models.ExcuseReason    `json:"excuse_reason,omitempty"`
	Memo              *string                 `json:"memo,omitempty"`
}

// BulkAttendanceEntry is one student's entry inside a bulk recording.
type BulkAttendanceEntry struct {
	StudentID         string                  `json:"student_id" validate:"required"`
	Status            models.AttendanceStatus `json:"status" validate:"required"`
	CountsTowardCycle bool                    `json:"counts_toward_cycle"`
	ExcuseReason      *models.ExcuseReason    `json:"excuse_reason,omitempty"`
	Memo              *string                 `json:"memo,omitempty"`
}

// BulkAttendanceRequest records a whole class group for one date.
type BulkAttendanceRequest struct {
	Date    time.Time             `json:"date" validate:"required"`
	Entries []BulkAttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// BulkAttendanceResult reports what the bulk recording did.
type BulkAttendanceResult struct {
	Created []models.AttendanceDetail `json:"created"`
	Skipped []string                  `json:"skipped,omitempty"`
}

// AttendanceService records sessions against the student's open cycle and
// keeps cycle counts consistent with the rows.
type AttendanceService struct {
	repo      attendanceRepository
	cycles    attendanceCycleStore
	students  attendanceStudentReader
	groups    attendanceClassGroupReader
	billing   config.BillingConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(repo attendanceRepository, cycles attendanceCycleStore, students attendanceStudentReader, groups attendanceClassGroupReader, billing config.BillingConfig, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if billing.ScheduleHorizonDays <= 0 {
		billing.ScheduleHorizonDays = 365
	}
	return &AttendanceService{repo: repo, cycles: cycles, students: students, groups: groups, billing: billing, validator: validate, logger: logger}
}

// validateSession checks the status, counts and excuse combination. An
// excused absence always needs a reason; a reason marks an exception, so
// it is only valid on rows that do not count.
func validateSession(status models.AttendanceStatus, counts bool, reason *models.ExcuseReason) error {
	if !status.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown attendance status")
	}
	if status == models.AttendanceAbsentExcused && reason == nil {
		return appErrors.Clone(appErrors.ErrValidation, "excused absence requires an excuse reason")
	}
	if reason != nil {
		if !reason.Valid() {
			return appErrors.Clone(appErrors.ErrValidation, "unknown excuse reason")
		}
		if counts {
			return appErrors.Clone(appErrors.ErrValidation, "excuse reason is only allowed for sessions that do not count")
		}
	}
	return nil
}

// Get returns an attendance row with student and cycle context.
func (s *AttendanceService) Get(ctx context.Context, id string) (*models.AttendanceDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	return detail, nil
}

// Record creates an attendance row against the student's open cycle.
func (s *AttendanceService) Record(ctx context.Context, req RecordAttendanceRequest) (*models.AttendanceDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if err := validateSession(req.Status, req.CountsTowardCycle, req.ExcuseReason); err != nil {
		return nil, err
	}

	cycle, err := s.cycles.FindInProgressByStudent(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNoActiveCycle
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cycle")
	}

	row := &models.Attendance{
		StudentID:         req.StudentID,
		CycleID:           cycle.ID,
		Date:              Midnight(req.Date),
		Status:            req.Status,
		CountsTowardCycle: req.CountsTowardCycle,
		ExcuseReason:      req.ExcuseReason,
		Memo:              req.Memo,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	if err := s.recount(ctx, cycle.ID); err != nil {
		return nil, err
	}
	return s.Get(ctx, row.ID)
}

// BulkRecord records a set of students for one date. Students without an
// open cycle or with an existing row on that date are skipped rather than
// failing the batch.
func (s *AttendanceService) BulkRecord(ctx context.Context, req BulkAttendanceRequest) (*BulkAttendanceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk attendance payload")
	}

	result := &BulkAttendanceResult{}
	date := Midnight(req.Date)
	for _, entry := range req.Entries {
		if err := validateSession(entry.Status, entry.CountsTowardCycle, entry.ExcuseReason); err != nil {
			return nil, err
		}
		exists, err := s.repo.ExistsForStudentOnDate(ctx, entry.StudentID, date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing attendance")
		}
		if exists {
			result.Skipped = append(result.Skipped, entry.StudentID)
			continue
		}
		cycle, err := s.cycles.FindInProgressByStudent(ctx, entry.StudentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result.Skipped = append(result.Skipped, entry.StudentID)
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cycle")
		}

		row := &models.Attendance{
			StudentID:         entry.StudentID,
			CycleID:           cycle.ID,
			Date:              date,
			Status:            entry.Status,
			CountsTowardCycle: entry.CountsTowardCycle,
			ExcuseReason:      entry.ExcuseReason,
			Memo:              entry.Memo,
		}
		if err := s.repo.Create(ctx, row); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
		}
		if err := s.recount(ctx, cycle.ID); err != nil {
			return nil, err
		}
		detail, err := s.Get(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		result.Created = append(result.Created, *detail)
	}
	return result, nil
}

// Update corrects an attendance row. A countable row turning into an
// excused absence frees one unit of cycle capacity, so the open cycle is
// extended by one scheduled session to keep the prepaid allocation whole.
func (s *AttendanceService) Update(ctx context.Context, id string, req UpdateAttendanceRequest) (*models.AttendanceDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if err := validateSession(req.Status, req.CountsTowardCycle, req.ExcuseReason); err != nil {
		return nil, err
	}

	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	freedCapacity := row.CountsTowardCycle && !req.CountsTowardCycle

	row.Status = req.Status
	row.CountsTowardCycle = req.CountsTowardCycle
	row.ExcuseReason = req.ExcuseReason
	row.Memo = req.Memo
	if err := s.repo.Update(ctx, row); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance")
	}
	if err := s.recount(ctx, row.CycleID); err != nil {
		return nil, err
	}

	if freedCapacity {
		if err := s.extendSchedule(ctx, row.StudentID, row.CycleID); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

// Delete removes an attendance row and recounts the owning cycle.
func (s *AttendanceService) Delete(ctx context.Context, id string) error {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "attendance not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance")
	}
	return s.recount(ctx, row.CycleID)
}

// Daily returns attendance for a date, optionally scoped to a class group.
func (s *AttendanceService) Daily(ctx context.Context, date time.Time, classGroupID string) ([]models.AttendanceDetail, error) {
	rows, err := s.repo.ListDaily(ctx, Midnight(date), classGroupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list daily attendance")
	}
	return rows, nil
}

func (s *AttendanceService) recount(ctx context.Context, cycleID string) error {
	count, err := s.cycles.CountCountable(ctx, cycleID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to recount cycle")
	}
	if err := s.cycles.UpdateCount(ctx, cycleID, count); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store cycle count")
	}
	return nil
}

// extendSchedule appends one scheduled session after the cycle's last date.
// Completed cycles are left untouched.
func (s *AttendanceService) extendSchedule(ctx context.Context, studentID, cycleID string) error {
	cycle, err := s.cycles.FindByID(ctx, cycleID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cycle")
	}
	if cycle.Status != models.CycleInProgress {
		return nil
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.ClassGroupID == "" {
		return appErrors.Clone(appErrors.ErrScheduleUnresolvable, "student has no class group")
	}
	group, err := s.groups.FindByID(ctx, student.ClassGroupID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class group")
	}

	lastDate, err := s.repo.MaxDateForCycle(ctx, cycleID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve last scheduled date")
	}
	dates, err := NextMatchingDates(lastDate.AddDate(0, 0, 1), models.WeekdaySet(group.DaysOfWeek), 1, s.billing.ScheduleHorizonDays)
	if err != nil {
		return err
	}

	extension := &models.Attendance{
		StudentID:         studentID,
		CycleID:           cycleID,
		Date:              dates[0],
		Status:            models.AttendancePresent,
		CountsTowardCycle: true,
	}
	if err := s.repo.Create(ctx, extension); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to extend cycle schedule")
	}
	if err := s.recount(ctx, cycleID); err != nil {
		return err
	}

	s.logger.Info("cycle schedule extended",
		zap.String("cycle_id", cycleID),
		zap.String("student_id", studentID),
		zap.Time("date", dates[0]))
	return nil
}
