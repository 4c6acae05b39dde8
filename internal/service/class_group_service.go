package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-adm-api/internal/models"
	appErrors "github.com/noah-isme/tutoring-adm-api/pkg/errors"
)

type classGroupRepository interface {
	List(ctx context.Context) ([]models.ClassGroup, error)
	FindByID(ctx context.Context, id string) (*models.ClassGroup, error)
	Create(ctx context.Context, group *models.ClassGroup) error
	Update(ctx context.Context, group *models.ClassGroup) error
	Deactivate(ctx context.Context, id string) error
}

// ClassGroupRequest creates or edits a class group.
type ClassGroupRequest struct {
	Name            string   `json:"name" validate:"required"`
	DaysOfWeek      []string `json:"days_of_week" validate:"required,min=1"`
	StartTime       string   `json:"start_time" validate:"required"`
	DurationMinutes int      `json:"duration_minutes" validate:"required,gt=0"`
	Memo            *string  `json:"memo,omitempty"`
}

// ClassGroupService manages class groups and their weekly schedules.
type ClassGroupService struct {
	repo      classGroupRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassGroupService constructs ClassGroupService.
func NewClassGroupService(repo classGroupRepository, validate *validator.Validate, logger *zap.Logger) *ClassGroupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassGroupService{repo: repo, validator: validate, logger: logger}
}

func (s *ClassGroupService) validateRequest(req ClassGroupRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class group payload")
	}
	for _, code := range req.DaysOfWeek {
		if !models.Weekday(code).Valid() {
			return appErrors.Clone(appErrors.ErrValidation, "unknown weekday code: "+code)
		}
	}
	if _, err := time.Parse("15:04", req.StartTime); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be HH:MM")
	}
	return nil
}

// List returns active class groups ordered by start time.
func (s *ClassGroupService) List(ctx context.Context) ([]models.ClassGroup, error) {
	groups, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class groups")
	}
	return groups, nil
}

// Get returns an active class group by ID.
func (s *ClassGroupService) Get(ctx context.Context, id string) (*models.ClassGroup, error) {
	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class group")
	}
	return group, nil
}

// Create registers a new class group.
func (s *ClassGroupService) Create(ctx context.Context, req ClassGroupRequest) (*models.ClassGroup, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	group := &models.ClassGroup{
		Name:            req.Name,
		DaysOfWeek:      pq.StringArray(req.DaysOfWeek),
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Memo:            req.Memo,
	}
	if err := s.repo.Create(ctx, group); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "class group name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class group")
	}

	s.logger.Info("class group created", zap.String("class_group_id", group.ID), zap.String("name", group.Name))
	return group, nil
}

// Update edits an active class group. Changing the weekday set affects only
// cycles started afterwards; existing schedules keep their dates.
func (s *ClassGroupService) Update(ctx context.Context, id string, req ClassGroupRequest) (*models.ClassGroup, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	group, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	group.Name = req.Name
	group.DaysOfWeek = pq.StringArray(req.DaysOfWeek)
	group.StartTime = req.StartTime
	group.DurationMinutes = req.DurationMinutes
	group.Memo = req.Memo
	if err := s.repo.Update(ctx, group); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "class group name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class group")
	}
	return group, nil
}

// Delete soft-deletes a class group. Assigned students keep the reference;
// they simply stop appearing in active listings.
func (s *ClassGroupService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate class group")
	}

	s.logger.Info("class group deactivated", zap.String("class_group_id", id))
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
