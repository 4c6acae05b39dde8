package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-adm-api/internal/models"
	appErrors "github.com/noah-isme/tutoring-adm-api/pkg/errors"
)

type mockClassGroupRepo struct {
	groups      map[string]models.ClassGroup
	createErr   error
	deactivated []string
}

func (m *mockClassGroupRepo) List(ctx context.Context) ([]models.ClassGroup, error) {
	var list []models.ClassGroup
	for _, g := range m.groups {
		if g.Active {
			list = append(list, g)
		}
	}
	return list, nil
}

func (m *mockClassGroupRepo) FindByID(ctx context.Context, id string) (*models.ClassGroup, error) {
	if g, ok := m.groups[id]; ok && g.Active {
		return &g, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassGroupRepo) Create(ctx context.Context, group *models.ClassGroup) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.groups == nil {
		m.groups = make(map[string]models.ClassGroup)
	}
	group.ID = "new-group"
	group.Active = true
	m.groups[group.ID] = *group
	return nil
}

func (m *mockClassGroupRepo) Update(ctx context.Context, group *models.ClassGroup) error {
	m.groups[group.ID] = *group
	return nil
}

func (m *mockClassGroupRepo) Deactivate(ctx context.Context, id string) error {
	if g, ok := m.groups[id]; ok {
		g.Active = false
		m.groups[id] = g
	}
	m.deactivated = append(m.deactivated, id)
	return nil
}

func newClassGroupFixture() (*mockClassGroupRepo, *ClassGroupService) {
	repo := &mockClassGroupRepo{groups: map[string]models.ClassGroup{
		"g1": {ID: "g1", Name: "월수 6시", DaysOfWeek: pq.StringArray{"mon", "wed"}, StartTime: "18:00", DurationMinutes: 90, Active: true},
	}}
	svc := NewClassGroupService(repo, nil, zap.NewNop())
	return repo, svc
}

func TestClassGroupServiceCreate(t *testing.T) {
	_, svc := newClassGroupFixture()

	group, err := svc.Create(context.Background(), ClassGroupRequest{
		Name:            "화목 7시",
		DaysOfWeek:      []string{"tue", "thu"},
		StartTime:       "19:00",
		DurationMinutes: 90,
	})
	require.NoError(t, err)
	assert.Equal(t, "new-group", group.ID)
	assert.Equal(t, pq.StringArray{"tue", "thu"}, group.DaysOfWeek)
}

func TestClassGroupServiceCreateRejectsBadWeekday(t *testing.T) {
	_, svc := newClassGroupFixture()

	_, err := svc.Create(context.Background(), ClassGroupRequest{
		Name:            "이상한 반",
		DaysOfWeek:      []string{"monday"},
		StartTime:       "19:00",
		DurationMinutes: 90,
	})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestClassGroupServiceCreateRejectsBadTime(t *testing.T) {
	_, svc := newClassGroupFixture()

	_, err := svc.Create(context.Background(), ClassGroupRequest{
		Name:            "화목 7시",
		DaysOfWeek:      []string{"tue"},
		StartTime:       "7pm",
		DurationMinutes: 90,
	})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestClassGroupServiceCreateDuplicateName(t *testing.T) {
	repo, svc := newClassGroupFixture()
	repo.createErr = &pq.Error{Code: "23505"}

	_, err := svc.Create(context.Background(), ClassGroupRequest{
		Name:            "월수 6시",
		DaysOfWeek:      []string{"mon", "wed"},
		StartTime:       "18:00",
		DurationMinutes: 90,
	})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestClassGroupServiceUpdate(t *testing.T) {
	repo, svc := newClassGroupFixture()

	group, err := svc.Update(context.Background(), "g1", ClassGroupRequest{
		Name:            "월수금 6시",
		DaysOfWeek:      []string{"mon", "wed", "fri"},
		StartTime:       "18:00",
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, pq.StringArray{"mon", "wed", "fri"}, group.DaysOfWeek)
	assert.Equal(t, 60, repo.groups["g1"].DurationMinutes)
}

func TestClassGroupServiceDeleteDeactivates(t *testing.T) {
	repo, svc := newClassGroupFixture()

	err := svc.Delete(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, repo.deactivated)

	_, err = svc.Get(context.Background(), "g1")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestClassGroupServiceGetMissing(t *testing.T) {
	_, svc := newClassGroupFixture()

	_, err := svc.Get(context.Background(), "ghost")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
