package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-adm-api/internal/models"
	appErrors "github.com/noah-isme/tutoring-adm-api/pkg/errors"
)

type mockEnrollmentStudents struct {
	students map[string]*models.Student
	history  []models.EnrollmentHistory
	changed  []models.EnrollmentHistory
}

func (m *mockEnrollmentStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentStudents) ChangeStatus(ctx context.Context, studentID string, from, to models.EnrollmentStatus, memo *string) (*models.EnrollmentHistory, error) {
	entry := models.EnrollmentHistory{
		ID: "h1", StudentID: studentID, FromStatus: &from, ToStatus: to, ChangedAt: time.Now().UTC(), Memo: memo,
	}
	m.changed = append(m.changed, entry)
	if s, ok := m.students[studentID]; ok {
		s.EnrollmentStatus = to
	}
	return &entry, nil
}

func (m *mockEnrollmentStudents) ListHistory(ctx context.Context, studentID string) ([]models.EnrollmentHistory, error) {
	return m.history, nil
}

type mockCycleStarter struct {
	err     error
	started []time.Time
}

func (m *mockCycleStarter) Start(ctx context.Context, studentID string, startDate time.Time) (*models.Cycle, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.started = append(m.started, startDate)
	return &models.Cycle{ID: "c1", StudentID: studentID, CycleNumber: 1, Status: models.CycleInProgress}, nil
}

func newEnrollmentFixture(status models.EnrollmentStatus) (*mockEnrollmentStudents, *mockCycleStarter, *EnrollmentService) {
	students := &mockEnrollmentStudents{students: map[string]*models.Student{
		"s1": {ID: "s1", Name: "김민준", EnrollmentStatus: status},
	}}
	cycles := &mockCycleStarter{}
	svc := NewEnrollmentService(students, cycles, nil, zap.NewNop())
	return students, cycles, svc
}

func TestEnrollmentTransitionTable(t *testing.T) {
	tests := []struct {
		from    models.EnrollmentStatus
		to      models.EnrollmentStatus
		allowed bool
	}{
		{models.StatusInquiry, models.StatusLevelTest, true},
		{models.StatusInquiry, models.StatusActive, true},
		{models.StatusInquiry, models.StatusStopped, true},
		{models.StatusLevelTest, models.StatusActive, true},
		{models.StatusLevelTest, models.StatusStopped, true},
		{models.StatusLevelTest, models.StatusInquiry, false},
		{models.StatusActive, models.StatusStopped, true},
		{models.StatusActive, models.StatusInquiry, false},
		{models.StatusActive, models.StatusLevelTest, false},
		{models.StatusStopped, models.StatusActive, true},
		{models.StatusStopped, models.StatusInquiry, false},
		{models.StatusStopped, models.StatusLevelTest, false},
		{models.StatusInquiry, models.StatusInquiry, false},
		{models.StatusActive, models.StatusActive, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestEnrollmentServiceChangeStatus(t *testing.T) {
	students, _, svc := newEnrollmentFixture(models.StatusInquiry)

	entry, err := svc.ChangeStatus(context.Background(), "s1", ChangeStatusRequest{ToStatus: models.StatusLevelTest})
	require.NoError(t, err)
	require.NotNil(t, entry.FromStatus)
	assert.Equal(t, models.StatusInquiry, *entry.FromStatus)
	assert.Equal(t, models.StatusLevelTest, entry.ToStatus)
	assert.Equal(t, models.StatusLevelTest, students.students["s1"].EnrollmentStatus)
}

func TestEnrollmentServiceRejectsInvalidTransition(t *testing.T) {
	students, _, svc := newEnrollmentFixture(models.StatusActive)

	_, err := svc.ChangeStatus(context.Background(), "s1", ChangeStatusRequest{ToStatus: models.StatusLevelTest})
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	assert.Empty(t, students.changed)
}

func TestEnrollmentServiceActivationStartsCycle(t *testing.T) {
	students, cycles, svc := newEnrollmentFixture(models.StatusLevelTest)
	startDate := day(2026, 3, 2)

	entry, err := svc.ChangeStatus(context.Background(), "s1", ChangeStatusRequest{ToStatus: models.StatusActive, StartDate: &startDate})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, entry.ToStatus)
	require.Len(t, cycles.started, 1)
	assert.Equal(t, startDate, cycles.started[0])
	assert.Len(t, students.changed, 1)
}

func TestEnrollmentServiceActivationWithoutStartDateSkipsCycle(t *testing.T) {
	students, cycles, svc := newEnrollmentFixture(models.StatusLevelTest)

	entry, err := svc.ChangeStatus(context.Background(), "s1", ChangeStatusRequest{ToStatus: models.StatusActive})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, entry.ToStatus)
	assert.Equal(t, models.StatusActive, students.students["s1"].EnrollmentStatus)

	// Activation without a start date leaves billing dormant.
	assert.Empty(t, cycles.started)
}

func TestEnrollmentServiceActivationKeepsOpenCycle(t *testing.T) {
	students, cycles, svc := newEnrollmentFixture(models.StatusStopped)
	cycles.err = appErrors.ErrCycleInProgress
	startDate := day(2026, 3, 2)

	// An already open cycle is not an error; the status still changes.
	entry, err := svc.ChangeStatus(context.Background(), "s1", ChangeStatusRequest{ToStatus: models.StatusActive, StartDate: &startDate})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, entry.ToStatus)
	assert.Len(t, students.changed, 1)
}

func TestEnrollmentServiceActivationAbortsWhenCycleFails(t *testing.T) {
	students, cycles, svc := newEnrollmentFixture(models.StatusStopped)
	cycles.err = appErrors.ErrPreviousCycleUnpaid
	startDate := day(2026, 3, 2)

	_, err := svc.ChangeStatus(context.Background(), "s1", ChangeStatusRequest{ToStatus: models.StatusActive, StartDate: &startDate})
	assert.Equal(t, appErrors.ErrPreviousCycleUnpaid.Code, appErrors.FromError(err).Code)

	// The status must stay put when the cycle cannot start.
	assert.Empty(t, students.changed)
	assert.Equal(t, models.StatusStopped, students.students["s1"].EnrollmentStatus)
}

func TestEnrollmentServiceStoppingDoesNotStartCycle(t *testing.T) {
	_, cycles, svc := newEnrollmentFixture(models.StatusActive)

	_, err := svc.ChangeStatus(context.Background(), "s1", ChangeStatusRequest{ToStatus: models.StatusStopped})
	require.NoError(t, err)
	assert.Empty(t, cycles.started)
}

func TestEnrollmentServiceChangeStatusUnknownStudent(t *testing.T) {
	_, _, svc := newEnrollmentFixture(models.StatusInquiry)

	_, err := svc.ChangeStatus(context.Background(), "ghost", ChangeStatusRequest{ToStatus: models.StatusActive})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceHistory(t *testing.T) {
	students, _, svc := newEnrollmentFixture(models.StatusActive)
	students.history = []models.EnrollmentHistory{
		{ID: "h2", StudentID: "s1", ToStatus: models.StatusActive},
		{ID: "h1", StudentID: "s1", ToStatus: models.StatusInquiry},
	}

	entries, err := svc.History(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
