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
	"github.com/noah-isme/tutoring-adm-api/pkg/config"
	appErrors "github.com/noah-isme/tutoring-adm-api/pkg/errors"
)

type mockCycleRepo struct {
	cycles       map[string]models.Cycle
	inProgress   map[string]string // studentID -> cycleID
	latest       map[string]string
	unpaidExists bool
	unpaid       bool
	counts       map[string]int
	created      *models.Cycle
	createdRows  []models.Attendance
	completed    map[string]time.Time
	storedCounts map[string]int
}

func (m *mockCycleRepo) FindByID(ctx context.Context, id string) (*models.Cycle, error) {
	if c, ok := m.cycles[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCycleRepo) FindInProgressByStudent(ctx context.Context, studentID string) (*models.Cycle, error) {
	if id, ok := m.inProgress[studentID]; ok {
		c := m.cycles[id]
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCycleRepo) FindLatestByStudent(ctx context.Context, studentID string) (*models.Cycle, error) {
	if id, ok := m.latest[studentID]; ok {
		c := m.cycles[id]
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCycleRepo) CreateWithSchedule(ctx context.Context, cycle *models.Cycle, rows []models.Attendance) error {
	cycle.ID = "new-cycle"
	m.created = cycle
	m.createdRows = rows
	return nil
}

func (m *mockCycleRepo) CountCountable(ctx context.Context, cycleID string) (int, error) {
	return m.counts[cycleID], nil
}

func (m *mockCycleRepo) UpdateCount(ctx context.Context, cycleID string, count int) error {
	if m.storedCounts == nil {
		m.storedCounts = make(map[string]int)
	}
	m.storedCounts[cycleID] = count
	return nil
}

func (m *mockCycleRepo) MarkCompleted(ctx context.Context, cycleID string, completedAt time.Time) error {
	if m.completed == nil {
		m.completed = make(map[string]time.Time)
	}
	m.completed[cycleID] = completedAt
	return nil
}

func (m *mockCycleRepo) HasUnpaid(ctx context.Context, cycleID string) (bool, bool, error) {
	return m.unpaidExists, m.unpaid, nil
}

type mockCycleStudents struct {
	students map[string]*models.Student
}

func (m *mockCycleStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockCycleGroups struct {
	groups map[string]*models.ClassGroup
}

func (m *mockCycleGroups) FindByID(ctx context.Context, id string) (*models.ClassGroup, error) {
	if g, ok := m.groups[id]; ok {
		return g, nil
	}
	return nil, sql.ErrNoRows
}

type mockEnsurer struct {
	payment *models.Payment
	err     error
	called  bool
}

func (m *mockEnsurer) Ensure(ctx context.Context, student *models.Student, cycle *models.Cycle) (*models.Payment, error) {
	m.called = true
	if m.err != nil {
		return nil, m.err
	}
	if m.payment != nil {
		return m.payment, nil
	}
	return &models.Payment{ID: "pay-1", StudentID: student.ID, CycleID: cycle.ID, Status: models.PaymentPending}, nil
}

func monWedGroup() *models.ClassGroup {
	return &models.ClassGroup{ID: "g1", Name: "월수 6시", DaysOfWeek: []string{"mon", "wed"}, StartTime: "18:00", DurationMinutes: 90, Active: true}
}

func newCycleFixture() (*mockCycleRepo, *mockCycleStudents, *mockCycleGroups, *mockEnsurer, *CycleService) {
	repo := &mockCycleRepo{cycles: map[string]models.Cycle{}, inProgress: map[string]string{}, latest: map[string]string{}, counts: map[string]int{}}
	students := &mockCycleStudents{students: map[string]*models.Student{
		"s1": {ID: "s1", Name: "김민준", Grade: models.GradeMiddle2, ClassGroupID: "g1", EnrollmentStatus: models.StatusActive},
	}}
	groups := &mockCycleGroups{groups: map[string]*models.ClassGroup{"g1": monWedGroup()}}
	payments := &mockEnsurer{}
	svc := NewCycleService(repo, students, groups, payments, config.BillingConfig{CycleSessions: 8, ScheduleHorizonDays: 365}, zap.NewNop())
	return repo, students, groups, payments, svc
}

func TestCycleServiceStartFirstCycle(t *testing.T) {
	repo, _, _, _, svc := newCycleFixture()

	cycle, err := svc.Start(context.Background(), "s1", day(2026, 3, 2))
	require.NoError(t, err)
	require.NotNil(t, repo.created)

	assert.Equal(t, 1, cycle.CycleNumber)
	assert.Equal(t, 8, cycle.TotalCount)
	assert.Equal(t, 8, cycle.CurrentCount)
	assert.Equal(t, models.CycleInProgress, cycle.Status)
	assert.Equal(t, day(2026, 3, 2), cycle.StartedAt)

	require.Len(t, repo.createdRows, 8)
	assert.Equal(t, day(2026, 3, 2), repo.createdRows[0].Date)
	assert.Equal(t, day(2026, 3, 25), repo.createdRows[7].Date)
	for _, row := range repo.createdRows {
		assert.Equal(t, models.AttendancePresent, row.Status)
		assert.True(t, row.CountsTowardCycle)
	}
}

func TestCycleServiceStartIncrementsNumber(t *testing.T) {
	repo, _, _, _, svc := newCycleFixture()
	repo.cycles["c1"] = models.Cycle{ID: "c1", StudentID: "s1", CycleNumber: 3, Status: models.CycleCompleted}
	repo.latest["s1"] = "c1"

	cycle, err := svc.Start(context.Background(), "s1", day(2026, 3, 2))
	require.NoError(t, err)
	assert.Equal(t, 4, cycle.CycleNumber)
}

func TestCycleServiceStartRefusesOpenCycle(t *testing.T) {
	repo, _, _, _, svc := newCycleFixture()
	repo.cycles["c1"] = models.Cycle{ID: "c1", StudentID: "s1", Status: models.CycleInProgress}
	repo.inProgress["s1"] = "c1"

	_, err := svc.Start(context.Background(), "s1", day(2026, 3, 2))
	assert.Equal(t, appErrors.ErrCycleInProgress.Code, appErrors.FromError(err).Code)
}

func TestCycleServiceStartRefusesUnpaidPrevious(t *testing.T) {
	repo, _, _, _, svc := newCycleFixture()
	repo.cycles["c1"] = models.Cycle{ID: "c1", StudentID: "s1", CycleNumber: 1, Status: models.CycleCompleted}
	repo.latest["s1"] = "c1"
	repo.unpaidExists = true
	repo.unpaid = true

	_, err := svc.Start(context.Background(), "s1", day(2026, 3, 2))
	assert.Equal(t, appErrors.ErrPreviousCycleUnpaid.Code, appErrors.FromError(err).Code)
}

func TestCycleServiceStartAllowsPaidPrevious(t *testing.T) {
	repo, _, _, _, svc := newCycleFixture()
	repo.cycles["c1"] = models.Cycle{ID: "c1", StudentID: "s1", CycleNumber: 1, Status: models.CycleCompleted}
	repo.latest["s1"] = "c1"
	repo.unpaidExists = true
	repo.unpaid = false

	cycle, err := svc.Start(context.Background(), "s1", day(2026, 3, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, cycle.CycleNumber)
}

func TestCycleServiceStartWithoutClassGroup(t *testing.T) {
	_, students, _, _, svc := newCycleFixture()
	students.students["s1"].ClassGroupID = ""

	_, err := svc.Start(context.Background(), "s1", day(2026, 3, 2))
	assert.Equal(t, appErrors.ErrScheduleUnresolvable.Code, appErrors.FromError(err).Code)
}

func TestCycleServiceStartUnknownStudent(t *testing.T) {
	_, _, _, _, svc := newCycleFixture()

	_, err := svc.Start(context.Background(), "missing", day(2026, 3, 2))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCycleServiceRecountUpdatesWithoutCompleting(t *testing.T) {
	repo, _, _, _, svc := newCycleFixture()
	repo.cycles["c1"] = models.Cycle{ID: "c1", StudentID: "s1", CurrentCount: 8, TotalCount: 8, Status: models.CycleInProgress}
	repo.counts["c1"] = 7

	cycle, err := svc.Recount(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 7, cycle.CurrentCount)
	assert.Equal(t, models.CycleInProgress, cycle.Status)
	assert.Equal(t, 7, repo.storedCounts["c1"])
}

func TestCycleServiceRecountNoChange(t *testing.T) {
	repo, _, _, _, svc := newCycleFixture()
	repo.cycles["c1"] = models.Cycle{ID: "c1", StudentID: "s1", CurrentCount: 8, TotalCount: 8, Status: models.CycleInProgress}
	repo.counts["c1"] = 8

	cycle, err := svc.Recount(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 8, cycle.CurrentCount)
	assert.Empty(t, repo.storedCounts)
}

func TestCycleServiceComplete(t *testing.T) {
	repo, _, _, payments, svc := newCycleFixture()
	repo.cycles["c1"] = models.Cycle{ID: "c1", StudentID: "s1", CycleNumber: 1, CurrentCount: 8, TotalCount: 8, Status: models.CycleInProgress}
	repo.counts["c1"] = 8

	cycle, payment, err := svc.Complete(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, models.CycleCompleted, cycle.Status)
	require.NotNil(t, cycle.CompletedAt)
	assert.True(t, payments.called)
	require.NotNil(t, payment)
	assert.Equal(t, models.PaymentPending, payment.Status)
	assert.Contains(t, repo.completed, "c1")
}

func TestCycleServiceCompleteRefusesIncomplete(t *testing.T) {
	repo, _, _, payments, svc := newCycleFixture()
	repo.cycles["c1"] = models.Cycle{ID: "c1", StudentID: "s1", CurrentCount: 8, TotalCount: 8, Status: models.CycleInProgress}
	repo.counts["c1"] = 6

	_, _, err := svc.Complete(context.Background(), "c1")
	assert.Equal(t, appErrors.ErrCycleIncomplete.Code, appErrors.FromError(err).Code)
	assert.False(t, payments.called)
}

func TestCycleServiceCompleteRefusesCompleted(t *testing.T) {
	repo, _, _, payments, svc := newCycleFixture()
	repo.cycles["c1"] = models.Cycle{ID: "c1", StudentID: "s1", CurrentCount: 8, TotalCount: 8, Status: models.CycleCompleted}
	repo.counts["c1"] = 8

	_, _, err := svc.Complete(context.Background(), "c1")
	assert.Equal(t, appErrors.ErrCycleCompleted.Code, appErrors.FromError(err).Code)
	assert.False(t, payments.called)
}

func TestCycleServiceCurrentNoActive(t *testing.T) {
	_, _, _, _, svc := newCycleFixture()

	_, err := svc.Current(context.Background(), "s1")
	assert.Equal(t, appErrors.ErrNoActiveCycle.Code, appErrors.FromError(err).Code)
}
