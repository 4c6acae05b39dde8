package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-adm-api/internal/models"
	"github.com/noah-isme/tutoring-adm-api/pkg/config"
	appErrors "github.com/noah-isme/tutoring-adm-api/pkg/errors"
)

type mockAlertLister struct {
	alerts   []models.CycleAlert
	minCount int
	calls    int
}

func (m *mockAlertLister) ListAlerts(ctx context.Context, minCount int) ([]models.CycleAlert, error) {
	m.minCount = minCount
	m.calls++
	return m.alerts, nil
}

type mockPendingSummary struct {
	count  int
	amount int
}

func (m *mockPendingSummary) PendingSummary(ctx context.Context) (int, int, error) {
	return m.count, m.amount, nil
}

type memoryCacheRepo struct {
	store map[string]interface{}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if v, ok := m.store[key]; ok {
		if overview, ok := v.(*models.DashboardOverview); ok {
			if target, ok := dest.(*models.DashboardOverview); ok {
				*target = *overview
				return nil
			}
		}
	}
	return appErrors.ErrCacheMiss
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.store == nil {
		m.store = make(map[string]interface{})
	}
	m.store[key] = value
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.store = make(map[string]interface{})
	return nil
}

func TestDashboardServiceOverview(t *testing.T) {
	cycles := &mockAlertLister{alerts: []models.CycleAlert{
		{StudentID: "s1", StudentName: "김민준", CycleID: "c1", CycleNumber: 2, CurrentCount: 7, TotalCount: 8, Status: models.CycleInProgress},
	}}
	payments := &mockPendingSummary{count: 2, amount: 440000}
	cache := NewCacheService(nil, nil, time.Minute, zap.NewNop(), false)
	svc := NewDashboardService(cycles, payments, cache, config.BillingConfig{CycleSessions: 8}, time.Minute, zap.NewNop())

	overview, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Len(t, overview.CycleAlerts, 1)
	assert.Equal(t, 2, overview.PendingPayments.Count)
	assert.Equal(t, 440000, overview.PendingPayments.TotalAmount)
	assert.Equal(t, 7, cycles.minCount)
	assert.False(t, overview.GeneratedAt.IsZero())
}

func TestDashboardServiceOverviewUsesCache(t *testing.T) {
	cycles := &mockAlertLister{}
	payments := &mockPendingSummary{count: 1, amount: 220000}
	cache := NewCacheService(&memoryCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	svc := NewDashboardService(cycles, payments, cache, config.BillingConfig{CycleSessions: 8}, time.Minute, zap.NewNop())

	_, err := svc.Overview(context.Background())
	require.NoError(t, err)
	_, err = svc.Overview(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, cycles.calls)
}

func TestDashboardServiceInvalidate(t *testing.T) {
	cycles := &mockAlertLister{}
	payments := &mockPendingSummary{}
	repo := &memoryCacheRepo{}
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	svc := NewDashboardService(cycles, payments, cache, config.BillingConfig{CycleSessions: 8}, time.Minute, zap.NewNop())

	_, err := svc.Overview(context.Background())
	require.NoError(t, err)
	svc.Invalidate(context.Background())

	_, err = svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, cycles.calls)
}
