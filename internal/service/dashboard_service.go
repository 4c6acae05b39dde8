package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-adm-api/internal/models"
	"github.com/noah-isme/tutoring-adm-api/pkg/config"
	appErrors "github.com/noah-isme/tutoring-adm-api/pkg/errors"
)

const dashboardOverviewKey = "dashboard:overview"

type cycleAlertLister interface {
	ListAlerts(ctx context.Context, minCount int) ([]models.CycleAlert, error)
}

type pendingPaymentSummarizer interface {
	PendingSummary(ctx context.Context) (int, int, error)
}

// DashboardService assembles the admin home screen with a short cache.
type DashboardService struct {
	cycles   cycleAlertLister
	payments pendingPaymentSummarizer
	cache    *CacheService
	billing  config.BillingConfig
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewDashboardService constructs DashboardService.
func NewDashboardService(cycles cycleAlertLister, payments pendingPaymentSummarizer, cache *CacheService, billing config.BillingConfig, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if billing.CycleSessions <= 0 {
		billing.CycleSessions = 8
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &DashboardService{cycles: cycles, payments: payments, cache: cache, billing: billing, cacheTTL: cacheTTL, logger: logger}
}

// alertThreshold flags cycles one session away from completion or past it.
func (s *DashboardService) alertThreshold() int {
	return s.billing.CycleSessions - 1
}

// Overview returns cycle alerts and the pending tuition summary.
func (s *DashboardService) Overview(ctx context.Context) (*models.DashboardOverview, error) {
	var cached models.DashboardOverview
	if hit, err := s.cache.Get(ctx, dashboardOverviewKey, &cached); err == nil && hit {
		return &cached, nil
	}

	alerts, err := s.cycles.ListAlerts(ctx, s.alertThreshold())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cycle alerts")
	}
	count, amount, err := s.payments.PendingSummary(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise pending payments")
	}

	overview := &models.DashboardOverview{
		CycleAlerts: alerts,
		PendingPayments: models.PendingPaymentSummary{
			Count:       count,
			TotalAmount: amount,
		},
		GeneratedAt: time.Now().UTC(),
	}
	if err := s.cache.Set(ctx, dashboardOverviewKey, overview, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache dashboard overview", zap.Error(err))
	}
	return overview, nil
}

// Invalidate drops the cached overview after a mutation.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, dashboardOverviewKey); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}
