package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"landledger/internal/platform/metrics"
	"landledger/internal/trade/models"
)

type PendingLister interface {
	ListByStatus(ctx context.Context, status models.Status) ([]*models.BuyRequest, error)
}

// StaleReviewMonitor reports transactions that have waited for an admin
// decision longer than maxAge. It never changes their state.
type StaleReviewMonitor struct {
	requests PendingLister
	maxAge   time.Duration
	schedule string
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

type MonitorOption func(*StaleReviewMonitor)

func WithMonitorLogger(logger *slog.Logger) MonitorOption {
	return func(m *StaleReviewMonitor) {
		m.logger = logger
	}
}

func WithMonitorMetrics(mt *metrics.Metrics) MonitorOption {
	return func(m *StaleReviewMonitor) {
		m.metrics = mt
	}
}

// WithSchedule sets the cron spec, e.g. "@every 1h" or "0 * * * *".
func WithSchedule(spec string) MonitorOption {
	return func(m *StaleReviewMonitor) {
		m.schedule = spec
	}
}

func WithClock(now func() time.Time) MonitorOption {
	return func(m *StaleReviewMonitor) {
		m.now = now
	}
}

func NewStaleReviewMonitor(requests PendingLister, maxAge time.Duration, opts ...MonitorOption) *StaleReviewMonitor {
	m := &StaleReviewMonitor{
		requests: requests,
		maxAge:   maxAge,
		schedule: "@every 1h",
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check counts stale reviews and publishes the count as a gauge.
func (m *StaleReviewMonitor) Check(ctx context.Context) (int, error) {
	pending, err := m.requests.ListByStatus(ctx, models.StatusPendingAdminApproval)
	if err != nil {
		return 0, fmt.Errorf("list pending reviews: %w", err)
	}
	cutoff := m.now().Add(-m.maxAge)
	stale := 0
	for _, r := range pending {
		if r.UpdatedAt.After(cutoff) {
			continue
		}
		stale++
		m.logger.WarnContext(ctx, "admin review overdue",
			"buy_request_id", r.ID.String(),
			"land_id", r.LandID.String(),
			"waiting_since", r.UpdatedAt,
		)
	}
	if m.metrics != nil {
		m.metrics.StaleReviews.Set(float64(stale))
	}
	return stale, nil
}

// Run checks on the configured schedule until ctx is cancelled.
func (m *StaleReviewMonitor) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(m.schedule, func() {
		if _, err := m.Check(ctx); err != nil {
			m.logger.ErrorContext(ctx, "stale review check failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule stale review check: %w", err)
	}

	m.logger.InfoContext(ctx, "stale review monitor started", "schedule", m.schedule, "max_age", m.maxAge)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
