package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landledger/internal/platform/metrics"
	"landledger/internal/trade/models"
	"landledger/internal/trade/store"
	id "landledger/pkg/domain"
)

type failingLister struct{}

func (failingLister) ListByStatus(context.Context, models.Status) ([]*models.BuyRequest, error) {
	return nil, errors.New("db down")
}

func TestStaleReviewMonitor_Check(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	requests := store.NewInMemory()

	confirmAt := func(at time.Time) *models.BuyRequest {
		r, err := models.NewBuyRequest(id.NewBuyRequestID(), id.NewLandID(), id.NewUserID(), id.NewUserID(), 1000, "", at)
		require.NoError(t, err)
		r.ApplyConfirm(at)
		require.NoError(t, requests.Create(ctx, r))
		return r
	}
	confirmAt(now.Add(-96 * time.Hour))
	confirmAt(now.Add(-73 * time.Hour))
	fresh := confirmAt(now.Add(-time.Hour))

	m := metrics.New(prometheus.NewRegistry())
	monitor := NewStaleReviewMonitor(requests, 72*time.Hour,
		WithMonitorMetrics(m),
		WithClock(func() time.Time { return now }),
	)

	stale, err := monitor.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stale)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.StaleReviews))

	stored, err := requests.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingAdminApproval, stored.Status, "monitor never changes state")
}

func TestStaleReviewMonitor_CheckError(t *testing.T) {
	monitor := NewStaleReviewMonitor(failingLister{}, time.Hour)
	_, err := monitor.Check(context.Background())
	assert.Error(t, err)
}

func TestStaleReviewMonitor_RunRejectsBadSchedule(t *testing.T) {
	monitor := NewStaleReviewMonitor(store.NewInMemory(), time.Hour, WithSchedule("not a schedule"))
	err := monitor.Run(context.Background())
	assert.Error(t, err)
}

func TestStaleReviewMonitor_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	monitor := NewStaleReviewMonitor(store.NewInMemory(), time.Hour, WithSchedule("@every 1s"))

	done := make(chan error, 1)
	go func() { done <- monitor.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}
