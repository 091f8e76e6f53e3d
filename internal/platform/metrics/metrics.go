// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	HTTPLatency *prometheus.HistogramVec

	LandTransitions     *prometheus.CounterVec
	BuyRequestOutcomes  *prometheus.CounterVec
	OwnershipTransfers  prometheus.Counter
	IntegrityViolations *prometheus.CounterVec
	StaleReviews        prometheus.Gauge

	NotificationsSent    *prometheus.CounterVec
	NotificationsDropped prometheus.Counter
	OTPVerifications     *prometheus.CounterVec
	RateLimited          *prometheus.CounterVec

	OutboxPublished       prometheus.Counter
	OutboxFailures        prometheus.Counter
	SecurityAuditsDropped prometheus.Counter
}

// New registers every collector with reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "landledger_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern, method and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		LandTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "landledger_land_transitions_total",
			Help: "Committed land status transitions",
		}, []string{"from", "to"}),
		BuyRequestOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "landledger_buy_request_transitions_total",
			Help: "Committed buy request status changes",
		}, []string{"status"}),
		OwnershipTransfers: f.NewCounter(prometheus.CounterOpts{
			Name: "landledger_ownership_transfers_total",
			Help: "Approved ownership transfers",
		}),
		IntegrityViolations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "landledger_integrity_violations_total",
			Help: "Detected disagreements between buy request and land state",
		}, []string{"operation"}),
		StaleReviews: f.NewGauge(prometheus.GaugeOpts{
			Name: "landledger_stale_admin_reviews",
			Help: "Buy requests waiting for admin approval longer than the configured age",
		}),
		NotificationsSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "landledger_notifications_total",
			Help: "Notification delivery attempts by result",
		}, []string{"result"}),
		NotificationsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "landledger_notifications_dropped_total",
			Help: "Notifications dropped because the dispatch queue was full",
		}),
		OTPVerifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "landledger_otp_verifications_total",
			Help: "OTP verification attempts by result",
		}, []string{"result"}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "landledger_rate_limited_total",
			Help: "Requests refused by a rate limit, by scope",
		}, []string{"scope"}),
		OutboxPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "landledger_outbox_published_total",
			Help: "Outbox rows relayed to Kafka",
		}),
		OutboxFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "landledger_outbox_relay_failures_total",
			Help: "Outbox relay batches that failed",
		}),
		SecurityAuditsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "landledger_audit_security_dropped_total",
			Help: "Security audit events overwritten because the buffer was full",
		}),
	}
}

func (m *Metrics) RecordLandTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.LandTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) RecordBuyRequestStatus(status string) {
	if m == nil {
		return
	}
	m.BuyRequestOutcomes.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordRateLimited(scope string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(scope).Inc()
}

func (m *Metrics) RecordTransfer() {
	if m == nil {
		return
	}
	m.OwnershipTransfers.Inc()
}

func (m *Metrics) RecordIntegrityViolation(operation string) {
	if m == nil {
		return
	}
	m.IntegrityViolations.WithLabelValues(operation).Inc()
}
