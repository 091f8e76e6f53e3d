// Package integrity surfaces disagreements between a buy request and the
// parcel it locks. A violation is logged, audited and counted; nothing is
// repaired automatically.
package integrity

import (
	"context"
	"log/slog"

	"landledger/internal/platform/metrics"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	audit "landledger/pkg/platform/audit"
	"landledger/pkg/requestcontext"
)

type SecurityPublisher interface {
	Emit(ctx context.Context, event audit.SecurityEvent)
}

type Reporter struct {
	logger    *slog.Logger
	publisher SecurityPublisher
	metrics   *metrics.Metrics
}

// NewReporter accepts a nil publisher or metrics; the log line is always written.
func NewReporter(logger *slog.Logger, publisher SecurityPublisher, m *metrics.Metrics) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{logger: logger, publisher: publisher, metrics: m}
}

// Violation identifies the aggregates involved in a failed check.
type Violation struct {
	Operation string
	RequestID id.BuyRequestID
	LandID    id.LandID
	Actor     id.UserID
}

// Check reports err when it carries CodeIntegrityViolation and returns it
// unchanged either way.
func (r *Reporter) Check(ctx context.Context, v Violation, err error) error {
	if r == nil || !dErrors.HasCode(err, dErrors.CodeIntegrityViolation) {
		return err
	}
	reason := dErrors.MessageOf(err)
	r.logger.ErrorContext(ctx, "integrity violation",
		"operation", v.Operation,
		"buy_request_id", v.RequestID.String(),
		"land_id", v.LandID.String(),
		"actor_id", v.Actor.String(),
		"reason", reason,
		"request_id", requestcontext.RequestID(ctx),
	)
	r.metrics.RecordIntegrityViolation(v.Operation)
	if r.publisher != nil {
		r.publisher.Emit(ctx, audit.SecurityEvent{
			Timestamp: requestcontext.Now(ctx),
			Subject:   v.RequestID.String(),
			Action:    audit.EventIntegrityViolation,
			Reason:    v.Operation + ": land " + v.LandID.String() + ": " + reason,
			RequestID: requestcontext.RequestID(ctx),
			ActorID:   v.Actor.String(),
			Severity:  audit.SeverityCritical,
		})
	}
	return err
}
