// Package security provides a non-blocking audit publisher for security
// events such as integrity violations.
//
// Emit never touches the caller's unit of work: events are buffered and a
// background loop writes them with its own context. This is what lets an
// integrity violation be recorded even though the transition that detected it
// is rolled back.
package security

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	audit "landledger/pkg/platform/audit"
	"landledger/pkg/platform/middleware/metadata"
	"landledger/pkg/requestcontext"
)

const (
	defaultFlushInterval = 500 * time.Millisecond
	batchSize            = 100
)

type Publisher struct {
	store         audit.Store
	buffer        *ringBuffer
	logger        *slog.Logger
	flushInterval time.Duration
	dropped       prometheus.Counter
	wake          chan struct{}
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithCapacity(capacity int) Option {
	return func(p *Publisher) {
		p.buffer = newRingBuffer(capacity)
	}
}

func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		p.flushInterval = d
	}
}

// WithDroppedCounter counts events overwritten because the buffer was full.
func WithDroppedCounter(c prometheus.Counter) Option {
	return func(p *Publisher) {
		p.dropped = c
	}
}

func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:         store,
		buffer:        newRingBuffer(defaultCapacity),
		logger:        slog.Default(),
		flushInterval: defaultFlushInterval,
		wake:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit buffers event. It never blocks and never fails. Critical events wake
// the flush loop immediately.
func (p *Publisher) Emit(ctx context.Context, event audit.SecurityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.IP == "" {
		event.IP = metadata.GetClientIP(ctx)
	}
	if event.Device == "" {
		event.Device = metadata.GetDevice(ctx)
	}
	if event.Severity == "" {
		event.Severity = audit.SeverityWarning
	}
	if p.buffer.push(event) && p.dropped != nil {
		p.dropped.Inc()
	}
	if event.Severity == audit.SeverityCritical {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
}

// Run flushes buffered events until ctx is done, then drains what is left.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			p.Flush(drainCtx)
			cancel()
			return nil
		case <-ticker.C:
			p.Flush(ctx)
		case <-p.wake:
			p.Flush(ctx)
		}
	}
}

// Flush writes every buffered event. Events that fail to persist are logged
// and discarded.
func (p *Publisher) Flush(ctx context.Context) {
	for {
		batch := p.buffer.popBatch(batchSize)
		if len(batch) == 0 {
			return
		}
		for _, event := range batch {
			if err := p.store.Append(ctx, event.ToEvent()); err != nil {
				p.logger.ErrorContext(ctx, "failed to persist security audit event",
					"action", event.Action,
					"subject", event.Subject,
					"severity", event.Severity,
					"error", err,
				)
			}
		}
	}
}

// Pending returns the number of buffered events.
func (p *Publisher) Pending() int {
	return p.buffer.len()
}
