// Package notify delivers user-facing notifications (buy request updates,
// transfer outcomes, OTP codes) without blocking the workflow that raised
// them.
package notify

import (
	"context"
	"log/slog"

	"landledger/internal/platform/metrics"
	"landledger/internal/users/models"
	id "landledger/pkg/domain"
	"landledger/pkg/requestcontext"
)

// Message is addressed to a user; the dispatcher resolves the email address
// when it is sent.
type Message struct {
	UserID  id.UserID
	Subject string
	Body    string
}

type Directory interface {
	GetUser(ctx context.Context, userID id.UserID) (*models.User, error)
}

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Dispatcher queues messages in a bounded channel and sends them from Run.
// Notify drops the message when the queue is full.
type Dispatcher struct {
	directory Directory
	sender    Sender
	queue     chan Message
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func NewDispatcher(directory Directory, sender Sender, buffer int, opts ...Option) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	d := &Dispatcher{
		directory: directory,
		sender:    sender,
		queue:     make(chan Message, buffer),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify enqueues msg and returns immediately.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) {
	select {
	case d.queue <- msg:
	default:
		if d.metrics != nil {
			d.metrics.NotificationsDropped.Inc()
		}
		d.logger.WarnContext(ctx, "notification dropped, queue full",
			"user_id", msg.UserID.String(),
			"subject", msg.Subject,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

// Run sends queued messages until ctx is done, then drains what is left.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		case <-ctx.Done():
			d.drain()
			return nil
		}
	}
}

func (d *Dispatcher) drain() {
	ctx := context.Background()
	for {
		select {
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	user, err := d.directory.GetUser(ctx, msg.UserID)
	if err != nil {
		d.record("lookup_failed")
		d.logger.WarnContext(ctx, "notification recipient lookup failed",
			"user_id", msg.UserID.String(),
			"error", err,
		)
		return
	}
	if err := d.sender.Send(ctx, user.Email, msg.Subject, msg.Body); err != nil {
		d.record("failed")
		d.logger.WarnContext(ctx, "notification send failed",
			"user_id", msg.UserID.String(),
			"error", err,
		)
		return
	}
	d.record("sent")
}

func (d *Dispatcher) record(result string) {
	if d.metrics != nil {
		d.metrics.NotificationsSent.WithLabelValues(result).Inc()
	}
}

// Pending reports how many messages are waiting.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}
