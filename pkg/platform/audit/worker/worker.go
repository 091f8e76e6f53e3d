// Package worker relays outbox rows to Kafka.
//
// The relay claims a batch of unpublished rows with FOR UPDATE SKIP LOCKED,
// produces them synchronously and marks them published in the same
// transaction, so several relays can run side by side and a crash between
// produce and commit only causes redelivery, never loss.
package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = time.Second
)

// Producer is the subset of *kgo.Client the relay uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

type Relay struct {
	db           *sql.DB
	producer     Producer
	topic        string
	logger       *slog.Logger
	batchSize    int
	pollInterval time.Duration
	published    prometheus.Counter
	failures     prometheus.Counter
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		r.batchSize = n
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(r *Relay) {
		r.pollInterval = d
	}
}

func WithCounters(published, failures prometheus.Counter) Option {
	return func(r *Relay) {
		r.published = published
		r.failures = failures
	}
}

func NewRelay(db *sql.DB, producer Producer, topic string, opts ...Option) *Relay {
	r := &Relay{
		db:           db,
		producer:     producer,
		topic:        topic,
		logger:       slog.Default(),
		batchSize:    defaultBatchSize,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls the outbox until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for {
				n, err := r.RelayBatch(ctx)
				if err != nil {
					if r.failures != nil {
						r.failures.Inc()
					}
					r.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
					break
				}
				if n < r.batchSize {
					break
				}
			}
		}
	}
}

type outboxRow struct {
	id        uuid.UUID
	aggregate string
	eventType string
	payload   []byte
}

// RelayBatch publishes up to one batch of unpublished rows and returns how
// many were published.
func (r *Relay) RelayBatch(ctx context.Context) (int, error) {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin relay tx: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	rows, err := sqlTx.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("select outbox: %w", err)
	}
	var batch []outboxRow
	for rows.Next() {
		var row outboxRow
		if err := rows.Scan(&row.id, &row.aggregate, &row.eventType, &row.payload); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan outbox: %w", err)
		}
		batch = append(batch, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate outbox: %w", err)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	records := make([]*kgo.Record, len(batch))
	ids := make([]uuid.UUID, len(batch))
	for i, row := range batch {
		records[i] = &kgo.Record{
			Topic: r.topic,
			Key:   []byte(row.aggregate),
			Value: row.payload,
			Headers: []kgo.RecordHeader{
				{Key: "event_type", Value: []byte(row.eventType)},
			},
		}
		ids[i] = row.id
	}
	if err := r.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return 0, fmt.Errorf("produce outbox batch: %w", err)
	}

	for _, rowID := range ids {
		if _, err := sqlTx.ExecContext(ctx, `UPDATE outbox SET published_at = $2 WHERE id = $1`, rowID, time.Now()); err != nil {
			return 0, fmt.Errorf("mark outbox published: %w", err)
		}
	}
	if err := sqlTx.Commit(); err != nil {
		return 0, fmt.Errorf("commit relay tx: %w", err)
	}
	if r.published != nil {
		r.published.Add(float64(len(batch)))
	}
	return len(batch), nil
}
