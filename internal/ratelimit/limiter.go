// Package ratelimit throttles unauthenticated endpoints with a sliding
// window per key. Redis holds the windows when configured; an in-memory store
// takes over while Redis is failing.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"landledger/pkg/platform/circuit"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// Limiter checks the primary store and falls back to an in-memory store once
// the breaker opens. While open it keeps probing the primary so the breaker
// can close again.
type Limiter struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

type LimiterOption func(*Limiter)

func WithLogger(logger *slog.Logger) LimiterOption {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) LimiterOption {
	return func(l *Limiter) {
		l.breaker = b
	}
}

// NewLimiter wraps primary. A nil primary uses the fallback store only.
func NewLimiter(primary Store, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		primary:  primary,
		fallback: NewInMemory(),
		breaker:  circuit.New("ratelimit"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if l.primary == nil {
		return l.fallback.Allow(ctx, key, limit, window)
	}

	result, err := l.primary.Allow(ctx, key, limit, window)
	if err != nil {
		_, change := l.breaker.RecordFailure()
		if change.Opened {
			l.logger.WarnContext(ctx, "rate limit store unavailable, using in-memory fallback", "error", err)
		}
		return l.fallback.Allow(ctx, key, limit, window)
	}

	usePrimary, change := l.breaker.RecordSuccess()
	if change.Closed {
		l.logger.InfoContext(ctx, "rate limit store recovered")
	}
	if !usePrimary {
		return l.fallback.Allow(ctx, key, limit, window)
	}
	return result, nil
}

// Degraded reports whether the fallback store is in use.
func (l *Limiter) Degraded() bool {
	return l.primary != nil && l.breaker.IsOpen()
}
