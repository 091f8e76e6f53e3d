// Package redis opens the optional Redis connection used for OTP codes,
// watchlists and rate limit windows.
package redis

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"landledger/internal/platform/config"
)

type Client struct {
	*redis.Client
}

// New returns nil, nil when no URL is configured; callers then keep their
// stores in memory.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	c := &Client{Client: redis.NewClient(opts)}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := c.Health(pingCtx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) Health(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// RegisterPoolMetrics exposes connection pool counters on reg.
func (c *Client) RegisterPoolMetrics(reg prometheus.Registerer) error {
	pool := func(name, help string, read func(*redis.PoolStats) uint32) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "landledger_redis_pool_" + name,
			Help: help,
		}, func() float64 {
			return float64(read(c.PoolStats()))
		})
	}
	for _, col := range []prometheus.Collector{
		pool("hits", "Connections reused from the pool.", func(s *redis.PoolStats) uint32 { return s.Hits }),
		pool("misses", "Connections dialed because the pool was empty.", func(s *redis.PoolStats) uint32 { return s.Misses }),
		pool("timeouts", "Waits for a free connection that timed out.", func(s *redis.PoolStats) uint32 { return s.Timeouts }),
		pool("total_conns", "Open connections.", func(s *redis.PoolStats) uint32 { return s.TotalConns }),
		pool("idle_conns", "Idle connections.", func(s *redis.PoolStats) uint32 { return s.IdleConns }),
	} {
		if err := reg.Register(col); err != nil {
			return fmt.Errorf("register redis pool metrics: %w", err)
		}
	}
	return nil
}
