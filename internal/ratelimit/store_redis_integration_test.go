//go:build integration

package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"landledger/internal/ratelimit"
	"landledger/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *ratelimit.Redis
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = ratelimit.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestLimitWithinWindow() {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		res, err := s.store.Allow(ctx, "ratelimit:otp:10.0.0.1", 3, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(2-i, res.Remaining)
	}
	res, err := s.store.Allow(ctx, "ratelimit:otp:10.0.0.1", 3, time.Minute)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Positive(res.RetryAfter)

	n, err := s.redis.Client.ZCard(ctx, "ratelimit:otp:10.0.0.1").Result()
	s.Require().NoError(err)
	s.EqualValues(3, n, "denied requests are not kept")

	ttl, err := s.redis.Client.PTTL(ctx, "ratelimit:otp:10.0.0.1").Result()
	s.Require().NoError(err)
	s.Positive(ttl)
}

func (s *RedisStoreSuite) TestWindowSlides() {
	ctx := context.Background()
	window := 300 * time.Millisecond
	for i := 0; i < 2; i++ {
		_, err := s.store.Allow(ctx, "slide", 2, window)
		s.Require().NoError(err)
	}
	res, err := s.store.Allow(ctx, "slide", 2, window)
	s.Require().NoError(err)
	s.False(res.Allowed)

	time.Sleep(window + 50*time.Millisecond)
	res, err = s.store.Allow(ctx, "slide", 2, window)
	s.Require().NoError(err)
	s.True(res.Allowed)
}

func (s *RedisStoreSuite) TestConcurrentCallersShareTheLimit() {
	ctx := context.Background()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.store.Allow(ctx, "shared", 5, time.Minute)
			if err != nil {
				return
			}
			if res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.LessOrEqual(allowed, 5)
	s.Positive(allowed)
}
