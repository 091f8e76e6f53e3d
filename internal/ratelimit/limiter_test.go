package ratelimit_test

//go:generate mockgen -source=limiter.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"landledger/internal/ratelimit"
	"landledger/internal/ratelimit/mocks"
	"landledger/pkg/platform/circuit"
)

type LimiterSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	primary *mocks.MockStore
	limiter *ratelimit.Limiter
}

func TestLimiterSuite(t *testing.T) {
	suite.Run(t, new(LimiterSuite))
}

func (s *LimiterSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.primary = mocks.NewMockStore(s.ctrl)
	s.limiter = ratelimit.NewLimiter(s.primary,
		ratelimit.WithBreaker(circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(2))),
	)
}

func (s *LimiterSuite) allow() *ratelimit.Result {
	res, err := s.limiter.Allow(context.Background(), "k", 1, time.Minute)
	s.Require().NoError(err)
	return res
}

func (s *LimiterSuite) TestPrimaryResultIsReturned() {
	s.primary.EXPECT().Allow(gomock.Any(), "k", 1, time.Minute).
		Return(&ratelimit.Result{Allowed: false, Limit: 1}, nil)

	s.False(s.allow().Allowed)
	s.False(s.limiter.Degraded())
}

func (s *LimiterSuite) TestFailuresUseFallbackAndOpenBreaker() {
	s.primary.EXPECT().Allow(gomock.Any(), "k", 1, time.Minute).
		Return(nil, errors.New("connection refused")).Times(2)

	s.True(s.allow().Allowed)
	s.False(s.limiter.Degraded())
	s.False(s.allow().Allowed, "fallback enforces the limit")
	s.True(s.limiter.Degraded())
}

func (s *LimiterSuite) TestBreakerClosesAfterPrimaryRecovers() {
	gomock.InOrder(
		s.primary.EXPECT().Allow(gomock.Any(), "k", 1, time.Minute).
			Return(nil, errors.New("connection refused")).Times(2),
		s.primary.EXPECT().Allow(gomock.Any(), "k", 1, time.Minute).
			Return(&ratelimit.Result{Allowed: true, Limit: 1}, nil).Times(2),
	)
	s.allow()
	s.allow()
	s.Require().True(s.limiter.Degraded())

	s.False(s.allow().Allowed, "still answered by the fallback")
	s.True(s.allow().Allowed, "answered by the primary once closed")
	s.False(s.limiter.Degraded())
}

func TestLimiterWithoutPrimary(t *testing.T) {
	limiter := ratelimit.NewLimiter(nil)
	res, err := limiter.Allow(context.Background(), "k", 1, time.Minute)
	if err != nil || !res.Allowed {
		t.Fatalf("first request should pass: %v %v", res, err)
	}
	res, _ = limiter.Allow(context.Background(), "k", 1, time.Minute)
	if res.Allowed {
		t.Fatal("second request should be limited")
	}
}
