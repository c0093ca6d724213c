//go:build integration

package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/info-evry/astro-join/internal/ratelimit"
	"github.com/info-evry/astro-join/pkg/testutil/containers"
)

type RedisLimiterSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisLimiterSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLimiterSuite))
}

func (s *RedisLimiterSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *RedisLimiterSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLimiterSuite) TestFixedWindow() {
	ctx := context.Background()
	limiter := ratelimit.NewRedisLimiter(s.redis.Client, 3, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "1.2.3.4")
		s.Require().NoError(err)
		s.True(allowed, "request %d should pass", i+1)
	}

	allowed, err := limiter.Allow(ctx, "1.2.3.4")
	s.Require().NoError(err)
	s.False(allowed, "budget exhausted for the window")

	allowed, err = limiter.Allow(ctx, "5.6.7.8")
	s.Require().NoError(err)
	s.True(allowed, "keys have independent budgets")
}

func (s *RedisLimiterSuite) TestWindowExpiry() {
	ctx := context.Background()
	limiter := ratelimit.NewRedisLimiter(s.redis.Client, 1, time.Second)

	allowed, err := limiter.Allow(ctx, "expiry")
	s.Require().NoError(err)
	s.True(allowed)

	allowed, err = limiter.Allow(ctx, "expiry")
	s.Require().NoError(err)
	s.False(allowed)

	time.Sleep(1500 * time.Millisecond)

	allowed, err = limiter.Allow(ctx, "expiry")
	s.Require().NoError(err)
	s.True(allowed, "window expired, budget refreshed")
}
