package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLimiter(t *testing.T) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLimiter(client), srv
}

func TestRedisLimiter_CountsWithinBucket(t *testing.T) {
	l, _ := newRedisLimiter(t)
	ctx := context.Background()

	now := time.Date(2026, 6, 1, 12, 0, 30, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		allowed, _, err := l.Allow(ctx, "otp:request:+15551234567", 5, 5*time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "hit %d should pass", i+1)
	}

	allowed, retryAfter, err := l.Allow(ctx, "otp:request:+15551234567", 5, 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))

	// A different key has its own bucket.
	allowed, _, err = l.Allow(ctx, "otp:request:+15559999999", 5, 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisLimiter_NewBucketResetsBudget(t *testing.T) {
	l, _ := newRedisLimiter(t)
	ctx := context.Background()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_, _, err := l.Allow(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
	}
	allowed, _, err := l.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	now = now.Add(time.Minute)
	allowed, _, err = l.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed, "the next window starts with a clean count")
}

func TestRedisLimiter_FailsOpenToMemory(t *testing.T) {
	l, srv := newRedisLimiter(t)
	ctx := context.Background()
	srv.Close()

	// Redis is down; the in-process fallback still enforces the budget.
	for i := 0; i < 2; i++ {
		allowed, _, err := l.Allow(ctx, "k", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, _, err := l.Allow(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}
