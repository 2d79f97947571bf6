package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_SlidingWindow(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiterWithClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, err := l.Allow(ctx, "otp:request:+15551234567", 3, 5*time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "hit %d should pass", i+1)
	}

	allowed, retryAfter, err := l.Allow(ctx, "otp:request:+15551234567", 3, 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 5*time.Minute, retryAfter, "all hits landed at the same instant")

	// Keys are independent.
	allowed, _, err = l.Allow(ctx, "otp:request:+15559999999", 3, 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	// The window slides; once the oldest hit ages out a new one fits.
	now = now.Add(5*time.Minute + time.Second)
	allowed, _, err = l.Allow(ctx, "otp:request:+15551234567", 3, 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestMemoryLimiter_RetryAfterCountsFromOldestHit(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiterWithClock(func() time.Time { return now })
	ctx := context.Background()

	_, _, err := l.Allow(ctx, "k", 2, 10*time.Minute)
	require.NoError(t, err)

	now = now.Add(4 * time.Minute)
	_, _, err = l.Allow(ctx, "k", 2, 10*time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	allowed, retryAfter, err := l.Allow(ctx, "k", 2, 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 4*time.Minute, retryAfter, "the oldest hit falls out in four minutes")
}

func TestMemoryLimiter_RetryAfterFloor(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiterWithClock(func() time.Time { return now })
	ctx := context.Background()

	_, _, err := l.Allow(ctx, "k", 1, 2*time.Second)
	require.NoError(t, err)

	now = now.Add(1900 * time.Millisecond)
	allowed, retryAfter, err := l.Allow(ctx, "k", 1, 2*time.Second)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, time.Second, retryAfter, "retry hints are floored to one second")
}
