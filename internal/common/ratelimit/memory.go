package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps per-key hit timestamps in process memory. Safe for
// concurrent use. Stale keys are evicted lazily on access.
type MemoryLimiter struct {
	mu   sync.Mutex
	hits map[string][]time.Time
	now  func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		hits: make(map[string][]time.Time),
		now:  time.Now,
	}
}

// NewMemoryLimiterWithClock is used by tests to control time.
func NewMemoryLimiterWithClock(now func() time.Time) *MemoryLimiter {
	return &MemoryLimiter{
		hits: make(map[string][]time.Time),
		now:  now,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)

	kept := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit {
		l.hits[key] = kept
		retryAfter := kept[0].Add(window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return false, retryAfter, nil
	}

	l.hits[key] = append(kept, now)
	return true, 0, nil
}
