package ratelimit

import (
	"context"
	"time"
)

// Limiter is a sliding-window counter keyed by arbitrary strings.
type Limiter interface {
	// Allow records one hit for key and reports whether it stays within
	// limit hits per window. When denied, retryAfter is the time until the
	// oldest counted hit falls out of the window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, retryAfter time.Duration, err error)
}
