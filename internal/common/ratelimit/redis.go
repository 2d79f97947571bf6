package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"contestlet-backend/internal/common/logger"
)

// RedisLimiter counts hits in fixed buckets keyed by window start. Increments
// are atomic (INCR + EXPIRE), so multiple instances share one budget. On any
// Redis failure the limiter fails open to an in-process fallback rather than
// blocking auth traffic.
type RedisLimiter struct {
	client   *redis.Client
	fallback *MemoryLimiter
	now      func() time.Time
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{
		client:   client,
		fallback: NewMemoryLimiter(),
		now:      time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	now := l.now()
	bucketStart := now.Truncate(window)
	bucketKey := fmt.Sprintf("ratelimit:%s:%d", key, bucketStart.Unix())

	pipe := l.client.TxPipeline()
	count := pipe.Incr(ctx, bucketKey)
	pipe.Expire(ctx, bucketKey, window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("Rate limit backend unavailable, failing open to memory")
		return l.fallback.Allow(ctx, key, limit, window)
	}

	if count.Val() > int64(limit) {
		retryAfter := bucketStart.Add(window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return false, retryAfter, nil
	}

	return true, 0, nil
}
