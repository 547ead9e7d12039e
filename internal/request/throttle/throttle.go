// Package throttle gates repeated Submit attempts per user. The document
// upload path is the most expensive thing this service does, so submissions
// get a small fixed-window budget; review and verification operations are
// cheap and are not throttled.
package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
)

// Limiter decides whether a user may attempt another submission now.
type Limiter interface {
	Allow(ctx context.Context, userID id.UserID) error
}

// Nop allows everything. Used when Redis is not configured and in tests that
// don't exercise throttling.
type Nop struct{}

func (Nop) Allow(context.Context, id.UserID) error { return nil }

// RedisLimiter is a fixed-window counter in Redis. INCR+EXPIRE keeps the
// window check atomic across instances sharing the same Redis.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedis(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, userID id.UserID) error {
	key := fmt.Sprintf("vouch:submit:%s", userID)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "submission limiter unavailable")
	}
	if count == 1 {
		// First hit opens the window.
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "submission limiter unavailable")
		}
	}
	if count > int64(l.limit) {
		return dErrors.Newf(dErrors.CodeRateLimited,
			"too many submission attempts; try again within %s", l.window)
	}
	return nil
}
