// internal/pkg/session/rate_limiter.go
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	xerrors "session-service/internal/pkg/errors"
)

// RateLimiter is a fixed-window counter on INCR/EXPIRE.
type RateLimiter struct {
	client redis.UniversalClient
	max    int64
	window time.Duration
}

func NewRateLimiter(client redis.UniversalClient, max int64, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, max: max, window: window}
}

// Allow counts an attempt for scope/subject and reports whether it is within
// the limit, with the attempts left in the current window.
func (r *RateLimiter) Allow(ctx context.Context, scope, subject string) (bool, int64, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", scope, subject)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, xerrors.Unavailable(fmt.Errorf("failed to increment %s attempts: %w", scope, err))
	}

	// Set expiration on first attempt
	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window).Err(); err != nil {
			return false, 0, xerrors.Unavailable(fmt.Errorf("failed to set %s window: %w", scope, err))
		}
	}

	remaining := r.max - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= r.max, remaining, nil
}

// Reset clears the counter for scope/subject.
func (r *RateLimiter) Reset(ctx context.Context, scope, subject string) error {
	key := fmt.Sprintf("ratelimit:%s:%s", scope, subject)
	return r.client.Del(ctx, key).Err()
}
