package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// LoginAttemptWindow is how long failed attempts are remembered.
	LoginAttemptWindow = 15 * time.Minute
	// LoginAttemptMax is the number of failures allowed in the window.
	LoginAttemptMax = 5
	// LoginAttemptKeyPrefix is the Redis key prefix for failure counters.
	LoginAttemptKeyPrefix = "login_attempts:"
)

// LoginAttempts counts failed sign-ins per account in Redis.
type LoginAttempts struct {
	rdb    *redis.Client
	max    int64
	window time.Duration
}

func NewLoginAttempts(rdb *redis.Client) *LoginAttempts {
	return &LoginAttempts{rdb: rdb, max: LoginAttemptMax, window: LoginAttemptWindow}
}

// Blocked reports whether key has used up its failures.
// Redis errors fail open.
func (l *LoginAttempts) Blocked(ctx context.Context, key string) bool {
	count, err := l.rdb.Get(ctx, LoginAttemptKeyPrefix+key).Int64()
	if err != nil {
		return false
	}
	return count >= l.max
}

// Fail records a failed attempt. The window starts at the first failure.
func (l *LoginAttempts) Fail(ctx context.Context, key string) {
	redisKey := LoginAttemptKeyPrefix + key
	pipe := l.rdb.TxPipeline()
	pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, l.window)
	_, _ = pipe.Exec(ctx)
}

// Reset clears the counter after a successful sign-in.
func (l *LoginAttempts) Reset(ctx context.Context, key string) {
	l.rdb.Del(ctx, LoginAttemptKeyPrefix+key)
}
