package middleware

import (
	"context"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"docrequests-backend/internal/shared/telemetry"
)

// RedisLimiter is a fixed-window limiter shared across instances. A rule allows
// Burst hits per window of Burst/Rate seconds.
type RedisLimiter struct {
	Client *redis.Client
	Prefix string
}

// NewRedisLimiter connects using a redis:// URL.
func NewRedisLimiter(url string) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisLimiter{Client: redis.NewClient(opts), Prefix: "ratelimit:"}, nil
}

// Window returns the fixed window length for rule.
func Window(rule RateLimitRule) time.Duration {
	if rule.Rate <= 0 || rule.Burst <= 0 {
		return 0
	}
	ms := math.Ceil(float64(rule.Burst) / rule.Rate * 1000.0)
	return time.Duration(ms) * time.Millisecond
}

// Allow fails open when redis is unreachable.
func (l *RedisLimiter) Allow(ctx context.Context, key string, rule RateLimitRule) (bool, time.Duration) {
	window := Window(rule)
	if l == nil || l.Client == nil || window <= 0 {
		return true, 0
	}
	k := l.Prefix + key
	n, err := l.Client.Incr(ctx, k).Result()
	if err != nil {
		telemetry.Warn("ratelimit.redis_failed", map[string]any{"error": err})
		return true, 0
	}
	if n == 1 {
		if err := l.Client.PExpire(ctx, k, window).Err(); err != nil {
			telemetry.Warn("ratelimit.redis_failed", map[string]any{"error": err})
		}
	}
	if n <= int64(rule.Burst) {
		return true, 0
	}
	ttl, err := l.Client.PTTL(ctx, k).Result()
	if err != nil || ttl <= 0 {
		return false, window
	}
	return false, ttl
}

// Close releases the redis connection pool.
func (l *RedisLimiter) Close() error {
	if l == nil || l.Client == nil {
		return nil
	}
	return l.Client.Close()
}
