package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Rate limit groups for the public surface.
const (
	GroupLogin  = "LOGIN"
	GroupVerify = "VERIFY"
	GroupUpload = "UPLOAD"
)

type RateLimitRule struct {
	Rate  float64
	Burst int
}

// Limiter decides whether key may proceed under rule.
type Limiter interface {
	Allow(ctx context.Context, key string, rule RateLimitRule) (bool, time.Duration)
}

type RateLimitConfig struct {
	Rules   map[string]RateLimitRule
	Limiter Limiter
}

// DefaultRateLimitRules covers the unauthenticated routes.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		GroupLogin:  {Rate: 0.2, Burst: 10},
		GroupVerify: {Rate: 0.5, Burst: 20},
		GroupUpload: {Rate: 0.5, Burst: 20},
	}
}

// RateLimit returns middleware throttling group per caller. Signed-in RMs are
// keyed by user id, everyone else by client IP.
func RateLimit(cfg RateLimitConfig, group string) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(nil)
	}
	rule, ok := cfg.Rules[group]
	return func(c *gin.Context) {
		if !ok {
			c.Next()
			return
		}
		caller := strings.TrimSpace(c.ClientIP())
		if p, signedIn := PrincipalFromContext(c); signedIn {
			caller = "rm:" + strconv.FormatInt(p.UserID, 10)
		}
		allowed, retryAfter := cfg.Limiter.Allow(c.Request.Context(), caller+"|"+group, rule)
		if allowed {
			c.Next()
			return
		}
		retryAfterSeconds := int(math.Ceil(retryAfter.Seconds()))
		if retryAfterSeconds <= 0 {
			retryAfterSeconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		c.String(http.StatusTooManyRequests, "Too many requests. Please try again later.")
		c.Abort()
	}
}

// RateLimiter is an in-process token bucket limiter.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
	now     func() time.Time
}

type rateBucket struct {
	tokens float64
	last   time.Time
}

func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		buckets: make(map[string]*rateBucket),
		now:     now,
	}
}

func (l *RateLimiter) Allow(_ context.Context, key string, rule RateLimitRule) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}
	if rule.Rate <= 0 || rule.Burst <= 0 {
		return true, 0
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = &rateBucket{
			tokens: float64(rule.Burst),
			last:   now,
		}
		l.buckets[key] = bucket
	}
	elapsed := now.Sub(bucket.last).Seconds()
	if elapsed > 0 {
		bucket.tokens = math.Min(float64(rule.Burst), bucket.tokens+elapsed*rule.Rate)
		bucket.last = now
	}
	if bucket.tokens >= 1 {
		bucket.tokens -= 1
		return true, 0
	}
	waitSec := (1 - bucket.tokens) / rule.Rate
	if waitSec < 0 {
		waitSec = 0
	}
	return false, time.Duration(math.Ceil(waitSec*1000.0)) * time.Millisecond
}
