package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/silver1334/lianxin/internal/core/port"
)

// RateLimiter enforces a per-client sliding window on sensitive endpoints.
type RateLimiter struct {
	store       port.RateLimitStore
	window      time.Duration
	maxAttempts int
	log         *zap.Logger
	now         func() time.Time
}

// NewRateLimiter builds a limiter backed by the given store.
func NewRateLimiter(store port.RateLimitStore, window time.Duration, maxAttempts int, log *zap.Logger) *RateLimiter {
	return &RateLimiter{store: store, window: window, maxAttempts: maxAttempts, log: log, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (rl *RateLimiter) WithClock(clock func() time.Time) *RateLimiter {
	rl.now = clock
	return rl
}

// Limit keys the window by scope and client IP. The store failing open is
// deliberate: an unreachable limiter must not take authentication down.
func (rl *RateLimiter) Limit(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil || rl.store == nil || rl.maxAttempts <= 0 {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		now := rl.now().UTC()
		key := scope + ":" + c.ClientIP()

		if err := rl.store.TrimWindow(ctx, key, rl.window, now); err != nil {
			rl.log.Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}

		count, err := rl.store.CountAttempts(ctx, key, rl.window, now)
		if err != nil {
			rl.log.Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}

		if count >= rl.maxAttempts {
			retryAfter := rl.window
			if oldest, ok, err := rl.store.OldestAttempt(ctx, key, rl.window, now); err == nil && ok {
				retryAfter = oldest.Add(rl.window).Sub(now)
			}
			c.Header("Retry-After", retryAfterSeconds(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, authErrorResponse{
				Error: "too many requests",
				Code:  "rate_limited",
			})
			return
		}

		if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
			rl.log.Warn("rate limiter record failed", zap.String("scope", scope), zap.Error(err))
		}

		c.Next()
	}
}

func retryAfterSeconds(d time.Duration) string {
	secs := int64(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
