package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/opentenancy/caseintel/internal/infrastructure/database/redis"
	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/pkg/errors"
	"github.com/opentenancy/caseintel/pkg/types/common"
)

const (
	headerRateLimitLimit     = "X-RateLimit-Limit"
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRateLimitReset     = "X-RateLimit-Reset"
)

// RateLimitInfo describes the limiter state for one key after a decision.
type RateLimitInfo struct {
	// Limit is the request budget per window.
	Limit int
	// Remaining is the budget left in the current window.
	Remaining int
	// ResetAt is when the current window ends.
	ResetAt time.Time
}

// RateLimiter decides whether the request identified by key may proceed.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, RateLimitInfo, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Redis fixed-window limiter
// ─────────────────────────────────────────────────────────────────────────────

// RedisCounterLimiter counts requests per key in fixed one-minute windows
// backed by redis, so the budget is shared across API server replicas.
// Each window lives under its own key and expires on its own; there is no
// cleanup loop.
type RedisCounterLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedisCounterLimiter returns a limiter allowing perMinute requests per
// key per minute.
func NewRedisCounterLimiter(client *redis.Client, perMinute int) *RedisCounterLimiter {
	return &RedisCounterLimiter{
		client: client,
		limit:  perMinute,
		window: time.Minute,
		prefix: "ratelimit:",
	}
}

// Allow increments the counter for the key's current window and compares it
// against the budget. The INCR and EXPIRE ride one pipeline round trip.
func (l *RedisCounterLimiter) Allow(ctx context.Context, key string) (bool, RateLimitInfo, error) {
	windowStart := time.Now().Truncate(l.window)
	resetAt := windowStart.Add(l.window)
	redisKey := fmt.Sprintf("%s%s:%d", l.prefix, key, windowStart.Unix())

	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, RateLimitInfo{}, errors.Wrap(err, errors.ErrCodeCacheError, "rate limit counter unavailable")
	}

	count := int(incr.Val())
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	info := RateLimitInfo{Limit: l.limit, Remaining: remaining, ResetAt: resetAt}
	return count <= l.limit, info, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

// RateLimitConfig controls the rate limiting middleware.
type RateLimitConfig struct {
	Limiter RateLimiter

	// KeyFunc extracts the limiter key from the request. Defaults to the
	// client IP.
	KeyFunc func(c *gin.Context) string

	// SkipPaths bypass the limiter entirely.
	SkipPaths []string
}

// RateLimit enforces the request budget and stamps the X-RateLimit-* headers.
// When the limiter itself fails the request is let through: an unreachable
// redis must not take the API down with it.
func RateLimit(log logging.Logger, cfg RateLimitConfig) gin.HandlerFunc {
	if log == nil {
		log = logging.NewNopLogger()
	}
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		key := keyFunc(c)
		allowed, info, err := cfg.Limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Warn("rate limiter unavailable, allowing request",
				logging.String("request_id", RequestIDFromContext(c)),
				logging.String("key", key),
				logging.Err(err),
			)
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set(headerRateLimitLimit, strconv.Itoa(info.Limit))
		h.Set(headerRateLimitRemaining, strconv.Itoa(info.Remaining))
		h.Set(headerRateLimitReset, strconv.FormatInt(info.ResetAt.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(info.ResetAt).Seconds()) + 1
			h.Set("Retry-After", strconv.Itoa(retryAfter))

			resp := common.NewErrorResponse(
				errors.ErrCodeTooManyRequests.String(),
				"request budget exhausted, retry later",
			)
			resp.RequestID = RequestIDFromContext(c)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, resp)
			return
		}

		c.Next()
	}
}
