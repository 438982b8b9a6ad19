package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/config"
	"github.com/stemsi/exstem-attempt/internal/response"
)

// RateLimiter is a fixed-window per-IP limiter whose counters live in Redis,
// so every replica behind the load balancer shares the same budget.
type RateLimiter struct {
	rdb    *redis.Client
	scope  string
	limit  int64
	window time.Duration
	log    zerolog.Logger
	now    func() time.Time
}

// NewRateLimiter creates a RateLimiter (e.g., 10 requests per minute).
func NewRateLimiter(rdb *redis.Client, scope string, limit int, window time.Duration, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		rdb:    rdb,
		scope:  scope,
		limit:  int64(limit),
		window: window,
		log:    log,
		now:    time.Now,
	}
}

// Middleware returns a Gin middleware that rate-limits requests by IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		bucket := rl.now().UnixNano() / int64(rl.window)
		key := config.CacheKey.RateLimitKey(rl.scope, c.ClientIP(), bucket)

		pipe := rl.rdb.TxPipeline()
		incr := pipe.Incr(c.Request.Context(), key)
		pipe.Expire(c.Request.Context(), key, rl.window)
		if _, err := pipe.Exec(c.Request.Context()); err != nil {
			// Fail open: losing Redis must not lock participants out.
			rl.log.Warn().Err(err).Str("scope", rl.scope).Msg("Rate limiter unavailable")
			c.Next()
			return
		}

		used := incr.Val()
		remaining := rl.limit - used
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.FormatInt(rl.limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if used > rl.limit {
			c.Header("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}

		c.Next()
	}
}
