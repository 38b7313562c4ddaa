package security

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles expensive endpoints with a per-identity counter in
// Redis. A nil Redis client turns every middleware into a pass-through, so
// single-node deployments without Redis keep working.
type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// PerUserLimit allows at most maxPerMinute requests per user per named
// scope, falling back to the client IP for anonymous requests. Counting is
// fail-open: a Redis error never blocks the request.
func (r *RateLimiter) PerUserLimit(scope string, maxPerMinute int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if r.redis == nil || maxPerMinute <= 0 {
				return next(c)
			}

			identity := c.Request().Header.Get("X-User-ID")
			if identity == "" {
				identity = c.RealIP()
			}
			key := fmt.Sprintf("ratelimit:%s:%s", scope, identity)

			ctx := c.Request().Context()
			count, err := r.redis.Incr(ctx, key).Result()
			if err == nil {
				if count == 1 {
					r.redis.Expire(ctx, key, time.Minute)
				}
				if count > int64(maxPerMinute) {
					return c.JSON(http.StatusTooManyRequests, map[string]string{
						"error": "rate limit exceeded, try again later",
					})
				}
			}
			return next(c)
		}
	}
}
