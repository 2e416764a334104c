package middleware

import (
	"fmt"
	"net/http"
	"time"

	"sitecms/internal/metrics"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisRateLimiter is a fixed-window limiter shared by every instance that
// points at the same Redis. Requests are keyed by principal when one is
// attached, otherwise by client IP.
type RedisRateLimiter struct {
	Client   *redis.Client
	Prefix   string
	Limit    int
	Window   time.Duration
	Logger   logrus.FieldLogger
	Now      func() time.Time
	Fallback *RateLimiter
}

func (l *RedisRateLimiter) Middleware() echo.MiddlewareFunc {
	if l.Client == nil {
		if l.Fallback != nil {
			return l.Fallback.Middleware()
		}
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	windowSeconds := int64(l.Window.Seconds())
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	now := l.Now
	if now == nil {
		now = time.Now
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "ip:" + c.RealIP()
			if principal, ok := PrincipalFromContext(c); ok {
				key = "sub:" + principal.ID.String()
			}
			bucket := now().Unix() / windowSeconds
			redisKey := fmt.Sprintf("rl:%s:%s:%d", l.Prefix, key, bucket)

			ctx := c.Request().Context()
			count, err := l.Client.Incr(ctx, redisKey).Result()
			if err != nil {
				// Fail open.
				if l.Logger != nil {
					l.Logger.WithError(err).Warn("redis rate limit check failed")
				}
				return next(c)
			}
			if count == 1 {
				_ = l.Client.Expire(ctx, redisKey, time.Duration(windowSeconds+1)*time.Second).Err()
			}
			if count > int64(l.Limit) {
				metrics.RateLimitRejected.WithLabelValues("redis_" + l.Prefix).Inc()
				c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", windowSeconds))
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
			}
			return next(c)
		}
	}
}
