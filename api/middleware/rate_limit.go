package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"sitecms/internal/metrics"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimiter is an in-process token bucket per client IP.
type RateLimiter struct {
	name     string
	limiters map[string]*rate.Limiter
	mutex    sync.Mutex
	rate     rate.Limit
	burst    int
	ttl      time.Duration
	lastSeen map[string]time.Time
}

func NewRateLimiter(name string, r rate.Limit, burst int, ttl time.Duration) *RateLimiter {
	return &RateLimiter{
		name:     name,
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rate:     r,
		burst:    burst,
		ttl:      ttl,
	}
}

func (l *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			limiter := l.getLimiter(c.RealIP())
			if !limiter.Allow() {
				metrics.RateLimitRejected.WithLabelValues(l.name).Inc()
				if l.rate > 0 {
					retry := int(math.Ceil(1 / float64(l.rate)))
					c.Response().Header().Set("Retry-After", strconv.Itoa(retry))
				}
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
			}
			return next(c)
		}
	}
}

func (l *RateLimiter) getLimiter(ip string) *rate.Limiter {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := time.Now()
	if limiter, ok := l.limiters[ip]; ok {
		l.lastSeen[ip] = now
		return limiter
	}
	limiter := rate.NewLimiter(l.rate, l.burst)
	l.limiters[ip] = limiter
	l.lastSeen[ip] = now
	l.cleanup(now)
	return limiter
}

func (l *RateLimiter) cleanup(now time.Time) {
	if l.ttl == 0 {
		return
	}
	cutoff := now.Add(-l.ttl)
	for ip, last := range l.lastSeen {
		if last.Before(cutoff) {
			delete(l.lastSeen, ip)
			delete(l.limiters, ip)
		}
	}
}
