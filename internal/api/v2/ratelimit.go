// internal/api/v2/ratelimit.go
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware applies a per-client token bucket to mutating
// endpoints. Limiters live in an expiring cache so idle clients are
// evicted instead of accumulating forever.
func (c *Controller) RateLimitMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if !c.Settings.RateLimit.Enabled {
				return next(ctx)
			}

			if !c.clientLimiter(ctx.RealIP()).Allow() {
				if c.metrics != nil {
					c.metrics.HTTP.RateLimitedTotal.Inc()
				}
				ctx.Response().Header().Set("Retry-After", "1")
				return c.HandleError(ctx, nil, "Too many requests", http.StatusTooManyRequests)
			}

			return next(ctx)
		}
	}
}

// clientLimiter returns the limiter for a client IP, creating it on
// first sight. Each access refreshes the cache expiry.
func (c *Controller) clientLimiter(ip string) *rate.Limiter {
	key := "ratelimit:" + ip
	if cached, found := c.limiters.Get(key); found {
		limiter := cached.(*rate.Limiter)
		c.limiters.SetDefault(key, limiter)
		return limiter
	}

	limiter := rate.NewLimiter(rate.Limit(c.Settings.RateLimit.RPS), c.Settings.RateLimit.Burst)
	c.limiters.SetDefault(key, limiter)
	return limiter
}
