package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"leadsdash/utils"
)

// RateLimiter allows each client IP a burst of requests refilled evenly over
// a window. Idle clients are forgotten after ten minutes. Close stops the
// sweeper that forgets them.
type RateLimiter struct {
	clients *utils.MemoryCache
	every   rate.Limit
	burst   int
}

// NewRateLimiter allows requests per duration. A non-positive requests
// disables limiting.
func NewRateLimiter(requests int, duration time.Duration) *RateLimiter {
	if requests <= 0 {
		return &RateLimiter{}
	}
	return &RateLimiter{
		clients: utils.NewMemoryCache(10*time.Minute, 5*time.Minute),
		every:   rate.Every(duration / time.Duration(requests)),
		burst:   requests,
	}
}

// Handler returns the middleware enforcing the limit
func (l *RateLimiter) Handler() fiber.Handler {
	if l.clients == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return func(c *fiber.Ctx) error {
		v := l.clients.GetOrCreate(c.IP(), func() interface{} {
			return rate.NewLimiter(l.every, l.burst)
		})

		if !v.(*rate.Limiter).Allow() {
			utils.Log.Warn("Rate limit exceeded for %s on %s", c.IP(), c.Path())
			return utils.NewAppError(fiber.StatusTooManyRequests, "error_rate_limited", nil)
		}

		return c.Next()
	}
}

// Clients reports how many client IPs are being tracked
func (l *RateLimiter) Clients() int {
	if l.clients == nil {
		return 0
	}
	return l.clients.Size()
}

func (l *RateLimiter) Close() {
	if l.clients != nil {
		l.clients.Close()
	}
}
