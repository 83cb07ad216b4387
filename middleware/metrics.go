package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"leadsdash/metrics"
	"leadsdash/utils"
)

// RequestMetrics records the count and latency of every request by route
// pattern
func RequestMetrics(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else if appErr, ok := utils.AsAppError(err); ok {
				status = appErr.Code
			}
		}

		route := c.Route().Path
		if status == fiber.StatusNotFound {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Method(), route, status, time.Since(start))
		return err
	}
}
