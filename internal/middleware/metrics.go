package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
)

var (
	metricsOnce sync.Once
	metrics     *fiberprometheus.FiberPrometheus
)

// InitMetrics returns the process-wide HTTP metrics collector. The first
// caller's serviceName labels every series; collectors register once.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	metricsOnce.Do(func() {
		metrics = fiberprometheus.New(serviceName)
	})
	return metrics
}

// MetricsMiddleware records request counts and latencies, skipping the
// metrics endpoint itself.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}
		return prom.Middleware(c)
	}
}
