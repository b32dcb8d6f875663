package stremio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gofiber/fiber/v3"
)

type customMiddleware struct {
	path string
	mw   fiber.Handler
}

func createMetricsMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				status = e.Code
			}
		}

		// Total number of HTTP requests.
		counterName := fmt.Sprintf(`http_requests_total{endpoint=%q,status="%d"}`, endpointLabel(c.Path()), status)
		metrics.GetOrCreateCounter(counterName).Inc()

		return err
	}
}

// endpointLabel maps a request path to a small, fixed set of Prometheus label values.
func endpointLabel(path string) string {
	switch path {
	case "/":
		return "root"
	case "/manifest.json":
		return "manifest"
	case "/health":
		return "health"
	case "/metrics":
		return "metrics"
	}

	switch {
	case strings.HasPrefix(path, "/catalog/"):
		return "catalog"
	case strings.HasPrefix(path, "/meta/"):
		return "meta"
	case strings.HasPrefix(path, "/debug/pprof"):
		return "pprof"
	}

	// It would be valid for Prometheus to have an empty string as label, but it's confusing for users and makes custom legends in Grafana ugly.
	return "other"
}

// corsMiddleware sets the CORS headers Stremio requires. Without them the web client refuses to show the catalog.
func corsMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		c.Set(fiber.HeaderAccessControlAllowMethods, "GET,HEAD,OPTIONS")
		c.Set(fiber.HeaderAccessControlAllowHeaders, "Accept, Accept-Language, Content-Type, Origin, Accept-Encoding, Content-Language, X-Requested-With")

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}
