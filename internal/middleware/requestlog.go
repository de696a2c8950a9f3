package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestLog writes one structured line per request, tagged with the
// correlation ID assigned by RequestID.
func RequestLog(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		attrs := []any{
			"request_id", RequestIDFrom(c),
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if err != nil {
			logger.Error("http request", append(attrs, "error", err)...)
			return err
		}
		logger.Info("http request", attrs...)
		return nil
	}
}
