package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestIDHeader carries the correlation ID echoed on every response.
const RequestIDHeader = "X-Request-ID"

const requestIDLocal = "request_id"

// RequestID assigns each request a correlation ID, reusing the caller's when
// present. The ID is echoed in the response header and stored in locals for
// the request logger.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDHeader, id)
		c.Locals(requestIDLocal, id)
		return c.Next()
	}
}

// RequestIDFrom returns the request's correlation ID, or the empty string
// when the RequestID middleware did not run.
func RequestIDFrom(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDLocal).(string)
	return id
}
