package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/facematch/internal/audit"
)

// LocalRequestID is the Locals key used by the requestid middleware.
const LocalRequestID = "requestid"

// RequestID returns the id assigned by the requestid middleware.
func RequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalRequestID).(string)
	return id
}

// RequestContext copies the request id, client IP and user agent into the
// user context so that audit events emitted by the pipeline carry them.
// Must run after requestid.New().
func RequestContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := audit.WithClient(c.UserContext(), c.IP(), c.Get(fiber.HeaderUserAgent))
		if id := RequestID(c); id != "" {
			ctx = audit.WithRequestID(ctx, id)
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}
