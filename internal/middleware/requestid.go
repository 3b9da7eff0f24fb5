package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const ReqIDKey = "reqID"

func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get(fiber.HeaderXRequestID)
		if rid == "" || len(rid) > 128 {
			rid = uuid.New().String()
		}
		c.Set(fiber.HeaderXRequestID, rid)
		c.Locals(ReqIDKey, rid)
		return c.Next()
	}
}

// RequestIDFrom returns the id set by RequestID, or "" when the middleware
// did not run.
func RequestIDFrom(c *fiber.Ctx) string {
	rid, _ := c.Locals(ReqIDKey).(string)
	return rid
}
