package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/emandor/course_service/internal/apperr"
)

type Availability interface {
	Available() bool
}

// StoreGuard short-circuits with 503 while the database is unavailable.
func StoreGuard(h Availability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !h.Available() {
			return apperr.Unavailable("store")
		}
		return c.Next()
	}
}
