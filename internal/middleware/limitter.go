package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/emandor/course_service/internal/config"
)

// RateLimiter limits requests per client IP. A non-positive RATE_LIMIT_MAX
// disables it.
func RateLimiter(cfg *config.Config) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: cfg.RateLimitWindow,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "rate limit exceeded",
			})
		},
		Next: func(c *fiber.Ctx) bool {
			if cfg.RateLimitMax <= 0 {
				return true
			}
			path := c.Path()
			// probes and the websocket stay outside the limiter
			return path == "/healthz" || path == "/metrics" || strings.HasPrefix(path, "/ws")
		},
	})
}
