package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/emandor/course_service/internal/apperr"
	"github.com/emandor/course_service/internal/telemetry"
)

// ErrorHandler renders every error as {"success": false, "error": msg}.
// Only the public message of an *apperr.Error reaches the client.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := apperr.Status(err)
	msg := apperr.Public(err)

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status, msg = fe.Code, fe.Message
	}

	log := telemetry.Req(RequestIDFrom(c))
	ev := log.Warn()
	if status >= fiber.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).Int("status", status).Str("path", c.Path()).Msg("request_failed")

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}
