package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/emandor/course_service/internal/apperr"
)

// UserIDKey is the Locals key holding the authenticated user id.
const UserIDKey = "userID"

type SessionProvider interface {
	CookieName() string
	Resolve(ctx context.Context, sid string) (int64, bool, error)
}

func AuthSession(reg SessionProvider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Cookies(reg.CookieName())
		if sid == "" {
			return apperr.Unauthorized("session")
		}
		uid, ok, err := reg.Resolve(c.UserContext(), sid)
		if err != nil {
			return apperr.Storage("session.resolve", err)
		}
		if !ok {
			return apperr.Unauthorized("session")
		}
		c.Locals(UserIDKey, uid)
		return c.Next()
	}
}

// UserIDFrom returns the user bound by AuthSession, or 0.
func UserIDFrom(c *fiber.Ctx) int64 {
	uid, _ := c.Locals(UserIDKey).(int64)
	return uid
}
