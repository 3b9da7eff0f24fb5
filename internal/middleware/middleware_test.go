package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emandor/course_service/internal/apperr"
	"github.com/emandor/course_service/internal/config"
)

func newApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
}

func decode(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestRequestIDGeneratesAndEchoes(t *testing.T) {
	app := newApp()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(RequestIDFrom(c)) })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.NotEmpty(t, body)
	assert.Equal(t, string(body), resp.Header.Get(fiber.HeaderXRequestID))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(fiber.HeaderXRequestID, "abc-123")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get(fiber.HeaderXRequestID))
}

func TestRequestIDFromWithoutMiddleware(t *testing.T) {
	app := newApp()
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("[" + RequestIDFrom(c) + "]") })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "[]", string(body))
}

type fakeSessions struct {
	uid int64
	ok  bool
	err error
}

func (f fakeSessions) CookieName() string { return "course_sid" }
func (f fakeSessions) Resolve(context.Context, string) (int64, bool, error) {
	return f.uid, f.ok, f.err
}

func TestAuthSession(t *testing.T) {
	cases := []struct {
		name   string
		sp     fakeSessions
		cookie string
		want   int
	}{
		{"no cookie", fakeSessions{uid: 1, ok: true}, "", fiber.StatusUnauthorized},
		{"unknown session", fakeSessions{}, "sid", fiber.StatusUnauthorized},
		{"store error", fakeSessions{err: errors.New("redis down")}, "sid", fiber.StatusInternalServerError},
		{"ok", fakeSessions{uid: 7, ok: true}, "sid", fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newApp()
			app.Get("/me", AuthSession(tc.sp), func(c *fiber.Ctx) error {
				return c.JSON(fiber.Map{"uid": UserIDFrom(c)})
			})
			req := httptest.NewRequest("GET", "/me", nil)
			if tc.cookie != "" {
				req.Header.Set("Cookie", "course_sid="+tc.cookie)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
			if tc.want == fiber.StatusOK {
				assert.Equal(t, float64(7), decode(t, resp.Body)["uid"])
			}
		})
	}
}

type flag bool

func (f flag) Available() bool { return bool(f) }

func TestStoreGuard(t *testing.T) {
	for _, up := range []bool{true, false} {
		app := newApp()
		app.Get("/api/x", StoreGuard(flag(up)), func(c *fiber.Ctx) error { return c.SendString("ok") })

		resp, err := app.Test(httptest.NewRequest("GET", "/api/x", nil))
		require.NoError(t, err)
		if up {
			assert.Equal(t, fiber.StatusOK, resp.StatusCode)
			continue
		}
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
		body := decode(t, resp.Body)
		assert.Equal(t, "database unavailable", body["error"])
		assert.Equal(t, false, body["success"])
	}
}

func TestErrorHandlerHidesCause(t *testing.T) {
	app := newApp()
	app.Get("/storage", func(c *fiber.Ctx) error {
		return apperr.Storage("users.upsert", errors.New("dial tcp 10.0.0.3:3306: refused"))
	})
	app.Get("/plain", func(c *fiber.Ctx) error { return errors.New("secret detail") })
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.ErrUpgradeRequired })

	resp, err := app.Test(httptest.NewRequest("GET", "/storage", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "storage failure", decode(t, resp.Body)["error"])

	resp, err = app.Test(httptest.NewRequest("GET", "/plain", nil))
	require.NoError(t, err)
	assert.Equal(t, "internal error", decode(t, resp.Body)["error"])

	resp, err = app.Test(httptest.NewRequest("GET", "/fiber", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestRecoverReturns500(t *testing.T) {
	app := newApp()
	app.Use(Recover())
	app.Get("/", func(c *fiber.Ctx) error { panic("boom") })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestRequestLogKeepsErrorStatus(t *testing.T) {
	app := newApp()
	app.Use(RequestLog())
	app.Get("/", func(c *fiber.Ctx) error { return apperr.Validation("op", "bad input") })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "bad input", decode(t, resp.Body)["error"])
}

func TestRateLimiter(t *testing.T) {
	cfg := &config.Config{RateLimitMax: 2, RateLimitWindow: time.Minute}
	app := newApp()
	app.Use(RateLimiter(cfg))
	app.Get("/api/x", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/api/x", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
	resp, err := app.Test(httptest.NewRequest("GET", "/api/x", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRateLimiterDisabled(t *testing.T) {
	cfg := &config.Config{RateLimitMax: 0, RateLimitWindow: time.Minute}
	app := newApp()
	app.Use(RateLimiter(cfg))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < 10; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}

func TestWSUpgradeRejectsPlainHTTP(t *testing.T) {
	app := newApp()
	app.Get("/ws", WSUpgrade(), func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest("GET", "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
