// Package app assembles the fiber application: middleware order, route
// table and the status endpoint.
package app

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/emandor/course_service/internal/auth"
	"github.com/emandor/course_service/internal/config"
	"github.com/emandor/course_service/internal/course"
	"github.com/emandor/course_service/internal/db"
	"github.com/emandor/course_service/internal/metrics"
	"github.com/emandor/course_service/internal/middleware"
	"github.com/emandor/course_service/internal/ws"
)

type Health interface {
	Available() bool
	Err() *db.InitError
}

type Deps struct {
	Config   *config.Config
	Health   Health
	Auth     *auth.Handler
	Course   *course.Handler
	Hub      *ws.Hub
	Gatherer prometheus.Gatherer
}

func New(d Deps) *fiber.App {
	cfg := d.Config
	app := fiber.New(fiber.Config{
		AppName:                 "course_service",
		ErrorHandler:            middleware.ErrorHandler,
		ProxyHeader:             cfg.ProxyHeader,
		EnableTrustedProxyCheck: len(cfg.TrustedProxies) > 0,
		TrustedProxies:          cfg.TrustedProxies,
	})

	app.Use(middleware.RequestID())
	app.Use(middleware.Recover())
	app.Use(middleware.RequestLog())
	app.Use(middleware.SecureHeaders())
	app.Use(encryptcookie.New(encryptcookie.Config{Key: cfg.CookieSecret}))

	app.Get("/", status(cfg, d.Health))
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	if d.Gatherer != nil {
		app.Get("/metrics", metrics.Handler(d.Gatherer))
	}

	api := app.Group("/api",
		middleware.CORS(cfg),
		middleware.RateLimiter(cfg),
		middleware.StoreGuard(d.Health),
	)

	api.Get("/auth/google", d.Auth.GoogleLogin)
	api.Get("/auth/callback/google", d.Auth.GoogleCallback)
	api.Get("/auth/me", middleware.AuthSession(d.Auth), d.Auth.Me)
	api.Post("/auth/logout", d.Auth.Logout)

	api.Get("/course/:userId", d.Course.GetCourse)
	api.Post("/complete", d.Course.Complete)

	app.Get("/ws", middleware.WSUpgrade(), middleware.AuthSession(d.Auth), websocket.New(d.Hub.Handle))

	return app
}

type statusConfig struct {
	DatabaseURLSet bool   `json:"database_url_set"`
	AppEnv         string `json:"app_env"`
	BaseURL        string `json:"base_url"`
}

type statusEndpoints struct {
	AuthGoogle string `json:"auth_google"`
	CourseData string `json:"course_data"`
}

type statusResponse struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	InitError *db.InitError   `json:"init_error"`
	Config    statusConfig    `json:"config"`
	Endpoints statusEndpoints `json:"endpoints"`
}

// status always answers 200 so operators can read why the store is down.
func status(cfg *config.Config, h Health) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resp := statusResponse{
			Status:  "online",
			Message: "Course API is running",
			Config: statusConfig{
				DatabaseURLSet: cfg.DBDSN != "",
				AppEnv:         cfg.AppEnv,
				BaseURL:        cfg.BaseURL,
			},
			Endpoints: statusEndpoints{
				AuthGoogle: "/api/auth/google",
				CourseData: "/api/course/:userId",
			},
		}
		if !h.Available() {
			resp.Status = "error"
			resp.Message = "Database unavailable"
			resp.InitError = h.Err()
		}
		return c.JSON(resp)
	}
}
