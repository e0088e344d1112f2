package server

import (
	"time"

	"github.com/gofiber/fiber/v2"

	healthhandler "credential-lifecycle/backend/internal/health/handler"
	"credential-lifecycle/backend/internal/logging"
	"credential-lifecycle/backend/internal/server/interceptors"
	sessionhandler "credential-lifecycle/backend/internal/session/handler"
)

// AuthAPIPrefix is where the auth routes are mounted.
const AuthAPIPrefix = "/api/v1/auth"

// HTTPDeps holds the services exposed over HTTP.
type HTTPDeps struct {
	Sessions  sessionhandler.Sessions
	Registrar sessionhandler.Registrar
	// Health backs GET /readyz. If nil, only GET /healthz is served.
	Health *healthhandler.Server
	Log    logging.Logger
}

// NewHTTPApp returns the fiber app serving the auth API plus liveness and readiness endpoints.
func NewHTTPApp(deps HTTPDeps) *fiber.App {
	log := deps.Log
	if log == nil {
		log = logging.Nop()
	}
	app := fiber.New(fiber.Config{
		AppName:               "auth-service",
		ErrorHandler:          interceptors.ErrorHandler(log),
		DisableStartupMessage: true,
		Immutable:             true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		IdleTimeout:           60 * time.Second,
	})
	app.Use(interceptors.RequestLog(log, map[string]bool{"/healthz": true, "/readyz": true}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if deps.Health != nil {
		app.Get("/readyz", deps.Health.Ready)
	}
	sessionhandler.NewHandler(deps.Sessions, deps.Registrar, log).Mount(app.Group(AuthAPIPrefix))
	return app
}
