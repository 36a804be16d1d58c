package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/carias-rh/lx-toolbox/internal/api/http/handlers"
	"github.com/carias-rh/lx-toolbox/internal/auth"
	"github.com/carias-rh/lx-toolbox/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Status         *handlers.StatusHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/status", cfg.Status.Status)

	teams := app.Group("/teams", cfg.AuthMiddleware.Handle, auth.RequireScope(auth.ScopeWake))
	teams.Post("/:team/wake", cfg.Status.Wake)
}

// NewApp builds the status API application.
func NewApp(cfg RouteConfig, logger *zap.Logger, metrics *observability.Metrics) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "lx-autoassign",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          ErrorHandler(logger, metrics),
	})
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, cfg)
	return app
}
