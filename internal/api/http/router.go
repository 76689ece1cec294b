package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/research-portal/internal/api/http/handlers"
	"github.com/spec-kit/research-portal/internal/auth"
	"github.com/spec-kit/research-portal/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Session        *handlers.SessionHandler
	AuthMiddleware *auth.AuthMiddleware
	LoginLimiter   *auth.SlidingWindowLimiter
	RefreshLimiter *auth.SlidingWindowLimiter
	AdminLimiter   *auth.SlidingWindowLimiter
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api/v1")
	api.Get("/health/live", cfg.Health.Live)
	api.Get("/health/ready", cfg.Health.Ready)

	authGroup := api.Group("/auth")
	authGroup.Post("/admin-login", cfg.LoginLimiter.Middleware(cfg.Metrics), cfg.Auth.AdminLogin)
	authGroup.Post("/refresh", cfg.RefreshLimiter.Middleware(cfg.Metrics), cfg.Auth.Refresh)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/verify", cfg.AuthMiddleware.Require(auth.CapabilityAuthenticated), cfg.Auth.Verify)

	admin := api.Group("/admin", cfg.AdminLimiter.Middleware(cfg.Metrics), cfg.AuthMiddleware.Require(auth.CapabilityAdmin))
	admin.Get("/session", cfg.Session.Current)

	researcher := api.Group("/researcher", cfg.AuthMiddleware.Require(auth.CapabilityActiveResearcher))
	researcher.Get("/session", cfg.Session.Current)
}
