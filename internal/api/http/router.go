package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/firm-ops/internal/api/http/handlers"
	"github.com/spec-kit/firm-ops/internal/auth"
	"github.com/spec-kit/firm-ops/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Commands       *handlers.CommandHandler
	Maintenance    *handlers.MaintenanceHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/token", cfg.Auth.IssueToken)

	guild := app.Group("/guilds/:guildID", cfg.AuthMiddleware.Handle, auth.RequireGuild())
	guild.Get("/commands", cfg.Commands.List)
	guild.Post("/commands/:entity/:operation", cfg.Commands.Execute)
	guild.Get("/consistency", cfg.Maintenance.Consistency)
	guild.Get("/audit", cfg.Maintenance.AuditLog)
	guild.Post("/roles/sync", cfg.Maintenance.SyncGuild)
	guild.Get("/roles/conflicts", cfg.Maintenance.Conflicts)
	guild.Post("/roles/conflicts/resolve", cfg.Maintenance.ResolveConflicts)
	guild.Post("/members/:userID/roles/sync", cfg.Maintenance.SyncMember)
}
