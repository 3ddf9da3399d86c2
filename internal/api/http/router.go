package http

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/sla-engine/internal/api/http/handlers"
	"github.com/spec-kit/sla-engine/internal/auth"
	"github.com/spec-kit/sla-engine/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	NPA            *handlers.NPAHandler
	Compliance     *handlers.ComplianceHandler
	Alerts         *handlers.AlertsHandler
	Policies       *handlers.PoliciesHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	tickets := api.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/sla-compliance", cfg.Tickets.SLACompliance)
	tickets.Post("/:id/first-response", cfg.Tickets.FirstResponse)
	tickets.Post("/:id/resolve", cfg.Tickets.Resolve)
	tickets.Put("/:id/priority", cfg.Tickets.ChangePriority)

	tickets.Put("/:id/npa", cfg.NPA.Transition)
	tickets.Post("/:id/npa/append", cfg.NPA.Append)
	tickets.Post("/:id/npa/solution", cfg.NPA.CloseAsSolution)
	tickets.Get("/:id/npa/history", cfg.NPA.History)

	api.Get("/compliance", cfg.Compliance.Compliance)
	api.Get("/compliance/trends", cfg.Compliance.Trends)
	api.Get("/performance-by-agent", cfg.Compliance.ByAgent)
	api.Get("/customers/performance", cfg.Compliance.ByCustomer)
	api.Get("/export", cfg.Compliance.Export)

	alerts := api.Group("/breach-alerts")
	alerts.Get("", cfg.Alerts.List)
	alerts.Post("/:id/acknowledge", cfg.Alerts.Acknowledge)

	policies := api.Group("/policies")
	policies.Post("", cfg.Policies.Create)
	policies.Get("", cfg.Policies.List)
	policies.Get("/:id", cfg.Policies.Get)
	policies.Put("/:id", cfg.Policies.NewVersion)
	policies.Delete("/:id", cfg.Policies.Deactivate)
}
