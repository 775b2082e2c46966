package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/petcare-queue/internal/api/http/handlers"
	"github.com/spec-kit/petcare-queue/internal/auth"
	"github.com/spec-kit/petcare-queue/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	Analytics      *handlers.AnalyticsHandler
	Auth           *handlers.AuthHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	app.Post("/auth/staff/login", cfg.Auth.Login)

	public := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	public.Post("/", cfg.Tickets.CreateTicket)
	public.Get("/:id", cfg.Tickets.GetTicket)
	public.Get("/:id/position", cfg.Tickets.GetPosition)
	public.Get("/:id/position/stream", cfg.Tickets.StreamPosition)
	public.Get("/:id/qr", cfg.Tickets.TicketQRCode)

	staff := app.Group("/staff", cfg.AuthMiddleware.Handle, auth.RequireStaff())
	staff.Post("/tickets", cfg.Tickets.CreateTicket)
	staff.Post("/tickets/bulk-transition", cfg.StaffTickets.BulkTransition)
	staff.Post("/tickets/:id/transition", cfg.StaffTickets.Transition)
	staff.Patch("/tickets/:id", cfg.StaffTickets.UpdateDetails)
	staff.Get("/queue/:line", cfg.StaffTickets.Queue)
	staff.Get("/activity", cfg.StaffTickets.Activity)

	reports := staff.Group("/analytics", auth.RequireRole(domain.RoleAdmin))
	reports.Get("/", cfg.Analytics.Report)
	reports.Get("/export", cfg.Analytics.Export)
}
