package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workflow-service/internal/api/http/handlers"
	"github.com/spec-kit/workflow-service/internal/auth"
	"github.com/spec-kit/workflow-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Stages         *handlers.StagesHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	manage := auth.RequirePermission(domain.PermissionManageWorkflow)

	processes := api.Group("/processes/:processId/stages")
	processes.Get("/", cfg.Stages.ListStages)
	processes.Post("/", manage, cfg.Stages.CreateStage)
	processes.Get("/initial", cfg.Stages.InitialStage)
	processes.Get("/final", cfg.Stages.FinalStages)
	processes.Get("/tree", cfg.Stages.StageTree)
	processes.Put("/reorder", manage, cfg.Stages.ReorderStages)

	stages := api.Group("/stages")
	stages.Get("/:id", cfg.Stages.GetStage)
	stages.Patch("/:id", manage, cfg.Stages.UpdateStage)
	stages.Delete("/:id", manage, cfg.Stages.DeleteStage)
	stages.Get("/:id/transitions", cfg.Stages.ListTransitions)
	stages.Put("/:id/transitions", manage, cfg.Stages.ReplaceTransitions)

	tickets := api.Group("/tickets")
	tickets.Post("/:id/move", cfg.Tickets.MoveTicket)
	tickets.Post("/:id/move-to-initial", cfg.Tickets.MoveToInitial)
}
