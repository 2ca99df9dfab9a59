package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/creatorhub-api/internal/config"
	"github.com/noah-isme/creatorhub-api/internal/handler"
	"github.com/noah-isme/creatorhub-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EvaluationHandler   *handler.EvaluationHandler
	VideoHandler        *handler.VideoHandler
	NotificationHandler *handler.NotificationHandler
	LedgerHandler       *handler.LedgerHandler
	EvaluateLimiter     fiber.Handler
	HealthProbes        map[string]handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	submissions := api.Group("/submissions")
	if deps.EvaluationHandler != nil {
		var limiters []fiber.Handler
		if deps.EvaluateLimiter != nil {
			limiters = append(limiters, deps.EvaluateLimiter)
		}
		deps.EvaluationHandler.Register(submissions, limiters...)
	}
	if deps.VideoHandler != nil {
		deps.VideoHandler.Register(submissions)
	}

	if deps.LedgerHandler != nil {
		deps.LedgerHandler.RegisterSubmissions(submissions)
		deps.LedgerHandler.RegisterCreators(api.Group("/creators"))
	}

	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(api.Group("/users/:userId/notifications"))
	}
}
