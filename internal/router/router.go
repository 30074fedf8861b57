package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/uchokoro/KodeCamp-task-grader/internal/config"
	"github.com/uchokoro/KodeCamp-task-grader/internal/handler"
	"github.com/uchokoro/KodeCamp-task-grader/internal/middleware"
	"github.com/uchokoro/KodeCamp-task-grader/internal/observability"
)

// Roles allowed to trigger grading runs and read evaluations.
var graderRoles = []string{"admin", "teacher"}

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	GradingHandler    *handler.GradingHandler
	DownloaderHandler *handler.DownloaderHandler
	HealthProbes      map[string]handler.HealthProbe
	// JWTMiddleware guards grading routes. When nil the routes are open.
	JWTMiddleware fiber.Handler
	// GradeRateLimit caps grading runs per caller per minute; zero disables it.
	GradeRateLimit int
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	if deps.DownloaderHandler != nil {
		deps.DownloaderHandler.Register(api.Group("/downloaders"))
	}

	if deps.GradingHandler == nil {
		return
	}

	guards := []fiber.Handler{}
	if deps.JWTMiddleware != nil {
		guards = append(guards, deps.JWTMiddleware, middleware.RequireRole(graderRoles...))
	}

	var gradeGuards []fiber.Handler
	if deps.GradeRateLimit > 0 {
		gradeGuards = append(gradeGuards, middleware.RateLimit("grade", deps.GradeRateLimit, time.Minute))
	}

	deps.GradingHandler.RegisterTasks(api.Group("/tasks", guards...), gradeGuards...)
	deps.GradingHandler.RegisterEvaluations(api.Group("/evaluations", guards...))
}
