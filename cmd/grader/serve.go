package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"

	"github.com/uchokoro/KodeCamp-task-grader/internal/config"
	"github.com/uchokoro/KodeCamp-task-grader/internal/handler"
	"github.com/uchokoro/KodeCamp-task-grader/internal/middleware"
	"github.com/uchokoro/KodeCamp-task-grader/internal/router"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the grading HTTP API",
	Long: `Run the grading HTTP API on APP_PORT.

Grading routes require a bearer token with the admin or teacher role when
JWT_SECRET is set. Prometheus metrics are served on /metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(false)
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := NewApp(cfg, logger)
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer app.Shutdown(context.Background())

	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := app.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if app.redis != nil {
		probes["redis"] = func(ctx context.Context) error {
			return app.redis.Ping(ctx).Err()
		}
	}

	deps := router.Dependencies{
		GradingHandler:    handler.NewGradingHandler(app.grading, logger),
		DownloaderHandler: handler.NewDownloaderHandler(app.registry),
		HealthProbes:      probes,
		GradeRateLimit:    cfg.GradeRateLimit,
	}
	if cfg.JWTSecret != "" {
		deps.JWTMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	} else {
		logger.Warn().Msg("JWT_SECRET not set, grading routes are unauthenticated")
	}

	server := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})
	middleware.Register(server, middleware.Config{Logger: &logger})
	router.Register(server, cfg, deps)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Msg("grader API listening")
		errCh <- server.Listen(cfg.HTTPAddress())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
