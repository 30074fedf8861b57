package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/uchokoro/KodeCamp-task-grader/internal/config"
	"github.com/uchokoro/KodeCamp-task-grader/internal/database"
	"github.com/uchokoro/KodeCamp-task-grader/internal/grading"
	"github.com/uchokoro/KodeCamp-task-grader/internal/lms"
	"github.com/uchokoro/KodeCamp-task-grader/internal/repository"
	"github.com/uchokoro/KodeCamp-task-grader/internal/service"
	"github.com/uchokoro/KodeCamp-task-grader/internal/submission"
	"github.com/uchokoro/KodeCamp-task-grader/pkg/ai"
)

// App wires the grader components from configuration.
type App struct {
	cfg    config.Config
	logger zerolog.Logger

	httpClient *http.Client
	db         *gorm.DB
	redis      *redis.Client
	natsConn   *nats.Conn

	lms        *lms.Client
	registry   *submission.Registry
	downloads  submission.Options
	repository repository.EvaluationRepository
	grading    service.GradingService
}

// NewApp creates an application without touching any backing service.
func NewApp(cfg config.Config, logger zerolog.Logger) *App {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	return &App{
		cfg:        cfg,
		logger:     logger,
		httpClient: httpClient,
		registry:   submission.DefaultRegistry(),
		downloads: submission.Options{
			HTTPClient:    httpClient,
			ExportBaseURL: cfg.DocsExportBaseURL,
			Logger:        logger,
		},
	}
}

// ConnectLMS builds the LMS client. Logging in happens lazily on first use.
func (a *App) ConnectLMS() error {
	client, err := lms.NewClientFromConfig(a.cfg.LMS, a.httpClient, a.logger)
	if err != nil {
		return err
	}
	a.lms = client
	return nil
}

// Start connects storage, cache and messaging and builds the grading service.
// Anything already opened is released when a later step fails.
func (a *App) Start(ctx context.Context) error {
	if err := a.start(ctx); err != nil {
		a.Shutdown(ctx)
		return err
	}
	return nil
}

func (a *App) start(ctx context.Context) error {
	if err := a.ConnectLMS(); err != nil {
		return err
	}

	db, err := database.Connect(a.cfg.DatabaseDriver, a.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	a.db = db
	if err := database.Migrate(db); err != nil {
		return err
	}
	a.repository = repository.NewEvaluationRepository(db)

	if a.cfg.RedisURL != "" {
		client, err := database.ConnectRedis(ctx, a.cfg.RedisURL)
		if err != nil {
			return err
		}
		a.redis = client
	} else {
		a.logger.Info().Msg("REDIS_URL not set, submission text cache disabled")
	}

	if a.cfg.NATSURL != "" {
		conn, err := nats.Connect(a.cfg.NATSURL, nats.Name(a.cfg.AppName))
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		a.natsConn = conn
	}

	template, err := grading.LoadPromptTemplate(a.cfg.PromptTemplatePath)
	if err != nil {
		return err
	}

	model, err := ai.NewModel(ai.Config{
		Provider:    a.cfg.LLM.Provider,
		Model:       a.cfg.LLM.Model,
		APIKey:      a.cfg.LLM.APIKey(),
		BaseURL:     a.cfg.LLM.BaseURL(),
		Temperature: a.cfg.LLM.Temperature,
		MaxTokens:   a.cfg.LLM.MaxTokens,
		Logger:      a.logger,
	})
	if err != nil {
		return err
	}

	var publisher service.EventPublisher
	if a.natsConn != nil {
		publisher = a.natsConn
	}

	a.grading = service.NewGradingService(
		service.SerializeSource(a.lms),
		service.NewFileRubricStore(a.cfg.RubricsDir),
		service.NewSubmissionTextSource(a.registry, a.downloads, a.cfg.DownloadDir, a.redis, a.cfg.SubmissionCacheTTL, a.logger),
		grading.NewEvaluator(model, template, a.logger),
		a.repository,
		publisher,
		a.cfg.NATSSubject,
		validator.New(validator.WithRequiredStructEnabled()),
		a.logger,
	)

	a.logger.Info().
		Str("model", model.Name()).
		Str("database", a.cfg.DatabaseDriver).
		Bool("cache", a.redis != nil).
		Bool("events", a.natsConn != nil).
		Msg("grader components initialised")

	return nil
}

// Shutdown logs out of the LMS and releases connections. It is safe to call
// more than once.
func (a *App) Shutdown(ctx context.Context) {
	if a.lms != nil && a.lms.Authenticated() {
		a.lms.Logout(ctx)
	}
	if a.natsConn != nil {
		_ = a.natsConn.Drain()
		a.natsConn.Close()
		a.natsConn = nil
	}
	if a.redis != nil {
		_ = a.redis.Close()
		a.redis = nil
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		a.db = nil
		a.repository = nil
	}
}
