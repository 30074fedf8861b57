package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultOllamaModel is used when no model name is configured.
const DefaultOllamaModel = "llama3.2:3b"

// OllamaModel implements Model against a local Ollama server.
type OllamaModel struct {
	llm    *ollama.LLM
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOllamaModel builds an Ollama backend. An empty BaseURL uses the
// langchaingo default (http://localhost:11434).
func NewOllamaModel(cfg Config) (*OllamaModel, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}

	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}

	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init ollama: %w", err)
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &OllamaModel{
		llm:    llm,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/uchokoro/KodeCamp-task-grader/pkg/ai/ollama"),
		logger: logger.With().Str("component", "ollama_model").Logger(),
	}, nil
}

// Name returns the configured model name.
func (m *OllamaModel) Name() string {
	return m.cfg.Model
}

// Generate sends the prompt to Ollama and returns the reply text.
func (m *OllamaModel) Generate(parent context.Context, prompt string) (Completion, error) {
	ctx, span := m.tracer.Start(parent, "ollama.generate", trace.WithAttributes(
		attribute.String("model", m.cfg.Model),
	))
	defer span.End()

	callOpts := []llms.CallOption{llms.WithTemperature(float64(m.cfg.Temperature))}
	if m.cfg.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(m.cfg.MaxTokens))
	}

	start := time.Now()
	content, err := llms.GenerateFromSinglePrompt(ctx, m.llm, prompt, callOpts...)
	modelDuration.WithLabelValues(m.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		modelFailures.WithLabelValues(m.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Completion{}, fmt.Errorf("ollama generate: %w", err)
	}

	m.logger.Debug().Str("model", m.cfg.Model).Int("reply_bytes", len(content)).Msg("completion received")

	return Completion{
		Content: strings.TrimSpace(content),
		Model:   m.cfg.Model,
	}, nil
}
