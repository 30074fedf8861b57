package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// GroqBaseURL is the OpenAI-compatible endpoint of Groq.
const GroqBaseURL = "https://api.groq.com/openai/v1"

var (
	modelDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "grader",
		Subsystem: "ai",
		Name:      "generation_duration_seconds",
		Help:      "Duration of model generation requests",
	}, []string{"model"})

	modelFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grader",
		Subsystem: "ai",
		Name:      "generation_failures_total",
		Help:      "Number of model generation failures",
	}, []string{"model"})
)

// OpenAIModel implements Model against an OpenAI-compatible chat completion API.
type OpenAIModel struct {
	client *openai.Client
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIModel builds a chat completion backend. Groq and other
// OpenAI-compatible services are reached through cfg.BaseURL.
func NewOpenAIModel(cfg Config) (*OpenAIModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	return &OpenAIModel{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/uchokoro/KodeCamp-task-grader/pkg/ai/openai"),
		logger: logger.With().Str("component", "openai_model").Logger(),
	}, nil
}

// Name returns the configured model name.
func (m *OpenAIModel) Name() string {
	return m.cfg.Model
}

// Generate sends the prompt as a single user message.
func (m *OpenAIModel) Generate(parent context.Context, prompt string) (Completion, error) {
	ctx, span := m.tracer.Start(parent, "openai.generate", trace.WithAttributes(
		attribute.String("model", m.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       m.cfg.Model,
		MaxTokens:   m.cfg.MaxTokens,
		Temperature: m.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	modelDuration.WithLabelValues(m.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return Completion{}, m.fail(span, fmt.Errorf("openai generate: %w", err))
	}

	if len(resp.Choices) == 0 {
		return Completion{}, m.fail(span, fmt.Errorf("no choices returned from openai"))
	}

	m.logger.Debug().
		Str("model", resp.Model).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("completion received")

	model := resp.Model
	if model == "" {
		model = m.cfg.Model
	}

	return Completion{
		Content:          strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:            model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (m *OpenAIModel) fail(span trace.Span, err error) error {
	modelFailures.WithLabelValues(m.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
