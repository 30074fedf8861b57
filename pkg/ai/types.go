package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Supported model providers.
const (
	ProviderOllama = "ollama"
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
)

// ErrUnsupportedProvider indicates the configured provider is unknown.
var ErrUnsupportedProvider = errors.New("unsupported model provider")

// Completion is the text a model returned for a prompt.
type Completion struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Model describes a language model that turns one prompt into one reply.
type Model interface {
	Name() string
	Generate(ctx context.Context, prompt string) (Completion, error)
}

// Config selects and configures a model backend.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	MaxTokens   int
	Logger      zerolog.Logger
}

// NewModel builds the backend named by cfg.Provider.
func NewModel(cfg Config) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOllama, "":
		return NewOllamaModel(cfg)
	case ProviderGroq:
		if cfg.BaseURL == "" {
			cfg.BaseURL = GroqBaseURL
		}
		return NewOpenAIModel(cfg)
	case ProviderOpenAI:
		return NewOpenAIModel(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}
