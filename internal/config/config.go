package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LMSConfig holds the credentials of the remote LMS account.
type LMSConfig struct {
	BaseURL   string
	Email     string
	Password  string
	Workspace string
}

// LLMConfig selects the model backend used for grading.
type LLMConfig struct {
	Provider      string
	Model         string
	Temperature   float32
	MaxTokens     int
	OllamaBaseURL string
	GroqAPIKey    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// Config holds runtime configuration values for the grader.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	DatabaseDriver     string
	DatabaseURL        string
	RedisURL           string
	NATSURL            string
	NATSSubject        string
	JWTSecret          string
	HTTPTimeout        time.Duration
	SubmissionCacheTTL time.Duration
	PromptTemplatePath string
	RubricsDir         string
	DownloadDir        string
	DocsExportBaseURL  string
	GradeRateLimit     int
	LMS                LMSConfig
	LLM                LLMConfig
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// APIKey returns the key matching the configured provider.
func (c LLMConfig) APIKey() string {
	switch c.Provider {
	case "groq":
		return c.GroqAPIKey
	case "openai":
		return c.OpenAIAPIKey
	default:
		return ""
	}
}

// BaseURL returns the endpoint override matching the configured provider.
func (c LLMConfig) BaseURL() string {
	switch c.Provider {
	case "ollama", "":
		return c.OllamaBaseURL
	case "openai":
		return c.OpenAIBaseURL
	default:
		return ""
	}
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "KodeCamp Task Grader")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.url", "file:grader.db?cache=shared")
	v.SetDefault("nats.subject", "grading.completed")
	v.SetDefault("http.timeout", "0s")
	v.SetDefault("submission.cache_ttl", "1h")
	v.SetDefault("prompt.template_path", "prompts/grading_prompt.txt")
	v.SetDefault("rubrics.dir", "rubrics")
	v.SetDefault("download.dir", "downloads")
	v.SetDefault("grade.rate_limit", 6)
	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.temperature", 0)
	v.SetDefault("llm.max_tokens", 2048)

	httpTimeout, err := parseDuration(v, "http.timeout")
	if err != nil {
		return Config{}, err
	}

	cacheTTL, err := parseDuration(v, "submission.cache_ttl")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		DatabaseDriver:     strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		NATSSubject:        v.GetString("nats.subject"),
		JWTSecret:          v.GetString("jwt.secret"),
		HTTPTimeout:        httpTimeout,
		SubmissionCacheTTL: cacheTTL,
		PromptTemplatePath: v.GetString("prompt.template_path"),
		RubricsDir:         v.GetString("rubrics.dir"),
		DownloadDir:        v.GetString("download.dir"),
		DocsExportBaseURL:  v.GetString("docs.export_base_url"),
		GradeRateLimit:     v.GetInt("grade.rate_limit"),
		LMS: LMSConfig{
			BaseURL:   strings.TrimRight(v.GetString("lms.base_url"), "/"),
			Email:     v.GetString("lms.email"),
			Password:  v.GetString("lms.password"),
			Workspace: v.GetString("lms.workspace"),
		},
		LLM: LLMConfig{
			Provider:      strings.ToLower(strings.TrimSpace(v.GetString("llm.provider"))),
			Model:         v.GetString("llm.model"),
			Temperature:   float32(v.GetFloat64("llm.temperature")),
			MaxTokens:     v.GetInt("llm.max_tokens"),
			OllamaBaseURL: v.GetString("ollama.base_url"),
			GroqAPIKey:    v.GetString("groq.api_key"),
			OpenAIAPIKey:  v.GetString("openai.api_key"),
			OpenAIBaseURL: v.GetString("openai.base_url"),
		},
	}

	switch cfg.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	if cfg.LLM.MaxTokens <= 0 {
		cfg.LLM.MaxTokens = 2048
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
