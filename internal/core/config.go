package core

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/mozo-virtual-core/server/internal/agent/model"
	errx "github.com/mozo-virtual-core/server/internal/core/error"
	pkgredis "github.com/mozo-virtual-core/server/pkg/redis"
)

// AppConfig defines all configurable parameters of the assistant, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Agent        model.AgentModelConfig
	Conversation model.ConversationConfig
	Prompt       model.PromptConfig
	Pipeline     model.PipelineConfig
	Knowledge    model.KnowledgeConfig
	Persistence  model.PersistenceConfig
	Tracing      model.TracingConfig
	Metrics      model.MetricsConfig
}

// LoadConfig reads envFile when it exists and binds the environment.
// A missing or malformed variable is a configuration error.
func LoadConfig(envFile string) (*AppConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errx.Configuration(err, "load "+envFile)
		}
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errx.Configuration(err, "process environment config")
	}
	if _, err := cfg.ConversationTTL(); err != nil {
		return nil, errx.Configuration(err, "invalid CONVERSATION_TTL")
	}
	if cfg.Conversation.MaxIterations <= 0 {
		return nil, errx.Configuration(nil, "CONVERSATION_MAX_ITERATIONS must be positive")
	}
	return &cfg, nil
}

func (c *AppConfig) Env() Environment {
	return ParseEnvironment(c.Environment)
}

// ConversationTTL parses the remote persistence TTL.
func (c *AppConfig) ConversationTTL() (time.Duration, error) {
	return time.ParseDuration(c.Conversation.TTL)
}
