package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/mozo-virtual-core/server/internal/agent/model"
	errx "github.com/mozo-virtual-core/server/internal/core/error"
	logx "github.com/mozo-virtual-core/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey  string
	BaseURL string
	Agent   *model.AgentModelConfig
}

// NewChatModel creates the Gemini chat model used by the agent. Tools are
// bound per session with WithTools.
func NewChatModel(ctx context.Context, config ChatModelConfig) (einomodel.ToolCallingChatModel, error) {
	if config.APIKey == "" {
		return nil, errx.Configuration(nil, "GEMINI_API_KEY is required")
	}
	if config.Agent == nil {
		return nil, errx.Configuration(nil, "agent model config is nil")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	gemCfg := &gemini.Config{
		Client:      client,
		Model:       config.Agent.Model,
		Temperature: &config.Agent.Temperature,
		MaxTokens:   &config.Agent.MaxTokens,
	}
	if config.Agent.ThinkingBudget > 0 {
		gemCfg.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(config.Agent.ThinkingBudget),
		}
	}

	chatModel, err := gemini.NewChatModel(ctx, gemCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating agent model")
		return nil, fmt.Errorf("error creating agent model: %w", err)
	}
	return chatModel, nil
}
