package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/mozo-virtual-core/server/internal/agent/graph/tools"
	"github.com/mozo-virtual-core/server/internal/agent/model"
)

//go:embed template/agent_prompt.txt
var agentSystemPrompt string

// RenderAgentSystem renders the agent system directive through the eino prompt
// component so prompt callbacks fire.
func RenderAgentSystem(ctx context.Context, cfg model.PromptConfig) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(agentSystemPrompt),
	)
	vars := map[string]any{
		"RestaurantName": cfg.RestaurantName,
		"AssistantName":  cfg.AssistantName,
		"SearchTool":     tools.ToolSearchMenu,
		"ShowMenuTool":   tools.ToolShowMenu,
		"InfoTool":       tools.ToolRestaurantInfo,
		"SpecialTool":    tools.ToolDailySpecial,
		"DrinkTool":      tools.ToolRecommendDrink,
		"AddTool":        tools.ToolAddToOrder,
		"ViewTool":       tools.ToolViewOrder,
		"RemoveTool":     tools.ToolRemoveFromOrder,
		"PayTool":        tools.ToolProcessPayment,
		"StatusTool":     tools.ToolPaymentStatus,
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("agent prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("agent prompt render: empty result")
	}
	return msgs[0].Content, nil
}
