package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/mozo-virtual-core/server/internal/agent/graph/conversations"
	"github.com/mozo-virtual-core/server/internal/agent/graph/prompts"
	"github.com/mozo-virtual-core/server/internal/agent/model"
	logx "github.com/mozo-virtual-core/server/pkg/logger"
)

// NewAssemblerPreHandler binds the turn to its session in the graph state.
func NewAssemblerPreHandler() func(context.Context, model.TurnInput, *model.AgentState) (model.TurnInput, error) {
	return func(ctx context.Context, in model.TurnInput, s *model.AgentState) (model.TurnInput, error) {
		if s.SessionID == "" {
			s.SessionID = in.SessionID
		}
		return in, nil
	}
}

// NewAssemblerNode builds the model input: system directive plus trimmed history.
func NewAssemblerNode(mm *conversations.MessagesManager, promptCfg *model.PromptConfig) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.TurnInput) ([]*schema.Message, error) {
		systemPrompt, err := prompts.RenderAgentSystem(ctx, *promptCfg)
		if err != nil {
			return nil, fmt.Errorf("render agent system prompt: %w", err)
		}
		return mm.BuildAgentContext(systemPrompt), nil
	})
}

// NewAgentModelPreHandler accumulates the turn's messages and counts model
// calls. The call that reaches maxIterations gets a wrap-up notice.
func NewAgentModelPreHandler(maxIterations int) func(context.Context, []*schema.Message, *model.AgentState) ([]*schema.Message, error) {
	return func(ctx context.Context, in []*schema.Message, state *model.AgentState) ([]*schema.Message, error) {
		// Tool results must point at the call they answer.
		if len(in) > 0 {
			last := in[len(in)-1]
			if last != nil && last.Role == schema.Tool && strings.TrimSpace(last.ToolCallID) == "" {
				for i := len(state.Messages) - 1; i >= 0; i-- {
					msg := state.Messages[i]
					if msg == nil || msg.Role != schema.Assistant || len(msg.ToolCalls) == 0 {
						continue
					}
					if id := msg.ToolCalls[0].ID; strings.TrimSpace(id) != "" {
						last.ToolCallID = id
					}
					break
				}
			}
		}

		state.Messages = append(state.Messages, in...)

		if countModelCall(state, maxIterations) {
			logx.Warn().
				Str("session_id", state.SessionID).
				Int("model_calls", state.ModelCalls).
				Msg("Iteration cap reached - asking the model to wrap up")
			state.Messages = append(state.Messages, &schema.Message{
				Role: schema.System,
				Content: fmt.Sprintf(
					"AVISO DEL SISTEMA: alcanzaste el límite de %d pasos para este turno. "+
						"No llames más herramientas. Responde al cliente con la información que ya tienes "+
						"y dile con claridad si algo quedó pendiente.",
					normalizeMaxIterations(maxIterations),
				),
			})
		}

		logx.Debug().Str("session_id", state.SessionID).Int("model_call", state.ModelCalls).Msg("AI thinking...")
		return state.Messages, nil
	}
}

// NewAgentModelPostHandler prices the call, fills missing tool call IDs and
// flags a final message that still wants tools after the cap.
func NewAgentModelPostHandler(modelName string) func(context.Context, *schema.Message, *model.AgentState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AgentState) (*schema.Message, error) {
		if out == nil {
			return nil, fmt.Errorf("agent model returned no message")
		}

		if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
			cost := model.ComputeCost(modelName, out.ResponseMeta.Usage)
			state.TotalCostUSD += cost.TotalCost
			if out.Extra == nil {
				out.Extra = map[string]any{}
			}
			out.Extra[model.ExtraUsageCost] = cost.Extra()
			out.Extra[model.ExtraUsageTotalUSD] = state.TotalCostUSD
			logx.Debug().
				Str("session_id", state.SessionID).
				Str("node", NodeAgentModel).
				Str("model", modelName).
				Int("prompt_tokens", cost.PromptTokens).
				Int("completion_tokens", cost.CompletionTokens).
				Float64("total_cost_usd", cost.TotalCost).
				Msg("LLM usage")
		}

		// Gemini may omit tool call IDs.
		for i := range out.ToolCalls {
			if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
				state.ToolCallIDSeq++
				out.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.ToolCallIDSeq)
			}
		}

		state.Messages = append(state.Messages, out)

		if state.LimitReached && len(out.ToolCalls) > 0 {
			if out.Extra == nil {
				out.Extra = map[string]any{}
			}
			out.Extra[model.ExtraIterationLimit] = true
			logx.Warn().
				Str("session_id", state.SessionID).
				Int("pending_tool_calls", len(out.ToolCalls)).
				Msg("Model still requested tools after the iteration cap")
		} else if len(out.ToolCalls) > 0 {
			logx.Debug().Int("tool_count", len(out.ToolCalls)).Msg("Calling tools")
		} else {
			logx.Debug().Msg("AI response ready")
		}
		return out, nil
	}
}

// NewToolExecutorCondition routes to the tools node while the model asks for
// tools and the cap has not been reached.
func NewToolExecutorCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, input *schema.Message) (string, error) {
		var limitReached bool
		if err := compose.ProcessState(ctx, func(_ context.Context, state *model.AgentState) error {
			limitReached = state.LimitReached
			return nil
		}); err != nil {
			return "", err
		}

		if limitReached {
			logx.Debug().Msg("Iteration cap reached - routing to end")
			return compose.END, nil
		}
		if len(input.ToolCalls) > 0 {
			logx.Debug().Int("tool_count", len(input.ToolCalls)).Msg("Routing to ToolExecutor")
			return NodeToolExecutor, nil
		}
		return compose.END, nil
	}
}
