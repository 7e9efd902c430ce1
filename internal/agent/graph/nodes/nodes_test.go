package nodes

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozo-virtual-core/server/internal/agent/model"
)

func TestCountModelCall(t *testing.T) {
	s := &model.AgentState{}
	assert.False(t, countModelCall(s, 3))
	assert.False(t, countModelCall(s, 3))
	assert.True(t, countModelCall(s, 3))
	assert.True(t, s.LimitReached)
	assert.False(t, countModelCall(s, 3), "cap is only reported once")
	assert.Equal(t, 4, s.ModelCalls)
}

func TestMaxRunSteps(t *testing.T) {
	assert.Equal(t, 30, MaxRunSteps(10))
	assert.Equal(t, 20, MaxRunSteps(1))
	assert.Equal(t, 30, MaxRunSteps(0))
}

func TestAgentModelPreHandlerInjectsWrapUp(t *testing.T) {
	pre := NewAgentModelPreHandler(2)
	s := &model.AgentState{SessionID: "s"}

	out, err := pre(context.Background(), []*schema.Message{schema.UserMessage("hola")}, s)
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.False(t, s.LimitReached)

	out, err = pre(context.Background(), []*schema.Message{schema.ToolMessage("ok", "call_1")}, s)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.True(t, s.LimitReached)
	assert.Equal(t, schema.System, out[2].Role)
	assert.Contains(t, out[2].Content, "límite de 2 pasos")
}

func TestAgentModelPostHandler(t *testing.T) {
	post := NewAgentModelPostHandler("gemini-2.5-flash")
	s := &model.AgentState{}

	msg := &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{
			{Function: schema.FunctionCall{Name: "view_order"}},
			{ID: "given", Function: schema.FunctionCall{Name: "payment_status"}},
			{Function: schema.FunctionCall{Name: "show_menu"}},
		},
		ResponseMeta: &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 0, TotalTokens: 1_000_000}},
	}
	out, err := post(context.Background(), msg, s)
	require.NoError(t, err)
	assert.Equal(t, "call_1", out.ToolCalls[0].ID)
	assert.Equal(t, "given", out.ToolCalls[1].ID)
	assert.Equal(t, "call_2", out.ToolCalls[2].ID)
	assert.InDelta(t, 0.30, s.TotalCostUSD, 1e-9)
	assert.NotContains(t, out.Extra, model.ExtraIterationLimit)

	s.LimitReached = true
	out, err = post(context.Background(), &schema.Message{Role: schema.Assistant, ToolCalls: []schema.ToolCall{{ID: "x"}}}, s)
	require.NoError(t, err)
	assert.Equal(t, true, out.Extra[model.ExtraIterationLimit])

	_, err = post(context.Background(), nil, s)
	assert.Error(t, err)
}
