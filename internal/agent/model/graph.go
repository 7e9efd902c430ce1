package model

import (
	"github.com/cloudwego/eino/schema"
)

// AgentState stores per-turn state for the agent graph.
// Concurrency model:
//   - Registered as graph local state via compose.WithGenLocalState, so each
//     Invoke starts from a fresh value.
//   - Read and written only inside state handlers (WithStatePreHandler,
//     WithStatePostHandler) or compose.ProcessState, which serialize access.
type AgentState struct {
	SessionID     string
	Messages      []*schema.Message // model input accumulated during the turn
	ModelCalls    int               // model invocations in this turn
	LimitReached  bool              // set on the invocation that hits the cap
	ToolCallIDSeq int               // sequence used to synthesize missing tool call IDs

	TotalCostUSD float64
}

// TurnInput is the input of one agent turn. The utterance is expected to be
// the last user message of the session history already.
type TurnInput struct {
	SessionID string `json:"session_id"`
	Utterance string `json:"utterance"`
}

// Extra keys set on the final agent message.
const (
	ExtraIterationLimit = "iteration_limit_exceeded"
	ExtraUsageCost      = "usage_cost"
	ExtraUsageTotalUSD  = "usage_cost_total_usd"
)
