package nodes

import (
	"github.com/mozo-virtual-core/server/internal/agent/model"
)

const DefaultMaxIterations = 10

// normalizeMaxIterations returns a sane default when the provided value is invalid.
func normalizeMaxIterations(n int) int {
	if n <= 0 {
		return DefaultMaxIterations
	}
	return n
}

// countModelCall records one model invocation and marks the state when it is
// the last one allowed. Returns true only on the invocation that hits the cap.
func countModelCall(state *model.AgentState, max int) bool {
	max = normalizeMaxIterations(max)
	state.ModelCalls++
	if !state.LimitReached && state.ModelCalls >= max {
		state.LimitReached = true
		return true
	}
	return false
}

// MaxRunSteps bounds the compiled graph: the assembler, max model calls and
// the tool rounds between them, with some slack.
func MaxRunSteps(maxIterations int) int {
	steps := 10 + normalizeMaxIterations(maxIterations)*2
	if steps < 20 {
		steps = 20
	}
	return steps
}
