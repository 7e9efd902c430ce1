package conversations

import (
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/mozo-virtual-core/server/internal/agent/model"
)

// FullHistory as the window passes every stored message to the model.
const FullHistory = 0

// MessagesManager reads and writes the session history. Only user utterances
// and final replies are stored; tool exchanges stay inside the agent turn.
type MessagesManager struct {
	state    *model.ConversationState
	maxTurns int
}

func NewMessagesManager(state *model.ConversationState, config model.ConversationConfig) *MessagesManager {
	maxTurns := config.MaxTurns
	if maxTurns < 0 {
		maxTurns = FullHistory
	}
	return &MessagesManager{state: state, maxTurns: maxTurns}
}

// AddUtterance stores the guest message of the current turn.
func (mm *MessagesManager) AddUtterance(utterance string) {
	mm.state.AppendMessage(schema.UserMessage(utterance))
}

// SaveResponse stores the reply of the current turn. Empty replies are skipped.
func (mm *MessagesManager) SaveResponse(content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	mm.state.AppendMessage(schema.AssistantMessage(content, nil))
}

// BuildAgentContext returns the system directive followed by the history,
// limited to the configured window when one is set.
func (mm *MessagesManager) BuildAgentContext(systemPrompt string) []*schema.Message {
	messages := []*schema.Message{schema.SystemMessage(systemPrompt)}
	return append(messages, TrimTail(mm.state.History, mm.maxTurns)...)
}

// TrimTail returns a copy of the last maxTurns messages. A leading assistant
// message left by the cut is dropped so the context opens with the guest.
func TrimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	source := messages
	if maxTurns > 0 && len(messages) > maxTurns {
		source = messages[len(messages)-maxTurns:]
		for len(source) > 0 && source[0] != nil && source[0].Role != schema.User {
			source = source[1:]
		}
	}
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
