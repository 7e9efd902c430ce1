package model

import (
	"github.com/cloudwego/eino/schema"

	"github.com/mozo-virtual-core/server/internal/agent/ledger"
)

// ConversationState is everything a session owns. It is created once per
// session and passed by reference to the agent, the tools and the pipeline.
// Turns are sequential, so no locking is done here.
type ConversationState struct {
	SessionID string
	// History holds user and final assistant messages only; tool exchanges
	// live in the agent's per-turn graph state.
	History []*schema.Message
	Ledger  *ledger.Ledger
	// Investigation is a single slot, replaced by every investigation.
	Investigation *Investigation

	reports          []Report
	checkoutComplete bool
}

func NewConversationState(sessionID string, l *ledger.Ledger) *ConversationState {
	return &ConversationState{
		SessionID: sessionID,
		Ledger:    l,
	}
}

func (s *ConversationState) AppendMessage(msgs ...*schema.Message) {
	for _, m := range msgs {
		if m != nil {
			s.History = append(s.History, m)
		}
	}
}

// AppendReport adds a copy of r to the append-only report log.
func (s *ConversationState) AppendReport(r Report) {
	s.reports = append(s.reports, r.Clone())
}

// Reports returns a deep copy of the report log.
func (s *ConversationState) Reports() []Report {
	out := make([]Report, len(s.reports))
	for i, r := range s.reports {
		out[i] = r.Clone()
	}
	return out
}

// MarkCheckoutComplete records that a payment went through in this session.
// The conversation loop ends the session after the turn that set it.
func (s *ConversationState) MarkCheckoutComplete() {
	s.checkoutComplete = true
}

func (s *ConversationState) CheckoutComplete() bool {
	return s.checkoutComplete
}
