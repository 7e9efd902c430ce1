package model_test

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"

	"github.com/mozo-virtual-core/server/internal/agent/catalog"
	"github.com/mozo-virtual-core/server/internal/agent/ledger"
	"github.com/mozo-virtual-core/server/internal/agent/model"
)

func TestComputeCost(t *testing.T) {
	c := model.ComputeCost("gemini-2.5-flash", &schema.TokenUsage{
		PromptTokens:     1_000_000,
		CompletionTokens: 1_000_000,
		TotalTokens:      2_000_000,
	})
	assert.InDelta(t, 0.30, c.InputCost, 1e-9)
	assert.InDelta(t, 2.50, c.OutputCost, 1e-9)
	assert.InDelta(t, 2.80, c.TotalCost, 1e-9)
	assert.Equal(t, 2_000_000, c.Extra()["total_tokens"])

	unknown := model.ComputeCost("mystery", &schema.TokenUsage{PromptTokens: 10})
	assert.Zero(t, unknown.TotalCost)
	assert.Equal(t, 10, unknown.PromptTokens)

	assert.Zero(t, model.ComputeCost("gemini-2.5-flash", nil).TotalTokens)
}

func TestConversationStateReports(t *testing.T) {
	s := model.NewConversationState("s1", ledger.New(catalog.Default()))
	s.AppendMessage(schema.UserMessage("hola"), nil)
	assert.Len(t, s.History, 1)

	s.AppendReport(model.Report{Query: "a"})
	reports := s.Reports()
	reports[0].Query = "mutated"
	assert.Equal(t, "a", s.Reports()[0].Query)

	assert.False(t, s.CheckoutComplete())
	s.MarkCheckoutComplete()
	assert.True(t, s.CheckoutComplete())
}

func TestReportLogIsNotShared(t *testing.T) {
	s := model.NewConversationState("s1", ledger.New(catalog.Default()))
	r := model.Report{
		Query:           "cena romántica",
		Snapshot:        model.ReportSnapshot{Preferences: model.Preferences{Occasion: "romantica", Diet: []string{"vegano"}}},
		Recommendations: []model.Recommendation{{Item: "Solomillo de Ternera"}},
	}
	s.AppendReport(r)
	r.Recommendations[0].Item = "cambiado"

	got := s.Reports()
	got[0].Recommendations[0].Item = "cambiado"
	got[0].Snapshot.Preferences.Diet[0] = "cambiado"

	again := s.Reports()[0]
	assert.Equal(t, "Solomillo de Ternera", again.Recommendations[0].Item)
	assert.Equal(t, []string{"vegano"}, again.Snapshot.Preferences.Diet)
}
