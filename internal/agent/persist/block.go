package persist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mozo-virtual-core/server/internal/agent/catalog"
	"github.com/mozo-virtual-core/server/internal/agent/model"
)

type BlockKind string

const (
	KindTurn   BlockKind = "turn"
	KindReport BlockKind = "report"
)

// Entry types, modelled on page block types.
const (
	EntryHeading   = "heading"
	EntryParagraph = "paragraph"
	EntryBullet    = "bulleted_list_item"
	EntryDivider   = "divider"
)

type Entry struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Block is one structured record appended to the conversation log.
type Block struct {
	Kind      BlockKind `json:"kind"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Title     string    `json:"title"`
	Entries   []Entry   `json:"entries"`
}

// Sink appends blocks to a conversation log.
type Sink interface {
	Append(ctx context.Context, b Block) error
}

// TurnBlock records one guest utterance and the assistant reply.
func TurnBlock(sessionID string, at time.Time, utterance, reply, assistant string) Block {
	if assistant == "" {
		assistant = "Robino"
	}
	return Block{
		Kind:      KindTurn,
		SessionID: sessionID,
		Timestamp: at,
		Title:     "Conversación - " + at.Format("2006-01-02 15:04:05"),
		Entries: []Entry{
			{Type: EntryParagraph, Text: "Cliente: " + utterance},
			{Type: EntryParagraph, Text: assistant + ": " + reply},
			{Type: EntryDivider},
		},
	}
}

// ReportBlock records a recommendation report.
func ReportBlock(sessionID string, r model.Report) Block {
	entries := []Entry{
		{Type: EntryParagraph, Text: "Consulta: " + r.Query},
		{Type: EntryParagraph, Text: fmt.Sprintf("Preferencias: ocasión %s, presupuesto %s", r.Snapshot.Preferences.Occasion, r.Snapshot.Preferences.Budget)},
	}
	if len(r.Snapshot.Preferences.Diet) > 0 {
		entries = append(entries, Entry{Type: EntryParagraph, Text: "Dieta: " + strings.Join(r.Snapshot.Preferences.Diet, ", ")})
	}
	for _, rec := range r.Recommendations {
		text := rec.Item + " - " + rec.Note
		if rec.Price > 0 {
			text += " (" + catalog.FormatPrice(rec.Price) + ")"
		}
		entries = append(entries, Entry{Type: EntryBullet, Text: text})
	}
	entries = append(entries,
		Entry{Type: EntryParagraph, Text: "Justificación: " + r.Justification},
		Entry{Type: EntryParagraph, Text: "Siguiente paso: " + r.NextAction},
		Entry{Type: EntryDivider},
	)
	return Block{
		Kind:      KindReport,
		SessionID: sessionID,
		Timestamp: r.Timestamp,
		Title:     "Informe de recomendación - " + r.Timestamp.Format("2006-01-02 15:04:05"),
		Entries:   entries,
	}
}
