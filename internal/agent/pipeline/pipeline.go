package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/compose"

	"github.com/mozo-virtual-core/server/internal/agent/catalog"
	"github.com/mozo-virtual-core/server/internal/agent/knowledge"
	"github.com/mozo-virtual-core/server/internal/agent/model"
	"github.com/mozo-virtual-core/server/internal/agent/persist"
	"github.com/mozo-virtual-core/server/internal/agent/tracing"
	errx "github.com/mozo-virtual-core/server/internal/core/error"
	logx "github.com/mozo-virtual-core/server/pkg/logger"
)

const (
	NodeInvestigator = "investigator"
	NodeGenerator    = "generator"

	DefaultTopK = 5

	nextActionPersist = "Guardar informe en el registro de conversaciones"
)

// ErrNoInvestigation is returned by Generate when no investigation has run.
var ErrNoInvestigation = errx.New(nil, errx.KindNotFound, "no investigation data available to build a report")

// Request is the input of the investigator stage.
type Request struct {
	Query string
}

// Investigated is passed from the investigator to the generator.
type Investigated struct {
	Query string
	Ack   string
}

// Generated is the pipeline output.
type Generated struct {
	Report *model.Report
	Reply  string
}

type Config struct {
	Catalog   *catalog.Catalog
	Retriever retriever.Retriever
	TopK      int
	Tracer    *tracing.Tracer
	Recorder  *persist.Recorder
	Now       func() time.Time
}

// Pipeline runs investigator then generator over one session's state.
type Pipeline struct {
	cfg   Config
	state *model.ConversationState
	chain compose.Runnable[*Request, *Generated]
}

func New(ctx context.Context, cfg Config, state *model.ConversationState) (*Pipeline, error) {
	if cfg.Catalog == nil || cfg.Retriever == nil {
		return nil, fmt.Errorf("pipeline: catalog and retriever are required")
	}
	if state == nil {
		return nil, fmt.Errorf("pipeline: session state is nil")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	p := &Pipeline{cfg: cfg, state: state}

	chain := compose.NewChain[*Request, *Generated]()
	chain.
		AppendLambda(compose.InvokableLambda(p.investigateStage), compose.WithNodeName(NodeInvestigator)).
		AppendLambda(compose.InvokableLambda(p.generateStage), compose.WithNodeName(NodeGenerator))

	runnable, err := chain.Compile(ctx, compose.WithGraphName("robino_pipeline"))
	if err != nil {
		return nil, fmt.Errorf("compile pipeline: %w", err)
	}
	p.chain = runnable
	return p, nil
}

// Run executes both stages for query and returns the guest-facing reply.
func (p *Pipeline) Run(ctx context.Context, query string) (*Generated, error) {
	ctx, tr := p.cfg.Tracer.Start(ctx, "pipeline", map[string]any{
		"session_id": p.state.SessionID,
		"query":      query,
	})
	tr.Log("query_received", nil)

	out, err := p.chain.Invoke(ctx, &Request{Query: query})
	if err != nil {
		if errx.KindOf(err) == errx.KindInternal {
			err = errx.Unavailable(err, "recommendation pipeline failed")
		}
		tr.Fail(err)
		tr.End(map[string]any{"success": false})
		return nil, err
	}

	recs := 0
	if out.Report != nil {
		recs = len(out.Report.Recommendations)
	}
	tr.End(map[string]any{"success": true, "recommendations_count": recs})
	return out, nil
}

// Investigate retrieves knowledge for query, extracts preferences and picks
// recommendations. The result replaces the session's investigation slot.
// The returned acknowledgment carries counts only.
func (p *Pipeline) Investigate(ctx context.Context, query string) (string, error) {
	docs, err := p.cfg.Retriever.Retrieve(ctx, query, retriever.WithTopK(p.cfg.TopK))
	if err != nil {
		return "", errx.Unavailable(err, "knowledge retrieval failed")
	}

	inv := &model.Investigation{
		Query:       query,
		Preferences: ExtractPreferences(query),
		CreatedAt:   p.cfg.Now(),
	}
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		inv.Findings = append(inv.Findings, model.Finding{
			Text:   doc.Content,
			Source: knowledge.Source(doc),
			Score:  doc.Score(),
		})
	}
	inv.Recommendations = p.recommend(query)

	p.state.Investigation = inv

	logx.Debug().
		Str("session_id", p.state.SessionID).
		Str("occasion", inv.Preferences.Occasion).
		Str("budget", inv.Preferences.Budget).
		Int("findings", len(inv.Findings)).
		Int("recommendations", len(inv.Recommendations)).
		Msg("Investigation completed")

	return fmt.Sprintf("Investigación completada: %d documentos relevantes, %d recomendaciones.",
		len(inv.Findings), len(inv.Recommendations)), nil
}

// Generate builds a report from the current investigation and appends it to
// the session log. Without an investigation it returns ErrNoInvestigation
// and appends nothing.
func (p *Pipeline) Generate(ctx context.Context) (*model.Report, error) {
	inv := p.state.Investigation
	if inv == nil {
		return nil, ErrNoInvestigation
	}

	recs := inv.Recommendations
	report := model.Report{
		Timestamp: p.cfg.Now(),
		Kind:      model.ReportKindRecommendation,
		Query:     inv.Query,
		Snapshot: model.ReportSnapshot{
			FindingsReviewed:    len(inv.Findings),
			RecommendationCount: len(recs),
			Preferences:         inv.Preferences,
		},
		Recommendations: recs,
		Justification:   Justification(inv.Preferences.Occasion),
		NextAction:      nextActionPersist,
	}
	p.state.AppendReport(report)

	outcome := p.cfg.Recorder.Record(ctx, persist.ReportBlock(p.state.SessionID, report))
	logx.Debug().
		Str("session_id", p.state.SessionID).
		Str("destination", string(outcome)).
		Int("recommendations", len(recs)).
		Msg("Report generated")

	out := report.Clone()
	return &out, nil
}

func (p *Pipeline) investigateStage(ctx context.Context, in *Request) (*Investigated, error) {
	ack, err := p.Investigate(ctx, in.Query)
	if err != nil {
		return nil, err
	}
	inv := p.state.Investigation
	tracing.FromContext(ctx).Log("investigation_complete", map[string]any{
		"findings":        len(inv.Findings),
		"recommendations": len(inv.Recommendations),
		"occasion":        inv.Preferences.Occasion,
		"budget":          inv.Preferences.Budget,
	})
	return &Investigated{Query: in.Query, Ack: ack}, nil
}

func (p *Pipeline) generateStage(ctx context.Context, in *Investigated) (*Generated, error) {
	report, err := p.Generate(ctx)
	if err != nil {
		return nil, err
	}
	tracing.FromContext(ctx).Log("report_generated", map[string]any{
		"recommendations": len(report.Recommendations),
		"justification":   report.Justification,
	})
	return &Generated{Report: report, Reply: Reply(in.Query, report)}, nil
}

// recommend answers daily-special questions with the dish of the day and
// otherwise uses the table the query names. Anything else gets no
// recommendations.
func (p *Pipeline) recommend(query string) []model.Recommendation {
	if asksDailySpecial(query) {
		day := p.cfg.Now().Weekday()
		if it, ok := p.cfg.Catalog.Special(day); ok {
			return []model.Recommendation{{
				Item:  it.Name,
				Note:  "Especialidad del " + strings.ToLower(catalog.DayName(day)),
				Price: it.Price,
			}}
		}
		return nil
	}

	table := p.cfg.Catalog.Recommendations(recommendationTable(query))
	if len(table) == 0 {
		return nil
	}
	out := make([]model.Recommendation, 0, len(table))
	for _, r := range table {
		rec := model.Recommendation{Item: r.Item, Note: r.Note}
		if it, ok := p.cfg.Catalog.Lookup(r.Item); ok {
			rec.Price = it.Price
		}
		out = append(out, rec)
	}
	return out
}

// Reply renders a report for the guest.
func Reply(query string, r *model.Report) string {
	if r == nil || len(r.Recommendations) == 0 {
		return "He analizado tu consulta pero necesito más información. ¿Podrías contarme un poco más sobre la ocasión o tus preferencias?"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "¡Perfecto! Analicé tu solicitud %q y tengo estas recomendaciones para ti:\n\n", query)
	for i, rec := range r.Recommendations {
		fmt.Fprintf(&b, "%d. %s", i+1, rec.Item)
		if rec.Price > 0 {
			fmt.Fprintf(&b, " (%s)", catalog.FormatPrice(rec.Price))
		}
		if rec.Note != "" {
			fmt.Fprintf(&b, " - %s", rec.Note)
		}
		b.WriteString("\n")
	}
	prefs := r.Snapshot.Preferences
	fmt.Fprintf(&b, "\nOcasión %s, presupuesto %s. %s\n", prefs.Occasion, prefs.Budget, r.Justification)
	b.WriteString("¿Quieres que agregue alguna a tu pedido?")
	return b.String()
}
