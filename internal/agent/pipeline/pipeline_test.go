package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/mozo-virtual-core/server/internal/agent/catalog"
	"github.com/mozo-virtual-core/server/internal/agent/knowledge"
	"github.com/mozo-virtual-core/server/internal/agent/ledger"
	"github.com/mozo-virtual-core/server/internal/agent/model"
	"github.com/mozo-virtual-core/server/internal/agent/persist"
	"github.com/mozo-virtual-core/server/internal/agent/pipeline"
	"github.com/mozo-virtual-core/server/internal/agent/tracing"
	errx "github.com/mozo-virtual-core/server/internal/core/error"
)

type brokenRetriever struct{}

func (brokenRetriever) Retrieve(context.Context, string, ...retriever.Option) ([]*schema.Document, error) {
	return nil, errors.New("vector store offline")
}

var now = time.Date(2026, time.October, 16, 21, 0, 0, 0, time.UTC)

func newPipeline(t *testing.T, cfg pipeline.Config) (*pipeline.Pipeline, *model.ConversationState) {
	t.Helper()
	c := catalog.Default()
	if cfg.Catalog == nil {
		cfg.Catalog = c
	}
	if cfg.Retriever == nil {
		cfg.Retriever = knowledge.NewMenuIndex(c, 5)
	}
	cfg.Now = func() time.Time { return now }
	state := model.NewConversationState("s-pipe", ledger.New(c))
	p, err := pipeline.New(context.Background(), cfg, state)
	require.NoError(t, err)
	return p, state
}

func TestExtractPreferences(t *testing.T) {
	tests := []struct {
		query string
		want  model.Preferences
	}{
		{"cena romántica", model.Preferences{Occasion: "romantica", Budget: "medio"}},
		{"Algo barato para la familia", model.Preferences{Occasion: "familiar", Budget: "bajo"}},
		{"comida de negocio premium con carne", model.Preferences{Occasion: "negocio", Budget: "alto", Cuisine: []string{"carnes"}}},
		{"soy vegetariano y celíaco", model.Preferences{Occasion: "general", Budget: "medio", Diet: []string{"vegetariano", "sin_gluten"}}},
		{"", model.Preferences{Occasion: "general", Budget: "medio"}},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			assert.Equal(t, tc.want, pipeline.ExtractPreferences(tc.query))
		})
	}
}

func TestJustificationDefaultsToGeneral(t *testing.T) {
	assert.Equal(t, pipeline.Justification("general"), pipeline.Justification("desconocida"))
	assert.Contains(t, pipeline.Justification("romantica"), "ocasión especial")
}

func TestRomanticDinnerScenario(t *testing.T) {
	p, state := newPipeline(t, pipeline.Config{})

	out, err := p.Run(context.Background(), "cena romántica")
	require.NoError(t, err)
	require.NotNil(t, out.Report)

	r := out.Report
	assert.Len(t, r.Recommendations, 3)
	assert.Equal(t, 3, r.Snapshot.RecommendationCount)
	assert.Equal(t, "romantica", r.Snapshot.Preferences.Occasion)
	assert.Equal(t, pipeline.Justification("romantica"), r.Justification)
	assert.Equal(t, "Solomillo de Ternera", r.Recommendations[0].Item)
	assert.Equal(t, int64(35000), r.Recommendations[0].Price)
	assert.Equal(t, now, r.Timestamp)

	assert.Contains(t, out.Reply, "1. Solomillo de Ternera ($35.000)")
	assert.Contains(t, out.Reply, "Ocasión romantica")
	assert.Len(t, state.Reports(), 1)
	require.NotNil(t, state.Investigation, "investigation stays in place after the report")
}

func TestInvestigatorOverwrites(t *testing.T) {
	ctx := context.Background()
	p, state := newPipeline(t, pipeline.Config{})

	_, err := p.Investigate(ctx, "cena romántica en pareja")
	require.NoError(t, err)
	ack, err := p.Investigate(ctx, "comida para la familia con niños")
	require.NoError(t, err)
	assert.Contains(t, ack, "3 recomendaciones")

	report, err := p.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "familiar", report.Snapshot.Preferences.Occasion)
	assert.Equal(t, "comida para la familia con niños", report.Query)
	var items []string
	for _, r := range report.Recommendations {
		items = append(items, r.Item)
	}
	assert.Equal(t, []string{"Paella Valenciana", "Tortilla Española", "Limonada Casera"}, items)
	assert.Equal(t, "comida para la familia con niños", state.Investigation.Query)
}

func TestReturnedReportDoesNotAliasLog(t *testing.T) {
	p, state := newPipeline(t, pipeline.Config{})

	out, err := p.Run(context.Background(), "cena romántica")
	require.NoError(t, err)
	out.Report.Recommendations[0].Item = "otro plato"

	logged := state.Reports()
	require.Len(t, logged, 1)
	assert.Equal(t, "Solomillo de Ternera", logged[0].Recommendations[0].Item)
	assert.Equal(t, "Solomillo de Ternera", state.Investigation.Recommendations[0].Item)
}

func TestDailySpecialQuestion(t *testing.T) {
	p, state := newPipeline(t, pipeline.Config{})

	out, err := p.Run(context.Background(), "¿Cuál es la especialidad de hoy?")
	require.NoError(t, err)

	require.Len(t, out.Report.Recommendations, 1)
	rec := out.Report.Recommendations[0]
	assert.Equal(t, "Paella de Mariscos", rec.Item)
	assert.Equal(t, "Especialidad del viernes", rec.Note)
	assert.Equal(t, "general", state.Investigation.Preferences.Occasion)
	assert.NotContains(t, out.Reply, "Solomillo de Ternera")
}

func TestRecommendationTableFollowsQueryWords(t *testing.T) {
	tests := []struct {
		query string
		first string
	}{
		{"una cena en pareja", "Solomillo de Ternera"},
		{"vamos con los niños", "Paella Valenciana"},
		{"algo vegetariano", "Risotto de Setas"},
		{"una comida de negocio", ""},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			p, _ := newPipeline(t, pipeline.Config{})
			out, err := p.Run(context.Background(), tc.query)
			require.NoError(t, err)
			if tc.first == "" {
				assert.Empty(t, out.Report.Recommendations)
				assert.Contains(t, out.Reply, "necesito más información")
				return
			}
			require.NotEmpty(t, out.Report.Recommendations)
			assert.Equal(t, tc.first, out.Report.Recommendations[0].Item)
		})
	}
}

func TestGenerateWithoutInvestigation(t *testing.T) {
	p, state := newPipeline(t, pipeline.Config{})

	report, err := p.Generate(context.Background())
	assert.Nil(t, report)
	assert.ErrorIs(t, err, pipeline.ErrNoInvestigation)
	assert.Empty(t, state.Reports())
}

func TestDietFallbackAndEmptyRecommendations(t *testing.T) {
	ctx := context.Background()
	p, _ := newPipeline(t, pipeline.Config{})

	out, err := p.Run(ctx, "qué me recomiendas vegano")
	require.NoError(t, err)
	assert.Len(t, out.Report.Recommendations, 3)
	assert.Equal(t, "Risotto de Setas", out.Report.Recommendations[0].Item)

	out, err = p.Run(ctx, "necesito un informe")
	require.NoError(t, err)
	assert.Empty(t, out.Report.Recommendations)
	assert.Contains(t, out.Reply, "necesito más información")
}

func TestRetrievalFailureKeepsSlot(t *testing.T) {
	p, state := newPipeline(t, pipeline.Config{Retriever: brokenRetriever{}})

	_, err := p.Run(context.Background(), "cena romántica")
	require.Error(t, err)
	assert.True(t, errx.Is(err, errx.KindResourceUnavailable))
	assert.Nil(t, state.Investigation)
	assert.Empty(t, state.Reports())
}

func TestReportIsPersistedAndTraced(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	sink := persist.NewRedisSink(rdb, time.Hour)

	rec := tracetest.NewSpanRecorder()
	tracer := tracing.New(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))

	p, _ := newPipeline(t, pipeline.Config{
		Tracer:   tracer,
		Recorder: persist.NewRecorder(sink, nil, nil),
	})
	_, err := p.Run(context.Background(), "cena romántica")
	require.NoError(t, err)

	n, err := sink.Count(context.Background(), "s-pipe")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "pipeline", spans[0].Name())
	var events []string
	for _, e := range spans[0].Events() {
		events = append(events, e.Name)
	}
	assert.Equal(t, []string{"query_received", "investigation_complete", "report_generated"}, events)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := pipeline.New(context.Background(), pipeline.Config{}, model.NewConversationState("s", nil))
	assert.Error(t, err)
}
