package session_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozo-virtual-core/server/internal/agent/catalog"
	"github.com/mozo-virtual-core/server/internal/agent/graph"
	"github.com/mozo-virtual-core/server/internal/agent/graph/conversations"
	"github.com/mozo-virtual-core/server/internal/agent/knowledge"
	"github.com/mozo-virtual-core/server/internal/agent/ledger"
	"github.com/mozo-virtual-core/server/internal/agent/metrics"
	"github.com/mozo-virtual-core/server/internal/agent/model"
	"github.com/mozo-virtual-core/server/internal/agent/persist"
	"github.com/mozo-virtual-core/server/internal/agent/pipeline"
	"github.com/mozo-virtual-core/server/internal/agent/router"
	"github.com/mozo-virtual-core/server/internal/agent/session"
	errx "github.com/mozo-virtual-core/server/internal/core/error"
)

var now = time.Date(2026, time.October, 16, 21, 0, 0, 0, time.UTC)

type responderFunc func(ctx context.Context, sessionID, utterance string) (graph.Result, error)

func (f responderFunc) Respond(ctx context.Context, sessionID, utterance string) (graph.Result, error) {
	return f(ctx, sessionID, utterance)
}

type investigatorFunc func(ctx context.Context, query string) (*pipeline.Generated, error)

func (f investigatorFunc) Run(ctx context.Context, query string) (*pipeline.Generated, error) {
	return f(ctx, query)
}

type fixture struct {
	state   *model.ConversationState
	metrics *metrics.Metrics
	agent   []string
	pipe    []string
	s       *session.Session
}

func newFixture(t *testing.T, reply responderFunc, inv investigatorFunc, rec *persist.Recorder) *fixture {
	t.Helper()
	c := catalog.Default()
	f := &fixture{
		state:   model.NewConversationState("s-loop", ledger.New(c)),
		metrics: metrics.New(nil),
	}
	mm := conversations.NewMessagesManager(f.state, model.ConversationConfig{MaxTurns: 20})

	agent := responderFunc(func(ctx context.Context, id, u string) (graph.Result, error) {
		f.agent = append(f.agent, u)
		return reply(ctx, id, u)
	})
	var pipe session.Investigator
	if inv != nil {
		pipe = investigatorFunc(func(ctx context.Context, q string) (*pipeline.Generated, error) {
			f.pipe = append(f.pipe, q)
			return inv(ctx, q)
		})
	}
	f.s = session.New(f.state, mm, agent, pipe, session.Options{
		AssistantName: "Robino",
		Recorder:      rec,
		Metrics:       f.metrics,
		Now:           func() time.Time { return now },
	})
	return f
}

func say(text string) responderFunc {
	return func(context.Context, string, string) (graph.Result, error) {
		return graph.Result{Content: text}, nil
	}
}

func TestIsExit(t *testing.T) {
	for _, u := range []string{"salir", "SALIR", " exit ", "Quit"} {
		assert.True(t, session.IsExit(u), u)
	}
	for _, u := range []string{"quiero salir", "salida", ""} {
		assert.False(t, session.IsExit(u), u)
	}
}

func TestExitWithPendingOrderIsBlocked(t *testing.T) {
	f := newFixture(t, say("De nada."), nil, nil)
	_, err := f.state.Ledger.Add("croquetas", 2)
	require.NoError(t, err)

	out, err := f.s.Handle(context.Background(), "salir")
	require.NoError(t, err)
	assert.True(t, out.Exit)
	assert.Equal(t, session.Blocked, out.Status)
	assert.Contains(t, out.Reply, "pedido pendiente de $24.000")
	assert.Contains(t, out.Reply, "¿Quieres procesar el pago ahora?")
	assert.Empty(t, f.agent)
	assert.Empty(t, f.state.History)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BlockedExits))

	out, err = f.s.Handle(context.Background(), "gracias")
	require.NoError(t, err)
	assert.Equal(t, session.Active, out.Status)
	assert.Equal(t, []string{"gracias"}, f.agent)
}

func TestExitWithoutOrderTerminates(t *testing.T) {
	f := newFixture(t, say("hola"), nil, nil)

	out, err := f.s.Handle(context.Background(), "Salir")
	require.NoError(t, err)
	assert.Equal(t, session.Terminated, out.Status)
	assert.Equal(t, "¡Gracias por tu visita! ¡Esperamos verte pronto!", out.Reply)

	_, err = f.s.Handle(context.Background(), "hola")
	assert.ErrorIs(t, err, session.ErrSessionTerminated)
	assert.Empty(t, f.agent)
}

func TestExitAfterPaymentSaysEnjoy(t *testing.T) {
	f := newFixture(t, say("hola"), nil, nil)
	_, err := f.state.Ledger.Add("croquetas", 1)
	require.NoError(t, err)
	_, err = f.state.Ledger.Pay()
	require.NoError(t, err)

	out, err := f.s.Handle(context.Background(), "exit")
	require.NoError(t, err)
	assert.Equal(t, session.Terminated, out.Status)
	assert.Contains(t, out.Reply, "Tu pedido está siendo preparado")
}

func TestBlankUtteranceIsRejected(t *testing.T) {
	f := newFixture(t, say("hola"), nil, nil)
	_, err := f.s.Handle(context.Background(), "   ")
	assert.True(t, errx.Is(err, errx.KindValidation))
	assert.Empty(t, f.agent)
}

func TestRoutineTurnUsesAgent(t *testing.T) {
	f := newFixture(t, say("Abrimos a las 12:00."), func(context.Context, string) (*pipeline.Generated, error) {
		t.Fatal("pipeline must not run for routine turns")
		return nil, nil
	}, nil)

	out, err := f.s.Handle(context.Background(), "¿a qué hora abren?")
	require.NoError(t, err)
	assert.Equal(t, router.Routine, out.Route)
	assert.Equal(t, "Abrimos a las 12:00.", out.Reply)
	assert.Equal(t, persist.OutcomeDropped, out.Persisted)

	require.Len(t, f.state.History, 2)
	assert.Equal(t, schema.User, f.state.History[0].Role)
	assert.Equal(t, schema.Assistant, f.state.History[1].Role)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Turns.WithLabelValues("routine")))
}

func TestComplexTurnUsesPipeline(t *testing.T) {
	f := newFixture(t, say("no"), func(_ context.Context, q string) (*pipeline.Generated, error) {
		return &pipeline.Generated{Reply: "Te recomiendo la paella."}, nil
	}, nil)

	out, err := f.s.Handle(context.Background(), "Quiero una cena romántica")
	require.NoError(t, err)
	assert.Equal(t, router.Complex, out.Route)
	assert.Equal(t, "Te recomiendo la paella.", out.Reply)
	assert.Equal(t, []string{"Quiero una cena romántica"}, f.pipe)
	assert.Empty(t, f.agent)
}

func TestPipelineFailureFallsBackToAgent(t *testing.T) {
	f := newFixture(t, say("Te sugiero el salmón."), func(context.Context, string) (*pipeline.Generated, error) {
		return nil, errx.Unavailable(errors.New("offline"), "recommendation pipeline failed")
	}, nil)

	out, err := f.s.Handle(context.Background(), "algo vegetariano por favor")
	require.NoError(t, err)
	assert.Equal(t, router.Complex, out.Route)
	assert.Equal(t, "Te sugiero el salmón.", out.Reply)
	assert.Len(t, f.agent, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PipelineFallback))
}

func TestAgentFailureApologizes(t *testing.T) {
	f := newFixture(t, func(context.Context, string, string) (graph.Result, error) {
		return graph.Result{}, errx.Unavailable(errors.New("quota"), "agent turn failed")
	}, nil, nil)

	out, err := f.s.Handle(context.Background(), "hola")
	require.NoError(t, err)
	assert.Contains(t, out.Reply, "Lo siento")
	assert.Equal(t, session.Active, out.Status)
	require.Len(t, f.state.History, 2)
}

func TestIterationLimitAddsNotice(t *testing.T) {
	f := newFixture(t, func(context.Context, string, string) (graph.Result, error) {
		return graph.Result{Content: "Revisando...", LimitExceeded: true}, nil
	}, nil, nil)

	out, err := f.s.Handle(context.Background(), "¿qué pedí?")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Reply, "Revisando..."))
	assert.Contains(t, out.Reply, "No alcancé a completar")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.IterationLimit))
}

func TestPaymentTerminatesSession(t *testing.T) {
	var f *fixture
	f = newFixture(t, func(context.Context, string, string) (graph.Result, error) {
		if _, err := f.state.Ledger.Pay(); err != nil {
			return graph.Result{}, err
		}
		f.state.MarkCheckoutComplete()
		return graph.Result{Content: "Pago procesado."}, nil
	}, nil, nil)
	_, err := f.state.Ledger.Add("croquetas", 1)
	require.NoError(t, err)

	out, err := f.s.Handle(context.Background(), "quiero pagar")
	require.NoError(t, err)
	assert.False(t, out.Exit)
	assert.Equal(t, session.Terminated, out.Status)
	assert.Equal(t, session.Terminated, f.s.Status())
}

func TestTurnsArePersisted(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	sink := persist.NewRedisSink(rdb, time.Hour)

	f := newFixture(t, say("¡Bienvenido!"), nil, persist.NewRecorder(sink, nil, nil))
	ctx := context.Background()

	out, err := f.s.Handle(ctx, "hola")
	require.NoError(t, err)
	assert.Equal(t, persist.OutcomeRemote, out.Persisted)
	_, err = f.s.Handle(ctx, "gracias")
	require.NoError(t, err)

	blocks, err := sink.Load(ctx, "s-loop")
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "Cliente: hola", blocks[0].Entries[0].Text)
	assert.Equal(t, "Robino: ¡Bienvenido!", blocks[0].Entries[1].Text)
	assert.True(t, now.Equal(blocks[0].Timestamp))

	// exit turns never reach the log
	_, err = f.s.Handle(ctx, "salir")
	require.NoError(t, err)
	n, err := sink.Count(ctx, "s-loop")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunCLIExit(t *testing.T) {
	f := newFixture(t, say("¡Hola! ¿Qué te apetece?"), nil, nil)
	var out bytes.Buffer

	err := session.RunCLI(context.Background(), f.s, strings.NewReader("hola\n\n  \nsalir\nhola otra vez\n"), &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Cliente: ")
	assert.Contains(t, text, "Robino: ¡Hola! ¿Qué te apetece?")
	assert.Contains(t, text, "Robino: ¡Gracias por tu visita! ¡Esperamos verte pronto!")
	assert.Equal(t, []string{"hola"}, f.agent)
	assert.NotContains(t, text, "HASTA LUEGO")
}

func TestRunCLIEndOfInput(t *testing.T) {
	f := newFixture(t, say("ok"), nil, nil)
	var out bytes.Buffer

	err := session.RunCLI(context.Background(), f.s, strings.NewReader("hola"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Conversación terminada.")
	assert.Equal(t, session.Active, f.s.Status())
}

func TestRunCLIDiscardsOverlongLine(t *testing.T) {
	f := newFixture(t, say("¡Hola!"), nil, nil)
	_, err := f.state.Ledger.Add("croquetas", 1)
	require.NoError(t, err)

	input := strings.Repeat("a", session.MaxLineBytes+5000) + "\nhola\nsalir\n"
	var out bytes.Buffer
	err = session.RunCLI(context.Background(), f.s, strings.NewReader(input), &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Tu mensaje es demasiado largo")
	assert.Equal(t, []string{"hola"}, f.agent)
	assert.Contains(t, text, "pedido pendiente")
	assert.Equal(t, session.Blocked, f.s.Status())
}

func TestRunCLIBannerAndRenderer(t *testing.T) {
	var f *fixture
	f = newFixture(t, func(context.Context, string, string) (graph.Result, error) {
		_, _ = f.state.Ledger.Pay()
		f.state.MarkCheckoutComplete()
		return graph.Result{Content: "pagado"}, nil
	}, nil, nil)
	_, err := f.state.Ledger.Add("croquetas", 1)
	require.NoError(t, err)

	var out bytes.Buffer
	upper := func(s string) (string, error) { return strings.ToUpper(s), nil }
	err = session.RunCLI(context.Background(), f.s, strings.NewReader("pagar\nhola\n"), &out,
		session.WithBanner("La Taberna del Río", false),
		session.WithRenderer(upper),
	)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "BIENVENIDO A LA TABERNA DEL RÍO")
	assert.Contains(t, text, "Robino: PAGADO")
	assert.Contains(t, text, "¡HASTA LUEGO! ¡Esperamos verte pronto en La Taberna del Río!")
	assert.Equal(t, []string{"pagar"}, f.agent)
}

// scriptedModel plays back a fixed list of replies.
type scriptedModel struct {
	mu      sync.Mutex
	replies []*schema.Message
	calls   int
}

func (m *scriptedModel) Generate(context.Context, []*schema.Message, ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls >= len(m.replies) {
		return nil, errors.New("script exhausted")
	}
	msg := m.replies[m.calls]
	m.calls++
	return msg, nil
}

func (m *scriptedModel) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *scriptedModel) WithTools([]*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return m, nil
}

func toolCall(name, args string) schema.ToolCall {
	return schema.ToolCall{Type: "function", Function: schema.FunctionCall{Name: name, Arguments: args}}
}

func TestStartOrderAndPay(t *testing.T) {
	c := catalog.Default()
	m := &scriptedModel{replies: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{
			toolCall("add_to_order", `{"item": "croquetas", "quantity": 2}`),
			toolCall("process_payment", `{}`),
		}),
		schema.AssistantMessage("Pagaste $24.000. ¡Buen provecho!", nil),
	}}
	reg := metrics.New(nil)

	s, err := session.Start(context.Background(), session.Deps{
		Model:        m,
		ModelName:    "gemini-2.5-flash",
		Catalog:      c,
		Retriever:    knowledge.NewMenuIndex(c, 3),
		Conversation: model.ConversationConfig{MaxTurns: 20, MaxIterations: 10},
		Prompt:       model.PromptConfig{RestaurantName: "La Taberna del Río", AssistantName: "Robino"},
		Pipeline:     model.PipelineConfig{TopK: 5},
		Knowledge:    model.KnowledgeConfig{MenuSearchTopK: 3},
		Metrics:      reg,
		Now:          func() time.Time { return now },
	})
	require.NoError(t, err)
	_, err = uuid.Parse(s.ID())
	require.NoError(t, err)

	out, err := s.Handle(context.Background(), "dos croquetas y la cuenta")
	require.NoError(t, err)
	assert.Equal(t, "Pagaste $24.000. ¡Buen provecho!", out.Reply)
	assert.Equal(t, session.Terminated, out.Status)
	assert.True(t, s.State().Ledger.Paid())
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.ToolCalls.WithLabelValues("process_payment", "ok")))
}

func TestStartRequiresCatalog(t *testing.T) {
	_, err := session.Start(context.Background(), session.Deps{})
	assert.Error(t, err)
}
