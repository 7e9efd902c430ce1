package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mozo-virtual-core/server/internal/agent/catalog"
	"github.com/mozo-virtual-core/server/internal/agent/graph"
	"github.com/mozo-virtual-core/server/internal/agent/graph/conversations"
	"github.com/mozo-virtual-core/server/internal/agent/metrics"
	"github.com/mozo-virtual-core/server/internal/agent/model"
	"github.com/mozo-virtual-core/server/internal/agent/persist"
	"github.com/mozo-virtual-core/server/internal/agent/pipeline"
	"github.com/mozo-virtual-core/server/internal/agent/router"
	"github.com/mozo-virtual-core/server/internal/agent/tracing"
	errx "github.com/mozo-virtual-core/server/internal/core/error"
	logx "github.com/mozo-virtual-core/server/pkg/logger"
)

// Status is the position of a session in its lifecycle.
type Status int

const (
	Active Status = iota
	Blocked
	Terminated
)

func (s Status) String() string {
	switch s {
	case Blocked:
		return "blocked"
	case Terminated:
		return "terminated"
	default:
		return "active"
	}
}

// ErrSessionTerminated is returned for turns sent after the session ended.
var ErrSessionTerminated = errx.New(nil, errx.KindValidation, "the session has ended")

const (
	replyAgentDown  = "Lo siento, tengo problemas para responder en este momento. ¿Puedes intentarlo de nuevo en unos segundos?"
	replyEmpty      = "Perdona, no te entendí bien. ¿Puedes repetirlo?"
	noticeLimit     = "(No alcancé a completar todos los pasos en este turno. Dime si falta algo y lo termino.)"
	farewellPaid    = "¡Gracias por tu visita! Tu pedido está siendo preparado. ¡Que disfrutes tu comida!"
	farewellNoOrder = "¡Gracias por tu visita! ¡Esperamos verte pronto!"
)

var exitTokens = map[string]struct{}{"exit": {}, "quit": {}, "salir": {}}

// IsExit reports whether utterance is an exit request.
func IsExit(utterance string) bool {
	_, ok := exitTokens[strings.ToLower(strings.TrimSpace(utterance))]
	return ok
}

// Responder answers routine turns.
type Responder interface {
	Respond(ctx context.Context, sessionID, utterance string) (graph.Result, error)
}

// Investigator answers complex turns.
type Investigator interface {
	Run(ctx context.Context, query string) (*pipeline.Generated, error)
}

// Outcome describes one handled turn.
type Outcome struct {
	Reply  string
	Route  router.Route
	Status Status
	// Exit is set when the turn was an exit request and never reached routing.
	Exit bool
	// Persisted is where the turn block ended up. Exit turns are not persisted.
	Persisted persist.Outcome
}

type Options struct {
	AssistantName string
	Recorder      *persist.Recorder
	Metrics       *metrics.Metrics
	Tracer        *tracing.Tracer
	Now           func() time.Time
}

// Session runs the conversation loop of one guest. Turns must not overlap.
type Session struct {
	opts     Options
	state    *model.ConversationState
	mm       *conversations.MessagesManager
	agent    Responder
	pipeline Investigator
	status   Status
}

// New wires a session over state. pipe may be nil, in which case complex turns
// go to the agent.
func New(state *model.ConversationState, mm *conversations.MessagesManager, agent Responder, pipe Investigator, opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AssistantName == "" {
		opts.AssistantName = "Robino"
	}
	return &Session{opts: opts, state: state, mm: mm, agent: agent, pipeline: pipe}
}

func (s *Session) ID() string                      { return s.state.SessionID }
func (s *Session) Status() Status                  { return s.status }
func (s *Session) State() *model.ConversationState { return s.state }

// Handle processes one utterance.
func (s *Session) Handle(ctx context.Context, utterance string) (Outcome, error) {
	if s.status == Terminated {
		return Outcome{Status: Terminated}, ErrSessionTerminated
	}
	u := strings.TrimSpace(utterance)
	if u == "" {
		return Outcome{Status: s.status}, errx.Validation("empty utterance")
	}

	if IsExit(u) {
		return s.exit(), nil
	}
	s.status = Active

	ctx, tr := s.opts.Tracer.Start(ctx, "turn", map[string]any{
		"session_id": s.state.SessionID,
		"utterance":  u,
	})

	s.mm.AddUtterance(u)
	route := router.Classify(u)
	s.opts.Metrics.ObserveTurn(route.String())
	tr.Log("routed", map[string]any{"route": route.String()})

	reply := s.dispatch(ctx, route, u, tr)
	s.mm.SaveResponse(reply)

	if s.state.Ledger.Paid() && s.state.CheckoutComplete() {
		s.status = Terminated
	}

	persisted := s.opts.Recorder.Record(ctx, persist.TurnBlock(s.state.SessionID, s.opts.Now(), u, reply, s.opts.AssistantName))

	logx.Debug().
		Str("session_id", s.state.SessionID).
		Str("route", route.String()).
		Str("status", s.status.String()).
		Str("destination", string(persisted)).
		Msg("Turn handled")
	tr.End(map[string]any{
		"route":     route.String(),
		"status":    s.status.String(),
		"persisted": string(persisted),
	})

	return Outcome{Reply: reply, Route: route, Status: s.status, Persisted: persisted}, nil
}

func (s *Session) exit() Outcome {
	l := s.state.Ledger
	if l.Pending() {
		s.status = Blocked
		s.opts.Metrics.ObserveBlockedExit()
		logx.Info().
			Str("session_id", s.state.SessionID).
			Int64("pending_total", l.Total()).
			Msg("Exit blocked by unpaid order")
		return Outcome{
			Reply: fmt.Sprintf("¡Espera! Tienes un pedido pendiente de %s. Debes pagar antes de retirarte. ¿Quieres procesar el pago ahora?",
				catalog.FormatPrice(l.Total())),
			Status: Blocked,
			Exit:   true,
		}
	}

	s.status = Terminated
	reply := farewellNoOrder
	if l.Paid() {
		reply = farewellPaid
	}
	logx.Info().Str("session_id", s.state.SessionID).Msg("Session ended by guest")
	return Outcome{Reply: reply, Status: Terminated, Exit: true}
}

func (s *Session) dispatch(ctx context.Context, route router.Route, u string, tr *tracing.Trace) string {
	if route == router.Complex && s.pipeline != nil {
		out, err := s.pipeline.Run(ctx, u)
		if err == nil && out != nil {
			return out.Reply
		}
		s.opts.Metrics.ObservePipelineFallback()
		tr.Log("pipeline_fallback", map[string]any{"error": fmt.Sprint(err)})
		logx.Warn().Err(err).Str("session_id", s.state.SessionID).Msg("Pipeline failed - answering with the agent")
	}

	res, err := s.agent.Respond(ctx, s.state.SessionID, u)
	if err != nil {
		tr.Fail(err)
		logx.Error().Err(err).Str("session_id", s.state.SessionID).Msg("Agent failed")
		return replyAgentDown
	}

	reply := res.Content
	if res.LimitExceeded {
		s.opts.Metrics.ObserveIterationLimit()
		tr.Log("iteration_limit", nil)
		if reply == "" {
			reply = noticeLimit
		} else {
			reply += "\n\n" + noticeLimit
		}
	}
	if reply == "" {
		reply = replyEmpty
	}
	return reply
}
