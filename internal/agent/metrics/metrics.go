package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mozo-virtual-core/server/internal/agent/persist"
	logx "github.com/mozo-virtual-core/server/pkg/logger"
)

const namespace = "robino"

// Metrics holds the assistant's Prometheus collectors. All methods are safe
// on a nil *Metrics.
type Metrics struct {
	Turns            *prometheus.CounterVec
	ToolCalls        *prometheus.CounterVec
	ToolDuration     *prometheus.HistogramVec
	Persisted        *prometheus.CounterVec
	PipelineFallback prometheus.Counter
	IterationLimit   prometheus.Counter
	BlockedExits     prometheus.Counter
}

// New creates the collectors and registers them on reg when it is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns by route.",
		}, []string{"route"}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and outcome.",
		}, []string{"tool", "outcome"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Duration of tool executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		Persisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persisted_blocks_total",
			Help:      "Conversation blocks by persistence destination.",
		}, []string{"destination"}),
		PipelineFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_fallbacks_total",
			Help:      "Complex turns answered by the single agent after a pipeline failure.",
		}),
		IterationLimit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iteration_limit_total",
			Help:      "Agent turns that hit the iteration cap.",
		}),
		BlockedExits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocked_exits_total",
			Help:      "Exit attempts refused because of an unpaid order.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Turns, m.ToolCalls, m.ToolDuration, m.Persisted, m.PipelineFallback, m.IterationLimit, m.BlockedExits)
	}
	return m
}

func (m *Metrics) ObserveTurn(route string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(route).Inc()
}

func (m *Metrics) ObserveTool(tool, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, outcome).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// ObservePersist implements persist.Observer.
func (m *Metrics) ObservePersist(outcome persist.Outcome) {
	if m == nil {
		return
	}
	m.Persisted.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) ObservePipelineFallback() {
	if m == nil {
		return
	}
	m.PipelineFallback.Inc()
}

func (m *Metrics) ObserveIterationLimit() {
	if m == nil {
		return
	}
	m.IterationLimit.Inc()
}

func (m *Metrics) ObserveBlockedExit() {
	if m == nil {
		return
	}
	m.BlockedExits.Inc()
}

// Serve exposes gatherer on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logx.Info().Str("addr", addr).Msg("Starting metrics server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

var _ persist.Observer = (*Metrics)(nil)
