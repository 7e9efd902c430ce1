package tracing

import (
	"context"
	"fmt"
	"os"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/mozo-virtual-core/server/internal/agent"

// Tracer starts traces for pipeline runs and agent turns.
type Tracer struct {
	tracer trace.Tracer
}

// New returns a Tracer backed by tp. A nil provider yields a no-op tracer.
func New(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &Tracer{tracer: tp.Tracer(instrumentationName)}
}

// NewFileProvider exports spans as JSON to path. The returned shutdown
// flushes pending spans and closes the file.
func NewFileProvider(path, serviceName string) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace file: %w", err)
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	shutdown := func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		return err
	}
	return tp, shutdown, nil
}

// Trace is one traced run. All methods are safe on a nil Trace.
type Trace struct {
	span trace.Span
}

// Start opens a trace named name with metadata as attributes.
func (t *Tracer) Start(ctx context.Context, name string, metadata map[string]any) (context.Context, *Trace) {
	if t == nil || t.tracer == nil {
		return ctx, &Trace{span: trace.SpanFromContext(ctx)}
	}
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attributes(metadata)...))
	return ctx, &Trace{span: span}
}

// FromContext returns the trace carried by ctx. Logging on it is a no-op when
// ctx holds no recording span. It must not be ended by the caller.
func FromContext(ctx context.Context) *Trace {
	return &Trace{span: trace.SpanFromContext(ctx)}
}

// Log records an event on the trace.
func (tr *Trace) Log(event string, data map[string]any) {
	if tr == nil || tr.span == nil {
		return
	}
	tr.span.AddEvent(event, trace.WithAttributes(attributes(data)...))
}

// Fail marks the trace as failed.
func (tr *Trace) Fail(err error) {
	if tr == nil || tr.span == nil || err == nil {
		return
	}
	tr.span.RecordError(err)
	tr.span.SetStatus(codes.Error, err.Error())
}

// End closes the trace with result attributes.
func (tr *Trace) End(result map[string]any) {
	if tr == nil || tr.span == nil {
		return
	}
	tr.span.SetAttributes(attributes(result)...)
	tr.span.End()
}

func attributes(m map[string]any) []attribute.KeyValue {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kvs := make([]attribute.KeyValue, 0, len(m))
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			kvs = append(kvs, attribute.String(k, v))
		case bool:
			kvs = append(kvs, attribute.Bool(k, v))
		case int:
			kvs = append(kvs, attribute.Int(k, v))
		case int64:
			kvs = append(kvs, attribute.Int64(k, v))
		case float64:
			kvs = append(kvs, attribute.Float64(k, v))
		case []string:
			kvs = append(kvs, attribute.StringSlice(k, v))
		default:
			kvs = append(kvs, attribute.String(k, fmt.Sprint(v)))
		}
	}
	return kvs
}
