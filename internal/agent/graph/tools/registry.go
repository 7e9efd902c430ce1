package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	errx "github.com/mozo-virtual-core/server/internal/core/error"
	logx "github.com/mozo-virtual-core/server/pkg/logger"
)

// ErrUnknownTool is returned by Dispatch for names that were never registered.
var ErrUnknownTool = errx.New(nil, errx.KindNotFound, "unknown tool")

// Args are validated tool arguments. Integer parameters are stored as int.
type Args map[string]any

func (a Args) String(key string) string {
	s, _ := a[key].(string)
	return strings.TrimSpace(s)
}

func (a Args) Int(key string, def int) int {
	if n, ok := a[key].(int); ok {
		return n
	}
	return def
}

// Handler executes a tool with already validated arguments.
type Handler func(ctx context.Context, args Args) (string, error)

// Spec declares a tool: its name, the description and parameters shown to
// the model, and the handler.
type Spec struct {
	Name    string
	Desc    string
	Params  map[string]*schema.ParameterInfo
	Handler Handler
}

func (s *Spec) info() *schema.ToolInfo {
	info := &schema.ToolInfo{Name: s.Name, Desc: s.Desc}
	if len(s.Params) > 0 {
		info.ParamsOneOf = schema.NewParamsOneOfByParams(s.Params)
	}
	return info
}

// Observer is notified after every dispatch.
type Observer interface {
	ObserveTool(tool, outcome string, d time.Duration)
}

// Registry maps tool names to validated handlers. Registration order is the
// order tools are offered to the model.
type Registry struct {
	specs    map[string]*Spec
	order    []string
	observer Observer
}

func NewRegistry(observer Observer) *Registry {
	return &Registry{specs: map[string]*Spec{}, observer: observer}
}

func (r *Registry) Register(specs ...Spec) error {
	for i := range specs {
		s := specs[i]
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("tool name is empty")
		}
		if s.Handler == nil {
			return fmt.Errorf("tool %q has no handler", s.Name)
		}
		if _, dup := r.specs[s.Name]; dup {
			return fmt.Errorf("tool %q already registered", s.Name)
		}
		r.specs[s.Name] = &s
		r.order = append(r.order, s.Name)
	}
	return nil
}

func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Infos returns the tool declarations for binding to a chat model.
func (r *Registry) Infos() []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, r.specs[name].info())
	}
	return infos
}

// Dispatch validates argsJSON against the declared parameters and runs the
// handler. Unknown names yield ErrUnknownTool; bad arguments a validation
// error. The handler is never called with invalid arguments.
func (r *Registry) Dispatch(ctx context.Context, name, argsJSON string) (out string, err error) {
	start := time.Now()
	defer func() {
		if r.observer != nil {
			r.observer.ObserveTool(name, outcome(err), time.Since(start))
		}
	}()

	spec, ok := r.specs[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	args, err := validate(spec, argsJSON)
	if err != nil {
		return "", err
	}
	return spec.Handler(ctx, args)
}

// Execute runs Dispatch and renders any error as result text for the model.
func (r *Registry) Execute(ctx context.Context, name, argsJSON string) string {
	out, err := r.Dispatch(ctx, name, argsJSON)
	if err != nil {
		logx.Debug().Err(err).Str("tool", name).Str("arguments", argsJSON).Msg("Tool returned an error")
		return ErrorText(err)
	}
	return out
}

// ErrorText renders err as a tool result the model can relay to the guest.
func ErrorText(err error) string {
	if errors.Is(err, ErrUnknownTool) {
		return "[ERROR] Herramienta desconocida. Usa solo las herramientas disponibles."
	}
	return "[ERROR] " + errx.UserMessage(err)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return errx.KindOf(err).String()
}

func validate(spec *Spec, argsJSON string) (Args, error) {
	raw := map[string]any{}
	if s := strings.TrimSpace(argsJSON); s != "" && s != "null" {
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			return nil, errx.Validation("los argumentos de %s deben ser un objeto JSON", spec.Name)
		}
	}

	args := Args{}
	for key, p := range spec.Params {
		v, present := raw[key]
		if !present || v == nil {
			if p.Required {
				return nil, errx.Validation("falta el parámetro obligatorio %q de %s", key, spec.Name)
			}
			continue
		}
		coerced, ok := coerce(p.Type, v)
		if !ok {
			return nil, errx.Validation("el parámetro %q de %s debe ser de tipo %s", key, spec.Name, p.Type)
		}
		args[key] = coerced
	}
	return args, nil
}

func coerce(t schema.DataType, v any) (any, bool) {
	switch t {
	case schema.String:
		switch vv := v.(type) {
		case string:
			return vv, true
		case float64:
			return strconv.FormatFloat(vv, 'f', -1, 64), true
		}
	case schema.Integer:
		switch vv := v.(type) {
		case float64:
			if vv == math.Trunc(vv) {
				return int(vv), true
			}
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(vv)); err == nil {
				return n, true
			}
		}
	case schema.Number:
		switch vv := v.(type) {
		case float64:
			return vv, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(vv), 64); err == nil {
				return f, true
			}
		}
	case schema.Boolean:
		if b, ok := v.(bool); ok {
			return b, true
		}
	default:
		return v, true
	}
	return nil, false
}

// BaseTools adapts the registry into eino tools for a ToolsNode.
func (r *Registry) BaseTools() []tool.BaseTool {
	out := make([]tool.BaseTool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, &invokable{registry: r, spec: r.specs[name]})
	}
	return out
}

type invokable struct {
	registry *Registry
	spec     *Spec
}

func (t *invokable) Info(context.Context) (*schema.ToolInfo, error) {
	return t.spec.info(), nil
}

// InvokableRun never fails: errors become result text so the model can
// recover within the same turn.
func (t *invokable) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	return t.registry.Execute(ctx, t.spec.Name, argumentsInJSON), nil
}

var _ tool.InvokableTool = (*invokable)(nil)
