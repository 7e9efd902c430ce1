package graph

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/mozo-virtual-core/server/internal/agent/graph/conversations"
	"github.com/mozo-virtual-core/server/internal/agent/graph/nodes"
	"github.com/mozo-virtual-core/server/internal/agent/graph/observers"
	"github.com/mozo-virtual-core/server/internal/agent/graph/tools"
	"github.com/mozo-virtual-core/server/internal/agent/model"
	errx "github.com/mozo-virtual-core/server/internal/core/error"
	logx "github.com/mozo-virtual-core/server/pkg/logger"
)

// Config holds everything needed to build the agent of one session.
type Config struct {
	Model           einomodel.ToolCallingChatModel
	ModelName       string
	Registry        *tools.Registry
	MessagesManager *conversations.MessagesManager
	Prompt          model.PromptConfig
	MaxIterations   int
}

// Result is the outcome of one agent turn.
type Result struct {
	Content string
	// LimitExceeded is set when the turn stopped at the iteration cap while
	// the model still wanted tools. Content holds whatever partial reply exists.
	LimitExceeded bool
	CostUSD       float64
}

// Agent runs the bounded model/tool loop for routine turns.
type Agent struct {
	runnable compose.Runnable[model.TurnInput, *schema.Message]
}

// GraphBuilder handles the construction of the agent graph
type GraphBuilder struct {
	config *Config
	model  einomodel.ToolCallingChatModel
	graph  *compose.Graph[model.TurnInput, *schema.Message]
}

// New binds the registry's tools to the model and compiles the agent graph.
func New(ctx context.Context, cfg Config) (*Agent, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("agent model is nil")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("tool registry is nil")
	}
	if cfg.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}

	builder := &GraphBuilder{
		config: &cfg,
		graph: compose.NewGraph[model.TurnInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.AgentState {
				return &model.AgentState{}
			}),
		),
	}

	if err := builder.setupTools(ctx); err != nil {
		return nil, err
	}
	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	runnable, err := builder.compile(ctx)
	if err != nil {
		return nil, err
	}
	return &Agent{runnable: runnable}, nil
}

// Respond runs one turn. The utterance must already be the last message of
// the session history.
func (a *Agent) Respond(ctx context.Context, sessionID, utterance string) (Result, error) {
	out, err := a.runnable.Invoke(ctx, model.TurnInput{
		SessionID: sessionID,
		Utterance: utterance,
	}, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return Result{}, errx.Unavailable(err, "the assistant could not answer")
	}
	if out == nil {
		return Result{}, nil
	}

	res := Result{Content: strings.TrimSpace(out.Content)}
	if v, ok := out.Extra[model.ExtraIterationLimit].(bool); ok && v {
		res.LimitExceeded = true
	}
	if v, ok := out.Extra[model.ExtraUsageTotalUSD].(float64); ok {
		res.CostUSD = v
	}
	return res, nil
}

// setupTools binds the tool declarations to the model and adds the tools node.
func (b *GraphBuilder) setupTools(ctx context.Context) error {
	bound, err := b.config.Model.WithTools(b.config.Registry.Infos())
	if err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools")
		return fmt.Errorf("failed to bind tools: %w", err)
	}
	b.model = bound

	registry := b.config.Registry
	toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               registry.BaseTools(),
		ExecuteSequentially: true,
		UnknownToolsHandler: func(ctx context.Context, name, input string) (string, error) {
			logx.Warn().
				Str("tool", name).
				Str("arguments", input).
				Msg("Unknown or invalid tool call")
			return registry.Execute(ctx, name, input), nil
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to create tools node")
		return fmt.Errorf("failed to create tools node: %w", err)
	}

	return b.graph.AddToolsNode(nodes.NodeToolExecutor, toolsNode)
}

// addNodes adds the assembler and the model node.
func (b *GraphBuilder) addNodes() error {
	if err := b.graph.AddLambdaNode(nodes.NodeAssembler,
		nodes.NewAssemblerNode(b.config.MessagesManager, &b.config.Prompt),
		compose.WithStatePreHandler(nodes.NewAssemblerPreHandler()),
	); err != nil {
		return fmt.Errorf("add assembler node: %w", err)
	}

	if err := b.graph.AddChatModelNode(nodes.NodeAgentModel, b.model,
		compose.WithStatePreHandler(nodes.NewAgentModelPreHandler(b.config.MaxIterations)),
		compose.WithStatePostHandler(nodes.NewAgentModelPostHandler(b.config.ModelName)),
	); err != nil {
		return fmt.Errorf("add agent model node: %w", err)
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeAssembler},
		{nodes.NodeAssembler, nodes.NodeAgentModel},
		{nodes.NodeToolExecutor, nodes.NodeAgentModel},
	}
	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("add edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches routes the model output to the tools node or to the end.
func (b *GraphBuilder) addBranches() error {
	decisionBranch := compose.NewGraphBranch(
		nodes.NewToolExecutorCondition(),
		map[string]bool{
			nodes.NodeToolExecutor: true,
			compose.END:            true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeAgentModel, decisionBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding decision branch")
		return fmt.Errorf("error adding decision branch: %w", err)
	}
	return nil
}

func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.TurnInput, *schema.Message], error) {
	runnable, err := b.graph.Compile(ctx,
		compose.WithGraphName("robino_agent"),
		compose.WithMaxRunSteps(nodes.MaxRunSteps(b.config.MaxIterations)),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}
	logx.Debug().Msg("Agent graph compiled successfully")
	return runnable, nil
}
