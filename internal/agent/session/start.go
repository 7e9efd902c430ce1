package session

import (
	"context"
	"fmt"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/google/uuid"

	"github.com/mozo-virtual-core/server/internal/agent/catalog"
	"github.com/mozo-virtual-core/server/internal/agent/graph"
	"github.com/mozo-virtual-core/server/internal/agent/graph/conversations"
	"github.com/mozo-virtual-core/server/internal/agent/graph/tools"
	"github.com/mozo-virtual-core/server/internal/agent/ledger"
	"github.com/mozo-virtual-core/server/internal/agent/metrics"
	"github.com/mozo-virtual-core/server/internal/agent/model"
	"github.com/mozo-virtual-core/server/internal/agent/persist"
	"github.com/mozo-virtual-core/server/internal/agent/pipeline"
	"github.com/mozo-virtual-core/server/internal/agent/tracing"
	logx "github.com/mozo-virtual-core/server/pkg/logger"
)

// Deps are the process-wide collaborators a new session is built from.
type Deps struct {
	Model     einomodel.ToolCallingChatModel
	ModelName string
	Catalog   *catalog.Catalog
	Retriever retriever.Retriever

	Conversation model.ConversationConfig
	Prompt       model.PromptConfig
	Pipeline     model.PipelineConfig
	Knowledge    model.KnowledgeConfig

	Recorder *persist.Recorder
	Metrics  *metrics.Metrics
	Tracer   *tracing.Tracer
	Now      func() time.Time
}

// Start creates a fresh session: new id, empty order, empty history.
func Start(ctx context.Context, d Deps) (*Session, error) {
	if d.Catalog == nil || d.Retriever == nil {
		return nil, fmt.Errorf("session: catalog and retriever are required")
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	state := model.NewConversationState(uuid.NewString(), ledger.New(d.Catalog))
	mm := conversations.NewMessagesManager(state, d.Conversation)

	registry, err := tools.NewRestaurantRegistry(tools.Deps{
		Catalog:    d.Catalog,
		Retriever:  d.Retriever,
		SearchTopK: d.Knowledge.MenuSearchTopK,
		State:      state,
		Now:        d.Now,
	}, d.Metrics)
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}

	agent, err := graph.New(ctx, graph.Config{
		Model:           d.Model,
		ModelName:       d.ModelName,
		Registry:        registry,
		MessagesManager: mm,
		Prompt:          d.Prompt,
		MaxIterations:   d.Conversation.MaxIterations,
	})
	if err != nil {
		return nil, fmt.Errorf("build agent: %w", err)
	}

	pipe, err := pipeline.New(ctx, pipeline.Config{
		Catalog:   d.Catalog,
		Retriever: d.Retriever,
		TopK:      d.Pipeline.TopK,
		Tracer:    d.Tracer,
		Recorder:  d.Recorder,
		Now:       d.Now,
	}, state)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	logx.Info().
		Str("session_id", state.SessionID).
		Strs("tools", registry.Names()).
		Msg("Session started")

	return New(state, mm, agent, pipe, Options{
		AssistantName: d.Prompt.AssistantName,
		Recorder:      d.Recorder,
		Metrics:       d.Metrics,
		Tracer:        d.Tracer,
		Now:           d.Now,
	}), nil
}
