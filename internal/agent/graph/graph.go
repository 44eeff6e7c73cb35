package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/storefront-agent/server/internal/agent/graph/conversations"
	"github.com/storefront-agent/server/internal/agent/graph/nodes"
	"github.com/storefront-agent/server/internal/agent/graph/observers"
	"github.com/storefront-agent/server/internal/agent/graph/tools"
	"github.com/storefront-agent/server/internal/agent/model"
	"github.com/storefront-agent/server/internal/agent/session"
	"github.com/storefront-agent/server/internal/catalog"
	errx "github.com/storefront-agent/server/internal/core/error"
	"github.com/storefront-agent/server/pkg/commerce"
	logx "github.com/storefront-agent/server/pkg/logger"
)

// Runner executes the compiled sales graph one turn at a time.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (string, error)
	EndSession(ctx context.Context, conversationID string) error
}

// Config holds everything needed to compose the sales graph end-to-end.
// ChatModel is optional; when nil one is built from the Model config. Tests
// inject scripted models through it.
type Config struct {
	Model            model.ReasoningModelConfig
	Prompt           model.PromptConfig
	Conversation     model.ConversationConfig
	Catalog          model.CatalogConfig
	CatalogStore     catalog.Store
	Commerce         *commerce.Client
	ConversationRepo model.ConversationRepository
	ChatModel        einomodel.ToolCallingChatModel
}

// GraphConfig is the resolved configuration the builder works from.
type GraphConfig struct {
	ChatModel       einomodel.ToolCallingChatModel
	ModelName       string
	MessagesManager *conversations.MessagesManager
	PromptConfig    *model.PromptConfig
	CatalogConfig   model.CatalogConfig
	CatalogStore    catalog.Store
	Commerce        *commerce.Client
	ToolMaxCalls    int
}

// GraphBuilder handles the construction of the sales conversation graph.
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.QueryInput, *schema.Message]
}

type graphRunner struct {
	runnable compose.Runnable[model.QueryInput, *schema.Message]
	mm       *conversations.MessagesManager
	arena    *session.Arena
	repo     model.ConversationRepository
}

// Invoke runs one conversation turn. The turn is atomic: the session cache is
// snapshotted before the graph runs and restored on any failure, and the
// transcript is only written once the turn has fully succeeded, so an aborted
// turn leaves neither cache nor transcript changes behind.
func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (string, error) {
	cache := r.arena.Acquire(in.ConversationID)
	snapshot := cache.Snapshot()
	ctx = session.WithCache(ctx, cache)

	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		cache.Restore(snapshot)
		logx.Error().Str("conversation_id", in.ConversationID).Err(err).Msg("turn aborted, cache rolled back")
		return errx.TurnFallbackMessage, errx.WrapTransport(err)
	}
	if out == nil {
		cache.Restore(snapshot)
		return errx.TurnFallbackMessage, errx.WrapTransport(fmt.Errorf("graph returned no output"))
	}

	if err := r.mm.CommitTurn(ctx, in.ConversationID, in.Query, out.Content); err != nil {
		cache.Restore(snapshot)
		logx.Error().Str("conversation_id", in.ConversationID).Err(err).Msg("transcript commit failed, cache rolled back")
		return errx.TurnFallbackMessage, err
	}

	return out.Content, nil
}

// EndSession drops the session cache and transcript.
func (r *graphRunner) EndSession(ctx context.Context, conversationID string) error {
	r.arena.End(conversationID)
	return r.repo.ClearHistory(ctx, conversationID)
}

// BuildSalesGraph wires the chat model, messages manager, and tools into a
// compiled graph and returns a Runner over it.
func BuildSalesGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.ConversationRepo == nil {
		return nil, fmt.Errorf("conversation repo is nil")
	}
	if cfg.CatalogStore == nil {
		return nil, fmt.Errorf("catalog store is nil")
	}

	chatModel := cfg.ChatModel
	modelName := cfg.Model.Model
	if chatModel == nil {
		var err error
		chatModel, modelName, err = nodes.NewReasoningModel(ctx, cfg.Model)
		if err != nil {
			return nil, err
		}
	}

	mm := conversations.NewMessagesManager(cfg.ConversationRepo)

	runnable, err := BuildGraph(ctx, &GraphConfig{
		ChatModel:       chatModel,
		ModelName:       modelName,
		MessagesManager: mm,
		PromptConfig:    &cfg.Prompt,
		CatalogConfig:   cfg.Catalog,
		CatalogStore:    cfg.CatalogStore,
		Commerce:        cfg.Commerce,
		ToolMaxCalls:    cfg.Conversation.Tools.MaxCalls,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("sales graph built successfully")
	return &graphRunner{
		runnable: runnable,
		mm:       mm,
		arena:    session.NewArena(),
		repo:     cfg.ConversationRepo,
	}, nil
}

// BuildGraph constructs and compiles the sales conversation graph.
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModel == nil {
		return nil, fmt.Errorf("chat model is not initialized")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}
	if config.PromptConfig == nil {
		return nil, fmt.Errorf("prompt config is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.QueryInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.TurnState {
				return &model.TurnState{}
			}),
		),
	}

	if err := builder.setupTools(ctx); err != nil {
		return nil, err
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// setupTools builds the session tools, binds them to the reasoning model,
// and registers the tool executor node.
func (b *GraphBuilder) setupTools(ctx context.Context) error {
	sessionTools := tools.SessionTools(b.config.CatalogStore, b.config.Commerce, b.config.CatalogConfig)
	toolInfos, err := tools.ToolInfos(ctx, sessionTools)
	if err != nil {
		logx.Error().Err(err).Msg("collecting tool infos failed")
		return fmt.Errorf("collect tool infos: %w", err)
	}

	boundModel, err := b.config.ChatModel.WithTools(toolInfos)
	if err != nil {
		logx.Error().Err(err).Msg("binding tools to reasoning model failed")
		return fmt.Errorf("bind tools: %w", err)
	}
	b.config.ChatModel = boundModel

	toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               sessionTools,
		ExecuteSequentially: true,
		UnknownToolsHandler: func(ctx context.Context, name, input string) (string, error) {
			// Hallucinated or malformed tool calls become a structured result
			// the model can recover from, never a turn-aborting error.
			logx.Warn().
				Str("tool_name", name).
				Str("arguments", input).
				Msg("unknown tool call, returning structured fallback")
			return fmt.Sprintf("{\"error\":\"unknown_tool\",\"name\":%q,\"note\":\"only filter_products, check_inventory and checkout exist\"}", name), nil
		},
		ToolArgumentsHandler: sanitizeToolArguments,
	})
	if err != nil {
		logx.Error().Err(err).Msg("creating tools node failed")
		return fmt.Errorf("create tools node: %w", err)
	}

	b.graph.AddToolsNode(nodes.NodeToolExecutor, toolsNode,
		compose.WithStatePreHandler(nodes.NewToolExecutorPreHandler(b.config.ToolMaxCalls)),
	)

	return nil
}

func (b *GraphBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeContextAssembler,
		nodes.NewContextAssemblerNode(b.config.MessagesManager, b.config.PromptConfig),
		compose.WithStatePreHandler(nodes.NewContextAssemblerPreHandler()),
	)

	b.graph.AddChatModelNode(nodes.NodeReasoner,
		b.config.ChatModel,
		compose.WithStatePreHandler(nodes.NewReasonerPreHandler(b.config.ToolMaxCalls)),
		compose.WithStatePostHandler(nodes.NewReasonerPostHandler(b.config.ModelName)),
	)
}

func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeContextAssembler},
		{nodes.NodeContextAssembler, nodes.NodeReasoner},
		{nodes.NodeToolExecutor, nodes.NodeReasoner},
	}
	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

func (b *GraphBuilder) addBranches() error {
	decisionBranch := compose.NewGraphBranch(
		nodes.NewToolRouterCondition(),
		map[string]bool{
			nodes.NodeToolExecutor: true,
			compose.END:            true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeReasoner, decisionBranch); err != nil {
		logx.Error().Err(err).Msg("adding tool router branch failed")
		return fmt.Errorf("add tool router branch: %w", err)
	}
	return nil
}

func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	// Bound total run steps so a model that keeps requesting tools cannot
	// cycle forever even before the tool budget flag kicks in.
	maxSteps := 10 + b.config.ToolMaxCalls*2
	if maxSteps < 20 {
		maxSteps = 20
	}

	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxSteps))
	if err != nil {
		logx.Error().Err(err).Msg("compiling graph failed")
		return nil, fmt.Errorf("compile graph: %w", err)
	}

	logx.Debug().Msg("graph compiled successfully")
	return runnable, nil
}

// sanitizeToolArguments normalizes model-produced arguments for the known
// tools before decoding: strings get trimmed, numbers arriving as strings get
// coerced. Never fails hard; unusable input passes through unchanged.
func sanitizeToolArguments(ctx context.Context, name, arguments string) (string, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(arguments), &m); err != nil {
		return arguments, nil
	}

	coerceString := func(key string) {
		if v, ok := m[key]; ok {
			switch vv := v.(type) {
			case string:
				m[key] = strings.TrimSpace(vv)
			default:
				m[key] = strings.TrimSpace(fmt.Sprint(v))
			}
		}
	}
	coerceNumber := func(key string) {
		v, ok := m[key]
		if !ok {
			return
		}
		switch vv := v.(type) {
		case float64:
			// JSON numbers already decode as float64
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(vv), 64); err == nil {
				m[key] = f
			} else {
				delete(m, key)
			}
		default:
			delete(m, key)
		}
	}

	switch name {
	case tools.ToolFilterProducts:
		coerceString("keyword")
		coerceNumber("price_min")
		coerceNumber("price_max")
	case tools.ToolCheckInventory:
		coerceString("product")
	case tools.ToolCheckout:
		coerceString("handle")
	}

	out, err := json.Marshal(m)
	if err != nil {
		return arguments, nil
	}
	return string(out), nil
}
