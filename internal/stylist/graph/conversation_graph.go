package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	errx "github.com/brscn2/aesthetiq-sub001/internal/core/error"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/graph/conversations"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/graph/nodes"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/graph/observers"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/guardrails"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/stream"
	logx "github.com/brscn2/aesthetiq-sub001/pkg/logger"
)

// ConversationRunner drives one conversational turn and owns the stream
// framing around it: the metadata event goes out before any node runs and
// exactly one of done or error closes the run.
type ConversationRunner interface {
	Converse(ctx context.Context, in model.TurnInput, em stream.Emitter) (*model.TurnResult, error)
}

// GraphConfig holds the constructed dependencies the conversation graph
// nodes need.
type GraphConfig struct {
	ChatModels      *nodes.ChatModels
	MessagesManager *conversations.MessagesManager
	Guardrails      *guardrails.SafetyGuardrails
	Recommender     nodes.RecommendRunner
	CatalogRepo     model.CatalogRepository
	StylistPrompt   *model.StylistPromptConfig
	Timeouts        *model.TimeoutConfig
}

// GraphBuilder handles the construction of the conversation graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.TurnInput, *model.TurnResult]
}

type conversationRunner struct {
	runnable compose.Runnable[model.TurnInput, *model.TurnResult]
}

func (r *conversationRunner) Converse(ctx context.Context, in model.TurnInput, em stream.Emitter) (*model.TurnResult, error) {
	if em == nil {
		em = stream.NullEmitter{}
	}
	ctx = stream.WithEmitter(ctx, em)

	stream.Emit(ctx, stream.Metadata(in.SessionID, in.UserID))

	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		logx.Error().Err(err).Str("session_id", in.SessionID).Msg("conversation turn failed")
		stream.Emit(ctx, stream.Error(errx.UserMessage(err)))
		return nil, err
	}

	stream.Emit(ctx, stream.Done(doneContent(out)))
	return out, nil
}

func doneContent(out *model.TurnResult) map[string]any {
	if out == nil {
		return map[string]any{}
	}
	content := map[string]any{
		"session_id": out.SessionID,
		"response":   out.Response,
	}
	if out.Intent != "" {
		content["intent"] = string(out.Intent)
	}
	if out.TaskType != "" {
		content["task_type"] = string(out.TaskType)
	}
	if len(out.ItemIDs) > 0 {
		content["item_ids"] = out.ItemIDs
	}
	if out.Blocked {
		content["blocked"] = true
	}
	return content
}

// BuildTurnGraph constructs and compiles the conversation graph: guard the
// input, classify intent, take one of the three task routes, guard the
// draft, release and persist the reply.
func BuildTurnGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.TurnInput, *model.TurnResult], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModels == nil || config.ChatModels.Analysis == nil || config.ChatModels.Response == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}
	if config.Guardrails == nil {
		return nil, fmt.Errorf("guardrails are nil")
	}
	if config.Recommender == nil {
		return nil, fmt.Errorf("recommend runner is nil")
	}
	if config.CatalogRepo == nil {
		return nil, fmt.Errorf("catalog repo is nil")
	}
	if config.StylistPrompt == nil || config.Timeouts == nil {
		return nil, fmt.Errorf("prompt/timeout config is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.TurnInput, *model.TurnResult](
			compose.WithGenLocalState(func(ctx context.Context) *model.ConversationState {
				return &model.ConversationState{}
			}),
		),
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeInputGuard,
		nodes.NewInputGuardNode(b.config.Guardrails),
		compose.WithStatePreHandler(nodes.NewInputGuardPreHandler()),
		compose.WithStatePostHandler(nodes.NewInputGuardPostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeBlockedResponder,
		nodes.NewBlockedResponderNode(),
		compose.WithStatePreHandler(nodes.NodeStartPre[model.GuardedInput, model.ConversationState](nodes.NodeBlockedResponder)),
		compose.WithStatePostHandler(nodes.NodeEndPost[*model.TurnResult, model.ConversationState](nodes.NodeBlockedResponder)),
	)

	b.graph.AddLambdaNode(nodes.NodeClassifier,
		nodes.NewClassifierNode(b.config.MessagesManager, b.config.ChatModels, b.config.Timeouts.ModelDuration()),
		compose.WithStatePreHandler(nodes.NodeStartPre[model.GuardedInput, model.ConversationState](nodes.NodeClassifier)),
		compose.WithStatePostHandler(nodes.NewClassifierPostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeStylistAssembler,
		nodes.NewStylistAssemblerNode(b.config.MessagesManager, b.config.StylistPrompt),
		compose.WithStatePreHandler(nodes.NodeStartPre[model.IntentResult, model.ConversationState](nodes.NodeStylistAssembler)),
		compose.WithStatePostHandler(nodes.NodeEndPost[[]*schema.Message, model.ConversationState](nodes.NodeStylistAssembler)),
	)

	b.graph.AddChatModelNode(nodes.NodeStylistChatModel,
		nodes.NewStylistChatModelNode(b.config.ChatModels.Response),
		compose.WithStatePreHandler(nodes.NodeStartPre[[]*schema.Message, model.ConversationState](nodes.NodeStylistChatModel)),
		compose.WithStatePostHandler(nodes.NewStylistChatModelPostHandler(b.config.ChatModels.ResponseModelName)),
	)

	b.graph.AddLambdaNode(nodes.NodeRecommendBridge,
		nodes.NewRecommendBridgeNode(b.config.Recommender, b.config.MessagesManager),
		compose.WithStatePreHandler(nodes.NodeStartPre[model.IntentResult, model.ConversationState](nodes.NodeRecommendBridge)),
		compose.WithStatePostHandler(nodes.NodeEndPost[*schema.Message, model.ConversationState](nodes.NodeRecommendBridge)),
	)

	b.graph.AddLambdaNode(nodes.NodeOutfitAnalyzer,
		nodes.NewOutfitAnalyzerNode(
			b.config.MessagesManager,
			b.config.CatalogRepo,
			b.config.ChatModels,
			b.config.StylistPrompt,
			b.config.Timeouts.ModelDuration(),
		),
		compose.WithStatePreHandler(nodes.NodeStartPre[model.IntentResult, model.ConversationState](nodes.NodeOutfitAnalyzer)),
		compose.WithStatePostHandler(nodes.NodeEndPost[*schema.Message, model.ConversationState](nodes.NodeOutfitAnalyzer)),
	)

	b.graph.AddLambdaNode(nodes.NodeOutputGuard,
		nodes.NewOutputGuardNode(b.config.Guardrails),
		compose.WithStatePreHandler(nodes.NodeStartPre[*schema.Message, model.ConversationState](nodes.NodeOutputGuard)),
		compose.WithStatePostHandler(nodes.NewOutputGuardPostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeResponder,
		nodes.NewResponderNode(b.config.MessagesManager),
		compose.WithStatePreHandler(nodes.NodeStartPre[model.DraftVerdict, model.ConversationState](nodes.NodeResponder)),
		compose.WithStatePostHandler(nodes.NodeEndPost[*model.TurnResult, model.ConversationState](nodes.NodeResponder)),
	)
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeInputGuard},
		{nodes.NodeBlockedResponder, compose.END},
		{nodes.NodeStylistAssembler, nodes.NodeStylistChatModel},
		{nodes.NodeStylistChatModel, nodes.NodeOutputGuard},
		{nodes.NodeRecommendBridge, nodes.NodeOutputGuard},
		{nodes.NodeOutfitAnalyzer, nodes.NodeOutputGuard},
		{nodes.NodeOutputGuard, nodes.NodeResponder},
		{nodes.NodeResponder, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	blockedBranch := compose.NewGraphBranch(
		nodes.NewBlockedRouteCondition(),
		map[string]bool{
			nodes.NodeBlockedResponder: true,
			nodes.NodeClassifier:       true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeInputGuard, blockedBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding blocked branch")
		return fmt.Errorf("error adding blocked branch: %w", err)
	}

	intentBranch := compose.NewGraphBranch(
		nodes.NewIntentRouteCondition(),
		map[string]bool{
			nodes.NodeStylistAssembler: true,
			nodes.NodeRecommendBridge:  true,
			nodes.NodeOutfitAnalyzer:   true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeClassifier, intentBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding intent branch")
		return fmt.Errorf("error adding intent branch: %w", err)
	}

	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.TurnInput, *model.TurnResult], error) {
	// The turn pipeline has no loops; a fixed step budget is plenty
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(20))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling conversation graph")
		return nil, fmt.Errorf("error compiling conversation graph: %w", err)
	}

	logx.Debug().Msg("Conversation graph compiled successfully")
	return runnable, nil
}
