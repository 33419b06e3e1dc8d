package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/brscn2/aesthetiq-sub001/internal/stylist/graph/nodes"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/graph/observers"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/search"
	logx "github.com/brscn2/aesthetiq-sub001/pkg/logger"
)

// RecommenderRunner executes one retrieval attempt end to end. It emits
// stage events on the context-bound emitter but no stream framing; whoever
// drives the attempt owns metadata and the terminal event.
type RecommenderRunner interface {
	Recommend(ctx context.Context, in model.RecommendInput) (*model.RecommendResult, error)
}

// RecommenderGraphConfig holds the constructed dependencies for the
// retrieval loop.
type RecommenderGraphConfig struct {
	ChatModels    *nodes.ChatModels
	SearchClient  *search.Client
	Profiles      model.ProfileRepository
	Recommender   *model.RecommenderConfig
	StylistPrompt *model.StylistPromptConfig
	Timeouts      *model.TimeoutConfig
}

// recommenderBuilder handles the construction of the retrieval graph.
type recommenderBuilder struct {
	config *RecommenderGraphConfig
	graph  *compose.Graph[model.RecommendInput, *model.RecommendResult]
}

type recommenderRunner struct {
	runnable compose.Runnable[model.RecommendInput, *model.RecommendResult]
}

func (r *recommenderRunner) Recommend(ctx context.Context, in model.RecommendInput) (*model.RecommendResult, error) {
	return r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
}

// BuildRecommenderGraph constructs and compiles the retrieval workflow:
// analyze, optionally fetch the profile, search, verify, and either refine
// for another pass or compose the final reply.
func BuildRecommenderGraph(ctx context.Context, config *RecommenderGraphConfig) (compose.Runnable[model.RecommendInput, *model.RecommendResult], error) {
	if config == nil {
		return nil, fmt.Errorf("recommender graph config is nil")
	}
	if config.ChatModels == nil || config.ChatModels.Analysis == nil || config.ChatModels.Response == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.SearchClient == nil {
		return nil, fmt.Errorf("search client is nil")
	}
	if config.Profiles == nil {
		return nil, fmt.Errorf("profile repo is nil")
	}
	if config.Recommender == nil || config.StylistPrompt == nil || config.Timeouts == nil {
		return nil, fmt.Errorf("recommender graph settings are nil")
	}

	builder := &recommenderBuilder{
		config: config,
		graph: compose.NewGraph[model.RecommendInput, *model.RecommendResult](
			compose.WithGenLocalState(func(ctx context.Context) *model.RecommenderState {
				return &model.RecommenderState{}
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
func (b *recommenderBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeAnalyzeQuery,
		nodes.NewAnalyzeNode(b.config.ChatModels, b.config.Timeouts.ModelDuration()),
		compose.WithStatePreHandler(nodes.NewAnalyzePreHandler()),
		compose.WithStatePostHandler(nodes.NewAnalyzePostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeFetchProfile,
		nodes.NewFetchProfileNode(b.config.Profiles, b.config.Timeouts.ProfileDuration()),
		compose.WithStatePreHandler(nodes.NewFetchProfilePreHandler()),
		compose.WithStatePostHandler(nodes.NodeEndPost[model.QueryAnalysis, model.RecommenderState](nodes.NodeFetchProfile)),
	)

	b.graph.AddLambdaNode(nodes.NodeSearchCatalog,
		nodes.NewSearchNode(b.config.SearchClient, b.config.Recommender),
		compose.WithStatePreHandler(nodes.NewSearchPreHandler()),
		compose.WithStatePostHandler(nodes.NodeEndPost[model.SearchOutcome, model.RecommenderState](nodes.NodeSearchCatalog)),
	)

	b.graph.AddLambdaNode(nodes.NodeVerifyResults,
		nodes.NewVerifyNode(b.config.Recommender),
		compose.WithStatePreHandler(nodes.NodeStartPre[model.SearchOutcome, model.RecommenderState](nodes.NodeVerifyResults)),
		compose.WithStatePostHandler(nodes.NewVerifyPostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeRefineQuery,
		nodes.NewRefineNode(),
		compose.WithStatePreHandler(nodes.NodeStartPre[model.VerifyOutcome, model.RecommenderState](nodes.NodeRefineQuery)),
		compose.WithStatePostHandler(nodes.NodeEndPost[model.RecommendInput, model.RecommenderState](nodes.NodeRefineQuery)),
	)

	b.graph.AddLambdaNode(nodes.NodeComposeReply,
		nodes.NewComposeReplyNode(b.config.ChatModels, b.config.StylistPrompt, b.config.Timeouts.ModelDuration()),
		compose.WithStatePreHandler(nodes.NodeStartPre[model.VerifyOutcome, model.RecommenderState](nodes.NodeComposeReply)),
		compose.WithStatePostHandler(nodes.NewComposeReplyPostHandler()),
	)
}

// addEdges creates the main flow connections between nodes
func (b *recommenderBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeAnalyzeQuery},
		{nodes.NodeFetchProfile, nodes.NodeSearchCatalog},
		{nodes.NodeSearchCatalog, nodes.NodeVerifyResults},
		{nodes.NodeRefineQuery, nodes.NodeAnalyzeQuery},
		{nodes.NodeComposeReply, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates conditional routing branches
func (b *recommenderBuilder) addBranches() error {
	profileBranch := compose.NewGraphBranch(
		nodes.NewProfileRouteCondition(),
		map[string]bool{
			nodes.NodeFetchProfile:  true,
			nodes.NodeSearchCatalog: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeAnalyzeQuery, profileBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding profile branch")
		return fmt.Errorf("error adding profile branch: %w", err)
	}

	refineBranch := compose.NewGraphBranch(
		nodes.NewRefineRouteCondition(b.config.Recommender.MaxIterations),
		map[string]bool{
			nodes.NodeRefineQuery:  true,
			nodes.NodeComposeReply: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeVerifyResults, refineBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding refine branch")
		return fmt.Errorf("error adding refine branch: %w", err)
	}

	return nil
}

// compile finalizes and compiles the graph
func (b *recommenderBuilder) compile(ctx context.Context) (compose.Runnable[model.RecommendInput, *model.RecommendResult], error) {
	// Limit total run steps so the refinement loop can never spin past its
	// budget even if a branch misbehaves
	maxSteps := 10 + b.config.Recommender.MaxIterations*5
	if maxSteps < 20 {
		maxSteps = 20
	}

	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling recommender graph")
		return nil, fmt.Errorf("error compiling recommender graph: %w", err)
	}

	logx.Debug().Msg("Recommender graph compiled successfully")
	return runnable, nil
}
