package graph

import (
	"context"
	"fmt"

	"github.com/brscn2/aesthetiq-sub001/internal/stylist/graph/conversations"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/graph/nodes"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/guardrails"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/ranking"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/search"
	logx "github.com/brscn2/aesthetiq-sub001/pkg/logger"
)

// Config holds everything needed to compose both workflows end-to-end. It
// is a convenience layer over the two graph configs that also constructs
// the chat models, the messages manager, and the search client.
type Config struct {
	APIKey        string
	BaseURL       string
	AnalysisModel model.AnalysisModelConfig
	ResponseModel model.ResponseModelConfig
	StylistPrompt model.StylistPromptConfig
	Conversation  model.ConversationConfig
	Recommender   model.RecommenderConfig
	Timeouts      model.TimeoutConfig

	ConversationRepo model.ConversationRepository
	CatalogRepo      model.CatalogRepository
	ProfileRepo      model.ProfileRepository
	Embedder         model.Embedder
	Guardrails       *guardrails.SafetyGuardrails
}

// Runners bundles the two compiled workflows. They share one model client;
// the recommender also serves the non-streaming recommendation endpoint
// directly.
type Runners struct {
	Conversation ConversationRunner
	Recommender  RecommenderRunner
}

// BuildRunners composes chat models, conversation manager, and search
// client, then builds and compiles both graphs.
func BuildRunners(ctx context.Context, cfg Config) (*Runners, error) {
	if cfg.ConversationRepo == nil {
		return nil, fmt.Errorf("conversation repo is nil")
	}
	if cfg.CatalogRepo == nil {
		return nil, fmt.Errorf("catalog repo is nil")
	}
	if cfg.ProfileRepo == nil {
		return nil, fmt.Errorf("profile repo is nil")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder is nil")
	}
	if cfg.Guardrails == nil {
		return nil, fmt.Errorf("guardrails are nil")
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		AnalysisConfig: &cfg.AnalysisModel,
		ResponseConfig: &cfg.ResponseModel,
	})
	if err != nil {
		return nil, err
	}

	mm := conversations.NewMessagesManager(cfg.ConversationRepo, cfg.Conversation)

	searchClient := search.NewClient(cfg.CatalogRepo, cfg.Embedder, ranking.NewEngine(), search.Config{
		PoolCap:      cfg.Recommender.PoolLimit,
		EmbedTimeout: cfg.Timeouts.EmbeddingDuration(),
		StoreTimeout: cfg.Timeouts.StoreDuration(),
	})

	recRunnable, err := BuildRecommenderGraph(ctx, &RecommenderGraphConfig{
		ChatModels:    cms,
		SearchClient:  searchClient,
		Profiles:      cfg.ProfileRepo,
		Recommender:   &cfg.Recommender,
		StylistPrompt: &cfg.StylistPrompt,
		Timeouts:      &cfg.Timeouts,
	})
	if err != nil {
		return nil, err
	}
	recommender := &recommenderRunner{runnable: recRunnable}

	turnRunnable, err := BuildTurnGraph(ctx, &GraphConfig{
		ChatModels:      cms,
		MessagesManager: mm,
		Guardrails:      cfg.Guardrails,
		Recommender:     recommender,
		CatalogRepo:     cfg.CatalogRepo,
		StylistPrompt:   &cfg.StylistPrompt,
		Timeouts:        &cfg.Timeouts,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Stylist workflows built successfully")
	return &Runners{
		Conversation: &conversationRunner{runnable: turnRunnable},
		Recommender:  recommender,
	}, nil
}
