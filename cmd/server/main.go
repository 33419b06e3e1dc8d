package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/brscn2/aesthetiq-sub001/internal/core"
	"github.com/brscn2/aesthetiq-sub001/internal/embedding"
	"github.com/brscn2/aesthetiq-sub001/internal/repo"
	"github.com/brscn2/aesthetiq-sub001/internal/server"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/graph"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/graph/nodes"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/guardrails"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
	logx "github.com/brscn2/aesthetiq-sub001/pkg/logger"
	pkgmongo "github.com/brscn2/aesthetiq-sub001/pkg/mongo"
	pkgredis "github.com/brscn2/aesthetiq-sub001/pkg/redis"
)

// AppConfig defines all configurable parameters for the stylist service,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	// Infrastructure
	Redis pkgredis.Config
	Mongo pkgmongo.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// HTTP listener
	Addr         string `envconfig:"HTTP_ADDR" default:":8080"`
	StreamBuffer int    `envconfig:"HTTP_STREAM_BUFFER" default:"64"`

	// Stylist configs
	Analysis     model.AnalysisModelConfig
	Response     model.ResponseModelConfig
	Prompt       model.StylistPromptConfig
	Conversation model.ConversationConfig
	Recommender  model.RecommenderConfig
	Guardrail    model.GuardrailConfig
	Timeouts     model.TimeoutConfig
	Embedding    embedding.Config

	Environment string `envconfig:"APP_ENV" default:"development"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load structured config from env
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	rdb, err := cfg.Redis.New(ctx)
	if err != nil {
		logx.Fatal().Err(err).Msg("redis connection failed")
	}
	defer rdb.Close()

	mdb, err := cfg.Mongo.New(ctx)
	if err != nil {
		logx.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mdb.Disconnect(disconnectCtx)
	}()

	ttl, err := time.ParseDuration(cfg.Conversation.TTL)
	if err != nil {
		logx.Fatal().Err(err).Str("ttl", cfg.Conversation.TTL).Msg("invalid conversation ttl")
	}

	db := mdb.Database(cfg.Mongo.Database)
	catalog := repo.NewMongoCatalogRepository(db, cfg.Mongo.ItemsCollection, cfg.Mongo.ProfilesCollection, cfg.Recommender.PoolLimit)
	conversationRepo := repo.NewRedisConversationRepository(rdb, ttl)
	embedder := embedding.NewClient(cfg.Embedding)

	guard, err := buildGuardrails(ctx, &cfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("guardrail setup failed")
	}

	runners, err := graph.BuildRunners(ctx, graph.Config{
		APIKey:        cfg.APIKey,
		BaseURL:       cfg.BaseURL,
		AnalysisModel: cfg.Analysis,
		ResponseModel: cfg.Response,
		StylistPrompt: cfg.Prompt,
		Conversation:  cfg.Conversation,
		Recommender:   cfg.Recommender,
		Timeouts:      cfg.Timeouts,

		ConversationRepo: conversationRepo,
		CatalogRepo:      catalog,
		ProfileRepo:      catalog,
		Embedder:         embedder,
		Guardrails:       guard,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("workflow build failed")
	}

	srv, err := server.New(
		server.Config{Addr: cfg.Addr, StreamBuffer: cfg.StreamBuffer},
		runners,
		server.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}},
		server.HealthCheck{Name: "mongo", Check: func(ctx context.Context) error {
			return mdb.Ping(ctx, readpref.Primary())
		}},
	)
	if err != nil {
		logx.Fatal().Err(err).Msg("server setup failed")
	}

	if err := srv.Run(ctx); err != nil {
		logx.Fatal().Err(err).Msg("http server failed")
	}
}

// buildGuardrails assembles the provider chain from config. The pattern
// provider is pure Go and on by default; the model provider spends tokens
// on a second opinion and stays opt-in.
func buildGuardrails(ctx context.Context, cfg *AppConfig) (*guardrails.SafetyGuardrails, error) {
	var providers []guardrails.Provider
	if cfg.Guardrail.PatternProvider {
		providers = append(providers, guardrails.NewPatternProvider())
	}
	if cfg.Guardrail.ModelProvider {
		models, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			AnalysisConfig: &cfg.Analysis,
			ResponseConfig: &cfg.Response,
		})
		if err != nil {
			return nil, err
		}
		providers = append(providers, guardrails.NewModelProvider(models.Analysis))
	}
	return guardrails.New(cfg.Guardrail, cfg.Timeouts.GuardrailDuration(), providers...), nil
}
