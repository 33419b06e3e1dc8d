package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	chatmodel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
	logx "github.com/brscn2/aesthetiq-sub001/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey         string
	BaseURL        string
	AnalysisConfig *model.AnalysisModelConfig
	ResponseConfig *model.ResponseModelConfig
}

// ChatModels holds the analysis and response chat models. Fields are typed
// as the Eino model interface so tests can substitute fakes for the Gemini
// clients.
type ChatModels struct {
	Analysis          chatmodel.BaseChatModel
	Response          chatmodel.BaseChatModel
	AnalysisModelName string
	ResponseModelName string
}

// NewChatModels creates both analysis and response chat models with the given configuration
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	// The analysis model does classification and query planning: cheap,
	// cold, and strict about output shape.
	chatModelAnalysis, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.AnalysisConfig.Model,
		Temperature: &config.AnalysisConfig.Temperature,
		MaxTokens:   &config.AnalysisConfig.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(2000)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating analysis model")
		return nil, fmt.Errorf("error creating analysis model: %w", err)
	}

	// The response model writes everything the user actually reads.
	chatModelResponse, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.ResponseConfig.Model,
		Temperature: &config.ResponseConfig.Temperature,
		MaxTokens:   &config.ResponseConfig.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(2000)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating response model")
		return nil, fmt.Errorf("error creating response model: %w", err)
	}

	return &ChatModels{
		Analysis:          chatModelAnalysis,
		Response:          chatModelResponse,
		AnalysisModelName: config.AnalysisConfig.Model,
		ResponseModelName: config.ResponseConfig.Model,
	}, nil
}

// NewStylistChatModelNode wraps the response chat model for use as a graph node.
func NewStylistChatModelNode(chatModel chatmodel.BaseChatModel) chatmodel.BaseChatModel {
	return chatModel
}
