package embedding

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	errx "github.com/brscn2/aesthetiq-sub001/internal/core/error"
	logx "github.com/brscn2/aesthetiq-sub001/pkg/logger"
)

type Config struct {
	APIKey     string `envconfig:"EMBEDDING_API_KEY" required:"true"`
	BaseURL    string `envconfig:"EMBEDDING_BASE_URL"`
	Model      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	Dimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	MaxRetries int    `envconfig:"EMBEDDING_MAX_RETRIES" default:"3"`
	Timeout    int    `envconfig:"EMBEDDING_TIMEOUT" default:"10"`
}

// Client produces embedding vectors through the OpenAI embeddings API.
// Retries with backoff on 429/5xx are handled by the SDK via MaxRetries.
type Client struct {
	api     openai.Client
	model   string
	wantDim int
}

func NewClient(cfg Config) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(cfg.Timeout)*time.Second))
	}

	return &Client{
		api:     openai.NewClient(opts...),
		model:   cfg.Model,
		wantDim: cfg.Dimensions,
	}
}

// EmbedText returns the embedding vector for one text.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errx.WrapEmbedding(errors.New("empty text to embed"))
	}

	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, errx.WrapEmbedding(err)
	}
	if len(resp.Data) == 0 {
		return nil, errx.WrapEmbedding(errors.New("embedding response contained no vectors"))
	}

	vec := resp.Data[0].Embedding
	if c.wantDim > 0 && len(vec) != c.wantDim {
		// A mismatch degrades similarity scoring but is not fatal.
		logx.Warn().
			Int("want", c.wantDim).
			Int("got", len(vec)).
			Str("model", c.model).
			Msg("embedding dimension differs from configured dimension")
	}

	return vec, nil
}

// Dimension returns the configured vector dimension.
func (c *Client) Dimension() int {
	return c.wantDim
}
