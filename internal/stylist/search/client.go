package search

import (
	"context"
	"strings"
	"time"

	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/ranking"
	logx "github.com/brscn2/aesthetiq-sub001/pkg/logger"
)

const (
	defaultLimit   = 10
	defaultPoolCap = 200
)

// Query carries the inputs of one search invocation.
type Query struct {
	SemanticQuery string
	Filters       model.SearchFilters
	Profile       *model.UserProfile
	Limit         int
}

// Config bounds the client's collaborator calls.
type Config struct {
	PoolCap      int
	EmbedTimeout time.Duration
	StoreTimeout time.Duration
}

// Client runs the retrieval pipeline: enrich the query with profile
// signal, embed it, pull a filtered candidate pool, score by cosine
// similarity, fuse with the ranking engine, sort, truncate. Collaborator
// failures come back as a *SearchError whose text is already user-safe.
type Client struct {
	store    model.CatalogRepository
	embedder model.Embedder
	engine   *ranking.Engine

	poolCap      int
	embedTimeout time.Duration
	storeTimeout time.Duration
}

func NewClient(store model.CatalogRepository, embedder model.Embedder, engine *ranking.Engine, cfg Config) *Client {
	poolCap := cfg.PoolCap
	if poolCap <= 0 {
		poolCap = defaultPoolCap
	}
	return &Client{
		store:        store,
		embedder:     embedder,
		engine:       engine,
		poolCap:      poolCap,
		embedTimeout: cfg.EmbedTimeout,
		storeTimeout: cfg.StoreTimeout,
	}
}

// Search returns candidates ranked by fused relevance, best first.
func (c *Client) Search(ctx context.Context, q Query) ([]model.ScoredItem, error) {
	base := strings.TrimSpace(q.SemanticQuery)
	if base == "" {
		base = "versatile wardrobe piece"
	}
	enriched := EnrichQuery(base, q.Profile)

	vec, err := c.embed(ctx, enriched)
	if err != nil {
		logx.Error().Err(err).Str("query", base).Msg("embedding failed during search")
		return nil, newEmbedError(err)
	}

	pool, err := c.fetchPool(ctx, q.Filters)
	if err != nil {
		logx.Error().Err(err).Interface("filters", q.Filters.Map()).Msg("candidate pool fetch failed")
		return nil, newStoreError(err)
	}

	categoryKey := q.Filters.Category
	scored := make([]model.ScoredItem, 0, len(pool))
	for _, item := range pool {
		semantic := ranking.Cosine(vec, item.Embedding)
		scored = append(scored, c.engine.Score(item, semantic, categoryKey))
	}
	c.engine.Rank(scored)

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if len(scored) > limit {
		scored = scored[:limit]
	}

	logx.Debug().
		Int("pool", len(pool)).
		Int("returned", len(scored)).
		Str("category_key", categoryKey).
		Msg("search completed")
	return scored, nil
}

func (c *Client) embed(ctx context.Context, text string) ([]float64, error) {
	if c.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.embedTimeout)
		defer cancel()
	}
	return c.embedder.EmbedText(ctx, text)
}

func (c *Client) fetchPool(ctx context.Context, filters model.SearchFilters) ([]model.CatalogItem, error) {
	if c.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.storeTimeout)
		defer cancel()
	}
	return c.store.FindCandidates(ctx, filters, c.poolCap)
}
