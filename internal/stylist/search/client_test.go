package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/ranking"
)

type fakeStore struct {
	items      []model.CatalogItem
	err        error
	gotFilters model.SearchFilters
	gotLimit   int
}

func (f *fakeStore) FindCandidates(_ context.Context, filters model.SearchFilters, limit int) ([]model.CatalogItem, error) {
	f.gotFilters = filters
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func (f *fakeStore) FindByIDs(_ context.Context, _ []string) ([]model.CatalogItem, error) {
	return nil, nil
}

type fakeEmbedder struct {
	vec     []float64
	err     error
	gotText string
}

func (f *fakeEmbedder) EmbedText(_ context.Context, text string) ([]float64, error) {
	f.gotText = text
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func newTestClient(store *fakeStore, embedder *fakeEmbedder) *Client {
	return NewClient(store, embedder, ranking.NewEngine(), Config{PoolCap: 50})
}

func TestSearch_RanksByCosineSimilarity(t *testing.T) {
	store := &fakeStore{items: []model.CatalogItem{
		{ID: "far", Embedding: []float64{0, 1}},
		{ID: "near", Embedding: []float64{1, 0}},
		{ID: "mid", Embedding: []float64{1, 1}},
	}}
	embedder := &fakeEmbedder{vec: []float64{1, 0}}
	c := newTestClient(store, embedder)

	results, err := c.Search(context.Background(), Query{SemanticQuery: "black jacket"})

	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, "near", results[0].Item.ID)
	require.Equal(t, "mid", results[1].Item.ID)
	require.Equal(t, "far", results[2].Item.ID)
}

func TestSearch_TruncatesToLimit(t *testing.T) {
	var items []model.CatalogItem
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		items = append(items, model.CatalogItem{ID: id, Embedding: []float64{1, 0}})
	}
	store := &fakeStore{items: items}
	c := newTestClient(store, &fakeEmbedder{vec: []float64{1, 0}})

	results, err := c.Search(context.Background(), Query{SemanticQuery: "shoes", Limit: 2})

	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestSearch_PassesFiltersAndPoolCapToStore(t *testing.T) {
	store := &fakeStore{}
	c := newTestClient(store, &fakeEmbedder{vec: []float64{1}})

	filters := model.SearchFilters{Category: "OUTERWEAR", Brand: "Acme"}
	_, err := c.Search(context.Background(), Query{SemanticQuery: "jacket", Filters: filters})

	require.NoError(t, err)
	require.Equal(t, filters, store.gotFilters)
	require.Equal(t, 50, store.gotLimit)
}

func TestSearch_StyleDNABoostsWithinCategory(t *testing.T) {
	store := &fakeStore{items: []model.CatalogItem{
		{ID: "plain", Embedding: []float64{1, 0}},
		{ID: "styled", Embedding: []float64{1, 0}, StyleDNA: map[string]float64{"OUTERWEAR": 1.0}},
	}}
	c := newTestClient(store, &fakeEmbedder{vec: []float64{1, 0}})

	results, err := c.Search(context.Background(), Query{
		SemanticQuery: "jacket",
		Filters:       model.SearchFilters{Category: "OUTERWEAR"},
	})

	require.NoError(t, err)
	require.Equal(t, "styled", results[0].Item.ID)
	require.InDelta(t, 1.0, results[0].Score, 1e-9)
	require.InDelta(t, 0.70, results[1].Score, 1e-9)
}

func TestSearch_EnrichesQueryWithProfile(t *testing.T) {
	store := &fakeStore{}
	embedder := &fakeEmbedder{vec: []float64{1}}
	c := newTestClient(store, embedder)

	profile := &model.UserProfile{
		Archetype:      "Minimalist",
		Formality:      85,
		ColorIntensity: 10,
		FavoriteBrands: []string{"COS", "Arket"},
	}
	_, err := c.Search(context.Background(), Query{SemanticQuery: "blazer for work", Profile: profile})

	require.NoError(t, err)
	require.Contains(t, embedder.gotText, "blazer for work")
	require.Contains(t, embedder.gotText, "minimalist aesthetic")
	require.Contains(t, embedder.gotText, "polished formal tailoring")
	require.Contains(t, embedder.gotText, "muted neutral tones")
	require.Contains(t, embedder.gotText, "COS")
}

func TestSearch_EmbeddingFailureIsSanitized(t *testing.T) {
	c := newTestClient(&fakeStore{}, &fakeEmbedder{err: errors.New("POST https://api.openai.com/v1/embeddings: 500")})

	_, err := c.Search(context.Background(), Query{SemanticQuery: "jacket"})

	var se *SearchError
	require.ErrorAs(t, err, &se)
	require.Equal(t, MsgBadQuery, se.UserMessage)
	require.Equal(t, KindEmbedding, se.Kind)
}

func TestSearch_StoreFailureIsSanitized(t *testing.T) {
	c := newTestClient(&fakeStore{err: errors.New("server selection error: dial tcp: lookup mongo-svc on 10.0.0.2:53: no such host")}, &fakeEmbedder{vec: []float64{1}})

	_, err := c.Search(context.Background(), Query{SemanticQuery: "jacket"})

	var se *SearchError
	require.ErrorAs(t, err, &se)
	require.Equal(t, MsgTryAgainLater, se.UserMessage)
	require.Equal(t, KindConnectivity, se.Kind)
}

func TestSearch_ItemsWithoutEmbeddingsRankLast(t *testing.T) {
	store := &fakeStore{items: []model.CatalogItem{
		{ID: "no-vec"},
		{ID: "with-vec", Embedding: []float64{1, 0}},
	}}
	c := newTestClient(store, &fakeEmbedder{vec: []float64{1, 0}})

	results, err := c.Search(context.Background(), Query{SemanticQuery: "jacket"})

	require.NoError(t, err)
	require.Equal(t, "with-vec", results[0].Item.ID)
	require.Equal(t, "no-vec", results[1].Item.ID)
	require.Zero(t, results[1].Score)
}
