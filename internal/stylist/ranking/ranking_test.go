package ranking

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
)

func TestCombine_LinearFusion(t *testing.T) {
	e := NewEngine()

	total, breakdown := e.Combine(0.8, 0.5)

	require.InDelta(t, 0.70*0.8+0.30*0.5, total, 1e-9)
	require.InDelta(t, 0.8, breakdown.Semantic, 1e-9)
	require.InDelta(t, 0.5, breakdown.Secondary, 1e-9)
	require.InDelta(t, 0.56, breakdown.WeightedSemantic, 1e-9)
	require.InDelta(t, 0.15, breakdown.WeightedSecondary, 1e-9)
}

func TestCombine_Deterministic(t *testing.T) {
	e := NewEngine()

	first, firstBreakdown := e.Combine(0.61803, 0.41421)
	for i := 0; i < 100; i++ {
		total, breakdown := e.Combine(0.61803, 0.41421)
		require.Equal(t, first, total)
		require.Equal(t, firstBreakdown, breakdown)
	}
}

func TestCombine_ClampsInputs(t *testing.T) {
	e := NewEngine()

	total, _ := e.Combine(-0.5, 1.5)
	require.InDelta(t, 0.30, total, 1e-9)

	total, _ = e.Combine(2.0, -1.0)
	require.InDelta(t, 0.70, total, 1e-9)
}

func TestSecondaryFor(t *testing.T) {
	e := NewEngine()
	item := model.CatalogItem{
		ID:       "item-1",
		StyleDNA: map[string]float64{"EVENING_WEAR": 0.9, "OUTERWEAR": 0.4},
	}

	require.InDelta(t, 0.9, e.SecondaryFor(item, "evening wear"), 1e-9)
	require.InDelta(t, 0.4, e.SecondaryFor(item, "Outerwear"), 1e-9)
	require.Zero(t, e.SecondaryFor(item, "SHOES"))
	require.Zero(t, e.SecondaryFor(item, ""))
	require.Zero(t, e.SecondaryFor(model.CatalogItem{ID: "bare"}, "OUTERWEAR"))
}

func TestNormalizeCategoryKey(t *testing.T) {
	require.Equal(t, "EVENING_WEAR", NormalizeCategoryKey(" evening wear "))
	require.Equal(t, "OUTERWEAR", NormalizeCategoryKey("Outerwear"))
	require.Equal(t, "", NormalizeCategoryKey(""))
}

func TestRank_TieBreakByID(t *testing.T) {
	e := NewEngine()
	items := []model.ScoredItem{
		{Item: model.CatalogItem{ID: "zeta"}, Score: 0.5},
		{Item: model.CatalogItem{ID: "alpha"}, Score: 0.5},
		{Item: model.CatalogItem{ID: "mid"}, Score: 0.7},
	}

	e.Rank(items)

	require.Equal(t, "mid", items[0].Item.ID)
	require.Equal(t, "alpha", items[1].Item.ID)
	require.Equal(t, "zeta", items[2].Item.ID)
}

func TestRank_Reproducible(t *testing.T) {
	e := NewEngine()
	build := func() []model.ScoredItem {
		return []model.ScoredItem{
			{Item: model.CatalogItem{ID: "c"}, Score: 0.31},
			{Item: model.CatalogItem{ID: "a"}, Score: 0.31},
			{Item: model.CatalogItem{ID: "b"}, Score: 0.92},
			{Item: model.CatalogItem{ID: "d"}, Score: 0.11},
		}
	}

	first := build()
	e.Rank(first)
	for i := 0; i < 10; i++ {
		again := build()
		e.Rank(again)
		require.Equal(t, first, again)
	}
}

func TestGetBestMatches(t *testing.T) {
	scores := map[string]float64{
		"SPRING": 0.9,
		"SUMMER": 0.6,
		"AUTUMN": 0.6,
		"WINTER": 0.2,
	}

	matches := GetBestMatches(scores, 0.5, 2)

	require.Len(t, matches, 2)
	require.Equal(t, Match{Key: "SPRING", Score: 0.9}, matches[0])
	// 0.6 tie resolves by key.
	require.Equal(t, Match{Key: "AUTUMN", Score: 0.6}, matches[1])
}

func TestGetBestMatches_NoLimit(t *testing.T) {
	scores := map[string]float64{"A": 0.4, "B": 0.8}

	matches := GetBestMatches(scores, 0.0, 0)

	require.Len(t, matches, 2)
	require.Equal(t, "B", matches[0].Key)
}

func TestCosine(t *testing.T) {
	require.InDelta(t, 1.0, Cosine([]float64{1, 0}, []float64{2, 0}), 1e-9)
	require.InDelta(t, 0.0, Cosine([]float64{1, 0}, []float64{0, 3}), 1e-9)
	require.InDelta(t, -1.0, Cosine([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	require.Zero(t, Cosine(nil, []float64{1}))
	require.Zero(t, Cosine([]float64{0, 0}, []float64{1, 1}))
	// Mismatched dimensions score 0 instead of failing.
	require.Zero(t, Cosine([]float64{1, 2}, []float64{1, 2, 3}))

	v := []float64{0.3, 0.4, math.Sqrt(3) / 2}
	require.InDelta(t, 1.0, Cosine(v, v), 1e-9)
}

func TestScore_UsesStyleDNA(t *testing.T) {
	e := NewEngine()
	item := model.CatalogItem{
		ID:       "jack-01",
		StyleDNA: map[string]float64{"OUTERWEAR": 0.5},
	}

	scored := e.Score(item, 0.9, "outerwear")

	require.InDelta(t, 0.70*0.9+0.30*0.5, scored.Score, 1e-9)
	require.Equal(t, "jack-01", scored.Item.ID)
	require.InDelta(t, 0.5, scored.Breakdown.Secondary, 1e-9)
}
