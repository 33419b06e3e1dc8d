package ranking

import (
	"math"
	"sort"
	"strings"

	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
	logx "github.com/brscn2/aesthetiq-sub001/pkg/logger"
)

// Fixed linear fusion weights. Semantic similarity dominates; the
// precomputed style compatibility signal nudges the ordering.
const (
	SemanticWeight  = 0.70
	SecondaryWeight = 0.30
)

// Engine combines a semantic similarity score with a secondary style
// compatibility score into one ranked ordering. All methods are pure:
// identical inputs produce identical outputs on every call.
type Engine struct {
	semanticWeight  float64
	secondaryWeight float64
}

func NewEngine() *Engine {
	return &Engine{
		semanticWeight:  SemanticWeight,
		secondaryWeight: SecondaryWeight,
	}
}

// Combine fuses the two components and exposes the breakdown for
// explainability. Inputs are clamped into [0,1] first.
func (e *Engine) Combine(semantic, secondary float64) (float64, model.ScoreBreakdown) {
	semantic = clamp01(semantic)
	secondary = clamp01(secondary)

	b := model.ScoreBreakdown{
		Semantic:          semantic,
		Secondary:         secondary,
		WeightedSemantic:  e.semanticWeight * semantic,
		WeightedSecondary: e.secondaryWeight * secondary,
	}
	return b.WeightedSemantic + b.WeightedSecondary, b
}

// SecondaryFor looks up the item's style compatibility score under the
// caller's normalized category key. Items without a style map, and calls
// without a category key, score 0.
func (e *Engine) SecondaryFor(item model.CatalogItem, categoryKey string) float64 {
	if categoryKey == "" || len(item.StyleDNA) == 0 {
		return 0
	}
	return clamp01(item.StyleDNA[NormalizeCategoryKey(categoryKey)])
}

// Score attaches the fused relevance to one candidate.
func (e *Engine) Score(item model.CatalogItem, semantic float64, categoryKey string) model.ScoredItem {
	total, breakdown := e.Combine(semantic, e.SecondaryFor(item, categoryKey))
	return model.ScoredItem{Item: item, Score: total, Breakdown: breakdown}
}

// Rank sorts candidates by total score descending, ties broken by item id
// ascending, so identical inputs always yield the same ordering.
func (e *Engine) Rank(items []model.ScoredItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Item.ID < items[j].Item.ID
	})
}

// NormalizeCategoryKey converts a free-form category label into the style
// map key form: uppercase with spaces as underscores.
func NormalizeCategoryKey(v string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(v), " ", "_"))
}

// Match is one entry of a GetBestMatches result.
type Match struct {
	Key   string  `json:"key"`
	Score float64 `json:"score"`
}

// GetBestMatches returns the entries of scores at or above threshold,
// sorted by score descending (ties by key ascending), truncated to limit.
// A non-positive limit means no truncation.
func GetBestMatches(scores map[string]float64, threshold float64, limit int) []Match {
	matches := make([]Match, 0, len(scores))
	for key, score := range scores {
		if score >= threshold {
			matches = append(matches, Match{Key: key, Score: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Key < matches[j].Key
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Cosine returns the cosine similarity of two vectors. Zero-magnitude
// inputs score 0; a dimension mismatch is logged and scores 0 rather than
// failing the search.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(a) != len(b) {
		logx.Warn().
			Int("query_dim", len(a)).
			Int("candidate_dim", len(b)).
			Msg("embedding dimension mismatch, scoring candidate as 0")
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
