package model

import "strings"

// SearchFilters are the structural constraints applied before and alongside
// similarity ranking. Every field is optional; zero value means "no filter".
type SearchFilters struct {
	Category    string `json:"category,omitempty"`
	SubCategory string `json:"subCategory,omitempty"`
	Brand       string `json:"brand,omitempty"`
	ColorHex    string `json:"colorHex,omitempty"`
}

// IsZero reports whether no structural constraint is set.
func (f SearchFilters) IsZero() bool {
	return f.Category == "" && f.SubCategory == "" && f.Brand == "" && f.ColorHex == ""
}

// Map renders the non-empty filters for stage metadata and stream events.
func (f SearchFilters) Map() map[string]any {
	out := make(map[string]any, 4)
	if f.Category != "" {
		out["category"] = f.Category
	}
	if f.SubCategory != "" {
		out["subCategory"] = f.SubCategory
	}
	if f.Brand != "" {
		out["brand"] = f.Brand
	}
	if f.ColorHex != "" {
		out["colorHex"] = f.ColorHex
	}
	return out
}

// CatalogItem is a read-only snapshot of a search candidate. The catalog
// store owns the record; the workflow only holds transient references.
// StyleDNA maps normalized category keys to a precomputed compatibility
// score used as the secondary ranking signal.
type CatalogItem struct {
	ID          string             `bson:"_id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Category    string             `bson:"category" json:"category"`
	SubCategory string             `bson:"subCategory,omitempty" json:"subCategory,omitempty"`
	Brand       string             `bson:"brand,omitempty" json:"brand,omitempty"`
	ColorHex    string             `bson:"colorHex,omitempty" json:"colorHex,omitempty"`
	Price       float64            `bson:"price,omitempty" json:"price,omitempty"`
	ImageURL    string             `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	Embedding   []float64          `bson:"embedding,omitempty" json:"-"`
	StyleDNA    map[string]float64 `bson:"styleDna,omitempty" json:"-"`
}

// MatchesFilters reports whether the item satisfies the structural filters
// exactly. Category and colorHex compare against canonical values,
// subCategory case-insensitively, brand as a case-insensitive substring.
// Verification re-applies this as a defense against imprecise store-side
// filtering.
func (i CatalogItem) MatchesFilters(f SearchFilters) bool {
	if f.Category != "" && !strings.EqualFold(i.Category, f.Category) {
		return false
	}
	if f.SubCategory != "" && !strings.EqualFold(i.SubCategory, f.SubCategory) {
		return false
	}
	if f.Brand != "" && !strings.Contains(strings.ToLower(i.Brand), strings.ToLower(f.Brand)) {
		return false
	}
	if f.ColorHex != "" && !strings.EqualFold(i.ColorHex, f.ColorHex) {
		return false
	}
	return true
}

// ScoreBreakdown exposes both weighted and unweighted ranking components.
type ScoreBreakdown struct {
	Semantic          float64 `json:"semantic"`
	Secondary         float64 `json:"secondary"`
	WeightedSemantic  float64 `json:"weighted_semantic"`
	WeightedSecondary float64 `json:"weighted_secondary"`
}

// ScoredItem is a catalog item with its query-time relevance attached.
type ScoredItem struct {
	Item      CatalogItem    `json:"item"`
	Score     float64        `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// UserProfile is the stored style profile used for query enrichment.
// Formality and ColorIntensity are 0-100 sliders; Avoid carries negative
// constraints ("no leather", brands to skip).
type UserProfile struct {
	UserID         string            `bson:"_id" json:"userId"`
	Archetype      string            `bson:"archetype,omitempty" json:"archetype,omitempty"`
	Formality      float64           `bson:"formality,omitempty" json:"formality,omitempty"`
	ColorIntensity float64           `bson:"colorIntensity,omitempty" json:"colorIntensity,omitempty"`
	FavoriteBrands []string          `bson:"favoriteBrands,omitempty" json:"favoriteBrands,omitempty"`
	Sizes          map[string]string `bson:"sizes,omitempty" json:"sizes,omitempty"`
	Avoid          []string          `bson:"avoid,omitempty" json:"avoid,omitempty"`
}
