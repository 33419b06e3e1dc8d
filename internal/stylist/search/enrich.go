package search

import (
	"strings"

	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
)

// Thresholds for bucketing 0-100 style sliders into query wording.
const (
	sliderHigh = 70
	sliderLow  = 30
)

const maxBrandHints = 3

// EnrichQuery appends profile-derived phrases to the base semantic query.
// Enrichment is strictly additive: the base query text always survives
// verbatim at the front, whatever the profile says.
func EnrichQuery(base string, p *model.UserProfile) string {
	if p == nil {
		return base
	}

	parts := []string{base}

	if a := strings.TrimSpace(p.Archetype); a != "" {
		parts = append(parts, strings.ToLower(a)+" aesthetic")
	}

	switch {
	case p.Formality >= sliderHigh:
		parts = append(parts, "polished formal tailoring")
	case p.Formality > 0 && p.Formality <= sliderLow:
		parts = append(parts, "relaxed casual wear")
	}

	switch {
	case p.ColorIntensity >= sliderHigh:
		parts = append(parts, "bold vibrant colors")
	case p.ColorIntensity > 0 && p.ColorIntensity <= sliderLow:
		parts = append(parts, "muted neutral tones")
	}

	if len(p.FavoriteBrands) > 0 {
		brands := p.FavoriteBrands
		if len(brands) > maxBrandHints {
			brands = brands[:maxBrandHints]
		}
		parts = append(parts, "in the style of "+strings.Join(brands, ", "))
	}

	return strings.Join(parts, ", ")
}
