package parsers

import (
	"encoding/json"
	"fmt"
	"net/http"

	errx "github.com/brscn2/aesthetiq-sub001/internal/core/error"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
	logx "github.com/brscn2/aesthetiq-sub001/pkg/logger"
)

type analysisWire struct {
	SemanticQuery string            `json:"semantic_query"`
	Filters       map[string]string `json:"filters"`
	NeedsProfile  bool              `json:"needs_profile"`
	Occasion      string            `json:"occasion"`
}

// ParseQueryAnalysis decodes an analyze-stage reply. Filter values that do
// not fit the catalog taxonomy are dropped field by field rather than
// failing the whole analysis; a missing semantic query is an error because
// search cannot run without one.
func ParseQueryAnalysis(content string) (analysis *model.QueryAnalysis, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "analysis_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("analysis parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			analysis = nil
		}
	}()

	// content length guard
	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "analysis_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
	}

	obj, err := ExtractJSONObject(content)
	if err != nil {
		return nil, fmt.Errorf("analysis reply: %w (snippet: %s)", err, safeSnippet(content))
	}

	var wire analysisWire
	if err := json.Unmarshal([]byte(obj), &wire); err != nil {
		return nil, fmt.Errorf("analysis reply decode: %w", err)
	}

	query := truncField(wire.SemanticQuery)
	if query == "" {
		return nil, fmt.Errorf("analysis reply missing semantic_query")
	}

	filters := model.NormalizeFilters(model.SearchFilters{
		Category:    wire.Filters["category"],
		SubCategory: wire.Filters["subCategory"],
		Brand:       truncField(wire.Filters["brand"]),
		ColorHex:    wire.Filters["colorHex"],
	})

	return &model.QueryAnalysis{
		SemanticQuery: query,
		Filters:       filters,
		NeedsProfile:  wire.NeedsProfile,
		Occasion:      truncField(wire.Occasion),
	}, nil
}
