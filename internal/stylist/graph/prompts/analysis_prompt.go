package prompts

import (
	"context"
	_ "embed"
	"strings"

	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
)

//go:embed template/analysis_prompt.txt
var analysisSystemPrompt string

// RenderAnalysisSystem renders the query-analysis system prompt with the
// catalog taxonomy substituted in. Known tokens only; the JSON examples in
// the template stay untouched.
func RenderAnalysisSystem(ctx context.Context) (string, error) {
	content := strings.NewReplacer(
		"{taxonomy}", taxonomyBlock(),
	).Replace(analysisSystemPrompt)
	return renderStatic(ctx, "analysis", content)
}

// taxonomyBlock lists the closed category set and the subcategories each
// one admits, in the shape the planner is told to reproduce.
func taxonomyBlock() string {
	var b strings.Builder
	b.WriteString("category: one of ")
	b.WriteString(strings.Join(model.Categories(), ", "))
	b.WriteString("\nsubCategory by category:\n")
	for _, c := range model.Categories() {
		b.WriteString("  " + c + ": " + strings.Join(model.SubCategoriesFor(c), ", ") + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
