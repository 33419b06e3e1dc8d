package prompts

import (
	"context"
	_ "embed"

	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
)

//go:embed template/outfit_prompt.txt
var outfitSystemPrompt string

// RenderOutfitSystem renders the outfit-comparison prompt over the items
// previously surfaced in the session.
func RenderOutfitSystem(ctx context.Context, config model.StylistPromptConfig, items []model.CatalogItem) (string, error) {
	return renderPersona(ctx, "outfit", outfitSystemPrompt, map[string]any{
		"BoutiqueName": config.BoutiqueName,
		"Persona":      config.Persona,
		"Items":        FormatItemLines(items),
	})
}
