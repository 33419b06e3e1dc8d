package prompts

import (
	"context"
	_ "embed"

	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
)

//go:embed template/stylist_prompt.txt
var stylistSystemPrompt string

// RenderStylistSystem renders the conversational persona prompt used on
// turns that need no catalog work.
func RenderStylistSystem(ctx context.Context, config model.StylistPromptConfig) (string, error) {
	return renderPersona(ctx, "stylist", stylistSystemPrompt, map[string]any{
		"BoutiqueName": config.BoutiqueName,
		"Persona":      config.Persona,
	})
}
