package prompts

import (
	"context"
	_ "embed"

	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
)

//go:embed template/reply_prompt.txt
var replySystemPrompt string

// RenderRecommendReply renders the prompt that turns a final selection into
// the stylist's presentation of it.
func RenderRecommendReply(ctx context.Context, config model.StylistPromptConfig, items []model.CatalogItem) (string, error) {
	return renderPersona(ctx, "reply", replySystemPrompt, map[string]any{
		"BoutiqueName": config.BoutiqueName,
		"Persona":      config.Persona,
		"Items":        FormatItemLines(items),
	})
}
