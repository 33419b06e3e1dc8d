package prompts

import (
	"context"
	_ "embed"
)

//go:embed template/intent_prompt.txt
var intentSystemPrompt string

// RenderIntentSystem renders the intent classifier system prompt via the
// Eino prompt component. The template is static; rendering still goes
// through the component so prompt callbacks fire.
func RenderIntentSystem(ctx context.Context) (string, error) {
	return renderStatic(ctx, "intent", intentSystemPrompt)
}
