package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
)

// renderStatic pushes a literal system prompt through the Eino prompt
// component using a messages placeholder, which keeps the JSON braces in
// the template out of the formatter's way while still emitting prompt
// callbacks.
func renderStatic(ctx context.Context, name, content string) (string, error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("%s prompt callbacks: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s prompt callbacks: empty result", name)
	}
	return msgs[0].Content, nil
}

// renderPersona formats a Go-template persona prompt and emits prompt
// callbacks. vars must cover every template variable.
func renderPersona(ctx context.Context, name, content string, vars map[string]any) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(content),
	)
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s prompt render: empty result", name)
	}
	return msgs[0].Content, nil
}

// FormatItemLines renders catalog items as prompt-ready bullet lines. Only
// customer-visible attributes appear; embeddings and scores stay out of
// prompts entirely.
func FormatItemLines(items []model.CatalogItem) string {
	if len(items) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, it := range items {
		b.WriteString("- ")
		b.WriteString(it.Name)
		if it.Brand != "" {
			b.WriteString(" by " + it.Brand)
		}
		b.WriteString(" (" + it.Category)
		if it.SubCategory != "" {
			b.WriteString(" / " + it.SubCategory)
		}
		if it.ColorHex != "" {
			b.WriteString(", " + it.ColorHex)
		}
		b.WriteString(")")
		if it.Description != "" {
			b.WriteString(": " + it.Description)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
