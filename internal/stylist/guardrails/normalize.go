package guardrails

import (
	"regexp"
	"strings"
)

var (
	hspaceRun = regexp.MustCompile(`[ \t]{2,}`)
	vspaceRun = regexp.MustCompile(`\n{3,}`)
)

// Normalize strips null bytes and normalizes whitespace. It is stable:
// normalizing already-normalized text is a no-op. Content is never altered
// beyond whitespace, so the base layer stays content-neutral.
func Normalize(text string) string {
	t := strings.ReplaceAll(text, "\x00", "")
	t = strings.ReplaceAll(t, "\r\n", "\n")
	t = strings.ReplaceAll(t, "\r", "\n")
	t = hspaceRun.ReplaceAllString(t, " ")
	t = vspaceRun.ReplaceAllString(t, "\n\n")
	return strings.TrimSpace(t)
}
