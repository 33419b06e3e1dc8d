package guardrails

import (
	"context"
	"fmt"
	"regexp"

	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
)

// injectionPatterns cover the common prompt-injection phrasings. Matching
// is deliberately heuristic; the provider is cheap, deterministic, and
// network-free so it can run on every turn.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bignore\s+(all\s+|any\s+)?(previous|prior|above|earlier)\s+(instructions|prompts|rules|messages)`),
	regexp.MustCompile(`(?i)\bdisregard\s+(all\s+|any\s+)?(previous|prior|above|earlier)\s+(instructions|prompts|rules)`),
	regexp.MustCompile(`(?i)\bforget\s+(all\s+|any\s+)?(previous|prior|your)\s+(instructions|rules|training)`),
	regexp.MustCompile(`(?i)\breveal\s+(the\s+|your\s+)?(system\s+prompt|initial\s+instructions)`),
	regexp.MustCompile(`(?i)\b(print|show|repeat)\s+(the\s+|your\s+)?(system|initial|hidden)\s+(prompt|instructions)`),
	regexp.MustCompile(`(?i)\byou\s+are\s+now\s+(in\s+)?(developer|dan)\s+mode\b`),
	regexp.MustCompile(`(?i)\bpretend\s+(that\s+)?you\s+have\s+no\s+(rules|restrictions|guidelines)`),
	regexp.MustCompile(`(?i)\bjailbreak\b`),
	regexp.MustCompile(`(?i)\bact\s+as\s+an?\s+unrestricted\b`),
}

// leakPatterns flag drafted responses that echo internal instructions.
var leakPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bmy\s+system\s+prompt\s+(is|says)\b`),
	regexp.MustCompile(`(?i)\bmy\s+(initial|hidden)\s+instructions\s+(are|say)\b`),
	regexp.MustCompile(`(?i)\bas\s+an\s+ai\s+language\s+model,?\s+my\s+instructions\b`),
}

// PatternProvider is the built-in deterministic injection screen.
type PatternProvider struct{}

func NewPatternProvider() *PatternProvider {
	return &PatternProvider{}
}

func (p *PatternProvider) Name() string { return "pattern" }

func (p *PatternProvider) CheckInput(_ context.Context, text string) (model.GuardrailResult, error) {
	for _, re := range injectionPatterns {
		if re.MatchString(text) {
			return model.UnsafeResult(p.Name(), text, 0.95,
				fmt.Sprintf("prompt injection pattern matched: %s", re.String())), nil
		}
	}
	return model.SafeResult(p.Name(), text), nil
}

func (p *PatternProvider) CheckOutput(_ context.Context, _ string, response string) (model.GuardrailResult, error) {
	for _, re := range leakPatterns {
		if re.MatchString(response) {
			return model.UnsafeResult(p.Name(), response, 0.9,
				"response echoes internal instructions"), nil
		}
	}
	return model.SafeResult(p.Name(), response), nil
}
