package model

// GuardrailResult is a safety verdict for one piece of text. Produced fresh
// on every check call and never mutated after construction.
type GuardrailResult struct {
	IsSafe           bool     `json:"is_safe"`
	SanitizedContent string   `json:"sanitized_content"`
	Warnings         []string `json:"warnings,omitempty"`
	RiskScore        float64  `json:"risk_score"`
	ProviderName     string   `json:"provider_name,omitempty"`
}

// SafeResult builds a passing verdict carrying the (possibly sanitized) text.
func SafeResult(provider, sanitized string) GuardrailResult {
	return GuardrailResult{
		IsSafe:           true,
		SanitizedContent: sanitized,
		RiskScore:        0,
		ProviderName:     provider,
	}
}

// UnsafeResult builds a rejecting verdict with the violation recorded.
func UnsafeResult(provider, sanitized string, risk float64, warnings ...string) GuardrailResult {
	return GuardrailResult{
		IsSafe:           false,
		SanitizedContent: sanitized,
		Warnings:         warnings,
		RiskScore:        risk,
		ProviderName:     provider,
	}
}
