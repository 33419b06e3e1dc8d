package guardrails

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
	logx "github.com/brscn2/aesthetiq-sub001/pkg/logger"
)

// Provider is one policy check in the safety pipeline. Providers compose:
// each receives the previous provider's sanitized output.
type Provider interface {
	Name() string
	CheckInput(ctx context.Context, text string) (model.GuardrailResult, error)
	CheckOutput(ctx context.Context, prompt, response string) (model.GuardrailResult, error)
}

// SafetyGuardrails runs a base length/normalization layer followed by an
// ordered provider pipeline. The aggregate verdict is the AND of all
// provider verdicts; the sanitized content is the last provider's output.
// A provider error is a permissive pass for that provider, recorded as a
// warning, never a hard failure of the turn.
type SafetyGuardrails struct {
	providers []Provider
	maxInput  int
	maxOutput int
	timeout   time.Duration
}

func New(cfg model.GuardrailConfig, timeout time.Duration, providers ...Provider) *SafetyGuardrails {
	return &SafetyGuardrails{
		providers: providers,
		maxInput:  cfg.MaxInputLength,
		maxOutput: cfg.MaxOutputLength,
		timeout:   timeout,
	}
}

// CheckInput validates one user message before any model or search call.
func (g *SafetyGuardrails) CheckInput(ctx context.Context, text string) model.GuardrailResult {
	sanitized := Normalize(text)

	if g.maxInput > 0 && utf8.RuneCountInString(sanitized) > g.maxInput {
		return model.UnsafeResult(g.name(), sanitized, 1.0,
			fmt.Sprintf("input exceeds maximum length of %d characters", g.maxInput))
	}

	return g.runPipeline(ctx, sanitized, func(ctx context.Context, p Provider, current string) (model.GuardrailResult, error) {
		return p.CheckInput(ctx, current)
	})
}

// CheckOutput validates a generated response before it is released.
func (g *SafetyGuardrails) CheckOutput(ctx context.Context, prompt, response string) model.GuardrailResult {
	sanitized := Normalize(response)

	if g.maxOutput > 0 && utf8.RuneCountInString(sanitized) > g.maxOutput {
		return model.UnsafeResult(g.name(), sanitized, 1.0,
			fmt.Sprintf("output exceeds maximum length of %d characters", g.maxOutput))
	}

	return g.runPipeline(ctx, sanitized, func(ctx context.Context, p Provider, current string) (model.GuardrailResult, error) {
		return p.CheckOutput(ctx, prompt, current)
	})
}

type checkFn func(ctx context.Context, p Provider, current string) (model.GuardrailResult, error)

func (g *SafetyGuardrails) runPipeline(ctx context.Context, sanitized string, check checkFn) model.GuardrailResult {
	safe := true
	risk := 0.0
	current := sanitized
	var warnings []string

	for _, p := range g.providers {
		res, err := g.callProvider(ctx, p, current, check)
		if err != nil {
			// Infrastructure trouble in a provider must not fail the
			// turn; record it and move on with the text unchanged.
			logx.Warn().Err(err).Str("provider", p.Name()).Msg("guardrail provider failed, treating as pass")
			warnings = append(warnings, fmt.Sprintf("provider %s unavailable, treated as pass", p.Name()))
			continue
		}

		safe = safe && res.IsSafe
		current = res.SanitizedContent
		if res.RiskScore > risk {
			risk = res.RiskScore
		}
		warnings = append(warnings, res.Warnings...)
	}

	return model.GuardrailResult{
		IsSafe:           safe,
		SanitizedContent: current,
		Warnings:         warnings,
		RiskScore:        risk,
		ProviderName:     g.name(),
	}
}

func (g *SafetyGuardrails) callProvider(ctx context.Context, p Provider, current string, check checkFn) (res model.GuardrailResult, err error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("guardrail provider %s panicked: %v", p.Name(), r)
		}
	}()

	return check(ctx, p, current)
}

func (g *SafetyGuardrails) name() string {
	if len(g.providers) == 0 {
		return "base"
	}
	names := make([]string, len(g.providers))
	for i, p := range g.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, ",")
}
