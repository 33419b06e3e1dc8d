package parsers

import (
	"encoding/json"
	"fmt"
	"net/http"

	errx "github.com/brscn2/aesthetiq-sub001/internal/core/error"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
	logx "github.com/brscn2/aesthetiq-sub001/pkg/logger"
)

type intentWire struct {
	Intent     string  `json:"intent"`
	TaskType   string  `json:"task_type"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// ParseIntentResult decodes a classifier reply into a routing verdict.
// The intent label is validated against the closed set; a valid intent with
// a garbled task label falls back to the intent's canonical task. Any other
// failure is returned as an error so the caller can apply the
// retrieval-biased fallback route.
func ParseIntentResult(content string) (result *model.IntentResult, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "intent_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("intent parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			result = nil
		}
	}()

	// content length guard
	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "intent_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
	}

	obj, err := ExtractJSONObject(content)
	if err != nil {
		return nil, fmt.Errorf("intent reply: %w (snippet: %s)", err, safeSnippet(content))
	}

	var wire intentWire
	if err := json.Unmarshal([]byte(obj), &wire); err != nil {
		return nil, fmt.Errorf("intent reply decode: %w", err)
	}

	intent, ok := model.ParseIntent(wire.Intent)
	if !ok {
		return nil, fmt.Errorf("unknown intent label %q", safeSnippet(wire.Intent))
	}

	task, ok := model.ParseTaskType(wire.TaskType)
	if !ok {
		task = model.DefaultTaskFor(intent)
	}

	return &model.IntentResult{
		Intent:     intent,
		TaskType:   task,
		Confidence: clampConfidence(wire.Confidence),
		Reasoning:  truncField(wire.Reasoning),
	}, nil
}
