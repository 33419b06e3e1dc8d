package model

import "strings"

// Intent is the coarse classification of one user turn. The set is closed:
// the router does an exhaustive switch over it, and unknown values never
// survive parsing.
type Intent string

const (
	IntentGeneral        Intent = "GENERAL"
	IntentClothing       Intent = "CLOTHING"
	IntentOutfitAnalysis Intent = "OUTFIT_ANALYSIS"
)

// TaskType refines an intent into the concrete task the router dispatches on.
type TaskType string

const (
	TaskGeneralChat      TaskType = "general_chat"
	TaskItemSearch       TaskType = "item_search"
	TaskOutfitComparison TaskType = "outfit_comparison"
)

// ParseIntent normalizes a raw classifier label into a known intent.
func ParseIntent(v string) (Intent, bool) {
	switch Intent(strings.ToUpper(strings.TrimSpace(v))) {
	case IntentGeneral:
		return IntentGeneral, true
	case IntentClothing:
		return IntentClothing, true
	case IntentOutfitAnalysis:
		return IntentOutfitAnalysis, true
	default:
		return "", false
	}
}

// ParseTaskType normalizes a raw classifier label into a known task type.
func ParseTaskType(v string) (TaskType, bool) {
	switch TaskType(strings.ToLower(strings.TrimSpace(v))) {
	case TaskGeneralChat:
		return TaskGeneralChat, true
	case TaskItemSearch:
		return TaskItemSearch, true
	case TaskOutfitComparison:
		return TaskOutfitComparison, true
	default:
		return "", false
	}
}

// DefaultTaskFor maps an intent to its canonical task when the classifier
// omits or garbles the task label.
func DefaultTaskFor(intent Intent) TaskType {
	switch intent {
	case IntentClothing:
		return TaskItemSearch
	case IntentOutfitAnalysis:
		return TaskOutfitComparison
	default:
		return TaskGeneralChat
	}
}

// IntentResult is the classifier verdict for one turn.
type IntentResult struct {
	Intent     Intent   `json:"intent"`
	TaskType   TaskType `json:"task_type"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning,omitempty"`
	Fallback   bool     `json:"-"`
}

// FallbackIntent is the routing decision applied when the classifier is
// unreachable or returns garbage: attempt retrieval rather than silently
// ignore the request.
func FallbackIntent(reason string) IntentResult {
	return IntentResult{
		Intent:     IntentClothing,
		TaskType:   TaskItemSearch,
		Confidence: 0,
		Reasoning:  reason,
		Fallback:   true,
	}
}
