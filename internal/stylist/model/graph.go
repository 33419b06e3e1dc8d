package model

import (
	"github.com/cloudwego/eino/schema"
)

// Fixed user-facing copy for terminal outcomes. These are the only texts
// released when a turn ends without a generated response.
const (
	UnsafeInputMessage = "I can't help with that request. Let's keep things focused on style and fashion."

	UnsafeOutputMessage = "I drafted a reply that didn't pass our content checks. Could you rephrase your request and try again?"

	NoResultsFallbackMessage = "I couldn't find pieces matching everything you asked for. Try loosening a detail or two, like the color or the brand, and I'll take another look."

	NoItemsToCompareMessage = "I don't have any pieces on the table for us yet. Ask me to find something first, then I can tell you how the items work together."

	OutfitUnavailableMessage = "I couldn't pull up those pieces just now. Give me a moment and ask again."
)

// TurnInput is the conversation workflow input for one user turn.
type TurnInput struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
}

// TurnResult is the conversation workflow output for one user turn.
type TurnResult struct {
	SessionID string         `json:"session_id"`
	Response  string         `json:"response"`
	Intent    Intent         `json:"intent,omitempty"`
	TaskType  TaskType       `json:"task_type,omitempty"`
	ItemIDs   []string       `json:"item_ids,omitempty"`
	Blocked   bool           `json:"blocked,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// GuardedInput carries the input-guard verdict to the branch deciding
// between classification and the short-circuit refusal.
type GuardedInput struct {
	Input   TurnInput
	Verdict GuardrailResult
}

// DraftVerdict carries the output-guard verdict to the responder.
type DraftVerdict struct {
	Draft    string
	Safe     bool
	Warnings []string
}

// ConversationState stores per-turn state for the conversation graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
//   - Session continuity lives in the conversation store, not here; the state
//     is created per incoming message and discarded after the turn.
type ConversationState struct {
	SessionID        string
	UserID           string
	Message          string            // raw user text
	SanitizedMessage string            // after input-guard normalization
	History          []*schema.Message // bounded to the last K turns, most recent last
	Intent           IntentResult
	InputSafe        bool
	OutputSafe       bool
	FinalResponse    string
	RetrievedItems   []string
	Recommendation   *RecommendResult
	Warnings         []string
	Metadata         map[string]any
	Usage            Usage
}

// RecommendInput is the recommender workflow input. Suggestions carries
// refinement guidance back into query analysis on loop iterations and is
// empty on the first pass.
type RecommendInput struct {
	Query       string   `json:"query"`
	UserID      string   `json:"user_id"`
	SessionID   string   `json:"session_id,omitempty"`
	Suggestions []string `json:"-"`
}

// QueryAnalysis is the structured outcome of the analyze stage.
type QueryAnalysis struct {
	SemanticQuery string        `json:"semantic_query"`
	Filters       SearchFilters `json:"filters"`
	NeedsProfile  bool          `json:"needs_profile"`
	Occasion      string        `json:"occasion,omitempty"`
	Fallback      bool          `json:"-"`
}

// SearchOutcome is the search stage output. Err carries a user-safe message
// when a collaborator failed; raw error text never travels through here.
type SearchOutcome struct {
	Results []ScoredItem
	Err     string
	ErrKind string
}

// VerifyOutcome is the verification stage output.
type VerifyOutcome struct {
	Valid      []ScoredItem
	ValidIDs   []string
	Sufficient bool
	Err        string
	ErrKind    string
}

// RecommendResult is the recommender workflow output. Exactly one of three
// outcomes holds: Success with item ids, Fallback with the fixed no-results
// message, or Err with a sanitized failure message.
type RecommendResult struct {
	ItemIDs    []string       `json:"item_ids"`
	Message    string         `json:"message,omitempty"`
	Iterations int            `json:"iterations"`
	Success    bool           `json:"success"`
	Fallback   bool           `json:"fallback,omitempty"`
	Err        string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// RecommenderState stores per-attempt state for the recommender graph.
// Same access rules as ConversationState: state handlers only.
type RecommenderState struct {
	UserQuery   string
	UserID      string
	SessionID   string
	Iteration   int // 0-based; hard ceiling at MaxIterations
	Analysis    QueryAnalysis
	Profile     *UserProfile
	Suggestions []string
	StageMeta   []map[string]any // one entry per iteration: iteration, result count, filters
	Err         string
	ErrKind     string
	Usage       Usage
}
