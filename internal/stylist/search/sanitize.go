package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Fixed user-facing messages for collaborator failures. Raw error text
// stays in the logs and never reaches the caller.
const (
	MsgFiltersUnavailable = "search filters are temporarily unavailable, please try a simpler request"
	MsgTryAgainLater      = "the catalog is temporarily unreachable, please try again later"
	MsgContactSupport     = "the search service is unavailable, please contact support if this persists"
	MsgBadQuery           = "we could not process your request, please rephrase and try again"
	MsgUnexpected         = "an unexpected error occurred, please try again"
)

// Failure kinds recorded in stage metadata.
const (
	KindFilters      = "filter_misconfiguration"
	KindConnectivity = "connectivity"
	KindAuth         = "auth"
	KindEmbedding    = "embedding"
	KindUnknown      = "unknown"
)

// SearchError carries the sanitized outcome of a failed search. Error()
// returns only the user-safe text, so accidentally logging or serializing
// the error cannot leak infrastructure details; the raw cause is available
// through Unwrap for code that owns the logs.
type SearchError struct {
	UserMessage string
	Kind        string
	cause       error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("%s (%s)", e.UserMessage, e.Kind)
}

func (e *SearchError) Unwrap() error {
	return e.cause
}

func newStoreError(cause error) *SearchError {
	msg, kind := SanitizeError(cause)
	return &SearchError{UserMessage: msg, Kind: kind, cause: cause}
}

// newEmbedError sanitizes a failure of the embedding call site. Timeouts
// still read as connectivity; everything else on this path is an
// embedding failure regardless of the provider's wording.
func newEmbedError(cause error) *SearchError {
	if errors.Is(cause, context.DeadlineExceeded) || errors.Is(cause, context.Canceled) {
		return &SearchError{UserMessage: MsgTryAgainLater, Kind: KindConnectivity, cause: cause}
	}
	return &SearchError{UserMessage: MsgBadQuery, Kind: KindEmbedding, cause: cause}
}

// SanitizeError maps a collaborator failure onto one of the fixed user-safe
// messages by pattern on the underlying error text. Bucket order matters:
// index errors often mention embedding fields, so filter misconfiguration
// is matched before the embedding bucket.
func SanitizeError(err error) (userMsg, kind string) {
	if err == nil {
		return "", ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return MsgTryAgainLater, KindConnectivity
	}

	text := strings.ToLower(err.Error())
	switch {
	case containsAny(text, "unauthorized", "auth", "credential", "permission", "forbidden", "api key"):
		return MsgContactSupport, KindAuth
	case containsAny(text, "index", "planner", "pipeline", "aggregation", "bad filter", "invalid filter"):
		return MsgFiltersUnavailable, KindFilters
	case containsAny(text, "embedding request failed", "could not embed", "embedding service"):
		return MsgBadQuery, KindEmbedding
	case containsAny(text, "timeout", "deadline", "connection", "refused", "unreachable", "dial", "dns", "no such host", "server selection", "broken pipe", "reset by peer", "eof"):
		return MsgTryAgainLater, KindConnectivity
	default:
		return MsgUnexpected, KindUnknown
	}
}

func containsAny(text string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
