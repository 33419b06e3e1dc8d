package stream

import (
	"time"
)

// EventType discriminates the frames of the caller-facing progress stream.
type EventType string

const (
	EventMetadata   EventType = "metadata"
	EventStatus     EventType = "status"
	EventNodeStart  EventType = "node_start"
	EventNodeEnd    EventType = "node_end"
	EventIntent     EventType = "intent"
	EventFilters    EventType = "filters"
	EventToolCall   EventType = "tool_call"
	EventItemsFound EventType = "items_found"
	EventAnalysis   EventType = "analysis"
	EventChunk      EventType = "chunk"
	EventDone       EventType = "done"
	EventError      EventType = "error"
)

// Event is one frame of the progress stream. Frames are ordered; a metadata
// frame always opens a stream and a done or error frame always closes it.
type Event struct {
	Type    EventType      `json:"type"`
	Content map[string]any `json:"content"`
}

// Terminal reports whether no further frame may follow this one.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// Metadata opens a stream with the turn's identity and a timestamp.
func Metadata(sessionID, userID string) Event {
	return Event{Type: EventMetadata, Content: map[string]any{
		"session_id": sessionID,
		"user_id":    userID,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}}
}

// Status reports a human-readable progress line.
func Status(text string) Event {
	return Event{Type: EventStatus, Content: map[string]any{"status": text}}
}

// NodeStart marks entry into a workflow node.
func NodeStart(node string) Event {
	return Event{Type: EventNodeStart, Content: map[string]any{"node": node}}
}

// NodeEnd marks completion of a workflow node.
func NodeEnd(node string) Event {
	return Event{Type: EventNodeEnd, Content: map[string]any{"node": node}}
}

// Intent reports the classifier verdict.
func Intent(intent, taskType string, confidence float64) Event {
	return Event{Type: EventIntent, Content: map[string]any{
		"intent":     intent,
		"task_type":  taskType,
		"confidence": confidence,
	}}
}

// Filters reports the structural filters and semantic query for an iteration.
func Filters(filters map[string]any, semanticQuery string) Event {
	return Event{Type: EventFilters, Content: map[string]any{
		"filters":        filters,
		"semantic_query": semanticQuery,
	}}
}

// ToolCall reports an external collaborator call issued by the workflow.
func ToolCall(name string, args map[string]any) Event {
	return Event{Type: EventToolCall, Content: map[string]any{
		"name":      name,
		"arguments": args,
	}}
}

// ItemsFound reports the verified item ids of one iteration.
func ItemsFound(ids []string, iteration int) Event {
	return Event{Type: EventItemsFound, Content: map[string]any{
		"item_ids":  ids,
		"count":     len(ids),
		"iteration": iteration,
	}}
}

// Analysis reports free-text analysis produced for the user (outfit path).
func Analysis(text string) Event {
	return Event{Type: EventAnalysis, Content: map[string]any{"analysis": text}}
}

// Chunk carries a piece of the final response text.
func Chunk(text string) Event {
	return Event{Type: EventChunk, Content: map[string]any{"text": text}}
}

// Done closes a stream successfully.
func Done(content map[string]any) Event {
	if content == nil {
		content = map[string]any{}
	}
	return Event{Type: EventDone, Content: content}
}

// Error closes a stream on failure. The message must already be sanitized:
// raw collaborator error text never goes on the wire.
func Error(message string) Event {
	return Event{Type: EventError, Content: map[string]any{"error": message}}
}
