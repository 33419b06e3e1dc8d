package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

type ConversationRepository interface {
	// AddMessage appends a message to the history of the given session.
	AddMessage(ctx context.Context, sessionID string, message *schema.Message) error

	// LoadHistory retrieves the conversation history for a session.
	LoadHistory(ctx context.Context, sessionID string) (*ConversationHistory, error)

	// ClearHistory removes all conversation history for a session.
	ClearHistory(ctx context.Context, sessionID string) error

	// GetMessageCount returns the number of messages stored for the session.
	GetMessageCount(ctx context.Context, sessionID string) (int, error)

	// SaveAttachedItems records the item ids surfaced to the user in this
	// session, so a later outfit-analysis turn can reason over them
	// without a new retrieval.
	SaveAttachedItems(ctx context.Context, sessionID string, itemIDs []string) error

	// LoadAttachedItems returns the most recently attached item ids.
	LoadAttachedItems(ctx context.Context, sessionID string) ([]string, error)
}

// ConversationHistory represents loaded conversation data with metadata.
type ConversationHistory struct {
	SessionID string
	Messages  []*schema.Message
}
