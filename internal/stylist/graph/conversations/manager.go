package conversations

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
)

// MessagesManager mediates between the workflow and the conversation store.
// It owns the session history window: every context it builds is bounded to
// the most recent turns.
type MessagesManager struct {
	conversationRepo model.ConversationRepository
	maxTurns         int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		maxTurns:         config.History.MaxTurns,
	}
}

// ProcessTurnMessage persists the sanitized user message and returns the
// classifier context for it. Rejected messages never reach this point, so
// the stored history only ever contains text that passed the input guard.
func (cm *MessagesManager) ProcessTurnMessage(ctx context.Context, sessionID string, message string) (string, error) {
	userMsg := schema.UserMessage(message)
	if err := cm.conversationRepo.AddMessage(ctx, sessionID, userMsg); err != nil {
		return "", err
	}

	history, err := cm.conversationRepo.LoadHistory(ctx, sessionID)
	if err != nil {
		return "", err
	}

	var fullContext strings.Builder
	fullContext.WriteString(cm.buildTurnContext(history.Messages))
	fullContext.WriteString("\n<current_message_to_analyze>\n")
	fullContext.WriteString("UserMessage(" + message + ")\n")
	fullContext.WriteString("</current_message_to_analyze>")

	return fullContext.String(), nil
}

func (cm *MessagesManager) buildTurnContext(messages []*schema.Message) string {
	recentMessages := trimTail(messages, cm.maxTurns)

	var contextBuilder strings.Builder
	contextBuilder.WriteString("<conversation_context>\n")

	for _, msg := range recentMessages {
		if msg == nil || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case schema.User:
			contextBuilder.WriteString("UserMessage(" + msg.Content + ")\n")
		case schema.Assistant:
			contextBuilder.WriteString("AssistantMessage(" + msg.Content + ")\n")
		}
	}

	contextBuilder.WriteString("</conversation_context>")
	return contextBuilder.String()
}

// BuildReplyContext assembles [system, history...] for a response model
// call. The current turn's message is normally already the last history
// entry; if a store hiccup lost it, it is appended so the model always sees
// what it is answering.
func (cm *MessagesManager) BuildReplyContext(ctx context.Context, sessionID string, systemPrompt string, current string) ([]*schema.Message, error) {
	history, err := cm.conversationRepo.LoadHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	recent := trimTail(history.Messages, cm.maxTurns)

	messages := make([]*schema.Message, 0, len(recent)+2)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	messages = append(messages, recent...)

	if n := len(messages); current != "" {
		last := messages[n-1]
		if last == nil || last.Role != schema.User || last.Content != current {
			messages = append(messages, schema.UserMessage(current))
		}
	}

	return messages, nil
}

// SaveResponse persists the assistant's released reply.
func (cm *MessagesManager) SaveResponse(ctx context.Context, sessionID string, content string) error {
	assistantMsg := schema.AssistantMessage(content, nil)
	return cm.conversationRepo.AddMessage(ctx, sessionID, assistantMsg)
}

// AttachItems records the item ids surfaced this turn so a later
// outfit-analysis turn can reason over them.
func (cm *MessagesManager) AttachItems(ctx context.Context, sessionID string, itemIDs []string) error {
	return cm.conversationRepo.SaveAttachedItems(ctx, sessionID, itemIDs)
}

// AttachedItems returns the most recently surfaced item ids for the session.
func (cm *MessagesManager) AttachedItems(ctx context.Context, sessionID string) ([]string, error) {
	return cm.conversationRepo.LoadAttachedItems(ctx, sessionID)
}

// ====================== Helper function ======================
func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if maxTurns <= 0 || len(messages) <= maxTurns {
		result := make([]*schema.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-maxTurns:]
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
