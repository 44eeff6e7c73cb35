package conversations

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/storefront-agent/server/internal/agent/model"
)

// MessagesManager assembles the turn context from the transcript and commits
// finished turns back to it. The pending user message is only persisted by
// CommitTurn, so an aborted turn leaves no trace in the transcript.
type MessagesManager struct {
	conversationRepo model.ConversationRepository
}

func NewMessagesManager(conversationRepo model.ConversationRepository) *MessagesManager {
	return &MessagesManager{conversationRepo: conversationRepo}
}

// BuildTurnContext returns system prompt + persisted history + the pending
// user message, in that order, ready for the reasoning model.
func (cm *MessagesManager) BuildTurnContext(ctx context.Context, conversationID string, systemPrompt string, query string) ([]*schema.Message, error) {
	history, err := cm.conversationRepo.LoadHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	messages := make([]*schema.Message, 0, len(history.Messages)+2)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	messages = append(messages, history.Messages...)
	messages = append(messages, schema.UserMessage(query))

	return messages, nil
}

// CommitTurn persists the user query and the final assistant reply as one
// write, so the transcript only ever grows by whole turns.
func (cm *MessagesManager) CommitTurn(ctx context.Context, conversationID string, query string, reply string) error {
	return cm.conversationRepo.AddMessages(ctx, conversationID,
		schema.UserMessage(query),
		schema.AssistantMessage(reply, nil),
	)
}
