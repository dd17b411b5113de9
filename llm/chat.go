package llm

import (
	"context"

	"github.com/intakekit/intakekit/conversation"
)

// Chat adapts a Client to the conversation.ChatProvider boundary.
type Chat struct {
	client *Client
}

// NewChat wraps a client for use by the conversation engine.
func NewChat(client *Client) *Chat {
	return &Chat{client: client}
}

// Send issues one completion: the system prompt followed by the most recent
// maxTurns transcript entries. The raw reply text is returned for the
// protocol codec to decode.
func (c *Chat) Send(ctx context.Context, systemPrompt string, turns []conversation.Message, maxTurns int) (string, error) {
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}

	messages := make([]Message, 0, len(turns)+1)
	messages = append(messages, Message{Role: "system", Content: systemPrompt})
	for _, t := range turns {
		messages = append(messages, Message{Role: t.Role, Content: t.Content})
	}

	resp, err := c.client.Complete(ctx, messages)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
