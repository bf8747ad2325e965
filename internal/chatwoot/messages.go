package chatwoot

import (
	"context"
	"encoding/json"
	"fmt"
)

// Messages fetches the full message list of one conversation. A single call
// is enough; the messages endpoint is not paginated. Failures are local to
// the conversation: callers skip it and continue the batch.
func (c *Client) Messages(ctx context.Context, conversationID int) ([]Message, error) {
	body, err := c.get(ctx, c.accountPath("/conversations/%d/messages", conversationID), nil)
	if err != nil {
		return nil, err
	}

	var listing struct {
		Payload []Message `json:"payload"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("parse messages for conversation %d: %w", conversationID, err)
	}
	return listing.Payload, nil
}
