package chatwoot

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Inbox is one configured message source (a WhatsApp line, an email
// address, ...) within the account.
type Inbox struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Directory maps inbox id to display name. It is built once per run and is
// immutable afterwards.
type Directory map[int]string

// Name resolves an inbox id, synthesizing a placeholder for unknown ids so
// records never carry an empty channel name.
func (d Directory) Name(id int) string {
	if name, ok := d[id]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Inbox %d", id)
}

// IDs returns the directory's inbox ids in ascending order.
func (d Directory) IDs() []int {
	ids := make([]int, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// LoadInboxes fetches the account's inbox listing and builds the directory.
// It fails closed: without the mapping there is no safe way to attribute
// messages to channels, so callers must abort the run on error.
func (c *Client) LoadInboxes(ctx context.Context) (Directory, error) {
	body, err := c.get(ctx, c.accountPath("/inboxes"), nil)
	if err != nil {
		return nil, err
	}

	var listing struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("parse inbox listing: %w", err)
	}
	if len(listing.Payload) == 0 {
		return nil, fmt.Errorf("inbox listing is missing the payload key")
	}

	var inboxes []Inbox
	if err := json.Unmarshal(listing.Payload, &inboxes); err != nil {
		return nil, fmt.Errorf("parse inbox payload: %w", err)
	}

	dir := make(Directory, len(inboxes))
	for _, inbox := range inboxes {
		name := inbox.Name
		if name == "" {
			name = fmt.Sprintf("Inbox %d", inbox.ID)
		}
		dir[inbox.ID] = name
	}
	return dir, nil
}
