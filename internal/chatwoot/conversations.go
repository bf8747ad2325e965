package chatwoot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// statusFilters is the ordered list of status values tried by the global
// sweep. "all" is assumed to be a superset; the narrower filters only matter
// on accounts whose API version rejects it.
var statusFilters = []string{"all", "open", "resolved", "pending"}

// maxPages bounds a single status sweep so a lying meta.count cannot keep us
// paginating forever.
const maxPages = 500

// Discover finds the account's conversation set. When inboxIDs is non-empty
// the per-inbox strategy runs directly against that subset; otherwise the
// global sweep runs first and the per-inbox sweep over the whole directory is
// the fallback. An empty result is a valid "nothing to export" outcome, not
// an error.
func (c *Client) Discover(ctx context.Context, dir Directory, inboxIDs []int) ([]Conversation, error) {
	if len(inboxIDs) > 0 {
		return c.discoverByInbox(ctx, inboxIDs)
	}

	convs, err := c.discoverGlobal(ctx)
	if err != nil {
		return nil, err
	}
	if len(convs) > 0 {
		return convs, nil
	}
	return c.discoverByInbox(ctx, dir.IDs())
}

// discoverGlobal sweeps status filters in order and returns the first
// non-empty result. Filters are deliberately not merged: the first one that
// produces results is treated as authoritative.
func (c *Client) discoverGlobal(ctx context.Context) ([]Conversation, error) {
	endpoint := c.accountPath("/conversations")

	for _, status := range statusFilters {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		page, err := c.fetchConversationPage(ctx, endpoint, url.Values{
			"page":   []string{"1"},
			"status": []string{status},
		})
		if err != nil {
			if isFatal(err) {
				return nil, err
			}
			continue // this status filter is broken on this account, try the next
		}

		meta := page.pageMeta()
		convs := page.conversations()
		if meta.Count <= 0 || len(convs) == 0 {
			continue
		}

		totalPages := (meta.Count + meta.PerPage - 1) / meta.PerPage
		if totalPages > maxPages {
			totalPages = maxPages
		}

		for pageNo := 2; pageNo <= totalPages; pageNo++ {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			next, err := c.fetchConversationPage(ctx, endpoint, url.Values{
				"page":   []string{strconv.Itoa(pageNo)},
				"status": []string{status},
			})
			if err != nil {
				if isFatal(err) {
					return nil, err
				}
				break // keep the pages collected so far
			}
			items := next.conversations()
			if len(items) == 0 {
				break
			}
			convs = append(convs, items...)
		}

		return convs, nil
	}

	return nil, nil
}

// inboxParamCombos returns the ordered parameter combinations tried per inbox
// by the fallback sweep. The first combination that yields data wins; later
// ones are skipped for that inbox.
func inboxParamCombos(inboxID int) []url.Values {
	id := strconv.Itoa(inboxID)
	return []url.Values{
		{"inbox_id": []string{id}, "status": []string{"all"}},
		{"inbox_id": []string{id}, "status": []string{"open"}},
		{"inbox_id": []string{id}, "status": []string{"resolved"}},
		{"inbox_id": []string{id}},
	}
}

// discoverByInbox queries each inbox separately. Some accounts reject global
// queries or silently cap their result counts; asking per inbox trades extra
// traffic for a complete answer.
func (c *Client) discoverByInbox(ctx context.Context, inboxIDs []int) ([]Conversation, error) {
	endpoint := c.accountPath("/conversations")

	var collected []Conversation
	for _, inboxID := range inboxIDs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		for _, params := range inboxParamCombos(inboxID) {
			page, err := c.fetchConversationPage(ctx, endpoint, params)
			if err != nil {
				if isFatal(err) {
					return nil, err
				}
				continue
			}
			if convs := page.conversations(); len(convs) > 0 {
				collected = append(collected, convs...)
				break
			}
		}
	}

	return dedupeConversations(collected), nil
}

// dedupeConversations keeps the first copy of each conversation id. Any copy
// is representative: conversations are immutable snapshots within a run.
func dedupeConversations(convs []Conversation) []Conversation {
	if len(convs) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(convs))
	out := make([]Conversation, 0, len(convs))
	for _, conv := range convs {
		if _, ok := seen[conv.ID]; ok {
			continue
		}
		seen[conv.ID] = struct{}{}
		out = append(out, conv)
	}
	return out
}

func (c *Client) fetchConversationPage(ctx context.Context, endpoint string, params url.Values) (*conversationPage, error) {
	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	var page conversationPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("parse conversation page: %w", err)
	}
	return &page, nil
}

// isFatal reports whether an error must abort the whole run instead of being
// absorbed as a local page failure.
func isFatal(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
