package export

import (
	"fmt"
	"time"

	"github.com/atendelab/chatwoot-harvest/internal/chatwoot"
)

// Window is an inclusive UTC date range. A nil *Window means no filtering.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow parses two YYYY-MM-DD dates into a window spanning the whole of
// both calendar days: start is normalized to 00:00:00 and end to 23:59:59.
func NewWindow(startDate, endDate string) (*Window, error) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: expected YYYY-MM-DD", startDate)
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: expected YYYY-MM-DD", endDate)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s is before start date %s", endDate, startDate)
	}
	return &Window{
		Start: time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		End:   time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, time.UTC),
	}, nil
}

// Contains reports whether t falls inside the window. The nil window is the
// identity filter: everything is in range.
func (w *Window) Contains(t time.Time) bool {
	if w == nil {
		return true
	}
	t = t.UTC()
	return !t.Before(w.Start) && !t.After(w.End)
}

// Label is the window's filename-safe form.
func (w *Window) Label() string {
	if w == nil {
		return "full-history"
	}
	return w.Start.Format("2006-01-02") + "_" + w.End.Format("2006-01-02")
}

// FilterConversations is the cheap pre-pass over discovered conversations.
// A conversation is dropped only when its last-activity timestamp is known
// and strictly earlier than the window start; conversations with a missing
// timestamp are conservatively kept, since last-activity is only a heuristic
// for the newest message time.
func FilterConversations(convs []chatwoot.Conversation, w *Window) []chatwoot.Conversation {
	if w == nil {
		return convs
	}
	kept := make([]chatwoot.Conversation, 0, len(convs))
	for _, conv := range convs {
		if conv.LastActivityAt > 0 && time.Unix(conv.LastActivityAt, 0).UTC().Before(w.Start) {
			continue
		}
		kept = append(kept, conv)
	}
	return kept
}

// keepMessage is the authoritative per-message filter. Messages whose
// creation time cannot be parsed are kept to avoid silent data loss.
func keepMessage(msg chatwoot.Message, w *Window) bool {
	if w == nil {
		return true
	}
	t, ok := messageTime(msg.CreatedAt)
	if !ok {
		return true
	}
	return w.Contains(t)
}
