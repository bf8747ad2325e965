package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/atendelab/chatwoot-harvest/internal/chatwoot"
)

// fakeFetcher serves canned message lists per conversation id.
type fakeFetcher struct {
	mu       sync.Mutex
	messages map[int][]chatwoot.Message
	errs     map[int]error
	calls    []int
}

func (f *fakeFetcher) Messages(ctx context.Context, conversationID int) ([]chatwoot.Message, error) {
	f.mu.Lock()
	f.calls = append(f.calls, conversationID)
	f.mu.Unlock()
	if err := f.errs[conversationID]; err != nil {
		return nil, err
	}
	return f.messages[conversationID], nil
}

func epoch(year int, month time.Month, day int) json.RawMessage {
	secs := time.Date(year, month, day, 12, 0, 0, 0, time.UTC).Unix()
	return json.RawMessage(strconv.FormatInt(secs, 10))
}

func TestTransformWindowedConversation(t *testing.T) {
	dir := chatwoot.Directory{101: "WhatsApp", 102: "Email"}
	w, err := NewWindow("2025-01-01", "2025-01-31")
	if err != nil {
		t.Fatalf("NewWindow returned error: %v", err)
	}

	convs := []chatwoot.Conversation{{
		ID:      5001,
		InboxID: 101,
		Meta:    chatwoot.ConversationMeta{Sender: chatwoot.Contact{Name: "Maria", Email: "maria@example.com"}},
	}}

	fetcher := &fakeFetcher{messages: map[int][]chatwoot.Message{
		5001: {
			{ID: 1, MessageType: "incoming", Content: "hello", CreatedAt: epoch(2025, 1, 10)},
			{ID: 2, MessageType: "incoming", Content: "too old", CreatedAt: epoch(2024, 6, 1)},
		},
	}}

	records, skipped, err := Transform(context.Background(), fetcher, convs, dir, w, 1, nil)
	if err != nil {
		t.Fatalf("Transform returned error: %v", err)
	}
	if skipped != 0 {
		t.Errorf("expected no skipped conversations, got %d", skipped)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly 1 record inside the window, got %d", len(records))
	}

	r := records[0]
	if r.ConversationID != 5001 {
		t.Errorf("expected conversation id 5001, got %d", r.ConversationID)
	}
	if r.ChannelName != "WhatsApp" {
		t.Errorf("expected channel WhatsApp, got %q", r.ChannelName)
	}
	if r.CustomerName != "Maria" || r.CustomerEmail != "maria@example.com" {
		t.Errorf("unexpected customer fields: %q / %q", r.CustomerName, r.CustomerEmail)
	}
	if r.SenderName != "Maria" {
		t.Errorf("customer message should carry the customer as sender, got %q", r.SenderName)
	}
	if r.AgentEmail != nil {
		t.Errorf("customer message must have nil agent email, got %q", *r.AgentEmail)
	}
	if r.CreatedAtISO == nil || *r.CreatedAtISO != "2025-01-10T12:00:00Z" {
		t.Errorf("unexpected created_at_iso: %v", r.CreatedAtISO)
	}
}

func TestTransformAgentSender(t *testing.T) {
	dir := chatwoot.Directory{101: "WhatsApp"}
	convs := []chatwoot.Conversation{{ID: 1, InboxID: 101,
		Meta: chatwoot.ConversationMeta{Sender: chatwoot.Contact{Name: "Maria"}}}}

	fetcher := &fakeFetcher{messages: map[int][]chatwoot.Message{
		1: {
			{ID: 1, MessageType: "outgoing", Content: "hi",
				Sender: &chatwoot.Sender{Type: "User", Name: "Agent Ana", Email: "ana@corp.example.com"}},
			{ID: 2, MessageType: "outgoing", Content: "anonymous",
				Sender: &chatwoot.Sender{Type: "User"}},
			{ID: 3, MessageType: "incoming", Content: "thanks",
				Sender: &chatwoot.Sender{Type: "Contact", Name: "Maria"}},
		},
	}}

	records, _, err := Transform(context.Background(), fetcher, convs, dir, nil, 1, nil)
	if err != nil {
		t.Fatalf("Transform returned error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	if records[0].SenderName != "Agent Ana" {
		t.Errorf("expected agent name, got %q", records[0].SenderName)
	}
	if records[0].AgentEmail == nil || *records[0].AgentEmail != "ana@corp.example.com" {
		t.Errorf("expected agent email, got %v", records[0].AgentEmail)
	}

	// Nameless agents get a placeholder but still count as agents.
	if records[1].SenderName != "Unknown Agent" {
		t.Errorf("expected Unknown Agent, got %q", records[1].SenderName)
	}
	if records[1].AgentEmail == nil {
		t.Error("agent message must carry a non-nil agent email, even when empty")
	}

	// Contact senders attribute to the customer.
	if records[2].SenderName != "Maria" {
		t.Errorf("expected customer sender, got %q", records[2].SenderName)
	}
	if records[2].AgentEmail != nil {
		t.Errorf("contact message must have nil agent email, got %q", *records[2].AgentEmail)
	}
}

func TestTransformDefaults(t *testing.T) {
	dir := chatwoot.Directory{}
	convs := []chatwoot.Conversation{{ID: 9, InboxID: 555}}

	fetcher := &fakeFetcher{messages: map[int][]chatwoot.Message{
		9: {{ID: 1, Content: "bare"}},
	}}

	records, _, err := Transform(context.Background(), fetcher, convs, dir, nil, 1, nil)
	if err != nil {
		t.Fatalf("Transform returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	r := records[0]
	if r.CustomerName != "Unknown Customer" {
		t.Errorf("expected Unknown Customer placeholder, got %q", r.CustomerName)
	}
	if r.MessageType != "outgoing" {
		t.Errorf("expected default message type outgoing, got %q", r.MessageType)
	}
	if r.ChannelName != "Inbox 555" {
		t.Errorf("expected synthesized channel name, got %q", r.ChannelName)
	}
	if r.CreatedAtISO != nil {
		t.Errorf("absent created_at must stay null, got %q", *r.CreatedAtISO)
	}
}

func TestTransformTimestampFallback(t *testing.T) {
	dir := chatwoot.Directory{}
	convs := []chatwoot.Conversation{{ID: 1}}

	fetcher := &fakeFetcher{messages: map[int][]chatwoot.Message{
		1: {
			{ID: 1, Content: "string epoch", CreatedAt: json.RawMessage(`"1736510400"`)},
			{ID: 2, Content: "opaque", CreatedAt: json.RawMessage(`"whenever"`)},
		},
	}}

	records, _, err := Transform(context.Background(), fetcher, convs, dir, nil, 1, nil)
	if err != nil {
		t.Fatalf("Transform returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	if records[0].CreatedAtISO == nil || *records[0].CreatedAtISO != "2025-01-10T12:00:00Z" {
		t.Errorf("string-wrapped epoch should parse, got %v", records[0].CreatedAtISO)
	}
	if records[1].CreatedAtISO == nil || *records[1].CreatedAtISO != "whenever" {
		t.Errorf("unparsable timestamp should fall back to its raw form, got %v", records[1].CreatedAtISO)
	}
}

func TestTransformSkipsFailedConversations(t *testing.T) {
	dir := chatwoot.Directory{}
	convs := []chatwoot.Conversation{{ID: 1}, {ID: 2}, {ID: 3}}

	fetcher := &fakeFetcher{
		messages: map[int][]chatwoot.Message{
			1: {{ID: 1, Content: "a"}},
			3: {{ID: 2, Content: "c"}},
		},
		errs: map[int]error{2: errors.New("boom")},
	}

	records, skipped, err := Transform(context.Background(), fetcher, convs, dir, nil, 1, nil)
	if err != nil {
		t.Fatalf("a single failed conversation must not abort the batch: %v", err)
	}
	if skipped != 1 {
		t.Errorf("expected 1 skipped conversation, got %d", skipped)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records from the surviving conversations, got %d", len(records))
	}
}

func TestTransformCountsEmptyConversationsAsSkipped(t *testing.T) {
	convs := []chatwoot.Conversation{{ID: 1}}
	fetcher := &fakeFetcher{messages: map[int][]chatwoot.Message{}}

	records, skipped, err := Transform(context.Background(), fetcher, convs, chatwoot.Directory{}, nil, 1, nil)
	if err != nil {
		t.Fatalf("Transform returned error: %v", err)
	}
	if len(records) != 0 || skipped != 1 {
		t.Errorf("expected 0 records and 1 skipped, got %d records and %d skipped", len(records), skipped)
	}
}

func TestTransformAuthFailureAborts(t *testing.T) {
	convs := []chatwoot.Conversation{{ID: 1}, {ID: 2}}
	fetcher := &fakeFetcher{
		messages: map[int][]chatwoot.Message{2: {{ID: 1, Content: "x"}}},
		errs:     map[int]error{1: &chatwoot.AuthError{Endpoint: "/messages"}},
	}

	_, _, err := Transform(context.Background(), fetcher, convs, chatwoot.Directory{}, nil, 1, nil)
	var authErr *chatwoot.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected auth failure to abort, got %v", err)
	}
}

func TestTransformParallelPreservesInputOrder(t *testing.T) {
	const n = 40
	convs := make([]chatwoot.Conversation, n)
	messages := make(map[int][]chatwoot.Message, n)
	for i := 0; i < n; i++ {
		id := i + 1
		convs[i] = chatwoot.Conversation{ID: id}
		messages[id] = []chatwoot.Message{{ID: id, Content: fmt.Sprintf("msg-%d", id)}}
	}
	fetcher := &fakeFetcher{messages: messages}

	var progressCalls int
	records, skipped, err := Transform(context.Background(), fetcher, convs, chatwoot.Directory{}, nil, 4, func(done, total int) {
		progressCalls++
		if total != n {
			t.Errorf("progress total = %d, want %d", total, n)
		}
	})
	if err != nil {
		t.Fatalf("Transform returned error: %v", err)
	}
	if skipped != 0 {
		t.Errorf("expected no skips, got %d", skipped)
	}
	if len(records) != n {
		t.Fatalf("expected %d records, got %d", n, len(records))
	}
	for i, r := range records {
		if want := fmt.Sprintf("msg-%d", i+1); r.Content != want {
			t.Fatalf("record %d out of order: got %q, want %q", i, r.Content, want)
		}
	}
	if progressCalls != n {
		t.Errorf("expected %d progress calls, got %d", n, progressCalls)
	}
}

func TestTransformCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	convs := []chatwoot.Conversation{{ID: 1}}
	fetcher := &fakeFetcher{messages: map[int][]chatwoot.Message{1: {{ID: 1}}}}

	_, _, err := Transform(ctx, fetcher, convs, chatwoot.Directory{}, nil, 1, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
