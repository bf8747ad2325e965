package chatwoot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMessagesFetchesConversation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if want := "/api/v1/accounts/7/conversations/5001/messages"; r.URL.Path != want {
			t.Errorf("expected path %q, got %q", want, r.URL.Path)
		}
		fmt.Fprint(w, `{"payload":[
			{"id":1,"message_type":"incoming","content":"hello","created_at":1736510400,"sender":{"type":"Contact","name":"Maria"}},
			{"id":2,"message_type":"outgoing","content":"hi","created_at":"1736510500","sender":{"type":"User","name":"Ana","email":"ana@corp.example.com"}}
		]}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	msgs, err := c.Messages(context.Background(), 5001)
	if err != nil {
		t.Fatalf("Messages returned error: %v", err)
	}

	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "hello" || msgs[0].Sender == nil || msgs[0].Sender.Type != "Contact" {
		t.Errorf("unexpected first message: %+v", msgs[0])
	}
	// created_at arrives as a number here and as a string there; both must
	// survive parsing untouched.
	if string(msgs[0].CreatedAt) != "1736510400" {
		t.Errorf("expected raw numeric created_at, got %s", msgs[0].CreatedAt)
	}
	if string(msgs[1].CreatedAt) != `"1736510500"` {
		t.Errorf("expected raw string created_at, got %s", msgs[1].CreatedAt)
	}
}

func TestMessagesEmptyPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"payload":[]}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	msgs, err := c.Messages(context.Background(), 1)
	if err != nil {
		t.Fatalf("Messages returned error: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no messages, got %d", len(msgs))
	}
}
