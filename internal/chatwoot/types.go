package chatwoot

import "encoding/json"

// Contact is the customer summary embedded in a conversation's meta block.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Conversation is a read-only snapshot of one conversation as returned by the
// API. The pipeline never mutates conversations, only filters and annotates
// them via the inbox directory.
type Conversation struct {
	ID             int              `json:"id"`
	InboxID        int              `json:"inbox_id"`
	LastActivityAt int64            `json:"last_activity_at"` // epoch seconds, 0 when absent
	Meta           ConversationMeta `json:"meta"`
}

// ConversationMeta carries the embedded contact summary.
type ConversationMeta struct {
	Sender Contact `json:"sender"`
}

// Sender identifies who wrote a message. Type is "User" for agents and
// "Contact" for customers.
type Sender struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Message is one message inside a conversation. CreatedAt is kept raw because
// the API usually sends epoch seconds but has been observed to send other
// forms; callers decide how to parse it.
type Message struct {
	ID          int             `json:"id"`
	MessageType string          `json:"message_type"`
	Content     string          `json:"content"`
	Sender      *Sender         `json:"sender"`
	CreatedAt   json.RawMessage `json:"created_at"`
}

// pageMeta is the pagination block of a conversation listing.
type pageMeta struct {
	Count   int `json:"count"`
	PerPage int `json:"per_page"`
}

// conversationPage accepts both envelope shapes the API is known to return:
// {meta, payload} and {data: {payload, meta}, meta}.
type conversationPage struct {
	Meta    pageMeta       `json:"meta"`
	Payload []Conversation `json:"payload"`
	Data    *struct {
		Meta    *pageMeta      `json:"meta"`
		Payload []Conversation `json:"payload"`
	} `json:"data"`
}

func (p *conversationPage) conversations() []Conversation {
	if p.Data != nil {
		return p.Data.Payload
	}
	return p.Payload
}

// pageMeta prefers the top-level meta block; some API versions nest it under
// data instead.
func (p *conversationPage) pageMeta() pageMeta {
	m := p.Meta
	if m.Count == 0 && p.Data != nil && p.Data.Meta != nil {
		m = *p.Data.Meta
	}
	if m.PerPage <= 0 {
		m.PerPage = defaultPerPage
	}
	return m
}
