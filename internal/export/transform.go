package export

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/atendelab/chatwoot-harvest/internal/chatwoot"
)

// MessageFetcher is the slice of the API client the transformer needs.
type MessageFetcher interface {
	Messages(ctx context.Context, conversationID int) ([]chatwoot.Message, error)
}

// Transform fetches each conversation's messages and maps them to flat
// records. Per-conversation fetch failures are absorbed: the conversation
// contributes zero records, skipped is incremented and the batch continues.
// Only fatal failures (auth, cancellation) abort the run.
//
// With workers > 1 the per-conversation fetches run in parallel; the client's
// shared throttle keeps the request rate unchanged and results are
// reassembled in input order so output is deterministic.
func Transform(ctx context.Context, fetcher MessageFetcher, convs []chatwoot.Conversation, dir chatwoot.Directory, w *Window, workers int, progress func(done, total int)) ([]Record, int, error) {
	if len(convs) == 0 {
		return nil, 0, nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(convs) {
		workers = len(convs)
	}
	if progress == nil {
		progress = func(int, int) {}
	}

	perConv := make([][]Record, len(convs))
	skippedFlags := make([]bool, len(convs))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		done     int
		fatalErr error
	)
	jobs := make(chan int)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				records, skipped, err := transformConversation(runCtx, fetcher, convs[idx], dir, w)
				mu.Lock()
				if err != nil && fatalErr == nil {
					fatalErr = err
					cancel()
				}
				perConv[idx] = records
				skippedFlags[idx] = skipped
				done++
				progress(done, len(convs))
				mu.Unlock()
			}
		}()
	}

feed:
	for idx := range convs {
		select {
		case jobs <- idx:
		case <-runCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if fatalErr != nil {
		return nil, 0, fatalErr
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	var records []Record
	skipped := 0
	for idx := range convs {
		records = append(records, perConv[idx]...)
		if skippedFlags[idx] {
			skipped++
		}
	}
	return records, skipped, nil
}

// transformConversation maps one conversation to records. The returned error
// is non-nil only for fatal failures; a failed or empty message fetch just
// marks the conversation skipped.
func transformConversation(ctx context.Context, fetcher MessageFetcher, conv chatwoot.Conversation, dir chatwoot.Directory, w *Window) ([]Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	messages, err := fetcher.Messages(ctx, conv.ID)
	if err != nil {
		if fatal := fatalTransformErr(err); fatal != nil {
			return nil, false, fatal
		}
		return nil, true, nil
	}
	if len(messages) == 0 {
		return nil, true, nil
	}

	customerName := conv.Meta.Sender.Name
	if customerName == "" {
		customerName = unknownCustomer
	}
	customerEmail := conv.Meta.Sender.Email
	channelName := dir.Name(conv.InboxID)

	var records []Record
	for _, msg := range messages {
		if !keepMessage(msg, w) {
			continue
		}

		messageType := msg.MessageType
		if messageType == "" {
			messageType = defaultMessageType
		}

		senderName := customerName
		var agentEmail *string
		if msg.Sender != nil && msg.Sender.Type == agentSenderType {
			senderName = msg.Sender.Name
			if senderName == "" {
				senderName = unknownAgent
			}
			email := msg.Sender.Email
			agentEmail = &email
		}

		records = append(records, Record{
			ConversationID: conv.ID,
			CustomerName:   customerName,
			CustomerEmail:  customerEmail,
			ChannelName:    channelName,
			MessageType:    messageType,
			SenderName:     senderName,
			Content:        msg.Content,
			CreatedAtISO:   isoTimestamp(msg.CreatedAt),
			AgentEmail:     agentEmail,
		})
	}
	return records, false, nil
}

// fatalTransformErr distinguishes failures that must abort the batch from
// per-conversation failures that just skip one conversation.
func fatalTransformErr(err error) error {
	var authErr *chatwoot.AuthError
	if errors.As(err, &authErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// messageTime parses a raw created_at value as epoch seconds. The API
// usually sends a JSON number but string-wrapped epochs show up too.
func messageTime(raw json.RawMessage) (time.Time, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return time.Time{}, false
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if secs, err := n.Int64(); err == nil {
			return time.Unix(secs, 0).UTC(), true
		}
		if f, err := n.Float64(); err == nil {
			return time.Unix(int64(f), 0).UTC(), true
		}
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if secs, err := strconv.ParseInt(strings.TrimSpace(str), 10, 64); err == nil {
			return time.Unix(secs, 0).UTC(), true
		}
	}

	return time.Time{}, false
}

// isoTimestamp renders created_at as an ISO-8601 UTC string. Absent values
// stay null; present-but-unparsable values fall back to their raw string
// form rather than being dropped.
func isoTimestamp(raw json.RawMessage) *string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil
	}

	if t, ok := messageTime(raw); ok {
		iso := t.Format("2006-01-02T15:04:05Z")
		return &iso
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return &str
	}
	return &s
}
