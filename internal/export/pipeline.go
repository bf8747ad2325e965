package export

import (
	"context"
	"fmt"
	"time"

	"github.com/atendelab/chatwoot-harvest/internal/chatwoot"
)

// Source is the API surface the pipeline consumes. *chatwoot.Client
// satisfies it; tests substitute fakes.
type Source interface {
	LoadInboxes(ctx context.Context) (chatwoot.Directory, error)
	Discover(ctx context.Context, dir chatwoot.Directory, inboxIDs []int) ([]chatwoot.Conversation, error)
	Messages(ctx context.Context, conversationID int) ([]chatwoot.Message, error)
}

// Options configures one run. The zero value exports the full history
// sequentially with no progress reporting.
type Options struct {
	Window   *Window
	InboxIDs []int // restrict discovery to these inboxes; empty = all
	Workers  int
	Reporter Reporter
}

// Result summarizes a completed run.
type Result struct {
	Records       []Record
	Directory     chatwoot.Directory
	Conversations int // conversations retained after the date pre-filter
	Skipped       int // conversations that contributed zero records
	Elapsed       time.Duration
}

// Progress milestones. Transform owns the span between filtered and saved.
const (
	pctDirectory = 5
	pctDiscovery = 15
	pctFiltered  = 20
	pctTransform = 95
)

// Run executes the four pipeline stages in order: inbox directory,
// conversation discovery, date filtering, transformation. There is no
// branching back and no partial restart; a failed run is simply re-executed.
func Run(ctx context.Context, src Source, opts Options) (*Result, error) {
	rep := opts.Reporter
	if rep == nil {
		rep = NopReporter{}
	}
	started := time.Now()

	dir, err := src.LoadInboxes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load inbox directory: %w", err)
	}
	rep.Progress(pctDirectory, fmt.Sprintf("loaded %d inboxes", len(dir)))

	convs, err := src.Discover(ctx, dir, opts.InboxIDs)
	if err != nil {
		return nil, fmt.Errorf("discover conversations: %w", err)
	}
	rep.Progress(pctDiscovery, fmt.Sprintf("discovered %d conversations", len(convs)))

	if len(convs) == 0 {
		// Valid outcome: nothing to export.
		rep.Progress(100, "no conversations found")
		return &Result{Directory: dir, Elapsed: time.Since(started)}, nil
	}

	convs = FilterConversations(convs, opts.Window)
	rep.Progress(pctFiltered, fmt.Sprintf("%d conversations in window %s", len(convs), opts.Window.Label()))

	lastPct := pctFiltered
	records, skipped, err := Transform(ctx, src, convs, dir, opts.Window, opts.Workers, func(done, total int) {
		pct := pctFiltered + (pctTransform-pctFiltered)*done/total
		if pct > lastPct {
			lastPct = pct
			rep.Progress(pct, fmt.Sprintf("processed %d/%d conversations", done, total))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("transform conversations: %w", err)
	}

	return &Result{
		Records:       records,
		Directory:     dir,
		Conversations: len(convs),
		Skipped:       skipped,
		Elapsed:       time.Since(started),
	}, nil
}
