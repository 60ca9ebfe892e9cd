package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/dhcgn/mail-to-pairs/stats"
)

// Bar manages a progress bar for tracking message processing.
type Bar struct {
	pb      *pterm.ProgressbarPrinter
	total   int
	mu      sync.Mutex
	enabled bool
}

// New creates a progress bar over total messages. A non-positive total
// (unknown size, as with IMAP before the search) disables the bar.
func New(total int, enabled bool) *Bar {
	bar := &Bar{
		total:   total,
		enabled: enabled && total > 0,
	}

	if bar.enabled {
		pb, _ := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle("Reading messages").
			Start()
		bar.pb = pb

		pterm.Info.Printf("Messages to read: %d\n", total)
		pterm.Println()
	}

	return bar
}

// Update advances the bar for every message the source delivered.
func (b *Bar) Update(evt stats.Event) {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch evt.Type {
	case stats.EventTypeScanned:
		b.pb.Increment()
		if evt.ConversationID != "" {
			b.pb.UpdateTitle("Conversation: " + truncate(evt.ConversationID, 40))
		}
	case stats.EventTypeError:
		// unreadable messages are never scanned, count them here
		if evt.Stage == stats.StageSource {
			b.pb.Increment()
		}
		if evt.Err != nil {
			pterm.Warning.Printf("Skipped: %v\n", evt.Err)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// Stop finalizes the progress bar.
func (b *Bar) Stop() {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pb.Current < b.total {
		b.pb.Current = b.total
	}

	b.pb.Stop()
	pterm.Success.Println("Processing complete!")
}

// Subscriber creates a stats subscriber function that updates the progress bar.
func (b *Bar) Subscriber(ctx context.Context, events <-chan stats.Event) error {
	defer b.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			b.Update(evt)
		}
	}
}

// ProgressReporter wraps the stats Reporter with progress bar functionality.
type ProgressReporter struct {
	bar       *Bar
	collector *stats.Collector
	logger    *slog.Logger
	started   time.Time
}

// NewProgressReporter subscribes the bar and a summary printer to stream.
func NewProgressReporter(stream stats.EventStream, bar *Bar, logger *slog.Logger) *ProgressReporter {
	reporter := &ProgressReporter{
		bar:       bar,
		collector: stats.NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}

	if bar != nil && bar.enabled {
		stream.SubscribeStats("progress-bar", bar.Subscriber)
	}
	stream.SubscribeStats("progress-stats", reporter.collectStats)

	return reporter
}

// Summary returns the counters collected so far.
func (pr *ProgressReporter) Summary() stats.Summary {
	return pr.collector.Snapshot()
}

func (pr *ProgressReporter) collectStats(ctx context.Context, events <-chan stats.Event) error {
	pr.collector.Run(ctx, events)

	summary := pr.collector.Snapshot()
	duration := time.Since(pr.started)

	pterm.Println()
	pterm.DefaultSection.Println("Summary Statistics")
	pterm.Info.Printf("Duration: %v\n", duration.Round(time.Millisecond))
	pterm.Info.Printf("Scanned: %d\n", summary.Scanned)
	pterm.Info.Printf("Filtered: %d\n", summary.Filtered)
	pterm.Info.Printf("Duplicate conversations (skipped): %d\n", summary.Duplicates)
	pterm.Info.Printf("Threads: %d (quoted messages: %d)\n", summary.Threads, summary.QuotedMessages)
	for _, p := range stats.Top(summary.Formats, -1) {
		pterm.Info.Printf("  %s: %d\n", p.Key, p.Value)
	}
	pterm.Info.Printf("Training pairs: %d\n", summary.Pairs)
	if summary.SegmentErrors > 0 {
		pterm.Warning.Printf("Malformed quoted segments: %d\n", summary.SegmentErrors)
	}
	pterm.Info.Printf("Errors: %d\n", summary.Errors)
	if summary.LastError != nil {
		pterm.Error.Printf("Last error: %v\n", summary.LastError)
	}

	if pr.logger != nil {
		pr.logger.Debug("progress summary printed", summary.LogAttrs()...)
	}
	return nil
}
