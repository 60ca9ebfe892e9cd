package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

type Stage string

const (
	StageSource Stage = "source"
	StageThread Stage = "thread"
	StagePairs  Stage = "pairs"
)

type EventType string

const (
	EventTypeScanned      EventType = "scanned"
	EventTypeFiltered     EventType = "filtered"
	EventTypeDuplicate    EventType = "duplicate"
	EventTypeThreaded     EventType = "threaded"
	EventTypeSegmentError EventType = "segment_error"
	EventTypePaired       EventType = "paired"
	EventTypeError        EventType = "error"
)

// Event is one observation of the pipeline. Count carries the number of
// quoted messages for threaded events and the number of pairs for paired events.
type Event struct {
	Stage          Stage
	Type           EventType
	ConversationID string
	MessageID      string
	Count          int
	Err            error
	Detail         string
}

type Summary struct {
	Scanned        int
	Filtered       int
	Duplicates     int
	Threads        int
	QuotedMessages int
	SegmentErrors  int
	Pairs          int
	Errors         int
	Formats        map[string]int
	LastError      error
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"scanned", s.Scanned,
		"filtered", s.Filtered,
		"duplicates", s.Duplicates,
		"threads", s.Threads,
		"quotedMessages", s.QuotedMessages,
		"segmentErrors", s.SegmentErrors,
		"pairs", s.Pairs,
		"errors", s.Errors,
	}
	formats := make([]string, 0, len(s.Formats))
	for name := range s.Formats {
		formats = append(formats, name)
	}
	sort.Strings(formats)
	for _, name := range formats {
		attrs = append(attrs, "format."+name, s.Formats[name])
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

type Collector struct {
	mu      sync.Mutex
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{summary: Summary{Formats: make(map[string]int)}}
}

func (c *Collector) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			c.Apply(evt)
		}
	}
}

func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	summary := c.summary
	summary.Formats = make(map[string]int, len(c.summary.Formats))
	for k, v := range c.summary.Formats {
		summary.Formats[k] = v
	}
	return summary
}

func (c *Collector) Apply(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt.Type {
	case EventTypeScanned:
		c.summary.Scanned++
	case EventTypeFiltered:
		c.summary.Filtered++
	case EventTypeDuplicate:
		c.summary.Duplicates++
	case EventTypeThreaded:
		c.summary.Threads++
		c.summary.QuotedMessages += evt.Count
		if evt.Detail != "" {
			c.summary.Formats[evt.Detail]++
		}
	case EventTypeSegmentError:
		c.summary.SegmentErrors++
	case EventTypePaired:
		c.summary.Pairs += evt.Count
	case EventTypeError:
		c.summary.Errors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}

type EventStream interface {
	SubscribeStats(name string, fn func(context.Context, <-chan Event) error)
}

type Reporter struct {
	collector *Collector
	logger    *slog.Logger
	started   time.Time
}

func NewReporter(stream EventStream, logger *slog.Logger) *Reporter {
	reporter := &Reporter{
		collector: NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}
	stream.SubscribeStats("stats-reporter", reporter.consume)
	return reporter
}

func (r *Reporter) consume(ctx context.Context, events <-chan Event) error {
	r.collector.Run(ctx, events)
	summary := r.collector.Snapshot()
	attrs := append(summary.LogAttrs(), "duration", time.Since(r.started))
	if ctx.Err() != nil {
		if r.logger != nil {
			r.logger.Debug("stats collection stopped", append(attrs, "err", ctx.Err())...)
		}
		return ctx.Err()
	}
	if r.logger != nil {
		r.logger.Info("stats summary", attrs...)
	}
	return nil
}

func (r *Reporter) Summary() Summary {
	return r.collector.Snapshot()
}

// PrettyPrintTop prints the top N most frequent items in a map.
func PrettyPrintTop(m map[string]int, limit int) {
	for i, p := range Top(m, limit) {
		fmt.Printf("%d. %s (%d)\n", i+1, p.Key, p.Value)
	}
}

// Pair is one counted key.
type Pair struct {
	Key   string
	Value int
}

// Top returns the limit most frequent keys, ties broken alphabetically.
// A negative limit returns every key.
func Top(m map[string]int, limit int) []Pair {
	pairs := make([]Pair, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, Pair{k, v})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Value != pairs[j].Value {
			return pairs[i].Value > pairs[j].Value
		}
		return pairs[i].Key < pairs[j].Key
	})

	if limit >= 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}
