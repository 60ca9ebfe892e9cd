package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dhcgn/mail-to-pairs/config"
	"github.com/dhcgn/mail-to-pairs/corpus"
	"github.com/dhcgn/mail-to-pairs/filter"
	"github.com/dhcgn/mail-to-pairs/model"
	"github.com/dhcgn/mail-to-pairs/pairs"
	"github.com/dhcgn/mail-to-pairs/state"
	"github.com/dhcgn/mail-to-pairs/stats"
	"github.com/dhcgn/mail-to-pairs/thread"
)

var (
	ErrConversationIDMissing = errors.New("item missing conversation id")
	ErrSinkMissing           = errors.New("dataset sink is nil")
)

type StageFunc func(context.Context) error

// Sink receives the folded corpus and its training pairs after every source is drained.
type Sink interface {
	Write(ctx context.Context, c corpus.Corpus, ps []model.TrainingPair) error
}

type stage struct {
	name string
	fn   StageFunc
}

type subscriber struct {
	name   string
	fn     func(context.Context, <-chan stats.Event) error
	events chan stats.Event
}

type job struct {
	seq  int
	item model.Item
}

type Runner struct {
	cfg    config.Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	messages chan model.Envelope
	jobs     chan job
	partials chan corpus.Corpus

	stages      []stage
	subscribers []*subscriber

	tracker state.Tracker
	filter  *filter.Filter
	matcher pairs.Identity
	sink    Sink

	// written by the bridge, read after it returns
	roots map[string]string

	result corpus.Corpus
	pairs  []model.TrainingPair

	workWG  sync.WaitGroup
	statsWG sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeMailboxOnce sync.Once
	started          bool
	since            time.Time
}

func New(cfg config.Config, sink Sink, logger *slog.Logger) (*Runner, error) {
	if sink == nil {
		return nil, ErrSinkMissing
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	f, err := filter.New(filter.Options{
		IncludeHeader: cfg.IncludeHeader,
		IncludeBody:   cfg.IncludeBody,
		ExcludeHeader: cfg.ExcludeHeader,
		ExcludeBody:   cfg.ExcludeBody,
	})
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}

	var tracker state.Tracker = state.NewMemoryTracker()
	if cfg.StateDir != "" {
		ft, err := state.NewFileTracker(cfg.StateDir)
		if err != nil {
			return nil, fmt.Errorf("state tracker: %w", err)
		}
		tracker = ft
	}

	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		cfg:      cfg,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		messages: make(chan model.Envelope, 32),
		jobs:     make(chan job, 32),
		partials: make(chan corpus.Corpus, cfg.Workers),
		tracker:  tracker,
		filter:   f,
		matcher:  pairs.Identity{Name: cfg.IdentityName, Address: cfg.IdentityAddress},
		sink:     sink,
		roots:    make(map[string]string),
	}

	r.AddStage("bridge", r.bridge)
	r.AddStage("parse", r.parse)
	r.AddStage("collect", r.collect)
	return r, nil
}

func (r *Runner) Config() config.Config {
	return r.cfg
}

func (r *Runner) Logger() *slog.Logger {
	return r.logger
}

func (r *Runner) Context() context.Context {
	return r.ctx
}

func (r *Runner) Tracker() state.Tracker {
	return r.tracker
}

func (r *Runner) Filter() *filter.Filter {
	return r.filter
}

func (r *Runner) MailboxWriter() chan<- model.Envelope {
	return r.messages
}

func (r *Runner) CloseMailbox() {
	r.closeMailboxOnce.Do(func() {
		close(r.messages)
	})
}

// Corpus returns the folded corpus once Start has returned.
func (r *Runner) Corpus() corpus.Corpus {
	return r.result
}

// Pairs returns the generated training pairs once Start has returned.
func (r *Runner) Pairs() []model.TrainingPair {
	return r.pairs
}

// Stop cancels every stage. Start still returns once the stages have exited.
func (r *Runner) Stop() {
	r.fail(context.Canceled)
}

func (r *Runner) EmitEvent(evt stats.Event) {
	for _, sub := range r.subscribers {
		select {
		case <-r.ctx.Done():
			return
		case sub.events <- evt:
		}
	}
}

// SubscribeStats registers fn to receive every event. Subscribers must be
// registered before Start; each one gets its own channel.
func (r *Runner) SubscribeStats(name string, fn func(context.Context, <-chan stats.Event) error) {
	r.subscribers = append(r.subscribers, &subscriber{
		name:   name,
		fn:     fn,
		events: make(chan stats.Event, 128),
	})
}

// AddStage registers a stage. Stages run concurrently once Start is called.
func (r *Runner) AddStage(name string, fn StageFunc) {
	r.stages = append(r.stages, stage{name: name, fn: fn})
}

func (r *Runner) Start() error {
	if r.started {
		return fmt.Errorf("runner already started")
	}
	r.started = true
	r.since = time.Now()

	for _, sub := range r.subscribers {
		r.statsWG.Add(1)
		go func(sub *subscriber) {
			defer r.statsWG.Done()
			if err := sub.fn(r.ctx, sub.events); err != nil && !errors.Is(err, context.Canceled) {
				r.fail(fmt.Errorf("%s stats: %w", sub.name, err))
			}
		}(sub)
	}

	for _, st := range r.stages {
		r.workWG.Add(1)
		go func(st stage) {
			defer r.workWG.Done()
			if err := st.fn(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.fail(fmt.Errorf("%s stage: %w", st.name, err))
			}
		}(st)
	}

	r.workWG.Wait()
	for _, sub := range r.subscribers {
		close(sub.events)
	}
	r.statsWG.Wait()

	if err := r.tracker.Close(); err != nil {
		r.fail(fmt.Errorf("close state: %w", err))
	}

	r.cancel()

	r.errMu.Lock()
	err := r.err
	r.errMu.Unlock()

	duration := time.Since(r.since)
	if err != nil {
		r.logger.Error("pipeline failed", "duration", duration, "err", err)
		return err
	}

	r.logger.Info("pipeline completed", "duration", duration, "conversations", r.result.Len(), "pairs", len(r.pairs))
	return nil
}

// bridge applies filters and keeps the first item of each conversation.
// Sequence numbers record read order so the fold can run in parallel.
func (r *Runner) bridge(ctx context.Context) error {
	defer close(r.jobs)
	seq := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case envelope, ok := <-r.messages:
			if !ok {
				return nil
			}

			if envelope.Err != nil {
				r.logger.Warn("skipping unreadable message", "err", envelope.Err)
				r.EmitEvent(stats.Event{Stage: stats.StageSource, Type: stats.EventTypeError, Err: envelope.Err})
				continue
			}

			item := envelope.Item
			r.EmitEvent(stats.Event{Stage: stats.StageSource, Type: stats.EventTypeScanned, MessageID: item.MessageID, ConversationID: item.ConversationID})

			if item.ConversationID == "" {
				err := fmt.Errorf("message %s: %w", item.MessageID, ErrConversationIDMissing)
				r.EmitEvent(stats.Event{Stage: stats.StageSource, Type: stats.EventTypeError, MessageID: item.MessageID, Err: err})
				continue
			}

			if !r.filter.Allows(item) {
				r.EmitEvent(stats.Event{Stage: stats.StageSource, Type: stats.EventTypeFiltered, MessageID: item.MessageID, ConversationID: item.ConversationID})
				continue
			}

			if _, ok := r.roots[item.ConversationID]; ok || r.tracker.AlreadySeen(item.ConversationID) {
				r.EmitEvent(stats.Event{Stage: stats.StageSource, Type: stats.EventTypeDuplicate, MessageID: item.MessageID, ConversationID: item.ConversationID})
				continue
			}
			r.roots[item.ConversationID] = item.MessageID

			select {
			case <-ctx.Done():
				return ctx.Err()
			case r.jobs <- job{seq: seq, item: item}:
			}
			seq++
		}
	}
}

// parse runs the thread parser on cfg.Workers goroutines. Each worker folds
// its own contributions and hands the partial corpus to the collector.
func (r *Runner) parse(ctx context.Context) error {
	defer close(r.partials)

	var wg sync.WaitGroup
	for w := 0; w < r.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var contributions []corpus.Contribution
			for j := range r.jobs {
				if ctx.Err() != nil {
					continue
				}
				contributions = append(contributions, r.parseOne(j))
			}
			select {
			case <-ctx.Done():
			case r.partials <- corpus.Fold(contributions):
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (r *Runner) parseOne(j job) corpus.Contribution {
	res := thread.Parse(j.item.Header, j.item.Body)

	for _, err := range res.Errs {
		r.logger.Warn("skipping malformed quoted segment", "messageID", j.item.MessageID, "conversationID", j.item.ConversationID, "err", err)
		r.EmitEvent(stats.Event{Stage: stats.StageThread, Type: stats.EventTypeSegmentError, MessageID: j.item.MessageID, ConversationID: j.item.ConversationID, Err: err})
	}

	r.EmitEvent(stats.Event{
		Stage:          stats.StageThread,
		Type:           stats.EventTypeThreaded,
		MessageID:      j.item.MessageID,
		ConversationID: j.item.ConversationID,
		Count:          len(res.Thread) - 1,
		Detail:         res.Match.Format.String(),
	})
	r.logger.Debug("thread reconstructed", "conversationID", j.item.ConversationID, "format", res.Match.Format, "messages", len(res.Thread))

	return corpus.Contribution{ConversationID: j.item.ConversationID, Seq: j.seq, Thread: res.Thread}
}

// collect merges the partial corpora, generates pairs and writes the sink.
func (r *Runner) collect(ctx context.Context) error {
	var merged corpus.Corpus
	for partial := range r.partials {
		merged = merged.Merge(partial)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ps := pairs.FromCorpus(merged, r.matcher)
	perConversation := make(map[string]int)
	for _, p := range ps {
		perConversation[p.ConversationID]++
	}
	for _, entry := range merged.Entries() {
		if n := perConversation[entry.ConversationID]; n > 0 {
			r.EmitEvent(stats.Event{Stage: stats.StagePairs, Type: stats.EventTypePaired, ConversationID: entry.ConversationID, Count: n})
		}
	}

	if err := r.sink.Write(ctx, merged, ps); err != nil {
		r.EmitEvent(stats.Event{Stage: stats.StagePairs, Type: stats.EventTypeError, Err: err})
		return fmt.Errorf("write dataset: %w", err)
	}

	r.result = merged
	r.pairs = ps

	for _, entry := range merged.Entries() {
		if err := r.tracker.MarkSeen(entry.ConversationID, r.roots[entry.ConversationID]); err != nil {
			return fmt.Errorf("mark conversation %s: %w", entry.ConversationID, err)
		}
	}
	return nil
}

func (r *Runner) fail(err error) {
	if err == nil {
		return
	}
	r.errMu.Lock()
	if r.err == nil {
		r.err = err
		r.cancel()
	}
	r.errMu.Unlock()
}
