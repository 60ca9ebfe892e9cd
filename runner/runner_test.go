package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/mail-to-pairs/config"
	"github.com/dhcgn/mail-to-pairs/corpus"
	"github.com/dhcgn/mail-to-pairs/model"
	"github.com/dhcgn/mail-to-pairs/stats"
)

type recordingSink struct {
	corpus corpus.Corpus
	pairs  []model.TrainingPair
	calls  int
	err    error
}

func (s *recordingSink) Write(_ context.Context, c corpus.Corpus, ps []model.TrainingPair) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.corpus = c
	s.pairs = ps
	return nil
}

func item(conversationID, messageID, from, body string) model.Envelope {
	return model.Envelope{Item: model.Item{
		ConversationID: conversationID,
		MessageID:      messageID,
		Header:         model.Header{From: from, Sent: "Mon 1pm", To: "Ann", Subject: "Hi"},
		Body:           body,
	}}
}

func feed(r *Runner, envelopes ...model.Envelope) {
	r.AddStage("fake-source", func(ctx context.Context) error {
		defer r.CloseMailbox()
		for _, env := range envelopes {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case r.MailboxWriter() <- env:
			}
		}
		return nil
	})
}

func baseConfig() config.Config {
	return config.Config{IdentityName: "Bob", Workers: 3}
}

func TestRunner_EndToEnd(t *testing.T) {
	sink := &recordingSink{}
	r, err := New(baseConfig(), sink, nil)
	require.NoError(t, err)
	reporter := stats.NewReporter(r, nil)

	feed(r,
		item("c1", "m1", "Bob <b@x.com>", "Sure thing.\r\n\r\nOn Mon, Ann Lee <ann@x.com> wrote:\r\n\r\nCan you help?"),
		item("c1", "m2", "Bob <b@x.com>", "A later copy of the same conversation"),
		model.Envelope{Err: errors.New("broken message")},
		item("c2", "m3", "Bob <b@x.com>", "Just a note."),
		item("", "m4", "Bob <b@x.com>", "no conversation"),
	)

	require.NoError(t, r.Start())

	require.Equal(t, 1, sink.calls)
	require.Equal(t, 2, sink.corpus.Len())
	entries := sink.corpus.Entries()
	assert.Equal(t, "c1", entries[0].ConversationID)
	assert.Equal(t, "c2", entries[1].ConversationID)
	assert.Len(t, entries[0].Thread, 2)
	assert.Equal(t, "Sure thing.", entries[0].Thread[0].Body)

	require.Len(t, sink.pairs, 1)
	assert.Equal(t, "c1", sink.pairs[0].ConversationID)
	assert.Equal(t, "Sure thing.", sink.pairs[0].Completion)
	assert.Equal(t, sink.pairs, r.Pairs())

	summary := reporter.Summary()
	assert.Equal(t, 4, summary.Scanned)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 2, summary.Threads)
	assert.Equal(t, 1, summary.QuotedMessages)
	assert.Equal(t, 1, summary.Pairs)
	assert.Equal(t, 2, summary.Errors)
	assert.Equal(t, map[string]int{"inline": 1, "none": 1}, summary.Formats)
}

func TestRunner_FirstOccurrenceWinsAcrossWorkers(t *testing.T) {
	sink := &recordingSink{}
	cfg := baseConfig()
	cfg.Workers = 8
	r, err := New(cfg, sink, nil)
	require.NoError(t, err)

	var envs []model.Envelope
	for i := 0; i < 50; i++ {
		envs = append(envs, item("same", "m", "Bob", "copy"))
	}
	envs[0].Item.Body = "first"
	feed(r, envs...)

	require.NoError(t, r.Start())
	th, ok := sink.corpus.Thread("same")
	require.True(t, ok)
	assert.Equal(t, "first", th[0].Body)
}

func TestRunner_StateSkipsExportedConversations(t *testing.T) {
	cfg := baseConfig()
	cfg.StateDir = t.TempDir()

	first := &recordingSink{}
	r, err := New(cfg, first, nil)
	require.NoError(t, err)
	feed(r, item("c1", "m1", "Bob", "hello"))
	require.NoError(t, r.Start())
	require.Equal(t, 1, first.corpus.Len())

	second := &recordingSink{}
	r, err = New(cfg, second, nil)
	require.NoError(t, err)
	reporter := stats.NewReporter(r, nil)
	feed(r, item("c1", "m1", "Bob", "hello"), item("c2", "m2", "Bob", "new"))
	require.NoError(t, r.Start())

	require.Equal(t, 1, second.corpus.Len())
	_, ok := second.corpus.Thread("c2")
	assert.True(t, ok)
	assert.Equal(t, 1, reporter.Summary().Duplicates)
}

func TestRunner_SinkFailureFailsRun(t *testing.T) {
	cfg := baseConfig()
	cfg.StateDir = t.TempDir()
	boom := errors.New("disk full")

	r, err := New(cfg, &recordingSink{err: boom}, nil)
	require.NoError(t, err)
	feed(r, item("c1", "m1", "Bob", "hello"))

	err = r.Start()
	require.ErrorIs(t, err, boom)

	r, err = New(cfg, &recordingSink{}, nil)
	require.NoError(t, err)
	assert.False(t, r.Tracker().AlreadySeen("c1"), "failed runs must not mark conversations")
	require.NoError(t, r.Tracker().Close())
}

func TestRunner_Validation(t *testing.T) {
	_, err := New(baseConfig(), nil, nil)
	assert.ErrorIs(t, err, ErrSinkMissing)

	cfg := baseConfig()
	cfg.IncludeBody = []string{"("}
	_, err = New(cfg, &recordingSink{}, nil)
	assert.Error(t, err)
}
