package imap

import (
	"context"
	"testing"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/mail-to-pairs/config"
	"github.com/dhcgn/mail-to-pairs/corpus"
	"github.com/dhcgn/mail-to-pairs/mailparse"
	"github.com/dhcgn/mail-to-pairs/model"
	"github.com/dhcgn/mail-to-pairs/runner"
)

func uids(ns ...uint32) []imapv2.UID {
	out := make([]imapv2.UID, len(ns))
	for i, n := range ns {
		out[i] = imapv2.UID(n)
	}
	return out
}

func TestNewest(t *testing.T) {
	all := uids(3, 7, 9, 12)

	assert.Equal(t, all, newest(all, 0))
	assert.Equal(t, all, newest(all, 10))
	assert.Equal(t, uids(9, 12), newest(all, 2))
	assert.Empty(t, newest(nil, 3))
}

func TestBatches(t *testing.T) {
	got := batches(uids(1, 2, 3, 4, 5), 2)

	require.Len(t, got, 3)
	assert.Equal(t, uids(1, 2), got[0])
	assert.Equal(t, uids(5), got[2])
	assert.Empty(t, batches(nil, 2))
}

func TestEnvelopeFromBuffer(t *testing.T) {
	section := &imapv2.FetchItemBodySection{Peek: true}
	raw := []byte("Message-Id: <a@x.com>\r\nFrom: Bob <b@x.com>\r\nSubject: hi\r\n\r\nhello\r\n")

	env := envelopeFromBuffer(&imapclient.FetchMessageBuffer{
		UID:         42,
		BodySection: []imapclient.FetchBodySectionBuffer{{Section: section, Bytes: raw}},
	}, section)
	require.NoError(t, env.Err)
	assert.Equal(t, "a@x.com", env.Item.MessageID)
	assert.Equal(t, "Bob <b@x.com>", env.Item.Header.From)

	env = envelopeFromBuffer(&imapclient.FetchMessageBuffer{UID: 43}, section)
	assert.ErrorContains(t, env.Err, "body section missing")

	env = envelopeFromBuffer(&imapclient.FetchMessageBuffer{
		UID:         44,
		BodySection: []imapclient.FetchBodySectionBuffer{{Section: section, Bytes: []byte("Subject: x\r\n\r\nno id")}},
	}, section)
	assert.ErrorIs(t, env.Err, mailparse.ErrMessageIDMissing)
}

type discardSink struct{}

func (discardSink) Write(context.Context, corpus.Corpus, []model.TrainingPair) error {
	return nil
}

func TestNewFetcherValidation(t *testing.T) {
	r, err := runner.New(config.Config{IdentityName: "Bob", Workers: 1}, discardSink{}, nil)
	require.NoError(t, err)

	_, err = NewFetcher(Options{Port: 993}, r, nil)
	assert.Error(t, err)
	_, err = NewFetcher(Options{Host: "h"}, r, nil)
	assert.Error(t, err)
	_, err = NewFetcher(Options{Host: "h", Port: 993, Limit: -1}, r, nil)
	assert.Error(t, err)

	f, err := NewFetcher(Options{Host: "h", Port: 993}, r, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultFolder, f.folder())
}
