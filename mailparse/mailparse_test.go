package mailparse

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/mail-to-pairs/model"
)

func raw(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n"))
}

func TestParse_PlainReply(t *testing.T) {
	msg := raw(
		"Message-Id: <reply-2@x.com>",
		"In-Reply-To: <root-1@x.com>",
		"References: <root-1@x.com> <reply-1@x.com>",
		"From: Bob Stone <b@x.com>",
		"To: Ann Lee <ann@x.com>, carl@x.com",
		"Subject: =?utf-8?q?Re=3A_Caf=C3=A9?=",
		"Date: Mon, 06 May 2024 13:05:00 +0000",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Sure thing.",
		"",
		"On Mon, Ann Lee <ann@x.com> wrote:",
		"",
		"Can you help?",
	)

	item, err := Parse(msg)
	require.NoError(t, err)

	assert.Equal(t, "reply-2@x.com", item.MessageID)
	assert.Equal(t, "root-1@x.com", item.ConversationID)
	assert.Equal(t, model.Header{
		From:    "Bob Stone <b@x.com>",
		Sent:    "Monday, May 06, 2024 01:05 PM",
		To:      "Ann Lee <ann@x.com>; carl@x.com",
		Subject: "Re: Café",
	}, item.Header)
	assert.Equal(t, "Sure thing.\r\n\r\nOn Mon, Ann Lee <ann@x.com> wrote:\r\n\r\nCan you help?", item.Body)
	assert.Equal(t, int64(len(msg)), item.Size)
}

func TestParse_MultipartPrefersPlainText(t *testing.T) {
	msg := raw(
		"Message-Id: <m@x.com>",
		"From: bob@x.com",
		"Subject: multipart",
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="b1"`,
		"",
		"--b1",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>html version</p>",
		"--b1",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"plain version",
		"--b1--",
		"",
	)

	item, err := Parse(msg)
	require.NoError(t, err)
	assert.Equal(t, "plain version", strings.TrimSpace(item.Body))
	assert.Equal(t, "bob@x.com", item.Header.From)
	assert.Equal(t, "m@x.com", item.ConversationID)
}

func TestParse_HTMLOnly(t *testing.T) {
	msg := raw(
		"Message-Id: <h@x.com>",
		"From: bob@x.com",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<html><body><p>Hello <b>there</b></p></body></html>",
	)

	item, err := Parse(msg)
	require.NoError(t, err)
	assert.Contains(t, item.Body, "Hello")
	assert.NotContains(t, item.Body, "<p>")
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(raw("From: bob@x.com", "", "no id"))
	assert.ErrorIs(t, err, ErrMessageIDMissing)

	_, err = Parse(raw(
		"Message-Id: <a@x.com>",
		"Content-Type: image/png",
		"",
		"xxxx",
	))
	assert.ErrorIs(t, err, ErrNoTextBody)
}

func TestConversationID_GmailThread(t *testing.T) {
	item, err := Parse(raw(
		"Message-Id: <a@x.com>",
		"X-GM-THRID: 1790000000000000001",
		"References: <root@x.com>",
		"",
		"body",
	))
	require.NoError(t, err)
	assert.Equal(t, "1790000000000000001", item.ConversationID)
}

func TestNormalizeCRLF(t *testing.T) {
	assert.Equal(t, "a\r\nb\r\nc\r\nd", NormalizeCRLF("a\nb\r\nc\rd"))
}

func TestFormatSent(t *testing.T) {
	ts := time.Date(2024, time.October, 8, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "Tuesday, October 08, 2024 09:30 AM", FormatSent(ts))
}
