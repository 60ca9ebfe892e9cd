// Package mailparse decodes raw RFC 5322 messages into items for the thread parser.
package mailparse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/jaytaylor/html2text"

	"github.com/dhcgn/mail-to-pairs/model"
)

// SentLayout renders send times the way the desktop client prints them in quoted headers.
const SentLayout = "Monday, January 02, 2006 03:04 PM"

var (
	ErrMessageIDMissing = errors.New("message missing Message-Id header")
	ErrNoTextBody       = errors.New("message has no text body")
)

// Parse decodes raw into an item: root header fields, the text body with
// CRLF line endings, and the conversation id.
func Parse(raw []byte) (model.Item, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return model.Item{}, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	messageID := normalizeID(mr.Header.Get("Message-Id"))
	if messageID == "" {
		return model.Item{}, ErrMessageIDMissing
	}

	body, err := textBody(mr)
	if err != nil {
		return model.Item{}, err
	}

	return model.Item{
		ConversationID: ConversationID(mr.Header),
		MessageID:      messageID,
		Header: model.Header{
			From:    formatFrom(mr.Header),
			Sent:    formatSent(mr.Header),
			To:      formatTo(mr.Header),
			Subject: subject(mr.Header),
		},
		Body: NormalizeCRLF(body),
		Size: int64(len(raw)),
	}, nil
}

// ConversationID groups replies: Gmail thread id, else the first References
// entry, else In-Reply-To, else the message's own id.
func ConversationID(h mail.Header) string {
	if id := strings.TrimSpace(h.Get("X-GM-THRID")); id != "" {
		return id
	}
	if refs, err := h.MsgIDList("References"); err == nil && len(refs) > 0 {
		return refs[0]
	}
	if ids, err := h.MsgIDList("In-Reply-To"); err == nil && len(ids) > 0 {
		return ids[0]
	}
	if id, err := h.MessageID(); err == nil && id != "" {
		return id
	}
	return normalizeID(h.Get("Message-Id"))
}

func textBody(mr *mail.Reader) (string, error) {
	var plain, html string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			return "", fmt.Errorf("read part: %w", err)
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		data, err := io.ReadAll(part.Body)
		if err != nil {
			return "", fmt.Errorf("read %s part: %w", contentType, err)
		}

		switch {
		case plain == "" && (contentType == "" || strings.HasPrefix(contentType, "text/plain")):
			plain = string(data)
		case html == "" && strings.HasPrefix(contentType, "text/html"):
			html = string(data)
		}
	}

	if plain != "" {
		return plain, nil
	}
	if html != "" {
		text, err := html2text.FromString(html, html2text.Options{OmitLinks: true})
		if err != nil {
			return "", fmt.Errorf("convert html body: %w", err)
		}
		return text, nil
	}
	return "", ErrNoTextBody
}

func formatFrom(h mail.Header) string {
	addrs, err := h.AddressList("From")
	if err != nil || len(addrs) == 0 {
		return decodeHeader(h.Get("From"))
	}
	return formatAddress(addrs[0])
}

func formatTo(h mail.Header) string {
	addrs, err := h.AddressList("To")
	if err != nil || len(addrs) == 0 {
		return decodeHeader(h.Get("To"))
	}
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, formatAddress(a))
	}
	return strings.Join(parts, "; ")
}

func formatAddress(a *mail.Address) string {
	if a.Name == "" {
		return a.Address
	}
	return a.Name + " <" + a.Address + ">"
}

func formatSent(h mail.Header) string {
	date, err := h.Date()
	if err != nil || date.IsZero() {
		return ""
	}
	return FormatSent(date)
}

// FormatSent renders t with SentLayout.
func FormatSent(t time.Time) string {
	return t.Format(SentLayout)
}

func subject(h mail.Header) string {
	s, err := h.Subject()
	if err != nil {
		return decodeHeader(h.Get("Subject"))
	}
	return s
}

func decodeHeader(v string) string {
	dec := new(mime.WordDecoder)
	out, err := dec.DecodeHeader(v)
	if err != nil {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(out)
}

func normalizeID(id string) string {
	return strings.Trim(strings.TrimSpace(id), "<>")
}

// NormalizeCRLF rewrites bare LF and CR line endings to CRLF.
func NormalizeCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}
