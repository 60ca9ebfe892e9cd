package thread

import (
	"strings"

	"github.com/dhcgn/mail-to-pairs/model"
)

// Result is the outcome of parsing one body.
type Result struct {
	Thread model.Thread
	Match  Match
	// Errs holds one *SegmentError per quoted segment that was dropped.
	Errs []error
}

// Parse builds the thread for one item: the root message from header and the
// text before the first quote boundary, followed by the quoted history.
func Parse(header model.Header, body string) Result {
	match := Detect(body)

	root := model.Message{
		From:    header.From,
		Sent:    header.Sent,
		To:      header.To,
		Subject: header.Subject,
		Body:    strings.TrimSpace(body),
	}
	if !match.Found() {
		return Result{Thread: Assemble(root, nil), Match: match}
	}

	root.Body = strings.TrimSpace(body[:match.Offset])
	quoted, errs := SegmenterFor(match.Format).Segment(body[match.Offset:])

	return Result{Thread: Assemble(root, quoted), Match: match, Errs: errs}
}

// Assemble places root at position 0 and the quoted messages after it.
func Assemble(root model.Message, quoted []model.Message) model.Thread {
	t := make(model.Thread, 0, 1+len(quoted))
	t = append(t, root.WithDefaults())
	return append(t, quoted...)
}
