package thread

import (
	"regexp"
	"strings"

	"github.com/dhcgn/mail-to-pairs/model"
)

const (
	blockBoundary = "From: "
	lineEnd       = "\r\n"
)

var trailingSeparator = regexp.MustCompile(`\s*_{5,}\s*$`)

type underscoreSplitter struct{}

func (underscoreSplitter) Segment(quoted string) ([]model.Message, []error) {
	var (
		messages []model.Message
		errs     []error
		index    int
	)

	for _, segment := range strings.Split(quoted, blockBoundary) {
		trimmed := strings.TrimSpace(segment)
		if trimmed == "" || strings.Trim(trimmed, "_") == "" {
			continue
		}
		index++

		msg, err := parseBlock(segment)
		if err != nil {
			errs = append(errs, &SegmentError{Format: FormatUnderscore, Index: index, Err: err})
			continue
		}
		messages = append(messages, msg)
	}

	return messages, errs
}

// parseBlock reads From, Sent, To, [Cc,] Subject and the body from one block.
// The block starts right after the "From: " boundary, so From has no label.
func parseBlock(block string) (model.Message, error) {
	var (
		msg  model.Message
		rest = block
		err  error
	)

	if msg.From, rest, err = ExtractField(rest, "", lineEnd); err != nil {
		return model.Message{}, err
	}
	if msg.Sent, rest, err = ExtractField(rest, "Sent:", lineEnd); err != nil {
		return model.Message{}, err
	}
	if msg.To, rest, err = ExtractField(rest, "To:", lineEnd); err != nil {
		return model.Message{}, err
	}
	if strings.HasPrefix(strings.TrimLeft(rest, " \t"), "Cc:") {
		if _, rest, err = ExtractField(rest, "Cc:", lineEnd); err != nil {
			return model.Message{}, err
		}
	}
	if msg.Subject, rest, err = ExtractField(rest, "Subject:", lineEnd); err != nil {
		return model.Message{}, err
	}

	msg.Body = strings.TrimSpace(trailingSeparator.ReplaceAllString(rest, ""))
	return msg.WithDefaults(), nil
}
