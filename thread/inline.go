package thread

import (
	"errors"
	"regexp"
	"strings"

	"github.com/dhcgn/mail-to-pairs/model"
)

const inlineBoundary = "wrote:\r\n\r\n"

var (
	ErrNoBoundary        = errors.New(`no "wrote:" boundary followed by a blank line`)
	ErrNoComma           = errors.New("attribution has no comma")
	ErrShortAttribution  = errors.New("attribution date fragment too short")
	attributionOpener    = regexp.MustCompile(`(?i)\bOn `)
	attributionPrefixLen = len("On ")
)

type inlineSplitter struct {
	format Format
}

func (s inlineSplitter) Segment(quoted string) ([]model.Message, []error) {
	pieces := strings.Split(quoted, inlineBoundary)
	if len(pieces) < 2 {
		return nil, []error{&SegmentError{Format: s.format, Index: 1, Err: ErrNoBoundary}}
	}

	chunks := alternate(pieces)

	var (
		messages []model.Message
		errs     []error
	)
	for i := 0; i+1 < len(chunks); i += 2 {
		attribution, body := chunks[i], chunks[i+1]
		if strings.TrimSpace(attribution) == "" {
			continue
		}

		msg, err := parseAttribution(attribution)
		if err != nil {
			errs = append(errs, &SegmentError{Format: s.format, Index: i/2 + 1, Err: err})
			continue
		}
		msg.Body = strings.TrimSpace(body)
		messages = append(messages, msg.WithDefaults())
	}

	return messages, errs
}

// alternate re-cuts the pieces between boundaries into attribution, body,
// attribution, body, ... Every inner piece holds the end of one body followed
// by the next attribution.
func alternate(pieces []string) []string {
	chunks := make([]string, 0, 2*(len(pieces)-1))
	chunks = append(chunks, pieces[0])

	for _, piece := range pieces[1 : len(pieces)-1] {
		cut := attributionStart(piece)
		chunks = append(chunks, piece[:cut], piece[cut:])
	}

	return append(chunks, pieces[len(pieces)-1])
}

// attributionStart returns the offset of the last "On " in piece that is
// followed by a comma, or len(piece) when there is none.
func attributionStart(piece string) int {
	locs := attributionOpener.FindAllStringIndex(piece, -1)
	for i := len(locs) - 1; i >= 0; i-- {
		if strings.Contains(piece[locs[i][0]:], ",") {
			return locs[i][0]
		}
	}
	return len(piece)
}

// parseAttribution splits "On <date>, <sender> " on its first comma.
func parseAttribution(attribution string) (model.Message, error) {
	date, sender, ok := strings.Cut(attribution, ",")
	if !ok {
		return model.Message{}, ErrNoComma
	}

	date = strings.TrimLeft(date, " \t\r\n>")
	if len(date) < attributionPrefixLen {
		return model.Message{}, ErrShortAttribution
	}

	return model.Message{
		From: strings.Join(strings.Fields(sender), " "),
		Sent: strings.TrimSpace(date[attributionPrefixLen:]),
	}, nil
}
