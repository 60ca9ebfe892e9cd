// Package thread reconstructs reply chains from raw email bodies.
//
// A body is scanned for the earliest quote boundary (Detect), the quoted
// history is split into messages by the Segmenter matching that boundary,
// and the result is assembled behind the caller-supplied root message
// (Parse). Everything here is pure and synchronous.
package thread

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDelimiterMissing = errors.New("field delimiter missing")
	ErrLabelMissing     = errors.New("field label missing")
)

// ExtractField peels one field off data: the text up to the first delimiter,
// without its leading label, trimmed. An empty label skips label stripping.
// The remainder after the delimiter is returned untouched.
func ExtractField(data, label, delimiter string) (string, string, error) {
	field, rest, ok := strings.Cut(data, delimiter)
	if !ok {
		return "", data, fmt.Errorf("%w: %q not found after %q", ErrDelimiterMissing, delimiter, labelName(label))
	}

	if label != "" {
		field = strings.TrimLeft(field, " \t")
		if !strings.HasPrefix(field, label) {
			return "", data, fmt.Errorf("%w: want %q, got %q", ErrLabelMissing, label, preview(field))
		}
		field = field[len(label):]
	}

	return strings.TrimSpace(field), rest, nil
}

func labelName(label string) string {
	if label == "" {
		return "leading field"
	}
	return label
}

func preview(s string) string {
	if len(s) > 40 {
		return s[:37] + "..."
	}
	return s
}
