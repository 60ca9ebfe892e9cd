package thread

import (
	"fmt"

	"github.com/dhcgn/mail-to-pairs/model"
)

// Segmenter splits quoted history into messages, newest first.
// Failures are reported per segment; the other segments are still returned.
type Segmenter interface {
	Segment(quoted string) ([]model.Message, []error)
}

// SegmentError reports a quoted segment that could not be parsed.
// Index is the 1-based segment number within the quoted history.
type SegmentError struct {
	Format Format
	Index  int
	Err    error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("%s segment %d: %v", e.Format, e.Index, e.Err)
}

func (e *SegmentError) Unwrap() error {
	return e.Err
}

// SegmenterFor returns the splitter for a detected format, or nil for FormatNone.
func SegmenterFor(f Format) Segmenter {
	switch {
	case f == FormatUnderscore:
		return underscoreSplitter{}
	case f.Inline():
		return inlineSplitter{format: f}
	default:
		return nil
	}
}
