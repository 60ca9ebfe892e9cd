package stats

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollector_Apply(t *testing.T) {
	c := NewCollector()
	boom := errors.New("boom")

	events := make(chan Event, 16)
	events <- Event{Type: EventTypeScanned}
	events <- Event{Type: EventTypeScanned}
	events <- Event{Type: EventTypeDuplicate}
	events <- Event{Type: EventTypeThreaded, Count: 2, Detail: "inline"}
	events <- Event{Type: EventTypeThreaded, Count: 0, Detail: "none"}
	events <- Event{Type: EventTypeSegmentError}
	events <- Event{Type: EventTypePaired, Count: 3}
	events <- Event{Type: EventTypeError, Err: boom}
	close(events)

	c.Run(context.Background(), events)
	s := c.Snapshot()

	assert.Equal(t, 2, s.Scanned)
	assert.Equal(t, 1, s.Duplicates)
	assert.Equal(t, 2, s.Threads)
	assert.Equal(t, 2, s.QuotedMessages)
	assert.Equal(t, 1, s.SegmentErrors)
	assert.Equal(t, 3, s.Pairs)
	assert.Equal(t, 1, s.Errors)
	assert.Equal(t, map[string]int{"inline": 1, "none": 1}, s.Formats)
	assert.ErrorIs(t, s.LastError, boom)
}

func TestTop(t *testing.T) {
	m := map[string]int{"b": 2, "a": 2, "c": 5, "d": 1}

	assert.Equal(t, []Pair{{"c", 5}, {"a", 2}}, Top(m, 2))
	assert.Len(t, Top(m, -1), 4)
}
