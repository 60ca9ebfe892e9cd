package corpus

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/mail-to-pairs/model"
)

func thread(bodies ...string) model.Thread {
	t := make(model.Thread, 0, len(bodies))
	for _, b := range bodies {
		t = append(t, model.Message{From: "a", Sent: "b", To: "c", Subject: "d", Body: b})
	}
	return t
}

func TestFold_FirstOccurrenceWins(t *testing.T) {
	c := Fold([]Contribution{
		{ConversationID: "conv-b", Seq: 2, Thread: thread("b")},
		{ConversationID: "conv-a", Seq: 3, Thread: thread("later a")},
		{ConversationID: "conv-a", Seq: 1, Thread: thread("first a", "older")},
	})

	require.Equal(t, 2, c.Len())
	entries := c.Entries()
	assert.Equal(t, "conv-a", entries[0].ConversationID)
	assert.Equal(t, "conv-b", entries[1].ConversationID)

	got, ok := c.Thread("conv-a")
	require.True(t, ok)
	assert.Equal(t, "first a", got[0].Body)
	assert.Len(t, got, 2)

	_, ok = c.Thread("missing")
	assert.False(t, ok)
}

func TestMerge_IsOrderIndependent(t *testing.T) {
	left := Fold([]Contribution{
		{ConversationID: "x", Seq: 5, Thread: thread("x late")},
		{ConversationID: "y", Seq: 2, Thread: thread("y")},
	})
	right := Fold([]Contribution{
		{ConversationID: "x", Seq: 1, Thread: thread("x early")},
	})

	a := left.Merge(right)
	b := right.Merge(left)

	assert.Equal(t, a.Entries(), b.Entries())
	got, _ := a.Thread("x")
	assert.Equal(t, "x early", got[0].Body)
}

func TestCorpus_MarshalJSON(t *testing.T) {
	c := Fold([]Contribution{
		{ConversationID: "second", Seq: 2, Thread: thread("2")},
		{ConversationID: "first", Seq: 1, Thread: thread("1", "0")},
	})

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t,
		`{"first":{"0":{"from":"a","sent":"b","to":"c","subject":"d","body":"1"},"1":{"from":"a","sent":"b","to":"c","subject":"d","body":"0"}},`+
			`"second":{"0":{"from":"a","sent":"b","to":"c","subject":"d","body":"2"}}}`,
		string(data))

	var decoded map[string]model.Thread
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, thread("1", "0"), decoded["first"])
}
