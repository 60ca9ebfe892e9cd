// Package corpus folds per-item threads into the conversation corpus.
//
// Each processed item contributes one (conversation id, thread) pair tagged
// with the order in which the item was read. Folding keeps the earliest
// contribution per conversation, so contributions can be produced and merged
// in any order.
package corpus

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/dhcgn/mail-to-pairs/model"
)

// Contribution is the thread built from one item.
type Contribution struct {
	ConversationID string
	Seq            int
	Thread         model.Thread
}

// Entry is one conversation of the corpus.
type Entry struct {
	ConversationID string
	Seq            int
	Thread         model.Thread
}

// Corpus maps conversation ids to threads, ordered by first occurrence.
// Treat values as immutable: Merge and Fold return new corpora.
type Corpus struct {
	entries []Entry
	index   map[string]int
}

// Fold reduces contributions into a corpus. The lowest Seq wins per conversation.
func Fold(contributions []Contribution) Corpus {
	best := make(map[string]Contribution, len(contributions))
	for _, c := range contributions {
		if prev, ok := best[c.ConversationID]; ok && prev.Seq <= c.Seq {
			continue
		}
		best[c.ConversationID] = c
	}

	entries := make([]Entry, 0, len(best))
	for _, c := range best {
		entries = append(entries, Entry(c))
	}
	return build(entries)
}

// Merge combines two corpora with the same first-occurrence rule as Fold.
func (c Corpus) Merge(other Corpus) Corpus {
	contributions := make([]Contribution, 0, c.Len()+other.Len())
	for _, e := range c.entries {
		contributions = append(contributions, Contribution(e))
	}
	for _, e := range other.entries {
		contributions = append(contributions, Contribution(e))
	}
	return Fold(contributions)
}

func build(entries []Entry) Corpus {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Seq != entries[j].Seq {
			return entries[i].Seq < entries[j].Seq
		}
		return entries[i].ConversationID < entries[j].ConversationID
	})

	index := make(map[string]int, len(entries))
	for i, e := range entries {
		index[e.ConversationID] = i
	}
	return Corpus{entries: entries, index: index}
}

// Len reports the number of conversations.
func (c Corpus) Len() int {
	return len(c.entries)
}

// Entries returns the conversations in first-occurrence order.
func (c Corpus) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Thread looks up the thread of a conversation.
func (c Corpus) Thread(conversationID string) (model.Thread, bool) {
	i, ok := c.index[conversationID]
	if !ok {
		return nil, false
	}
	return c.entries[i].Thread, true
}

// MarshalJSON encodes the corpus as {conversationId: thread} in corpus order.
func (c Corpus) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range c.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.ConversationID)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		data, err := json.Marshal(e.Thread)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
