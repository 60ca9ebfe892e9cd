package pairs

import (
	"github.com/dhcgn/mail-to-pairs/corpus"
	"github.com/dhcgn/mail-to-pairs/model"
)

// FromCorpus generates the pairs of every conversation, in corpus order.
func FromCorpus(c corpus.Corpus, id Identity) []model.TrainingPair {
	m := NewMatcher(id)
	var out []model.TrainingPair
	for _, entry := range c.Entries() {
		for _, p := range m.Generate(entry.Thread) {
			p.ConversationID = entry.ConversationID
			out = append(out, p)
		}
	}
	return out
}

// NewDataset collects pairs into the parallel prompt/completion lists.
func NewDataset(ps []model.TrainingPair) model.Dataset {
	ds := model.Dataset{
		Prompt:     make([]string, 0, len(ps)),
		Completion: make([]string, 0, len(ps)),
	}
	for _, p := range ps {
		ds.Append(p)
	}
	return ds
}
