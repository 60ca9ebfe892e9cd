package model

// TrainingPair is one supervised example: a serialized incoming message and the reply body.
type TrainingPair struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Position       int    `json:"position"`
	Prompt         string `json:"prompt"`
	Completion     string `json:"completion"`
}

// Dataset is the corpus-level output: two index-aligned lists.
type Dataset struct {
	Prompt     []string `json:"prompt"`
	Completion []string `json:"completion"`
}

// Append adds a pair, keeping both lists aligned.
func (d *Dataset) Append(p TrainingPair) {
	d.Prompt = append(d.Prompt, p.Prompt)
	d.Completion = append(d.Completion, p.Completion)
}

// Len reports the number of pairs in the dataset.
func (d Dataset) Len() int {
	return len(d.Prompt)
}
