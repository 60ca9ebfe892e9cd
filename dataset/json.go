package dataset

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dhcgn/mail-to-pairs/corpus"
	"github.com/dhcgn/mail-to-pairs/model"
	"github.com/dhcgn/mail-to-pairs/pairs"
)

// JSONWriter writes {"prompt": [...], "completion": [...]}.
type JSONWriter struct {
	Path string
}

func (w *JSONWriter) Write(_ context.Context, _ corpus.Corpus, ps []model.TrainingPair) error {
	data, err := json.MarshalIndent(pairs.NewDataset(ps), "", "  ")
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	return writeFileAtomic(w.Path, append(data, '\n'))
}

// ChatMessage is one turn of the chat-style dataset.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatDataset keeps prompts and completions index aligned, each as a list of turns.
type ChatDataset struct {
	Prompt     [][]ChatMessage `json:"prompt"`
	Completion [][]ChatMessage `json:"completion"`
}

// NewChatDataset wraps every prompt as a user turn and every completion as an assistant turn.
func NewChatDataset(ps []model.TrainingPair) ChatDataset {
	ds := ChatDataset{
		Prompt:     make([][]ChatMessage, 0, len(ps)),
		Completion: make([][]ChatMessage, 0, len(ps)),
	}
	for _, p := range ps {
		ds.Prompt = append(ds.Prompt, []ChatMessage{{Role: "user", Content: p.Prompt}})
		ds.Completion = append(ds.Completion, []ChatMessage{{Role: "assistant", Content: p.Completion}})
	}
	return ds
}

// ChatWriter writes the chat-style dataset.
type ChatWriter struct {
	Path string
}

func (w *ChatWriter) Write(_ context.Context, _ corpus.Corpus, ps []model.TrainingPair) error {
	data, err := json.MarshalIndent(NewChatDataset(ps), "", "  ")
	if err != nil {
		return fmt.Errorf("encode chat dataset: %w", err)
	}
	return writeFileAtomic(w.Path, append(data, '\n'))
}

// ThreadsWriter writes the corpus as {conversationId: {"0": {...}, ...}}.
type ThreadsWriter struct {
	Path string
}

func (w *ThreadsWriter) Write(_ context.Context, c corpus.Corpus, _ []model.TrainingPair) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode threads: %w", err)
	}
	return writeFileAtomic(w.Path, append(data, '\n'))
}
