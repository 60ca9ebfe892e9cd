// Package dataset writes training pairs and reconstructed threads to disk.
package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dhcgn/mail-to-pairs/config"
	"github.com/dhcgn/mail-to-pairs/corpus"
	"github.com/dhcgn/mail-to-pairs/model"
)

// Sink persists the outcome of one run.
type Sink interface {
	Write(ctx context.Context, c corpus.Corpus, ps []model.TrainingPair) error
}

// New returns the writer for format at path.
func New(format, path string) (Sink, error) {
	if path == "" {
		return nil, fmt.Errorf("dataset path is empty")
	}
	switch format {
	case config.FormatJSON:
		return &JSONWriter{Path: path}, nil
	case config.FormatChat:
		return &ChatWriter{Path: path}, nil
	case config.FormatJSONL:
		return &JSONLWriter{Path: path}, nil
	case config.FormatSQLite:
		return &SQLiteWriter{Path: path}, nil
	default:
		return nil, fmt.Errorf("unknown dataset format %q", format)
	}
}

// Multi writes to every sink in order and stops at the first failure.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

type multiSink []Sink

func (m multiSink) Write(ctx context.Context, c corpus.Corpus, ps []model.TrainingPair) error {
	for _, s := range m {
		if err := s.Write(ctx, c, ps); err != nil {
			return err
		}
	}
	return nil
}

// writeFileAtomic replaces path with data through a temporary file in the same directory.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
