package dataset

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dhcgn/mail-to-pairs/corpus"
	"github.com/dhcgn/mail-to-pairs/model"
)

// JSONLWriter appends one pair per line, so incremental runs extend the file.
type JSONLWriter struct {
	Path string
}

func (w *JSONLWriter) Write(ctx context.Context, _ corpus.Corpus, ps []model.TrainingPair) error {
	if err := os.MkdirAll(filepath.Dir(w.Path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.OpenFile(w.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", w.Path, err)
	}

	buf := bufio.NewWriterSize(file, 64*1024)
	enc := json.NewEncoder(buf)
	for _, p := range ps {
		if err := ctx.Err(); err != nil {
			_ = file.Close()
			return err
		}
		if err := enc.Encode(p); err != nil {
			_ = file.Close()
			return fmt.Errorf("encode pair: %w", err)
		}
	}

	if err := buf.Flush(); err != nil {
		_ = file.Close()
		return fmt.Errorf("flush %s: %w", w.Path, err)
	}
	return file.Close()
}

// ReadJSONL loads every pair previously written by JSONLWriter.
func ReadJSONL(path string) ([]model.TrainingPair, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var out []model.TrainingPair
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var p model.TrainingPair
		if err := json.Unmarshal(scanner.Bytes(), &p); err != nil {
			return nil, fmt.Errorf("parse %s line %d: %w", path, line, err)
		}
		out = append(out, p)
	}
	return out, scanner.Err()
}
