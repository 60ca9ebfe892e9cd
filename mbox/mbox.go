package mbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	mboxlib "github.com/emersion/go-mbox"

	"github.com/dhcgn/mail-to-pairs/mailparse"
	"github.com/dhcgn/mail-to-pairs/model"
	"github.com/dhcgn/mail-to-pairs/runner"
)

type Options struct {
	Path string
	// Limit caps the number of messages read; zero reads the whole file.
	Limit int
}

type Reader interface {
	Stream(ctx context.Context, out chan<- model.Envelope) error
}

func NewReader(opts Options, logger *slog.Logger) (Reader, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, fmt.Errorf("mbox path is empty")
	}
	if opts.Limit < 0 {
		return nil, fmt.Errorf("mbox limit must not be negative")
	}
	return &fileReader{path: path, limit: opts.Limit, logger: logger}, nil
}

type fileReader struct {
	path   string
	limit  int
	logger *slog.Logger
}

func (f *fileReader) Stream(ctx context.Context, out chan<- model.Envelope) error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	return f.streamFrom(ctx, file, out)
}

// streamFrom decodes every message of src. Messages that fail to decode are
// sent as error envelopes and the stream goes on; only a broken mbox
// framing ends it.
func (f *fileReader) streamFrom(ctx context.Context, src io.Reader, out chan<- model.Envelope) error {
	reader := mboxlib.NewReader(src)

	for idx := 0; f.limit == 0 || idx < f.limit; idx++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return f.emitError(ctx, out, fmt.Errorf("message %d: %w", idx, err))
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return f.emitError(ctx, out, fmt.Errorf("message %d read: %w", idx, err))
		}

		item, err := mailparse.Parse(raw)
		if err != nil {
			if err := f.emitError(ctx, out, fmt.Errorf("message %d parse: %w", idx, err)); err != nil {
				return err
			}
			continue
		}

		if err := f.emitEnvelope(ctx, out, model.Envelope{Item: item}); err != nil {
			return err
		}
	}

	if f.logger != nil {
		f.logger.Debug("mbox limit reached", "path", f.path, "limit", f.limit)
	}
	return nil
}

func (f *fileReader) emitError(ctx context.Context, out chan<- model.Envelope, err error) error {
	if f.logger != nil {
		f.logger.Warn("mbox stream error", "path", f.path, "err", err)
	}
	return f.emitEnvelope(ctx, out, model.Envelope{Err: err})
}

func (f *fileReader) emitEnvelope(ctx context.Context, out chan<- model.Envelope, env model.Envelope) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- env:
		return nil
	}
}

type Producer struct {
	reader Reader
	runner *runner.Runner
}

func NewProducer(opts Options, r *runner.Runner, logger *slog.Logger) (*Producer, error) {
	reader, err := NewReader(opts, logger)
	if err != nil {
		return nil, err
	}
	producer := &Producer{reader: reader, runner: r}
	r.AddStage("mbox", producer.run)
	return producer, nil
}

func (p *Producer) run(ctx context.Context) error {
	defer p.runner.CloseMailbox()
	return p.reader.Stream(ctx, p.runner.MailboxWriter())
}

// Read decodes every message of the mbox at path and calls fn with the item
// or the decode error. Returning an error from fn stops the iteration.
func Read(path string, fn func(item model.Item, err error) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	return read(file, fn)
}

func read(src io.Reader, fn func(item model.Item, err error) error) error {
	reader := mboxlib.NewReader(src)
	for {
		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			// try to continue
			if err := fn(model.Item{}, err); err != nil {
				return err
			}
			continue
		}

		if err := fn(mailparse.Parse(raw)); err != nil {
			return err
		}
	}
}

// CountMessages counts the total number of messages in an mbox file.
func CountMessages(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	return count(file)
}

func count(src io.Reader) (int, error) {
	reader := mboxlib.NewReader(src)

	n := 0
	for {
		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return 0, err
		}

		// Just consume the message without parsing
		_, _ = io.Copy(io.Discard, msgReader)
		n++
	}
}
