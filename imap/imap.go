package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/dhcgn/mail-to-pairs/mailparse"
	"github.com/dhcgn/mail-to-pairs/model"
	"github.com/dhcgn/mail-to-pairs/runner"
)

const (
	DefaultFolder = "Sent"
	fetchBatch    = 100
)

type Options struct {
	Host               string
	Port               int
	Username           string
	Password           string
	UseTLS             bool
	InsecureSkipVerify bool
	Folder             string
	// Limit keeps only the newest messages of the folder; zero reads all.
	Limit int
}

// Fetcher reads the sent folder of an IMAP account and feeds the runner.
type Fetcher struct {
	opts   Options
	runner *runner.Runner
	logger *slog.Logger
}

func NewFetcher(opts Options, r *runner.Runner, logger *slog.Logger) (*Fetcher, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("imap host is empty")
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("imap port must be positive")
	}
	if opts.Limit < 0 {
		return nil, fmt.Errorf("imap limit must not be negative")
	}
	fetcher := &Fetcher{
		opts:   opts,
		runner: r,
		logger: logger,
	}
	r.AddStage("imap", fetcher.run)
	return fetcher, nil
}

func (f *Fetcher) run(ctx context.Context) error {
	defer f.runner.CloseMailbox()

	client, cleanup, err := f.dial(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	return f.Stream(ctx, client, f.runner.MailboxWriter())
}

// Stream selects the folder and sends every fetched message to out.
func (f *Fetcher) Stream(ctx context.Context, client *imapclient.Client, out chan<- model.Envelope) error {
	folder := f.folder()
	selected, err := client.Select(folder, &imapv2.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return fmt.Errorf("select %s: %w", folder, err)
	}

	searchData, err := client.UIDSearch(&imapv2.SearchCriteria{}, nil).Wait()
	if err != nil {
		return fmt.Errorf("search %s: %w", folder, err)
	}

	uids := newest(searchData.AllUIDs(), f.opts.Limit)
	if f.logger != nil {
		f.logger.Info("imap folder selected", "folder", folder, "messages", selected.NumMessages, "fetching", len(uids))
	}

	for _, batch := range batches(uids, fetchBatch) {
		if err := f.fetch(ctx, client, batch, out); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fetcher) fetch(ctx context.Context, client *imapclient.Client, uids []imapv2.UID, out chan<- model.Envelope) error {
	bodySection := &imapv2.FetchItemBodySection{Peek: true}
	fetchOpts := &imapv2.FetchOptions{
		UID:         true,
		RFC822Size:  true,
		BodySection: []*imapv2.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imapv2.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		env := model.Envelope{}
		buf, err := msg.Collect()
		switch {
		case err != nil:
			env.Err = fmt.Errorf("collect message: %w", err)
		default:
			env = envelopeFromBuffer(buf, bodySection)
		}

		if env.Err != nil && f.logger != nil {
			f.logger.Warn("imap message skipped", "err", env.Err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- env:
		}
	}

	if err := fetchCmd.Close(); err != nil {
		return fmt.Errorf("fetch messages: %w", err)
	}
	return nil
}

func envelopeFromBuffer(buf *imapclient.FetchMessageBuffer, section *imapv2.FetchItemBodySection) model.Envelope {
	raw := buf.FindBodySection(section)
	if raw == nil {
		return model.Envelope{Err: fmt.Errorf("message uid %d: body section missing", buf.UID)}
	}
	item, err := mailparse.Parse(raw)
	if err != nil {
		return model.Envelope{Err: fmt.Errorf("message uid %d: %w", buf.UID, err)}
	}
	return model.Envelope{Item: item}
}

// newest keeps the limit highest uids, in ascending order.
func newest(uids []imapv2.UID, limit int) []imapv2.UID {
	if limit > 0 && len(uids) > limit {
		return uids[len(uids)-limit:]
	}
	return uids
}

func batches(uids []imapv2.UID, size int) [][]imapv2.UID {
	var out [][]imapv2.UID
	for len(uids) > 0 {
		n := min(size, len(uids))
		out = append(out, uids[:n])
		uids = uids[n:]
	}
	return out
}

func (f *Fetcher) dial(ctx context.Context) (*imapclient.Client, func(), error) {
	address := net.JoinHostPort(f.opts.Host, strconv.Itoa(f.opts.Port))
	options := &imapclient.Options{}

	if f.opts.UseTLS {
		options.TLSConfig = &tls.Config{
			ServerName:         f.opts.Host,
			InsecureSkipVerify: f.opts.InsecureSkipVerify,
		}
	}

	var (
		client *imapclient.Client
		err    error
	)

	if f.opts.UseTLS {
		client, err = imapclient.DialTLS(address, options)
	} else {
		client, err = imapclient.DialInsecure(address, options)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dial imap %s: %w", address, err)
	}

	if err := client.Login(f.opts.Username, f.opts.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("imap login failed: %w", err)
	}

	if f.logger != nil {
		f.logger.Debug("imap connection established", "address", address, "user", f.opts.Username, "folder", f.folder(), "tls", f.opts.UseTLS)
	}

	stopClose := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})

	cleanup := func() {
		stopClose()
		if ctx.Err() == nil {
			if err := client.Logout().Wait(); err != nil {
				if f.logger != nil {
					f.logger.Warn("imap logout failed", "err", err)
				}
			}
		}
		if err := client.Close(); err != nil && f.logger != nil {
			f.logger.Debug("imap connection closed", "err", err)
		}
	}

	return client, cleanup, nil
}

func (f *Fetcher) folder() string {
	if f.opts.Folder == "" {
		return DefaultFolder
	}
	return f.opts.Folder
}
