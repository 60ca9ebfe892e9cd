package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dhcgn/mail-to-pairs/config"
	"github.com/dhcgn/mail-to-pairs/dataset"
	"github.com/dhcgn/mail-to-pairs/imap"
	"github.com/dhcgn/mail-to-pairs/mbox"
	"github.com/dhcgn/mail-to-pairs/progress"
	"github.com/dhcgn/mail-to-pairs/runner"
	"github.com/dhcgn/mail-to-pairs/stats"
)

var rootCmd = &cobra.Command{
	Use:   "mail-to-pairs",
	Short: "Turn sent-mail reply chains into prompt/completion training pairs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cmd)
		if err != nil {
			return err
		}

		logger, cleanup, err := setupLogger(cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = cleanup()
		}()

		slog.SetDefault(logger)
		logger.Info("starting mail-to-pairs", "mbox", cfg.MboxPath, "imapHost", cfg.IMAPHost, "output", cfg.OutputPath, "format", cfg.Format)

		return run(cmd.Context(), cfg, logger)
	},
}

func init() {
	if err := config.RegisterFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register CLI flags: %v\n", err)
		os.Exit(1)
	}
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	sink, err := dataset.New(cfg.Format, cfg.OutputPath)
	if err != nil {
		return fmt.Errorf("dataset.New: %w", err)
	}
	if cfg.ThreadsOut != "" {
		sink = dataset.Multi(sink, &dataset.ThreadsWriter{Path: cfg.ThreadsOut})
	}

	r, err := runner.New(cfg, sink, logger)
	if err != nil {
		return fmt.Errorf("runner.New: %w", err)
	}
	stats.NewReporter(r, logger)

	if cfg.Progress {
		total := 0
		if !cfg.FromIMAP() {
			if total, err = mbox.CountMessages(cfg.MboxPath); err != nil {
				return fmt.Errorf("count messages: %w", err)
			}
			if cfg.Limit > 0 && total > cfg.Limit {
				total = cfg.Limit
			}
		}
		progress.NewProgressReporter(r, progress.New(total, true), logger)
	}

	if cfg.FromIMAP() {
		fetcherOpts := imap.Options{
			Host:               cfg.IMAPHost,
			Port:               cfg.IMAPPort,
			Username:           cfg.IMAPUser,
			Password:           cfg.IMAPPass,
			UseTLS:             cfg.UseTLS,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			Folder:             cfg.IMAPFolder,
			Limit:              cfg.Limit,
		}
		if _, err := imap.NewFetcher(fetcherOpts, r, logger); err != nil {
			return fmt.Errorf("imap.NewFetcher: %w", err)
		}
	} else {
		readerOpts := mbox.Options{Path: cfg.MboxPath, Limit: cfg.Limit}
		if _, err := mbox.NewProducer(readerOpts, r, logger); err != nil {
			return fmt.Errorf("mbox.NewProducer: %w", err)
		}
	}

	stopOnCancel := context.AfterFunc(ctx, r.Stop)
	defer stopOnCancel()

	return r.Start()
}

func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	// keep the progress bar readable
	if cfg.Progress && level.Level() < slog.LevelWarn {
		level.Set(slog.LevelWarn)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("mail-to-pairs-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler), cleanup, nil
}
