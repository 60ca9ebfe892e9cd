package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

const (
	FormatJSON   = "json"
	FormatChat   = "chat"
	FormatJSONL  = "jsonl"
	FormatSQLite = "sqlite"
)

// Config captures all command-line options required to build a dataset.
type Config struct {
	MboxPath           string
	IMAPHost           string
	IMAPPort           int
	IMAPUser           string
	IMAPPass           string
	UseTLS             bool
	InsecureSkipVerify bool
	IMAPFolder         string
	IdentityName       string
	IdentityAddress    string
	OutputPath         string
	Format             string
	ThreadsOut         string
	Limit              int
	Workers            int
	StateDir           string
	LogLevel           string
	LogDir             string
	Progress           bool
	IncludeHeader      []string
	IncludeBody        []string
	ExcludeHeader      []string
	ExcludeBody        []string
}

// FromIMAP reports whether messages are read from an IMAP folder instead of an mbox file.
func (c Config) FromIMAP() bool {
	return c.MboxPath == "" && c.IMAPHost != ""
}

// RegisterFlags attaches all CLI flags to the provided command.
func RegisterFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.String("mbox", "", "Path to the .mbox file holding sent mail (mutually exclusive with --imap-host)")
	flags.String("imap-host", "", "IMAP server hostname to read sent mail from")
	flags.Int("imap-port", 993, "IMAP server port")
	flags.String("imap-user", "", "IMAP username")
	flags.String("imap-pass", "", "IMAP password (falls back to IMAP_PASS env var)")
	flags.Bool("use-tls", true, "Use TLS for the IMAP connection")
	flags.Bool("insecure-skip-verify", false, "Skip TLS certificate verification (not recommended)")
	flags.String("imap-folder", "Sent", "IMAP folder holding the sent messages")
	flags.String("identity-name", "", "Display name whose replies become completions")
	flags.String("identity-address", "", "Address whose replies become completions")
	flags.StringP("output", "o", "output.json", "Dataset output path")
	flags.String("format", FormatJSON, "Dataset format: json, chat, jsonl, sqlite")
	flags.String("threads-out", "", "Optional path for the reconstructed threads as JSON")
	flags.Int("limit", 0, "Maximum number of messages to read (0 reads all)")
	flags.Int("workers", runtime.NumCPU(), "Number of parallel thread parsers")
	flags.String("state-dir", "", "Directory for incremental state; requires --format jsonl or sqlite")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Directory for log files in addition to stdout")
	flags.Bool("progress", false, "Show a progress bar instead of info logs")
	flags.StringArray("include-header", nil, "Regex allow-list applied to message headers (mutually exclusive with exclude flags)")
	flags.StringArray("include-body", nil, "Regex allow-list applied to message bodies (mutually exclusive with exclude flags)")
	flags.StringArray("exclude-header", nil, "Regex block-list applied to message headers (mutually exclusive with include flags)")
	flags.StringArray("exclude-body", nil, "Regex block-list applied to message bodies (mutually exclusive with include flags)")

	cmd.MarkFlagsMutuallyExclusive("mbox", "imap-host")
	cmd.MarkFlagsOneRequired("mbox", "imap-host")
	cmd.MarkFlagsOneRequired("identity-name", "identity-address")

	return nil
}

// LoadConfig converts the parsed Cobra flags into a Config struct with validation.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()

	var (
		cfg Config
		err error
	)

	strs := []struct {
		name string
		dst  *string
	}{
		{"mbox", &cfg.MboxPath},
		{"imap-host", &cfg.IMAPHost},
		{"imap-user", &cfg.IMAPUser},
		{"imap-pass", &cfg.IMAPPass},
		{"imap-folder", &cfg.IMAPFolder},
		{"identity-name", &cfg.IdentityName},
		{"identity-address", &cfg.IdentityAddress},
		{"output", &cfg.OutputPath},
		{"format", &cfg.Format},
		{"threads-out", &cfg.ThreadsOut},
		{"state-dir", &cfg.StateDir},
		{"log-level", &cfg.LogLevel},
		{"log-dir", &cfg.LogDir},
	}
	for _, s := range strs {
		if *s.dst, err = flags.GetString(s.name); err != nil {
			return Config{}, err
		}
	}

	if cfg.IMAPPort, err = flags.GetInt("imap-port"); err != nil {
		return Config{}, err
	}
	if cfg.Limit, err = flags.GetInt("limit"); err != nil {
		return Config{}, err
	}
	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return Config{}, err
	}
	if cfg.UseTLS, err = flags.GetBool("use-tls"); err != nil {
		return Config{}, err
	}
	if cfg.InsecureSkipVerify, err = flags.GetBool("insecure-skip-verify"); err != nil {
		return Config{}, err
	}
	if cfg.Progress, err = flags.GetBool("progress"); err != nil {
		return Config{}, err
	}
	if cfg.IncludeHeader, err = flags.GetStringArray("include-header"); err != nil {
		return Config{}, err
	}
	if cfg.IncludeBody, err = flags.GetStringArray("include-body"); err != nil {
		return Config{}, err
	}
	if cfg.ExcludeHeader, err = flags.GetStringArray("exclude-header"); err != nil {
		return Config{}, err
	}
	if cfg.ExcludeBody, err = flags.GetStringArray("exclude-body"); err != nil {
		return Config{}, err
	}

	return Normalize(cfg)
}

// Normalize applies defaults and environment fallbacks, then validates cfg.
func Normalize(cfg Config) (Config, error) {
	if cfg.IMAPHost != "" && cfg.IMAPPass == "" {
		cfg.IMAPPass = os.Getenv("IMAP_PASS")
	}
	if cfg.IMAPFolder == "" {
		cfg.IMAPFolder = "Sent"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.StateDir != "" {
		cfg.StateDir = filepath.Clean(cfg.StateDir)
	}

	cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
	if cfg.Format == "" {
		cfg.Format = FormatJSON
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	if cfg.MboxPath == "" && cfg.IMAPHost == "" {
		return fmt.Errorf("one of --mbox or --imap-host is required")
	}
	if cfg.MboxPath != "" && cfg.IMAPHost != "" {
		return fmt.Errorf("--mbox and --imap-host are mutually exclusive")
	}
	if cfg.IMAPHost != "" {
		if cfg.IMAPUser == "" {
			return fmt.Errorf("--imap-user is required")
		}
		if cfg.IMAPPass == "" {
			return fmt.Errorf("IMAP password must be provided via --imap-pass or IMAP_PASS env var")
		}
		if cfg.IMAPPort <= 0 || cfg.IMAPPort > 65535 {
			return fmt.Errorf("--imap-port must be between 1 and 65535")
		}
	}
	if strings.TrimSpace(cfg.IdentityName) == "" && strings.TrimSpace(cfg.IdentityAddress) == "" {
		return fmt.Errorf("at least one of --identity-name or --identity-address is required")
	}
	if cfg.OutputPath == "" {
		return fmt.Errorf("--output is required")
	}
	if cfg.Limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	switch cfg.Format {
	case FormatJSON, FormatChat, FormatJSONL, FormatSQLite:
	default:
		return fmt.Errorf("invalid --format: %s", cfg.Format)
	}
	if cfg.StateDir != "" && cfg.Format != FormatJSONL && cfg.Format != FormatSQLite {
		return fmt.Errorf("--state-dir requires --format jsonl or sqlite, got %s", cfg.Format)
	}

	includeActive := len(cfg.IncludeHeader) > 0 || len(cfg.IncludeBody) > 0
	excludeActive := len(cfg.ExcludeHeader) > 0 || len(cfg.ExcludeBody) > 0
	if includeActive && excludeActive {
		return fmt.Errorf("include and exclude flags are mutually exclusive")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}
