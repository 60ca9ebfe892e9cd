package cmd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dhcgn/mail-to-pairs/filter"
	"github.com/dhcgn/mail-to-pairs/mbox"
	"github.com/dhcgn/mail-to-pairs/model"
	"github.com/dhcgn/mail-to-pairs/pairs"
	"github.com/dhcgn/mail-to-pairs/stats"
	"github.com/dhcgn/mail-to-pairs/thread"
)

var (
	reportDir       string
	topN            int
	statsIdentity   pairs.Identity
	statsFilterOpts filter.Options
)

// report categories, also used as CSV file names
const (
	reportFormat        = "Format"
	reportDepth         = "Depth"
	reportSegmentErrors = "Segment-Errors"
	reportFrom          = "From"
	reportQuotedFrom    = "Quoted-From"
	reportSubject       = "Subject"
)

var reportCategories = []string{reportFormat, reportDepth, reportSegmentErrors, reportFrom, reportQuotedFrom, reportSubject}

type threadStats struct {
	counter  map[string]map[string]int
	messages int
	skipped  int
	failed   int
	pairs    int
	matcher  *pairs.Matcher
}

func newThreadStats(id pairs.Identity) *threadStats {
	s := &threadStats{
		counter: make(map[string]map[string]int),
		matcher: pairs.NewMatcher(id),
	}
	for _, c := range reportCategories {
		s.counter[c] = make(map[string]int)
	}
	return s
}

func (s *threadStats) add(item model.Item) {
	s.messages++

	res := thread.Parse(item.Header, item.Body)
	s.counter[reportFormat][res.Match.Format.String()]++
	s.counter[reportDepth][strconv.Itoa(len(res.Thread))]++
	s.counter[reportFrom][res.Thread[0].From]++
	s.counter[reportSubject][res.Thread[0].Subject]++
	for _, msg := range res.Thread[1:] {
		s.counter[reportQuotedFrom][msg.From]++
	}
	for _, err := range res.Errs {
		s.counter[reportSegmentErrors][segmentErrorKind(err)]++
	}
	s.pairs += len(s.matcher.Generate(res.Thread))
}

func segmentErrorKind(err error) string {
	kinds := []error{
		thread.ErrDelimiterMissing,
		thread.ErrLabelMissing,
		thread.ErrNoBoundary,
		thread.ErrNoComma,
		thread.ErrShortAttribution,
	}
	prefix := "segment"
	var segErr *thread.SegmentError
	if errors.As(err, &segErr) {
		prefix = segErr.Format.String()
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return prefix + ": " + kind.Error()
		}
	}
	return prefix + ": other"
}

var threadStatsCmd = &cobra.Command{
	Use:   "thread-stats [mbox file]",
	Short: "Analyse how the reply chains of an mbox file are quoted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mboxPath := args[0]

		fmt.Println("Analyzing mbox file:", mboxPath)

		f, err := filter.New(statsFilterOpts)
		if err != nil {
			return fmt.Errorf("create filter: %w", err)
		}

		s := newThreadStats(statsIdentity)
		printStats := func() {
			// ANSI escape code to clear screen and move cursor to top-left
			fmt.Print("\033[H\033[2J")
			total := s.messages + s.skipped
			var filterPercent float64
			if total > 0 {
				filterPercent = float64(s.skipped) / float64(total) * 100
			}
			fmt.Printf("Processed %d messages (skipped %d by filters, %.2f%%, %d unreadable)...\n\n", s.messages, s.skipped, filterPercent, s.failed)
			if statsIdentity.Name != "" || statsIdentity.Address != "" {
				fmt.Printf("Training pairs for %s: %d\n\n", identityLabel(statsIdentity), s.pairs)
			}

			if printAllFilterHits(f.GetStats()) {
				fmt.Println("---")
				fmt.Println()
			}

			for _, category := range reportCategories {
				fmt.Printf("Top %d %s:\n", topN, category)
				stats.PrettyPrintTop(s.counter[category], topN)
				fmt.Println()
			}
		}

		err = mbox.Read(mboxPath, func(item model.Item, readErr error) error {
			if readErr != nil {
				s.failed++
				return nil
			}
			if !f.Allows(item) {
				s.skipped++
				return nil
			}

			s.add(item)
			if s.messages%250 == 0 {
				printStats()
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("error reading mbox file: %w", err)
		}

		// Final print
		printStats()

		if err := saveCSVReports(s.counter, reportCategories, reportDir, 1000); err != nil {
			return fmt.Errorf("error saving CSV reports: %w", err)
		}

		fmt.Printf("\nReports saved to directory: %s\n", reportDir)

		return nil
	},
}

func init() {
	flags := threadStatsCmd.Flags()
	flags.StringVarP(&reportDir, "output", "o", ".", "Output directory for CSV reports")
	flags.IntVarP(&topN, "top", "t", 10, "Number of top items to display in statistics")
	flags.StringVar(&statsIdentity.Name, "identity-name", "", "Display name used to count training pairs")
	flags.StringVar(&statsIdentity.Address, "identity-address", "", "Address used to count training pairs")
	flags.StringArrayVar(&statsFilterOpts.IncludeHeader, "include-header", nil, "Regex allow-list applied to message headers (mutually exclusive with exclude flags)")
	flags.StringArrayVar(&statsFilterOpts.IncludeBody, "include-body", nil, "Regex allow-list applied to message bodies (mutually exclusive with exclude flags)")
	flags.StringArrayVar(&statsFilterOpts.ExcludeHeader, "exclude-header", nil, "Regex block-list applied to message headers (mutually exclusive with include flags)")
	flags.StringArrayVar(&statsFilterOpts.ExcludeBody, "exclude-body", nil, "Regex block-list applied to message bodies (mutually exclusive with include flags)")
	rootCmd.AddCommand(threadStatsCmd)
}

func identityLabel(id pairs.Identity) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{id.Name, id.Address} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " / ")
}

func saveCSVReports(counter map[string]map[string]int, categories []string, dir string, limit int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, category := range categories {
		filename := fmt.Sprintf("report_%s.csv", normalizeHeaderName(category))
		if err := writeCSVReport(filepath.Join(dir, filename), stats.Top(counter[category], limit)); err != nil {
			return err
		}
	}

	return nil
}

func writeCSVReport(path string, rows []stats.Pair) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"Value", "Count"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{row.Key, strconv.Itoa(row.Value)}); err != nil {
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}

func normalizeHeaderName(header string) string {
	// Convert to lowercase and replace invalid filename chars
	name := strings.ToLower(header)
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, " ", "_")
	return name
}

func printAllFilterHits(fs filter.Stats) bool {
	sections := []struct {
		title    string
		patterns []string
		hits     map[string]int
	}{
		{"Include Header Filters:", fs.IncludeHeaderPatterns, fs.IncludeHeaderHits},
		{"Include Body Filters:", fs.IncludeBodyPatterns, fs.IncludeBodyHits},
		{"Exclude Header Filters:", fs.ExcludeHeaderPatterns, fs.ExcludeHeaderHits},
		{"Exclude Body Filters:", fs.ExcludeBodyPatterns, fs.ExcludeBodyHits},
	}

	printed := false
	for _, section := range sections {
		if len(section.patterns) == 0 {
			continue
		}
		printed = true
		fmt.Println(section.title)
		printFilterHits(section.patterns, section.hits)
		fmt.Println()
	}
	return printed
}

func printFilterHits(patterns []string, hits map[string]int) {
	type pair struct {
		Pattern string
		Count   int
	}
	rows := make([]pair, 0, len(patterns))
	for _, pattern := range patterns {
		rows = append(rows, pair{pattern, hits[pattern]})
	}

	sort.Slice(rows, func(i, j int) bool {
		// Sort by hit count descending, then by pattern
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Pattern < rows[j].Pattern
	})

	for _, p := range rows {
		if p.Count > 0 {
			fmt.Printf("  ✓ %s: %d hits\n", p.Pattern, p.Count)
		} else {
			fmt.Printf("  ✗ %s: 0 hits\n", p.Pattern)
		}
	}
}
