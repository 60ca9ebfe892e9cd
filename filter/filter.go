package filter

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/dhcgn/mail-to-pairs/model"
)

// Options captures the filtering configuration.
type Options struct {
	IncludeHeader []string
	IncludeBody   []string
	ExcludeHeader []string
	ExcludeBody   []string
}

// Stats reports how often each pattern matched.
type Stats struct {
	IncludeHeaderPatterns []string
	IncludeBodyPatterns   []string
	ExcludeHeaderPatterns []string
	ExcludeBodyPatterns   []string
	IncludeHeaderHits     map[string]int
	IncludeBodyHits       map[string]int
	ExcludeHeaderHits     map[string]int
	ExcludeBodyHits       map[string]int
}

type patternSet struct {
	patterns []*regexp.Regexp
	hits     map[string]int
}

// Filter holds compiled regex patterns for filtering items.
type Filter struct {
	includeMode   bool
	excludeMode   bool
	includeHeader patternSet
	includeBody   patternSet
	excludeHeader patternSet
	excludeBody   patternSet

	mu sync.Mutex
}

// New creates a new Filter from the provided options.
func New(opts Options) (*Filter, error) {
	includeHeader, err := compilePatterns(opts.IncludeHeader)
	if err != nil {
		return nil, fmt.Errorf("compile include-header pattern: %w", err)
	}
	includeBody, err := compilePatterns(opts.IncludeBody)
	if err != nil {
		return nil, fmt.Errorf("compile include-body pattern: %w", err)
	}
	excludeHeader, err := compilePatterns(opts.ExcludeHeader)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-header pattern: %w", err)
	}
	excludeBody, err := compilePatterns(opts.ExcludeBody)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-body pattern: %w", err)
	}

	includeActive := len(includeHeader.patterns) > 0 || len(includeBody.patterns) > 0
	excludeActive := len(excludeHeader.patterns) > 0 || len(excludeBody.patterns) > 0
	if includeActive && excludeActive {
		return nil, fmt.Errorf("include and exclude filters are mutually exclusive")
	}

	return &Filter{
		includeMode:   includeActive,
		excludeMode:   excludeActive,
		includeHeader: includeHeader,
		includeBody:   includeBody,
		excludeHeader: excludeHeader,
		excludeBody:   excludeBody,
	}, nil
}

// Active reports whether any pattern is configured.
func (f *Filter) Active() bool {
	return f.includeMode || f.excludeMode
}

// Allows returns true if the item passes the filter criteria.
// Header patterns run against HeaderText(item.Header), body patterns against the raw body.
func (f *Filter) Allows(item model.Item) bool {
	if !f.Active() {
		return true
	}

	headerText := HeaderText(item.Header)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.includeMode {
		headerMatched := f.includeHeader.match(headerText)
		bodyMatched := f.includeBody.match(item.Body)
		return headerMatched || bodyMatched
	}

	headerMatched := f.excludeHeader.match(headerText)
	bodyMatched := f.excludeBody.match(item.Body)
	return !headerMatched && !bodyMatched
}

// GetStats returns a copy of the per-pattern hit counters.
func (f *Filter) GetStats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	return Stats{
		IncludeHeaderPatterns: f.includeHeader.sources(),
		IncludeBodyPatterns:   f.includeBody.sources(),
		ExcludeHeaderPatterns: f.excludeHeader.sources(),
		ExcludeBodyPatterns:   f.excludeBody.sources(),
		IncludeHeaderHits:     copyHits(f.includeHeader.hits),
		IncludeBodyHits:       copyHits(f.includeBody.hits),
		ExcludeHeaderHits:     copyHits(f.excludeHeader.hits),
		ExcludeBodyHits:       copyHits(f.excludeBody.hits),
	}
}

// HeaderText renders a root header as the "Name: value" block header patterns match against.
func HeaderText(h model.Header) string {
	var sb strings.Builder
	sb.WriteString("From: " + h.From + "\n")
	sb.WriteString("To: " + h.To + "\n")
	sb.WriteString("Subject: " + h.Subject + "\n")
	sb.WriteString("Date: " + h.Sent + "\n")
	return sb.String()
}

func compilePatterns(patterns []string) (patternSet, error) {
	set := patternSet{
		patterns: make([]*regexp.Regexp, 0, len(patterns)),
		hits:     make(map[string]int),
	}
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return patternSet{}, fmt.Errorf("compile %q: %w", pattern, err)
		}
		set.patterns = append(set.patterns, re)
	}
	return set, nil
}

// match counts every matching pattern, so hit statistics stay complete.
func (s patternSet) match(text string) bool {
	matched := false
	for _, re := range s.patterns {
		if re.MatchString(text) {
			s.hits[re.String()]++
			matched = true
		}
	}
	return matched
}

func (s patternSet) sources() []string {
	out := make([]string, 0, len(s.patterns))
	for _, re := range s.patterns {
		out = append(out, re.String())
	}
	return out
}

func copyHits(hits map[string]int) map[string]int {
	out := make(map[string]int, len(hits))
	for k, v := range hits {
		out[k] = v
	}
	return out
}
