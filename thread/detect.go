package thread

import "regexp"

// Format identifies the quoting convention found in a body.
type Format int

const (
	FormatNone Format = iota
	// FormatInline is an "On <date>, <sender> wrote:" attribution.
	FormatInline
	// FormatInlineAddress is an inline attribution carrying a year and an <address>.
	FormatInlineAddress
	// FormatUnderscore is a row of underscores followed by a From: header block.
	FormatUnderscore
)

func (f Format) String() string {
	switch f {
	case FormatInline:
		return "inline"
	case FormatInlineAddress:
		return "inline-address"
	case FormatUnderscore:
		return "underscore"
	default:
		return "none"
	}
}

// Inline reports whether the format routes to the inline-quote splitter.
func (f Format) Inline() bool {
	return f == FormatInline || f == FormatInlineAddress
}

// Match is the earliest quote boundary in a body. Offset is -1 for FormatNone.
type Match struct {
	Format Format
	Offset int
}

// Found reports whether a quote boundary was detected.
func (m Match) Found() bool {
	return m.Format != FormatNone
}

type family struct {
	format  Format
	pattern *regexp.Regexp
}

// Ordered by priority; ties on offset go to the earlier entry.
var families = []family{
	{FormatInline, regexp.MustCompile(`(?i)\bOn [^\r\n]*?, [^\r\n]*? wrote:`)},
	{FormatInlineAddress, regexp.MustCompile(`(?i)\bOn [^\r\n]*?, [^\r\n]*?\d{4}[^\r\n]*?\s*<\s*[^<>\s]+@[^<>\s]+\s*>\s*wrote:`)},
	{FormatUnderscore, regexp.MustCompile(`(?i)_{5,}\s*From:`)},
}

// Detect finds the earliest quote boundary among the recognized families.
func Detect(body string) Match {
	best := Match{Format: FormatNone, Offset: -1}
	for _, fam := range families {
		loc := fam.pattern.FindStringIndex(body)
		if loc == nil {
			continue
		}
		if best.Offset < 0 || loc[0] < best.Offset {
			best = Match{Format: fam.format, Offset: loc[0]}
		}
	}
	return best
}
