// Package pairs turns reconstructed threads into supervised training pairs.
package pairs

import (
	"regexp"

	"github.com/dhcgn/mail-to-pairs/model"
)

// Identity is the configured author whose replies become completions.
type Identity struct {
	Name    string
	Address string
}

// Matcher holds the compiled whole-word patterns of an identity.
type Matcher struct {
	patterns []*regexp.Regexp
}

// NewMatcher compiles the identity. Blank name or address are ignored.
func NewMatcher(id Identity) *Matcher {
	m := &Matcher{}
	for _, phrase := range []string{id.Name, id.Address} {
		if re := phrasePattern(phrase); re != nil {
			m.patterns = append(m.patterns, re)
		}
	}
	return m
}

// Matches reports whether from names the identity as a whole word.
func (m *Matcher) Matches(from string) bool {
	for _, re := range m.patterns {
		if re.MatchString(from) {
			return true
		}
	}
	return false
}

// Generate walks adjacent positions of t and emits a pair whenever the newer
// message was sent by the identity. The older message becomes the prompt.
func (m *Matcher) Generate(t model.Thread) []model.TrainingPair {
	var out []model.TrainingPair
	for i := 0; i+1 < len(t); i++ {
		newer, older := t[i], t[i+1]
		if !m.Matches(newer.From) {
			continue
		}
		out = append(out, model.TrainingPair{
			Position:   i,
			Prompt:     Prompt(older),
			Completion: newer.Body,
		})
	}
	return out
}

// Generate is the one-shot form of Matcher.Generate.
func Generate(t model.Thread, identityName, identityAddress string) []model.TrainingPair {
	return NewMatcher(Identity{Name: identityName, Address: identityAddress}).Generate(t)
}

// IsPhraseIn reports whether phrase occurs in text as a whole word, ignoring case.
func IsPhraseIn(phrase, text string) bool {
	re := phrasePattern(phrase)
	return re != nil && re.MatchString(text)
}

func phrasePattern(phrase string) *regexp.Regexp {
	if phrase == "" {
		return nil
	}
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
}

// Prompt serializes the five fields of an incoming message on one line.
func Prompt(m model.Message) string {
	return "From: '" + m.From +
		"' To: '" + m.To +
		"' Sent Date: '" + m.Sent +
		"' With subject: '" + m.Subject +
		"' With content: '" + m.Body + "'"
}
