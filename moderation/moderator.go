// Package moderation masks censored words in chat content before the
// relay constructs the immutable message.
package moderation

import (
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator runs an Aho-Corasick scan over lowercased content and
// replaces matched spans with the replacement character. Word casing in
// the configured list is irrelevant.
type Moderator struct {
	matcher     *goahocorasick.Machine
	replacement rune
}

// NewModerator builds the automaton. Returns nil when no words are
// configured, which callers treat as moderation disabled.
func NewModerator(words []string, replacement rune) (*Moderator, error) {
	patterns := make([][]rune, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(strings.ToLower(w))
		if w == "" {
			continue
		}
		patterns = append(patterns, []rune(w))
	}
	if len(patterns) == 0 {
		return nil, nil
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: m, replacement: replacement}, nil
}

// Censor replaces every censored span with the replacement character.
// Unmatched content comes back untouched.
func (m *Moderator) Censor(content string) string {
	runes := []rune(content)
	lowered := make([]rune, len(runes))
	for i, r := range runes {
		lowered[i] = unicode.ToLower(r)
	}

	spans := m.matcher.MultiPatternSearch(lowered, false)
	if len(spans) == 0 {
		return content
	}

	for _, span := range spans {
		for i := span.Pos; i < span.Pos+len(span.Word) && i < len(runes); i++ {
			runes[i] = m.replacement
		}
	}
	return string(runes)
}
