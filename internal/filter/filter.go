// Package filter implements the denylist screening applied to user prompts
// before they are forwarded to a paid provider.
package filter

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Filter tests text against a fixed set of forbidden substrings. Matching is
// literal and case-sensitive; no folding or Unicode normalization is applied.
// A Filter is immutable and safe for concurrent use.
type Filter struct {
	words []string
}

// New builds a Filter from the given entries. Empty entries are dropped since
// they would match every text.
func New(words ...string) *Filter {
	f := &Filter{words: make([]string, 0, len(words))}
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		f.words = append(f.words, w)
	}
	return f
}

// Allowed reports whether text contains none of the denylist entries.
func (f *Filter) Allowed(text string) bool {
	_, hit := f.Match(text)
	return !hit
}

// Match returns the first denylist entry found in text.
func (f *Filter) Match(text string) (string, bool) {
	if f == nil {
		return "", false
	}
	for _, w := range f.words {
		if strings.Contains(text, w) {
			return w, true
		}
	}
	return "", false
}

// Len returns the number of active entries.
func (f *Filter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.words)
}

// wordsFile is the on-disk denylist layout.
type wordsFile struct {
	SensitiveWords []string `yaml:"sensitive_words"`
}

// LoadFile reads a YAML document with a top-level "sensitive_words" list.
func LoadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read denylist file: %w", err)
	}

	var wf wordsFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse denylist file %s: %w", path, err)
	}
	return wf.SensitiveWords, nil
}
