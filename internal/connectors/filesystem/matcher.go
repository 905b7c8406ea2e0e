package filesystem

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar"

	"github.com/Polymer/polymer-build/internal/core/domain"
)

// Matcher decides which root-relative paths are declared sources.
// A path matches when at least one positive pattern matches it and no
// negated ("!"-prefixed) pattern does.
type Matcher struct {
	include []string
	exclude []string
}

// NewMatcher compiles glob patterns. Patterns are slash-separated and
// relative to the build root; "./" and "/" prefixes are ignored.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, raw := range patterns {
		p := strings.TrimSpace(raw)
		negate := strings.HasPrefix(p, "!")
		if negate {
			p = p[1:]
		}
		p = normalizePattern(p)
		if p == "" {
			continue
		}
		// doublestar reports malformed patterns only when matching.
		if _, err := doublestar.Match(p, ""); err != nil {
			return nil, fmt.Errorf("%w: bad source pattern %q: %v", domain.ErrInvalidInput, raw, err)
		}
		if negate {
			m.exclude = append(m.exclude, p)
		} else {
			m.include = append(m.include, p)
		}
	}
	return m, nil
}

// Match reports whether the slash-separated root-relative path is a source.
func (m *Matcher) Match(rel string) bool {
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		return false
	}
	if !matchAny(m.include, rel) {
		return false
	}
	return !matchAny(m.exclude, rel)
}

// Patterns returns the positive patterns followed by the negated ones.
func (m *Matcher) Patterns() []string {
	out := make([]string, 0, len(m.include)+len(m.exclude))
	out = append(out, m.include...)
	for _, p := range m.exclude {
		out = append(out, "!"+p)
	}
	return out
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func normalizePattern(p string) string {
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return strings.TrimPrefix(p, "/")
}
