// Package ahocorasick provides multi-pattern string matching using an Aho-Corasick automaton.
// It wraps the petar-dambovaliev/aho-corasick library for O(n + m + z) matching.
package ahocorasick

import (
	aho "github.com/petar-dambovaliev/aho-corasick"
)

// Matcher reports which of a fixed set of literals occur in content.
// Matching is overlapping, so a literal that is a prefix or suffix of
// another is still found. Safe for concurrent use after construction.
type Matcher struct {
	automaton aho.AhoCorasick
	literals  []string
}

// NewMatcher builds a matcher. Empty and duplicate literals are dropped.
func NewMatcher(literals []string) *Matcher {
	seen := make(map[string]bool, len(literals))
	var lits []string
	for _, l := range literals {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		lits = append(lits, l)
	}
	m := &Matcher{literals: lits}
	if len(lits) > 0 {
		builder := aho.NewAhoCorasickBuilder(aho.Opts{
			DFA: true,
		})
		m.automaton = builder.Build(lits)
	}
	return m
}

// Present returns the set of literals found in content. Returns nil if
// none match.
func (m *Matcher) Present(content []byte) map[string]bool {
	if len(m.literals) == 0 {
		return nil
	}
	var found map[string]bool
	iter := m.automaton.IterOverlappingByte(content)
	for next := iter.Next(); next != nil; next = iter.Next() {
		if found == nil {
			found = make(map[string]bool)
		}
		found[m.literals[next.Pattern()]] = true
		if len(found) == len(m.literals) {
			break
		}
	}
	return found
}

// Len returns the number of distinct literals.
func (m *Matcher) Len() int {
	return len(m.literals)
}
