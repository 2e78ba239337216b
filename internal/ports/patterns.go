package ports

// LiteralMatcher finds which of a fixed set of literals occur in content
// using multi-pattern matching (Aho-Corasick). A single pass over the content
// finds every literal simultaneously, regardless of how many there are.
//
// The engine builds one matcher per analysis from the literals its queries
// require and skips queries whose literals are absent.
type LiteralMatcher interface {
	// Present returns the set of literals found in content. Returns nil if
	// none occur. Overlapping occurrences are reported.
	Present(content []byte) map[string]bool

	// Len returns the number of distinct literals in the automaton.
	Len() int
}
