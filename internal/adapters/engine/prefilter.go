package engine

import (
	"regexp"
	"strings"
)

// eqPredicate matches an #eq? predicate comparing a capture to a string
// literal. #not-eq? and capture-to-capture comparisons do not match.
var eqPredicate = regexp.MustCompile(`\(#eq\?\s+@[\w.-]+\s+"((?:[^"\\]|\\.)*)"\s*\)`)

var unescapeLiteral = strings.NewReplacer(`\\`, `\`, `\"`, `"`, `\n`, "\n", `\r`, "\r", `\t`, "\t")

// requiredLiterals splits a query into its top-level patterns and returns,
// per pattern, the literals its #eq? predicates demand. ok is false when
// some pattern demands nothing, in which case the query may match any
// source. Patterns using alternation or quantifiers count as demanding
// nothing: their predicates may refer to captures that never bind.
func requiredLiterals(query string) (clauses [][]string, ok bool) {
	for _, clause := range splitClauses(query) {
		if !simpleClause(clause) {
			return nil, false
		}
		var lits []string
		for _, m := range eqPredicate.FindAllStringSubmatch(clause, -1) {
			if lit := unescapeLiteral.Replace(m[1]); lit != "" {
				lits = append(lits, lit)
			}
		}
		if len(lits) == 0 {
			return nil, false
		}
		clauses = append(clauses, lits)
	}
	return clauses, len(clauses) > 0
}

// splitClauses returns the top-level patterns of a query. Trailing
// captures stay with the pattern they follow; comments are dropped.
func splitClauses(query string) []string {
	var (
		out   []string
		cur   strings.Builder
		depth int
		inStr bool
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	for i := 0; i < len(query); i++ {
		c := query[i]
		if inStr {
			cur.WriteByte(c)
			if c == '\\' && i+1 < len(query) {
				i++
				cur.WriteByte(query[i])
			} else if c == '"' {
				inStr = false
			}
			continue
		}
		switch c {
		case ';':
			for i+1 < len(query) && query[i+1] != '\n' {
				i++
			}
			continue
		case '"':
			inStr = true
		case '(', '[':
			if depth == 0 {
				flush()
			}
			depth++
		case ')', ']':
			depth--
		}
		cur.WriteByte(c)
	}
	flush()
	return out
}

// simpleClause reports whether a pattern has no alternation and no
// quantifier outside string literals.
func simpleClause(clause string) bool {
	inStr := false
	for i := 0; i < len(clause); i++ {
		c := clause[i]
		if inStr {
			if c == '\\' {
				i++
			} else if c == '"' {
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '[', '*', '+':
			return false
		case '?':
			if !endsPredicateName(clause, i) {
				return false
			}
		}
	}
	return true
}

// endsPredicateName reports whether the '?' at i closes a #predicate name.
func endsPredicateName(clause string, i int) bool {
	j := i - 1
	for j >= 0 && (clause[j] == '-' || clause[j] == '_' || (clause[j] >= 'a' && clause[j] <= 'z')) {
		j--
	}
	return j >= 0 && j < i-1 && clause[j] == '#'
}

// couldMatch reports whether some clause has every literal it needs.
func couldMatch(clauses [][]string, present map[string]bool) bool {
	for _, lits := range clauses {
		all := true
		for _, l := range lits {
			if !present[l] {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}
