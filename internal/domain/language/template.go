package language

import (
	"fmt"
	"regexp"

	"github.com/corey/codeguard/internal/domain/rule"
)

// placeholderRE matches {{name}} slots. Whitespace inside the braces is
// tolerated so "{{ name }}" is still recognised.
var placeholderRE = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// KnownPlaceholders lists every placeholder a template may use.
var KnownPlaceholders = map[string]bool{
	rule.PlaceholderName:     true,
	rule.PlaceholderPattern:  true,
	rule.PlaceholderObject:   true,
	rule.PlaceholderMethod:   true,
	rule.PlaceholderOperator: true,
}

// Placeholders returns the distinct placeholder names in tmpl, in order of
// first appearance.
func Placeholders(tmpl string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range placeholderRE.FindAllStringSubmatch(tmpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// PlaceholderRE exposes the slot syntax to the interpolation engine.
func PlaceholderRE() *regexp.Regexp { return placeholderRE }

// CheckBalance verifies parentheses and brackets balance outside string
// literals and that every string literal is terminated.
func CheckBalance(q string) error {
	var stack []rune
	inString := false
	line := 1
	for i := 0; i < len(q); i++ {
		c := q[i]
		if c == '\n' {
			line++
		}
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case ';':
			for i < len(q) && q[i] != '\n' {
				i++
			}
			line++
		case '"':
			inString = true
		case '(', '[':
			stack = append(stack, rune(c))
		case ')', ']':
			want := '('
			if c == ']' {
				want = '['
			}
			if len(stack) == 0 || stack[len(stack)-1] != want {
				return fmt.Errorf("line %d: unexpected %q", line, c)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if inString {
		return fmt.Errorf("unterminated string literal")
	}
	if len(stack) > 0 {
		return fmt.Errorf("%d unclosed %q", len(stack), stack[len(stack)-1])
	}
	return nil
}
