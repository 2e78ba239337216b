// Package querygen turns a language-independent rule and a language adapter
// into a concrete tree-sitter query string. Generation is a pure function
// of (rule, adapter); the Generator adds a revision-checked cache on top.
package querygen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/corey/codeguard/internal/domain/language"
	"github.com/corey/codeguard/internal/domain/rule"
)

// PlaceholderError reports template slots that could not be filled.
// A query is never emitted with a raw {{...}} left in it.
type PlaceholderError struct {
	TemplateKey string
	Missing     []string
	Unknown     []string
}

func (e *PlaceholderError) Error() string {
	var parts []string
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown placeholders "+braces(e.Unknown))
	}
	if len(e.Missing) > 0 {
		parts = append(parts, "unfilled placeholders "+braces(e.Missing))
	}
	key := e.TemplateKey
	if key == "" {
		key = "query"
	}
	return fmt.Sprintf("template %s: %s", key, strings.Join(parts, ", "))
}

func braces(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = "{{" + n + "}}"
	}
	return strings.Join(out, " ")
}

// escapeString makes a value safe inside a double-quoted query string.
var escapeString = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

// Interpolate fills tmpl from b. When tmpl uses {{name}} it is instantiated
// once per entry of b.Names and the copies are joined with newlines.
func Interpolate(key, tmpl string, b rule.Bindings) (string, error) {
	used := language.Placeholders(tmpl)
	var unknown, missing []string
	usesName := false
	for _, ph := range used {
		switch {
		case !language.KnownPlaceholders[ph]:
			unknown = append(unknown, ph)
		case ph == rule.PlaceholderName:
			usesName = true
			if len(b.Names) == 0 {
				missing = append(missing, ph)
			}
		case b.Values[ph] == "":
			missing = append(missing, ph)
		}
	}
	if len(unknown) > 0 || len(missing) > 0 {
		sort.Strings(unknown)
		sort.Strings(missing)
		return "", &PlaceholderError{TemplateKey: key, Missing: missing, Unknown: unknown}
	}

	fill := func(name string) string {
		return language.PlaceholderRE().ReplaceAllStringFunc(tmpl, func(m string) string {
			ph := language.PlaceholderRE().FindStringSubmatch(m)[1]
			if ph == rule.PlaceholderName {
				return escapeString.Replace(name)
			}
			return escapeString.Replace(b.Values[ph])
		})
	}

	if !usesName {
		return strings.TrimSpace(fill("")), nil
	}
	parts := make([]string, 0, len(b.Names))
	for _, n := range b.Names {
		parts = append(parts, strings.TrimSpace(fill(n)))
	}
	return strings.Join(parts, "\n"), nil
}

// satisfiable reports whether every placeholder in tmpl has a value in b.
func satisfiable(tmpl string, b rule.Bindings) bool {
	for _, ph := range language.Placeholders(tmpl) {
		switch {
		case !language.KnownPlaceholders[ph]:
			return false
		case ph == rule.PlaceholderName:
			if len(b.Names) == 0 {
				return false
			}
		case b.Values[ph] == "":
			return false
		}
	}
	return true
}

// mergeBindings applies a language override on top of a shape's bindings.
// Override values win; Function replaces the whole name list.
func mergeBindings(b rule.Bindings, o rule.Override) rule.Bindings {
	out := rule.Bindings{
		Names:  append([]string(nil), b.Names...),
		Values: make(map[string]string, len(b.Values)+4),
	}
	for k, v := range b.Values {
		out.Values[k] = v
	}
	if o.Function != "" {
		out.Names = []string{o.Function}
	}
	set := func(k, v string) {
		if v != "" {
			out.Values[k] = v
		}
	}
	set(rule.PlaceholderObject, o.Object)
	set(rule.PlaceholderMethod, o.Method)
	set(rule.PlaceholderPattern, o.Pattern)
	set(rule.PlaceholderOperator, o.Operator)
	return out
}
