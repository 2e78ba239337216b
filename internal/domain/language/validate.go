package language

import (
	"fmt"
	"sort"
	"strings"
)

// Problem is one design-time defect found in an adapter.
type Problem struct {
	Language    string `json:"language"`
	TemplateKey string `json:"templateKey,omitempty"`
	Rule        string `json:"rule,omitempty"`
	Message     string `json:"message"`
}

func (p Problem) String() string {
	var b strings.Builder
	b.WriteString(p.Language)
	if p.TemplateKey != "" {
		b.WriteString(" " + p.TemplateKey)
	}
	if p.Rule != "" {
		b.WriteString(" [" + p.Rule + "]")
	}
	b.WriteString(": " + p.Message)
	return b.String()
}

// KindChecker answers whether a grammar defines a named node kind.
type KindChecker interface {
	HasNodeKind(grammar, kind string) bool
}

// Validate runs the static checks on one adapter: empty templates, unknown
// placeholders, unbalanced query syntax, and (when kinds is non-nil) node
// type mappings absent from the grammar. Problems come back sorted.
func Validate(a *Adapter, kinds KindChecker) []Problem {
	var probs []Problem
	add := func(key, format string, args ...any) {
		probs = append(probs, Problem{Language: a.Language, TemplateKey: key, Message: fmt.Sprintf(format, args...)})
	}

	if len(a.Extensions) == 0 {
		add("", "no file extensions")
	}
	for _, key := range a.TemplateKeys() {
		tmpl := a.Templates[key]
		if strings.TrimSpace(tmpl) == "" {
			add(key, "empty template")
			continue
		}
		for _, ph := range Placeholders(tmpl) {
			if !KnownPlaceholders[ph] {
				add(key, "unknown placeholder {{%s}}", ph)
			}
		}
		if err := CheckBalance(tmpl); err != nil {
			add(key, "malformed template: %v", err)
		}
	}

	if kinds != nil {
		cats := make([]string, 0, len(a.NodeTypes))
		for c := range a.NodeTypes {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		for _, c := range cats {
			kind := a.NodeTypes[c]
			if !kinds.HasNodeKind(a.GrammarName(), kind) {
				add("", "node type %q for %s is not defined by grammar %q", kind, c, a.GrammarName())
			}
		}
	}

	SortProblems(probs)
	return probs
}

// SortProblems orders by language, template key, rule, message.
func SortProblems(ps []Problem) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		if a.Language != b.Language {
			return a.Language < b.Language
		}
		if a.TemplateKey != b.TemplateKey {
			return a.TemplateKey < b.TemplateKey
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Message < b.Message
	})
}
