// Package rule defines language-independent rule definitions: what a rule
// looks for (pattern type and shape), how bad a hit is, and which languages
// it applies to. Rules never mention grammar node names; the query generator
// turns them into concrete queries through a language adapter.
package rule

import (
	"fmt"
	"strings"
)

// Category groups rules for filtering and reporting.
type Category int

const (
	CategorySecurity Category = iota
	CategoryNaming
	CategoryStyle
	CategoryBestPractice
	CategoryPerformance
)

var categoryNames = [...]string{"SECURITY", "NAMING", "STYLE", "BEST_PRACTICE", "PERFORMANCE"}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "UNKNOWN"
	}
	return categoryNames[c]
}

// MarshalText renders the category name in JSON output.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a category name.
func (c *Category) UnmarshalText(b []byte) error {
	v := CategoryFromName(string(b))
	if v < 0 {
		return fmt.Errorf("unknown category %q", string(b))
	}
	*c = v
	return nil
}

// CategoryFromName maps a category name (case-insensitive) to its constant.
// Returns -1 for unknown names.
func CategoryFromName(name string) Category {
	name = strings.ToUpper(strings.TrimSpace(name))
	for i, n := range categoryNames {
		if n == name {
			return Category(i)
		}
	}
	return -1
}

// Severity is either WARNING or CRITICAL. Critical hits fail a run.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "WARNING"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// SeverityFromName maps a severity name to its constant. Returns -1 for
// unknown names.
func SeverityFromName(name string) Severity {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "WARNING":
		return SeverityWarning
	case "CRITICAL":
		return SeverityCritical
	default:
		return -1
	}
}

// MarshalText renders the severity name in JSON and YAML output.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	v := SeverityFromName(string(b))
	if v < 0 {
		return fmt.Errorf("unknown severity %q", string(b))
	}
	*s = v
	return nil
}

// PatternType is the abstract syntactic category a rule targets.
type PatternType int

const (
	FunctionCall PatternType = iota
	Assignment
	FunctionDeclaration
	ClassDeclaration
	TryCatch
	Import
	Comment
	BinaryExpression
	Literal
	Loop
	MemberAccess
	Conditional
)

var patternTypeNames = [...]string{
	"FUNCTION_CALL",
	"ASSIGNMENT",
	"FUNCTION_DECLARATION",
	"CLASS_DECLARATION",
	"TRY_CATCH",
	"IMPORT",
	"COMMENT",
	"BINARY_EXPRESSION",
	"LITERAL",
	"LOOP",
	"MEMBER_ACCESS",
	"CONDITIONAL",
}

func (p PatternType) String() string {
	if p < 0 || int(p) >= len(patternTypeNames) {
		return "UNKNOWN"
	}
	return patternTypeNames[p]
}

// MarshalText renders the pattern type name in JSON output.
func (p PatternType) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a pattern type name.
func (p *PatternType) UnmarshalText(b []byte) error {
	v := PatternTypeFromName(string(b))
	if v < 0 {
		return fmt.Errorf("unknown pattern type %q", string(b))
	}
	*p = v
	return nil
}

// PatternTypeFromName maps a pattern type name to its constant. Returns -1
// for unknown names.
func PatternTypeFromName(name string) PatternType {
	name = strings.ToUpper(strings.TrimSpace(name))
	for i, n := range patternTypeNames {
		if n == name {
			return PatternType(i)
		}
	}
	return -1
}

// PatternTypes returns every pattern type in declaration order.
func PatternTypes() []PatternType {
	out := make([]PatternType, len(patternTypeNames))
	for i := range patternTypeNames {
		out[i] = PatternType(i)
	}
	return out
}

// Definition is a language-independent rule.
type Definition struct {
	Name        string
	DisplayName string
	Description string
	Category    Category
	Severity    Severity
	PatternType PatternType
	Config      PatternConfig
	Message     string
	Tags        []string

	// Revision is bumped by the catalog every time the rule is replaced.
	// Cached generated queries remember the revision they were built from.
	Revision uint64
}

// PatternConfig holds the fields every pattern type shares plus the
// type-specific Shape.
type PatternConfig struct {
	// TemplateKey names an adapter template explicitly. When empty or absent
	// from the adapter the generator falls back by pattern type.
	TemplateKey string

	// Languages restricts the rule. Empty means every language.
	Languages []string

	// LanguageSpecific overrides values per language.
	LanguageSpecific map[string]Override

	// Query is a hand-authored query used verbatim for every language.
	Query string

	// Filter is an optional boolean expression evaluated per match.
	Filter string

	Shape Shape
}

// Override replaces pattern values for one language.
type Override struct {
	TemplateKey string `yaml:"templateKey,omitempty" json:"templateKey,omitempty"`
	Function    string `yaml:"function,omitempty" json:"function,omitempty"`
	Object      string `yaml:"object,omitempty" json:"object,omitempty"`
	Method      string `yaml:"method,omitempty" json:"method,omitempty"`
	Pattern     string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Operator    string `yaml:"operator,omitempty" json:"operator,omitempty"`
	Query       string `yaml:"query,omitempty" json:"query,omitempty"`
}

// AppliesTo reports whether the rule targets the given language.
func (d *Definition) AppliesTo(language string) bool {
	if len(d.Config.Languages) == 0 {
		return true
	}
	for _, l := range d.Config.Languages {
		if l == language {
			return true
		}
	}
	return false
}

// OverrideFor returns the override for a language, if any.
func (d *Definition) OverrideFor(language string) (Override, bool) {
	o, ok := d.Config.LanguageSpecific[language]
	return o, ok
}

// HasTag reports whether the rule carries the tag.
func (d *Definition) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
