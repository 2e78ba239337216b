package rule

import (
	"fmt"
	"sort"
)

// Violation is one located rule hit. Line is 1-based, Column 0-based.
type Violation struct {
	Rule          string   `json:"rule"`
	Severity      Severity `json:"severity"`
	File          string   `json:"file,omitempty"`
	Language      string   `json:"language,omitempty"`
	Line          int      `json:"line"`
	Column        int      `json:"column"`
	EndLine       int      `json:"endLine,omitempty"`
	EndColumn     int      `json:"endColumn,omitempty"`
	Snippet       string   `json:"snippet"`
	Message       string   `json:"message"`
	Symbol        string   `json:"symbol,omitempty"`
	IsSystemError bool     `json:"isSystemError,omitempty"`
}

// SystemErrorMessage is reported when a rule's query cannot be built or
// compiled for a language.
const SystemErrorMessage = "Configuration Error: Invalid Tree-sitter Query. Please update the rule."

// NewSystemError builds the single violation reported for a broken rule.
func NewSystemError(d *Definition, file, language string, cause error) Violation {
	msg := SystemErrorMessage
	if cause != nil {
		msg = fmt.Sprintf("%s (rule %s: %v)", SystemErrorMessage, d.Name, cause)
	}
	return Violation{
		Rule:          d.Name,
		Severity:      d.Severity,
		File:          file,
		Language:      language,
		Line:          1,
		Column:        0,
		Message:       msg,
		IsSystemError: true,
	}
}

// SortViolations orders by (line, column, rule name) in place.
func SortViolations(vs []Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		a, b := vs[i], vs[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Rule < b.Rule
	})
}

// CountBySeverity tallies non-system violations per severity.
func CountBySeverity(vs []Violation) (warnings, critical int) {
	for _, v := range vs {
		if v.IsSystemError {
			continue
		}
		switch v.Severity {
		case SeverityCritical:
			critical++
		case SeverityWarning:
			warnings++
		}
	}
	return warnings, critical
}
