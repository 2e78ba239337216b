// Package report renders analysis runs as text, JSON or SARIF 2.1.0.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/corey/codeguard/internal/domain/rule"
)

// Output formats.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatSARIF = "sarif"
)

// ErrUnknownFormat is returned for a format outside Formats().
var ErrUnknownFormat = errors.New("unsupported output format")

// Formats lists the supported output formats.
func Formats() []string { return []string{FormatText, FormatJSON, FormatSARIF} }

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

// Options tune rendering.
type Options struct {
	// MinSeverity hides violations below it. System errors are always shown.
	MinSeverity rule.Severity

	// Color enables ANSI colors in text output.
	Color bool

	// Rules supplies descriptions for SARIF rule metadata. Optional.
	Rules []*rule.Definition

	// Version is reported as the SARIF tool driver version.
	Version string
}

// Write renders run in format.
func Write(w io.Writer, format string, run *rule.Run, opts Options) error {
	filtered := filterRun(run, opts.MinSeverity)
	switch strings.ToLower(format) {
	case FormatText, "":
		return writeText(w, filtered, opts)
	case FormatJSON:
		return writeJSON(w, filtered)
	case FormatSARIF:
		return writeSARIF(w, filtered, opts)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// filterRun returns a copy of run without violations below min.
func filterRun(run *rule.Run, min rule.Severity) *rule.Run {
	out := *run
	out.Files = make([]rule.FileResult, len(run.Files))
	for i, f := range run.Files {
		var kept []rule.Violation
		for _, v := range f.Violations {
			if v.IsSystemError || v.Severity.AtLeast(min) {
				kept = append(kept, v)
			}
		}
		f.Violations = kept
		out.Files[i] = f
	}
	return &out
}

// =============================================================================
// Text
// =============================================================================

// writeText prints one grep-style line per violation:
//
//	file:line:col  SEVERITY  rule  message  (symbol)
//	    snippet
func writeText(w io.Writer, run *rule.Run, opts Options) error {
	paint := func(color, s string) string {
		if !opts.Color {
			return s
		}
		return color + s + colorReset
	}

	var sb strings.Builder
	skipped := 0
	for _, f := range run.Files {
		if f.Skipped {
			skipped++
			sb.WriteString(paint(colorGray, fmt.Sprintf("%s: skipped (%s)", f.Path, f.Reason)))
			sb.WriteString("\n")
			continue
		}
		for _, v := range f.Violations {
			sev := v.Severity.String()
			switch {
			case v.IsSystemError:
				sev = paint(colorRed+colorBold, "ERROR")
			case v.Severity == rule.SeverityCritical:
				sev = paint(colorRed, sev)
			default:
				sev = paint(colorYellow, sev)
			}
			fmt.Fprintf(&sb, "%s:%d:%d  %s  %s  %s",
				paint(colorCyan, f.Path), v.Line, v.Column+1, sev, v.Rule, v.Message)
			if v.Symbol != "" {
				fmt.Fprintf(&sb, "  (%s)", v.Symbol)
			}
			sb.WriteString("\n")
			if v.Snippet != "" {
				sb.WriteString("    ")
				sb.WriteString(paint(colorGray, firstLine(v.Snippet)))
				sb.WriteString("\n")
			}
		}
	}

	s := run.Summary()
	fmt.Fprintf(&sb, "%s │ %d files │ %d critical │ %d warnings │ %d rule errors │ %d skipped\n",
		paint(colorBold, "codeguard"), s.Files, s.Critical, s.Warnings, s.Errors, skipped)

	_, err := io.WriteString(w, sb.String())
	return err
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

// =============================================================================
// JSON
// =============================================================================

type jsonReport struct {
	*rule.Run
	Summary rule.RunSummary `json:"summary"`
}

func writeJSON(w io.Writer, run *rule.Run) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{Run: run, Summary: run.Summary()})
}
