package cmd

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/codeguard/internal/app"
	"github.com/corey/codeguard/internal/domain/language"
	"github.com/corey/codeguard/internal/domain/querygen"
	"github.com/corey/codeguard/internal/domain/rule"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitClean, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(errors.New("boom")))
	assert.Equal(t, ExitViolations, ExitCode(exitError{code: ExitViolations}))
	assert.Equal(t, ExitViolations, ExitCode(fmt.Errorf("wrapped: %w", exitError{code: ExitViolations})))
	assert.Empty(t, exitError{code: ExitViolations}.Error())
}

func TestIsDBLockError(t *testing.T) {
	assert.False(t, isDBLockError(nil))
	assert.True(t, isDBLockError(errors.New("open store: bbolt open: timeout")))
	assert.False(t, isDBLockError(errors.New("permission denied")))
}

func TestResolveColor(t *testing.T) {
	assert.True(t, resolveColor("always", false))
	assert.False(t, resolveColor("always", true))
	assert.False(t, resolveColor("never", false))
}

func TestHasViolationAtLeast(t *testing.T) {
	run := &rule.Run{Files: []rule.FileResult{{Violations: []rule.Violation{
		{Rule: "no-var", Severity: rule.SeverityWarning},
		{Rule: "broken", Severity: rule.SeverityCritical, IsSystemError: true},
	}}}}
	assert.True(t, hasViolationAtLeast(run, rule.SeverityWarning))
	assert.False(t, hasViolationAtLeast(run, rule.SeverityCritical), "system errors do not count")
}

func TestFormatRuleList(t *testing.T) {
	out := stripColor(formatRuleList([]rule.Info{
		{Name: "no-eval", Severity: rule.SeverityCritical, Category: rule.CategorySecurity, PatternType: rule.FunctionCall, Languages: []string{"python"}},
		{Name: "no-todo", Severity: rule.SeverityWarning, Category: rule.CategoryStyle, PatternType: rule.Comment},
	}))
	assert.Contains(t, out, "⚡ 2 rules")
	assert.Regexp(t, `no-eval\s+CRITICAL\s+SECURITY\s+FUNCTION_CALL\s+python`, out)
	assert.Regexp(t, `no-todo\s+WARNING\s+STYLE\s+COMMENT\s+all`, out)
}

func TestFormatRule(t *testing.T) {
	out := stripColor(formatRule(rule.Info{
		Name:        "no-eval",
		DisplayName: "No eval",
		Message:     "avoid eval",
		Severity:    rule.SeverityCritical,
		Names:       []string{"eval", "exec"},
		Values:      map[string]string{"object": "os"},
		Tags:        []string{"owasp"},
	}))
	assert.Contains(t, out, "no-eval — No eval")
	assert.Contains(t, out, "Names:     eval, exec")
	assert.Contains(t, out, "{{object}}: os")
	assert.Contains(t, out, "#owasp")
}

func TestFormatProblems(t *testing.T) {
	assert.Contains(t, stripColor(formatProblems(nil)), "adapters valid")
	out := stripColor(formatProblems([]language.Problem{{Language: "python", Message: "bad"}}))
	assert.Contains(t, out, "1 problems")
	assert.Contains(t, out, "python")
}

func TestFormatGenerateSummary(t *testing.T) {
	out := stripColor(formatGenerateSummary(querygen.Summary{
		Generated: 3, Skipped: 1, Errors: 1,
		Failures: []querygen.Failure{{Rule: "r", Language: "go", Error: "boom"}},
	}))
	assert.Contains(t, out, "3 generated │ 1 skipped │ 1 errors")
	assert.Contains(t, out, "r/go: boom")
}

func TestFormatWatchEvent(t *testing.T) {
	tests := []struct {
		name string
		ev   app.WatchEvent
		want string
	}{
		{"reloaded", app.WatchEvent{Path: "rules/a.yaml", Reloaded: true}, "rules reloaded"},
		{"reload failed", app.WatchEvent{Path: "rules/a.yaml", Reloaded: true, Err: errors.New("bad yaml")}, "keeping previous rules"},
		{"removed", app.WatchEvent{Path: "a.py", Removed: true}, "a.py removed"},
		{"skipped", app.WatchEvent{Path: "a.py", Result: &rule.FileResult{Skipped: true, Reason: rule.SkipTimeout}}, "skipped (timeout)"},
		{"clean", app.WatchEvent{Path: "a.py", Result: &rule.FileResult{}}, "a.py clean"},
		{"violations", app.WatchEvent{Path: "a.py", Result: &rule.FileResult{Violations: []rule.Violation{
			{Rule: "no-eval", Severity: rule.SeverityCritical, Line: 3, Column: 4, Message: "no"},
		}}}, "3:5  CRITICAL no-eval  no"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, stripColor(formatWatchEvent(tt.ev)), tt.want)
		})
	}
	assert.Empty(t, formatWatchEvent(app.WatchEvent{Path: "x"}))
}

func TestFormatRunList(t *testing.T) {
	assert.Contains(t, formatRunList(nil), "no saved runs")
	out := stripColor(formatRunList([]rule.RunSummary{
		{ID: "r1", StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), Files: 4, Critical: 1, Warnings: 2, Errors: 1},
	}))
	assert.Contains(t, out, "1 saved runs")
	assert.Regexp(t, `r1\s+\S+ \S+\s+4 files\s+1 critical\s+2 warnings\s+1 errors`, out)
}

func TestViolationsAtLeast(t *testing.T) {
	vs := []rule.Violation{
		{Rule: "no-var", Severity: rule.SeverityWarning},
		{Rule: "no-eval", Severity: rule.SeverityCritical},
		{Rule: "broken", Severity: rule.SeverityWarning, IsSystemError: true},
	}
	got := violationsAtLeast(vs, rule.SeverityCritical)
	require.Len(t, got, 2)
	assert.Equal(t, "no-eval", got[0].Rule)
	assert.Equal(t, "broken", got[1].Rule)
	assert.Len(t, violationsAtLeast(vs, rule.SeverityWarning), 3)
}
