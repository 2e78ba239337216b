package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/corey/codeguard/internal/app"
	"github.com/corey/codeguard/internal/domain/language"
	"github.com/corey/codeguard/internal/domain/querygen"
	"github.com/corey/codeguard/internal/domain/rule"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

func severityColor(s rule.Severity) string {
	if s == rule.SeverityCritical {
		return colorRed
	}
	return colorYellow
}

// formatRuleList renders one line per rule:
//
//	no-eval                   CRITICAL  SECURITY       FUNCTION_CALL   javascript,python
func formatRuleList(infos []rule.Info) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s⚡ %d rules%s\n", colorBold, len(infos), colorReset))
	for _, in := range infos {
		langs := "all"
		if len(in.Languages) > 0 {
			langs = strings.Join(in.Languages, ",")
		}
		sb.WriteString(fmt.Sprintf("  %s%-28s%s %s%-9s%s %-14s %-21s %s%s%s\n",
			colorCyan, in.Name, colorReset,
			severityColor(in.Severity), in.Severity, colorReset,
			in.Category, in.PatternType,
			colorGray, langs, colorReset))
	}
	return sb.String()
}

// formatRule renders a rule's full definition.
func formatRule(in rule.Info) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s%s%s", colorBold, in.Name, colorReset))
	if in.DisplayName != "" {
		sb.WriteString(fmt.Sprintf(" — %s", in.DisplayName))
	}
	sb.WriteString("\n")
	if in.Description != "" {
		sb.WriteString(fmt.Sprintf("  %s\n", in.Description))
	}
	sb.WriteString(fmt.Sprintf("  Severity:  %s%s%s\n", severityColor(in.Severity), in.Severity, colorReset))
	sb.WriteString(fmt.Sprintf("  Category:  %s\n", in.Category))
	sb.WriteString(fmt.Sprintf("  Pattern:   %s\n", in.PatternType))
	sb.WriteString(fmt.Sprintf("  Message:   %s\n", in.Message))
	if len(in.Languages) > 0 {
		sb.WriteString(fmt.Sprintf("  Languages: %s\n", strings.Join(in.Languages, ", ")))
	}
	if in.TemplateKey != "" {
		sb.WriteString(fmt.Sprintf("  Template:  %s\n", in.TemplateKey))
	}
	if len(in.Names) > 0 {
		sb.WriteString(fmt.Sprintf("  Names:     %s\n", strings.Join(in.Names, ", ")))
	}
	for _, k := range sortedKeys(in.Values) {
		sb.WriteString(fmt.Sprintf("  {{%s}}: %s\n", k, in.Values[k]))
	}
	if in.Filter != "" {
		sb.WriteString(fmt.Sprintf("  Filter:    %s\n", in.Filter))
	}
	if len(in.Tags) > 0 {
		tags := make([]string, len(in.Tags))
		for i, t := range in.Tags {
			tags[i] = colorGreen + "#" + t + colorReset
		}
		sb.WriteString(fmt.Sprintf("  Tags:      %s\n", strings.Join(tags, " ")))
	}
	return sb.String()
}

// formatAdapters renders loaded adapters with their grammar status.
func formatAdapters(a *app.App) string {
	var sb strings.Builder
	adapters := a.Catalog.Adapters()
	sb.WriteString(fmt.Sprintf("%s⚡ %d adapters%s\n", colorBold, len(adapters), colorReset))
	for _, ad := range adapters {
		status := fmt.Sprintf("%s✓ grammar%s", colorGreen, colorReset)
		if !a.Grammars.HasLanguage(ad.GrammarName()) {
			status = fmt.Sprintf("%s✗ grammar %s missing%s", colorYellow, ad.GrammarName(), colorReset)
		}
		sb.WriteString(fmt.Sprintf("  %s%-12s%s %-12s %-22s %2d templates  %s\n",
			colorCyan, ad.Language, colorReset,
			ad.DisplayName, strings.Join(ad.Extensions, " "),
			len(ad.Templates), status))
	}
	return sb.String()
}

// formatProblems renders validation problems, or a clean message.
func formatProblems(probs []language.Problem) string {
	if len(probs) == 0 {
		return fmt.Sprintf("%s✓ adapters valid%s\n", colorGreen, colorReset)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s✗ %d problems%s\n", colorRed, len(probs), colorReset))
	for _, p := range probs {
		sb.WriteString("  " + p.String() + "\n")
	}
	return sb.String()
}

// formatGenerateSummary renders a batch generation summary:
//
//	⚡ 61 generated │ 23 skipped │ 0 errors
func formatGenerateSummary(s querygen.Summary) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s⚡ %d generated%s │ %d skipped │ %d errors\n",
		colorBold, s.Generated, colorReset, s.Skipped, s.Errors))
	for _, f := range s.Failures {
		sb.WriteString(fmt.Sprintf("  %s%s/%s%s: %s\n", colorRed, f.Rule, f.Language, colorReset, f.Error))
	}
	return sb.String()
}

// formatQuery renders one generated query with its provenance.
func formatQuery(q querygen.GeneratedQuery) string {
	return fmt.Sprintf("%s; %s / %s (template %s, rule rev %d, adapter rev %d)%s\n%s\n",
		colorGray, q.Rule, q.Language, q.TemplateKey, q.RuleRevision, q.AdapterRevision, colorReset, q.Query)
}

// formatRunList renders saved run summaries, newest first.
func formatRunList(runs []rule.RunSummary) string {
	if len(runs) == 0 {
		return "no saved runs (use `codeguard analyze --save`)\n"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s⚡ %d saved runs%s\n", colorBold, len(runs), colorReset))
	for _, r := range runs {
		sb.WriteString(fmt.Sprintf("  %s  %s  %4d files  %s%d critical%s  %d warnings",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Files,
			colorRed, r.Critical, colorReset, r.Warnings))
		if r.Errors > 0 {
			sb.WriteString(fmt.Sprintf("  %d errors", r.Errors))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatWatchEvent renders the outcome of one watched change.
func formatWatchEvent(ev app.WatchEvent) string {
	switch {
	case ev.Reloaded && ev.Err != nil:
		return fmt.Sprintf("%s✗ %s: reload failed, keeping previous rules: %v%s\n", colorRed, ev.Path, ev.Err, colorReset)
	case ev.Reloaded:
		return fmt.Sprintf("%s↻ %s: rules reloaded%s\n", colorCyan, ev.Path, colorReset)
	case ev.Removed:
		return fmt.Sprintf("%s- %s removed%s\n", colorGray, ev.Path, colorReset)
	case ev.Result == nil:
		return ""
	case ev.Result.Skipped:
		return fmt.Sprintf("%s%s: skipped (%s)%s\n", colorGray, ev.Path, ev.Result.Reason, colorReset)
	case len(ev.Result.Violations) == 0:
		return fmt.Sprintf("%s✓ %s clean%s\n", colorGreen, ev.Path, colorReset)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s✗ %s: %d violations%s\n", colorBold, ev.Path, len(ev.Result.Violations), colorReset))
	for _, v := range ev.Result.Violations {
		sev := v.Severity.String()
		if v.IsSystemError {
			sev = "ERROR"
		}
		sb.WriteString(fmt.Sprintf("  %d:%d  %s%-8s%s %s  %s\n",
			v.Line, v.Column+1, severityColor(v.Severity), sev, colorReset, v.Rule, v.Message))
	}
	return sb.String()
}

// violationsAtLeast keeps violations at or above min. System errors are
// always kept.
func violationsAtLeast(vs []rule.Violation, min rule.Severity) []rule.Violation {
	var out []rule.Violation
	for _, v := range vs {
		if v.IsSystemError || v.Severity.AtLeast(min) {
			out = append(out, v)
		}
	}
	return out
}

// stripColor removes ANSI sequences when output is not a terminal.
func stripColor(s string) string {
	for _, c := range []string{colorReset, colorBold, colorRed, colorCyan, colorGreen, colorYellow, colorGray} {
		s = strings.ReplaceAll(s, c, "")
	}
	return s
}

// render prints s, colored only when color is on.
func render(color bool, s string) string {
	if color {
		return s
	}
	return stripColor(s)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
