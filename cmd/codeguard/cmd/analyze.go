package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corey/codeguard/internal/adapters/report"
	"github.com/corey/codeguard/internal/domain/rule"
)

var (
	analyzeOutput  string
	analyzeSave    bool
	analyzeFailOn  string
	analyzeRules   []string
	analyzeColor   string
	analyzeNoColor bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [paths...]",
	Short: "Check files against the rule pack",
	Long: `Analyze every source file under the given paths (default: current directory).

Exit codes: 0 clean, 1 failure, 2 violations at or above --fail-on.`,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringP("format", "f", "", "report format: text, json or sarif")
	f.StringVarP(&analyzeOutput, "output", "o", "", "write the report to a file instead of stdout")
	f.BoolVar(&analyzeSave, "save", false, "store the run in the database")
	f.StringVar(&analyzeFailOn, "fail-on", "", "exit 2 when a violation is at least WARNING or CRITICAL")
	f.StringSliceVarP(&analyzeRules, "rule", "r", nil, "run only these rules (repeatable)")
	f.StringVar(&analyzeColor, "color", "auto", "color output: auto, always, never")
	f.BoolVar(&analyzeNoColor, "no-color", false, "disable color output")
	bindFlags(f, map[string]string{"format": "format"})
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	var failOn rule.Severity = -1
	if analyzeFailOn != "" {
		if failOn = rule.SeverityFromName(analyzeFailOn); failOn < 0 {
			return fmt.Errorf("--fail-on %q: want WARNING or CRITICAL", analyzeFailOn)
		}
	}

	a, err := openApp(analyzeSave)
	if err != nil {
		return err
	}
	defer a.Close()

	paths := args
	if len(paths) == 0 {
		paths = []string{"."}
	}
	rules, err := a.RulesByName(analyzeRules)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, runErr := a.AnalyzePaths(ctx, paths, rules)
	if run == nil {
		return runErr
	}
	if errors.Is(runErr, context.Canceled) {
		runErr = fmt.Errorf("interrupted: %w", runErr)
	}

	var w io.Writer = cmd.OutOrStdout()
	color := resolveColor(analyzeColor, analyzeNoColor)
	if analyzeOutput != "" {
		f, err := os.Create(analyzeOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		w, color = f, false
	}
	err = report.Write(w, settings.Format, run, report.Options{
		MinSeverity: settings.Severity(),
		Color:       color,
		Rules:       rules,
		Version:     version,
	})
	if err != nil {
		return err
	}

	if analyzeSave {
		if err := a.SaveRun(run); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "run saved: %s\n", run.ID)
	}
	if runErr != nil {
		return runErr
	}
	if failOn >= 0 && hasViolationAtLeast(run, failOn) {
		return exitError{code: ExitViolations}
	}
	return nil
}

// hasViolationAtLeast ignores system errors; those are rule bugs, not code
// findings.
func hasViolationAtLeast(run *rule.Run, min rule.Severity) bool {
	for _, v := range run.Violations() {
		if !v.IsSystemError && v.Severity.AtLeast(min) {
			return true
		}
	}
	return false
}
