package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/corey/codeguard/internal/adapters/treesitter"
	"github.com/corey/codeguard/internal/adapters/walker"
	"github.com/corey/codeguard/internal/domain/rule"
)

// ErrUnknownRule is returned when a caller names a rule the catalog lacks.
var ErrUnknownRule = errors.New("unknown rule")

// RulesByName resolves names against the catalog. No names means the
// settings-filtered rule set.
func (a *App) RulesByName(names []string) ([]*rule.Definition, error) {
	if len(names) == 0 {
		return a.Rules(), nil
	}
	out := make([]*rule.Definition, 0, len(names))
	for _, n := range names {
		d, ok := a.Catalog.Rule(n)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRule, n)
		}
		out = append(out, d)
	}
	return out, nil
}

// Discover walks every path and returns the analyzable files, sorted and
// deduplicated. Paths naming a single file whose language is unknown come
// back as skipped results.
func (a *App) Discover(paths []string) ([]walker.File, []rule.FileResult, error) {
	opts := walker.Options{
		Detect:      a.DetectLanguage,
		MaxFileSize: a.Settings.MaxFileSize,
		NoGitignore: a.Settings.NoGitignore,
	}
	seen := make(map[string]bool)
	var files []walker.File
	var skipped []rule.FileResult
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, nil, err
		}
		if !info.IsDir() {
			if _, ok := a.DetectLanguage(p); !ok {
				skipped = append(skipped, rule.FileResult{Path: p, Skipped: true, Reason: rule.SkipUnsupported})
				continue
			}
		}
		found, err := walker.Walk(p, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("walk %s: %w", p, err)
		}
		for _, f := range found {
			if !seen[f.Path] {
				seen[f.Path] = true
				files = append(files, f)
			}
		}
	}
	return files, skipped, nil
}

// AnalyzePaths discovers files under paths and analyzes them. Nil rules
// means the settings-filtered rule set.
func (a *App) AnalyzePaths(ctx context.Context, paths []string, rules []*rule.Definition) (*rule.Run, error) {
	files, skipped, err := a.Discover(paths)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = a.Rules()
	}
	run, err := a.AnalyzeFiles(ctx, files, rules)
	run.Files = append(run.Files, skipped...)
	rule.SortFiles(run.Files)
	return run, err
}

// AnalyzeFiles analyzes files on at most WorkerCount goroutines. Once ctx is
// done no further files start; those are recorded as skipped and ctx.Err()
// is returned alongside the partial run. Results are sorted by path.
func (a *App) AnalyzeFiles(ctx context.Context, files []walker.File, rules []*rule.Definition) (*rule.Run, error) {
	run := &rule.Run{ID: uuid.NewString(), StartedAt: time.Now().UTC()}
	results := make([]rule.FileResult, len(files))

	g := new(errgroup.Group)
	g.SetLimit(a.Settings.WorkerCount())
	for i, f := range files {
		if ctx.Err() != nil {
			results[i] = rule.FileResult{Path: f.Path, Language: f.Language, Skipped: true, Reason: rule.SkipCanceled}
			continue
		}
		g.Go(func() error {
			results[i] = a.analyzeFile(ctx, f, rules)
			return nil
		})
	}
	_ = g.Wait()

	run.Files = results
	run.FinishedAt = time.Now().UTC()
	rule.SortFiles(run.Files)

	s := run.Summary()
	a.Log.Info("analysis finished",
		zap.String("run", run.ID),
		zap.Int("files", s.Files),
		zap.Int("critical", s.Critical),
		zap.Int("warnings", s.Warnings),
		zap.Int("rule_errors", s.Errors),
		zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)))
	return run, ctx.Err()
}

type outcome struct {
	violations []rule.Violation
	err        error
}

// analyzeFile reads one file and analyzes it.
func (a *App) analyzeFile(ctx context.Context, f walker.File, rules []*rule.Definition) rule.FileResult {
	res := rule.FileResult{Path: f.Path, Language: f.Language}
	skip := func(reason string) rule.FileResult {
		res.Skipped = true
		res.Reason = reason
		return res
	}
	if ctx.Err() != nil {
		return skip(rule.SkipCanceled)
	}

	src, err := os.ReadFile(f.Path)
	if err != nil {
		a.Log.Warn("read failed", zap.String("file", f.Path), zap.Error(err))
		return skip(rule.SkipReadError)
	}
	return a.AnalyzeSource(ctx, f, src, rules)
}

// AnalyzeSource runs the engine over in-memory source for f. A file that
// outlives FileTimeout is reported as skipped; the engine call itself is
// not interrupted and its late result is dropped. Close waits for such
// calls before releasing grammars.
func (a *App) AnalyzeSource(ctx context.Context, f walker.File, src []byte, rules []*rule.Definition) rule.FileResult {
	res := rule.FileResult{Path: f.Path, Language: f.Language}
	skip := func(reason string) rule.FileResult {
		res.Skipped = true
		res.Reason = reason
		return res
	}

	done := make(chan outcome, 1)
	a.inflight.Add(1)
	a.busy.Add(1)
	go func() {
		defer a.inflight.Done()
		defer a.busy.Add(-1)
		vs, err := a.Engine.Analyze(f.Path, src, f.Language, rules)
		done <- outcome{vs, err}
	}()

	var timeout <-chan time.Time
	if a.Settings.FileTimeout > 0 {
		t := time.NewTimer(a.Settings.FileTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case o := <-done:
		if errors.Is(o.err, treesitter.ErrUnsupportedLanguage) {
			a.Log.Debug("unsupported language", zap.String("file", f.Path), zap.String("language", f.Language))
			return skip(rule.SkipUnsupported)
		}
		if o.err != nil {
			a.Log.Warn("analysis failed", zap.String("file", f.Path), zap.Error(o.err))
			return skip(o.err.Error())
		}
		res.Violations = o.violations
		a.Log.Debug("file analyzed", zap.String("file", f.Path), zap.Int("violations", len(o.violations)))
		return res
	case <-timeout:
		a.Log.Warn("file timed out", zap.String("file", f.Path), zap.Duration("timeout", a.Settings.FileTimeout))
		return skip(rule.SkipTimeout)
	case <-ctx.Done():
		return skip(rule.SkipCanceled)
	}
}

// SaveRun persists a run when a store is configured.
func (a *App) SaveRun(run *rule.Run) error {
	if a.Store == nil {
		return nil
	}
	return a.Store.SaveRun(run)
}
