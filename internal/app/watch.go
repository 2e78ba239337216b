package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/corey/codeguard/internal/adapters/walker"
	"github.com/corey/codeguard/internal/domain/rule"
	"github.com/corey/codeguard/internal/ports"
)

// WatchEvent reports the handling of one changed file.
type WatchEvent struct {
	Path     string
	Reloaded bool             // a rule or adapter file changed
	Removed  bool             // the file is gone
	Result   *rule.FileResult // set for analyzed source files
	Err      error
}

// WatchRoots returns the directories watch mode monitors: the given source
// paths plus every rule and adapter directory.
func (a *App) WatchRoots(paths []string) []string {
	src := a.PackSources()
	roots := append([]string{}, paths...)
	roots = append(roots, src.RulesDirs...)
	return append(roots, src.AdaptersDirs...)
}

// WatchFilter reports whether a changed path matters to watch mode: a
// source file some adapter handles, or a YAML file in a pack directory.
func (a *App) WatchFilter(path string) bool {
	if a.isPackFile(path) {
		return true
	}
	_, ok := a.DetectLanguage(path)
	return ok
}

func (a *App) isPackFile(path string) bool {
	if ext := filepath.Ext(path); ext != ".yaml" && ext != ".yml" {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	src := a.PackSources()
	for _, dir := range append(src.RulesDirs, src.AdaptersDirs...) {
		d, err := filepath.Abs(dir)
		if err == nil && filepath.Dir(abs) == d {
			return true
		}
	}
	return false
}

// Watch re-analyzes source files under roots as they change, and reloads
// the catalog when a rule or adapter file changes, until ctx is done.
// onEvent is called from the watcher goroutine.
func (a *App) Watch(ctx context.Context, w ports.Watcher, roots []string, onEvent func(WatchEvent)) error {
	err := w.Watch(func(path string) {
		onEvent(a.handleChange(ctx, path))
	}, roots...)
	if err != nil {
		return err
	}
	a.Log.Info("watching", zap.Strings("roots", roots))
	<-ctx.Done()
	return w.Stop()
}

func (a *App) handleChange(ctx context.Context, path string) WatchEvent {
	ev := WatchEvent{Path: a.relative(path)}

	if a.isPackFile(path) {
		ev.Reloaded = true
		ev.Err = a.Reload()
		if ev.Err != nil {
			a.Log.Warn("reload failed, keeping previous rules", zap.String("file", path), zap.Error(ev.Err))
		}
		return ev
	}

	if _, err := os.Stat(path); err != nil {
		ev.Removed = true
		return ev
	}
	lang, ok := a.DetectLanguage(path)
	if !ok {
		ev.Result = &rule.FileResult{Path: ev.Path, Skipped: true, Reason: rule.SkipUnsupported}
		return ev
	}
	run, err := a.AnalyzeFiles(ctx, []walker.File{{Path: path, Rel: ev.Path, Language: lang}}, a.Rules())
	ev.Err = err
	if len(run.Files) == 1 {
		res := run.Files[0]
		res.Path = ev.Path
		for i := range res.Violations {
			res.Violations[i].File = ev.Path
		}
		ev.Result = &res
	}
	return ev
}

// relative shortens path against the project root when it lies inside it.
func (a *App) relative(path string) string {
	rel, err := filepath.Rel(a.ProjectRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
