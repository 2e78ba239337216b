// Package app wires together all adapters and domain logic: the rule
// catalog, grammar registry, query generator and analysis engine, plus
// persistence. It provides batch analysis, adapter validation and watch mode.
package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/corey/codeguard/internal/adapters/bbolt"
	"github.com/corey/codeguard/internal/adapters/engine"
	"github.com/corey/codeguard/internal/adapters/treesitter"
	"github.com/corey/codeguard/internal/config"
	"github.com/corey/codeguard/internal/domain/catalog"
	"github.com/corey/codeguard/internal/domain/querygen"
	"github.com/corey/codeguard/internal/domain/rule"
	"github.com/corey/codeguard/internal/ports"
)

// Config holds initialization parameters for the App.
type Config struct {
	ProjectRoot string
	Settings    *config.Config // nil = config.Default()
	Logger      *zap.Logger    // nil = no logging
	DBPath      string         // bbolt file; empty = no persistence
	Store       ports.Storage  // optional: takes precedence over DBPath
}

// App is the top-level container wiring all components together.
type App struct {
	ProjectRoot string
	Settings    *config.Config
	Log         *zap.Logger
	Paths       *Paths

	Catalog   *catalog.Catalog
	Grammars  *treesitter.Registry
	Generator *querygen.Generator
	Engine    *engine.Engine
	Store     ports.Storage // nil = no persistence

	mu        sync.Mutex // serializes Reload
	ownsStore bool

	// engine calls still running, including ones abandoned after a timeout
	inflight sync.WaitGroup
	busy     atomic.Int32
}

// New creates an App with all dependencies wired and the rule pack loaded.
func New(cfg Config) (*App, error) {
	if cfg.ProjectRoot == "" {
		return nil, fmt.Errorf("project root required")
	}
	root, err := filepath.Abs(cfg.ProjectRoot)
	if err != nil {
		return nil, err
	}
	if cfg.Settings == nil {
		cfg.Settings = config.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	paths := NewPaths(root)
	grammars := treesitter.NewRegistry()
	var grammarPaths []string
	for _, p := range cfg.Settings.GrammarPaths {
		grammarPaths = append(grammarPaths, paths.Resolve(root, p))
	}
	grammars.SetGrammarPaths(append(grammarPaths, treesitter.DefaultGrammarPaths(root)...))

	a := &App{
		ProjectRoot: root,
		Settings:    cfg.Settings,
		Log:         cfg.Logger,
		Paths:       paths,
		Catalog:     catalog.New(),
		Grammars:    grammars,
		Generator:   querygen.NewGenerator(),
		Store:       cfg.Store,
	}
	a.Engine = engine.New(grammars, a.Catalog, a.Generator, engine.WithLogger(cfg.Logger.Named("engine")))

	// Catalog changes → generator cache invalidation
	a.Catalog.OnChange(a.onCatalogChange)

	if err := a.Reload(); err != nil {
		grammars.Close()
		return nil, err
	}

	if a.Store == nil && cfg.DBPath != "" {
		dbPath := paths.Resolve(root, cfg.DBPath)
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			grammars.Close()
			return nil, fmt.Errorf("create store dir: %w", err)
		}
		store, err := bbolt.NewStore(dbPath)
		if err != nil {
			grammars.Close()
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.Store = store
		a.ownsStore = true
	}
	if a.Store != nil {
		if err := a.pruneStoredQueries(); err != nil {
			a.Close()
			return nil, fmt.Errorf("prune stored queries: %w", err)
		}
	}
	return a, nil
}

func (a *App) onCatalogChange(ch catalog.Change) {
	switch ch.Kind {
	case catalog.RuleChanged:
		a.Generator.InvalidateRule(ch.Name)
		if ch.Removed && a.Store != nil {
			if err := a.Store.DeleteQueries(ch.Name); err != nil {
				a.Log.Warn("delete stored queries", zap.String("rule", ch.Name), zap.Error(err))
			}
		}
	case catalog.AdapterChanged:
		a.Generator.InvalidateLanguage(ch.Name)
	}
}

// pruneStoredQueries deletes stored queries whose rule is no longer in the
// catalog. Rules dropped while no App was running are only caught here.
func (a *App) pruneStoredQueries() error {
	stored, err := a.Store.ListQueries("")
	if err != nil {
		return err
	}
	gone := make(map[string]bool)
	for _, q := range stored {
		if _, ok := a.Catalog.Rule(q.Rule); !ok {
			gone[q.Rule] = true
		}
	}
	for name := range gone {
		if err := a.Store.DeleteQueries(name); err != nil {
			return err
		}
	}
	if len(gone) > 0 {
		a.Log.Info("pruned stored queries", zap.Int("rules", len(gone)))
	}
	return nil
}

// PackSources resolves where rules and adapters are read from: the embedded
// pack, configured directories, then the project's .codeguard/ directories.
func (a *App) PackSources() PackSources {
	src := PackSources{NoBuiltin: a.Settings.NoBuiltin}
	for _, d := range a.Settings.RulesDirs {
		src.RulesDirs = append(src.RulesDirs, a.Paths.Resolve(a.ProjectRoot, d))
	}
	for _, d := range a.Settings.AdaptersDirs {
		src.AdaptersDirs = append(src.AdaptersDirs, a.Paths.Resolve(a.ProjectRoot, d))
	}
	rules, adapters := a.Paths.ProjectDirs()
	src.RulesDirs = append(src.RulesDirs, rules...)
	src.AdaptersDirs = append(src.AdaptersDirs, adapters...)
	return src
}

// Reload re-reads every rule and adapter source and swaps the catalog
// contents atomically. On error the previous contents stay live.
func (a *App) Reload() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	rules, adapters, err := LoadPack(a.PackSources())
	if err != nil {
		return err
	}
	if err := a.Catalog.Load(rules, adapters); err != nil {
		return err
	}
	a.Log.Info("rule pack loaded", zap.Int("rules", len(rules)), zap.Int("adapters", len(adapters)))
	return nil
}

// Rules returns the catalog rules selected by the settings' category and
// tag filters. min_severity only narrows reports, so every severity runs.
func (a *App) Rules() []*rule.Definition {
	return a.Catalog.Rules(catalog.Filter{
		Categories: a.Settings.CategoryFilter(),
		Tags:       a.Settings.Tags,
	})
}

// DetectLanguage maps a path to the language of the adapter that claims
// its extension.
func (a *App) DetectLanguage(path string) (string, bool) {
	ad, ok := a.Catalog.AdapterForPath(path)
	if !ok {
		return "", false
	}
	return ad.Language, true
}

// Close waits for running engine calls, then releases grammars and the
// store if the App opened it.
func (a *App) Close() error {
	if n := a.busy.Load(); n > 0 {
		a.Log.Debug("waiting for running analyses", zap.Int32("count", n))
	}
	a.inflight.Wait()
	a.Grammars.Close()
	if a.ownsStore {
		if c, ok := a.Store.(io.Closer); ok {
			return c.Close()
		}
	}
	return nil
}
