// Package engine runs rules against source files. A file is parsed once;
// every rule's generated query then runs against the shared tree. A rule
// that cannot be generated, compiled or filtered is reported as a single
// system-error violation and never stops the other rules.
package engine

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr/vm"
	"go.uber.org/zap"

	"github.com/corey/codeguard/internal/adapters/ahocorasick"
	"github.com/corey/codeguard/internal/adapters/treesitter"
	"github.com/corey/codeguard/internal/domain/language"
	"github.com/corey/codeguard/internal/domain/querygen"
	"github.com/corey/codeguard/internal/domain/rule"
	"github.com/corey/codeguard/internal/ports"
)

// Anchor capture names, in order of preference. When a match has neither,
// its first capture is the anchor.
const (
	CaptureMatch  = "match"
	CaptureTarget = "target"
)

// AdapterSource resolves a language tag to its adapter.
type AdapterSource interface {
	Adapter(language string) (*language.Adapter, bool)
}

type filterEntry struct {
	prog *vm.Program
	err  error
}

type literalEntry struct {
	clauses [][]string
	ok      bool
}

// Engine is safe for concurrent use; callers typically share one across
// worker goroutines.
type Engine struct {
	grammars *treesitter.Registry
	adapters AdapterSource
	gen      *querygen.Generator
	log      *zap.Logger
	matcher  func(literals []string) ports.LiteralMatcher

	mu       sync.Mutex
	filters  map[string]filterEntry
	literals map[string]literalEntry
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithLiteralMatcher replaces the Aho-Corasick literal pre-filter.
func WithLiteralMatcher(build func(literals []string) ports.LiteralMatcher) Option {
	return func(e *Engine) { e.matcher = build }
}

func newAhoCorasick(literals []string) ports.LiteralMatcher {
	return ahocorasick.NewMatcher(literals)
}

// New creates an engine over a grammar registry, an adapter source and a
// query generator.
func New(grammars *treesitter.Registry, adapters AdapterSource, gen *querygen.Generator, opts ...Option) *Engine {
	e := &Engine{
		grammars: grammars,
		adapters: adapters,
		gen:      gen,
		log:      zap.NewNop(),
		matcher:  newAhoCorasick,
		filters:  make(map[string]filterEntry),
		literals: make(map[string]literalEntry),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// fileRun is the per-call state shared by every rule.
type fileRun struct {
	path     string
	language string
	adapter  *language.Adapter
	tree     *treesitter.Tree
	kinds    []string
}

// plan is one rule resolved to a compiled query, or to the error that
// prevents it from running.
type plan struct {
	def     *rule.Definition
	query   *treesitter.Query
	clauses [][]string
	err     error
}

// evaluation is the outcome of one rule over one file.
type evaluation struct {
	violations []rule.Violation
	err        error
}

// Analyze runs rules over one file and returns violations sorted by
// (line, column, rule). The only error returned wraps
// treesitter.ErrUnsupportedLanguage, or reports a parser failure; every
// per-rule problem becomes a system-error violation instead.
func (e *Engine) Analyze(path string, source []byte, lang string, rules []*rule.Definition) ([]rule.Violation, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	a, ok := e.adapters.Adapter(lang)
	if !ok {
		return nil, fmt.Errorf("%w: no adapter for %q", treesitter.ErrUnsupportedLanguage, lang)
	}
	h, err := e.grammars.Parser(a.GrammarName())
	if err != nil {
		return nil, err
	}
	tree, err := h.Parse(source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	if tree.HasErrors() {
		e.log.Debug("source has syntax errors", zap.String("file", path), zap.String("language", lang))
	}

	f := &fileRun{path: path, language: lang, adapter: a, tree: tree, kinds: a.SymbolKinds()}

	plans := make([]plan, 0, len(rules))
	var lits []string
	for _, d := range rules {
		p, skip := e.plan(f, d)
		if skip {
			continue
		}
		for _, c := range p.clauses {
			lits = append(lits, c...)
		}
		plans = append(plans, p)
	}

	var present map[string]bool
	if len(lits) > 0 {
		present = e.matcher(lits).Present(source)
	}

	var out []rule.Violation
	for i := range plans {
		p := &plans[i]
		ev := e.evaluate(f, p, present)
		if ev.err != nil {
			e.log.Warn("rule failed",
				zap.String("rule", p.def.Name),
				zap.String("language", lang),
				zap.String("file", path),
				zap.Error(ev.err))
			out = append(out, rule.NewSystemError(p.def, path, lang, ev.err))
			continue
		}
		out = append(out, ev.violations...)
	}
	rule.SortViolations(out)
	return out, nil
}

// plan resolves a rule's query. skip is true when the rule does not apply
// to the file's language.
func (e *Engine) plan(f *fileRun, d *rule.Definition) (plan, bool) {
	p := plan{def: d}
	gq, err := e.gen.Query(d, f.adapter)
	if err != nil {
		if querygen.Skippable(err) {
			e.log.Debug("rule skipped",
				zap.String("rule", d.Name),
				zap.String("language", f.language),
				zap.Error(err))
			return p, true
		}
		p.err = err
		return p, false
	}
	q, err := e.grammars.Compile(f.adapter.GrammarName(), gq.Query)
	if err != nil {
		p.err = fmt.Errorf("template %s: %w", gq.TemplateKey, err)
		return p, false
	}
	p.query = q
	if le := e.literalsFor(gq.Query); le.ok {
		p.clauses = le.clauses
	}
	return p, false
}

// evaluate runs one planned rule. A panic inside query execution is
// confined to the rule.
func (e *Engine) evaluate(f *fileRun, p *plan, present map[string]bool) (ev evaluation) {
	if p.err != nil {
		return evaluation{err: p.err}
	}
	if p.clauses != nil && !couldMatch(p.clauses, present) {
		return evaluation{}
	}
	defer func() {
		if r := recover(); r != nil {
			ev = evaluation{err: fmt.Errorf("query execution: %v", r)}
		}
	}()

	var prog *vm.Program
	if src := p.def.Config.Filter; src != "" {
		fe := e.filterFor(src)
		if fe.err != nil {
			return evaluation{err: fe.err}
		}
		prog = fe.prog
	}

	type pos struct{ line, col int }
	seen := make(map[pos]bool)
	var vs []rule.Violation
	for _, m := range p.query.Matches(f.tree) {
		c, ok := anchor(m)
		if !ok {
			continue
		}
		if prog != nil {
			keep, err := rule.EvalFilter(prog, matchEnv(f, c, m))
			if err != nil {
				return evaluation{err: err}
			}
			if !keep {
				continue
			}
		}
		v := f.violation(p.def, c)
		k := pos{v.Line, v.Column}
		if seen[k] {
			continue
		}
		seen[k] = true
		vs = append(vs, v)
	}
	return evaluation{violations: vs}
}

// anchor picks the capture a violation is reported at.
func anchor(m treesitter.Match) (treesitter.Capture, bool) {
	if len(m.Captures) == 0 {
		return treesitter.Capture{}, false
	}
	for _, name := range []string{CaptureMatch, CaptureTarget} {
		for _, c := range m.Captures {
			if c.Name == name {
				return c, true
			}
		}
	}
	return m.Captures[0], true
}

func matchEnv(f *fileRun, c treesitter.Capture, m treesitter.Match) rule.MatchEnv {
	env := rule.MatchEnv{
		Text:     c.Text,
		Kind:     c.Kind,
		Line:     int(c.StartRow) + 1,
		Column:   int(c.StartColumn),
		Lines:    int(c.EndRow-c.StartRow) + 1,
		Language: f.language,
		File:     f.path,
		Captures: make(map[string]string, len(m.Captures)),
		Counts:   make(map[string]int, len(m.Captures)),
	}
	for _, mc := range m.Captures {
		env.Captures[mc.Name] = mc.Text
		env.Counts[mc.Name] = int(mc.NamedChildren)
	}
	return env
}

func (f *fileRun) violation(d *rule.Definition, c treesitter.Capture) rule.Violation {
	msg := d.Message
	if msg == "" {
		msg = d.Description
	}
	if msg == "" {
		msg = d.Name
	}
	n := c.Node
	return rule.Violation{
		Rule:      d.Name,
		Severity:  d.Severity,
		File:      f.path,
		Language:  f.language,
		Line:      int(c.StartRow) + 1,
		Column:    int(c.StartColumn),
		EndLine:   int(c.EndRow) + 1,
		EndColumn: int(c.EndColumn),
		Snippet:   c.Text,
		Message:   msg,
		Symbol:    treesitter.EnclosingSymbol(&n, f.tree.Source, f.kinds),
	}
}

func (e *Engine) filterFor(src string) filterEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fe, ok := e.filters[src]; ok {
		return fe
	}
	prog, err := rule.CompileFilter(src)
	fe := filterEntry{prog: prog, err: err}
	e.filters[src] = fe
	return fe
}

func (e *Engine) literalsFor(query string) literalEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	if le, ok := e.literals[query]; ok {
		return le
	}
	clauses, ok := requiredLiterals(query)
	le := literalEntry{clauses: clauses, ok: ok}
	e.literals[query] = le
	return le
}
