// Package catalog holds the live set of rule definitions and language
// adapters. Replacing an entry bumps its revision so cached generated
// queries built from the old version are never reused.
package catalog

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/corey/codeguard/internal/domain/language"
	"github.com/corey/codeguard/internal/domain/rule"
)

var (
	// ErrDuplicateRule is returned by Load when two rules share a name.
	ErrDuplicateRule = errors.New("duplicate rule name")
	// ErrDuplicateAdapter is returned by Load when two adapters share a language.
	ErrDuplicateAdapter = errors.New("duplicate adapter language")
)

// ChangeKind says what a Change touched.
type ChangeKind int

const (
	RuleChanged ChangeKind = iota
	AdapterChanged
)

// Change is delivered to OnChange subscribers after the catalog is updated.
// Name is the rule name or language tag. Removed is set when Load dropped
// the entry.
type Change struct {
	Kind    ChangeKind
	Name    string
	Removed bool
}

// Filter selects rules. Zero values match everything.
type Filter struct {
	Categories  []rule.Category
	MinSeverity rule.Severity
	Tags        []string
	Language    string
}

func (f Filter) match(d *rule.Definition) bool {
	if len(f.Categories) > 0 {
		ok := false
		for _, c := range f.Categories {
			if d.Category == c {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if d.Severity < f.MinSeverity {
		return false
	}
	for _, t := range f.Tags {
		if !d.HasTag(t) {
			return false
		}
	}
	if f.Language != "" && !d.AppliesTo(f.Language) {
		return false
	}
	return true
}

// Catalog is safe for concurrent use.
type Catalog struct {
	mu       sync.RWMutex
	rules    map[string]*rule.Definition
	adapters map[string]*language.Adapter
	revision uint64

	subMu sync.Mutex
	subs  []func(Change)
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		rules:    make(map[string]*rule.Definition),
		adapters: make(map[string]*language.Adapter),
	}
}

// OnChange registers fn to be called after every mutation. Callbacks run
// synchronously on the mutating goroutine, outside the catalog lock.
func (c *Catalog) OnChange(fn func(Change)) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subs = append(c.subs, fn)
}

func (c *Catalog) notify(ch Change) {
	c.subMu.Lock()
	subs := append([]func(Change){}, c.subs...)
	c.subMu.Unlock()
	for _, fn := range subs {
		fn(ch)
	}
}

// nextRevision must be called with mu held.
func (c *Catalog) nextRevision() uint64 {
	c.revision++
	return c.revision
}

// PutRule stores a copy of d, replacing any rule with the same name.
func (c *Catalog) PutRule(d *rule.Definition) error {
	if err := rule.Validate(d); err != nil {
		return err
	}
	cp := *d
	c.mu.Lock()
	cp.Revision = c.nextRevision()
	c.rules[cp.Name] = &cp
	c.mu.Unlock()
	c.notify(Change{Kind: RuleChanged, Name: cp.Name})
	return nil
}

// Rule returns a rule by name.
func (c *Catalog) Rule(name string) (*rule.Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.rules[name]
	return d, ok
}

// Rules returns the rules matching f, sorted by name.
func (c *Catalog) Rules(f Filter) []*rule.Definition {
	c.mu.RLock()
	out := make([]*rule.Definition, 0, len(c.rules))
	for _, d := range c.rules {
		if f.match(d) {
			out = append(out, d)
		}
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PutAdapter stores a copy of a, replacing any adapter for the same language.
func (c *Catalog) PutAdapter(a *language.Adapter) error {
	if a.Language == "" {
		return errors.New("adapter: language is required")
	}
	cp := *a
	c.mu.Lock()
	cp.Revision = c.nextRevision()
	c.adapters[cp.Language] = &cp
	c.mu.Unlock()
	c.notify(Change{Kind: AdapterChanged, Name: cp.Language})
	return nil
}

// Adapter returns the adapter for a language tag.
func (c *Catalog) Adapter(lang string) (*language.Adapter, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.adapters[lang]
	return a, ok
}

// Adapters returns every adapter sorted by language.
func (c *Catalog) Adapters() []*language.Adapter {
	c.mu.RLock()
	out := make([]*language.Adapter, 0, len(c.adapters))
	for _, a := range c.adapters {
		out = append(out, a)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Language < out[j].Language })
	return out
}

// AdapterForPath picks the adapter whose extensions include the file's
// extension. When several adapters claim it, the first language in sort
// order wins.
func (c *Catalog) AdapterForPath(path string) (*language.Adapter, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return nil, false
	}
	for _, a := range c.Adapters() {
		for _, e := range a.Extensions {
			if e == ext {
				return a, true
			}
		}
	}
	return nil, false
}

// Load replaces the whole catalog. Nothing changes if the input has
// duplicate names or an invalid rule. Entries identical to the live ones
// keep their revision; every added, changed or dropped entry is reported
// to subscribers, rules first, each group sorted by name.
func (c *Catalog) Load(rules []*rule.Definition, adapters []*language.Adapter) error {
	nr := make(map[string]*rule.Definition, len(rules))
	for _, d := range rules {
		if _, dup := nr[d.Name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateRule, d.Name)
		}
		if err := rule.Validate(d); err != nil {
			return err
		}
		cp := *d
		nr[d.Name] = &cp
	}
	na := make(map[string]*language.Adapter, len(adapters))
	for _, a := range adapters {
		if _, dup := na[a.Language]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateAdapter, a.Language)
		}
		cp := *a
		na[a.Language] = &cp
	}

	var ruleChanges, adapterChanges []Change
	c.mu.Lock()
	for name, d := range nr {
		if old, ok := c.rules[name]; ok && sameRule(old, d) {
			nr[name] = old
			continue
		}
		d.Revision = c.nextRevision()
		ruleChanges = append(ruleChanges, Change{Kind: RuleChanged, Name: name})
	}
	for name := range c.rules {
		if _, ok := nr[name]; !ok {
			ruleChanges = append(ruleChanges, Change{Kind: RuleChanged, Name: name, Removed: true})
		}
	}
	for lang, a := range na {
		if old, ok := c.adapters[lang]; ok && sameAdapter(old, a) {
			na[lang] = old
			continue
		}
		a.Revision = c.nextRevision()
		adapterChanges = append(adapterChanges, Change{Kind: AdapterChanged, Name: lang})
	}
	for lang := range c.adapters {
		if _, ok := na[lang]; !ok {
			adapterChanges = append(adapterChanges, Change{Kind: AdapterChanged, Name: lang, Removed: true})
		}
	}
	c.rules, c.adapters = nr, na
	c.mu.Unlock()

	sortChanges(ruleChanges)
	sortChanges(adapterChanges)
	for _, ch := range append(ruleChanges, adapterChanges...) {
		c.notify(ch)
	}
	return nil
}

func sameRule(a, b *rule.Definition) bool {
	x, y := *a, *b
	x.Revision, y.Revision = 0, 0
	return reflect.DeepEqual(x, y)
}

func sameAdapter(a, b *language.Adapter) bool {
	x, y := *a, *b
	x.Revision, y.Revision = 0, 0
	return reflect.DeepEqual(x, y)
}

func sortChanges(cs []Change) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Name < cs[j].Name })
}

// Counts returns the number of rules and adapters.
func (c *Catalog) Counts() (rules, adapters int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rules), len(c.adapters)
}
