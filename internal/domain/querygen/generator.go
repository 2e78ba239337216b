package querygen

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corey/codeguard/internal/domain/language"
	"github.com/corey/codeguard/internal/domain/rule"
)

var (
	// ErrTemplateNotFound means the adapter has no template for the rule.
	// Callers skip the rule for that language; it is not a failure.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrNotApplicable means the rule is restricted to other languages.
	ErrNotApplicable = errors.New("rule not applicable to language")
)

// RawTemplateKey labels queries that came from a hand-authored rule query.
const RawTemplateKey = "RAW"

// GeneratedQuery is the concrete query for one (rule, language) pair.
type GeneratedQuery struct {
	Rule            string    `json:"rule"`
	Language        string    `json:"language"`
	TemplateKey     string    `json:"templateKey"`
	Query           string    `json:"query"`
	RuleRevision    uint64    `json:"ruleRevision"`
	AdapterRevision uint64    `json:"adapterRevision"`
	GeneratedAt     time.Time `json:"generatedAt"`
}

// Skippable reports whether err means "this rule has nothing to say about
// this language" rather than a broken rule.
func Skippable(err error) bool {
	return errors.Is(err, ErrTemplateNotFound) || errors.Is(err, ErrNotApplicable)
}

// Generate builds the query for def in adapter a. It is deterministic:
// equal inputs always yield byte-identical output. GeneratedAt is left zero.
func Generate(def *rule.Definition, a *language.Adapter) (GeneratedQuery, error) {
	gq := GeneratedQuery{
		Rule:            def.Name,
		Language:        a.Language,
		RuleRevision:    def.Revision,
		AdapterRevision: a.Revision,
	}
	if !def.AppliesTo(a.Language) {
		return gq, fmt.Errorf("%w: %s excludes %s", ErrNotApplicable, def.Name, a.Language)
	}

	var base rule.Bindings
	if def.Config.Shape != nil {
		base = def.Config.Shape.Bindings()
	}
	ov, _ := def.OverrideFor(a.Language)
	b := mergeBindings(base, ov)

	key, tmpl, err := resolve(def, a, ov, b)
	if err != nil {
		return gq, err
	}
	gq.TemplateKey = key
	q, err := Interpolate(key, tmpl, b)
	if err != nil {
		return gq, fmt.Errorf("rule %s for %s: %w", def.Name, a.Language, err)
	}
	gq.Query = q
	return gq, nil
}

// resolve picks the template: a raw query, then the explicit key, then the
// first fallback that can be filled and consumes every bound value.
func resolve(def *rule.Definition, a *language.Adapter, ov rule.Override, b rule.Bindings) (string, string, error) {
	if ov.Query != "" {
		return RawTemplateKey, ov.Query, nil
	}
	if def.Config.Query != "" {
		return RawTemplateKey, def.Config.Query, nil
	}

	explicit := ov.TemplateKey
	if explicit == "" {
		explicit = def.Config.TemplateKey
	}
	if explicit != "" {
		if t, ok := a.Template(explicit); ok {
			return explicit, t, nil
		}
	}

	var present []string
	for _, k := range fallbacks[def.PatternType] {
		if _, ok := a.Template(k); ok {
			present = append(present, k)
		}
	}
	if len(present) == 0 {
		tried := Fallbacks(def.PatternType)
		if explicit != "" {
			tried = append([]string{explicit}, tried...)
		}
		return "", "", fmt.Errorf("%w: rule %s in %s (tried %s)",
			ErrTemplateNotFound, def.Name, a.Language, strings.Join(tried, ", "))
	}

	for _, k := range present {
		if t := a.Templates[k]; satisfiable(t, b) && consumes(t, b) {
			return k, t, nil
		}
	}
	for _, k := range present {
		if t := a.Templates[k]; satisfiable(t, b) {
			return k, t, nil
		}
	}
	return present[0], a.Templates[present[0]], nil
}

// consumes reports whether tmpl uses every value the rule bound.
func consumes(tmpl string, b rule.Bindings) bool {
	used := map[string]bool{}
	for _, ph := range language.Placeholders(tmpl) {
		used[ph] = true
	}
	if len(b.Names) > 0 && !used[rule.PlaceholderName] {
		return false
	}
	for k, v := range b.Values {
		if v != "" && !used[k] {
			return false
		}
	}
	return true
}

type cacheKey struct {
	rule     string
	language string
}

type cacheEntry struct {
	query GeneratedQuery
	err   error
}

// Generator caches generated queries per (rule, language). An entry is
// reused only while both the rule and adapter revisions it was built from
// are current. Safe for concurrent use.
type Generator struct {
	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry
	hits    atomic.Uint64
	misses  atomic.Uint64
	now     func() time.Time
}

// NewGenerator returns an empty cache.
func NewGenerator() *Generator {
	return &Generator{
		entries: make(map[cacheKey]cacheEntry),
		now:     time.Now,
	}
}

// Query returns the cached query for (def, a), generating it on miss.
// Generation errors are cached alongside successes.
func (g *Generator) Query(def *rule.Definition, a *language.Adapter) (GeneratedQuery, error) {
	k := cacheKey{def.Name, a.Language}

	g.mu.RLock()
	e, ok := g.entries[k]
	g.mu.RUnlock()
	if ok && e.query.RuleRevision == def.Revision && e.query.AdapterRevision == a.Revision {
		g.hits.Add(1)
		return e.query, e.err
	}

	q, err := Generate(def, a)
	q.GeneratedAt = g.now()

	g.misses.Add(1)
	g.mu.Lock()
	g.entries[k] = cacheEntry{query: q, err: err}
	g.mu.Unlock()
	return q, err
}

// InvalidateRule drops every cached query for a rule.
func (g *Generator) InvalidateRule(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for k := range g.entries {
		if k.rule == name {
			delete(g.entries, k)
		}
	}
}

// InvalidateLanguage drops every cached query for a language.
func (g *Generator) InvalidateLanguage(lang string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for k := range g.entries {
		if k.language == lang {
			delete(g.entries, k)
		}
	}
}

// Reset empties the cache.
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries = make(map[cacheKey]cacheEntry)
}

// CacheStats reports cache size and hit counters.
type CacheStats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// Stats returns a snapshot of the cache counters.
func (g *Generator) Stats() CacheStats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return CacheStats{Entries: len(g.entries), Hits: g.hits.Load(), Misses: g.misses.Load()}
}

// Failure is one (rule, language) pair that could not be generated.
type Failure struct {
	Rule     string `json:"rule"`
	Language string `json:"language"`
	Error    string `json:"error"`
}

// Summary is the outcome of generating every rule for every adapter.
type Summary struct {
	Generated int              `json:"generated"`
	Skipped   int              `json:"skipped"`
	Errors    int              `json:"errors"`
	Queries   []GeneratedQuery `json:"queries"`
	Failures  []Failure        `json:"failures,omitempty"`
}

// GenerateAll generates every (rule, adapter) pair through the cache.
// Queries come back sorted by rule then language.
func (g *Generator) GenerateAll(defs []*rule.Definition, adapters []*language.Adapter) Summary {
	var s Summary
	for _, a := range adapters {
		for _, d := range defs {
			q, err := g.Query(d, a)
			switch {
			case err == nil:
				s.Generated++
				s.Queries = append(s.Queries, q)
			case Skippable(err):
				s.Skipped++
			default:
				s.Errors++
				s.Failures = append(s.Failures, Failure{Rule: d.Name, Language: a.Language, Error: err.Error()})
			}
		}
	}
	sort.Slice(s.Queries, func(i, j int) bool {
		if s.Queries[i].Rule != s.Queries[j].Rule {
			return s.Queries[i].Rule < s.Queries[j].Rule
		}
		return s.Queries[i].Language < s.Queries[j].Language
	})
	sort.Slice(s.Failures, func(i, j int) bool {
		if s.Failures[i].Rule != s.Failures[j].Rule {
			return s.Failures[i].Rule < s.Failures[j].Rule
		}
		return s.Failures[i].Language < s.Failures[j].Language
	})
	return s
}

// QueriesForLanguage returns the generated queries of every applicable rule
// for one adapter, skipping rules with no template.
func (g *Generator) QueriesForLanguage(defs []*rule.Definition, a *language.Adapter) ([]GeneratedQuery, []Failure) {
	s := g.GenerateAll(defs, []*language.Adapter{a})
	return s.Queries, s.Failures
}

// Check reports generation failures for one adapter as validation problems.
func (g *Generator) Check(defs []*rule.Definition, a *language.Adapter) []language.Problem {
	var probs []language.Problem
	for _, d := range defs {
		q, err := Generate(d, a)
		if err == nil || Skippable(err) {
			continue
		}
		probs = append(probs, language.Problem{
			Language:    a.Language,
			TemplateKey: q.TemplateKey,
			Rule:        d.Name,
			Message:     err.Error(),
		})
	}
	language.SortProblems(probs)
	return probs
}
