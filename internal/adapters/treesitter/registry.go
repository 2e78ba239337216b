// Package treesitter is the grammar registry. It owns one tree-sitter
// language handle per language, a pool of parsers per handle, and a cache of
// compiled queries.
//
// Grammars are compiled in via CGo for the default build; any other grammar
// can be loaded at runtime from a shared library through the purego
// DynamicLoader.
package treesitter

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// ErrUnsupportedLanguage is returned when no grammar is registered or
// loadable for a language.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Registry hands out shared, lazily created grammar handles. Safe for
// concurrent use.
type Registry struct {
	mu       sync.Mutex
	builtins map[string]func() *tree_sitter.Language
	langs    map[string]*tree_sitter.Language
	handles  map[string]*ParserHandle
	loader   *DynamicLoader

	qmu     sync.RWMutex
	queries map[queryKey]compiled

	poolSize int
}

// NewRegistry creates a registry with every compiled-in grammar registered.
// Nothing is instantiated until first use.
func NewRegistry() *Registry {
	r := &Registry{
		builtins: make(map[string]func() *tree_sitter.Language),
		langs:    make(map[string]*tree_sitter.Language),
		handles:  make(map[string]*ParserHandle),
		queries:  make(map[queryKey]compiled),
		poolSize: runtime.GOMAXPROCS(0),
	}
	r.registerBuiltinLanguages()
	return r
}

// addLang registers a lazy constructor for a compiled-in grammar.
func (r *Registry) addLang(name string, fn func() *tree_sitter.Language) {
	r.builtins[name] = fn
}

// SetGrammarPaths enables runtime loading of grammars from shared libraries
// in the given directories, searched in order.
func (r *Registry) SetGrammarPaths(paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loader = NewDynamicLoader(paths)
}

// Loader returns the dynamic grammar loader, or nil if not configured.
func (r *Registry) Loader() *DynamicLoader {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loader
}

// Grammar returns the language handle for name, creating it on first use.
func (r *Registry) Grammar(name string) (*tree_sitter.Language, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.grammarLocked(name)
}

func (r *Registry) grammarLocked(name string) (*tree_sitter.Language, error) {
	if l, ok := r.langs[name]; ok {
		return l, nil
	}
	if fn, ok := r.builtins[name]; ok {
		l := fn()
		if l == nil {
			return nil, fmt.Errorf("%w: %s grammar returned nil", ErrUnsupportedLanguage, name)
		}
		r.langs[name] = l
		return l, nil
	}
	if r.loader != nil {
		l, err := r.loader.LoadGrammar(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedLanguage, name, err)
		}
		r.langs[name] = l
		return l, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, name)
}

// Parser returns the parser handle for name. Every call for the same
// language returns the same handle.
func (r *Registry) Parser(name string) (*ParserHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handles[name]; ok {
		return h, nil
	}
	l, err := r.grammarLocked(name)
	if err != nil {
		return nil, err
	}
	h := &ParserHandle{
		language: name,
		lang:     l,
		free:     make(chan *tree_sitter.Parser, r.poolSize),
	}
	r.handles[name] = h
	return h, nil
}

// HasLanguage reports whether a grammar is compiled in or loadable.
func (r *Registry) HasLanguage(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.builtins[name]; ok {
		return true
	}
	if _, ok := r.langs[name]; ok {
		return true
	}
	return r.loader != nil && r.loader.GrammarPath(name) != ""
}

// IsBuiltin reports whether a grammar is compiled into the binary.
func (r *Registry) IsBuiltin(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.builtins[name]
	return ok
}

// HasNodeKind reports whether the grammar defines a named node kind.
// Unknown grammars report false.
func (r *Registry) HasNodeKind(grammar, kind string) bool {
	l, err := r.Grammar(grammar)
	if err != nil {
		return false
	}
	return l.IdForNodeKind(kind, true) != 0
}

// Languages returns every compiled-in and installed grammar name, sorted.
func (r *Registry) Languages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	for name := range r.builtins {
		seen[name] = true
	}
	if r.loader != nil {
		for _, name := range r.loader.InstalledGrammars() {
			seen[name] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Close releases pooled parsers and compiled queries.
func (r *Registry) Close() {
	r.mu.Lock()
	for _, h := range r.handles {
		h.drain()
	}
	r.handles = make(map[string]*ParserHandle)
	r.mu.Unlock()

	r.qmu.Lock()
	for k, c := range r.queries {
		if c.query != nil {
			c.query.q.Close()
		}
		delete(r.queries, k)
	}
	r.qmu.Unlock()
}

// ParserHandle parses source for one language. Parsers are not safe for
// concurrent use, so the handle keeps a small free list and each Parse
// borrows one.
type ParserHandle struct {
	language string
	lang     *tree_sitter.Language
	free     chan *tree_sitter.Parser
}

// Language returns the handle's language name.
func (h *ParserHandle) Language() string { return h.language }

// Parse parses source into a tree. The caller must Close the tree.
func (h *ParserHandle) Parse(source []byte) (*Tree, error) {
	p, err := h.get()
	if err != nil {
		return nil, err
	}
	t := p.Parse(source, nil)
	h.put(p)
	if t == nil {
		return nil, fmt.Errorf("parse %s: no tree produced", h.language)
	}
	return &Tree{tree: t, Source: source, Language: h.language}, nil
}

func (h *ParserHandle) get() (*tree_sitter.Parser, error) {
	select {
	case p := <-h.free:
		return p, nil
	default:
	}
	p := tree_sitter.NewParser()
	if err := p.SetLanguage(h.lang); err != nil {
		p.Close()
		return nil, fmt.Errorf("set language %s: %w", h.language, err)
	}
	return p, nil
}

func (h *ParserHandle) put(p *tree_sitter.Parser) {
	select {
	case h.free <- p:
	default:
		p.Close()
	}
}

func (h *ParserHandle) drain() {
	for {
		select {
		case p := <-h.free:
			p.Close()
		default:
			return
		}
	}
}

// Tree is a parsed source file. Source must stay unmodified while the tree
// is in use.
type Tree struct {
	tree     *tree_sitter.Tree
	Source   []byte
	Language string
}

// Root returns the root node.
func (t *Tree) Root() *tree_sitter.Node {
	return t.tree.RootNode()
}

// HasErrors reports whether the parser had to recover from syntax errors.
func (t *Tree) HasErrors() bool {
	return t.tree.RootNode().HasError()
}

// Close frees the tree.
func (t *Tree) Close() {
	if t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}
