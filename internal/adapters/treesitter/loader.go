package treesitter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// ErrGrammarNotFound is returned when no shared library for a grammar
// exists in any search path.
var ErrGrammarNotFound = errors.New("grammar shared library not found")

// grammarLib is the outcome of opening one grammar library. A failed open
// is remembered so a broken library is reported once instead of being
// reopened on every lookup.
type grammarLib struct {
	path string
	lang *tree_sitter.Language
	err  error
}

// DynamicLoader opens tree-sitter grammars from shared libraries (.so on
// Linux, .dylib on macOS) through purego, for adapters whose grammar is not
// compiled into the binary.
type DynamicLoader struct {
	searchPaths []string

	mu   sync.Mutex
	libs map[string]*grammarLib
}

// NewDynamicLoader creates a loader over searchPaths; earlier paths shadow
// later ones.
func NewDynamicLoader(searchPaths []string) *DynamicLoader {
	return &DynamicLoader{
		searchPaths: searchPaths,
		libs:        make(map[string]*grammarLib),
	}
}

// DefaultGrammarPaths returns the project-local grammar directory
// (.codeguard/grammars) followed by the per-user one.
func DefaultGrammarPaths(projectRoot string) []string {
	var paths []string
	if projectRoot != "" {
		paths = append(paths, filepath.Join(projectRoot, ".codeguard", "grammars"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".codeguard", "grammars"))
	}
	return paths
}

// LibExtension returns the shared library extension for the current platform.
func LibExtension() string {
	if runtime.GOOS == "darwin" {
		return ".dylib"
	}
	return ".so"
}

// grammar names whose exported C symbol is not tree_sitter_{name}.
var symbolOverrides = map[string]string{
	"csharp": "tree_sitter_c_sharp",
}

// CSymbolName returns the C function name exporting a grammar.
func CSymbolName(lang string) string {
	if sym, ok := symbolOverrides[lang]; ok {
		return sym
	}
	return "tree_sitter_" + strings.ReplaceAll(lang, "-", "_")
}

// LoadGrammar returns the grammar for lang, opening its library on first
// use. A missing library is looked up again on the next call, so a grammar
// installed while the process runs is picked up; a library that failed to
// open keeps failing with the same error until Close.
func (dl *DynamicLoader) LoadGrammar(lang string) (*tree_sitter.Language, error) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	if lib, ok := dl.libs[lang]; ok {
		return lib.lang, lib.err
	}
	path := dl.GrammarPath(lang)
	if path == "" {
		return nil, fmt.Errorf("grammar %q: %w (searched %s)",
			lang, ErrGrammarNotFound, strings.Join(dl.searchPaths, ", "))
	}
	lib := openGrammarLib(lang, path)
	dl.libs[lang] = lib
	return lib.lang, lib.err
}

func openGrammarLib(lang, path string) *grammarLib {
	lib := &grammarLib{path: path}
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		lib.err = fmt.Errorf("grammar %q: open %s: %w", lang, path, err)
		return lib
	}
	sym := CSymbolName(lang)
	fn, err := purego.Dlsym(handle, sym)
	if err != nil {
		lib.err = fmt.Errorf("grammar %q: %s does not export %s: %w", lang, path, sym, err)
		return lib
	}
	ptr, _, _ := purego.SyscallN(fn)
	if ptr == 0 {
		lib.err = fmt.Errorf("grammar %q: %s() returned null", lang, sym)
		return lib
	}
	// ptr is a static TSLanguage* owned by the library, not Go memory.
	lib.lang = tree_sitter.NewLanguage(*(*unsafe.Pointer)(unsafe.Pointer(&ptr)))
	return lib
}

// LoadError returns the error from the last attempt to open lang's library,
// or nil when it loaded or was never tried.
func (dl *DynamicLoader) LoadError(lang string) error {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	if lib, ok := dl.libs[lang]; ok {
		return lib.err
	}
	return nil
}

// GrammarPath returns the shared library for lang, or "" if none exists.
func (dl *DynamicLoader) GrammarPath(lang string) string {
	name := lang + LibExtension()
	for _, dir := range dl.searchPaths {
		p := filepath.Join(dir, name)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}

// InstalledGrammars returns the grammar names found in the search paths,
// sorted and deduplicated.
func (dl *DynamicLoader) InstalledGrammars() []string {
	ext := LibExtension()
	set := make(map[string]struct{})
	for _, dir := range dl.searchPaths {
		matches, _ := filepath.Glob(filepath.Join(dir, "*"+ext))
		for _, m := range matches {
			if fi, err := os.Stat(m); err != nil || fi.IsDir() {
				continue
			}
			set[strings.TrimSuffix(filepath.Base(m), ext)] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Close forgets every opened library, including failures. Libraries stay
// mapped since languages handed out may still back live parsers.
func (dl *DynamicLoader) Close() {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	dl.libs = make(map[string]*grammarLib)
}

// SearchPaths returns the configured search paths.
func (dl *DynamicLoader) SearchPaths() []string {
	return dl.searchPaths
}
