//go:build !lean

package treesitter

// This file registers the compiled-in grammars. It is part of the default
// build and excluded with -tags lean, which leaves grammar loading to the
// DynamicLoader.
//
// To add a language: import its bindings/go package, add one addLang line,
// and ship a matching adapter under rulepack/adapters.

import (
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	ts_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	ts_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	ts_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	ts_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	ts_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// langPtr wraps a Language() call that returns unsafe.Pointer.
func langPtr(p unsafe.Pointer) *tree_sitter.Language {
	return tree_sitter.NewLanguage(p)
}

// registerBuiltinLanguages adds lazy constructors for compiled-in grammars.
func (r *Registry) registerBuiltinLanguages() {
	r.addLang("javascript", func() *tree_sitter.Language { return langPtr(ts_javascript.Language()) })
	r.addLang("typescript", func() *tree_sitter.Language { return langPtr(ts_typescript.LanguageTypescript()) })
	r.addLang("tsx", func() *tree_sitter.Language { return langPtr(ts_typescript.LanguageTSX()) })
	r.addLang("python", func() *tree_sitter.Language { return langPtr(ts_python.Language()) })
	r.addLang("java", func() *tree_sitter.Language { return langPtr(ts_java.Language()) })
	r.addLang("go", func() *tree_sitter.Language { return langPtr(ts_go.Language()) })
}
