//go:build lean

package treesitter

// Lean builds carry no compiled-in grammars; every grammar is loaded from a
// shared library through the DynamicLoader.
//
// Build with: go build -tags lean ./cmd/codeguard/

func (r *Registry) registerBuiltinLanguages() {}
