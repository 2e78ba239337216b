// Package language holds the per-language half of the rule engine: which
// grammar node types realise each abstract category, and the parameterised
// query templates the generator fills in. Adapters are plain data loaded
// from YAML; they are replaced wholesale, never mutated in place.
package language

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Node-type mapping keys used for enclosing-symbol lookup.
const (
	NodeFunctionDeclaration = "FUNCTION_DECLARATION"
	NodeMethodDeclaration   = "METHOD_DECLARATION"
	NodeClassDeclaration    = "CLASS_DECLARATION"
)

// Adapter maps abstract categories and template keys to one grammar.
type Adapter struct {
	Language         string            `yaml:"language" json:"language"`
	DisplayName      string            `yaml:"displayName" json:"displayName"`
	Grammar          string            `yaml:"grammar,omitempty" json:"grammar,omitempty"`
	Extensions       []string          `yaml:"extensions" json:"extensions"`
	NamingConvention string            `yaml:"namingConvention,omitempty" json:"namingConvention,omitempty"`
	NodeTypes        map[string]string `yaml:"nodeTypes" json:"nodeTypes"`
	Templates        map[string]string `yaml:"templates" json:"templates"`

	// Revision is bumped by the catalog every time the adapter is replaced.
	Revision uint64 `yaml:"-" json:"revision"`
}

// GrammarName is the registry key for this adapter's grammar. Defaults to
// the language tag.
func (a *Adapter) GrammarName() string {
	if a.Grammar != "" {
		return a.Grammar
	}
	return a.Language
}

// Template returns the template for key.
func (a *Adapter) Template(key string) (string, bool) {
	t, ok := a.Templates[key]
	return t, ok
}

// TemplateKeys returns template keys in sorted order.
func (a *Adapter) TemplateKeys() []string {
	keys := make([]string, 0, len(a.Templates))
	for k := range a.Templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SymbolKinds returns the node types that name an enclosing symbol
// (functions, methods, classes).
func (a *Adapter) SymbolKinds() []string {
	var kinds []string
	for _, key := range []string{NodeFunctionDeclaration, NodeMethodDeclaration, NodeClassDeclaration} {
		if k := a.NodeTypes[key]; k != "" {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// LoadAdaptersFromFS loads every *.yaml file in dir, one adapter per file.
// Language tags must be unique.
func LoadAdaptersFromFS(fsys fs.FS, dir string) ([]*Adapter, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read adapters dir %q: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	var out []*Adapter
	seen := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		a, err := ParseAdapter(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if prev, ok := seen[a.Language]; ok {
			return nil, fmt.Errorf("duplicate adapter for %q (first in %s, again in %s)", a.Language, prev, name)
		}
		seen[a.Language] = name
		out = append(out, a)
	}
	return out, nil
}

// ParseAdapter decodes one adapter document.
func ParseAdapter(data []byte) (*Adapter, error) {
	var a Adapter
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse adapter: %w", err)
	}
	a.Language = strings.ToLower(strings.TrimSpace(a.Language))
	if a.Language == "" {
		return nil, fmt.Errorf("adapter missing language")
	}
	for i, ext := range a.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		a.Extensions[i] = ext
	}
	for k, t := range a.Templates {
		a.Templates[k] = strings.TrimSpace(t)
	}
	if a.NodeTypes == nil {
		a.NodeTypes = map[string]string{}
	}
	if a.Templates == nil {
		a.Templates = map[string]string{}
	}
	return &a, nil
}
