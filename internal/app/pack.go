package app

import (
	"fmt"
	"os"

	"github.com/corey/codeguard/internal/domain/language"
	"github.com/corey/codeguard/internal/domain/rule"
	"github.com/corey/codeguard/rulepack"
)

// PackSources lists where rules and adapters come from.
type PackSources struct {
	NoBuiltin    bool
	RulesDirs    []string
	AdaptersDirs []string
}

// LoadPack reads the embedded rule pack (unless NoBuiltin) followed by every
// user directory in order. A later source replaces an earlier rule or adapter
// of the same name; duplicates within one directory are errors.
func LoadPack(src PackSources) ([]*rule.Definition, []*language.Adapter, error) {
	var ruleSets [][]*rule.Definition
	var adapterSets [][]*language.Adapter

	if !src.NoBuiltin {
		rs, err := rule.LoadRulesFromFS(rulepack.FS, rulepack.RulesDir)
		if err != nil {
			return nil, nil, fmt.Errorf("builtin rules: %w", err)
		}
		as, err := language.LoadAdaptersFromFS(rulepack.FS, rulepack.AdaptersDir)
		if err != nil {
			return nil, nil, fmt.Errorf("builtin adapters: %w", err)
		}
		ruleSets = append(ruleSets, rs)
		adapterSets = append(adapterSets, as)
	}
	for _, dir := range src.RulesDirs {
		rs, err := rule.LoadRulesFromFS(os.DirFS(dir), ".")
		if err != nil {
			return nil, nil, fmt.Errorf("rules %s: %w", dir, err)
		}
		ruleSets = append(ruleSets, rs)
	}
	for _, dir := range src.AdaptersDirs {
		as, err := language.LoadAdaptersFromFS(os.DirFS(dir), ".")
		if err != nil {
			return nil, nil, fmt.Errorf("adapters %s: %w", dir, err)
		}
		adapterSets = append(adapterSets, as)
	}

	return mergeRules(ruleSets), mergeAdapters(adapterSets), nil
}

func mergeRules(sets [][]*rule.Definition) []*rule.Definition {
	var out []*rule.Definition
	at := make(map[string]int)
	for _, set := range sets {
		for _, d := range set {
			if i, ok := at[d.Name]; ok {
				out[i] = d
				continue
			}
			at[d.Name] = len(out)
			out = append(out, d)
		}
	}
	return out
}

func mergeAdapters(sets [][]*language.Adapter) []*language.Adapter {
	var out []*language.Adapter
	at := make(map[string]int)
	for _, set := range sets {
		for _, a := range set {
			if i, ok := at[a.Language]; ok {
				out[i] = a
				continue
			}
			at[a.Language] = len(out)
			out = append(out, a)
		}
	}
	return out
}
