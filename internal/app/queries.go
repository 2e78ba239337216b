package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/corey/codeguard/internal/adapters/treesitter"
	"github.com/corey/codeguard/internal/domain/catalog"
	"github.com/corey/codeguard/internal/domain/language"
	"github.com/corey/codeguard/internal/domain/querygen"
)

// Query returns the generated query for one (rule, language) pair through
// the generator cache.
func (a *App) Query(ruleName, lang string) (querygen.GeneratedQuery, error) {
	d, ok := a.Catalog.Rule(ruleName)
	if !ok {
		return querygen.GeneratedQuery{}, fmt.Errorf("%w: %s", ErrUnknownRule, ruleName)
	}
	ad, ok := a.Catalog.Adapter(lang)
	if !ok {
		return querygen.GeneratedQuery{}, fmt.Errorf("%w: no adapter for %q", treesitter.ErrUnsupportedLanguage, lang)
	}
	return a.Generator.Query(d, ad)
}

// GenerateQueries generates every rule for every adapter (or for one
// language when lang is set) and upserts the results when a store is
// configured.
func (a *App) GenerateQueries(lang string) (querygen.Summary, error) {
	adapters := a.Catalog.Adapters()
	if lang != "" {
		ad, ok := a.Catalog.Adapter(lang)
		if !ok {
			return querygen.Summary{}, fmt.Errorf("%w: no adapter for %q", treesitter.ErrUnsupportedLanguage, lang)
		}
		adapters = []*language.Adapter{ad}
	}

	s := a.Generator.GenerateAll(a.Catalog.Rules(catalog.Filter{}), adapters)
	a.Log.Info("queries generated",
		zap.Int("generated", s.Generated),
		zap.Int("skipped", s.Skipped),
		zap.Int("errors", s.Errors))

	if a.Store != nil {
		for _, q := range s.Queries {
			if err := a.Store.SaveQuery(q); err != nil {
				return s, fmt.Errorf("save query %s/%s: %w", q.Rule, q.Language, err)
			}
		}
	}
	return s, nil
}
