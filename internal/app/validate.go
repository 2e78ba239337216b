package app

import (
	"github.com/corey/codeguard/internal/domain/catalog"
	"github.com/corey/codeguard/internal/domain/language"
)

// ValidateAdapters runs the design-time checks over every loaded adapter:
// static template checks, node kinds against the grammar, generation of
// every applicable rule, and compilation of each generated query.
func (a *App) ValidateAdapters() []language.Problem {
	rules := a.Catalog.Rules(catalog.Filter{})
	var probs []language.Problem
	for _, ad := range a.Catalog.Adapters() {
		if !a.Grammars.HasLanguage(ad.GrammarName()) {
			probs = append(probs, language.Validate(ad, nil)...)
			probs = append(probs, language.Problem{
				Language: ad.Language,
				Message:  "grammar " + ad.GrammarName() + " is not available",
			})
			continue
		}
		probs = append(probs, language.Validate(ad, a.Grammars)...)
		probs = append(probs, a.Generator.Check(rules, ad)...)

		qs, _ := a.Generator.QueriesForLanguage(rules, ad)
		for _, q := range qs {
			if _, err := a.Grammars.Compile(ad.GrammarName(), q.Query); err != nil {
				probs = append(probs, language.Problem{
					Language:    ad.Language,
					TemplateKey: q.TemplateKey,
					Rule:        q.Rule,
					Message:     err.Error(),
				})
			}
		}
	}
	language.SortProblems(probs)
	return probs
}
