package rule

import "sort"

// Info is the flattened, serializable view of a Definition.
type Info struct {
	Name             string              `json:"name"`
	DisplayName      string              `json:"displayName,omitempty"`
	Description      string              `json:"description,omitempty"`
	Message          string              `json:"message"`
	Category         Category            `json:"category"`
	Severity         Severity            `json:"severity"`
	PatternType      PatternType         `json:"patternType"`
	Tags             []string            `json:"tags,omitempty"`
	Languages        []string            `json:"languages,omitempty"`
	TemplateKey      string              `json:"templateKey,omitempty"`
	Names            []string            `json:"names,omitempty"`
	Values           map[string]string   `json:"values,omitempty"`
	LanguageSpecific map[string]Override `json:"languageSpecific,omitempty"`
	Query            string              `json:"query,omitempty"`
	Filter           string              `json:"filter,omitempty"`
	Revision         uint64              `json:"revision"`
}

// Info flattens the definition. Shape bindings appear as Names and Values.
func (d *Definition) Info() Info {
	in := Info{
		Name:             d.Name,
		DisplayName:      d.DisplayName,
		Description:      d.Description,
		Message:          d.Message,
		Category:         d.Category,
		Severity:         d.Severity,
		PatternType:      d.PatternType,
		Tags:             d.Tags,
		Languages:        d.Config.Languages,
		TemplateKey:      d.Config.TemplateKey,
		LanguageSpecific: d.Config.LanguageSpecific,
		Query:            d.Config.Query,
		Filter:           d.Config.Filter,
		Revision:         d.Revision,
	}
	if d.Config.Shape != nil {
		b := d.Config.Shape.Bindings()
		in.Names = b.Names
		if len(b.Values) > 0 {
			in.Values = b.Values
		}
	}
	return in
}

// Infos flattens defs, sorted by name.
func Infos(defs []*Definition) []Info {
	out := make([]Info, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
