package report

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/corey/codeguard/internal/domain/rule"
)

const (
	sarifVersion = "2.1.0"
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"
)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version,omitempty"`
	Rules   []sarifRule `json:"rules"`
}

type sarifText struct {
	Text string `json:"text"`
}

type sarifRule struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name,omitempty"`
	ShortDescription     sarifText       `json:"shortDescription"`
	FullDescription      *sarifText      `json:"fullDescription,omitempty"`
	DefaultConfiguration sarifConfig     `json:"defaultConfiguration"`
	Properties           sarifProperties `json:"properties"`
}

type sarifConfig struct {
	Level string `json:"level"`
}

type sarifProperties struct {
	Tags []string `json:"tags,omitempty"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	RuleIndex int             `json:"ruleIndex"`
	Level     string          `json:"level"`
	Message   sarifText       `json:"message"`
	Locations []sarifLocation `json:"locations"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysical `json:"physicalLocation"`
}

type sarifPhysical struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
	Region           sarifRegion   `json:"region"`
}

type sarifArtifact struct {
	URI string `json:"uri"`
}

// sarifRegion columns are 1-based.
type sarifRegion struct {
	StartLine   int        `json:"startLine"`
	StartColumn int        `json:"startColumn"`
	EndLine     int        `json:"endLine,omitempty"`
	EndColumn   int        `json:"endColumn,omitempty"`
	Snippet     *sarifText `json:"snippet,omitempty"`
}

func sarifLevel(v rule.Violation) string {
	if v.IsSystemError || v.Severity == rule.SeverityCritical {
		return "error"
	}
	return "warning"
}

func writeSARIF(w io.Writer, run *rule.Run, opts Options) error {
	defs := make(map[string]*rule.Definition, len(opts.Rules))
	for _, d := range opts.Rules {
		defs[d.Name] = d
	}

	// Collect unique rules in name order so ruleIndex is stable.
	seen := make(map[string]rule.Violation)
	for _, f := range run.Files {
		for _, v := range f.Violations {
			if _, ok := seen[v.Rule]; !ok {
				seen[v.Rule] = v
			}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)

	index := make(map[string]int, len(names))
	rules := make([]sarifRule, 0, len(names))
	for i, n := range names {
		index[n] = i
		v := seen[n]
		sr := sarifRule{
			ID:                   n,
			ShortDescription:     sarifText{Text: v.Message},
			DefaultConfiguration: sarifConfig{Level: sarifLevel(v)},
		}
		if d, ok := defs[n]; ok {
			sr.Name = d.DisplayName
			if d.Description != "" {
				sr.FullDescription = &sarifText{Text: d.Description}
			}
			sr.Properties.Tags = append([]string{d.Category.String()}, d.Tags...)
		}
		rules = append(rules, sr)
	}

	results := make([]sarifResult, 0)
	for _, f := range run.Files {
		for _, v := range f.Violations {
			region := sarifRegion{StartLine: v.Line, StartColumn: v.Column + 1}
			if v.EndLine > 0 {
				region.EndLine = v.EndLine
				region.EndColumn = v.EndColumn + 1
			}
			if v.Snippet != "" {
				region.Snippet = &sarifText{Text: v.Snippet}
			}
			results = append(results, sarifResult{
				RuleID:    v.Rule,
				RuleIndex: index[v.Rule],
				Level:     sarifLevel(v),
				Message:   sarifText{Text: v.Message},
				Locations: []sarifLocation{{PhysicalLocation: sarifPhysical{
					ArtifactLocation: sarifArtifact{URI: f.Path},
					Region:           region,
				}}},
			})
		}
	}

	log := sarifLog{
		Version: sarifVersion,
		Schema:  sarifSchema,
		Runs: []sarifRun{{
			Tool:    sarifTool{Driver: sarifDriver{Name: "codeguard", Version: opts.Version, Rules: rules}},
			Results: results,
		}},
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(log)
}
