package web

import (
	"path"
	"path/filepath"

	"github.com/corey/codeguard/internal/domain/rule"
)

// TreeFile holds one file's outcome inside a RunTree.
type TreeFile struct {
	Language   string           `json:"language,omitempty"`
	Violations []rule.Violation `json:"violations"`
	Skipped    bool             `json:"skipped,omitempty"`
	Reason     string           `json:"reason,omitempty"`
}

// RunTree groups a run's files by folder for the dashboard.
type RunTree struct {
	ID         string                         `json:"id"`
	Summary    rule.RunSummary                `json:"summary"`
	CleanFiles int                            `json:"cleanFiles"`
	RuleCounts map[string]int                 `json:"ruleCounts"`
	Tree       map[string]map[string]TreeFile `json:"tree"` // folder -> file -> outcome
}

// BuildTree folds a run into folder -> file -> violations.
func BuildTree(run *rule.Run) RunTree {
	t := RunTree{
		ID:         run.ID,
		Summary:    run.Summary(),
		RuleCounts: make(map[string]int),
		Tree:       make(map[string]map[string]TreeFile),
	}
	for _, f := range run.Files {
		p := filepath.ToSlash(f.Path)
		dir, base := path.Dir(p), path.Base(p)
		if _, ok := t.Tree[dir]; !ok {
			t.Tree[dir] = make(map[string]TreeFile)
		}
		vs := f.Violations
		if vs == nil {
			vs = []rule.Violation{}
		}
		t.Tree[dir][base] = TreeFile{Language: f.Language, Violations: vs, Skipped: f.Skipped, Reason: f.Reason}

		if !f.Skipped && len(f.Violations) == 0 {
			t.CleanFiles++
		}
		for _, v := range f.Violations {
			t.RuleCounts[v.Rule]++
		}
	}
	return t
}
