package rule

import (
	"sort"
	"time"
)

// Skip reasons recorded on FileResult.
const (
	SkipUnsupported = "unsupported language"
	SkipTimeout     = "timeout"
	SkipCanceled    = "canceled"
	SkipReadError   = "read error"
)

// FileResult is the outcome of analyzing one file.
type FileResult struct {
	Path       string      `json:"path"`
	Language   string      `json:"language,omitempty"`
	Violations []Violation `json:"violations,omitempty"`
	Skipped    bool        `json:"skipped,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

// Run is one batch analysis.
type Run struct {
	ID         string       `json:"id"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Files      []FileResult `json:"files"`
}

// RunSummary is the listing form of a Run.
type RunSummary struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Files      int       `json:"files"`
	Warnings   int       `json:"warnings"`
	Critical   int       `json:"critical"`
	Errors     int       `json:"systemErrors"`
}

// Summary tallies the run.
func (r *Run) Summary() RunSummary {
	s := RunSummary{ID: r.ID, StartedAt: r.StartedAt, FinishedAt: r.FinishedAt, Files: len(r.Files)}
	for _, f := range r.Files {
		w, c := CountBySeverity(f.Violations)
		s.Warnings += w
		s.Critical += c
		for _, v := range f.Violations {
			if v.IsSystemError {
				s.Errors++
			}
		}
	}
	return s
}

// Violations returns every violation of the run in file order.
func (r *Run) Violations() []Violation {
	var out []Violation
	for _, f := range r.Files {
		out = append(out, f.Violations...)
	}
	return out
}

// SortFiles orders results by path.
func SortFiles(fs []FileResult) {
	sort.SliceStable(fs, func(i, j int) bool { return fs[i].Path < fs[j].Path })
}

// AtLeast reports whether s is as severe as min.
func (s Severity) AtLeast(min Severity) bool { return s >= min }
