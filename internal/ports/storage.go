// Package ports defines the interfaces (contracts) that adapters must implement.
// These are the boundaries of the hexagonal architecture. The app layer depends
// only on these interfaces, never on concrete implementations.
package ports

import (
	"github.com/corey/codeguard/internal/domain/querygen"
	"github.com/corey/codeguard/internal/domain/rule"
)

// Storage persists generated queries and analysis runs.
// Concurrent reads are safe; writes are serialized by the adapter.
//
// Crash safety: every Save must be transactional. A crash mid-write must not
// corrupt previously committed data.
type Storage interface {
	// SaveQuery upserts a generated query keyed by (rule, language).
	SaveQuery(q querygen.GeneratedQuery) error

	// LoadQuery returns the stored query for (rule, language).
	// Returns nil, nil if none is stored.
	LoadQuery(ruleName, language string) (*querygen.GeneratedQuery, error)

	// ListQueries returns the stored queries for a language sorted by rule
	// name. An empty language lists every language.
	ListQueries(language string) ([]querygen.GeneratedQuery, error)

	// DeleteQueries removes every stored query of a rule.
	// Idempotent: deleting an unknown rule is not an error.
	DeleteQueries(ruleName string) error

	// SaveRun persists a finished analysis run. Overwrites a run with the same ID.
	SaveRun(run *rule.Run) error

	// LoadRun retrieves a run. Returns nil, nil if no run has that ID.
	LoadRun(id string) (*rule.Run, error)

	// ListRuns returns run summaries, newest first.
	ListRuns() ([]rule.RunSummary, error)

	// DeleteRun removes a run. Idempotent.
	DeleteRun(id string) error
}
