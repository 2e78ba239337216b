// Package bbolt implements the ports.Storage interface using bbolt (embedded B+ tree).
// Generated queries live in the "queries" bucket keyed by language and rule;
// analysis runs live in "runs" with a summary per run in "run_index" so
// listings never decode whole runs. Writes are transactional: a crash
// mid-write cannot corrupt previously committed data.
package bbolt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/corey/codeguard/internal/domain/querygen"
	"github.com/corey/codeguard/internal/domain/rule"
)

// Bucket keys
var (
	bucketQueries  = []byte("queries")
	bucketRuns     = []byte("runs")
	bucketRunIndex = []byte("run_index")
)

// Store implements ports.Storage backed by bbolt.
type Store struct {
	db *bolt.DB
}

// NewStore opens (or creates) a bbolt database at the given path.
func NewStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketQueries, bucketRuns, bucketRunIndex} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bbolt init: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveQuery upserts a generated query keyed by (rule, language).
func (s *Store) SaveQuery(q querygen.GeneratedQuery) error {
	if q.Rule == "" || q.Language == "" {
		return fmt.Errorf("query needs rule and language")
	}
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueries).Put(queryKey(q.Language, q.Rule), data)
	})
}

// LoadQuery returns the stored query for (rule, language).
// Returns nil, nil if none is stored.
func (s *Store) LoadQuery(ruleName, language string) (*querygen.GeneratedQuery, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		// Copy bytes out of the transaction (bbolt slices are only valid within tx)
		if v := tx.Bucket(bucketQueries).Get(queryKey(language, ruleName)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || data == nil {
		return nil, err
	}
	var q querygen.GeneratedQuery
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("unmarshal query %s/%s: %w", ruleName, language, err)
	}
	return &q, nil
}

// ListQueries returns the stored queries for a language sorted by rule
// name. An empty language lists every language, sorted by language then rule.
func (s *Store) ListQueries(language string) ([]querygen.GeneratedQuery, error) {
	var out []querygen.GeneratedQuery
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketQueries).Cursor()
		prefix := queryPrefix(language)
		k, v := c.First()
		if prefix != nil {
			k, v = c.Seek(prefix)
		}
		for ; k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var q querygen.GeneratedQuery
			if err := json.Unmarshal(v, &q); err != nil {
				return fmt.Errorf("unmarshal query %q: %w", k, err)
			}
			out = append(out, q)
		}
		return nil
	})
	return out, err
}

// DeleteQueries removes every stored query of a rule.
// Idempotent: deleting an unknown rule is not an error.
func (s *Store) DeleteQueries(ruleName string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQueries)
		var doomed [][]byte
		err := b.ForEach(func(k, _ []byte) error {
			if _, r, ok := splitQueryKey(k); ok && r == ruleName {
				doomed = append(doomed, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveRun persists a finished analysis run. Overwrites a run with the same ID.
func (s *Store) SaveRun(run *rule.Run) error {
	if run == nil {
		return fmt.Errorf("nil run")
	}
	if run.ID == "" {
		return fmt.Errorf("run has no id")
	}
	data, err := encodeRun(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	summary, err := json.Marshal(run.Summary())
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketRuns).Put([]byte(run.ID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketRunIndex).Put([]byte(run.ID), summary)
	})
}

// LoadRun retrieves a run. Returns nil, nil if no run has that ID.
func (s *Store) LoadRun(id string) (*rule.Run, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketRuns).Get([]byte(id)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || data == nil {
		return nil, err
	}
	run, err := decodeRun(data)
	if err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns run summaries, newest first.
func (s *Store) ListRuns() ([]rule.RunSummary, error) {
	var out []rule.RunSummary
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRunIndex).ForEach(func(k, v []byte) error {
			var rs rule.RunSummary
			if err := json.Unmarshal(v, &rs); err != nil {
				return fmt.Errorf("unmarshal run summary %q: %w", k, err)
			}
			out = append(out, rs)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteRun removes a run.
// Idempotent: deleting a nonexistent run is not an error.
func (s *Store) DeleteRun(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketRuns).Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket(bucketRunIndex).Delete([]byte(id))
	})
}
