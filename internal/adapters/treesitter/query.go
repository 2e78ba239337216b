package treesitter

import (
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// QueryCompileError reports a query that the grammar rejected. Row and
// Column are 0-based positions inside the query text.
type QueryCompileError struct {
	Language string
	Row      uint
	Column   uint
	Offset   uint
	Kind     int
	Message  string
}

func (e *QueryCompileError) Error() string {
	return fmt.Sprintf("invalid %s query at %d:%d: %s", e.Language, e.Row+1, e.Column+1, e.Message)
}

type queryKey struct {
	language string
	source   string
}

type compiled struct {
	query *Query
	err   error
}

// Query is a compiled query. It is read-only after compilation and may be
// executed from several goroutines at once, each with its own cursor.
type Query struct {
	q        *tree_sitter.Query
	names    []string
	Language string
	Source   string
}

// CaptureNames returns the query's capture names indexed by capture id.
func (q *Query) CaptureNames() []string { return q.names }

// Compile compiles src against a language's grammar. Results, including
// failures, are cached per (language, source).
func (r *Registry) Compile(language, src string) (*Query, error) {
	k := queryKey{language, src}
	r.qmu.RLock()
	c, ok := r.queries[k]
	r.qmu.RUnlock()
	if ok {
		return c.query, c.err
	}

	l, err := r.Grammar(language)
	if err != nil {
		return nil, err
	}
	q, err := compileQuery(l, language, src)

	r.qmu.Lock()
	if prev, ok := r.queries[k]; ok {
		// Lost a race; keep the first result and free ours.
		r.qmu.Unlock()
		if q != nil {
			q.q.Close()
		}
		return prev.query, prev.err
	}
	r.queries[k] = compiled{query: q, err: err}
	r.qmu.Unlock()
	return q, err
}

// compileQuery wraps tree_sitter.NewQuery. A panic inside the binding (for
// instance from a predicate regex it cannot handle) becomes a compile error.
func compileQuery(l *tree_sitter.Language, language, src string) (q *Query, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			q = nil
			err = &QueryCompileError{Language: language, Message: fmt.Sprint(rec)}
		}
	}()
	tq, qerr := tree_sitter.NewQuery(l, src)
	if qerr != nil {
		return nil, &QueryCompileError{
			Language: language,
			Row:      uint(qerr.Row),
			Column:   uint(qerr.Column),
			Offset:   uint(qerr.Offset),
			Kind:     int(qerr.Kind),
			Message:  qerr.Message,
		}
	}
	return &Query{q: tq, names: tq.CaptureNames(), Language: language, Source: src}, nil
}

// Capture is one captured node, copied out of the cursor.
type Capture struct {
	Name          string
	Kind          string
	StartRow      uint
	StartColumn   uint
	EndRow        uint
	EndColumn     uint
	StartByte     uint
	EndByte       uint
	Text          string
	NamedChildren uint

	// Node stays valid until the owning Tree is closed.
	Node tree_sitter.Node
}

// Match is one pattern match with its captures in query order.
type Match struct {
	Pattern  uint
	Captures []Capture
}

// Matches runs the query over the whole tree.
func (q *Query) Matches(t *Tree) []Match {
	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()

	var out []Match
	it := qc.Matches(q.q, t.Root(), t.Source)
	for m := it.Next(); m != nil; m = it.Next() {
		caps := make([]Capture, 0, len(m.Captures))
		for _, c := range m.Captures {
			n := c.Node
			start, end := n.StartPosition(), n.EndPosition()
			caps = append(caps, Capture{
				Name:          q.names[c.Index],
				Kind:          n.Kind(),
				StartRow:      uint(start.Row),
				StartColumn:   uint(start.Column),
				EndRow:        uint(end.Row),
				EndColumn:     uint(end.Column),
				StartByte:     uint(n.StartByte()),
				EndByte:       uint(n.EndByte()),
				Text:          n.Utf8Text(t.Source),
				NamedChildren: uint(n.NamedChildCount()),
				Node:          n,
			})
		}
		out = append(out, Match{Pattern: uint(m.PatternIndex), Captures: caps})
	}
	return out
}
