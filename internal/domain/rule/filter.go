package rule

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// MatchEnv is the environment a Filter expression is evaluated against.
//
//	lines > 50
//	counts["params"] > 4
//	captures["fn_name"] != "main"
type MatchEnv struct {
	Text     string            `expr:"text"`
	Kind     string            `expr:"kind"`
	Line     int               `expr:"line"`
	Column   int               `expr:"column"`
	Lines    int               `expr:"lines"`
	Language string            `expr:"language"`
	File     string            `expr:"file"`
	Captures map[string]string `expr:"captures"`
	Counts   map[string]int    `expr:"counts"`
}

// CompileFilter compiles a filter expression that must yield a bool.
func CompileFilter(src string) (*vm.Program, error) {
	prog, err := expr.Compile(src, expr.Env(MatchEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}
	return prog, nil
}

// EvalFilter runs a compiled filter against one match.
func EvalFilter(prog *vm.Program, env MatchEnv) (bool, error) {
	out, err := expr.Run(prog, env)
	if err != nil {
		return false, fmt.Errorf("evaluate filter: %w", err)
	}
	ok, _ := out.(bool)
	return ok, nil
}
