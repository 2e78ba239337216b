package cmd

import (
	"errors"
	"fmt"
	"strings"
)

// Process exit codes.
const (
	ExitClean      = 0
	ExitFailure    = 1
	ExitViolations = 2
)

// exitError is returned by commands that need a specific exit code. An
// empty message prints nothing.
type exitError struct {
	code int
	msg  string
}

func (e exitError) Error() string { return e.msg }

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitClean
	}
	var ee exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitFailure
}

// isDBLockError returns true if the error chain contains a bbolt lock timeout.
// bbolt returns the string "timeout" when it cannot acquire the file lock
// within the configured deadline.
func isDBLockError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "timeout")
}

// diagnoseDBLock explains a lock timeout on dbPath.
func diagnoseDBLock(dbPath string) string {
	return fmt.Sprintf("database %s is locked by another process\n"+
		"  → a running `codeguard serve` or `codeguard analyze --save` holds it\n"+
		"  → find the process:  ps aux | grep codeguard\n"+
		"  → or point elsewhere: --db /tmp/codeguard.db", dbPath)
}
