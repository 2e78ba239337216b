// codeguard checks source code against language-independent structural
// rules. Rules are written once; per-language adapters turn them into
// tree-sitter queries.
package main

import (
	"fmt"
	"os"

	"github.com/corey/codeguard/cmd/codeguard/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintf(os.Stderr, "error: %s\n", msg)
		}
		os.Exit(cmd.ExitCode(err))
	}
}
