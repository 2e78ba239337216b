package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/corey/codeguard/internal/app"
)

const starterConfig = `# codeguard project settings. Every key can also be set with a
# CODEGUARD_ environment variable or a command line flag.
min_severity: WARNING
file_timeout: 30s
# categories: [SECURITY, BEST_PRACTICE]
# rules_dirs: [tools/codeguard-rules]
# grammar_paths: [tools/grammars]
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up .codeguard/ in the current project",
	Long: `Create the .codeguard/ directories for project rules, adapters and grammars,
write a starter .codeguard.yaml when none exists, and generate the stored queries.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	paths := app.NewPaths(root)
	if err := paths.EnsureDirs(); err != nil {
		return fmt.Errorf("create .codeguard dirs: %w", err)
	}
	out := cmd.OutOrStdout()

	cfgPath := filepath.Join(root, ".codeguard.yaml")
	if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(cfgPath, []byte(starterConfig), 0644); err != nil {
			return err
		}
		fmt.Fprintf(out, "⚡ wrote %s\n", cfgPath)
	}

	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.GenerateQueries("")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "⚡ codeguard ready in %s\n", paths.Root)
	fmt.Fprint(out, render(isStdoutTTY(), formatGenerateSummary(s)))
	return nil
}
