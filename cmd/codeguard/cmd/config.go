package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corey/codeguard/internal/adapters/treesitter"
	"github.com/corey/codeguard/internal/app"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	Long:  "Shows the project root, config file, database and every rule, adapter and grammar source after flags, env and file are merged.",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	paths := app.NewPaths(root)
	cfgPath := configUsed()
	if cfgPath == "" {
		cfgPath = "(none)"
	}
	list := func(xs []string) string {
		if len(xs) == 0 {
			return "-"
		}
		return strings.Join(xs, ", ")
	}
	rules, adapters := paths.ProjectDirs()

	out := cmd.OutOrStdout()
	fmt.Fprint(out, render(isStdoutTTY(), colorBold+"⚡ codeguard config"+colorReset+"\n"))
	fmt.Fprintf(out, "  Root:         %s\n", root)
	fmt.Fprintf(out, "  Config file:  %s\n", cfgPath)
	fmt.Fprintf(out, "  DB:           %s\n", paths.Resolve(root, settings.DBPath))
	fmt.Fprintf(out, "  Builtin pack: %v\n", !settings.NoBuiltin)
	fmt.Fprintf(out, "  Rules dirs:   %s\n", list(append(append([]string{}, settings.RulesDirs...), rules...)))
	fmt.Fprintf(out, "  Adapter dirs: %s\n", list(append(append([]string{}, settings.AdaptersDirs...), adapters...)))
	fmt.Fprintf(out, "  Grammars:     %s\n", list(append(append([]string{}, settings.GrammarPaths...), treesitter.DefaultGrammarPaths(root)...)))
	fmt.Fprintf(out, "  Workers:      %d\n", settings.WorkerCount())
	fmt.Fprintf(out, "  File timeout: %s\n", settings.FileTimeout)
	fmt.Fprintf(out, "  Min severity: %s\n", settings.Severity())
	fmt.Fprintf(out, "  Categories:   %s\n", list(settings.Categories))
	fmt.Fprintf(out, "  Format:       %s\n", settings.Format)
	fmt.Fprintf(out, "  Server:       %s\n", settings.Server.Addr)
	fmt.Fprintf(out, "  Log:          %s (%s)\n", settings.Log.Level, settings.Log.Format)
	return nil
}
