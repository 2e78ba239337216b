package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corey/codeguard/internal/adapters/report"
	"github.com/corey/codeguard/internal/domain/rule"
)

var runsJSON bool

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect analysis runs saved with `analyze --save`",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a saved run as a report",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete saved runs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRunsDelete,
}

func init() {
	runsListCmd.Flags().BoolVar(&runsJSON, "json", false, "print JSON")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	runs, err := a.Store.ListRuns()
	if err != nil {
		return err
	}
	if runsJSON {
		if runs == nil {
			runs = []rule.RunSummary{}
		}
		return printJSON(cmd, runs)
	}
	fmt.Fprint(cmd.OutOrStdout(), render(isStdoutTTY(), formatRunList(runs)))
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := a.Store.LoadRun(args[0])
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("unknown run: %s", args[0])
	}
	return report.Write(cmd.OutOrStdout(), settings.Format, run, report.Options{
		MinSeverity: settings.Severity(),
		Color:       isStdoutTTY(),
		Version:     version,
	})
}

func runRunsDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, id := range args {
		run, err := a.Store.LoadRun(id)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("unknown run: %s", id)
		}
		if err := a.Store.DeleteRun(id); err != nil {
			return fmt.Errorf("delete run %s: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "run deleted: %s\n", id)
	}
	return nil
}
