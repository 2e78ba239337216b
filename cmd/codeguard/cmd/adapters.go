package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var adaptersJSON bool

var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "Inspect and validate language adapters",
}

var adaptersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded adapters and grammar availability",
	Args:  cobra.NoArgs,
	RunE:  runAdaptersList,
}

var adaptersValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check templates, node types and generated queries against each grammar",
	Args:  cobra.NoArgs,
	RunE:  runAdaptersValidate,
}

func init() {
	adaptersCmd.PersistentFlags().BoolVar(&adaptersJSON, "json", false, "print JSON")
	adaptersCmd.AddCommand(adaptersListCmd)
	adaptersCmd.AddCommand(adaptersValidateCmd)
}

func runAdaptersList(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	if adaptersJSON {
		return printJSON(cmd, a.Catalog.Adapters())
	}
	fmt.Fprint(cmd.OutOrStdout(), render(isStdoutTTY(), formatAdapters(a)))
	return nil
}

func runAdaptersValidate(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	probs := a.ValidateAdapters()
	if adaptersJSON {
		if err := printJSON(cmd, probs); err != nil {
			return err
		}
	} else {
		fmt.Fprint(cmd.OutOrStdout(), render(isStdoutTTY(), formatProblems(probs)))
	}
	if len(probs) > 0 {
		return exitError{code: ExitFailure}
	}
	return nil
}
