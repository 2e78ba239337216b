package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	queriesLanguage string
	queriesJSON     bool
	queriesStored   bool
)

var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "Generate and inspect tree-sitter queries",
}

var queriesGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate every rule for every adapter and store the results",
	Args:  cobra.NoArgs,
	RunE:  runQueriesGenerate,
}

var queriesShowCmd = &cobra.Command{
	Use:   "show <rule> <language>",
	Short: "Print the query generated for one rule and language",
	Args:  cobra.ExactArgs(2),
	RunE:  runQueriesShow,
}

var queriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored queries",
	Args:  cobra.NoArgs,
	RunE:  runQueriesList,
}

func init() {
	queriesCmd.PersistentFlags().BoolVar(&queriesJSON, "json", false, "print JSON")
	queriesGenerateCmd.Flags().StringVarP(&queriesLanguage, "language", "l", "", "only this language")
	queriesListCmd.Flags().StringVarP(&queriesLanguage, "language", "l", "", "only this language")
	queriesShowCmd.Flags().BoolVar(&queriesStored, "stored", false, "read from the database instead of generating")
	queriesCmd.AddCommand(queriesGenerateCmd)
	queriesCmd.AddCommand(queriesShowCmd)
	queriesCmd.AddCommand(queriesListCmd)
}

func runQueriesGenerate(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.GenerateQueries(queriesLanguage)
	if err != nil {
		return err
	}
	if queriesJSON {
		if err := printJSON(cmd, s); err != nil {
			return err
		}
	} else {
		fmt.Fprint(cmd.OutOrStdout(), render(isStdoutTTY(), formatGenerateSummary(s)))
	}
	if s.Errors > 0 {
		return exitError{code: ExitFailure, msg: fmt.Sprintf("%d queries failed to generate", s.Errors)}
	}
	return nil
}

func runQueriesShow(cmd *cobra.Command, args []string) error {
	a, err := openApp(queriesStored)
	if err != nil {
		return err
	}
	defer a.Close()

	ruleName, lang := args[0], args[1]
	if queriesStored {
		q, err := a.Store.LoadQuery(ruleName, lang)
		if err != nil {
			return err
		}
		if q == nil {
			return fmt.Errorf("no stored query for %s/%s (run `codeguard queries generate`)", ruleName, lang)
		}
		if queriesJSON {
			return printJSON(cmd, q)
		}
		fmt.Fprint(cmd.OutOrStdout(), render(isStdoutTTY(), formatQuery(*q)))
		return nil
	}

	q, err := a.Query(ruleName, lang)
	if err != nil {
		return err
	}
	if queriesJSON {
		return printJSON(cmd, q)
	}
	fmt.Fprint(cmd.OutOrStdout(), render(isStdoutTTY(), formatQuery(q)))
	return nil
}

func runQueriesList(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	qs, err := a.Store.ListQueries(queriesLanguage)
	if err != nil {
		return err
	}
	if queriesJSON {
		return printJSON(cmd, qs)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "⚡ %d stored queries\n", len(qs))
	for _, q := range qs {
		fmt.Fprintf(out, "  %-28s %-12s %s\n", q.Rule, q.Language, q.TemplateKey)
	}
	return nil
}
