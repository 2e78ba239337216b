package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corey/codeguard/internal/app"
	"github.com/corey/codeguard/internal/domain/catalog"
	"github.com/corey/codeguard/internal/domain/rule"
)

var (
	rulesLanguage string
	rulesJSON     bool
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the loaded rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules after category, tag and severity filters",
	Args:  cobra.NoArgs,
	RunE:  runRulesList,
}

var rulesShowCmd = &cobra.Command{
	Use:   "show <rule>",
	Short: "Show a rule's definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesShow,
}

func init() {
	rulesCmd.PersistentFlags().BoolVar(&rulesJSON, "json", false, "print JSON")
	rulesListCmd.Flags().StringVarP(&rulesLanguage, "language", "l", "", "only rules that target this language")
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesShowCmd)
}

func runRulesList(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	infos := rule.Infos(a.Catalog.Rules(catalog.Filter{
		Categories:  settings.CategoryFilter(),
		MinSeverity: settings.Severity(),
		Tags:        settings.Tags,
		Language:    strings.ToLower(rulesLanguage),
	}))
	if rulesJSON {
		return printJSON(cmd, infos)
	}
	fmt.Fprint(cmd.OutOrStdout(), render(isStdoutTTY(), formatRuleList(infos)))
	return nil
}

func runRulesShow(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	d, ok := a.Catalog.Rule(args[0])
	if !ok {
		return fmt.Errorf("%w: %s", app.ErrUnknownRule, args[0])
	}
	if rulesJSON {
		return printJSON(cmd, d.Info())
	}
	fmt.Fprint(cmd.OutOrStdout(), render(isStdoutTTY(), formatRule(d.Info())))
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
