package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corey/codeguard/internal/adapters/treesitter"
)

var grammarsCmd = &cobra.Command{
	Use:   "grammars",
	Short: "List tree-sitter grammars: compiled in or loaded from shared libraries",
	Long: `List grammars and where they come from.

Grammars not compiled into the binary are loaded at runtime from
<name>` + treesitter.LibExtension() + ` files in the grammar search paths (grammar_paths in
the config, then .codeguard/grammars and ~/.codeguard/grammars).`,
	Args: cobra.NoArgs,
	RunE: runGrammars,
}

func runGrammars(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	usedBy := make(map[string][]string)
	for _, ad := range a.Catalog.Adapters() {
		usedBy[ad.GrammarName()] = append(usedBy[ad.GrammarName()], ad.Language)
	}
	names := a.Grammars.Languages()
	for g := range usedBy {
		if !a.Grammars.HasLanguage(g) {
			names = append(names, g)
		}
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	loader := a.Grammars.Loader()
	fmt.Fprintf(out, "⚡ %d grammars\n", len(names))
	for _, name := range names {
		status := "  "
		detail := ""
		switch {
		case a.Grammars.IsBuiltin(name):
			status = "B "
		case loader != nil && loader.GrammarPath(name) != "":
			status = "D "
			detail = loader.GrammarPath(name)
			if _, err := loader.LoadGrammar(name); err != nil {
				status = "E "
				detail = err.Error()
			}
		default:
			detail = fmt.Sprintf("missing: install %s%s (symbol %s)",
				name, treesitter.LibExtension(), treesitter.CSymbolName(name))
		}
		adapters := "-"
		if langs := usedBy[name]; len(langs) > 0 {
			adapters = strings.Join(langs, ",")
		}
		fmt.Fprintf(out, "  %s%-14s %-24s %s\n", status, name, adapters, detail)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "B = built-in (compiled)  D = dynamic (shared library)  E = library failed to load")
	if loader != nil {
		fmt.Fprintf(out, "Search paths: %s\n", strings.Join(loader.SearchPaths(), ", "))
	}
	return nil
}
