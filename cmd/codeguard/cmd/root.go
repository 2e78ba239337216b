package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/corey/codeguard/internal/app"
	"github.com/corey/codeguard/internal/config"
)

// version is stamped at build time with -ldflags "-X ...cmd.version=...".
var version = "dev"

var (
	v        = config.New()
	cfgFile  string
	rootDir  string
	settings *config.Config
	logger   = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:               "codeguard",
	Short:             "codeguard — structural code rules for every language",
	Long:              "Write a rule once; codeguard turns it into a tree-sitter query for each language and reports violations.",
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadSettings,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default .codeguard.yaml in . or $HOME)")
	pf.StringVarP(&rootDir, "root", "C", "", "project root (default: current directory)")
	pf.StringSlice("rules-dir", nil, "extra rule directory (repeatable)")
	pf.StringSlice("adapters-dir", nil, "extra adapter directory (repeatable)")
	pf.Bool("no-builtin", false, "do not load the bundled rule pack")
	pf.String("db", "", "bbolt database path")
	pf.Int("workers", 0, "files analyzed in parallel (default: CPU count)")
	pf.Duration("timeout", 0, "per-file analysis timeout, 0 disables")
	pf.String("min-severity", "", "WARNING or CRITICAL")
	pf.StringSlice("category", nil, "only run rules in these categories")
	pf.StringSlice("tag", nil, "only run rules carrying one of these tags")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.String("log-format", "", "console or json")

	bindFlags(pf, map[string]string{
		"rules_dirs":    "rules-dir",
		"adapters_dirs": "adapters-dir",
		"no_builtin":    "no-builtin",
		"db_path":       "db",
		"workers":       "workers",
		"file_timeout":  "timeout",
		"min_severity":  "min-severity",
		"categories":    "category",
		"tags":          "tag",
		"log.level":     "log-level",
		"log.format":    "log-format",
	})

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(queriesCmd)
	rootCmd.AddCommand(adaptersCmd)
	rootCmd.AddCommand(grammarsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

// bindFlags ties viper keys to flags so a set flag beats env and file.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, flag := range keys {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}
}

func loadSettings(cmd *cobra.Command, args []string) error {
	if rootDir != "" {
		if err := os.Chdir(rootDir); err != nil {
			return fmt.Errorf("project root: %w", err)
		}
	}
	s, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	log, err := app.NewLogger(s.Log.Level, s.Log.Format)
	if err != nil {
		return err
	}
	settings, logger = s, log
	return nil
}

// projectRoot returns the project root (cwd, after --root is applied).
func projectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitFailure)
	}
	return dir
}

// openApp wires the application. withStore opens the bbolt database, which
// holds an exclusive lock while the command runs.
func openApp(withStore bool) (*app.App, error) {
	root := projectRoot()
	cfg := app.Config{ProjectRoot: root, Settings: settings, Logger: logger}
	if withStore {
		cfg.DBPath = settings.DBPath
	}
	a, err := app.New(cfg)
	if err != nil {
		if isDBLockError(err) {
			return nil, fmt.Errorf("%s", diagnoseDBLock(app.NewPaths(root).Resolve(root, settings.DBPath)))
		}
		return nil, err
	}
	return a, nil
}

// configUsed reports the config file viper read, if any.
func configUsed() string {
	return v.ConfigFileUsed()
}
