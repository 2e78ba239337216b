// Package config loads codeguard settings from .codeguard.yaml, CODEGUARD_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/corey/codeguard/internal/adapters/report"
	"github.com/corey/codeguard/internal/domain/rule"
)

// File is the config file base name searched in the working directory and home.
const File = ".codeguard"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CODEGUARD"

// Config holds the application configuration.
type Config struct {
	RulesDirs    []string      `mapstructure:"rules_dirs"`
	AdaptersDirs []string      `mapstructure:"adapters_dirs"`
	NoBuiltin    bool          `mapstructure:"no_builtin"`
	DBPath       string        `mapstructure:"db_path"`
	Workers      int           `mapstructure:"workers"`
	FileTimeout  time.Duration `mapstructure:"file_timeout"`
	MaxFileSize  int64         `mapstructure:"max_file_size"`
	NoGitignore  bool          `mapstructure:"no_gitignore"`
	Format       string        `mapstructure:"format"`
	MinSeverity  string        `mapstructure:"min_severity"`
	Categories   []string      `mapstructure:"categories"`
	Tags         []string      `mapstructure:"tags"`
	GrammarPaths []string      `mapstructure:"grammar_paths"`
	Log          LogConfig     `mapstructure:"log"`
	Server       ServerConfig  `mapstructure:"server"`
}

// LogConfig selects the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

// ServerConfig configures `codeguard serve`.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// New returns a viper instance with every key defaulted, so environment
// variables resolve for all of them.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("rules_dirs", []string{})
	v.SetDefault("adapters_dirs", []string{})
	v.SetDefault("no_builtin", false)
	v.SetDefault("db_path", ".codeguard/codeguard.db")
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("file_timeout", "30s")
	v.SetDefault("max_file_size", 1<<20)
	v.SetDefault("no_gitignore", false)
	v.SetDefault("format", report.FormatText)
	v.SetDefault("min_severity", "WARNING")
	v.SetDefault("categories", []string{})
	v.SetDefault("tags", []string{})
	v.SetDefault("grammar_paths", []string{})
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
	v.SetDefault("server.addr", "127.0.0.1:7420")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file (cfgFile, or .codeguard.yaml in the working
// directory then home) into v and decodes the result. A missing default
// config file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(File)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the defaults (plus environment overrides) without reading
// any config file.
func Default() *Config {
	var cfg Config
	if err := New().Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &cfg
}

// Validate rejects unknown enum values.
func (c *Config) Validate() error {
	known := false
	for _, f := range report.Formats() {
		if strings.EqualFold(c.Format, f) {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("config: format %q (want one of %s)", c.Format, strings.Join(report.Formats(), ", "))
	}
	if rule.SeverityFromName(c.MinSeverity) < 0 {
		return fmt.Errorf("config: min_severity %q (want WARNING or CRITICAL)", c.MinSeverity)
	}
	for _, name := range c.Categories {
		if rule.CategoryFromName(name) < 0 {
			return fmt.Errorf("config: unknown category %q", name)
		}
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must be >= 0, got %d", c.Workers)
	}
	if c.FileTimeout < 0 {
		return fmt.Errorf("config: file_timeout must be >= 0, got %s", c.FileTimeout)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("config: log.format %q (want console or json)", c.Log.Format)
	}
	return nil
}

// Severity returns the parsed severity floor.
func (c *Config) Severity() rule.Severity {
	if s := rule.SeverityFromName(c.MinSeverity); s >= 0 {
		return s
	}
	return rule.SeverityWarning
}

// CategoryFilter returns the parsed categories; empty means all.
func (c *Config) CategoryFilter() []rule.Category {
	var out []rule.Category
	for _, name := range c.Categories {
		if cat := rule.CategoryFromName(name); cat >= 0 {
			out = append(out, cat)
		}
	}
	return out
}

// WorkerCount returns Workers, or the CPU count when unset.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}
