package app

import (
	"os"
	"path/filepath"
)

// Paths holds all resolved filesystem paths for the .codeguard/ project directory.
type Paths struct {
	Root        string // .codeguard/
	DB          string // .codeguard/codeguard.db
	RulesDir    string // .codeguard/rules/
	AdaptersDir string // .codeguard/adapters/
	GrammarsDir string // .codeguard/grammars/
}

// NewPaths constructs all resolved paths from a project root directory.
func NewPaths(projectRoot string) *Paths {
	root := filepath.Join(projectRoot, ".codeguard")
	return &Paths{
		Root:        root,
		DB:          filepath.Join(root, "codeguard.db"),
		RulesDir:    filepath.Join(root, "rules"),
		AdaptersDir: filepath.Join(root, "adapters"),
		GrammarsDir: filepath.Join(root, "grammars"),
	}
}

// EnsureDirs creates all subdirectories under .codeguard/. Idempotent.
func (p *Paths) EnsureDirs() error {
	for _, d := range []string{p.Root, p.RulesDir, p.AdaptersDir, p.GrammarsDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
	}
	return nil
}

// Resolve makes a configured path absolute against the project root.
func (p *Paths) Resolve(projectRoot, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(projectRoot, path)
}

// ProjectDirs returns the project-local rule and adapter directories that
// exist, so a project can carry its own rules without any config.
func (p *Paths) ProjectDirs() (rules, adapters []string) {
	if isDir(p.RulesDir) {
		rules = append(rules, p.RulesDir)
	}
	if isDir(p.AdaptersDir) {
		adapters = append(adapters, p.AdaptersDir)
	}
	return rules, adapters
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
