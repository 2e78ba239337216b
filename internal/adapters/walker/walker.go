// Package walker finds the source files to analyze under a directory,
// skipping dependency and build directories and anything .gitignore
// excludes. Each file's language comes from the caller's detector.
package walker

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	ignore "github.com/sabhiram/go-gitignore"
)

// IgnoredDirs are directories never descended into.
var IgnoredDirs = map[string]bool{
	".git":             true,
	".hg":              true,
	".svn":             true,
	"node_modules":     true,
	"vendor":           true,
	"bower_components": true,
	"build":            true,
	"dist":             true,
	"target":           true,
	"out":              true,
	".idea":            true,
	".vscode":          true,
	"__pycache__":      true,
	"venv":             true,
	".venv":            true,
	".tox":             true,
	".pytest_cache":    true,
	".mypy_cache":      true,
	".ruff_cache":      true,
	".next":            true,
	".nuxt":            true,
	".gradle":          true,
	".codeguard":       true,
}

// DefaultMaxFileSize skips generated bundles and data files.
const DefaultMaxFileSize = 1 << 20

// File is one analyzable source file.
type File struct {
	Path     string // path as reachable from the working directory
	Rel      string // path relative to the walk root, slash separated
	Language string
	Size     int64
}

// Detector maps a path to a language tag. ok is false for files no
// adapter handles.
type Detector func(path string) (language string, ok bool)

// Options tune a walk.
type Options struct {
	Detect      Detector
	MaxFileSize int64 // 0 means DefaultMaxFileSize, negative means no limit
	NoGitignore bool
}

// LoadGitignore loads .gitignore from root if it exists.
func LoadGitignore(root string) *ignore.GitIgnore {
	gitignorePath := filepath.Join(root, ".gitignore")

	if _, err := os.Stat(gitignorePath); err == nil {
		if gitignore, err := ignore.CompileIgnoreFile(gitignorePath); err == nil {
			return gitignore
		}
	}

	return nil
}

// Walk returns every analyzable file under root, sorted by path. A root
// that is itself a file is returned alone if its language is known.
func Walk(root string, opts Options) ([]File, error) {
	if opts.Detect == nil {
		return nil, fmt.Errorf("walk %s: no language detector", root)
	}
	maxSize := opts.MaxFileSize
	if maxSize == 0 {
		maxSize = DefaultMaxFileSize
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		lang, ok := opts.Detect(root)
		if !ok {
			return nil, nil
		}
		return []File{{Path: root, Rel: filepath.Base(root), Language: lang, Size: info.Size()}}, nil
	}

	var gitignore *ignore.GitIgnore
	if !opts.NoGitignore {
		gitignore = LoadGitignore(root)
	}

	var files []File
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && IgnoredDirs[info.Name()] {
				return filepath.SkipDir
			}
			if path != root && gitignore != nil && gitignore.MatchesPath(relPath) {
				return filepath.SkipDir
			}
			return nil
		}
		if gitignore != nil && gitignore.MatchesPath(relPath) {
			return nil
		}
		if !info.Mode().IsRegular() || (maxSize > 0 && info.Size() > maxSize) {
			return nil
		}
		lang, ok := opts.Detect(path)
		if !ok {
			return nil
		}
		files = append(files, File{
			Path:     path,
			Rel:      filepath.ToSlash(relPath),
			Language: lang,
			Size:     info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Ignored reports whether any directory component of a path is in
// IgnoredDirs.
func Ignored(path string) bool {
	dir := filepath.Dir(path)
	for dir != "." && dir != string(filepath.Separator) && dir != "" {
		if IgnoredDirs[filepath.Base(dir)] {
			return true
		}
		next := filepath.Dir(dir)
		if next == dir {
			break
		}
		dir = next
	}
	return false
}
