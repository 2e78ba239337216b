// Package fsnotify watches source and rule directories using
// github.com/fsnotify/fsnotify. It watches recursively, skips the same
// directories the walker skips, and debounces rapid events (editors often
// trigger multiple writes per save).
package fsnotify

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/corey/codeguard/internal/adapters/walker"
)

// Editor droppings and build outputs that never trigger a callback.
var ignoreFiles = map[string]bool{
	".DS_Store": true,
	".swp":      true,
	".swx":      true,
	"~":         true,
	".pyc":      true,
	".o":        true,
	".so":       true,
	".dylib":    true,
}

// DefaultDebounce is the minimum gap between two callbacks for one path.
const DefaultDebounce = 50 * time.Millisecond

// Watcher reports changed files under one or more roots.
type Watcher struct {
	fw       *fsnotify.Watcher
	filter   func(path string) bool
	debounce time.Duration
	done     chan struct{}
	stopped  bool
	started  bool
	mu       sync.Mutex
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithFilter restricts callbacks to paths for which keep returns true.
func WithFilter(keep func(path string) bool) Option {
	return func(w *Watcher) { w.filter = keep }
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a new file system watcher.
func NewWatcher(opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fw:       fw,
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Watch starts monitoring every root recursively. onChange is called from
// the watcher goroutine with the absolute path of each changed file,
// including removed ones. Watch may be called once.
func (w *Watcher) Watch(onChange func(filePath string), roots ...string) error {
	w.mu.Lock()
	if w.started || w.stopped {
		w.mu.Unlock()
		return os.ErrInvalid
	}
	w.started = true
	w.mu.Unlock()

	for _, root := range roots {
		if err := w.addTree(root); err != nil {
			return err
		}
	}

	go w.loop(onChange)
	return nil
}

func (w *Watcher) addTree(root string) error {
	absPath, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.fw.Add(filepath.Dir(absPath))
	}
	return filepath.Walk(absPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip inaccessible paths
		}
		if info.IsDir() {
			if walker.IgnoredDirs[info.Name()] && path != absPath {
				return filepath.SkipDir
			}
			return w.fw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) loop(onChange func(string)) {
	// Debounce state: last callback time per file
	last := make(map[string]time.Time)

	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			path := event.Name

			// New directories join the watch list
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(path); err == nil && info.IsDir() {
					if !walker.IgnoredDirs[info.Name()] {
						w.addTree(path)
					}
					continue
				}
			}

			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
				continue
			}
			if shouldIgnorePath(path) || (w.filter != nil && !w.filter(path)) {
				continue
			}

			now := time.Now()
			if prev, seen := last[path]; seen && now.Sub(prev) < w.debounce {
				continue
			}
			last[path] = now

			select {
			case <-w.done:
				return
			default:
			}
			onChange(path)

		case _, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			// fsnotify recovers from queue overflows on its own

		case <-w.done:
			return
		}
	}
}

// Stop ends monitoring and releases all resources.
// Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.done)
	return w.fw.Close()
}

// shouldIgnorePath returns true if the file path should not trigger onChange.
func shouldIgnorePath(path string) bool {
	base := filepath.Base(path)
	if ignoreFiles[base] {
		return true
	}
	for ext := range ignoreFiles {
		if strings.HasSuffix(base, ext) {
			return true
		}
	}
	return walker.Ignored(path)
}
