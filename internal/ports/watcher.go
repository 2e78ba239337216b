package ports

// Watcher monitors source and rule directories for file changes.
// The adapter (fsnotify) must filter out non-code files (.git, node_modules, etc.)
// before invoking onChange. Watch may be called once per Watcher.
type Watcher interface {
	// Watch starts monitoring every root recursively. onChange is called with
	// the absolute path of each changed or removed file. The callback may be
	// invoked from any goroutine. Returns an error if a root doesn't exist or
	// permissions are insufficient.
	Watch(onChange func(filePath string), roots ...string) error

	// Stop ends monitoring and releases all resources. After Stop returns,
	// no further onChange calls will fire. Safe to call multiple times.
	Stop() error
}
