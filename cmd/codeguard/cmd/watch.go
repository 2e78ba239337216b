package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corey/codeguard/internal/adapters/fsnotify"
	"github.com/corey/codeguard/internal/app"
)

var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Re-analyze files as they change and reload rules on edit",
	Long: `Watch source paths (default: current directory) plus every rule and adapter
directory. Changed source files are re-analyzed; a changed rule or adapter
file reloads the catalog and invalidates cached queries. Stop with Ctrl-C.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	paths := args
	if len(paths) == 0 {
		paths = []string{"."}
	}

	w, err := fsnotify.NewWatcher(fsnotify.WithFilter(a.WatchFilter))
	if err != nil {
		return err
	}
	defer w.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	color := isStdoutTTY()
	roots := a.WatchRoots(paths)
	fmt.Fprintf(out, "⚡ watching %d roots (Ctrl-C to stop)\n", len(roots))
	min := settings.Severity()
	return a.Watch(ctx, w, roots, func(ev app.WatchEvent) {
		if ev.Result != nil {
			res := *ev.Result
			res.Violations = violationsAtLeast(res.Violations, min)
			ev.Result = &res
		}
		fmt.Fprint(out, render(color, formatWatchEvent(ev)))
	})
}
