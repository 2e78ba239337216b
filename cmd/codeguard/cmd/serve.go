package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corey/codeguard/internal/adapters/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API and dashboard",
	Long:  "Serves the HTTP API on server.addr (default 127.0.0.1:7420). Holds the database lock until stopped.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default 127.0.0.1:7420)")
	bindFlags(serveCmd.Flags(), map[string]string{"server.addr": "addr"})
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := web.NewServer(a, logger.Named("http"))
	if err := srv.Start(settings.Server.Addr); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "⚡ codeguard serving %s (Ctrl-C to stop)\n", srv.URL())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return srv.Stop()
}
