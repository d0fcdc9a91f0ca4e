package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragdesk/internal/adapters/driving/daemon"
	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the status daemon",
	Long: `Serves document status over HTTP and streams status changes over a
WebSocket at /ws/status. Prometheus metrics are exposed at /metrics.

Every route except /healthz and /metrics needs a session token from
'ragdesk login' as a Bearer token.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: daemon.addr setting)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if documentService == nil || statusPoller == nil {
		return notConfigured("document")
	}

	addr := serveAddr
	if addr == "" && settingsService != nil {
		if s, err := settingsService.Get(); err == nil {
			addr = s.DaemonAddr
		}
	}
	if addr == "" {
		addr = domain.DefaultAppSettings().DaemonAddr
	}

	srv, err := daemon.New(daemon.Config{
		Documents: documentService,
		Poller:    statusPoller,
		Sessions:  sessionService,
		Metrics:   metricsHandler,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("daemon listening on %s", addr)
	cmd.Printf("Serving on http://%s (Ctrl+C to stop)\n", addr)
	return srv.Run(ctx, addr)
}
