package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Start the interactive console",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

// newTUIPorts gathers the services the console needs.
func newTUIPorts() *tui.Ports {
	ports := tui.NewPorts(documentService, chatService, topicService, analyticsService)
	ports.Poller = statusPoller
	ports.Settings = settingsService
	ports.Notifications = notifications
	return ports
}

func runTUI(cmd *cobra.Command, _ []string) error {
	app, err := tui.NewApp(newTUIPorts())
	if err != nil {
		return fmt.Errorf("failed to start console: %w", err)
	}

	// Log lines would corrupt the alt screen.
	prev := logger.Writer()
	logger.SetOutput(io.Discard)
	defer logger.SetOutput(prev)

	return app.WithContext(cmd.Context()).Run()
}
