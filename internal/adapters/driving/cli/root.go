// Package cli provides the ragdesk command line interface.
package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

// version is set at build time.
var version = "dev"

// Services wires the driving ports into the commands.
type Services struct {
	Documents driving.DocumentService
	Poller    driving.StatusPoller
	Chat      driving.ChatService
	Topics    driving.TopicService
	Analytics driving.AnalyticsService
	Settings  driving.SettingsService
	Sessions  driving.SessionService

	// MCPChat answers MCP questions without touching the console
	// conversation. Falls back to Chat when nil.
	MCPChat driving.ChatService

	// Notifications feeds TUI toasts. Optional.
	Notifications <-chan domain.Notification

	// Metrics is served by the daemon at /metrics. Optional.
	Metrics http.Handler
}

var (
	documentService  driving.DocumentService
	statusPoller     driving.StatusPoller
	chatService      driving.ChatService
	mcpChatService   driving.ChatService
	topicService     driving.TopicService
	analyticsService driving.AnalyticsService
	settingsService  driving.SettingsService
	sessionService   driving.SessionService
	notifications    <-chan domain.Notification
	metricsHandler   http.Handler
)

// Global flags.
var (
	verboseFlag bool
	jsonOutput  bool
	assumeYes   bool
)

// sessionExempt lists commands that run without a login session.
var sessionExempt = map[string]bool{
	"login":            true,
	"logout":           true,
	"version":          true,
	"help":             true,
	"completion":       true,
	"__complete":       true,
	"__completeNoDesc": true,
}

var rootCmd = &cobra.Command{
	Use:   "ragdesk",
	Short: "Console for a document Q&A backend",
	Long: `ragdesk talks to a retrieval-augmented-generation backend: upload and
process documents, ask questions about them, browse the topics the backend
derives, and read its analytics.

Run 'ragdesk login' first; every other command needs a session.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentPreRunE = preRun
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation prompts")
}

// SetServices sets the services used by every command.
func SetServices(s *Services) {
	documentService = s.Documents
	statusPoller = s.Poller
	chatService = s.Chat
	mcpChatService = s.MCPChat
	topicService = s.Topics
	analyticsService = s.Analytics
	settingsService = s.Settings
	sessionService = s.Sessions
	notifications = s.Notifications
	metricsHandler = s.Metrics
}

// SetVersion sets the version reported by `ragdesk version`.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func preRun(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verboseFlag)
	return requireSession(cmd)
}

// requireSession rejects commands that need a login when none is valid.
func requireSession(cmd *cobra.Command) error {
	for c := cmd; c != nil && c != rootCmd; c = c.Parent() {
		if sessionExempt[c.Name()] {
			return nil
		}
	}
	if sessionService == nil {
		return nil
	}
	s, err := sessionService.Current()
	if err != nil {
		if errors.Is(err, domain.ErrSessionExpired) {
			return fmt.Errorf("not logged in, run 'ragdesk login': %w", err)
		}
		return fmt.Errorf("checking session: %w", err)
	}
	logger.Debug("session for %s valid until %s", s.Subject, s.ExpiresAt.Format("2006-01-02 15:04"))
	return nil
}

// confirm asks a yes/no question on the command's input. --yes answers yes.
func confirm(cmd *cobra.Command, prompt string) bool {
	if assumeYes {
		return true
	}
	cmd.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		cmd.Println()
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// errAborted is returned when the user declines a confirmation.
var errAborted = errors.New("aborted")

// printJSON writes v as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// notConfigured reports a missing service.
func notConfigured(name string) error {
	return fmt.Errorf("%s service not configured", name)
}
