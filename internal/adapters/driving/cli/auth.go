package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Start a session",
	Long: `Checks the console password and stores a session valid for 24 hours.

The password comes from RAGDESK_PASSWORD. Without it the development
password is accepted and a warning is printed.

Examples:
  ragdesk login
  echo "$PASSWORD" | ragdesk login --password-stdin`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session and backend status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var passwordStdin bool

// readPassword reads a password without echo. Replaced in tests.
var readPassword = func(fd int) ([]byte, error) {
	return term.ReadPassword(fd)
}

// isTerminal reports whether fd is a terminal. Replaced in tests.
var isTerminal = term.IsTerminal

func init() {
	loginCmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
}

func runLogin(cmd *cobra.Command, _ []string) error {
	if sessionService == nil {
		return notConfigured("session")
	}

	if sessionService.UsingDevPassword() {
		cmd.PrintErrln("Warning: RAGDESK_PASSWORD is not set, the development password is in use.")
	}

	password, err := promptPassword(cmd)
	if err != nil {
		return err
	}

	session, err := sessionService.Login(password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return errors.New("login failed: wrong password")
		}
		return fmt.Errorf("login failed: %w", err)
	}

	cmd.Printf("Logged in. Session expires %s.\n", humanize.Time(session.ExpiresAt))
	return nil
}

func promptPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !passwordStdin && cmd.InOrStdin() == os.Stdin && isTerminal(fd) {
		cmd.Print("Password: ")
		b, err := readPassword(fd)
		cmd.Println()
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("no password given on stdin")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	if sessionService == nil {
		return notConfigured("session")
	}
	if err := sessionService.Logout(); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	cmd.Println("Logged out.")
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	type statusView struct {
		Subject    string              `json:"subject"`
		ExpiresAt  time.Time           `json:"expires_at"`
		DevPasword bool                `json:"dev_password"`
		Backend    domain.SystemHealth `json:"backend"`
		InFlight   int                 `json:"in_flight"`
	}

	var out statusView
	if sessionService != nil {
		if s, err := sessionService.Current(); err == nil {
			out.Subject = s.Subject
			out.ExpiresAt = s.ExpiresAt
		}
		out.DevPasword = sessionService.UsingDevPassword()
	}
	out.Backend = domain.UnknownHealth()
	if analyticsService != nil {
		// A failed health call still yields the unknown status.
		out.Backend, _ = analyticsService.Health(cmd.Context())
	}
	if statusPoller != nil {
		out.InFlight = len(statusPoller.InFlight(domain.PollProcessing)) +
			len(statusPoller.InFlight(domain.PollReprocessing))
	}

	if jsonOutput {
		return printJSON(cmd, out)
	}

	if out.Subject != "" {
		cmd.Printf("Session:  %s, expires %s\n", out.Subject, humanize.Time(out.ExpiresAt))
	} else {
		cmd.Println("Session:  none")
	}
	if out.DevPasword {
		cmd.Println("Password: development fallback")
	}
	cmd.Printf("Backend:  %s", out.Backend.Status)
	if out.Backend.Version != "" {
		cmd.Printf(" (v%s)", out.Backend.Version)
	}
	cmd.Println()
	for _, name := range out.Backend.ComponentNames() {
		cmd.Printf("  %-16s %s\n", name, out.Backend.Components[name])
	}
	return nil
}
