package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:     "settings",
	Aliases: []string{"config"},
	Short:   "View and change settings",
	Long: `Settings are stored in the ragdesk config file. Environment variables
prefixed with RAGDESK_ override them.

Examples:
  ragdesk settings show
  ragdesk settings set api.url https://rag.example.com
  ragdesk settings unset poll.interval`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show every setting with its effective value",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print the effective value of a setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Store a setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

var settingsUnsetCmd = &cobra.Command{
	Use:   "unset KEY",
	Short: "Restore a setting's default",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsUnset,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the settable keys",
	Args:  cobra.NoArgs,
	RunE:  runSettingsKeys,
}

var showSecrets bool

const secretMask = "********"

func init() {
	settingsShowCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print secret values in clear")
	settingsGetCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print secret values in clear")

	settingsCmd.AddCommand(settingsShowCmd, settingsGetCmd, settingsSetCmd, settingsUnsetCmd, settingsKeysCmd)
	rootCmd.AddCommand(settingsCmd)
}

// displayValue masks secrets unless --show-secrets is set.
func displayValue(key, value string) string {
	if value != "" && domain.IsSecretKey(key) && !showSecrets {
		return secretMask
	}
	return value
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return notConfigured("settings")
	}
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	type row struct {
		Key    string `json:"key"`
		Value  string `json:"value"`
		Source string `json:"source"`
	}
	keys := settingsService.Keys()
	rows := make([]row, 0, len(keys))
	for _, key := range keys {
		source := "default"
		if _, ok := settingsService.Value(key); ok {
			source = "set"
		}
		rows = append(rows, row{Key: key, Value: displayValue(key, settings.Effective(key)), Source: source})
	}

	if jsonOutput {
		return printJSON(cmd, rows)
	}
	for _, r := range rows {
		cmd.Printf("%-18s %-32s %s\n", r.Key, r.Value, r.Source)
	}
	if sessionService != nil && sessionService.UsingDevPassword() {
		cmd.Println("\nNo RAGDESK_PASSWORD set: the development password is accepted.")
	}
	return nil
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return notConfigured("settings")
	}
	key := args[0]
	if !domain.IsUserSettable(key) {
		return fmt.Errorf("%w: unknown key %q", domain.ErrInvalidInput, key)
	}
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	cmd.Println(displayValue(key, settings.Effective(key)))
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return notConfigured("settings")
	}
	key, value := args[0], args[1]
	if err := settingsService.Set(key, value); err != nil {
		return err
	}
	cmd.Printf("%s = %s\n", key, displayValue(key, value))
	return nil
}

func runSettingsUnset(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return notConfigured("settings")
	}
	if err := settingsService.Unset(args[0]); err != nil {
		return err
	}
	cmd.Printf("%s restored to default.\n", args[0])
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return notConfigured("settings")
	}
	keys := settingsService.Keys()
	if jsonOutput {
		return printJSON(cmd, keys)
	}
	for _, k := range keys {
		cmd.Println(k)
	}
	return nil
}
