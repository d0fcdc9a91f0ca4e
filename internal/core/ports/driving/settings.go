package driving

import "github.com/custodia-labs/ragdesk/internal/core/domain"

// SettingsService manages user-set configuration values.
type SettingsService interface {
	// Get resolves the current settings over the defaults.
	Get() (*domain.AppSettings, error)

	// Value returns the stored value of a key and whether it is set.
	Value(key string) (string, bool)

	// Set validates and stores a user-settable key.
	Set(key, value string) error

	// Unset removes a user-set value so the default applies again.
	Unset(key string) error

	// Keys returns the user-settable keys.
	Keys() []string

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
