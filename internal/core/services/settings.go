package services

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// SettingsService manages user-set values in the ConfigStore.
// Values are stored as the strings the user typed and parsed on read.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get resolves stored values over the defaults. Values that fail to parse
// fall back to the default.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings := domain.DefaultAppSettings()

	settings.API.URL = s.getString(domain.KeyAPIURL, settings.API.URL)
	settings.API.Token = s.getString(domain.KeyAPIToken, settings.API.Token)
	settings.API.Timeout = s.getDuration(domain.KeyAPITimeout, settings.API.Timeout)
	settings.API.MaxRetries = s.getInt(domain.KeyAPIMaxRetries, settings.API.MaxRetries)
	settings.API.RateLimit = s.getFloat(domain.KeyAPIRateLimit, settings.API.RateLimit)
	settings.Password = s.getString(domain.KeyAuthPassword, settings.Password)
	settings.PollInterval = s.getDuration(domain.KeyPollInterval, settings.PollInterval)
	settings.Upload.MaxSize = s.getBytes(domain.KeyUploadMaxSize, settings.Upload.MaxSize)
	settings.DataDir = s.getString(domain.KeyDataDir, settings.DataDir)
	settings.DaemonAddr = s.getString(domain.KeyDaemonAddr, settings.DaemonAddr)

	return &settings, nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Keys returns the user-settable keys.
func (s *SettingsService) Keys() []string {
	keys := make([]string, len(domain.UserSettableKeys))
	copy(keys, domain.UserSettableKeys)
	return keys
}

// Value returns the stored value of key.
func (s *SettingsService) Value(key string) (string, bool) {
	v, ok := s.configStore.Get(key)
	if !ok {
		return "", false
	}
	return fmt.Sprint(v), true
}

// Set validates value for key and stores it.
func (s *SettingsService) Set(key, value string) error {
	if !domain.IsUserSettable(key) {
		return fmt.Errorf("%w: %q is not a setting (known: %s)",
			domain.ErrInvalidInput, key, strings.Join(domain.UserSettableKeys, ", "))
	}
	value = strings.TrimSpace(value)
	if err := ValidateSetting(key, value); err != nil {
		return err
	}
	if err := s.configStore.Set(key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Unset removes a stored value so the default applies again.
func (s *SettingsService) Unset(key string) error {
	if !domain.IsUserSettable(key) {
		return fmt.Errorf("%w: %q is not a setting", domain.ErrInvalidInput, key)
	}
	return s.configStore.Delete(key)
}

// ValidateSetting checks a raw value for key.
func ValidateSetting(key, value string) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", domain.ErrInvalidInput, key, fmt.Sprintf(format, args...))
	}

	switch key {
	case domain.KeyAPIURL:
		u, err := url.Parse(value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return invalid("expected an http or https URL, got %q", value)
		}
	case domain.KeyAPITimeout, domain.KeyPollInterval:
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return invalid("expected a positive duration such as 3s, got %q", value)
		}
	case domain.KeyAPIMaxRetries:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return invalid("expected a whole number of at least 1, got %q", value)
		}
	case domain.KeyAPIRateLimit:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return invalid("expected a non-negative number, got %q", value)
		}
	case domain.KeyUploadMaxSize:
		n, err := humanize.ParseBytes(value)
		if err != nil || n == 0 {
			return invalid("expected a size such as 50MB, got %q", value)
		}
	case domain.KeyDaemonAddr:
		if _, _, err := net.SplitHostPort(value); err != nil {
			return invalid("expected host:port, got %q", value)
		}
	case domain.KeyAPIToken:
		// Any value, including empty, is accepted.
	}
	return nil
}

func (s *SettingsService) getString(key, fallback string) string {
	if v := s.configStore.GetString(key); v != "" {
		return v
	}
	return fallback
}

func (s *SettingsService) getDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := s.Value(key)
	if !ok {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return fallback
}

func (s *SettingsService) getInt(key string, fallback int) int {
	raw, ok := s.Value(key)
	if !ok {
		return fallback
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return n
	}
	return fallback
}

func (s *SettingsService) getFloat(key string, fallback float64) float64 {
	raw, ok := s.Value(key)
	if !ok {
		return fallback
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f >= 0 {
		return f
	}
	return fallback
}

func (s *SettingsService) getBytes(key string, fallback int64) int64 {
	raw, ok := s.Value(key)
	if !ok {
		return fallback
	}
	if n, err := humanize.ParseBytes(raw); err == nil && n > 0 {
		return int64(n)
	}
	return fallback
}
