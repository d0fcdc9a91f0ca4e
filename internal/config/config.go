// Package config resolves the runtime settings.
//
// Sources, highest precedence first:
//
//  1. RAGDESK_* environment variables (RAGDESK_API_URL, RAGDESK_PASSWORD, ...)
//  2. a .env file in the working directory
//  3. ~/.ragdesk/config.toml, as written by `ragdesk settings set`
//  4. built-in defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RAGDESK"

// Options locate the configuration sources.
type Options struct {
	// ConfigFile is the TOML settings file. Empty skips it.
	ConfigFile string

	// EnvFile is loaded into the environment before reading. Empty uses ".env".
	EnvFile string

	// Overrides are applied above every other source, e.g. from CLI flags.
	Overrides map[string]any
}

// envAliases maps environment names that do not follow the key layout.
var envAliases = map[string]string{
	domain.KeyAuthPassword: EnvPrefix + "_PASSWORD",
}

// Load merges defaults, the settings file, .env and the environment.
func Load(opts Options) (domain.AppSettings, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return domain.AppSettings{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, env, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))); err != nil {
			return domain.AppSettings{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return domain.AppSettings{}, fmt.Errorf("read %s: %w", opts.ConfigFile, err)
		}
	}

	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	return decode(v)
}

func setDefaults(v *viper.Viper) {
	d := domain.DefaultAppSettings()
	v.SetDefault(domain.KeyAPIURL, d.API.URL)
	v.SetDefault(domain.KeyAPIToken, d.API.Token)
	v.SetDefault(domain.KeyAPITimeout, d.API.Timeout.String())
	v.SetDefault(domain.KeyAPIMaxRetries, d.API.MaxRetries)
	v.SetDefault(domain.KeyAPIRateLimit, d.API.RateLimit)
	v.SetDefault(domain.KeyAuthPassword, d.Password)
	v.SetDefault(domain.KeyPollInterval, d.PollInterval.String())
	v.SetDefault(domain.KeyUploadMaxSize, humanize.IBytes(uint64(d.Upload.MaxSize)))
	v.SetDefault(domain.KeyDataDir, d.DataDir)
	v.SetDefault(domain.KeyDaemonAddr, d.DaemonAddr)
}

// decode reads every key back into AppSettings. Invalid values are errors
// here, unlike the settings service which falls back to defaults.
func decode(v *viper.Viper) (domain.AppSettings, error) {
	s := domain.DefaultAppSettings()
	var errs []error

	s.API.URL = strings.TrimRight(v.GetString(domain.KeyAPIURL), "/")
	s.API.Token = v.GetString(domain.KeyAPIToken)
	s.API.Timeout = duration(v, domain.KeyAPITimeout, &errs)
	s.API.MaxRetries = v.GetInt(domain.KeyAPIMaxRetries)
	s.API.RateLimit = v.GetFloat64(domain.KeyAPIRateLimit)
	s.Password = v.GetString(domain.KeyAuthPassword)
	s.PollInterval = duration(v, domain.KeyPollInterval, &errs)
	s.DataDir = v.GetString(domain.KeyDataDir)
	s.DaemonAddr = v.GetString(domain.KeyDaemonAddr)

	size, err := humanize.ParseBytes(v.GetString(domain.KeyUploadMaxSize))
	if err != nil || size == 0 {
		errs = append(errs, fmt.Errorf("%s: invalid size %q", domain.KeyUploadMaxSize, v.GetString(domain.KeyUploadMaxSize)))
	} else {
		s.Upload.MaxSize = int64(size)
	}

	if s.API.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", domain.KeyAPIMaxRetries))
	}
	if s.API.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", domain.KeyAPIRateLimit))
	}

	if len(errs) > 0 {
		return domain.AppSettings{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, errors.Join(errs...))
	}
	return s, nil
}

func duration(v *viper.Viper, key string, errs *[]error) time.Duration {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return 0
	}
	return d
}
