package domain

import (
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

// Setting keys stored in the ConfigStore and read through the config layer.
const (
	KeyAPIURL        = "api.url"
	KeyAPIToken      = "api.token"
	KeyAPITimeout    = "api.timeout"
	KeyAPIMaxRetries = "api.max_retries"
	KeyAPIRateLimit  = "api.rate_limit"
	KeyAuthPassword  = "auth.password"
	KeyPollInterval  = "poll.interval"
	KeyUploadMaxSize = "upload.max_size"
	KeyDataDir       = "data.dir"
	KeyDaemonAddr    = "daemon.addr"

	// Session keys are written by login and never set by the user.
	KeySessionToken  = "session.token"
	KeySessionSecret = "session.secret"
)

// UserSettableKeys lists the keys `settings set` accepts.
var UserSettableKeys = []string{
	KeyAPIURL,
	KeyAPIToken,
	KeyAPITimeout,
	KeyAPIMaxRetries,
	KeyAPIRateLimit,
	KeyPollInterval,
	KeyUploadMaxSize,
	KeyDaemonAddr,
}

// IsUserSettable reports whether key may be changed with `settings set`.
func IsUserSettable(key string) bool {
	for _, k := range UserSettableKeys {
		if k == key {
			return true
		}
	}
	return false
}

// IsSecretKey reports whether the value of key must be masked when shown.
func IsSecretKey(key string) bool {
	switch key {
	case KeyAPIToken, KeyAuthPassword, KeySessionToken, KeySessionSecret:
		return true
	}
	return false
}

// DevPassword is the login password used when none is configured.
const DevPassword = "ragdesk-dev"

// AppSettings holds the resolved runtime settings.
type AppSettings struct {
	// API holds backend connection settings.
	API APISettings

	// Password is the login password.
	Password string

	// PollInterval is the document status poll period.
	PollInterval time.Duration

	// Upload is the client-side upload policy.
	Upload UploadPolicy

	// DataDir holds local state such as the chat history database.
	DataDir string

	// DaemonAddr is the listen address of `ragdesk serve`.
	DaemonAddr string
}

// APISettings configures the backend client.
type APISettings struct {
	// URL is the backend base URL.
	URL string

	// Token is an optional bearer token.
	Token string

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// MaxRetries is the attempt limit for retryable failures.
	MaxRetries int

	// RateLimit is the request rate ceiling per second. Zero disables it.
	RateLimit float64
}

// DefaultAppSettings returns settings with local development defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		API: APISettings{
			URL:        "http://localhost:8000",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			RateLimit:  10,
		},
		Password:     DevPassword,
		PollInterval: 3 * time.Second,
		Upload:       DefaultUploadPolicy(),
		DaemonAddr:   "127.0.0.1:8787",
	}
}

// UsesDevPassword reports whether login falls back to the development password.
func (s AppSettings) UsesDevPassword() bool {
	return s.Password == "" || s.Password == DevPassword
}

// Effective renders the resolved value of a setting key in the form
// `settings set` accepts. Unknown keys return "".
func (s AppSettings) Effective(key string) string {
	switch key {
	case KeyAPIURL:
		return s.API.URL
	case KeyAPIToken:
		return s.API.Token
	case KeyAPITimeout:
		return s.API.Timeout.String()
	case KeyAPIMaxRetries:
		return strconv.Itoa(s.API.MaxRetries)
	case KeyAPIRateLimit:
		return strconv.FormatFloat(s.API.RateLimit, 'f', -1, 64)
	case KeyAuthPassword:
		return s.Password
	case KeyPollInterval:
		return s.PollInterval.String()
	case KeyUploadMaxSize:
		return humanize.IBytes(uint64(max(s.Upload.MaxSize, 0)))
	case KeyDataDir:
		return s.DataDir
	case KeyDaemonAddr:
		return s.DaemonAddr
	}
	return ""
}
