// Package config loads runtime settings for the session manager and the CLI
// harness. Values are resolved in three stages, later stages overriding
// earlier ones: built-in defaults, environment variables, command-line
// flags.
package config

import "time"

// Config holds runtime settings for the session manager.
type Config struct {
	// APIBaseURL is the root of the platform API, e.g. "https://api.example.com".
	APIBaseURL string `env:"AUTH_API_BASE_URL"`

	// RequestTimeout bounds every outgoing API call.
	RequestTimeout time.Duration `env:"AUTH_REQUEST_TIMEOUT"`

	// CredentialDBPath is the SQLite file of the durable credential channel.
	CredentialDBPath string `env:"AUTH_CREDENTIAL_DB"`

	// CookieFilePath is the file of the cookie credential channel.
	CookieFilePath string `env:"AUTH_COOKIE_FILE"`

	// CookieMaxAge bounds the lifetime of the stored cookie records.
	CookieMaxAge time.Duration `env:"AUTH_COOKIE_MAX_AGE"`

	// WatchInterval is how often the store is polled for external changes.
	WatchInterval time.Duration `env:"AUTH_WATCH_INTERVAL"`

	// LoginMaxAttempts and LoginWindow tune the failed-login limiter.
	LoginMaxAttempts int           `env:"AUTH_LOGIN_MAX_ATTEMPTS"`
	LoginWindow      time.Duration `env:"AUTH_LOGIN_WINDOW"`

	// RefreshMaxAttempts caps retries of a transiently failing token refresh.
	RefreshMaxAttempts int `env:"AUTH_REFRESH_MAX_ATTEMPTS"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 10 * time.Second
	c.CredentialDBPath = "session.db"
	c.CookieFilePath = "session_cookies.json"
	c.CookieMaxAge = 24 * time.Hour
	c.WatchInterval = 3 * time.Second
	c.LoginMaxAttempts = 5
	c.LoginWindow = 15 * time.Minute
	c.RefreshMaxAttempts = 3
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from the environment and command-line flags.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	parseFlags(cfg)
	return cfg, nil
}
