// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for box-go. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Auth    AuthConfig    `toml:"auth"`
	Network NetworkConfig `toml:"network"`
	Logging LoggingConfig `toml:"logging"`
	Storage StorageConfig `toml:"storage"`
	AppAuth AppAuthConfig `toml:"app_auth"`
}

// AuthConfig holds the OAuth2 application credentials and token lifetime
// tuning. client_secret may be left empty for public clients and JWT apps
// that authenticate with a signed assertion instead.
type AuthConfig struct {
	ClientID      string `toml:"client_id"`
	ClientSecret  string `toml:"client_secret"`
	APIBaseURL    string `toml:"api_base_url"`
	ExpiredBuffer string `toml:"expired_buffer"`
}

// NetworkConfig controls HTTP client behavior: retry tuning, timeouts, and
// the User-Agent header.
type NetworkConfig struct {
	MaxRetries     int    `toml:"max_retries"`
	RetryInterval  string `toml:"retry_interval"`
	RequestTimeout string `toml:"request_timeout"`
	UserAgent      string `toml:"user_agent"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// StorageConfig selects where refreshed tokens are persisted. token_store
// is one of "file", "sqlite", or "none"; store_name keys the row when several
// subjects share one SQLite database.
type StorageConfig struct {
	TokenStore     string `toml:"token_store"`
	TokenStorePath string `toml:"token_store_path"`
	StoreName      string `toml:"store_name"`
}

// AppAuthConfig holds the server-auth key material for the JWT grant.
// Exactly one of private_key_file and private_key should be set; inline PEM
// is mainly for environments that inject secrets through config management.
type AppAuthConfig struct {
	KeyID           string `toml:"key_id"`
	PrivateKeyFile  string `toml:"private_key_file"`
	PrivateKey      string `toml:"private_key"`
	Passphrase      string `toml:"passphrase"`
	Algorithm       string `toml:"algorithm"`
	ExpirationTime  string `toml:"expiration_time"`
	VerifyTimestamp bool   `toml:"verify_timestamp"`
	EnterpriseID    string `toml:"enterprise_id"`
	UserID          string `toml:"user_id"`
}

// Configured reports whether any app-auth key material is present.
func (a AppAuthConfig) Configured() bool {
	return a.KeyID != "" || a.PrivateKeyFile != "" || a.PrivateKey != ""
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to zero value".
type CLIOverrides struct {
	ConfigPath string  // --config flag (empty = use default)
	ClientID   *string // --client-id flag
	LogLevel   *string // --log-level flag (also set by --verbose/--quiet)
	StorePath  *string // --token-store flag
}

// ExpiredBufferDuration returns the parsed expired_buffer. Validate
// guarantees the stored string parses; the zero value of an unvalidated
// Config yields 0.
func (a AuthConfig) ExpiredBufferDuration() time.Duration {
	d, _ := time.ParseDuration(a.ExpiredBuffer)
	return d
}

// RetryIntervalDuration returns the parsed retry_interval.
func (n NetworkConfig) RetryIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(n.RetryInterval)
	return d
}

// RequestTimeoutDuration returns the parsed request_timeout.
func (n NetworkConfig) RequestTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(n.RequestTimeout)
	return d
}

// ExpirationDuration returns the parsed assertion expiration_time.
func (a AppAuthConfig) ExpirationDuration() time.Duration {
	d, _ := time.ParseDuration(a.ExpirationTime)
	return d
}
