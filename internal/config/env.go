package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig       = "BOX_GO_CONFIG"
	EnvClientID     = "BOX_GO_CLIENT_ID"
	EnvClientSecret = "BOX_GO_CLIENT_SECRET"
	EnvStorePath    = "BOX_GO_TOKEN_STORE"
	EnvLogLevel     = "BOX_GO_LOG_LEVEL"
)

// EnvOverrides holds values derived from environment variables.
// Credentials are deliberately overridable from the environment so CI jobs
// never have to write secrets into a config file.
type EnvOverrides struct {
	ConfigPath   string // BOX_GO_CONFIG: override config file path
	ClientID     string // BOX_GO_CLIENT_ID
	ClientSecret string // BOX_GO_CLIENT_SECRET
	StorePath    string // BOX_GO_TOKEN_STORE: token store path override
	LogLevel     string // BOX_GO_LOG_LEVEL
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:   os.Getenv(EnvConfig),
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
		StorePath:    os.Getenv(EnvStorePath),
		LogLevel:     os.Getenv(EnvLogLevel),
	}
}
