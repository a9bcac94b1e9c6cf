package config

// Default values for configuration options. These represent the "layer 0"
// of the four-layer override chain and are chosen so the tool works against
// the public API without any config file beyond credentials.
const (
	defaultAPIBaseURL     = "https://api.box.com"
	defaultExpiredBuffer  = "10m"
	defaultMaxRetries     = 5
	defaultRetryInterval  = "2s"
	defaultRequestTimeout = "60s"
	defaultUserAgent      = "box-go"
	defaultLogLevel       = "info"
	defaultLogFormat      = "auto"
	defaultTokenStore     = "file"
	defaultStoreName      = "default"
	defaultAlgorithm      = "RS256"
	defaultExpiration     = "30s"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Auth: AuthConfig{
			APIBaseURL:    defaultAPIBaseURL,
			ExpiredBuffer: defaultExpiredBuffer,
		},
		Network: NetworkConfig{
			MaxRetries:     defaultMaxRetries,
			RetryInterval:  defaultRetryInterval,
			RequestTimeout: defaultRequestTimeout,
			UserAgent:      defaultUserAgent,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		Storage: StorageConfig{
			TokenStore: defaultTokenStore,
			StoreName:  defaultStoreName,
		},
		AppAuth: AppAuthConfig{
			Algorithm:      defaultAlgorithm,
			ExpirationTime: defaultExpiration,
		},
	}
}
