package config

import (
	"fmt"
	"io"
)

// redactedValue replaces secrets in rendered output.
const redactedValue = "[REDACTED]"

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. This powers the "config show" command, giving
// users visibility into the effective values after all four override layers
// (defaults -> file -> env -> CLI) have been applied. Secrets are redacted.
func RenderEffective(cfg *Config, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration\n\n")

	renderAuthSection(ew, &cfg.Auth)
	renderNetworkSection(ew, &cfg.Network)
	renderLoggingSection(ew, &cfg.Logging)
	renderStorageSection(ew, &cfg.Storage)
	renderAppAuthSection(ew, &cfg.AppAuth)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderAuthSection(ew *errWriter, a *AuthConfig) {
	ew.printf("[auth]\n")
	ew.printf("  client_id      = %q\n", a.ClientID)

	if a.ClientSecret != "" {
		ew.printf("  client_secret  = %q\n", redactedValue)
	}

	ew.printf("  api_base_url   = %q\n", a.APIBaseURL)
	ew.printf("  expired_buffer = %q\n", a.ExpiredBuffer)
	ew.printf("\n")
}

func renderNetworkSection(ew *errWriter, n *NetworkConfig) {
	ew.printf("[network]\n")
	ew.printf("  max_retries     = %d\n", n.MaxRetries)
	ew.printf("  retry_interval  = %q\n", n.RetryInterval)
	ew.printf("  request_timeout = %q\n", n.RequestTimeout)
	ew.printf("  user_agent      = %q\n", n.UserAgent)
	ew.printf("\n")
}

func renderLoggingSection(ew *errWriter, l *LoggingConfig) {
	ew.printf("[logging]\n")
	ew.printf("  log_level  = %q\n", l.LogLevel)
	ew.printf("  log_format = %q\n", l.LogFormat)
	ew.printf("\n")
}

func renderStorageSection(ew *errWriter, s *StorageConfig) {
	ew.printf("[storage]\n")
	ew.printf("  token_store      = %q\n", s.TokenStore)
	ew.printf("  token_store_path = %q\n", s.TokenStorePath)
	ew.printf("  store_name       = %q\n", s.StoreName)
}

func renderAppAuthSection(ew *errWriter, a *AppAuthConfig) {
	if !a.Configured() {
		return
	}

	ew.printf("\n[app_auth]\n")
	ew.printf("  key_id           = %q\n", a.KeyID)

	if a.PrivateKeyFile != "" {
		ew.printf("  private_key_file = %q\n", a.PrivateKeyFile)
	}

	if a.PrivateKey != "" {
		ew.printf("  private_key      = %q\n", redactedValue)
	}

	if a.Passphrase != "" {
		ew.printf("  passphrase       = %q\n", redactedValue)
	}

	ew.printf("  algorithm        = %q\n", a.Algorithm)
	ew.printf("  expiration_time  = %q\n", a.ExpirationTime)
	ew.printf("  verify_timestamp = %t\n", a.VerifyTimestamp)

	if a.EnterpriseID != "" {
		ew.printf("  enterprise_id    = %q\n", a.EnterpriseID)
	}

	if a.UserID != "" {
		ew.printf("  user_id          = %q\n", a.UserID)
	}
}
