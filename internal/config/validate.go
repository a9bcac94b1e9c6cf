package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Validation range constants.
const (
	maxRetryCeiling    = 20
	minRetryInterval   = 100 * time.Millisecond
	minRequestTimeout  = 1 * time.Second
	maxAssertionExpiry = 60 * time.Second
)

// validLogLevels are the accepted log_level values.
var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// validLogFormats are the accepted log_format values.
var validLogFormats = map[string]bool{
	"auto": true, "text": true, "json": true,
}

// validTokenStores are the accepted token_store values.
var validTokenStores = map[string]bool{
	"file": true, "sqlite": true, "none": true,
}

// validAlgorithms are the accepted app_auth signing algorithms.
var validAlgorithms = map[string]bool{
	"RS256": true, "RS384": true, "RS512": true,
}

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateAppAuth(&cfg.AppAuth)...)

	return errors.Join(errs...)
}

func validateAuth(a *AuthConfig) []error {
	var errs []error

	u, err := url.Parse(a.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api_base_url: must be an absolute URL, got %q", a.APIBaseURL))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Errorf("api_base_url: scheme must be http or https, got %q", u.Scheme))
	}

	buffer, err := time.ParseDuration(a.ExpiredBuffer)
	if err != nil {
		errs = append(errs, fmt.Errorf("expired_buffer: %w", err))
	} else if buffer < 0 {
		errs = append(errs, fmt.Errorf("expired_buffer: must not be negative, got %s", buffer))
	}

	return errs
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	if n.MaxRetries < 0 || n.MaxRetries > maxRetryCeiling {
		errs = append(errs, fmt.Errorf("max_retries: must be between 0 and %d, got %d",
			maxRetryCeiling, n.MaxRetries))
	}

	interval, err := time.ParseDuration(n.RetryInterval)
	if err != nil {
		errs = append(errs, fmt.Errorf("retry_interval: %w", err))
	} else if interval < minRetryInterval {
		errs = append(errs, fmt.Errorf("retry_interval: must be at least %s, got %s",
			minRetryInterval, interval))
	}

	timeout, err := time.ParseDuration(n.RequestTimeout)
	if err != nil {
		errs = append(errs, fmt.Errorf("request_timeout: %w", err))
	} else if timeout < minRequestTimeout {
		errs = append(errs, fmt.Errorf("request_timeout: must be at least %s, got %s",
			minRequestTimeout, timeout))
	}

	return errs
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[l.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level: must be debug, info, warn, or error, got %q", l.LogLevel))
	}

	if !validLogFormats[l.LogFormat] {
		errs = append(errs, fmt.Errorf("log_format: must be auto, text, or json, got %q", l.LogFormat))
	}

	return errs
}

func validateStorage(s *StorageConfig) []error {
	var errs []error

	if !validTokenStores[s.TokenStore] {
		errs = append(errs, fmt.Errorf("token_store: must be file, sqlite, or none, got %q", s.TokenStore))
	}

	if s.StoreName == "" {
		errs = append(errs, errors.New("store_name: must not be empty"))
	}

	return errs
}

func validateAppAuth(a *AppAuthConfig) []error {
	if !a.Configured() {
		return nil
	}

	var errs []error

	if a.KeyID == "" {
		errs = append(errs, errors.New("app_auth.key_id: required when app auth is configured"))
	}

	switch {
	case a.PrivateKeyFile == "" && a.PrivateKey == "":
		errs = append(errs, errors.New("app_auth: one of private_key_file or private_key is required"))
	case a.PrivateKeyFile != "" && a.PrivateKey != "":
		errs = append(errs, errors.New("app_auth: private_key_file and private_key are mutually exclusive"))
	}

	if !validAlgorithms[a.Algorithm] {
		errs = append(errs, fmt.Errorf("app_auth.algorithm: must be RS256, RS384, or RS512, got %q", a.Algorithm))
	}

	expiry, err := time.ParseDuration(a.ExpirationTime)
	if err != nil {
		errs = append(errs, fmt.Errorf("app_auth.expiration_time: %w", err))
	} else if expiry <= 0 || expiry > maxAssertionExpiry {
		errs = append(errs, fmt.Errorf("app_auth.expiration_time: must be within (0, %s], got %s",
			maxAssertionExpiry, expiry))
	}

	if a.EnterpriseID != "" && a.UserID != "" {
		errs = append(errs, errors.New("app_auth: enterprise_id and user_id are mutually exclusive"))
	}

	return errs
}
