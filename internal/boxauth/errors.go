package boxauth

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to check.
var (
	// ErrAuth marks an invalid_grant response from the token endpoint. The
	// grant used is permanently dead, though a persistent session may still
	// recover via its token store.
	ErrAuth = errors.New("boxauth: invalid grant")

	// ErrMalformedTokenResponse marks a 200 token response missing required
	// fields. Permanent, never retried.
	ErrMalformedTokenResponse = errors.New("boxauth: malformed token response")

	// ErrExpiredTokens marks a refresh token confirmed dead. Any configured
	// token store has been cleared before this propagates.
	ErrExpiredTokens = errors.New("boxauth: expired tokens, re-authorization required")

	// ErrNoRefreshCapability marks a session that cannot acquire a new token.
	ErrNoRefreshCapability = errors.New("boxauth: session has no way to refresh its token")
)

// AuthError is the distinguished error for invalid_grant responses, carrying
// the server's human-readable error_description and the underlying request
// error for logging.
type AuthError struct {
	Description string
	Cause       error
}

func (e *AuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("boxauth: invalid grant: %s", e.Description)
	}

	return "boxauth: invalid grant"
}

// Is makes errors.Is(err, ErrAuth) match any AuthError.
func (e *AuthError) Is(target error) bool {
	return target == ErrAuth
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}
