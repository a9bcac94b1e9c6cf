// Package boxauth implements the Box token lifecycle: the token manager that
// drives every OAuth2 grant against the token endpoint, and the session
// variants that cache, refresh, and revoke access tokens with at-most-one
// concurrent refresh per session.
package boxauth

import "time"

// TokenInfo is the result of a successful grant. AcquiredAt is stamped the
// moment the grant response is parsed, never earlier. Instances are replaced
// wholesale on refresh, never mutated field by field.
type TokenInfo struct {
	AccessToken  string
	RefreshToken string
	AcquiredAt   time.Time
	TTL          time.Duration
}

// ValidAt reports whether the token can still be used at the given instant,
// leaving buffer of margin before the real expiry. Nil and empty tokens are
// never valid.
func (t *TokenInfo) ValidAt(at time.Time, buffer time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}

	return at.Before(t.AcquiredAt.Add(t.TTL - buffer))
}
