package boxauth

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tonimelisma/box-go/internal/boxhttp"
)

// Assertion lifetime bounds enforced by the token endpoint.
const (
	defaultAssertionLifetime = 30 * time.Second
	maxAssertionLifetime     = 60 * time.Second
)

// AppAuthConfig holds the key material for JWT server authentication.
type AppAuthConfig struct {
	KeyID      string
	PrivateKey []byte // PEM-encoded RSA key
	Passphrase string
	// Algorithm is RS256, RS384, or RS512. Defaults to RS256.
	Algorithm string
	// ExpirationTime is the assertion lifetime, capped at 60 seconds by the
	// token endpoint. Defaults to 30 seconds.
	ExpirationTime time.Duration
	// VerifyTimestamp adds an iat claim so the server can reject assertions
	// signed by badly skewed clocks outright instead of at the exp check.
	VerifyTimestamp bool
}

// parseKey decodes the PEM private key, decrypting it when a passphrase is
// configured.
func (a *AppAuthConfig) parseKey() (crypto.PrivateKey, error) {
	if a.Passphrase != "" {
		key, err := jwt.ParseRSAPrivateKeyFromPEMWithPassword(a.PrivateKey, a.Passphrase) //nolint:staticcheck // encrypted PKCS#1 keys come from the developer console
		if err != nil {
			return nil, fmt.Errorf("boxauth: parsing encrypted private key: %w", err)
		}

		return key, nil
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(a.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("boxauth: parsing private key: %w", err)
	}

	return key, nil
}

// signingKey returns the parsed app-auth key, parsing it once.
func (m *Manager) signingKey() (crypto.PrivateKey, error) {
	m.keyOnce.Do(func() {
		m.key, m.keyErr = m.appAuth.parseKey()
	})

	return m.key, m.keyErr
}

// GetTokensJWTGrant obtains an access token for the given app-level entity by
// signing and POSTing a JWT assertion.
//
// The retry loop here is distinct from the executor's: a JWT assertion embeds
// an expiry claim and a one-time jti, so a failed attempt cannot simply be
// resent — the assertion is regenerated with a fresh jti and an exp computed
// from the server's reported time. The executor's own retries are disabled
// for these requests.
func (m *Manager) GetTokensJWTGrant(ctx context.Context, subType SubjectType, subID string, opts *TokenRequestOptions) (*TokenInfo, error) {
	if m.appAuth == nil {
		return nil, errors.New("boxauth: app auth is not configured")
	}

	key, err := m.signingKey()
	if err != nil {
		return nil, err
	}

	m.logger.Info("requesting JWT grant tokens",
		slog.String("subject_type", string(subType)),
	)

	start := m.now()

	// exp is computed from expBase + lifetime + the backoff delay about to be
	// slept. On the first attempt expBase is the local clock; on retries it is
	// the server's Date from the failed attempt, so skewed local clocks cannot
	// make every assertion arrive already expired.
	expBase := m.now()

	var extraDelay time.Duration

	var attempt int

	for {
		assertion, signErr := m.signAssertion(key, subType, subID, expBase.Add(extraDelay))
		if signErr != nil {
			return nil, signErr
		}

		form := url.Values{
			"grant_type": {grantJWTBearer},
			"assertion":  {assertion},
		}

		info, grantErr := m.getTokens(ctx, form, opts, false, true)
		if grantErr == nil {
			return info, nil
		}

		retryable, serverDate := jwtRetryable(grantErr)
		if !retryable {
			return nil, grantErr
		}

		if attempt >= m.maxRetries {
			return nil, &boxhttp.RequestError{
				MaxRetriesExceeded: true,
				Err:                fmt.Errorf("%w: %w", boxhttp.ErrMaxRetries, grantErr),
			}
		}

		delay, delayErr := m.jwtDelay(grantErr, attempt, start)
		if delayErr != nil {
			return nil, delayErr
		}

		if serverDate.IsZero() {
			serverDate = m.now()
		}

		expBase = serverDate
		extraDelay = delay

		m.logger.Warn("retrying JWT grant with fresh assertion",
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", delay),
			slog.String("error", grantErr.Error()),
		)

		if sleepErr := m.sleepFunc(ctx, delay); sleepErr != nil {
			return nil, fmt.Errorf("boxauth: JWT grant canceled: %w", sleepErr)
		}

		attempt++
	}
}

// signAssertion builds and signs one single-use JWT assertion expiring at
// expBase plus the configured lifetime.
func (m *Manager) signAssertion(key crypto.PrivateKey, subType SubjectType, subID string, expBase time.Time) (string, error) {
	lifetime := m.appAuth.ExpirationTime
	if lifetime <= 0 {
		lifetime = defaultAssertionLifetime
	}

	if lifetime > maxAssertionLifetime {
		lifetime = maxAssertionLifetime
	}

	claims := jwt.MapClaims{
		"iss":          m.clientID,
		"sub":          subID,
		"box_sub_type": string(subType),
		"aud":          m.baseURL + tokenPath,
		"jti":          uuid.NewString(),
		"exp":          expBase.Add(lifetime).Unix(),
	}

	if m.appAuth.VerifyTimestamp {
		claims["iat"] = m.now().Unix()
	}

	algorithm := m.appAuth.Algorithm
	if algorithm == "" {
		algorithm = "RS256"
	}

	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return "", fmt.Errorf("boxauth: unsupported signing algorithm %q", algorithm)
	}

	token := jwt.NewWithClaims(method, claims)
	token.Header["kid"] = m.appAuth.KeyID

	assertion, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("boxauth: signing JWT assertion: %w", err)
	}

	return assertion, nil
}

// jwtDelay picks the wait before re-signing, with the same precedence as the
// executor: injected strategy, then Retry-After, then exponential backoff.
// The elapsed time fed to the strategy is total since the first attempt.
func (m *Manager) jwtDelay(cause error, attempt int, start time.Time) (time.Duration, error) {
	if m.strategy != nil {
		decision := m.strategy(cause, attempt+1, m.maxRetries, m.baseInterval, m.now().Sub(start))

		delay, abortErr := decision.Result()
		if abortErr != nil {
			return 0, fmt.Errorf("%w: %w", boxhttp.ErrRetriesAborted, abortErr)
		}

		return delay, nil
	}

	if header := responseHeader(cause); header != nil {
		if d, ok := boxhttp.RetryAfter(header.Get("Retry-After")); ok {
			return d, nil
		}
	}

	return boxhttp.BackoffDelay(attempt, m.baseInterval), nil
}

// jwtRetryable reports whether the failed grant is worth re-signing and, when
// the response carried a Date header, the server's clock at failure time.
// Retryable conditions: 429/5xx temporary statuses, transport errors, and
// invalid_grant responses rejecting the exp or jti claim (which indicate
// clock skew or jti reuse rather than a dead grant) as long as the server
// reported its own time.
func jwtRetryable(err error) (bool, time.Time) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		desc := strings.ToLower(authErr.Description)
		if !strings.Contains(desc, "exp") && !strings.Contains(desc, "jti") {
			return false, time.Time{}
		}

		date, ok := responseDate(authErr.Cause)
		if !ok {
			return false, time.Time{}
		}

		return true, date
	}

	var reqErr *boxhttp.RequestError
	if !errors.As(err, &reqErr) {
		return false, time.Time{}
	}

	if reqErr.StatusCode == 0 {
		// Transport error, no response received.
		return true, time.Time{}
	}

	if !boxhttp.IsTemporary(reqErr.StatusCode) {
		return false, time.Time{}
	}

	date, _ := responseDate(reqErr)

	return true, date
}

// responseDate extracts the server's Date header from a request error.
func responseDate(err error) (time.Time, bool) {
	header := responseHeader(err)
	if header == nil {
		return time.Time{}, false
	}

	at, parseErr := http.ParseTime(header.Get("Date"))
	if parseErr != nil {
		return time.Time{}, false
	}

	return at, true
}

// responseHeader digs the response headers out of a wrapped request error.
func responseHeader(err error) http.Header {
	var reqErr *boxhttp.RequestError
	if !errors.As(err, &reqErr) || reqErr.Response == nil {
		return nil
	}

	return reqErr.Response.Header
}
