package boxauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/box-go/internal/boxhttp"
)

// testRSAKeyPEM generates a throwaway RSA key in PKCS#1 PEM form.
func testRSAKeyPEM(t *testing.T) []byte {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

func testAppAuth(t *testing.T) *AppAuthConfig {
	t.Helper()

	return &AppAuthConfig{
		KeyID:          "key-abc",
		PrivateKey:     testRSAKeyPEM(t),
		ExpirationTime: 30 * time.Second,
	}
}

func TestGetTokensJWTGrant_Success(t *testing.T) {
	var assertion string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", r.PostForm.Get("grant_type"))
		assertion = r.PostForm.Get("assertion")
		_, _ = io.WriteString(w, tokenJSON("jwt-at", "", 3600))
	}))
	defer srv.Close()

	m := newTestManager(t, srv.URL, testAppAuth(t))

	before := time.Now()
	info, err := m.GetTokensJWTGrant(context.Background(), SubjectEnterprise, "e-999", nil)
	require.NoError(t, err)
	assert.Equal(t, "jwt-at", info.AccessToken)

	claims := decodeJWTClaims(t, assertion)
	assert.Equal(t, "test-client-id", claims["iss"])
	assert.Equal(t, "e-999", claims["sub"])
	assert.Equal(t, "enterprise", claims["box_sub_type"])
	assert.Equal(t, srv.URL+"/oauth2/token", claims["aud"])
	assert.NotEmpty(t, claims["jti"])

	exp := int64(claims["exp"].(float64))
	assert.GreaterOrEqual(t, exp, before.Add(29*time.Second).Unix())
	assert.LessOrEqual(t, exp, before.Add(31*time.Second).Unix())

	// kid travels in the JOSE header.
	headerJSON, err := base64.RawURLEncoding.DecodeString(strings.Split(assertion, ".")[0])
	require.NoError(t, err)

	var header map[string]any
	require.NoError(t, json.Unmarshal(headerJSON, &header))
	assert.Equal(t, "key-abc", header["kid"])
	assert.Equal(t, "RS256", header["alg"])
}

func TestGetTokensJWTGrant_RetryRegeneratesAssertion(t *testing.T) {
	// Two 429s, then success. Each attempt must carry a fresh jti and an exp
	// recomputed from the server-reported time of the failed attempt.
	var calls atomic.Int32

	var assertions []string

	var serverDates []time.Time

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assertions = append(assertions, r.PostForm.Get("assertion"))

		if calls.Add(1) <= 2 {
			date := time.Now().UTC().Truncate(time.Second)
			serverDates = append(serverDates, date)
			w.Header().Set("Date", date.Format(http.TimeFormat))
			w.WriteHeader(http.StatusTooManyRequests)

			return
		}

		_, _ = io.WriteString(w, tokenJSON("jwt-at", "", 3600))
	}))
	defer srv.Close()

	m := newTestManager(t, srv.URL, testAppAuth(t))

	_, err := m.GetTokensJWTGrant(context.Background(), SubjectUser, "u-1", nil)
	require.NoError(t, err)
	require.Len(t, assertions, 3)

	jtis := map[string]bool{}

	var exps []int64

	for _, a := range assertions {
		claims := decodeJWTClaims(t, a)
		jtis[claims["jti"].(string)] = true
		exps = append(exps, int64(claims["exp"].(float64)))
	}

	assert.Len(t, jtis, 3, "every attempt must use a distinct jti")

	// Each retry's exp is at least the prior attempt's server time.
	require.Len(t, serverDates, 2)
	assert.GreaterOrEqual(t, exps[1], serverDates[0].Unix())
	assert.GreaterOrEqual(t, exps[2], serverDates[1].Unix())
}

func TestGetTokensJWTGrant_SkewedClockUsesServerDate(t *testing.T) {
	// Server clock five minutes ahead: the retry assertion must expire
	// relative to the server's Date, not the local clock.
	skew := 5 * time.Minute

	var calls atomic.Int32

	var assertions []string

	serverNow := time.Now().Add(skew).UTC().Truncate(time.Second)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assertions = append(assertions, r.PostForm.Get("assertion"))

		if calls.Add(1) == 1 {
			w.Header().Set("Date", serverNow.Format(http.TimeFormat))
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Please check the 'exp' claim"}`)

			return
		}

		_, _ = io.WriteString(w, tokenJSON("jwt-at", "", 3600))
	}))
	defer srv.Close()

	m := newTestManager(t, srv.URL, testAppAuth(t))

	_, err := m.GetTokensJWTGrant(context.Background(), SubjectUser, "u-1", nil)
	require.NoError(t, err)
	require.Len(t, assertions, 2)

	retryExp := int64(decodeJWTClaims(t, assertions[1])["exp"].(float64))
	assert.GreaterOrEqual(t, retryExp, serverNow.Add(30*time.Second).Unix())
}

func TestGetTokensJWTGrant_DeadGrantNotRetried(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"User not found"}`)
	}))
	defer srv.Close()

	m := newTestManager(t, srv.URL, testAppAuth(t))

	_, err := m.GetTokensJWTGrant(context.Background(), SubjectUser, "u-404", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetTokensJWTGrant_MaxRetriesExceeded(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := newTestManager(t, srv.URL, testAppAuth(t))

	_, err := m.GetTokensJWTGrant(context.Background(), SubjectEnterprise, "e-1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boxhttp.ErrMaxRetries)

	var reqErr *boxhttp.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.True(t, reqErr.MaxRetriesExceeded)

	// Initial attempt plus the configured two retries.
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetTokensJWTGrant_StrategyAbort(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	abortErr := errors.New("budget spent")

	m := newTestManager(t, srv.URL, testAppAuth(t))
	m.strategy = func(_ error, _, _ int, _, _ time.Duration) boxhttp.RetryDecision {
		return boxhttp.Abort(abortErr)
	}

	_, err := m.GetTokensJWTGrant(context.Background(), SubjectEnterprise, "e-1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, abortErr)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetTokensJWTGrant_RequiresAppAuth(t *testing.T) {
	m := newTestManager(t, "http://127.0.0.1:0", nil)

	_, err := m.GetTokensJWTGrant(context.Background(), SubjectUser, "u-1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app auth is not configured")
}

func TestAppAuthConfig_ParseKeyErrors(t *testing.T) {
	bad := &AppAuthConfig{PrivateKey: []byte("not a key")}

	_, err := bad.parseKey()
	require.Error(t, err)
}
