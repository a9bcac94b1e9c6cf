package boxauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/box-go/internal/boxhttp"
)

// testLogger returns a logger that discards everything, keeping test output clean.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// tokenJSON builds a minimal successful token endpoint response.
func tokenJSON(accessToken, refreshToken string, expiresIn int) string {
	resp := map[string]any{
		"access_token": accessToken,
		"expires_in":   expiresIn,
	}
	if refreshToken != "" {
		resp["refresh_token"] = refreshToken
	}

	b, _ := json.Marshal(resp)

	return string(b)
}

// newTestManager wires a Manager to the given test server with tiny retry
// intervals and instant sleeps.
func newTestManager(t *testing.T, srvURL string, appAuth *AppAuthConfig) *Manager {
	t.Helper()

	exec := boxhttp.NewExecutor(http.DefaultClient, boxhttp.Options{
		MaxRetries:   2,
		BaseInterval: time.Millisecond,
	}, nil, testLogger())

	m := NewManager(exec, ManagerOptions{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		BaseURL:      srvURL,
		AppAuth:      appAuth,
		MaxRetries:   2,
		BaseInterval: time.Millisecond,
	}, testLogger())
	m.sleepFunc = func(_ context.Context, _ time.Duration) error { return nil }

	return m
}

// decodeJWTClaims extracts the claim set from an unverified JWT assertion.
func decodeJWTClaims(t *testing.T, assertion string) map[string]any {
	t.Helper()

	parts := strings.Split(assertion, ".")
	require.Len(t, parts, 3)

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	var claims map[string]any
	require.NoError(t, json.Unmarshal(payload, &claims))

	return claims
}

func TestGetTokensAuthorizationCodeGrant(t *testing.T) {
	var gotForm map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/oauth2/token", r.URL.Path)
		require.NoError(t, r.ParseForm())

		gotForm = map[string]string{
			"grant_type":    r.PostForm.Get("grant_type"),
			"code":          r.PostForm.Get("code"),
			"client_id":     r.PostForm.Get("client_id"),
			"client_secret": r.PostForm.Get("client_secret"),
		}

		_, _ = io.WriteString(w, tokenJSON("at-1", "rt-1", 3600))
	}))
	defer srv.Close()

	m := newTestManager(t, srv.URL, nil)

	before := time.Now()
	info, err := m.GetTokensAuthorizationCodeGrant(context.Background(), "the-code", nil)
	require.NoError(t, err)

	assert.Equal(t, "authorization_code", gotForm["grant_type"])
	assert.Equal(t, "the-code", gotForm["code"])
	assert.Equal(t, "test-client-id", gotForm["client_id"])
	assert.Equal(t, "test-client-secret", gotForm["client_secret"])

	assert.Equal(t, "at-1", info.AccessToken)
	assert.Equal(t, "rt-1", info.RefreshToken)
	assert.Equal(t, time.Hour, info.TTL)
	assert.False(t, info.AcquiredAt.Before(before))
}

func TestGetTokens_ForwardsCallerIP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "203.0.113.7", r.Header.Get("X-Forwarded-For"))
		_, _ = io.WriteString(w, tokenJSON("at", "rt", 60))
	}))
	defer srv.Close()

	m := newTestManager(t, srv.URL, nil)

	_, err := m.GetTokensRefreshGrant(context.Background(), "rt-old", &TokenRequestOptions{IP: "203.0.113.7"})
	require.NoError(t, err)
}

func TestGetTokens_MalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing access_token", `{"expires_in": 3600, "refresh_token": "rt"}`},
		{"missing expires_in", `{"access_token": "at", "refresh_token": "rt"}`},
		{"missing refresh_token", tokenJSON("at", "", 3600)},
		{"not json", `<html>oops</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			m := newTestManager(t, srv.URL, nil)

			_, err := m.GetTokensRefreshGrant(context.Background(), "rt-old", nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedTokenResponse)
		})
	}
}

func TestGetTokens_RefreshTokenNotRequiredForCCG(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "enterprise", r.PostForm.Get("box_subject_type"))
		assert.Equal(t, "12345", r.PostForm.Get("box_subject_id"))
		_, _ = io.WriteString(w, tokenJSON("at", "", 3600))
	}))
	defer srv.Close()

	m := newTestManager(t, srv.URL, nil)

	info, err := m.GetTokensClientCredentialsGrant(context.Background(), SubjectEnterprise, "12345", nil)
	require.NoError(t, err)
	assert.Equal(t, "at", info.AccessToken)
	assert.Empty(t, info.RefreshToken)
}

func TestGetTokens_InvalidGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Refresh token has expired"}`)
	}))
	defer srv.Close()

	m := newTestManager(t, srv.URL, nil)

	_, err := m.GetTokensRefreshGrant(context.Background(), "rt-dead", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Refresh token has expired", authErr.Description)
}

func TestGetTokens_OtherOAuthErrorsPassThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"invalid_client","error_description":"nope"}`)
	}))
	defer srv.Close()

	m := newTestManager(t, srv.URL, nil)

	_, err := m.GetTokensRefreshGrant(context.Background(), "rt", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAuth)
	assert.ErrorIs(t, err, boxhttp.ErrUnauthorized)
}

func TestExchangeToken(t *testing.T) {
	var gotForm map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		gotForm = map[string]string{
			"grant_type":         r.PostForm.Get("grant_type"),
			"subject_token":      r.PostForm.Get("subject_token"),
			"subject_token_type": r.PostForm.Get("subject_token_type"),
			"scope":              r.PostForm.Get("scope"),
			"resource":           r.PostForm.Get("resource"),
		}

		_, _ = io.WriteString(w, tokenJSON("downscoped", "", 600))
	}))
	defer srv.Close()

	m := newTestManager(t, srv.URL, nil)

	info, err := m.ExchangeToken(context.Background(), "at-full",
		[]string{"item_preview", "item_download"}, "https://api.box.com/2.0/files/1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "downscoped", info.AccessToken)

	assert.Equal(t, "urn:ietf:params:oauth:grant-type:token-exchange", gotForm["grant_type"])
	assert.Equal(t, "at-full", gotForm["subject_token"])
	assert.Equal(t, "urn:ietf:params:oauth:token-type:access_token", gotForm["subject_token_type"])
	assert.Equal(t, "item_preview item_download", gotForm["scope"])
	assert.Equal(t, "https://api.box.com/2.0/files/1", gotForm["resource"])
}

func TestExchangeToken_ActorAssertion(t *testing.T) {
	var actorToken, actorType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		actorToken = r.PostForm.Get("actor_token")
		actorType = r.PostForm.Get("actor_token_type")
		_, _ = io.WriteString(w, tokenJSON("downscoped", "", 600))
	}))
	defer srv.Close()

	m := newTestManager(t, srv.URL, nil)

	_, err := m.ExchangeToken(context.Background(), "at-full", []string{"item_preview"}, "",
		&ActorParams{ID: "external-77", Name: "External App"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "urn:ietf:params:oauth:token-type:id_token", actorType)
	require.NotEmpty(t, actorToken)

	claims := decodeJWTClaims(t, actorToken)
	assert.Equal(t, "test-client-id", claims["iss"])
	assert.Equal(t, "external-77", claims["sub"])
	assert.Equal(t, "external", claims["box_sub_type"])
	assert.Equal(t, "External App", claims["name"])
}

func TestRevokeToken(t *testing.T) {
	var gotForm map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth2/revoke", r.URL.Path)
		require.NoError(t, r.ParseForm())

		gotForm = map[string]string{
			"token":         r.PostForm.Get("token"),
			"client_id":     r.PostForm.Get("client_id"),
			"client_secret": r.PostForm.Get("client_secret"),
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := newTestManager(t, srv.URL, nil)

	require.NoError(t, m.RevokeToken(context.Background(), "some-token", nil))
	assert.Equal(t, "some-token", gotForm["token"])
	assert.Equal(t, "test-client-id", gotForm["client_id"])
	assert.Equal(t, "test-client-secret", gotForm["client_secret"])
}
