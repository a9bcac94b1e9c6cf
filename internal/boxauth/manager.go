package boxauth

import (
	"context"
	"crypto"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tonimelisma/box-go/internal/boxhttp"
)

// OAuth2 grant types accepted by the token endpoint.
const (
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"
	grantClientCredentials = "client_credentials"
	grantJWTBearer         = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	grantTokenExchange     = "urn:ietf:params:oauth:grant-type:token-exchange"

	subjectTokenType = "urn:ietf:params:oauth:token-type:access_token"
	actorTokenType   = "urn:ietf:params:oauth:token-type:id_token"
)

const (
	tokenPath  = "/oauth2/token"
	revokePath = "/oauth2/revoke"
)

// SubjectType scopes app-auth and client-credentials grants to a user or to
// the enterprise as a whole.
type SubjectType string

// Subject types for JWT and client-credentials grants.
const (
	SubjectUser       SubjectType = "user"
	SubjectEnterprise SubjectType = "enterprise"
)

// TokenRequestOptions carries per-call options for grant requests. IP, when
// set, is forwarded to the token endpoint as X-Forwarded-For so rate limiting
// applies to the end user rather than the calling server.
type TokenRequestOptions struct {
	IP string
}

// ActorParams identifies an external subject embedded in a token exchange as
// an unsigned actor assertion.
type ActorParams struct {
	ID   string
	Name string
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	ClientID     string
	ClientSecret string
	// BaseURL is the token endpoint root, e.g. "https://api.box.com".
	BaseURL string
	AppAuth *AppAuthConfig

	// Retry tuning for the JWT grant's re-signing loop. The generic request
	// retry budget lives in the executor; this loop is separate because the
	// assertion payload must change between attempts.
	MaxRetries   int
	BaseInterval time.Duration
	Strategy     boxhttp.RetryStrategy
}

// Manager talks to the token endpoint and implements every grant flow.
// It holds no token state; sessions own their cached TokenInfo.
type Manager struct {
	exec         *boxhttp.Executor
	clientID     string
	clientSecret string
	baseURL      string
	appAuth      *AppAuthConfig
	maxRetries   int
	baseInterval time.Duration
	strategy     boxhttp.RetryStrategy
	logger       *slog.Logger

	// now and sleepFunc are injectable for tests.
	now       func() time.Time
	sleepFunc func(ctx context.Context, d time.Duration) error

	// Parsed app-auth signing key, cached after first use.
	keyOnce sync.Once
	key     crypto.PrivateKey
	keyErr  error
}

// NewManager creates a token manager issuing requests through exec.
func NewManager(exec *boxhttp.Executor, opts ManagerOptions, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}

	if opts.BaseInterval <= 0 {
		opts.BaseInterval = time.Second
	}

	return &Manager{
		exec:         exec,
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		baseURL:      strings.TrimSuffix(opts.BaseURL, "/"),
		appAuth:      opts.AppAuth,
		maxRetries:   opts.MaxRetries,
		baseInterval: opts.BaseInterval,
		strategy:     opts.Strategy,
		logger:       logger,
		now:          time.Now,
		sleepFunc: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}
}

// tokenResponse mirrors the token endpoint's JSON response, success or error.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// GetTokensAuthorizationCodeGrant exchanges an authorization code for tokens.
func (m *Manager) GetTokensAuthorizationCodeGrant(ctx context.Context, code string, opts *TokenRequestOptions) (*TokenInfo, error) {
	m.logger.Info("exchanging authorization code for tokens")

	form := url.Values{
		"grant_type": {grantAuthorizationCode},
		"code":       {code},
	}

	return m.getTokens(ctx, form, opts, true, false)
}

// GetTokensRefreshGrant obtains a fresh token pair from a refresh token.
func (m *Manager) GetTokensRefreshGrant(ctx context.Context, refreshToken string, opts *TokenRequestOptions) (*TokenInfo, error) {
	m.logger.Info("refreshing tokens via refresh_token grant")

	form := url.Values{
		"grant_type":    {grantRefreshToken},
		"refresh_token": {refreshToken},
	}

	return m.getTokens(ctx, form, opts, true, false)
}

// GetTokensClientCredentialsGrant obtains an access token via the client
// credentials grant, scoped to the given subject.
func (m *Manager) GetTokensClientCredentialsGrant(ctx context.Context, subType SubjectType, subID string, opts *TokenRequestOptions) (*TokenInfo, error) {
	m.logger.Info("requesting client credentials tokens",
		slog.String("subject_type", string(subType)),
	)

	form := url.Values{
		"grant_type":       {grantClientCredentials},
		"box_subject_type": {string(subType)},
		"box_subject_id":   {subID},
	}

	return m.getTokens(ctx, form, opts, false, false)
}

// ExchangeToken downscopes accessToken to the given scopes, optionally bound
// to a single resource URL and optionally annotated with an actor assertion
// identifying an external subject.
func (m *Manager) ExchangeToken(ctx context.Context, accessToken string, scopes []string, resource string, actor *ActorParams, opts *TokenRequestOptions) (*TokenInfo, error) {
	m.logger.Info("exchanging token for downscoped token",
		slog.String("scopes", strings.Join(scopes, " ")),
	)

	form := url.Values{
		"grant_type":         {grantTokenExchange},
		"subject_token":      {accessToken},
		"subject_token_type": {subjectTokenType},
		"scope":              {strings.Join(scopes, " ")},
	}

	if resource != "" {
		form.Set("resource", resource)
	}

	if actor != nil {
		assertion, err := m.actorAssertion(actor)
		if err != nil {
			return nil, err
		}

		form.Set("actor_token", assertion)
		form.Set("actor_token_type", actorTokenType)
	}

	return m.getTokens(ctx, form, opts, false, false)
}

// RevokeToken invalidates an access or refresh token at the revoke endpoint.
func (m *Manager) RevokeToken(ctx context.Context, token string, opts *TokenRequestOptions) error {
	m.logger.Info("revoking token")

	form := url.Values{
		"token":         {token},
		"client_id":     {m.clientID},
		"client_secret": {m.clientSecret},
	}

	req := &boxhttp.Request{
		Method: http.MethodPost,
		URL:    m.baseURL + revokePath,
		Header: requestHeader(opts),
		Form:   form,
	}

	if _, err := m.exec.Do(ctx, req); err != nil {
		return mapGrantError(err)
	}

	return nil
}

// getTokens is the shared grant path: appends client credentials, POSTs the
// form to the token endpoint, and validates the response shape.
// needsRefreshToken is true for grants whose responses must include a
// refresh_token (authorization code and refresh grants). noRetry opts out of
// the executor's retry loop for grants that must re-sign their payload
// between attempts.
func (m *Manager) getTokens(ctx context.Context, form url.Values, opts *TokenRequestOptions, needsRefreshToken, noRetry bool) (*TokenInfo, error) {
	form.Set("client_id", m.clientID)
	form.Set("client_secret", m.clientSecret)

	req := &boxhttp.Request{
		Method:  http.MethodPost,
		URL:     m.baseURL + tokenPath,
		Header:  requestHeader(opts),
		Form:    form,
		NoRetry: noRetry,
	}

	resp, err := m.exec.Do(ctx, req)
	if err != nil {
		return nil, mapGrantError(err)
	}

	var parsed tokenResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrMalformedTokenResponse, err)
	}

	if parsed.Error == "invalid_grant" {
		return nil, &AuthError{Description: parsed.ErrorDescription}
	}

	if parsed.AccessToken == "" || parsed.ExpiresIn <= 0 {
		return nil, fmt.Errorf("%w: missing access_token or expires_in", ErrMalformedTokenResponse)
	}

	if needsRefreshToken && parsed.RefreshToken == "" {
		return nil, fmt.Errorf("%w: missing refresh_token", ErrMalformedTokenResponse)
	}

	// AcquiredAt is stamped at parse time so the validity window never
	// starts before the token actually existed.
	info := &TokenInfo{
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
		AcquiredAt:   m.now(),
		TTL:          time.Duration(parsed.ExpiresIn) * time.Second,
	}

	m.logger.Debug("tokens acquired",
		slog.Duration("ttl", info.TTL),
		slog.Bool("has_refresh_token", info.RefreshToken != ""),
	)

	return info, nil
}

// actorAssertion builds the unsigned ("none" algorithm) JWT identifying an
// external subject in a token exchange.
func (m *Manager) actorAssertion(actor *ActorParams) (string, error) {
	now := m.now()
	claims := jwt.MapClaims{
		"iss":          m.clientID,
		"sub":          actor.ID,
		"box_sub_type": "external",
		"name":         actor.Name,
		"aud":          m.baseURL + tokenPath,
		"jti":          uuid.NewString(),
		"exp":          now.Add(time.Minute).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)

	assertion, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		return "", fmt.Errorf("boxauth: building actor assertion: %w", err)
	}

	return assertion, nil
}

// requestHeader builds the per-call header set, attaching the caller's IP
// when provided.
func requestHeader(opts *TokenRequestOptions) http.Header {
	header := http.Header{}
	if opts != nil && opts.IP != "" {
		header.Set("X-Forwarded-For", opts.IP)
	}

	return header
}

// mapGrantError converts an executor error whose response body carries
// error == "invalid_grant" into an AuthError. All other errors pass through.
func mapGrantError(err error) error {
	var reqErr *boxhttp.RequestError
	if !errors.As(err, &reqErr) || reqErr.Response == nil {
		return err
	}

	var body tokenResponse
	if json.Unmarshal(reqErr.Response.Body, &body) != nil {
		return err
	}

	if body.Error == "invalid_grant" {
		return &AuthError{Description: body.ErrorDescription, Cause: err}
	}

	return err
}
