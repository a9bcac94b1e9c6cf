package boxauth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Session is the capability every credential strategy provides: hand me a
// currently-valid access token, revoke what you hold, or downscope it.
type Session interface {
	GetAccessToken(ctx context.Context, opts *TokenRequestOptions) (string, error)
	RevokeTokens(ctx context.Context, opts *TokenRequestOptions) error
	ExchangeToken(ctx context.Context, scopes []string, resource string, opts *TokenRequestOptions) (*TokenInfo, error)
}

// Store is the external token cache shared across processes. Read returns
// (nil, nil) when nothing is stored. Implementations live in
// internal/tokenstore; anything with these three methods satisfies it.
type Store interface {
	Read(ctx context.Context) (*TokenInfo, error)
	Write(ctx context.Context, info *TokenInfo) error
	Clear(ctx context.Context) error
}

// defaultExpiredBuffer is subtracted from a token's real expiry when deciding
// whether to refresh proactively.
const defaultExpiredBuffer = 10 * time.Minute

// refresher holds the cached TokenInfo and the single-flight coordination
// shared by every refreshing session variant. The pending-refresh state lives
// on the instance, never in package globals, so independent sessions cannot
// interfere.
type refresher struct {
	buffer time.Duration

	mu    sync.Mutex
	token *TokenInfo
	group singleflight.Group

	// now is injectable for expiry tests.
	now func() time.Time
}

func newRefresher(buffer time.Duration) refresher {
	if buffer <= 0 {
		buffer = defaultExpiredBuffer
	}

	return refresher{buffer: buffer, now: time.Now}
}

// current returns the cached token, which may be nil.
func (r *refresher) current() *TokenInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.token
}

// setToken replaces the cached token wholesale.
func (r *refresher) setToken(info *TokenInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.token = info
}

// getAccessToken resolves immediately from cache when the token is still
// valid; otherwise it joins (or starts) the single in-flight refresh. All
// callers waiting on an outstanding refresh receive that same refresh's
// result — a second grant call is never issued.
//
// The refresh itself runs on a context detached from the caller's: a caller
// that stops waiting does not cancel the refresh, which still completes and
// updates the cached state.
func (r *refresher) getAccessToken(ctx context.Context, fetch func(ctx context.Context) (*TokenInfo, error)) (string, error) {
	if tok := r.current(); tok.ValidAt(r.now(), r.buffer) {
		return tok.AccessToken, nil
	}

	refreshCtx := context.WithoutCancel(ctx)

	ch := r.group.DoChan("refresh", func() (any, error) {
		// A refresh that settled while this caller was queueing may already
		// have produced a valid token.
		if tok := r.current(); tok.ValidAt(r.now(), r.buffer) {
			return tok, nil
		}

		info, err := fetch(refreshCtx)
		if err != nil {
			return nil, err
		}

		r.setToken(info)

		return info, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}

		return res.Val.(*TokenInfo).AccessToken, nil
	case <-ctx.Done():
		return "", fmt.Errorf("boxauth: waiting for token refresh: %w", ctx.Err())
	}
}

// BasicSession wraps a caller-supplied access token. It has no refresh
// capability, so expiry is never checked.
type BasicSession struct {
	manager *Manager

	mu          sync.Mutex
	accessToken string
}

// NewBasicSession creates a session around a pre-acquired access token.
func NewBasicSession(manager *Manager, accessToken string) *BasicSession {
	return &BasicSession{manager: manager, accessToken: accessToken}
}

// GetAccessToken always resolves the wrapped token.
func (s *BasicSession) GetAccessToken(_ context.Context, _ *TokenRequestOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken == "" {
		return "", ErrNoRefreshCapability
	}

	return s.accessToken, nil
}

// RevokeTokens revokes the wrapped token and forgets it.
func (s *BasicSession) RevokeTokens(ctx context.Context, opts *TokenRequestOptions) error {
	s.mu.Lock()
	token := s.accessToken
	s.mu.Unlock()

	if token == "" {
		return nil
	}

	if err := s.manager.RevokeToken(ctx, token, opts); err != nil {
		return err
	}

	s.mu.Lock()
	s.accessToken = ""
	s.mu.Unlock()

	return nil
}

// ExchangeToken downscopes the wrapped token.
func (s *BasicSession) ExchangeToken(ctx context.Context, scopes []string, resource string, opts *TokenRequestOptions) (*TokenInfo, error) {
	token, err := s.GetAccessToken(ctx, opts)
	if err != nil {
		return nil, err
	}

	return s.manager.ExchangeToken(ctx, token, scopes, resource, nil, opts)
}
