package boxauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// PersistentSession owns a refresh token and keeps itself valid via the
// refresh grant. With a token store configured it tolerates other processes
// racing it to the refresh: an invalid_grant answer triggers reconciliation
// against the store before the session gives up.
type PersistentSession struct {
	manager *Manager
	store   Store // optional
	logger  *slog.Logger

	refresher
}

// NewPersistentSession creates a session seeded with previously-acquired
// tokens. store may be nil. buffer is the staleness margin before real
// expiry; zero selects the default.
func NewPersistentSession(manager *Manager, info *TokenInfo, store Store, buffer time.Duration, logger *slog.Logger) *PersistentSession {
	if logger == nil {
		logger = slog.Default()
	}

	s := &PersistentSession{
		manager:   manager,
		store:     store,
		logger:    logger,
		refresher: newRefresher(buffer),
	}
	s.token = info

	return s
}

// GetAccessToken returns the cached token while valid, refreshing through the
// single-flight path otherwise.
func (s *PersistentSession) GetAccessToken(ctx context.Context, opts *TokenRequestOptions) (string, error) {
	return s.getAccessToken(ctx, func(ctx context.Context) (*TokenInfo, error) {
		return s.refresh(ctx, opts)
	})
}

// refresh runs one refresh grant, reconciling with the token store when the
// refresh token is rejected.
func (s *PersistentSession) refresh(ctx context.Context, opts *TokenRequestOptions) (*TokenInfo, error) {
	current := s.current()
	if current == nil || current.RefreshToken == "" {
		return nil, ErrNoRefreshCapability
	}

	info, err := s.manager.GetTokensRefreshGrant(ctx, current.RefreshToken, opts)
	if err != nil {
		if errors.Is(err, ErrAuth) && s.store != nil {
			return s.reconcileStore(ctx, current.RefreshToken, err)
		}

		return nil, err
	}

	if s.store != nil {
		if writeErr := s.store.Write(ctx, info); writeErr != nil {
			return nil, fmt.Errorf("boxauth: writing refreshed tokens to store: %w", writeErr)
		}
	}

	return info, nil
}

// reconcileStore handles an invalid_grant refresh failure. Another process
// sharing the store may have refreshed first, rotating the refresh token; if
// the store holds a different refresh token than the one just rejected, adopt
// it. If it holds the same one, the grant chain is genuinely dead: clear the
// store and report expired tokens.
func (s *PersistentSession) reconcileStore(ctx context.Context, usedRefreshToken string, cause error) (*TokenInfo, error) {
	stored, err := s.store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("boxauth: reading token store after refresh rejection: %w", err)
	}

	if stored != nil && stored.RefreshToken != "" && stored.RefreshToken != usedRefreshToken {
		s.logger.Info("adopting tokens refreshed by another process")

		return stored, nil
	}

	s.logger.Warn("refresh token rejected and store holds no newer tokens, clearing store")

	if clearErr := s.store.Clear(ctx); clearErr != nil {
		return nil, fmt.Errorf("boxauth: clearing token store: %w", clearErr)
	}

	return nil, fmt.Errorf("%w: %w", ErrExpiredTokens, cause)
}

// RevokeTokens revokes the refresh token (which invalidates the whole grant
// chain) and empties the cached state, so the next access performs a fresh
// grant or fails cleanly.
func (s *PersistentSession) RevokeTokens(ctx context.Context, opts *TokenRequestOptions) error {
	current := s.current()
	if current == nil {
		return nil
	}

	token := current.RefreshToken
	if token == "" {
		token = current.AccessToken
	}

	if err := s.manager.RevokeToken(ctx, token, opts); err != nil {
		return err
	}

	s.setToken(nil)

	if s.store != nil {
		if err := s.store.Clear(ctx); err != nil {
			return fmt.Errorf("boxauth: clearing token store after revoke: %w", err)
		}
	}

	return nil
}

// ExchangeToken downscopes the session's current access token.
func (s *PersistentSession) ExchangeToken(ctx context.Context, scopes []string, resource string, opts *TokenRequestOptions) (*TokenInfo, error) {
	token, err := s.GetAccessToken(ctx, opts)
	if err != nil {
		return nil, err
	}

	return s.manager.ExchangeToken(ctx, token, scopes, resource, nil, opts)
}
