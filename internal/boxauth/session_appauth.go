package boxauth

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// AppAuthSession acquires JWT-bearer tokens for an app-level entity (a user
// or the enterprise). Tokens are fetched lazily on first access. With a store
// configured, a warm start reads the store before deciding whether a network
// round trip is needed.
type AppAuthSession struct {
	manager *Manager
	subType SubjectType
	subID   string
	store   Store // optional
	logger  *slog.Logger

	refresher
}

// NewAppAuthSession creates a lazily-fetching JWT session for the given
// subject. store may be nil.
func NewAppAuthSession(manager *Manager, subType SubjectType, subID string, store Store, buffer time.Duration, logger *slog.Logger) *AppAuthSession {
	if logger == nil {
		logger = slog.Default()
	}

	return &AppAuthSession{
		manager:   manager,
		subType:   subType,
		subID:     subID,
		store:     store,
		logger:    logger,
		refresher: newRefresher(buffer),
	}
}

// GetAccessToken returns the cached token while valid, otherwise fetches via
// the JWT grant through the single-flight path.
func (s *AppAuthSession) GetAccessToken(ctx context.Context, opts *TokenRequestOptions) (string, error) {
	return s.getAccessToken(ctx, func(ctx context.Context) (*TokenInfo, error) {
		return s.fetch(ctx, opts)
	})
}

func (s *AppAuthSession) fetch(ctx context.Context, opts *TokenRequestOptions) (*TokenInfo, error) {
	// Cold cache with a configured store: another process may have a usable
	// token already, making the grant round trip unnecessary.
	if s.current() == nil && s.store != nil {
		stored, err := s.store.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("boxauth: reading token store: %w", err)
		}

		if stored.ValidAt(s.now(), s.buffer) {
			s.logger.Info("warm start from token store")

			return stored, nil
		}
	}

	info, err := s.manager.GetTokensJWTGrant(ctx, s.subType, s.subID, opts)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		if writeErr := s.store.Write(ctx, info); writeErr != nil {
			return nil, fmt.Errorf("boxauth: writing tokens to store: %w", writeErr)
		}
	}

	return info, nil
}

// RevokeTokens revokes the cached access token, if any, and empties the
// cached state.
func (s *AppAuthSession) RevokeTokens(ctx context.Context, opts *TokenRequestOptions) error {
	current := s.current()
	if current == nil || current.AccessToken == "" {
		return nil
	}

	if err := s.manager.RevokeToken(ctx, current.AccessToken, opts); err != nil {
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
func (s *AppAuthSession) ExchangeToken(ctx context.Context, scopes []string, resource string, opts *TokenRequestOptions) (*TokenInfo, error) {
	token, err := s.GetAccessToken(ctx, opts)
	if err != nil {
		return nil, err
	}

	return s.manager.ExchangeToken(ctx, token, scopes, resource, nil, opts)
}
