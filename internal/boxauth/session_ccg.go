package boxauth

import (
	"context"
	"log/slog"
	"time"
)

// CCGSession acquires client-credentials tokens for a user or the enterprise.
// Same lazy single-flight refresh policy as AppAuthSession, without store
// synchronization.
type CCGSession struct {
	manager *Manager
	subType SubjectType
	subID   string
	logger  *slog.Logger

	refresher
}

// NewCCGSession creates a lazily-fetching client-credentials session for the
// given subject.
func NewCCGSession(manager *Manager, subType SubjectType, subID string, buffer time.Duration, logger *slog.Logger) *CCGSession {
	if logger == nil {
		logger = slog.Default()
	}

	return &CCGSession{
		manager:   manager,
		subType:   subType,
		subID:     subID,
		logger:    logger,
		refresher: newRefresher(buffer),
	}
}

// GetAccessToken returns the cached token while valid, otherwise fetches via
// the client credentials grant through the single-flight path.
func (s *CCGSession) GetAccessToken(ctx context.Context, opts *TokenRequestOptions) (string, error) {
	return s.getAccessToken(ctx, func(ctx context.Context) (*TokenInfo, error) {
		return s.manager.GetTokensClientCredentialsGrant(ctx, s.subType, s.subID, opts)
	})
}

// RevokeTokens revokes the cached access token, if any, and empties the
// cached state so the next access performs a fresh grant.
func (s *CCGSession) RevokeTokens(ctx context.Context, opts *TokenRequestOptions) error {
	current := s.current()
	if current == nil || current.AccessToken == "" {
		return nil
	}

	if err := s.manager.RevokeToken(ctx, current.AccessToken, opts); err != nil {
		return err
	}

	s.setToken(nil)

	return nil
}

// ExchangeToken downscopes the session's current access token.
func (s *CCGSession) ExchangeToken(ctx context.Context, scopes []string, resource string, opts *TokenRequestOptions) (*TokenInfo, error) {
	token, err := s.GetAccessToken(ctx, opts)
	if err != nil {
		return nil, err
	}

	return s.manager.ExchangeToken(ctx, token, scopes, resource, nil, opts)
}
