package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/tonimelisma/box-go/internal/boxauth"
	"github.com/tonimelisma/box-go/internal/boxhttp"
	"github.com/tonimelisma/box-go/internal/config"
	"github.com/tonimelisma/box-go/internal/tokenstore"
)

// errNotLoggedIn is returned when no tokens are stored and no app-auth key
// material is configured.
var errNotLoggedIn = errors.New("not logged in — run 'box-go login' first")

// noopCloser is returned by openStore when nothing needs closing.
func noopCloser() error { return nil }

// buildExecutor creates the request executor from resolved config.
func buildExecutor(logger *slog.Logger) *boxhttp.Executor {
	return boxhttp.NewExecutor(defaultHTTPClient(), boxhttp.Options{
		MaxRetries:   resolvedCfg.Network.MaxRetries,
		BaseInterval: resolvedCfg.Network.RetryIntervalDuration(),
		UserAgent:    resolvedCfg.Network.UserAgent,
	}, nil, logger)
}

// buildManager creates the token manager, loading app-auth key material from
// disk when a key file is configured.
func buildManager(exec *boxhttp.Executor, logger *slog.Logger) (*boxauth.Manager, error) {
	opts := boxauth.ManagerOptions{
		ClientID:     resolvedCfg.Auth.ClientID,
		ClientSecret: resolvedCfg.Auth.ClientSecret,
		BaseURL:      resolvedCfg.Auth.APIBaseURL,
		MaxRetries:   resolvedCfg.Network.MaxRetries,
		BaseInterval: resolvedCfg.Network.RetryIntervalDuration(),
	}

	if resolvedCfg.AppAuth.Configured() {
		appAuth, err := loadAppAuth(&resolvedCfg.AppAuth)
		if err != nil {
			return nil, err
		}

		opts.AppAuth = appAuth
	}

	return boxauth.NewManager(exec, opts, logger), nil
}

// loadAppAuth maps the config app_auth section onto key material, reading
// the private key file when one is configured.
func loadAppAuth(cfg *config.AppAuthConfig) (*boxauth.AppAuthConfig, error) {
	keyPEM := []byte(cfg.PrivateKey)

	if cfg.PrivateKeyFile != "" {
		data, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading private key file: %w", err)
		}

		keyPEM = data
	}

	return &boxauth.AppAuthConfig{
		KeyID:           cfg.KeyID,
		PrivateKey:      keyPEM,
		Passphrase:      cfg.Passphrase,
		Algorithm:       cfg.Algorithm,
		ExpirationTime:  cfg.ExpirationDuration(),
		VerifyTimestamp: cfg.VerifyTimestamp,
	}, nil
}

// openStore creates the configured token store. The returned closer must be
// called when the command finishes; it is a no-op for non-database stores.
// Returns a nil store for token_store = "none".
func openStore(ctx context.Context, logger *slog.Logger) (boxauth.Store, func() error, error) {
	switch resolvedCfg.Storage.TokenStore {
	case "sqlite":
		db, err := tokenstore.OpenDB(ctx, resolvedCfg.Storage.TokenStorePath, logger)
		if err != nil {
			return nil, nil, err
		}

		return tokenstore.NewSQLiteStore(db, resolvedCfg.Storage.StoreName, logger), db.Close, nil
	case "none":
		return nil, noopCloser, nil
	default:
		return tokenstore.NewFileStore(resolvedCfg.Storage.TokenStorePath), noopCloser, nil
	}
}

// buildSession assembles the full credential stack for a command: executor,
// manager, token store, and the session variant the configuration calls for.
// App-auth configs get a self-refreshing JWT session; everything else needs
// previously stored tokens from a login.
func buildSession(ctx context.Context, logger *slog.Logger) (boxauth.Session, func() error, error) {
	exec := buildExecutor(logger)

	manager, err := buildManager(exec, logger)
	if err != nil {
		return nil, nil, err
	}

	store, closer, err := openStore(ctx, logger)
	if err != nil {
		return nil, nil, err
	}

	buffer := resolvedCfg.Auth.ExpiredBufferDuration()

	if resolvedCfg.AppAuth.Configured() {
		subType, subID, err := appAuthSubject()
		if err != nil {
			closer()

			return nil, nil, err
		}

		return boxauth.NewAppAuthSession(manager, subType, subID, store, buffer, logger), closer, nil
	}

	if store == nil {
		closer()

		return nil, nil, errNotLoggedIn
	}

	info, err := store.Read(ctx)
	if err != nil {
		closer()

		return nil, nil, err
	}

	if info == nil {
		closer()

		return nil, nil, errNotLoggedIn
	}

	return boxauth.NewPersistentSession(manager, info, store, buffer, logger), closer, nil
}

// appAuthSubject resolves the JWT grant subject from config. Validation
// guarantees at most one of the IDs is set.
func appAuthSubject() (boxauth.SubjectType, string, error) {
	switch {
	case resolvedCfg.AppAuth.EnterpriseID != "":
		return boxauth.SubjectEnterprise, resolvedCfg.AppAuth.EnterpriseID, nil
	case resolvedCfg.AppAuth.UserID != "":
		return boxauth.SubjectUser, resolvedCfg.AppAuth.UserID, nil
	default:
		return "", "", errors.New("app_auth requires enterprise_id or user_id")
	}
}
