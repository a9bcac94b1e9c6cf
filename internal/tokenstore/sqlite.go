package tokenstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/tonimelisma/box-go/internal/boxauth"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore persists tokens in a SQLite database, keyed by a store name so
// several sessions (or several subjects) can share one database file. SQLite's
// locking makes reads and writes safe across processes.
type SQLiteStore struct {
	db     *sql.DB
	name   string
	logger *slog.Logger
}

// OpenDB opens (creating if needed) the token database at path and applies
// pending schema migrations. The connection pool is capped at one connection:
// the store is a low-traffic sole-writer and this sidesteps SQLITE_BUSY.
func OpenDB(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: opening database %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// runMigrations applies all pending schema migrations to the database.
// Uses the goose v3 Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	// Strip the "migrations/" prefix so goose sees files at the root of the FS.
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("tokenstore: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("tokenstore: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("tokenstore: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// NewSQLiteStore creates a store over db under the given name. Sessions with
// different names never see each other's tokens.
func NewSQLiteStore(db *sql.DB, name string, logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &SQLiteStore{db: db, name: name, logger: logger}
}

// Read loads the stored tokens. Returns (nil, nil) when no row exists.
func (s *SQLiteStore) Read(ctx context.Context) (*boxauth.TokenInfo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, acquired_at_ms, ttl_ms FROM tokens WHERE name = ?`,
		s.name,
	)

	var rec record
	err := row.Scan(&rec.AccessToken, &rec.RefreshToken, &rec.AcquiredAtMS, &rec.TTLMS)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("tokenstore: reading tokens %q: %w", s.name, err)
	}

	return rec.tokenInfo(), nil
}

// Write upserts the tokens for this store's name.
func (s *SQLiteStore) Write(ctx context.Context, info *boxauth.TokenInfo) error {
	rec := toRecord(info)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tokens (name, access_token, refresh_token, acquired_at_ms, ttl_ms, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   access_token = excluded.access_token,
		   refresh_token = excluded.refresh_token,
		   acquired_at_ms = excluded.acquired_at_ms,
		   ttl_ms = excluded.ttl_ms,
		   updated_at = excluded.updated_at`,
		s.name, rec.AccessToken, rec.RefreshToken, rec.AcquiredAtMS, rec.TTLMS,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("tokenstore: writing tokens %q: %w", s.name, err)
	}

	return nil
}

// Clear deletes this store's row. Clearing an absent row is not an error.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE name = ?`, s.name); err != nil {
		return fmt.Errorf("tokenstore: clearing tokens %q: %w", s.name, err)
	}

	return nil
}
