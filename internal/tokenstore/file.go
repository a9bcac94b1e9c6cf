// Package tokenstore provides concrete boxauth.Store implementations: an
// atomic JSON file store, a SQLite-backed store for cross-process sharing,
// and an in-memory store for tests.
package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/tonimelisma/box-go/internal/boxauth"
)

// FilePerms restricts token files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the token directory.
const DirPerms = 0o700

// record is the on-disk JSON format. Times are milliseconds so the file is
// readable by tooling in other languages sharing the store.
type record struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	AcquiredAtMS int64  `json:"acquired_at_ms"`
	TTLMS        int64  `json:"ttl_ms"`
}

func toRecord(info *boxauth.TokenInfo) record {
	return record{
		AccessToken:  info.AccessToken,
		RefreshToken: info.RefreshToken,
		AcquiredAtMS: info.AcquiredAt.UnixMilli(),
		TTLMS:        info.TTL.Milliseconds(),
	}
}

func (r record) tokenInfo() *boxauth.TokenInfo {
	return &boxauth.TokenInfo{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		AcquiredAt:   time.UnixMilli(r.AcquiredAtMS),
		TTL:          time.Duration(r.TTLMS) * time.Millisecond,
	}
}

// FileStore persists tokens as a JSON file with owner-only permissions.
// Writes are atomic (write-to-temp + rename) so concurrent readers in other
// processes never observe a partial file.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Read loads the stored tokens. Returns (nil, nil) if no file exists.
func (s *FileStore) Read(_ context.Context) (*boxauth.TokenInfo, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("tokenstore: reading %s: %w", s.path, err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("tokenstore: decoding %s: %w", s.path, err)
	}

	if rec.AccessToken == "" {
		return nil, fmt.Errorf("tokenstore: %s missing access_token", s.path)
	}

	return rec.tokenInfo(), nil
}

// Write persists the tokens atomically with 0600 permissions.
// Never logs token values.
func (s *FileStore) Write(_ context.Context, info *boxauth.TokenInfo) error {
	data, err := json.MarshalIndent(toRecord(info), "", "  ")
	if err != nil {
		return fmt.Errorf("tokenstore: encoding: %w", err)
	}

	dir := filepath.Dir(s.path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("tokenstore: creating directory %s: %w", dir, mkErr)
	}

	// Atomic write: temp file in the same directory, then rename.
	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".boxtoken-*.tmp")
	if err != nil {
		return fmt.Errorf("tokenstore: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	// Clean up temp file on any error path.
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenstore: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenstore: writing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenstore: closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("tokenstore: renaming into place: %w", err)
	}

	success = true

	return nil
}

// Clear removes the token file. Clearing an absent file is not an error.
func (s *FileStore) Clear(_ context.Context) error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("tokenstore: removing %s: %w", s.path, err)
	}

	return nil
}
