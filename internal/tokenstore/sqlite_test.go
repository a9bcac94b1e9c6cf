package tokenstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.db")

	db, err := OpenDB(ctx, path, nil)
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLiteStore(db, "default", nil)

	got, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Write(ctx, sampleInfo()))

	got, err = store.Read(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "at-1", got.AccessToken)
	assert.Equal(t, "rt-1", got.RefreshToken)
	assert.Equal(t, int64(1700000000000), got.AcquiredAt.UnixMilli())
	assert.Equal(t, time.Hour, got.TTL)
}

func TestSQLiteStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()

	db, err := OpenDB(ctx, filepath.Join(t.TempDir(), "tokens.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLiteStore(db, "default", nil)

	require.NoError(t, store.Write(ctx, sampleInfo()))

	updated := sampleInfo()
	updated.AccessToken = "at-2"
	updated.RefreshToken = "rt-2"
	require.NoError(t, store.Write(ctx, updated))

	got, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "at-2", got.AccessToken)
	assert.Equal(t, "rt-2", got.RefreshToken)
}

func TestSQLiteStore_NamesAreIsolated(t *testing.T) {
	ctx := context.Background()

	db, err := OpenDB(ctx, filepath.Join(t.TempDir(), "tokens.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	alice := NewSQLiteStore(db, "alice", nil)
	bob := NewSQLiteStore(db, "bob", nil)

	require.NoError(t, alice.Write(ctx, sampleInfo()))

	got, err := bob.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, alice.Clear(ctx))
	require.NoError(t, bob.Clear(ctx))
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.db")

	db, err := OpenDB(ctx, path, nil)
	require.NoError(t, err)

	store := NewSQLiteStore(db, "default", nil)
	require.NoError(t, store.Write(ctx, sampleInfo()))
	require.NoError(t, db.Close())

	// Reopen: migrations are a no-op, data survives.
	db2, err := OpenDB(ctx, path, nil)
	require.NoError(t, err)
	defer db2.Close()

	got, err := NewSQLiteStore(db2, "default", nil).Read(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "at-1", got.AccessToken)
}
