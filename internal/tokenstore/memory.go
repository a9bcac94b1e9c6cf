package tokenstore

import (
	"context"
	"sync"

	"github.com/tonimelisma/box-go/internal/boxauth"
)

// MemoryStore is a process-local Store, mainly for tests and short-lived
// tools that want session behavior without persistence.
type MemoryStore struct {
	mu    sync.Mutex
	token *boxauth.TokenInfo
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Read returns the stored tokens, or (nil, nil) when empty.
func (s *MemoryStore) Read(_ context.Context) (*boxauth.TokenInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == nil {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	copied := *s.token

	return &copied, nil
}

// Write replaces the stored tokens.
func (s *MemoryStore) Write(_ context.Context, info *boxauth.TokenInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *info
	s.token = &copied

	return nil
}

// Clear empties the store.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil

	return nil
}
