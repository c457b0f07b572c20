package store

import (
	"context"
	"sync"

	"github.com/layer-3/keygate/core"
	"github.com/layer-3/keygate/ports"
)

// MemoryStore is an in-memory implementation of the SessionStore interface
type MemoryStore struct {
	sessions map[string]core.WalletSession
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() ports.SessionStore {
	return &MemoryStore{
		sessions: make(map[string]core.WalletSession),
	}
}

// Get returns a copy of the user's session
func (s *MemoryStore) Get(ctx context.Context, userID string) (*core.WalletSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

// Set replaces the user's session. A cancelled context leaves the slot untouched.
func (s *MemoryStore) Set(ctx context.Context, userID string, session *core.WalletSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[userID] = *session
	return nil
}

// Clear removes the user's session
func (s *MemoryStore) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, userID)
	return nil
}
