package ports

import (
	"context"

	"github.com/layer-3/keygate/core"
)

// SessionStore holds at most one wallet session per application user
type SessionStore interface {
	// Get returns the user's session, or nil when none is stored
	Get(ctx context.Context, userID string) (*core.WalletSession, error)

	// Set atomically replaces any session held for the user
	Set(ctx context.Context, userID string, session *core.WalletSession) error

	// Clear removes the user's session; clearing an empty slot is not an error
	Clear(ctx context.Context, userID string) error
}
