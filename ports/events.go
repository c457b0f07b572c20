package ports

import (
	"context"

	"github.com/layer-3/keygate/core"
)

// WalletEvent describes a wallet session lifecycle change
type WalletEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	WalletID string `json:"wallet_id"`
	Role     string `json:"wallet_role,omitempty"`
}

const (
	EventWalletUnlocked        = "wallet.unlocked"
	EventWalletLocked          = "wallet.locked"
	EventWalletPromoted        = "wallet.promoted"
	EventWalletSessionsRevoked = "wallet.sessions_revoked"
	EventWalletDeleted         = "wallet.deleted"
)

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishWalletEvent(ctx context.Context, event WalletEvent) error
}

// NewWalletEvent is a small helper used by the broker
func NewWalletEvent(eventType string, user core.User, walletID, role string) WalletEvent {
	return WalletEvent{Type: eventType, UserID: user.ID, WalletID: walletID, Role: role}
}
