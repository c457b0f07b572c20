package ports

import (
	"context"
	"encoding/json"

	"github.com/layer-3/keygate/core"
)

// Custodian is the remote custodial backend holding wallet keys.
// Implementations return *core.Error values for backend rejections and transport failures.
type Custodian interface {
	ListWallets(ctx context.Context, caller core.User) ([]core.Wallet, error)
	Unlock(ctx context.Context, walletID string, password core.Secret) (*core.TokenBundle, error)
	Lock(ctx context.Context, walletID, accessToken string) error
	RevokeToken(ctx context.Context, accessToken string) error
	Heartbeat(ctx context.Context, walletID, accessToken string) (*core.Heartbeat, error)

	// Remote session management; an empty jti revokes every session of the wallet
	ListSessions(ctx context.Context, walletID string) ([]core.RemoteSession, error)
	RevokeSession(ctx context.Context, walletID, jti string) error

	// Auto-unlock delegates; ListDelegates returns core.ErrNotSupported on backends without listing
	ListDelegates(ctx context.Context, walletID string) ([]core.AutoUnlockDelegate, error)
	StoreDelegate(ctx context.Context, reg core.DelegateRegistration) (*core.AutoUnlockDelegate, error)
	RevokeDelegate(ctx context.Context, walletID, delegateID string) error
	RedeemDelegate(ctx context.Context, req core.DelegateRedemption) (*core.TokenBundle, error)

	// Promote elevates walletID, authorized by the caller's CORE wallet token
	Promote(ctx context.Context, walletID, coreAccessToken string) (json.RawMessage, error)
}
