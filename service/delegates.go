package service

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/layer-3/keygate/core"
	"github.com/layer-3/keygate/ports"
)

// DelegateRegistry manages auto-unlock delegates. Passwords pass through to the
// custodial backend, which encrypts and keeps them; nothing is retained here.
type DelegateRegistry struct {
	custodian ports.Custodian
	gate      *OwnershipGate
	logger    watermill.LoggerAdapter
	now       func() time.Time
}

// NewDelegateRegistry creates a new auto-unlock delegate registry
func NewDelegateRegistry(custodian ports.Custodian, gate *OwnershipGate, logger watermill.LoggerAdapter) *DelegateRegistry {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &DelegateRegistry{
		custodian: custodian,
		gate:      gate,
		logger:    logger,
		now:       time.Now,
	}
}

func (r *DelegateRegistry) requireOwnership(ctx context.Context, op string, user core.User, walletID string) error {
	if !r.gate.Check(ctx, user, walletID) {
		r.logger.Info("Wallet access denied", fields(op, user, walletID))
		return core.Forbidden(op, msgNoAccess)
	}
	return nil
}

// Register stores an encrypted copy of the wallet password for one frontend session
func (r *DelegateRegistry) Register(ctx context.Context, user core.User, reg core.DelegateRegistration) (*core.AutoUnlockDelegate, error) {
	const op = "register_auto_unlock"

	if err := requireWalletID(op, reg.WalletID); err != nil {
		return nil, err
	}
	switch {
	case reg.Password == "":
		return nil, core.Validation(op, "password is required")
	case reg.SessionKey == "":
		return nil, core.Validation(op, "session key is required")
	case reg.FrontendSessionID == "":
		return nil, core.Validation(op, "frontend session id is required")
	}
	if reg.TTLHours <= 0 {
		reg.TTLHours = core.DefaultDelegateTTLHours
	}
	if reg.TTLHours > core.MaxDelegateTTLHours {
		return nil, core.Validation(op, "ttl_hours exceeds the maximum of 720")
	}

	if err := r.requireOwnership(ctx, op, user, reg.WalletID); err != nil {
		return nil, err
	}
	reg.UserID = user.ID

	delegate, err := r.custodian.StoreDelegate(ctx, reg)
	if err != nil {
		err = core.WithOp(op, err)
		r.logger.Error("Failed to register auto-unlock delegate", err, fields(op, user, reg.WalletID))
		return nil, err
	}

	r.logger.Info("Auto-unlock delegate registered", watermill.LogFields{
		"op":                  op,
		"user_id":             user.ID,
		"wallet_id":           reg.WalletID,
		"frontend_session_id": reg.FrontendSessionID,
	})
	return delegate, nil
}

// List returns the wallet's live delegates. Backends without listing support yield an empty list.
func (r *DelegateRegistry) List(ctx context.Context, user core.User, walletID string) ([]core.AutoUnlockDelegate, error) {
	const op = "list_auto_unlock"

	if err := requireWalletID(op, walletID); err != nil {
		return nil, err
	}
	if err := r.requireOwnership(ctx, op, user, walletID); err != nil {
		return nil, err
	}

	delegates, err := r.custodian.ListDelegates(ctx, walletID)
	if err != nil {
		if errors.Is(err, core.ErrNotSupported) {
			return []core.AutoUnlockDelegate{}, nil
		}
		err = core.WithOp(op, err)
		r.logger.Error("Failed to list auto-unlock delegates", err, fields(op, user, walletID))
		return nil, err
	}

	now := r.now()
	live := make([]core.AutoUnlockDelegate, 0, len(delegates))
	for _, d := range delegates {
		if !d.ExpiresAt.IsZero() && d.IsExpired(now) {
			continue
		}
		live = append(live, d)
	}
	return live, nil
}

// Revoke invalidates one delegate
func (r *DelegateRegistry) Revoke(ctx context.Context, user core.User, walletID, delegateID string) error {
	const op = "revoke_auto_unlock"

	if err := requireWalletID(op, walletID); err != nil {
		return err
	}
	if delegateID == "" {
		return core.Validation(op, "delegate id is required")
	}
	if err := r.requireOwnership(ctx, op, user, walletID); err != nil {
		return err
	}

	if err := r.custodian.RevokeDelegate(ctx, walletID, delegateID); err != nil {
		err = core.WithOp(op, err)
		r.logger.Error("Failed to revoke auto-unlock delegate", err, fields(op, user, walletID))
		return err
	}

	r.logger.Info("Auto-unlock delegate revoked", fields(op, user, walletID))
	return nil
}
