package service

import (
	"context"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/layer-3/keygate/core"
	"github.com/layer-3/keygate/ports"
)

const msgNoAccess = "you do not have access to this wallet"

// Broker is the wallet session state machine. Per application user it is either
// Locked (no session, or an expired one) or Unlocked(walletID, role).
//
// Unlock, AutoUnlock, Lock, RevokeSession and ForgetWallet are serialized per user,
// so two of them never interleave for the same user; the last unlock to finish wins the slot.
type Broker struct {
	custodian ports.Custodian
	store     ports.SessionStore
	gate      *OwnershipGate
	eventPub  ports.EventPublisher
	logger    watermill.LoggerAdapter
	locks     *userLocks

	now func() time.Time
}

// NewBroker creates a new wallet session broker
func NewBroker(
	custodian ports.Custodian,
	store ports.SessionStore,
	gate *OwnershipGate,
	eventPub ports.EventPublisher,
	logger watermill.LoggerAdapter,
) *Broker {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Broker{
		custodian: custodian,
		store:     store,
		gate:      gate,
		eventPub:  eventPub,
		logger:    logger,
		locks:     newUserLocks(),
		now:       time.Now,
	}
}

func fields(op string, user core.User, walletID string) watermill.LogFields {
	return watermill.LogFields{"op": op, "user_id": user.ID, "wallet_id": walletID}
}

func requireWalletID(op, walletID string) error {
	if strings.TrimSpace(walletID) == "" {
		return core.Validation(op, "wallet id is required")
	}
	return nil
}

func (b *Broker) requireOwnership(ctx context.Context, op string, user core.User, walletID string) error {
	if !b.gate.Check(ctx, user, walletID) {
		b.logger.Info("Wallet access denied", fields(op, user, walletID))
		return core.Forbidden(op, msgNoAccess)
	}
	return nil
}

// activeSession returns the user's session if one is stored and not expired
func (b *Broker) activeSession(ctx context.Context, op string, user core.User) (*core.WalletSession, error) {
	session, err := b.store.Get(ctx, user.ID)
	if err != nil {
		return nil, core.Internal(op, err)
	}
	if session == nil || session.IsExpired(b.now()) {
		return nil, nil
	}
	return session, nil
}

func (b *Broker) publish(ctx context.Context, event ports.WalletEvent) {
	if b.eventPub == nil {
		return
	}
	if err := b.eventPub.PublishWalletEvent(ctx, event); err != nil {
		// The state change already happened; the event is informational
		b.logger.Error("Failed to publish wallet event", err, watermill.LogFields{
			"event":     event.Type,
			"user_id":   event.UserID,
			"wallet_id": event.WalletID,
		})
	}
}

// lockUser takes the per-user operation lock, giving up when ctx is done
func (b *Broker) lockUser(ctx context.Context, op, userID string) (func(), error) {
	release, err := b.locks.lock(ctx, userID)
	if err != nil {
		return nil, core.Transient(op, err)
	}
	return release, nil
}

func (b *Broker) fail(op string, user core.User, walletID string, err error) error {
	err = core.WithOp(op, err)
	b.logger.Error("Wallet operation failed", err, fields(op, user, walletID))
	return err
}

func statusOf(session *core.WalletSession) *core.SessionStatus {
	expiresAt := session.ExpiresAt
	return &core.SessionStatus{
		IsUnlocked:    true,
		WalletID:      session.WalletID,
		WalletName:    session.WalletName,
		WalletRole:    session.WalletRole,
		ExpiresAt:     &expiresAt,
		HasCoreWallet: session.IsCore(),
	}
}

// store writes the new session unless the request was cancelled first
func (b *Broker) storeSession(ctx context.Context, op string, user core.User, session *core.WalletSession) error {
	if err := ctx.Err(); err != nil {
		return core.Transient(op, err)
	}
	if err := b.store.Set(ctx, user.ID, session); err != nil {
		return core.Internal(op, err)
	}
	return nil
}

// Unlock exchanges the wallet password for a backend session and stores it as the user's only session
func (b *Broker) Unlock(ctx context.Context, user core.User, walletID string, password core.Secret) (*core.SessionStatus, error) {
	const op = "unlock"

	if err := requireWalletID(op, walletID); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, core.Validation(op, "password is required")
	}
	if err := b.requireOwnership(ctx, op, user, walletID); err != nil {
		return nil, err
	}

	release, err := b.lockUser(ctx, op, user.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	bundle, err := b.custodian.Unlock(ctx, walletID, password)
	if err != nil {
		return nil, b.fail(op, user, walletID, err)
	}

	session := core.NewWalletSession(walletID, bundle)
	if err := b.storeSession(ctx, op, user, session); err != nil {
		return nil, b.fail(op, user, walletID, err)
	}

	b.logger.Info("Wallet unlocked", fields(op, user, walletID))
	b.publish(ctx, ports.NewWalletEvent(ports.EventWalletUnlocked, user, walletID, session.WalletRole))

	return statusOf(session), nil
}

// AutoUnlock redeems a previously registered auto-unlock delegate instead of a password
func (b *Broker) AutoUnlock(ctx context.Context, user core.User, walletID, frontendSessionID string, sessionKey core.Secret) (*core.SessionStatus, error) {
	const op = "auto_unlock"

	if err := requireWalletID(op, walletID); err != nil {
		return nil, err
	}
	if frontendSessionID == "" || sessionKey == "" {
		return nil, core.Validation(op, "frontend session id and session key are required")
	}
	if err := b.requireOwnership(ctx, op, user, walletID); err != nil {
		return nil, err
	}

	release, err := b.lockUser(ctx, op, user.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	bundle, err := b.custodian.RedeemDelegate(ctx, core.DelegateRedemption{
		WalletID:          walletID,
		FrontendSessionID: frontendSessionID,
		SessionKey:        sessionKey,
	})
	if err != nil {
		return nil, b.fail(op, user, walletID, err)
	}

	session := core.NewWalletSession(walletID, bundle)
	if err := b.storeSession(ctx, op, user, session); err != nil {
		return nil, b.fail(op, user, walletID, err)
	}

	b.logger.Info("Wallet auto-unlocked", fields(op, user, walletID))
	b.publish(ctx, ports.NewWalletEvent(ports.EventWalletUnlocked, user, walletID, session.WalletRole))

	return statusOf(session), nil
}

// Lock locks the wallet currently unlocked by the user.
//
// The access token is revoked best-effort, then the backend lock (authoritative) runs,
// and only then is the local session cleared.
func (b *Broker) Lock(ctx context.Context, user core.User, walletID string) error {
	const op = "lock"

	if err := requireWalletID(op, walletID); err != nil {
		return err
	}
	if err := b.requireOwnership(ctx, op, user, walletID); err != nil {
		return err
	}

	release, err := b.lockUser(ctx, op, user.ID)
	if err != nil {
		return err
	}
	defer release()

	session, err := b.activeSession(ctx, op, user)
	if err != nil {
		return b.fail(op, user, walletID, err)
	}
	if session == nil || session.WalletID != walletID {
		return core.Precondition(op, "wallet is not currently unlocked")
	}

	if err := b.custodian.RevokeToken(ctx, session.AccessToken); err != nil {
		b.logger.Info("Best-effort token revocation failed, continuing with lock", watermill.LogFields{
			"op":        op,
			"user_id":   user.ID,
			"wallet_id": walletID,
			"err":       err.Error(),
		})
	}

	if err := b.custodian.Lock(ctx, walletID, session.AccessToken); err != nil {
		return b.fail(op, user, walletID, err)
	}

	if err := b.store.Clear(ctx, user.ID); err != nil {
		return b.fail(op, user, walletID, core.Internal(op, err))
	}

	b.logger.Info("Wallet locked", fields(op, user, walletID))
	b.publish(ctx, ports.NewWalletEvent(ports.EventWalletLocked, user, walletID, session.WalletRole))

	return nil
}

// Heartbeat reports whether the user's session for walletID is still alive.
// Without a matching local session it answers false without contacting the backend.
func (b *Broker) Heartbeat(ctx context.Context, user core.User, walletID string) (*core.Heartbeat, error) {
	const op = "heartbeat"

	if err := requireWalletID(op, walletID); err != nil {
		return nil, err
	}
	if err := b.requireOwnership(ctx, op, user, walletID); err != nil {
		return nil, err
	}

	session, err := b.activeSession(ctx, op, user)
	if err != nil {
		return nil, b.fail(op, user, walletID, err)
	}
	if session == nil || session.WalletID != walletID {
		return &core.Heartbeat{SessionValid: false}, nil
	}

	hb, err := b.custodian.Heartbeat(ctx, walletID, session.AccessToken)
	if err != nil {
		return nil, b.fail(op, user, walletID, err)
	}
	return hb, nil
}

// Status reports the user's session without contacting the backend.
// An expired session reads as locked.
func (b *Broker) Status(ctx context.Context, user core.User) (*core.SessionStatus, error) {
	const op = "session_status"

	session, err := b.activeSession(ctx, op, user)
	if err != nil {
		return nil, b.fail(op, user, "", err)
	}
	if session == nil {
		return &core.SessionStatus{IsUnlocked: false}, nil
	}
	return statusOf(session), nil
}

// ListWallets returns the wallets the backend reports for the user
func (b *Broker) ListWallets(ctx context.Context, user core.User) ([]core.Wallet, error) {
	const op = "list_wallets"

	wallets, err := b.custodian.ListWallets(ctx, user)
	if err != nil {
		return nil, b.fail(op, user, "", err)
	}
	return wallets, nil
}

// ListSessions lists the wallet's sessions across devices
func (b *Broker) ListSessions(ctx context.Context, user core.User, walletID string) ([]core.RemoteSession, error) {
	const op = "list_sessions"

	if err := requireWalletID(op, walletID); err != nil {
		return nil, err
	}
	if err := b.requireOwnership(ctx, op, user, walletID); err != nil {
		return nil, err
	}

	sessions, err := b.custodian.ListSessions(ctx, walletID)
	if err != nil {
		return nil, b.fail(op, user, walletID, err)
	}
	return sessions, nil
}

// RevokeSession revokes one remote session by jti, or every session of the wallet when jti is empty.
// Revoking every session also drops the user's local session for that wallet.
func (b *Broker) RevokeSession(ctx context.Context, user core.User, walletID, jti string) error {
	const op = "revoke_session"

	if err := requireWalletID(op, walletID); err != nil {
		return err
	}
	if err := b.requireOwnership(ctx, op, user, walletID); err != nil {
		return err
	}

	release, err := b.lockUser(ctx, op, user.ID)
	if err != nil {
		return err
	}
	defer release()

	if err := b.custodian.RevokeSession(ctx, walletID, jti); err != nil {
		return b.fail(op, user, walletID, err)
	}

	if jti == "" {
		if err := b.clearIfWallet(ctx, user.ID, walletID); err != nil {
			return b.fail(op, user, walletID, core.Internal(op, err))
		}
		b.publish(ctx, ports.NewWalletEvent(ports.EventWalletSessionsRevoked, user, walletID, ""))
	}

	b.logger.Info("Wallet session revoked", watermill.LogFields{
		"op":        op,
		"user_id":   user.ID,
		"wallet_id": walletID,
		"all":       jti == "",
	})
	return nil
}

// ForgetWallet drops the user's local session when it belongs to a deleted wallet
func (b *Broker) ForgetWallet(ctx context.Context, userID, walletID string) error {
	userID = core.NormalizeUserID(userID)

	release, err := b.lockUser(ctx, "forget_wallet", userID)
	if err != nil {
		return err
	}
	defer release()

	if b.gate != nil {
		b.gate.Forget(userID)
	}
	return b.clearIfWallet(ctx, userID, walletID)
}

func (b *Broker) clearIfWallet(ctx context.Context, userID, walletID string) error {
	session, err := b.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	if session == nil || session.WalletID != walletID {
		return nil
	}
	return b.store.Clear(ctx, userID)
}
