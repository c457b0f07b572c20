package service

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/layer-3/keygate/core"
	"github.com/layer-3/keygate/ports"
)

// Returned when promotion is attempted without a CORE session
const msgCoreWalletLocked = "CORE wallet must be unlocked first"

// Promote elevates walletID. The caller must be an administrator holding an unlocked
// CORE wallet session; that session's access token authorizes the backend call.
func (b *Broker) Promote(ctx context.Context, user core.User, walletID string) (json.RawMessage, error) {
	const op = "promote"

	if err := requireWalletID(op, walletID); err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		b.logger.Info("Promotion denied to non-administrator", fields(op, user, walletID))
		return nil, core.Forbidden(op, "administrator role required")
	}
	if err := b.requireOwnership(ctx, op, user, walletID); err != nil {
		return nil, err
	}

	session, err := b.activeSession(ctx, op, user)
	if err != nil {
		return nil, b.fail(op, user, walletID, err)
	}
	if session == nil || !session.IsCore() {
		return nil, &core.Error{
			Kind:    core.KindPrecondition,
			Op:      op,
			Message: msgCoreWalletLocked,
			Status:  http.StatusForbidden,
		}
	}

	result, err := b.custodian.Promote(ctx, walletID, session.AccessToken)
	if err != nil {
		return nil, b.fail(op, user, walletID, err)
	}

	b.logger.Info("Wallet promoted", fields(op, user, walletID))
	b.publish(ctx, ports.NewWalletEvent(ports.EventWalletPromoted, user, walletID, core.WalletRoleCore))

	return result, nil
}
