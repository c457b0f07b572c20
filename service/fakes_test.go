package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/layer-3/keygate/core"
	"github.com/layer-3/keygate/ports"
)

const (
	userAddr  = "0x52908400098527886E0F7030069857D2E4169EE7"
	adminAddr = "0x8617E340B3D01FA5F11F306F4090FD50E238070D"
)

var (
	standardUser = core.User{ID: userAddr, Role: core.RoleUser}
	adminUser    = core.User{ID: adminAddr, Role: core.RoleAdmin}
)

// fakeCustodian implements ports.Custodian for tests and records every call
type fakeCustodian struct {
	mu sync.Mutex

	owned     map[string][]string // user id -> wallet ids
	passwords map[string]string   // wallet id -> password
	roles     map[string]string   // wallet id -> wallet role
	expiresAt time.Time

	listErr       error
	revokeErr     error
	lockErr       error
	heartbeat     *core.Heartbeat
	delegates     []core.AutoUnlockDelegate
	delegatesErr  error
	promoteResult json.RawMessage

	calls        []string
	promoteToken string
	stored       []core.DelegateRegistration
}

func newFakeCustodian() *fakeCustodian {
	return &fakeCustodian{
		owned:         map[string][]string{},
		passwords:     map[string]string{},
		roles:         map[string]string{},
		expiresAt:     time.Now().Add(time.Hour),
		heartbeat:     &core.Heartbeat{SessionValid: true},
		promoteResult: json.RawMessage(`{"promoted":true}`),
	}
}

var _ ports.Custodian = (*fakeCustodian)(nil)

func (f *fakeCustodian) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeCustodian) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// sideEffects returns recorded calls other than the read-only wallet listing
func (f *fakeCustodian) sideEffects() []string {
	var out []string
	for _, c := range f.Calls() {
		if c != "list_wallets" {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeCustodian) ListWallets(ctx context.Context, caller core.User) ([]core.Wallet, error) {
	f.record("list_wallets")
	if f.listErr != nil {
		return nil, f.listErr
	}
	var wallets []core.Wallet
	for _, id := range f.owned[caller.ID] {
		wallets = append(wallets, core.Wallet{ID: id, Role: f.roles[id]})
	}
	return wallets, nil
}

func (f *fakeCustodian) Unlock(ctx context.Context, walletID string, password core.Secret) (*core.TokenBundle, error) {
	f.record("unlock:" + walletID)
	if want, ok := f.passwords[walletID]; !ok || want != password.Reveal() {
		return nil, core.Upstream("unlock", http.StatusUnauthorized, "Invalid wallet password")
	}
	return &core.TokenBundle{
		AccessToken:  "access-" + walletID,
		RefreshToken: "refresh-" + walletID,
		ExpiresAt:    f.expiresAt,
		WalletName:   "Wallet " + walletID,
		WalletRole:   f.roles[walletID],
	}, nil
}

func (f *fakeCustodian) Lock(ctx context.Context, walletID, accessToken string) error {
	f.record("lock:" + walletID)
	return f.lockErr
}

func (f *fakeCustodian) RevokeToken(ctx context.Context, accessToken string) error {
	f.record("revoke_token:" + accessToken)
	return f.revokeErr
}

func (f *fakeCustodian) Heartbeat(ctx context.Context, walletID, accessToken string) (*core.Heartbeat, error) {
	f.record("heartbeat:" + walletID)
	return f.heartbeat, nil
}

func (f *fakeCustodian) ListSessions(ctx context.Context, walletID string) ([]core.RemoteSession, error) {
	f.record("list_sessions:" + walletID)
	return []core.RemoteSession{{JTI: "j1"}, {JTI: "j2"}}, nil
}

func (f *fakeCustodian) RevokeSession(ctx context.Context, walletID, jti string) error {
	f.record("revoke_session:" + walletID + ":" + jti)
	return nil
}

func (f *fakeCustodian) ListDelegates(ctx context.Context, walletID string) ([]core.AutoUnlockDelegate, error) {
	f.record("list_delegates:" + walletID)
	if f.delegatesErr != nil {
		return nil, f.delegatesErr
	}
	return f.delegates, nil
}

func (f *fakeCustodian) StoreDelegate(ctx context.Context, reg core.DelegateRegistration) (*core.AutoUnlockDelegate, error) {
	f.record("store_delegate:" + reg.WalletID)
	f.mu.Lock()
	f.stored = append(f.stored, reg)
	f.mu.Unlock()
	return &core.AutoUnlockDelegate{ID: "d1", WalletID: reg.WalletID, FrontendSessionID: reg.FrontendSessionID}, nil
}

func (f *fakeCustodian) RevokeDelegate(ctx context.Context, walletID, delegateID string) error {
	f.record("revoke_delegate:" + walletID + ":" + delegateID)
	return nil
}

func (f *fakeCustodian) RedeemDelegate(ctx context.Context, req core.DelegateRedemption) (*core.TokenBundle, error) {
	f.record("redeem_delegate:" + req.WalletID)
	if req.SessionKey.Reveal() != "good-key" {
		return nil, core.Upstream("auto_unlock", http.StatusUnauthorized, "Auto-unlock session not found")
	}
	return &core.TokenBundle{AccessToken: "auto-" + req.WalletID, ExpiresAt: f.expiresAt, WalletRole: f.roles[req.WalletID]}, nil
}

func (f *fakeCustodian) Promote(ctx context.Context, walletID, coreAccessToken string) (json.RawMessage, error) {
	f.record("promote:" + walletID)
	f.mu.Lock()
	f.promoteToken = coreAccessToken
	f.mu.Unlock()
	return f.promoteResult, nil
}

// recordingPublisher implements ports.EventPublisher
type recordingPublisher struct {
	mu     sync.Mutex
	events []ports.WalletEvent
	err    error
}

func (p *recordingPublisher) PublishWalletEvent(ctx context.Context, event ports.WalletEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// failingStore wraps a store and fails writes
type failingStore struct {
	ports.SessionStore
}

func (s failingStore) Set(ctx context.Context, userID string, session *core.WalletSession) error {
	return errors.New("disk full")
}
