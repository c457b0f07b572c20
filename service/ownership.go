package service

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/layer-3/keygate/core"
	"github.com/layer-3/keygate/ports"
)

// ownershipCachePruneSize caps the number of cached grants
const ownershipCachePruneSize = 1024

type ownershipKey struct {
	userID   string
	walletID string
}

// OwnershipGate decides whether an application user may act on a wallet.
// Administrators own every wallet; everyone else owns what the custodial backend lists for them.
// Only affirmative answers are cached, and only for cacheTTL.
type OwnershipGate struct {
	custodian ports.Custodian
	logger    watermill.LoggerAdapter
	cacheTTL  time.Duration
	now       func() time.Time

	mu    sync.Mutex
	cache map[ownershipKey]time.Time
}

// NewOwnershipGate creates a gate; a zero cacheTTL disables caching
func NewOwnershipGate(custodian ports.Custodian, logger watermill.LoggerAdapter, cacheTTL time.Duration) *OwnershipGate {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &OwnershipGate{
		custodian: custodian,
		logger:    logger,
		cacheTTL:  cacheTTL,
		now:       time.Now,
		cache:     make(map[ownershipKey]time.Time),
	}
}

// Check returns true iff user may act on walletID. It fails closed: a backend
// error is logged and reported as "not owned".
func (g *OwnershipGate) Check(ctx context.Context, user core.User, walletID string) bool {
	if user.IsAdmin() {
		return true
	}
	if user.ID == "" || walletID == "" {
		return false
	}

	key := ownershipKey{userID: user.ID, walletID: walletID}
	if g.cached(key) {
		return true
	}

	wallets, err := g.custodian.ListWallets(ctx, user)
	if err != nil {
		g.logger.Error("Ownership check failed, denying access", err, watermill.LogFields{
			"op":        "check_ownership",
			"user_id":   user.ID,
			"wallet_id": walletID,
		})
		return false
	}

	for _, w := range wallets {
		if w.ID == walletID {
			g.remember(key)
			return true
		}
	}
	return false
}

// Forget drops every cached answer for the user
func (g *OwnershipGate) Forget(userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for key := range g.cache {
		if key.userID == userID {
			delete(g.cache, key)
		}
	}
}

func (g *OwnershipGate) cached(key ownershipKey) bool {
	if g.cacheTTL <= 0 {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	until, ok := g.cache[key]
	if !ok {
		return false
	}
	if !g.now().Before(until) {
		delete(g.cache, key)
		return false
	}
	return true
}

func (g *OwnershipGate) remember(key ownershipKey) {
	if g.cacheTTL <= 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if len(g.cache) >= ownershipCachePruneSize {
		for k, until := range g.cache {
			if !now.Before(until) {
				delete(g.cache, k)
			}
		}
		// Still full: drop arbitrary live entries, they are re-checked on next use
		for k := range g.cache {
			if len(g.cache) < ownershipCachePruneSize {
				break
			}
			delete(g.cache, k)
		}
	}
	g.cache[key] = now.Add(g.cacheTTL)
}
