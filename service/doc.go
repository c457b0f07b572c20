// Package service holds the wallet session broker.
//
// Broker owns the per-user Locked/Unlocked state machine and the promotion flow,
// DelegateRegistry manages auto-unlock delegates, and OwnershipGate decides which
// wallets a user may act on. Every wallet-scoped operation passes the gate before
// touching the session store or making a side-effecting backend call.
package service
