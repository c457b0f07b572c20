package core

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// WalletRoleCore marks an elevated wallet whose unlocked session authorizes promotions
const WalletRoleCore = "core"

// Role is the application-level role of a user
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the authenticated application user making a request
type User struct {
	ID   string // Checksummed ethereum address of the user
	Role Role
}

// NormalizeUserID returns the checksummed form of an address user id; other ids are returned unchanged
func NormalizeUserID(id string) string {
	if common.IsHexAddress(id) {
		return common.HexToAddress(id).Hex()
	}
	return id
}

// IsAdmin reports whether the user holds the elevated application role
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Wallet is a custodial wallet as reported by the backend listing
type Wallet struct {
	ID      string
	Name    string
	Role    string
	Address common.Address
	Balance decimal.Decimal
}

// TokenBundle is what the custodial backend issues on a successful unlock
type TokenBundle struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	WalletName   string
	WalletRole   string
}

// WalletSession is the single unlocked-wallet slot held per application user
type WalletSession struct {
	WalletID     string    `json:"wallet_id"`
	WalletName   string    `json:"wallet_name"`
	WalletRole   string    `json:"wallet_role"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// NewWalletSession builds the session stored after the backend accepted an unlock
func NewWalletSession(walletID string, bundle *TokenBundle) *WalletSession {
	return &WalletSession{
		WalletID:     walletID,
		WalletName:   bundle.WalletName,
		WalletRole:   bundle.WalletRole,
		AccessToken:  bundle.AccessToken,
		RefreshToken: bundle.RefreshToken,
		ExpiresAt:    bundle.ExpiresAt,
	}
}

// IsExpired is true iff now is at or past the session expiry
func (s *WalletSession) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsCore reports whether the session belongs to a CORE wallet
func (s *WalletSession) IsCore() bool {
	return s.WalletRole == WalletRoleCore
}

// SessionStatus is the read-only view of a user's wallet session
type SessionStatus struct {
	IsUnlocked    bool       `json:"isUnlocked"`
	WalletID      string     `json:"walletId,omitempty"`
	WalletName    string     `json:"walletName,omitempty"`
	WalletRole    string     `json:"walletRole,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	HasCoreWallet bool       `json:"hasCoreWallet"`
}

// Heartbeat is the backend's verdict on a wallet session's liveness
type Heartbeat struct {
	SessionValid bool       `json:"session_valid"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// RemoteSession describes one bearer-token session held by the backend
type RemoteSession struct {
	JTI       string    `json:"jti"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Device    string    `json:"device,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}
