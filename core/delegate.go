package core

import "time"

// DefaultDelegateTTLHours is used when a registration does not specify a lifetime
const DefaultDelegateTTLHours = 24

// MaxDelegateTTLHours bounds how long an auto-unlock delegate may live
const MaxDelegateTTLHours = 24 * 30

// Secret holds a value that must never reach logs or error messages
type Secret string

// String implements fmt.Stringer
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// GoString keeps %#v from leaking the value
func (s Secret) GoString() string {
	return s.String()
}

// Reveal returns the raw value for forwarding to the custodial backend
func (s Secret) Reveal() string {
	return string(s)
}

// AutoUnlockDelegate is an encrypted stand-in credential registered for one device
type AutoUnlockDelegate struct {
	ID                string    `json:"id"`
	WalletID          string    `json:"wallet_id"`
	FrontendSessionID string    `json:"frontend_session_id"`
	Device            string    `json:"device,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// IsExpired is true iff now is at or past the delegate expiry
func (d AutoUnlockDelegate) IsExpired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

// DelegateRegistration carries everything the backend needs to store an encrypted password
type DelegateRegistration struct {
	WalletID          string
	UserID            string
	Password          Secret
	SessionKey        Secret
	FrontendSessionID string
	TTLHours          int
}

// DelegateRedemption asks the backend to unlock a wallet with a stored delegate
type DelegateRedemption struct {
	WalletID          string
	FrontendSessionID string
	SessionKey        Secret
}
