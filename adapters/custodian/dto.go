package custodian

import (
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/keygate/core"
	"github.com/shopspring/decimal"
)

type walletDTO struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Role    string          `json:"role"`
	Address string          `json:"address"`
	Balance decimal.Decimal `json:"balance"`
}

func (w walletDTO) toDomain() core.Wallet {
	wallet := core.Wallet{
		ID:      w.ID,
		Name:    w.Name,
		Role:    w.Role,
		Balance: w.Balance,
	}
	if common.IsHexAddress(w.Address) {
		wallet.Address = common.HexToAddress(w.Address)
	}
	return wallet
}

type tokenBundleDTO struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	ExpiresIn    int64     `json:"expires_in"` // Seconds; used by backends that omit expires_at
	WalletName   string    `json:"wallet_name"`
	WalletRole   string    `json:"wallet_role"`
}

func (t tokenBundleDTO) toDomain(op string, now time.Time) (*core.TokenBundle, error) {
	if t.AccessToken == "" {
		return nil, core.Upstream(op, http.StatusBadGateway, "custodial backend returned no access token")
	}

	expiresAt := t.ExpiresAt
	if expiresAt.IsZero() {
		if t.ExpiresIn <= 0 {
			return nil, core.Upstream(op, http.StatusBadGateway, "custodial backend returned no token expiry")
		}
		expiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}

	return &core.TokenBundle{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    expiresAt,
		WalletName:   t.WalletName,
		WalletRole:   t.WalletRole,
	}, nil
}

type unlockRequest struct {
	Password string `json:"password"`
}

type storeDelegateRequest struct {
	UserID            string `json:"user_id"`
	Password          string `json:"password"`
	SessionKey        string `json:"session_key"`
	FrontendSessionID string `json:"frontend_session_id"`
	TTLHours          int    `json:"ttl_hours"`
}

type redeemRequest struct {
	FrontendSessionID string `json:"frontend_session_id"`
	SessionKey        string `json:"session_key"`
}
