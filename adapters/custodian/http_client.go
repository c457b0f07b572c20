package custodian

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/keygate/core"
	"github.com/layer-3/keygate/ports"
)

const (
	// DefaultTimeout bounds every call to the custodial backend
	DefaultTimeout = 10 * time.Second

	maxErrorBody = 64 << 10
)

// Config configures the HTTP custodian client
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// HTTPClient implements the Custodian interface over the backend's JSON API
type HTTPClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	now     func() time.Time
}

// NewHTTPClient creates a new custodian client
func NewHTTPClient(cfg Config) (ports.Custodian, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid custodian base url %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(base.String(), "/"),
		apiKey:  cfg.APIKey,
		timeout: timeout,
		http:    httpClient,
		now:     time.Now,
	}, nil
}

// request describes a single backend call
type request struct {
	op     string
	method string
	path   string
	bearer string
	caller *core.User
	body   any
}

// do performs the call and decodes a successful response into out (when non-nil).
// Non-2xx responses become upstream errors carrying the backend's status and message;
// transport failures and timeouts become transient errors.
func (c *HTTPClient) do(ctx context.Context, r request, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return 0, core.Internal(r.op, fmt.Errorf("failed to encode request: %w", err))
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return 0, core.Internal(r.op, fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if r.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+r.bearer)
	}
	if r.caller != nil {
		req.Header.Set("X-Caller-ID", r.caller.ID)
		req.Header.Set("X-Caller-Role", string(r.caller.Role))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, core.Transient(r.op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, core.Upstream(r.op, resp.StatusCode, errorMessage(resp.StatusCode, raw))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty body on success
			return resp.StatusCode, nil
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return resp.StatusCode, core.Transient(r.op, err)
		}
		return resp.StatusCode, core.Upstream(r.op, http.StatusBadGateway, "malformed response from custodial backend")
	}
	return resp.StatusCode, nil
}

// errorMessage extracts the backend's own message so it can be forwarded verbatim
func errorMessage(status int, raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" && len(text) < 512 {
		return text
	}
	return http.StatusText(status)
}

func walletPath(walletID string, rest ...string) string {
	parts := append([]string{"/wallets", url.PathEscape(walletID)}, rest...)
	return strings.Join(parts, "/")
}

// ListWallets returns the wallets the backend reports as visible to the caller
func (c *HTTPClient) ListWallets(ctx context.Context, caller core.User) ([]core.Wallet, error) {
	var resp struct {
		Wallets []walletDTO `json:"wallets"`
	}
	if _, err := c.do(ctx, request{op: "list_wallets", method: http.MethodGet, path: "/wallets", caller: &caller}, &resp); err != nil {
		return nil, err
	}

	wallets := make([]core.Wallet, 0, len(resp.Wallets))
	for _, w := range resp.Wallets {
		wallets = append(wallets, w.toDomain())
	}
	return wallets, nil
}

// Unlock exchanges a wallet password for a token bundle
func (c *HTTPClient) Unlock(ctx context.Context, walletID string, password core.Secret) (*core.TokenBundle, error) {
	var resp tokenBundleDTO
	_, err := c.do(ctx, request{
		op:     "unlock",
		method: http.MethodPost,
		path:   walletPath(walletID, "unlock"),
		body:   unlockRequest{Password: password.Reveal()},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.toDomain("unlock", c.now())
}

// Lock asks the backend to lock the wallet; this call is authoritative
func (c *HTTPClient) Lock(ctx context.Context, walletID, accessToken string) error {
	_, err := c.do(ctx, request{op: "lock", method: http.MethodPost, path: walletPath(walletID, "lock"), bearer: accessToken}, nil)
	return err
}

// RevokeToken revokes the bearer token presented
func (c *HTTPClient) RevokeToken(ctx context.Context, accessToken string) error {
	_, err := c.do(ctx, request{op: "revoke_token", method: http.MethodPost, path: "/auth/revoke", bearer: accessToken}, nil)
	return err
}

// Heartbeat asks the backend whether the token still keeps the wallet unlocked
func (c *HTTPClient) Heartbeat(ctx context.Context, walletID, accessToken string) (*core.Heartbeat, error) {
	var resp core.Heartbeat
	_, err := c.do(ctx, request{op: "heartbeat", method: http.MethodPost, path: walletPath(walletID, "heartbeat"), bearer: accessToken}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListSessions lists the wallet's bearer-token sessions across devices
func (c *HTTPClient) ListSessions(ctx context.Context, walletID string) ([]core.RemoteSession, error) {
	var resp struct {
		Sessions []core.RemoteSession `json:"sessions"`
	}
	if _, err := c.do(ctx, request{op: "list_sessions", method: http.MethodGet, path: walletPath(walletID, "sessions")}, &resp); err != nil {
		return nil, err
	}
	if resp.Sessions == nil {
		return []core.RemoteSession{}, nil
	}
	return resp.Sessions, nil
}

// RevokeSession revokes one session by jti, or all of them when jti is empty
func (c *HTTPClient) RevokeSession(ctx context.Context, walletID, jti string) error {
	path := walletPath(walletID, "sessions")
	if jti != "" {
		path = walletPath(walletID, "sessions", url.PathEscape(jti))
	}
	_, err := c.do(ctx, request{op: "revoke_session", method: http.MethodDelete, path: path}, nil)
	return err
}

// ListDelegates lists auto-unlock delegates; older backends answer 404/405/501
func (c *HTTPClient) ListDelegates(ctx context.Context, walletID string) ([]core.AutoUnlockDelegate, error) {
	var resp struct {
		Delegates []core.AutoUnlockDelegate `json:"delegates"`
	}
	status, err := c.do(ctx, request{op: "list_auto_unlock", method: http.MethodGet, path: walletPath(walletID, "auto-unlock")}, &resp)
	if err != nil {
		switch status {
		case http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusNotImplemented:
			return nil, fmt.Errorf("list auto-unlock delegates: %w", core.ErrNotSupported)
		}
		return nil, err
	}
	if resp.Delegates == nil {
		return []core.AutoUnlockDelegate{}, nil
	}
	return resp.Delegates, nil
}

// StoreDelegate forwards an auto-unlock registration; the backend encrypts and stores the password
func (c *HTTPClient) StoreDelegate(ctx context.Context, reg core.DelegateRegistration) (*core.AutoUnlockDelegate, error) {
	var resp core.AutoUnlockDelegate
	_, err := c.do(ctx, request{
		op:     "store_auto_unlock",
		method: http.MethodPost,
		path:   walletPath(reg.WalletID, "auto-unlock"),
		body: storeDelegateRequest{
			UserID:            reg.UserID,
			Password:          reg.Password.Reveal(),
			SessionKey:        reg.SessionKey.Reveal(),
			FrontendSessionID: reg.FrontendSessionID,
			TTLHours:          reg.TTLHours,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.WalletID == "" {
		resp.WalletID = reg.WalletID
	}
	if resp.FrontendSessionID == "" {
		resp.FrontendSessionID = reg.FrontendSessionID
	}
	return &resp, nil
}

// RevokeDelegate invalidates one delegate
func (c *HTTPClient) RevokeDelegate(ctx context.Context, walletID, delegateID string) error {
	_, err := c.do(ctx, request{
		op:     "revoke_auto_unlock",
		method: http.MethodDelete,
		path:   walletPath(walletID, "auto-unlock", url.PathEscape(delegateID)),
	}, nil)
	return err
}

// RedeemDelegate unlocks a wallet using a previously stored delegate
func (c *HTTPClient) RedeemDelegate(ctx context.Context, req core.DelegateRedemption) (*core.TokenBundle, error) {
	var resp tokenBundleDTO
	_, err := c.do(ctx, request{
		op:     "auto_unlock",
		method: http.MethodPost,
		path:   walletPath(req.WalletID, "auto-unlock", "redeem"),
		body: redeemRequest{
			FrontendSessionID: req.FrontendSessionID,
			SessionKey:        req.SessionKey.Reveal(),
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.toDomain("auto_unlock", c.now())
}

// Promote elevates a wallet; the backend response is returned untouched
func (c *HTTPClient) Promote(ctx context.Context, walletID, coreAccessToken string) (json.RawMessage, error) {
	var resp json.RawMessage
	_, err := c.do(ctx, request{op: "promote", method: http.MethodPost, path: walletPath(walletID, "promote"), bearer: coreAccessToken}, &resp)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
