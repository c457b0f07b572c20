package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/keygate/core"
	"github.com/layer-3/keygate/service"
)

// WalletHandlers contains HTTP handlers for wallet session endpoints
type WalletHandlers struct {
	broker    *service.Broker
	delegates *service.DelegateRegistry
}

// NewWalletHandlers creates new wallet handlers
func NewWalletHandlers(broker *service.Broker, delegates *service.DelegateRegistry) *WalletHandlers {
	return &WalletHandlers{
		broker:    broker,
		delegates: delegates,
	}
}

func mustUser(c *gin.Context) (core.User, bool) {
	user, ok := currentUser(c)
	if !ok {
		writeError(c, core.Unauthenticated(c.FullPath()))
	}
	return user, ok
}

func bindJSON(c *gin.Context, op string, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, core.Validation(op, "invalid request body"))
		return false
	}
	return true
}

// ListWallets lists the wallets visible to the caller
func (h *WalletHandlers) ListWallets(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	wallets, err := h.broker.ListWallets(c.Request.Context(), user)
	if err != nil {
		writeError(c, err)
		return
	}
	if wallets == nil {
		wallets = []core.Wallet{}
	}

	c.JSON(http.StatusOK, gin.H{"wallets": wallets})
}

// Status reports the caller's wallet session
func (h *WalletHandlers) Status(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	status, err := h.broker.Status(c.Request.Context(), user)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// Unlock handles the password unlock request
func (h *WalletHandlers) Unlock(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, "unlock", &req) {
		return
	}

	status, err := h.broker.Unlock(c.Request.Context(), user, c.Param("id"), core.Secret(req.Password))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// AutoUnlock handles unlocking through a registered auto-unlock delegate
func (h *WalletHandlers) AutoUnlock(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	var req struct {
		FrontendSessionID string `json:"frontend_session_id" binding:"required"`
		SessionKey        string `json:"session_key" binding:"required"`
	}
	if !bindJSON(c, "auto_unlock", &req) {
		return
	}

	status, err := h.broker.AutoUnlock(c.Request.Context(), user, c.Param("id"), req.FrontendSessionID, core.Secret(req.SessionKey))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// Lock handles the lock request
func (h *WalletHandlers) Lock(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	if err := h.broker.Lock(c.Request.Context(), user, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"locked": true})
}

// Heartbeat checks that the caller's session is still alive
func (h *WalletHandlers) Heartbeat(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	hb, err := h.broker.Heartbeat(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, hb)
}

// Promote promotes a wallet using the caller's CORE session
func (h *WalletHandlers) Promote(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	result, err := h.broker.Promote(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if len(result) == 0 {
		result = []byte("{}")
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", result)
}

// ListSessions lists the wallet's sessions on every device
func (h *WalletHandlers) ListSessions(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	sessions, err := h.broker.ListSessions(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if sessions == nil {
		sessions = []core.RemoteSession{}
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// RevokeSession revokes a single remote session
func (h *WalletHandlers) RevokeSession(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	jti := c.Param("jti")
	if jti == "" {
		writeError(c, core.Validation("revoke_session", "session id is required"))
		return
	}

	if err := h.broker.RevokeSession(c.Request.Context(), user, c.Param("id"), jti); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"revoked": jti})
}

// RevokeAllSessions revokes every session of the wallet
func (h *WalletHandlers) RevokeAllSessions(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	if err := h.broker.RevokeSession(c.Request.Context(), user, c.Param("id"), ""); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"revoked": "all"})
}

// ListDelegates lists the wallet's active auto-unlock delegates
func (h *WalletHandlers) ListDelegates(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	delegates, err := h.delegates.List(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if delegates == nil {
		delegates = []core.AutoUnlockDelegate{}
	}

	c.JSON(http.StatusOK, gin.H{"delegates": delegates})
}

// RegisterDelegate registers an auto-unlock delegate for the wallet
func (h *WalletHandlers) RegisterDelegate(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	// Field presence is checked by the registry so that every missing field reads the same way
	var req struct {
		Password          string `json:"password"`
		SessionKey        string `json:"session_key"`
		FrontendSessionID string `json:"frontend_session_id"`
		TTLHours          int    `json:"ttl_hours"`
	}
	if !bindJSON(c, "register_auto_unlock", &req) {
		return
	}

	delegate, err := h.delegates.Register(c.Request.Context(), user, core.DelegateRegistration{
		WalletID:          c.Param("id"),
		Password:          core.Secret(req.Password),
		SessionKey:        core.Secret(req.SessionKey),
		FrontendSessionID: req.FrontendSessionID,
		TTLHours:          req.TTLHours,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, delegate)
}

// RevokeDelegate revokes one auto-unlock delegate
func (h *WalletHandlers) RevokeDelegate(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	delegateID := c.Param("delegateId")
	if err := h.delegates.Revoke(c.Request.Context(), user, c.Param("id"), delegateID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"revoked": delegateID})
}
