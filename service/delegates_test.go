package service

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/layer-3/keygate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) (*DelegateRegistry, *fakeCustodian) {
	t.Helper()
	custodian := newFakeCustodian()
	custodian.owned[userAddr] = []string{"w1"}
	gate := NewOwnershipGate(custodian, watermill.NopLogger{}, 0)
	return NewDelegateRegistry(custodian, gate, watermill.NopLogger{}), custodian
}

func validRegistration() core.DelegateRegistration {
	return core.DelegateRegistration{
		WalletID:          "w1",
		Password:          "pw",
		SessionKey:        "key",
		FrontendSessionID: "fs-1",
	}
}

func TestRegisterValidation(t *testing.T) {
	cases := map[string]func(r *core.DelegateRegistration){
		"wallet":   func(r *core.DelegateRegistration) { r.WalletID = "" },
		"password": func(r *core.DelegateRegistration) { r.Password = "" },
		"key":      func(r *core.DelegateRegistration) { r.SessionKey = "" },
		"frontend": func(r *core.DelegateRegistration) { r.FrontendSessionID = "" },
		"ttl":      func(r *core.DelegateRegistration) { r.TTLHours = core.MaxDelegateTTLHours + 1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			registry, custodian := newRegistry(t)
			reg := validRegistration()
			mutate(&reg)

			_, err := registry.Register(context.Background(), standardUser, reg)
			requireKind(t, err, core.KindValidation)
			assert.Empty(t, custodian.Calls())
		})
	}
}

func TestRegisterForwardsToBackend(t *testing.T) {
	registry, custodian := newRegistry(t)

	reg := validRegistration()
	reg.UserID = "spoofed"
	d, err := registry.Register(context.Background(), standardUser, reg)
	require.NoError(t, err)
	assert.Equal(t, "d1", d.ID)

	require.Len(t, custodian.stored, 1)
	assert.Equal(t, userAddr, custodian.stored[0].UserID)
	assert.Equal(t, core.DefaultDelegateTTLHours, custodian.stored[0].TTLHours)
	assert.Equal(t, "pw", custodian.stored[0].Password.Reveal())
}

func TestRegisterRequiresOwnership(t *testing.T) {
	registry, custodian := newRegistry(t)
	reg := validRegistration()
	reg.WalletID = "w9"

	_, err := registry.Register(context.Background(), standardUser, reg)
	requireKind(t, err, core.KindAuthorization)
	assert.Empty(t, custodian.sideEffects())
}

func TestListDelegates(t *testing.T) {
	registry, custodian := newRegistry(t)
	now := time.Now()
	registry.now = func() time.Time { return now }
	custodian.delegates = []core.AutoUnlockDelegate{
		{ID: "live", ExpiresAt: now.Add(time.Hour)},
		{ID: "stale", ExpiresAt: now.Add(-time.Hour)},
		{ID: "no-expiry"},
	}

	delegates, err := registry.List(context.Background(), standardUser, "w1")
	require.NoError(t, err)
	require.Len(t, delegates, 2)
	assert.Equal(t, "live", delegates[0].ID)
	assert.Equal(t, "no-expiry", delegates[1].ID)
}

func TestListDelegatesDegradesWhenUnsupported(t *testing.T) {
	registry, custodian := newRegistry(t)
	custodian.delegatesErr = fmt.Errorf("list: %w", core.ErrNotSupported)

	delegates, err := registry.List(context.Background(), standardUser, "w1")
	require.NoError(t, err)
	assert.NotNil(t, delegates)
	assert.Empty(t, delegates)
}

func TestListDelegatesPropagatesOtherErrors(t *testing.T) {
	registry, custodian := newRegistry(t)
	custodian.delegatesErr = core.Upstream("list_auto_unlock", http.StatusInternalServerError, "boom")

	_, err := registry.List(context.Background(), standardUser, "w1")
	requireKind(t, err, core.KindUpstream)
}

func TestRevokeDelegate(t *testing.T) {
	registry, custodian := newRegistry(t)

	err := registry.Revoke(context.Background(), standardUser, "w1", "")
	requireKind(t, err, core.KindValidation)

	require.NoError(t, registry.Revoke(context.Background(), standardUser, "w1", "d1"))
	assert.Contains(t, custodian.Calls(), "revoke_delegate:w1:d1")

	err = registry.Revoke(context.Background(), standardUser, "w2", "d1")
	requireKind(t, err, core.KindAuthorization)
}
