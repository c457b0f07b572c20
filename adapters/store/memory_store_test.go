package store

import (
	"context"
	"testing"
	"time"

	"github.com/layer-3/keygate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSingleSlot(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	got, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got)

	exp := time.Now().Add(time.Hour)
	require.NoError(t, s.Set(ctx, "alice", &core.WalletSession{WalletID: "w1", AccessToken: "a1", ExpiresAt: exp}))
	require.NoError(t, s.Set(ctx, "alice", &core.WalletSession{WalletID: "w2", AccessToken: "a2", ExpiresAt: exp}))

	got, err = s.Get(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "w2", got.WalletID)
	assert.Equal(t, "a2", got.AccessToken)

	other, err := s.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	in := &core.WalletSession{WalletID: "w1"}
	require.NoError(t, s.Set(ctx, "alice", in))
	in.WalletID = "mutated"

	got, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	got.WalletID = "mutated-too"

	again, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "w1", again.WalletID)
}

func TestMemoryStoreClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Clear(ctx, "nobody"))
	require.NoError(t, s.Set(ctx, "alice", &core.WalletSession{WalletID: "w1"}))
	require.NoError(t, s.Clear(ctx, "alice"))

	got, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreSetCancelled(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Set(context.Background(), "alice", &core.WalletSession{WalletID: "w1"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Set(ctx, "alice", &core.WalletSession{WalletID: "w2"}), context.Canceled)

	got, err := s.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "w1", got.WalletID)
}
