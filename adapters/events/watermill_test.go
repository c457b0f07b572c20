package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/layer-3/keygate/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishWalletEvent(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubsub.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := pubsub.Subscribe(ctx, "keygate.wallet.unlocked")
	require.NoError(t, err)

	pub := NewWatermillPublisher(pubsub, "")
	event := ports.WalletEvent{Type: ports.EventWalletUnlocked, UserID: "0xabc", WalletID: "w1", Role: "core"}
	require.NoError(t, pub.PublishWalletEvent(ctx, event))

	select {
	case msg := <-messages:
		var got ports.WalletEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, event, got)
		assert.Equal(t, ports.EventWalletUnlocked, msg.Metadata.Get("type"))
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestConsumeWalletDeleted(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubsub.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type call struct{ user, wallet string }
	calls := make(chan call, 1)
	done := make(chan error, 1)
	go func() {
		done <- ConsumeWalletDeleted(ctx, pubsub, "", watermill.NopLogger{}, func(ctx context.Context, userID, walletID string) error {
			calls <- call{userID, walletID}
			return nil
		})
	}()

	// gochannel drops messages published before a subscriber exists
	require.Eventually(t, func() bool {
		payload, _ := json.Marshal(ports.WalletEvent{Type: ports.EventWalletDeleted, UserID: "0x52908400098527886e0f7030069857d2e4169ee7", WalletID: "w1"})
		_ = pubsub.Publish("keygate.wallet.deleted", message.NewMessage(watermill.NewUUID(), payload))
		select {
		case c := <-calls:
			// User ids arrive checksummed, matching the session store keys
			assert.Equal(t, call{"0x52908400098527886E0F7030069857D2E4169EE7", "w1"}, c)
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.PublishWalletEvent(context.Background(), ports.WalletEvent{}))
}
