package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/keygate/core"
	"github.com/layer-3/keygate/ports"
)

// WalletDeletedHandler reacts to a wallet having been deleted
type WalletDeletedHandler func(ctx context.Context, userID, walletID string) error

// ConsumeWalletDeleted subscribes to wallet.deleted events and calls handle for each.
// It blocks until ctx is done or the subscription closes. Malformed messages are acked and dropped;
// handler failures are nacked for redelivery.
func ConsumeWalletDeleted(ctx context.Context, sub message.Subscriber, prefix string, logger watermill.LoggerAdapter, handle WalletDeletedHandler) error {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	topic := prefix + ports.EventWalletDeleted

	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			var event ports.WalletEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil || event.UserID == "" || event.WalletID == "" {
				logger.Error("Dropping malformed wallet.deleted event", err, watermill.LogFields{"message_uuid": msg.UUID})
				msg.Ack()
				continue
			}

			if err := handle(ctx, core.NormalizeUserID(event.UserID), event.WalletID); err != nil {
				logger.Error("Failed to handle wallet.deleted event", err, watermill.LogFields{
					"message_uuid": msg.UUID,
					"wallet_id":    event.WalletID,
				})
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}
}
