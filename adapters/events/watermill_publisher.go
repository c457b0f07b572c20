package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/keygate/ports"
)

// DefaultTopicPrefix namespaces every topic the broker publishes to
const DefaultTopicPrefix = "keygate."

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	prefix    string
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher, prefix string) ports.EventPublisher {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &WatermillPublisher{
		publisher: publisher,
		prefix:    prefix,
	}
}

// Topic returns the topic an event type is published to
func (p *WatermillPublisher) Topic(eventType string) string {
	return p.prefix + eventType
}

// PublishWalletEvent publishes a wallet lifecycle event
func (p *WatermillPublisher) PublishWalletEvent(ctx context.Context, event ports.WalletEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("type", event.Type)

	if err := p.publisher.Publish(p.Topic(event.Type), msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher drops every event; used when publishing is disabled
type NopPublisher struct{}

func (NopPublisher) PublishWalletEvent(context.Context, ports.WalletEvent) error { return nil }
