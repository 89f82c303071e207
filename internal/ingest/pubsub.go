package ingest

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubConfig holds configuration for the Pub/Sub consumer.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Updater          *Updater
	Logger           zerolog.Logger
}

// PubSubConsumer applies sensor payloads received on a Pub/Sub subscription.
type PubSubConsumer struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	updater          *Updater
	logger           zerolog.Logger
}

// NewPubSubConsumer creates a new Pub/Sub consumer.
func NewPubSubConsumer(ctx context.Context, cfg PubSubConfig) (*PubSubConsumer, error) {
	if cfg.Updater == nil {
		return nil, fmt.Errorf("pubsub consumer requires an updater")
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Readings are tiny; later ones supersede earlier ones anyway.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 100
	subscriber.ReceiveSettings.MaxExtension = time.Minute

	return &PubSubConsumer{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		updater:          cfg.Updater,
		logger:           cfg.Logger,
	}, nil
}

// Name returns the consumer name.
func (c *PubSubConsumer) Name() string {
	return TransportPubSub
}

// Start begins processing Pub/Sub messages.
func (c *PubSubConsumer) Start(ctx context.Context) error {
	c.logger.Info().
		Str("subscription", c.subscriptionName).
		Msg("starting pubsub consumer")

	return c.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		c.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (c *PubSubConsumer) Close() error {
	return c.client.Close()
}

// handleMessage acks every message. Invalid payloads would fail again on
// redelivery.
func (c *PubSubConsumer) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := c.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	if _, err := c.updater.UpdateJSON(ctx, TransportPubSub, msg.Data); err != nil {
		logger.Warn().Err(err).Msg("dropping sensor message")
	} else {
		logger.Debug().Msg("applied sensor message")
	}
	msg.Ack()
}
