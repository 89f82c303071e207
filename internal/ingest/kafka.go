package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// MessageReader is the subset of *kafka.Reader used by KafkaConsumer.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig holds configuration for the Kafka consumer.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string

	// Reader overrides the reader built from Brokers/Topic/GroupID.
	Reader MessageReader

	Updater *Updater
	Logger  zerolog.Logger
}

// KafkaConsumer applies sensor payloads read from a Kafka topic.
type KafkaConsumer struct {
	reader  MessageReader
	topic   string
	updater *Updater
	logger  zerolog.Logger
}

// NewKafkaConsumer creates a consumer reading cfg.Topic as cfg.GroupID.
func NewKafkaConsumer(cfg KafkaConfig) (*KafkaConsumer, error) {
	if cfg.Updater == nil {
		return nil, errors.New("kafka consumer requires an updater")
	}

	reader := cfg.Reader
	if reader == nil {
		if len(cfg.Brokers) == 0 || cfg.Topic == "" {
			return nil, errors.New("kafka consumer requires brokers and a topic")
		}
		reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			Topic:          cfg.Topic,
			GroupID:        cfg.GroupID,
			MinBytes:       1,
			MaxBytes:       1e6,
			MaxWait:        time.Second,
			CommitInterval: 0, // commit after each applied message
			StartOffset:    kafka.LastOffset,
		})
	}

	return &KafkaConsumer{
		reader:  reader,
		topic:   cfg.Topic,
		updater: cfg.Updater,
		logger:  cfg.Logger,
	}, nil
}

// Name returns the consumer name.
func (c *KafkaConsumer) Name() string {
	return TransportKafka
}

// Start fetches and applies messages until ctx is done. Invalid payloads
// are logged and committed so they are not redelivered.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info().
		Str("topic", c.topic).
		Msg("starting kafka consumer")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetching message: %w", err)
		}

		c.handleMessage(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("committing message: %w", err)
		}
	}
}

// Close closes the underlying reader.
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

func (c *KafkaConsumer) handleMessage(ctx context.Context, msg kafka.Message) {
	logger := c.logger.With().
		Str("device", string(msg.Key)).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Logger()

	if _, err := c.updater.UpdateJSON(ctx, TransportKafka, msg.Value); err != nil {
		logger.Warn().Err(err).Msg("dropping sensor message")
		return
	}
	logger.Debug().Msg("applied sensor message")
}
