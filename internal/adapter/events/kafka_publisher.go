package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hero-mint-service/config"
	"hero-mint-service/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// EventMintCompleted is the value of the event_type header on mint events.
const EventMintCompleted = "mint.completed"

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher implements ports.EventPublisher on a Kafka topic.
// Messages are keyed by user so one user's events stay ordered.
type KafkaPublisher struct {
	writer messageWriter
	log    zerolog.Logger
}

// NewKafkaPublisher creates a publisher writing to cfg.Topic.
func NewKafkaPublisher(cfg config.EventsConfig, log zerolog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
	}
	return newKafkaPublisher(writer, log)
}

func newKafkaPublisher(w messageWriter, log zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		log:    log.With().Str("component", "events").Logger(),
	}
}

func (p *KafkaPublisher) PublishMintCompleted(ctx context.Context, event ports.MintCompletedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode mint event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventMintCompleted)},
			{Key: "idempotency_key", Value: []byte(event.IdempotencyKey)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Warn().Err(err).
			Str("user_id", event.UserID).
			Str("token_id", event.TokenID).
			Msg("Failed to publish mint event")
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops events. It is used when events are disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishMintCompleted(ctx context.Context, event ports.MintCompletedEvent) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }

// New returns the publisher selected by cfg.
func New(cfg config.EventsConfig, log zerolog.Logger) ports.EventPublisher {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		return NoopPublisher{}
	}
	return NewKafkaPublisher(cfg, log)
}
