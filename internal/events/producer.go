package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes domain events to a single topic, keyed so every event
// of one appointment lands on the same partition.
type Producer struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
	now    func() time.Time
}

func NewProducer(brokers []string, topic string, logger *slog.Logger) *Producer {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.Hash{},
	})
	return newProducer(w, topic, logger)
}

func newProducer(w messageWriter, topic string, logger *slog.Logger) *Producer {
	return &Producer{writer: w, topic: topic, logger: logger, now: time.Now}
}

func (p *Producer) Publish(ctx context.Context, eventType, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	env := Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		Key:        key,
		OccurredAt: p.now().UTC(),
		Payload:    body,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(env.EventID)},
			{Key: HeaderEventType, Value: []byte(eventType)},
		},
	}
	msg.Headers = injectTraceHeaders(ctx, msg.Headers)

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", eventType, err)
	}
	p.logger.Debug("event published", "event_type", eventType, "event_id", env.EventID, "key", key)
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Noop drops events. Used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, string, any) error { return nil }
