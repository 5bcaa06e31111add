package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Handler processes one event. An error is retried up to MaxAttempts times
// before the event is dropped.
type Handler func(ctx context.Context, env Envelope) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Inbox remembers which events were handled, so redelivered events are
// skipped.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID, eventType string) error
}

type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	Topic       string
	MaxAttempts int           // default 3
	RetryDelay  time.Duration // default 1s
}

type Consumer struct {
	reader      messageReader
	inbox       Inbox
	handler     Handler
	logger      *slog.Logger
	maxAttempts int
	retryDelay  time.Duration
}

func NewConsumer(cfg ConsumerConfig, inbox Inbox, handler Handler, logger *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newConsumer(reader, cfg, inbox, handler, logger)
}

func newConsumer(r messageReader, cfg ConsumerConfig, inbox Inbox, handler Handler, logger *slog.Logger) *Consumer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Consumer{
		reader:      r,
		inbox:       inbox,
		handler:     handler,
		logger:      logger,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("kafka fetch", "err", err)
			if !sleep(ctx, c.retryDelay) {
				return nil
			}
			continue
		}

		c.process(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("kafka commit", "err", err, "offset", msg.Offset)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	msgCtx := extractTraceContext(ctx, msg)
	spanCtx, span := otel.Tracer("kafka").Start(msgCtx, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		c.logger.Error("drop malformed event", "err", err, "offset", msg.Offset)
		span.RecordError(err)
		return
	}
	if env.EventID == "" {
		env.EventID = headerValue(msg.Headers, HeaderEventID)
	}
	if env.EventType == "" {
		env.EventType = headerValue(msg.Headers, HeaderEventType)
	}

	seen, err := c.inbox.Seen(spanCtx, env.EventID)
	if err != nil {
		c.logger.Error("inbox lookup", "err", err, "event_id", env.EventID)
	} else if seen {
		c.logger.Info("duplicate event ignored", "event_id", env.EventID, "event_type", env.EventType)
		return
	}

	for attempt := 1; ; attempt++ {
		err = c.handler(spanCtx, env)
		if err == nil {
			break
		}
		span.RecordError(err)
		if attempt >= c.maxAttempts {
			c.logger.Error("event dropped after retries",
				"event_id", env.EventID,
				"event_type", env.EventType,
				"attempts", attempt,
				"err", err,
			)
			return
		}
		c.logger.Warn("handler failed, retrying", "event_id", env.EventID, "attempt", attempt, "err", err)
		if !sleep(ctx, c.retryDelay) {
			return
		}
	}

	if err := c.inbox.Mark(spanCtx, env.EventID, env.EventType); err != nil {
		c.logger.Error("inbox mark", "err", err, "event_id", env.EventID)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// PgInbox stores processed event ids in processed_events.
type PgInbox struct {
	pool *pgxpool.Pool
}

func NewPgInbox(pool *pgxpool.Pool) *PgInbox {
	return &PgInbox{pool: pool}
}

func (i *PgInbox) Seen(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := i.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM processed_events WHERE event_id = $1)`, eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query processed_events: %w", err)
	}
	return exists, nil
}

func (i *PgInbox) Mark(ctx context.Context, eventID, eventType string) error {
	if eventID == "" {
		return errors.New("event id is empty")
	}
	_, err := i.pool.Exec(ctx, `
		INSERT INTO processed_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return fmt.Errorf("insert processed_events: %w", err)
	}
	return nil
}
