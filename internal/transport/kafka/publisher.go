// Package kafka publishes catalog change events.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/photomatch/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// writer is the consumer interface over *kafka.Writer (ISP).
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds producer settings.
type Config struct {
	Brokers []string
	Topic   string
}

// Publisher writes JSON events keyed by product id, so one product's events share a partition.
type Publisher struct {
	writer writer
	logger *zap.Logger
}

// NewPublisher creates a producer for cfg.Topic.
func NewPublisher(cfg Config, logger *zap.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    10,
		BatchTimeout: 500 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Completion: func(_ []kafka.Message, err error) {
			if err != nil {
				logger.Warn("Kafka producer error", zap.Error(err))
			}
		},
	}
	return newPublisher(w, logger), nil
}

func newPublisher(w writer, logger *zap.Logger) *Publisher {
	return &Publisher{writer: w, logger: logger}
}

// envelope is the wire format of one event.
type envelope struct {
	EventID string `json:"event_id"`
	domain.CatalogEvent
}

// Publish writes events in one batch.
func (p *Publisher) Publish(ctx context.Context, events ...domain.CatalogEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		if ev.At.IsZero() {
			ev.At = time.Now().UTC()
		}
		value, err := json.Marshal(envelope{EventID: uuid.NewString(), CatalogEvent: ev})
		if err != nil {
			return fmt.Errorf("marshal %s event: %w", ev.Type, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.FormatInt(ev.ProductID, 10)),
			Value: value,
			Time:  ev.At,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d events: %w", len(msgs), err)
	}
	return nil
}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}
