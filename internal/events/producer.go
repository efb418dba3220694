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

const (
	TopicOrderPlaced = "marketplace.order.placed"
	TopicCartUpdated = "marketplace.cart.updated"
)

// Envelope is the wire format for every domain event.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type OrderPlaced struct {
	OrderID    string `json:"order_id"`
	UserID     string `json:"user_id"`
	TotalCents int64  `json:"total_cents"`
	ItemCount  int    `json:"item_count"`
}

type CartUpdated struct {
	UserID    string `json:"user_id"`
	ItemCount int    `json:"item_count"`
}

// Producer publishes domain events to Kafka. A nil Producer (no brokers
// configured) silently drops events, so callers never branch on it.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer returns nil when brokers is empty; publishing stays a no-op.
func NewProducer(brokers []string) *Producer {
	if len(brokers) == 0 {
		return nil
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
	}
}

// Publish sends one event, keyed for per-entity ordering. Delivery is best
// effort: a broker failure is logged, never surfaced to the request path.
func (p *Producer) Publish(ctx context.Context, topic, key, eventType string, payload any) {
	if p == nil {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("event payload marshal failed", "topic", topic, "type", eventType, "error", err)
		return
	}
	envelope, err := json.Marshal(Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	})
	if err != nil {
		slog.Error("event envelope marshal failed", "topic", topic, "type", eventType, "error", err)
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: envelope,
	})
	if err != nil {
		slog.Error("event publish failed", "topic", topic, "type", eventType, "error", err)
	}
}

func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}
