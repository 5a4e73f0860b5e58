// Package events publishes order lifecycle and email events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"pricewaiter-bridge/internal/model"
)

const (
	TypeOrderCreated = "order.created"
	TypeEmailQueued  = "email.queued"
)

// OrderEvent is emitted once per persisted order.
type OrderEvent struct {
	Type          string    `json:"type"`
	OrderID       string    `json:"order_id"`
	OrderKey      string    `json:"order_key"`
	PricewaiterID string    `json:"pricewaiter_id,omitempty"`
	Status        string    `json:"status"`
	CreatedVia    string    `json:"created_via"`
	Currency      string    `json:"currency,omitempty"`
	TotalCents    int64     `json:"total_cents"`
	Test          bool      `json:"test,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewOrderCreated builds the event for a freshly stored order.
func NewOrderCreated(o *model.Order, now time.Time) OrderEvent {
	return OrderEvent{
		Type:          TypeOrderCreated,
		OrderID:       o.ID,
		OrderKey:      o.OrderKey,
		PricewaiterID: o.PricewaiterID,
		Status:        string(o.Status),
		CreatedVia:    o.CreatedVia,
		Currency:      o.Currency,
		TotalCents:    o.Totals.Total,
		Test:          o.Test,
		OccurredAt:    now,
	}
}

// EmailEvent asks the mail worker to send one transactional email.
type EmailEvent struct {
	Type       string    `json:"type"`
	Email      string    `json:"email"`
	OrderID    string    `json:"order_id"`
	Recipient  string    `json:"recipient,omitempty"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher sends events somewhere durable.
type Publisher interface {
	PublishOrder(ctx context.Context, e OrderEvent) error
	PublishEmail(ctx context.Context, e EmailEvent) error
}

// KafkaPublisher writes JSON events keyed by order id. Order and email
// events go to separate topics on one writer.
type KafkaPublisher struct {
	writer     *kafka.Writer
	orderTopic string
	emailTopic string
	timeout    time.Duration
}

// NewKafkaPublisher creates a publisher for brokers.
func NewKafkaPublisher(brokers []string, orderTopic, emailTopic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
		orderTopic: orderTopic,
		emailTopic: emailTopic,
		timeout:    10 * time.Second,
	}
}

func (k *KafkaPublisher) PublishOrder(ctx context.Context, e OrderEvent) error {
	return k.write(ctx, k.orderTopic, e.OrderID, e)
}

func (k *KafkaPublisher) PublishEmail(ctx context.Context, e EmailEvent) error {
	return k.write(ctx, k.emailTopic, e.OrderID, e)
}

func (k *KafkaPublisher) write(ctx context.Context, topic, key string, v any) error {
	msg, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: msg,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("write to %s: %w", topic, err)
	}
	return nil
}

// Close flushes pending writes.
func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}

// LogPublisher logs events instead of sending them. Used when no brokers
// are configured.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) PublishOrder(_ context.Context, e OrderEvent) error {
	p.Logger.Info("order event",
		slog.String("type", e.Type),
		slog.String("order_id", e.OrderID),
		slog.String("pricewaiter_id", e.PricewaiterID),
		slog.String("status", e.Status),
	)
	return nil
}

func (p LogPublisher) PublishEmail(_ context.Context, e EmailEvent) error {
	p.Logger.Info("email event",
		slog.String("email", e.Email),
		slog.String("order_id", e.OrderID),
	)
	return nil
}

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = LogPublisher{}
)
