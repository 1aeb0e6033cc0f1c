package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaNotifier publishes order events to a Kafka topic. Messages are keyed
// by order ID so one order's events land on one partition in order.
type KafkaNotifier struct {
	writer *kafka.Writer
}

// KafkaOption tweaks the writer before first use.
type KafkaOption func(*kafka.Writer)

// WithErrorLogger routes writer errors to the given printf-style logger.
func WithErrorLogger(logger kafka.Logger) KafkaOption {
	return func(w *kafka.Writer) { w.ErrorLogger = logger }
}

// NewKafkaNotifier builds a notifier over the given brokers and topic.
// RequireAll plus bounded retries keeps confirmations from silently
// disappearing when a broker is down.
func NewKafkaNotifier(brokers []string, topic string, opts ...KafkaOption) (*KafkaNotifier, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("notifications: at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("notifications: topic is required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  5,
		WriteTimeout: 5 * time.Second,
		ReadTimeout:  5 * time.Second,
		BatchTimeout: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(writer)
	}
	return &KafkaNotifier{writer: writer}, nil
}

// Close releases the underlying writer.
func (n *KafkaNotifier) Close() error { return n.writer.Close() }

type envelope struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

func (n *KafkaNotifier) publish(ctx context.Context, key, kind string, payload any) error {
	value, err := json.Marshal(envelope{Kind: kind, Payload: payload})
	if err != nil {
		return fmt.Errorf("notifications: marshal %s: %w", kind, err)
	}
	if err := n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	}); err != nil {
		return fmt.Errorf("notifications: publish %s: %w", kind, err)
	}
	return nil
}

func (n *KafkaNotifier) OrderConfirmation(ctx context.Context, msg OrderConfirmation) error {
	return n.publish(ctx, msg.OrderID, "order_confirmation", msg)
}

func (n *KafkaNotifier) ShipmentNotice(ctx context.Context, msg ShipmentNotice) error {
	return n.publish(ctx, msg.OrderID, "shipment_notice", msg)
}
