// Package events streams trip lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// TripEvent describes one trip status change.
type TripEvent struct {
	Type        string    `json:"type"`
	TripID      string    `json:"tripId"`
	TripCode    string    `json:"tripCode"`
	Status      string    `json:"status"`
	PassengerID string    `json:"passengerId"`
	DriverID    string    `json:"driverId,omitempty"`
	Price       *float64  `json:"price,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
	RequestID   string    `json:"requestId,omitempty"`
}

// Publisher delivers trip events.
type Publisher interface {
	Publish(ctx context.Context, event TripEvent) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes trip events keyed by trip id so one trip's events stay ordered.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string, timeout time.Duration) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w, timeout: timeout}
}

// Publish writes one event.
func (k *KafkaPublisher) Publish(ctx context.Context, event TripEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if k.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.timeout)
		defer cancel()
	}

	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TripID),
		Value: b,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	})
}

// Close flushes and closes the writer.
func (k *KafkaPublisher) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

// NopPublisher discards events. Used when Kafka is disabled.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(ctx context.Context, event TripEvent) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NopPublisher{}
)
