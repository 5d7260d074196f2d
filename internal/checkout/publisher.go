package checkout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fjod/zapit-cart/internal/domain"
	"github.com/segmentio/kafka-go"
)

const EventTypeCheckoutRequested = "checkout_requested"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher hands checkout requests to order creation over Kafka.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

// Publish keys the message by session so all checkouts of one session land on
// the same partition in order.
func (p *KafkaPublisher) Publish(ctx context.Context, req *domain.CheckoutRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal checkout request: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(req.SessionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeCheckoutRequested)},
			{Key: "checkout_id", Value: []byte(req.CheckoutID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish checkout %s: %w", req.CheckoutID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
