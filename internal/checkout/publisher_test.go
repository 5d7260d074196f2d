package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fjod/zapit-cart/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type writerMock struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *writerMock) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *writerMock) Close() error {
	w.closed = true
	return nil
}

func testRequest() *domain.CheckoutRequest {
	return &domain.CheckoutRequest{
		CheckoutID:  "chk-1",
		SessionID:   "session-1",
		Items:       []domain.CheckoutItem{{ProductID: "a", Quantity: 2, UnitPrice: decimal.NewFromInt(5), Subtotal: decimal.NewFromInt(10)}},
		ItemCount:   2,
		TotalAmount: decimal.NewFromInt(10),
		DeliveryFee: decimal.Zero,
		Currency:    domain.DefaultCurrency,
		CapturedAt:  time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestPublish_WritesKeyedMessage(t *testing.T) {
	w := &writerMock{}
	p := &KafkaPublisher{writer: w}

	require.NoError(t, p.Publish(context.Background(), testRequest()))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "session-1", string(msg.Key))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, EventTypeCheckoutRequested, string(msg.Headers[0].Value))
	assert.Equal(t, "chk-1", string(msg.Headers[1].Value))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, "chk-1", payload["checkout_id"])
	assert.Equal(t, "10", payload["total_amount"])
	assert.Equal(t, "INR", payload["currency"])
}

func TestPublish_WriterError(t *testing.T) {
	w := &writerMock{err: errors.New("broker down")}
	p := &KafkaPublisher{writer: w}

	err := p.Publish(context.Background(), testRequest())

	require.ErrorContains(t, err, "broker down")
	require.ErrorContains(t, err, "chk-1")
}

func TestClose(t *testing.T) {
	w := &writerMock{}
	p := &KafkaPublisher{writer: w}

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}
