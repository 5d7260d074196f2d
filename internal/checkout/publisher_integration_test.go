package checkout

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fjod/zapit-cart/internal/domain"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
)

func TestKafkaPublisher_Publish(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Kafka container test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)
	defer func() {
		if errTerminate := kafkaContainer.Terminate(context.Background()); errTerminate != nil {
			t.Logf("failed to terminate kafka container: %v", errTerminate)
		}
	}()
	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)

	topic := "checkout-requests"
	publisher := NewKafkaPublisher(topic, brokers...)
	defer publisher.Close()

	req := testRequest()
	// the topic is created on first write, which may need a retry
	require.Eventually(t, func() bool {
		return publisher.Publish(ctx, req) == nil
	}, 30*time.Second, time.Second)

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	defer reader.Close()

	m, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "session-1", string(m.Key))

	var got domain.CheckoutRequest
	require.NoError(t, json.Unmarshal(m.Value, &got))
	assert.Equal(t, req.CheckoutID, got.CheckoutID)
	assert.Equal(t, req.ItemCount, got.ItemCount)
	assert.True(t, req.TotalAmount.Equal(got.TotalAmount))
}
