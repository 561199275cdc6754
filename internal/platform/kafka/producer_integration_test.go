//go:build integration

package kafka_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"docsign/internal/platform/kafka"
	"docsign/pkg/testutil/containers"
)

func TestProducerRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	broker := containers.GetManager().GetRedpanda(t)
	producer, err := kafka.NewProducer(broker.Brokers)
	require.NoError(t, err)
	defer producer.Close()

	require.NoError(t, producer.Health(ctx))

	topic := "docsign.test." + uuid.NewString()
	require.NoError(t, producer.EnsureTopics(ctx, 1, 1, topic))
	require.NoError(t, producer.EnsureTopics(ctx, 1, 1, topic), "existing topics are not an error")

	require.NoError(t, producer.Produce(ctx, topic, []byte("user-1"), []byte(`{"title":"Document Signed"}`),
		map[string]string{"notification_type": "DOCUMENT_SIGNED"}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "user-1", string(records[0].Key))
	assert.JSONEq(t, `{"title":"Document Signed"}`, string(records[0].Value))
	require.Len(t, records[0].Headers, 1)
	assert.Equal(t, "notification_type", records[0].Headers[0].Key)
	assert.Equal(t, "DOCUMENT_SIGNED", string(records[0].Headers[0].Value))
}
