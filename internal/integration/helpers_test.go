//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const kafkaImage = "confluentinc/confluent-local:7.5.0"

// rainyPayload rains at 01:00 and 04:00.
const rainyPayload = `{
	"latitude": 52.52,
	"longitude": 13.41,
	"elevation": 38.0,
	"timezone": "GMT",
	"utc_offset_seconds": 0,
	"hourly": {
		"time": ["2024-03-01T00:00", "2024-03-01T01:00", "2024-03-01T02:00", "2024-03-01T03:00", "2024-03-01T04:00"],
		"temperature_2m": [4.0, 4.5, 5.0, 5.5, 6.0],
		"relative_humidity_2m": [90, 91, 92, 93, 94],
		"dew_point_2m": [3.0, 3.1, 3.2, 3.3, 3.4],
		"precipitation_probability": [10, 20, 30, 40, 50],
		"precipitation": [0.0, 0.3, 0.0, 0.0, 0.5],
		"cloud_cover": [40, 50, 60, 70, 80],
		"surface_pressure": [1000, 1001, 1002, 1003, 1004],
		"wind_speed_10m": [1.0, 2.0, 3.0, 4.0, 5.0],
		"wind_gusts_10m": [2.0, 3.0, 4.0, 5.0, 6.0],
		"wind_direction_10m": [180, 190, 200, 210, 220]
	}
}`

// dryPayload covers the following morning with no rain at all.
const dryPayload = `{
	"latitude": 52.52,
	"longitude": 13.41,
	"hourly": {
		"time": ["2024-03-02T00:00", "2024-03-02T01:00", "2024-03-02T02:00"],
		"temperature_2m": [2.0, 1.5, 1.0],
		"relative_humidity_2m": [70, 71, 72],
		"precipitation": [0.0, 0.0, 0.1],
		"wind_speed_10m": [3.0, 3.5, 4.0]
	}
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, kafkaImage, tckafka.WithClusterID("rain-forecast-test"))
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "resolve kafka brokers")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "find controller")

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}), "create topic %s", topic)
}
