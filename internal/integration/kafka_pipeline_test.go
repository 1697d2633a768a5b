//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/rain-forecast-etl/internal/adapter/kafka"
	"github.com/couchcryptid/rain-forecast-etl/internal/adapter/parquet"
	"github.com/couchcryptid/rain-forecast-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/rain-forecast-etl/internal/config"
	"github.com/couchcryptid/rain-forecast-etl/internal/domain"
	"github.com/couchcryptid/rain-forecast-etl/internal/observability"
	"github.com/couchcryptid/rain-forecast-etl/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSourceTopic = "test-source"
	testSinkTopic   = "test-sink"
)

// forecastMessage holds a deserialized message read from the sink topic.
type forecastMessage struct {
	Value   map[string]any
	Key     string
	Headers map[string]string
}

// readForecast reads a single message from the sink consumer and deserializes it.
func readForecast(ctx context.Context, t *testing.T, consumer *kafkago.Reader) forecastMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var value map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &value), "unmarshal sink message")

	return forecastMessage{
		Value:   value,
		Key:     string(msg.Key),
		Headers: headers,
	}
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}
}

func sinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// startPipeline wires Reader → Medallion → Writer against real Kafka with a
// parquet store and sqlite ledger under a temp dir.
func startPipeline(ctx context.Context, t *testing.T, cfg *config.Config) (*parquet.Store, *sqlite.Ledger, func()) {
	t.Helper()
	dir := t.TempDir()

	store, err := parquet.NewStore(dir, config.CompressionSnappy)
	require.NoError(t, err)
	ledger, err := sqlite.Open(ctx, filepath.Join(dir, "ledger.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	medallion := pipeline.NewMedallion(store, ledger, discardLogger(), metrics, pipeline.WithBronze())
	p := pipeline.New(reader, medallion, writer, nil, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	return store, ledger, func() {
		pipelineCancel()
		require.NoError(t, <-errCh)
	}
}

func label(v any) any {
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return v
}

// TestKafkaReaderWriter verifies the adapter layer: kafka.Reader (Extractor) and
// kafka.Writer (Loader) correctly round-trip a payload through Kafka.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-reader")

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx, kafkago.Message{
		Key:     []byte("berlin"),
		Value:   []byte(rainyPayload),
		Headers: []kafkago.Header{{Key: "provider", Value: []byte("open-meteo")}},
	}))

	// Retry because the consumer group may need time to rebalance before
	// partitions are assigned and messages become available.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawEvent
	for {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if len(batch) > 0 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from source topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("berlin"), raw.Key)
	assert.JSONEq(t, rainyPayload, string(raw.Value))
	assert.Equal(t, testSourceTopic, raw.Topic)
	assert.Equal(t, "open-meteo", raw.Headers["provider"])
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	silver, err := domain.Normalize(raw.Value)
	require.NoError(t, err)
	table := domain.MLReady(domain.AddLabels(domain.BuildHourly(domain.CoerceTimestamps(silver))))
	require.Len(t, table.Rows, 5)

	p := 0.42
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.LoadBatch(ctx, []domain.ForecastRow{{
		RunID:           "run-1",
		Row:             table.Rows[0],
		RainProbability: &p,
		ProcessedAt:     time.Now(),
	}}))

	fm := readForecast(ctx, t, sinkConsumer(t, broker))
	assert.Equal(t, "2024-03-01T00:00:00Z", fm.Key)
	assert.Equal(t, "run-1", fm.Headers["run_id"])
	_, err = time.Parse(time.RFC3339, fm.Headers["processed_at"])
	assert.NoError(t, err, "processed_at should be valid RFC3339")

	assert.Equal(t, "2024-03-01T00:00:00Z", fm.Value["time"])
	assert.InDelta(t, 4.0, fm.Value[domain.FieldTemperature], 1e-9)
	assert.Nil(t, fm.Value["temp_lag_1h"])
	assert.Equal(t, 1, label(fm.Value["rain_next_hour"]))
	assert.InDelta(t, 0.42, fm.Value["rain_probability"], 1e-9)
	assert.Equal(t, "run-1", fm.Value["run_id"])
}

// TestPipelineEndToEnd runs two payloads through the full pipeline and checks
// the published rows, the persisted tiers and the run ledger.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-pipeline")

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("rainy"), Value: []byte(rainyPayload)},
		kafkago.Message{Key: []byte("dry"), Value: []byte(dryPayload)},
	))

	store, ledger, stop := startPipeline(ctx, t, cfg)
	consumer := sinkConsumer(t, broker)

	const want = 8
	received := make([]forecastMessage, 0, want)
	for len(received) < want {
		received = append(received, readForecast(ctx, t, consumer))
	}
	stop()

	times := make([]string, 0, want)
	nextHour := make([]any, 0, want)
	nextThree := make([]any, 0, want)
	runIDs := map[string]bool{}
	for _, fm := range received {
		times = append(times, fm.Key)
		nextHour = append(nextHour, label(fm.Value["rain_next_hour"]))
		nextThree = append(nextThree, label(fm.Value["rain_next_3h"]))
		runIDs[fm.Headers["run_id"]] = true

		assert.Nil(t, fm.Value["rain_probability"], "no model loaded")
		for _, name := range domain.FeatureNames {
			assert.Contains(t, fm.Value, name)
		}
	}

	assert.Equal(t, []string{
		"2024-03-01T00:00:00Z", "2024-03-01T01:00:00Z", "2024-03-01T02:00:00Z", "2024-03-01T03:00:00Z", "2024-03-01T04:00:00Z",
		"2024-03-02T00:00:00Z", "2024-03-02T01:00:00Z", "2024-03-02T02:00:00Z",
	}, times)
	assert.Equal(t, []any{1, 0, 0, 1, nil, 0, 0, nil}, nextHour)
	assert.Equal(t, []any{1, 1, 1, 1, nil, 0, 0, nil}, nextThree)
	assert.Len(t, runIDs, 2)

	runs, err := ledger.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, run := range runs {
		assert.Equal(t, domain.RunSucceeded, run.Status)
		assert.True(t, runIDs[run.ID], "published rows carry run %s", run.ID)
	}

	for _, tier := range []domain.Tier{domain.TierBronze, domain.TierSilver, domain.TierGoldHourly, domain.TierGoldDaily, domain.TierMLReady} {
		snaps, err := store.List(tier)
		require.NoError(t, err)
		assert.Len(t, snaps, 2, "tier %s", tier)
	}
}

// TestPipelineMalformedPayload verifies that a malformed payload (poison pill)
// is skipped and the pipeline continues processing valid messages.
func TestPipelineMalformedPayload(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-poison")

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		kafkago.Message{Key: []byte("good"), Value: []byte(dryPayload)},
	))

	_, ledger, stop := startPipeline(ctx, t, cfg)
	consumer := sinkConsumer(t, broker)

	for _, want := range []string{"2024-03-02T00:00:00Z", "2024-03-02T01:00:00Z", "2024-03-02T02:00:00Z"} {
		assert.Equal(t, want, readForecast(ctx, t, consumer).Key)
	}

	// The poison pill produced no rows.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no fourth message on sink topic")

	stop()

	runs, err := ledger.Recent(ctx, 10)
	require.NoError(t, err)
	statuses := map[domain.RunStatus]int{}
	for _, run := range runs {
		statuses[run.Status]++
	}
	assert.Equal(t, map[domain.RunStatus]int{domain.RunFailed: 1, domain.RunSucceeded: 1}, statuses)
}
