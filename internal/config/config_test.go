package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "raw-weather-hourly", cfg.KafkaSourceTopic)
	assert.Equal(t, "ml-ready-hourly", cfg.KafkaSinkTopic)
	assert.Equal(t, "rain-forecast-etl", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, CompressionSnappy, cfg.ParquetCompression)
	assert.Equal(t, filepath.Join("data", "ledger.db"), cfg.LedgerPath)
	assert.Empty(t, cfg.ModelArtifact)
	assert.Equal(t, "https://api.open-meteo.com/v1/forecast", cfg.OpenMeteoURL)
	assert.InDelta(t, 52.52, cfg.FetchLatitude, 1e-9)
	assert.InDelta(t, 13.41, cfg.FetchLongitude, 1e-9)
	assert.Equal(t, 2, cfg.FetchPastDays)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SOURCE_TOPIC", "custom-source")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")
	t.Setenv("DATA_DIR", "/var/lib/rain")
	t.Setenv("PARQUET_COMPRESSION", "gzip")
	t.Setenv("MODEL_ARTIFACT", "/models/rain.yaml")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-source", cfg.KafkaSourceTopic)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 1*time.Second, cfg.BatchFlushInterval)
	assert.Equal(t, "/var/lib/rain", cfg.DataDir)
	assert.Equal(t, CompressionGzip, cfg.ParquetCompression)
	assert.Equal(t, filepath.Join("/var/lib/rain", "ledger.db"), cfg.LedgerPath, "ledger follows DATA_DIR")
	assert.Equal(t, "/models/rain.yaml", cfg.ModelArtifact)
}

func TestLoad_LedgerPathOverride(t *testing.T) {
	t.Setenv("LEDGER_PATH", "/tmp/runs.db")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/runs.db", cfg.LedgerPath)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_BatchSizeTooLarge(t *testing.T) {
	t.Setenv("BATCH_SIZE", "9999")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_InvalidBatchFlushInterval(t *testing.T) {
	t.Setenv("BATCH_FLUSH_INTERVAL", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_FLUSH_INTERVAL")
}

func TestLoad_InvalidKafkaEnabled(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "sometimes")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_ENABLED")
}

func TestLoad_ParquetCompression(t *testing.T) {
	tests := []struct {
		value    string
		expected string
	}{
		{"snappy", CompressionSnappy},
		{"GZIP", CompressionGzip},
		{"none", CompressionNone},
		{"uncompressed", CompressionNone},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("PARQUET_COMPRESSION", tt.value)
			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg.ParquetCompression)
		})
	}
}

func TestLoad_InvalidParquetCompression(t *testing.T) {
	t.Setenv("PARQUET_COMPRESSION", "lz4")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PARQUET_COMPRESSION")
}

func TestLoad_FetchSettings(t *testing.T) {
	t.Setenv("OPEN_METEO_URL", "http://localhost:8081/v1/forecast")
	t.Setenv("FETCH_LATITUDE", "-33.87")
	t.Setenv("FETCH_LONGITUDE", "151.21")
	t.Setenv("FETCH_PAST_DAYS", "7")
	t.Setenv("FETCH_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8081/v1/forecast", cfg.OpenMeteoURL)
	assert.InDelta(t, -33.87, cfg.FetchLatitude, 1e-9)
	assert.InDelta(t, 151.21, cfg.FetchLongitude, 1e-9)
	assert.Equal(t, 7, cfg.FetchPastDays)
	assert.Equal(t, 3*time.Second, cfg.FetchTimeout)
}

func TestLoad_InvalidFetchSettings(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"FETCH_LATITUDE", "north"},
		{"FETCH_LATITUDE", "91"},
		{"FETCH_LONGITUDE", "-181"},
		{"FETCH_PAST_DAYS", "-1"},
		{"FETCH_PAST_DAYS", "many"},
		{"FETCH_TIMEOUT", "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
