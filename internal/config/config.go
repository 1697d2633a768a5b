package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Parquet compression codecs accepted by PARQUET_COMPRESSION.
const (
	CompressionSnappy = "SNAPPY"
	CompressionGzip   = "GZIP"
	CompressionNone   = "NONE"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Tier snapshot storage.
	DataDir            string
	ParquetCompression string
	LedgerPath         string

	// Optional model artifact used for scoring ml-ready rows.
	ModelArtifact string

	// Open-Meteo forecast endpoint used by the fetch command.
	OpenMeteoURL   string
	FetchLatitude  float64
	FetchLongitude float64
	FetchPastDays  int
	FetchTimeout   time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	kafkaEnabled, err := parseBool("KAFKA_ENABLED", false)
	if err != nil {
		return nil, err
	}

	compression, err := parseCompression()
	if err != nil {
		return nil, err
	}

	dataDir := sharedcfg.EnvOrDefault("DATA_DIR", "data")

	lat, err := parseFloat("FETCH_LATITUDE", 52.52)
	if err != nil {
		return nil, err
	}
	lon, err := parseFloat("FETCH_LONGITUDE", 13.41)
	if err != nil {
		return nil, err
	}
	pastDays, err := parseInt("FETCH_PAST_DAYS", 2)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaEnabled:       kafkaEnabled,
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-weather-hourly"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "ml-ready-hourly"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "rain-forecast-etl"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		DataDir:            dataDir,
		ParquetCompression: compression,
		LedgerPath:         sharedcfg.EnvOrDefault("LEDGER_PATH", filepath.Join(dataDir, "ledger.db")),
		ModelArtifact:      sharedcfg.EnvOrDefault("MODEL_ARTIFACT", ""),

		OpenMeteoURL:   sharedcfg.EnvOrDefault("OPEN_METEO_URL", "https://api.open-meteo.com/v1/forecast"),
		FetchLatitude:  lat,
		FetchLongitude: lon,
		FetchPastDays:  pastDays,
		FetchTimeout:   fetchTimeout,
	}

	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR is required")
	}
	if cfg.FetchLatitude < -90 || cfg.FetchLatitude > 90 {
		return nil, fmt.Errorf("invalid FETCH_LATITUDE: %g", cfg.FetchLatitude)
	}
	if cfg.FetchLongitude < -180 || cfg.FetchLongitude > 180 {
		return nil, fmt.Errorf("invalid FETCH_LONGITUDE: %g", cfg.FetchLongitude)
	}
	if cfg.FetchPastDays < 0 || cfg.FetchPastDays > 92 {
		return nil, fmt.Errorf("invalid FETCH_PAST_DAYS: %d", cfg.FetchPastDays)
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	}

	return cfg, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := sharedcfg.EnvOrDefault(key, "")
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", key, s)
	}
	return v, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := sharedcfg.EnvOrDefault(key, "")
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return v, nil
}

func parseInt(key string, def int) (int, error) {
	s := sharedcfg.EnvOrDefault(key, "")
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return v, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(key, "")
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return v, nil
}

func parseCompression() (string, error) {
	s := strings.ToUpper(sharedcfg.EnvOrDefault("PARQUET_COMPRESSION", CompressionSnappy))
	switch s {
	case CompressionSnappy, CompressionGzip, CompressionNone:
		return s, nil
	case "UNCOMPRESSED":
		return CompressionNone, nil
	default:
		return "", fmt.Errorf("invalid PARQUET_COMPRESSION: %q", s)
	}
}
