package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/rain-forecast-etl/internal/config"
	"github.com/couchcryptid/rain-forecast-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces messages to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes forecast rows to the sink Kafka topic
// in a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, rows []domain.ForecastRow) error {
	if len(rows) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(rows))
	for i := range rows {
		msg, err := serializeToMessage(rows[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write forecast rows: %w", err)
	}
	w.logger.Debug("batch published", "rows", len(rows), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a ForecastRow into a Kafka message. The value
// is a flat JSON object keyed by the ml-ready column names; missing values
// are null.
func serializeToMessage(row domain.ForecastRow) (kafkago.Message, error) {
	record := make(map[string]any, len(domain.FeatureNames)+len(domain.LabelNames)+3)
	var key string
	if row.Row.Time.Valid {
		key = row.Row.Time.Time.UTC().Format(time.RFC3339)
		record["time"] = key
	} else {
		record["time"] = nil
	}
	for i, name := range domain.FeatureNames {
		if i < len(row.Row.Features) {
			record[name] = row.Row.Features[i]
		} else {
			record[name] = nil
		}
	}
	record[domain.LabelNames[0]] = row.Row.RainNextHour
	record[domain.LabelNames[1]] = row.Row.RainNext3h
	record["rain_probability"] = row.RainProbability
	record["run_id"] = row.RunID

	data, err := json.Marshal(record)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize forecast row: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(row.RunID)},
			{Key: "processed_at", Value: []byte(row.ProcessedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
