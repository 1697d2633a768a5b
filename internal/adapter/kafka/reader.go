package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/rain-forecast-etl/internal/config"
	"github.com/couchcryptid/rain-forecast-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Reader consumes raw weather payloads from a Kafka topic.
// It implements pipeline.BatchExtractor.
type Reader struct {
	mu            sync.Mutex
	reader        *kafkago.Reader
	config        kafkago.ReaderConfig
	flushInterval time.Duration
	logger        *slog.Logger
}

// NewReader creates a Kafka consumer group member for the configured source topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	rc := kafkago.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaSourceTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // synchronous commits
		StartOffset:    kafkago.FirstOffset,
	}
	return &Reader{
		reader:        kafkago.NewReader(rc),
		config:        rc,
		flushInterval: cfg.BatchFlushInterval,
		logger:        logger,
	}
}

func (r *Reader) current() *kafkago.Reader {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reader
}

// Rewind drops everything fetched but not committed. A consumer group reader
// cannot seek, so the group session is closed and joined again, which resumes
// every partition at its last committed offset.
func (r *Reader) Rewind(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.reader.Close()
	r.reader = kafkago.NewReader(r.config)
	if err != nil {
		return fmt.Errorf("close reader for rewind: %w", err)
	}
	r.logger.Info("consumer rewound to committed offsets", "topic", r.config.Topic, "group", r.config.GroupID)
	return nil
}

// ExtractBatch blocks until one message arrives, then keeps fetching until it
// has batchSize messages or the flush interval elapses. Offsets are not
// committed; each event carries a Commit callback.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	kr := r.current()
	msg, err := kr.FetchMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch message: %w", err)
	}
	batch := make([]domain.RawEvent, 0, batchSize)
	batch = append(batch, toRawEvent(kr, msg))

	flushCtx, cancel := context.WithTimeout(ctx, r.flushInterval)
	defer cancel()

	for len(batch) < batchSize {
		msg, err := kr.FetchMessage(flushCtx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			break
		}
		batch = append(batch, toRawEvent(kr, msg))
	}

	r.logger.Debug("batch extracted", "size", len(batch), "topic", r.config.Topic)
	return batch, nil
}

func (r *Reader) Close() error {
	return r.current().Close()
}

// toRawEvent binds the commit to the session that fetched msg, so a commit
// after a rewind fails instead of moving the new session's offset.
func toRawEvent(kr *kafkago.Reader, msg kafkago.Message) domain.RawEvent {
	raw := mapMessageToRawEvent(msg)
	raw.Commit = func(ctx context.Context) error {
		return kr.CommitMessages(ctx, msg)
	}
	return raw
}

// mapMessageToRawEvent copies a Kafka message into a RawEvent.
func mapMessageToRawEvent(msg kafkago.Message) domain.RawEvent {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.RawEvent{
		Key:       msg.Key,
		Value:     msg.Value,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Headers:   headers,
	}
}
