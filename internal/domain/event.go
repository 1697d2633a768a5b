package domain

import (
	"context"
	"fmt"
	"time"
)

// RawEvent is one raw weather payload read from the message source, carrying
// enough metadata to trace it back to a topic offset.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Headers   map[string]string

	// Commit acknowledges the message. Nil when the source has no offsets.
	Commit func(ctx context.Context) error
}

// Source identifies where the payload came from for run records.
func (e RawEvent) Source() string {
	return fmt.Sprintf("%s/%d/%d", e.Topic, e.Partition, e.Offset)
}

// ForecastRow is an ml-ready row as published downstream, optionally scored
// by the rain model.
type ForecastRow struct {
	RunID           string
	Row             MLReadyRow
	RainProbability *float64
	ProcessedAt     time.Time
}
