package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/rain-forecast-etl/internal/domain"
	"github.com/couchcryptid/rain-forecast-etl/internal/pipeline"
)

var testNow = time.Date(2024, time.March, 2, 6, 0, 0, 0, time.UTC)

// fiveHourPayload rains at 01:00 and 04:00.
const fiveHourPayload = `{
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

// misalignedPayload has a precipitation column shorter than time.
const misalignedPayload = `{"hourly": {"time": ["2024-03-01T00:00", "2024-03-01T01:00"], "precipitation": [0.1]}}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tier store ---

type memStore struct {
	mu     sync.Mutex
	fail   domain.Tier
	writes []domain.Tier
}

func (s *memStore) record(tier domain.Tier, tag string) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tier == s.fail {
		return domain.Snapshot{}, errors.New("disk full")
	}
	s.writes = append(s.writes, tier)
	return domain.Snapshot{Tier: tier, Tag: tag, Path: string(tier) + "/" + tag}, nil
}

func (s *memStore) written() []domain.Tier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Tier(nil), s.writes...)
}

func (s *memStore) WriteBronze(tag string, _ []byte) (domain.Snapshot, error) {
	return s.record(domain.TierBronze, tag)
}

func (s *memStore) WriteSilver(tag string, _ domain.NormalizedTable) (domain.Snapshot, error) {
	return s.record(domain.TierSilver, tag)
}

func (s *memStore) WriteGoldHourly(tag string, _ domain.LabeledTable) (domain.Snapshot, error) {
	return s.record(domain.TierGoldHourly, tag)
}

func (s *memStore) WriteGoldDaily(tag string, _ domain.DailyTable) (domain.Snapshot, error) {
	return s.record(domain.TierGoldDaily, tag)
}

func (s *memStore) WriteMLReady(tag string, _ domain.MLReadyTable) (domain.Snapshot, error) {
	return s.record(domain.TierMLReady, tag)
}

// --- ledger ---

type memLedger struct {
	startErr error
	started  []domain.Run
	finished []domain.Run
}

func (l *memLedger) Start(_ context.Context, run domain.Run) error {
	if l.startErr != nil {
		return l.startErr
	}
	l.started = append(l.started, run)
	return nil
}

func (l *memLedger) Finish(_ context.Context, run domain.Run) error {
	l.finished = append(l.finished, run)
	return nil
}

// --- service loop ---

type mockExtractor struct {
	events []domain.RawEvent
	served atomic.Bool
}

// ExtractBatch hands out every event once, then blocks until cancelled to
// simulate waiting for messages.
func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	if len(m.events) == 0 || m.served.Swap(true) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.events, nil
}

// rewindingExtractor redelivers every event after Rewind, like a consumer
// group resuming from offsets that were never committed.
type rewindingExtractor struct {
	mockExtractor
	rewinds atomic.Int32
}

func (m *rewindingExtractor) Rewind(context.Context) error {
	m.rewinds.Add(1)
	m.served.Store(false)
	return nil
}

// flakyProcessor fails payloads whose source ends in suffix, the first
// failures times (every time when failures is negative).
type flakyProcessor struct {
	next     pipeline.Processor
	suffix   string
	mu       sync.Mutex
	failures int
}

func (f *flakyProcessor) Process(ctx context.Context, source string, payload []byte) (pipeline.Result, error) {
	f.mu.Lock()
	fail := strings.HasSuffix(source, f.suffix) && f.failures != 0
	if fail && f.failures > 0 {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		return pipeline.Result{}, errors.New("object store timeout")
	}
	return f.next.Process(ctx, source, payload)
}

type mockLoader struct {
	err    error
	calls  int
	loaded []domain.ForecastRow
}

func (m *mockLoader) LoadBatch(_ context.Context, rows []domain.ForecastRow) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, rows...)
	return nil
}

func rawEvent(offset int64, payload string, commits *[]int64) domain.RawEvent {
	return domain.RawEvent{
		Key:       []byte("berlin"),
		Value:     []byte(payload),
		Topic:     "raw-weather-hourly",
		Partition: 0,
		Offset:    offset,
		Timestamp: testNow,
		Commit: func(context.Context) error {
			*commits = append(*commits, offset)
			return nil
		},
	}
}
