package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/rain-forecast-etl/internal/domain"
	"github.com/couchcryptid/rain-forecast-etl/internal/observability"
)

// BatchExtractor reads up to batchSize raw payloads from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Rewinder is implemented by extractors that can redeliver messages fetched
// but not committed. The pipeline rewinds after a failure it leaves uncommitted.
type Rewinder interface {
	Rewind(ctx context.Context) error
}

// Processor runs one raw payload through the medallion tiers.
type Processor interface {
	Process(ctx context.Context, source string, payload []byte) (Result, error)
}

// Scorer estimates the rain probability of an ml-ready row.
type Scorer interface {
	PredictRow(row domain.MLReadyRow) (float64, error)
}

// BatchLoader writes forecast rows to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, rows []domain.ForecastRow) error
}

// Pipeline orchestrates the extract-process-load loop.
type Pipeline struct {
	extractor BatchExtractor
	processor Processor
	loader    BatchLoader
	scorer    Scorer
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	batchSize int
}

// New creates a Pipeline with the given stages and observability. A nil
// scorer publishes rows without a rain probability.
func New(e BatchExtractor, p Processor, l BatchLoader, s Scorer, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor: e,
		processor: p,
		loader:    l,
		scorer:    s,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// CheckReadiness returns nil if the pipeline has processed at least one payload,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any payloads yet")
	}
	return nil
}

// Run executes the batch loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize, "scoring", p.scorer != nil)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-process-load cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.PayloadsConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = 200 * time.Millisecond

	loaded, ok := p.processAndLoad(ctx, rawBatch, backoff, maxBackoff)
	if !ok {
		return false
	}

	if loaded > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return true
}

// processAndLoad runs the batch through the medallion tiers in offset order,
// publishes the resulting rows and commits offsets. Malformed payloads are
// skipped and committed. Processing stops at the first payload that fails
// for another reason: only the payloads before it are published and
// committed, so the failed offset and everything after it is redelivered.
// Returns the number of payloads loaded and false if the pipeline should stop.
func (p *Pipeline) processAndLoad(ctx context.Context, rawBatch []domain.RawEvent, backoff *time.Duration, maxBackoff time.Duration) (int, bool) {
	var rows []domain.ForecastRow
	processed := make([]domain.RawEvent, 0, len(rawBatch))
	failed := false

	for _, raw := range rawBatch {
		res, err := p.processor.Process(ctx, raw.Source(), raw.Value)
		if errors.Is(err, domain.ErrSchema) {
			p.logger.Warn("malformed payload, skipping message",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			// Nothing after an uncommitted payload may be committed.
			if len(processed) == 0 {
				p.commitOffset(ctx, raw)
				continue
			}
			processed = append(processed, raw)
			continue
		}
		if err != nil {
			p.logger.Error("medallion run failed, payload will be redelivered", "error", err,
				"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
			failed = true
			break
		}
		rows = append(rows, p.forecastRows(res)...)
		processed = append(processed, raw)
	}

	if len(processed) > 0 {
		if err := p.loader.LoadBatch(ctx, rows); err != nil {
			p.logger.Error("load batch failed", "error", err, "rows", len(rows))
			return 0, p.retry(ctx, backoff, maxBackoff)
		}
		p.metrics.RowsPublished.Add(float64(len(rows)))

		for _, raw := range processed {
			p.commitOffset(ctx, raw)
		}
	}

	if failed {
		return len(processed), p.retry(ctx, backoff, maxBackoff)
	}
	return len(processed), true
}

// retry backs off, then asks the extractor to redeliver uncommitted messages.
func (p *Pipeline) retry(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if !p.backoffOrStop(ctx, backoff, maxBackoff) {
		return false
	}
	r, ok := p.extractor.(Rewinder)
	if !ok {
		return true
	}
	if err := r.Rewind(ctx); err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("rewind extractor failed", "error", err)
	}
	return true
}

// forecastRows turns a run's ml-ready table into publishable rows, scoring
// each one when a model is loaded. Rows the model cannot score are still
// published, without a probability.
func (p *Pipeline) forecastRows(res Result) []domain.ForecastRow {
	out := make([]domain.ForecastRow, len(res.MLReady.Rows))
	for i, row := range res.MLReady.Rows {
		out[i] = domain.ForecastRow{
			RunID:       res.Run.ID,
			Row:         row,
			ProcessedAt: res.Run.FinishedAt,
		}
		if p.scorer == nil {
			continue
		}
		prob, err := p.scorer.PredictRow(row)
		if err != nil {
			p.metrics.Predictions.WithLabelValues("mismatch").Inc()
			p.logger.Debug("row not scored", "run_id", res.Run.ID, "error", err)
			continue
		}
		p.metrics.Predictions.WithLabelValues("success").Inc()
		out[i].RainProbability = &prob
	}
	return out
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
