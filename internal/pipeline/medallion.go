package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/rain-forecast-etl/internal/domain"
	"github.com/couchcryptid/rain-forecast-etl/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// TierStore persists tier snapshots.
type TierStore interface {
	WriteBronze(tag string, payload []byte) (domain.Snapshot, error)
	WriteSilver(tag string, table domain.NormalizedTable) (domain.Snapshot, error)
	WriteGoldHourly(tag string, table domain.LabeledTable) (domain.Snapshot, error)
	WriteGoldDaily(tag string, table domain.DailyTable) (domain.Snapshot, error)
	WriteMLReady(tag string, table domain.MLReadyTable) (domain.Snapshot, error)
}

// RunLedger records the lifecycle of medallion runs.
type RunLedger interface {
	Start(ctx context.Context, run domain.Run) error
	Finish(ctx context.Context, run domain.Run) error
}

// Result holds every table a medallion run produced.
type Result struct {
	Run       domain.Run
	Silver    domain.NormalizedTable
	Labeled   domain.LabeledTable
	Daily     domain.DailyTable
	MLReady   domain.MLReadyTable
	Snapshots []domain.Snapshot
}

// Medallion moves one raw payload through the silver, gold and ml-ready tiers
// and persists each tier under a shared snapshot tag.
type Medallion struct {
	store   TierStore
	ledger  RunLedger
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	bronze  bool
}

// MedallionOption configures a Medallion.
type MedallionOption func(*Medallion)

// WithClock sets the clock used for run timestamps and snapshot tags.
func WithClock(c clockwork.Clock) MedallionOption {
	return func(m *Medallion) { m.clock = c }
}

// WithBronze also stores the raw payload as a bronze snapshot. Use it when
// the payload did not come from the bronze tier.
func WithBronze() MedallionOption {
	return func(m *Medallion) { m.bronze = true }
}

// NewMedallion creates a runner. A nil ledger disables run records.
func NewMedallion(store TierStore, ledger RunLedger, logger *slog.Logger, metrics *observability.Metrics, opts ...MedallionOption) *Medallion {
	m := &Medallion{
		store:   store,
		ledger:  ledger,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Process normalizes a raw payload and runs it through every downstream tier.
// A malformed payload fails with a *domain.SchemaError before anything but
// the bronze snapshot is written.
func (m *Medallion) Process(ctx context.Context, source string, payload []byte) (Result, error) {
	res, err := m.begin(ctx, source)
	if err != nil {
		return Result{}, err
	}

	err = m.process(&res, payload)
	m.finish(ctx, &res, err)
	return res, err
}

// Refine runs an already normalized silver table through the gold and
// ml-ready tiers.
func (m *Medallion) Refine(ctx context.Context, source string, silver domain.NormalizedTable) (Result, error) {
	res, err := m.begin(ctx, source)
	if err != nil {
		return Result{}, err
	}

	res.Silver = silver
	res.Run.SilverRows = len(silver.Rows)
	err = m.refine(&res)
	m.finish(ctx, &res, err)
	return res, err
}

func (m *Medallion) begin(ctx context.Context, source string) (Result, error) {
	now := m.clock.Now()
	run := domain.Run{
		ID:        uuid.NewString(),
		Source:    source,
		Tag:       domain.SnapshotTag(now),
		Status:    domain.RunRunning,
		StartedAt: now,
	}
	if m.ledger != nil {
		if err := m.ledger.Start(ctx, run); err != nil {
			return Result{}, fmt.Errorf("start run: %w", err)
		}
	}
	m.logger.Debug("medallion run started", "run_id", run.ID, "source", source, "tag", run.Tag)
	return Result{Run: run}, nil
}

func (m *Medallion) finish(ctx context.Context, res *Result, runErr error) {
	res.Run.FinishedAt = m.clock.Now()
	res.Run.Status = domain.RunSucceeded
	if runErr != nil {
		res.Run.Status = domain.RunFailed
		res.Run.Error = runErr.Error()
	}

	if m.ledger != nil {
		// The run may have been cancelled; the record still has to land.
		if err := m.ledger.Finish(context.WithoutCancel(ctx), res.Run); err != nil {
			m.logger.Error("finish run failed", "run_id", res.Run.ID, "error", err)
		}
	}

	attrs := []any{
		"run_id", res.Run.ID,
		"source", res.Run.Source,
		"tag", res.Run.Tag,
		"silver_rows", res.Run.SilverRows,
		"hourly_rows", res.Run.HourlyRows,
		"daily_rows", res.Run.DailyRows,
		"ml_ready_rows", res.Run.MLReadyRows,
	}
	if runErr != nil {
		m.logger.Warn("medallion run failed", append(attrs, "error", runErr)...)
		return
	}
	m.logger.Info("medallion run complete", attrs...)
}

func (m *Medallion) process(res *Result, payload []byte) error {
	tag := res.Run.Tag
	if m.bronze {
		snap, err := m.write(domain.TierBronze, 1, func() (domain.Snapshot, error) {
			return m.store.WriteBronze(tag, payload)
		})
		if err != nil {
			return err
		}
		res.Snapshots = append(res.Snapshots, snap)
	}

	var (
		silver domain.NormalizedTable
		err    error
	)
	m.stage("normalize", func() {
		silver, err = domain.Normalize(payload)
	})
	if err != nil {
		if errors.Is(err, domain.ErrSchema) {
			m.metrics.SchemaErrors.Inc()
		}
		return err
	}
	res.Silver = silver
	res.Run.SilverRows = len(silver.Rows)

	snap, err := m.write(domain.TierSilver, len(silver.Rows), func() (domain.Snapshot, error) {
		return m.store.WriteSilver(tag, silver)
	})
	if err != nil {
		return err
	}
	res.Snapshots = append(res.Snapshots, snap)

	return m.refine(res)
}

// refine derives the gold and ml-ready tables from res.Silver and writes
// them concurrently. All three writes are attempted even if one fails.
func (m *Medallion) refine(res *Result) error {
	var hourly domain.HourlyTable
	m.stage("hourly", func() {
		hourly = domain.BuildHourly(domain.CoerceTimestamps(res.Silver))
	})
	m.stage("daily", func() {
		res.Daily = domain.BuildDaily(res.Silver)
	})
	m.stage("labels", func() {
		res.Labeled = domain.AddLabels(hourly)
	})
	m.stage("ml_ready", func() {
		res.MLReady = domain.MLReady(res.Labeled)
	})
	res.Run.HourlyRows = len(res.Labeled.Rows)
	res.Run.DailyRows = len(res.Daily.Rows)
	res.Run.MLReadyRows = len(res.MLReady.Rows)

	tag := res.Run.Tag
	writes := []struct {
		tier  domain.Tier
		rows  int
		write func() (domain.Snapshot, error)
	}{
		{domain.TierGoldHourly, len(res.Labeled.Rows), func() (domain.Snapshot, error) {
			return m.store.WriteGoldHourly(tag, res.Labeled)
		}},
		{domain.TierGoldDaily, len(res.Daily.Rows), func() (domain.Snapshot, error) {
			return m.store.WriteGoldDaily(tag, res.Daily)
		}},
		{domain.TierMLReady, len(res.MLReady.Rows), func() (domain.Snapshot, error) {
			return m.store.WriteMLReady(tag, res.MLReady)
		}},
	}

	snaps := make([]domain.Snapshot, len(writes))
	var err error
	m.stage("persist", func() {
		var g errgroup.Group
		for i, w := range writes {
			g.Go(func() error {
				snap, err := m.write(w.tier, w.rows, w.write)
				snaps[i] = snap
				return err
			})
		}
		err = g.Wait()
	})
	for _, snap := range snaps {
		if snap.Path != "" {
			res.Snapshots = append(res.Snapshots, snap)
		}
	}
	return err
}

func (m *Medallion) write(tier domain.Tier, rows int, fn func() (domain.Snapshot, error)) (domain.Snapshot, error) {
	snap, err := fn()
	if err != nil {
		m.metrics.SnapshotWrites.WithLabelValues(string(tier), "error").Inc()
		return domain.Snapshot{}, fmt.Errorf("persist %s: %w", tier, err)
	}
	m.metrics.SnapshotWrites.WithLabelValues(string(tier), "success").Inc()
	m.metrics.TierRows.WithLabelValues(string(tier)).Add(float64(rows))
	return snap, nil
}

func (m *Medallion) stage(name string, fn func()) {
	start := m.clock.Now()
	fn()
	m.metrics.StageDuration.WithLabelValues(name).Observe(m.clock.Since(start).Seconds())
}
