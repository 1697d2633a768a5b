// Command validate performs integrity checks across the latest tier snapshots
// of a data directory. It re-derives each tier from the one below it with the
// domain package and compares the result with what was persisted.
//
// Usage:
//
//	go run ./cmd/validate -data-dir data
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/couchcryptid/rain-forecast-etl/internal/adapter/parquet"
	"github.com/couchcryptid/rain-forecast-etl/internal/config"
	"github.com/couchcryptid/rain-forecast-etl/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/joho/godotenv"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// tiers holds the snapshots under validation. Silver is the newest silver
// snapshot not newer than the gold snapshots, which is the one they were
// refined from.
type tiers struct {
	silverSnap domain.Snapshot
	goldSnap   domain.Snapshot

	silver  domain.NormalizedTable
	labeled domain.LabeledTable
	daily   domain.DailyTable
	mlReady domain.MLReadyTable
}

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}

	dataDir := flag.String("data-dir", cfg.DataDir, "tier snapshot directory")
	flag.Parse()

	if code := run(*dataDir, cfg.ParquetCompression); code != 0 {
		os.Exit(code)
	}
}

func run(dataDir, compression string) int {
	fmt.Println("=== Rain Forecast Tier Validation ===")
	fmt.Println()

	store, err := parquet.NewStore(dataDir, compression)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open store: %v\n", err)
		return 1
	}

	snaps := &phase{name: "Phase 1: Snapshot presence"}
	t, err := load(store, snaps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		snaps,
		validateSilverOrder(t.silver),
		validateGoldHourly(t),
		validateLabels(t.labeled),
		validateMLReady(t),
		validateDaily(t),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Snapshots: silver %s, gold %s\n", t.silverSnap.Tag, t.goldSnap.Tag)
	fmt.Printf("Rows: %d silver, %d gold-hourly, %d gold-daily, %d ml-ready\n",
		len(t.silver.Rows), len(t.labeled.Rows), len(t.daily.Rows), len(t.mlReady.Rows))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func load(store *parquet.Store, p *phase) (tiers, error) {
	var t tiers

	gold := make(map[domain.Tier]domain.Snapshot)
	for _, tier := range []domain.Tier{domain.TierGoldHourly, domain.TierGoldDaily, domain.TierMLReady} {
		snap, err := store.Latest(tier)
		if errors.Is(err, parquet.ErrNoSnapshot) {
			return t, fmt.Errorf("%s: %w", tier, err)
		}
		if err != nil {
			return t, err
		}
		gold[tier] = snap
	}
	t.goldSnap = gold[domain.TierGoldHourly]
	for tier, snap := range gold {
		if snap.Tag != t.goldSnap.Tag {
			p.errorf("%s tag %s differs from gold-hourly tag %s", tier, snap.Tag, t.goldSnap.Tag)
		}
	}

	silverSnaps, err := store.List(domain.TierSilver)
	if err != nil {
		return t, err
	}
	found := false
	for _, snap := range silverSnaps {
		if snap.Tag <= t.goldSnap.Tag {
			t.silverSnap, found = snap, true
		}
	}
	if !found {
		return t, fmt.Errorf("no silver snapshot at or before %s", t.goldSnap.Tag)
	}

	if t.silver, err = store.ReadSilver(t.silverSnap); err != nil {
		return t, err
	}
	if t.labeled, err = store.ReadGoldHourly(gold[domain.TierGoldHourly]); err != nil {
		return t, err
	}
	if t.daily, err = store.ReadGoldDaily(gold[domain.TierGoldDaily]); err != nil {
		return t, err
	}
	if t.mlReady, err = store.ReadMLReady(gold[domain.TierMLReady]); err != nil {
		return t, err
	}

	fmt.Printf("  silver:      %s\n", t.silverSnap.Path)
	for _, tier := range []domain.Tier{domain.TierGoldHourly, domain.TierGoldDaily, domain.TierMLReady} {
		fmt.Printf("  %-12s %s\n", string(tier)+":", gold[tier].Path)
	}
	return t, nil
}

// ── Phase 2: Silver ordering ──

func validateSilverOrder(silver domain.NormalizedTable) *phase {
	p := &phase{name: "Phase 2: Silver ordering"}
	seenNull := false
	for i, row := range silver.Rows {
		if !row.Time.Valid {
			seenNull = true
			continue
		}
		if seenNull {
			p.errorf("row %d: timestamp %s after a missing timestamp", i, row.Time.Time.Format(domain.TagLayout))
			continue
		}
		if i > 0 && row.Time.Time.Before(silver.Rows[i-1].Time.Time) {
			p.errorf("row %d: timestamp %s before previous row", i, row.Time.Time.Format(domain.TagLayout))
		}
	}
	return p
}

// ── Phase 3: Gold hourly recompute ──

func validateGoldHourly(t tiers) *phase {
	p := &phase{name: "Phase 3: Gold-hourly matches silver"}
	want := domain.AddLabels(domain.BuildHourly(domain.CoerceTimestamps(t.silver)))
	if len(want.Rows) != len(t.labeled.Rows) {
		p.errorf("row count: silver derives %d, gold-hourly has %d", len(want.Rows), len(t.labeled.Rows))
		return p
	}
	for i := range want.Rows {
		if diff := cmp.Diff(want.Rows[i], t.labeled.Rows[i]); diff != "" {
			p.errorf("row %d mismatch (-derived +stored):\n%s", i, diff)
		}
	}
	return p
}

// ── Phase 4: Label integrity ──

func validateLabels(labeled domain.LabeledTable) *phase {
	p := &phase{name: "Phase 4: Label integrity"}
	hourly := domain.HourlyTable{Rows: make([]domain.HourlyFeatures, len(labeled.Rows))}
	for i, row := range labeled.Rows {
		hourly.Rows[i] = row.HourlyFeatures
	}
	want := domain.AddLabels(hourly)

	for i, row := range labeled.Rows {
		if !cmp.Equal(row.RainNextHour, want.Rows[i].RainNextHour) {
			p.errorf("row %d: rain_next_hour %s, precipitation implies %s", i, label(row.RainNextHour), label(want.Rows[i].RainNextHour))
		}
		if !cmp.Equal(row.RainNext3h, want.Rows[i].RainNext3h) {
			p.errorf("row %d: rain_next_3h %s, precipitation implies %s", i, label(row.RainNext3h), label(want.Rows[i].RainNext3h))
		}
		for _, v := range []*int{row.RainNextHour, row.RainNext3h} {
			if v != nil && *v != 0 && *v != 1 {
				p.errorf("row %d: label %d is not binary", i, *v)
			}
		}
	}
	return p
}

func label(v *int) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprint(*v)
}

// ── Phase 5: ML-ready contract ──

func validateMLReady(t tiers) *phase {
	p := &phase{name: "Phase 5: ML-ready contract"}
	if len(t.mlReady.Rows) != len(t.labeled.Rows) {
		p.errorf("row count: gold-hourly %d, ml-ready %d", len(t.labeled.Rows), len(t.mlReady.Rows))
		return p
	}
	want := domain.MLReady(t.labeled)
	for i, row := range t.mlReady.Rows {
		if len(row.Features) != len(domain.FeatureNames) {
			p.errorf("row %d: %d features, want %d", i, len(row.Features), len(domain.FeatureNames))
			continue
		}
		if diff := cmp.Diff(want.Rows[i], row); diff != "" {
			p.errorf("row %d mismatch (-projected +stored):\n%s", i, diff)
		}
	}
	return p
}

// ── Phase 6: Daily aggregates ──

func validateDaily(t tiers) *phase {
	p := &phase{name: "Phase 6: Gold-daily matches silver"}

	timed, hours := 0, 0
	for _, row := range t.silver.Rows {
		if row.Time.Valid {
			timed++
		}
	}
	for i, row := range t.daily.Rows {
		hours += row.Hours
		if i > 0 && !row.Date.After(t.daily.Rows[i-1].Date) {
			p.errorf("row %d: date %s not after previous date", i, row.Date.Format("2006-01-02"))
		}
	}
	if hours != timed {
		p.errorf("daily hours sum to %d, silver has %d timestamped rows", hours, timed)
	}

	if diff := cmp.Diff(domain.BuildDaily(t.silver).Rows, t.daily.Rows); diff != "" {
		p.errorf("aggregates differ (-derived +stored):\n%s", diff)
	}
	return p
}
