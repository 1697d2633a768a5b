// Command inspect prints the latest snapshot of a tier as a markdown table,
// followed by the most recent medallion runs.
//
// Usage:
//
//	go run ./cmd/inspect -tier ml-ready -limit 24
//	go run ./cmd/inspect -tier silver -runs 0
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/couchcryptid/rain-forecast-etl/internal/adapter/parquet"
	"github.com/couchcryptid/rain-forecast-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/rain-forecast-etl/internal/config"
	"github.com/couchcryptid/rain-forecast-etl/internal/domain"
	"github.com/couchcryptid/rain-forecast-etl/internal/observability"
	"github.com/couchcryptid/rain-forecast-etl/internal/report"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(w io.Writer) error {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	tier := flag.String("tier", string(domain.TierMLReady), "tier to show: silver, gold-hourly, gold-daily or ml-ready")
	limit := flag.Int("limit", 10, "rows to show, 0 for all")
	runs := flag.Int("runs", 5, "recent runs to show, 0 to skip")
	dataDir := flag.String("data-dir", cfg.DataDir, "tier snapshot directory")
	flag.Parse()

	store, err := parquet.NewStore(*dataDir, cfg.ParquetCompression)
	if err != nil {
		return err
	}

	snap, err := store.Latest(domain.Tier(*tier))
	if err != nil {
		return err
	}
	table, err := tabulate(store, snap, *limit)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "%s\n\n", snap.Path); err != nil {
		return err
	}
	if err := table.Render(w); err != nil {
		return err
	}

	if *runs <= 0 {
		return nil
	}
	ledgerPath := cfg.LedgerPath
	if os.Getenv("LEDGER_PATH") == "" {
		ledgerPath = filepath.Join(*dataDir, "ledger.db")
	}
	ledger, err := sqlite.Open(context.Background(), ledgerPath, observability.NewLogger(cfg))
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()

	recent, err := ledger.Recent(context.Background(), *runs)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	return report.Runs(recent).Render(w)
}

func tabulate(store *parquet.Store, snap domain.Snapshot, limit int) (report.Table, error) {
	switch snap.Tier {
	case domain.TierSilver:
		t, err := store.ReadSilver(snap)
		return report.Silver(t, limit), err
	case domain.TierGoldHourly:
		t, err := store.ReadGoldHourly(snap)
		return report.MLReady(domain.MLReady(t), limit), err
	case domain.TierGoldDaily:
		t, err := store.ReadGoldDaily(snap)
		return report.Daily(t, limit), err
	case domain.TierMLReady:
		t, err := store.ReadMLReady(snap)
		return report.MLReady(t, limit), err
	default:
		return report.Table{}, fmt.Errorf("tier %q has no table view", snap.Tier)
	}
}
