// Command medallion runs the transformation chain once over the local tier
// store. By default it takes the latest bronze payload through every tier;
// with -from silver it rebuilds gold and ml-ready from the latest silver
// snapshot instead. A new bronze payload can be stored first from a file
// (-ingest) or from the Open-Meteo API (-fetch).
//
// Usage:
//
//	go run ./cmd/medallion -ingest data/mock/berlin_72h.json
//	go run ./cmd/medallion -fetch
//	go run ./cmd/medallion -data-dir /var/lib/rain -from silver
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/rain-forecast-etl/internal/adapter/openmeteo"
	"github.com/couchcryptid/rain-forecast-etl/internal/adapter/parquet"
	"github.com/couchcryptid/rain-forecast-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/rain-forecast-etl/internal/config"
	"github.com/couchcryptid/rain-forecast-etl/internal/domain"
	"github.com/couchcryptid/rain-forecast-etl/internal/observability"
	"github.com/couchcryptid/rain-forecast-etl/internal/pipeline"
	"github.com/couchcryptid/rain-forecast-etl/internal/report"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dataDir := flag.String("data-dir", cfg.DataDir, "tier snapshot directory")
	ledgerPath := flag.String("ledger", "", "run ledger database (default <data-dir>/ledger.db or LEDGER_PATH)")
	ingest := flag.String("ingest", "", "raw payload file to store as a new bronze snapshot before running")
	fetch := flag.Bool("fetch", false, "fetch a payload from OPEN_METEO_URL and store it as a new bronze snapshot before running")
	from := flag.String("from", string(domain.TierBronze), "tier to start from: bronze or silver")
	flag.Parse()

	if *ledgerPath == "" {
		*ledgerPath = cfg.LedgerPath
		if os.Getenv("LEDGER_PATH") == "" {
			*ledgerPath = filepath.Join(*dataDir, "ledger.db")
		}
	}

	if *ingest != "" && *fetch {
		return errors.New("-ingest and -fetch are mutually exclusive")
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	ctx := context.Background()

	store, err := parquet.NewStore(*dataDir, cfg.ParquetCompression)
	if err != nil {
		return err
	}
	ledger, err := sqlite.Open(ctx, *ledgerPath, logger)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()

	var payload []byte
	switch {
	case *ingest != "":
		payload, err = os.ReadFile(*ingest)
		if err != nil {
			return fmt.Errorf("read ingest file: %w", err)
		}
	case *fetch:
		client := openmeteo.NewClient(cfg.OpenMeteoURL, cfg.FetchTimeout, metrics, logger)
		payload, err = client.Fetch(ctx, openmeteo.Request{
			Latitude:  cfg.FetchLatitude,
			Longitude: cfg.FetchLongitude,
			PastDays:  cfg.FetchPastDays,
		})
		if err != nil {
			return err
		}
	}
	if payload != nil {
		snap, err := store.WriteBronze(domain.SnapshotTag(time.Now()), payload)
		if err != nil {
			return err
		}
		logger.Info("payload ingested", "path", snap.Path, "bytes", len(payload))
	}

	m := pipeline.NewMedallion(store, ledger, logger, metrics)

	var res pipeline.Result
	switch domain.Tier(*from) {
	case domain.TierBronze:
		res, err = fromBronze(ctx, store, m)
	case domain.TierSilver:
		res, err = fromSilver(ctx, store, m)
	default:
		return fmt.Errorf("unsupported -from %q: want bronze or silver", *from)
	}
	if err != nil {
		return err
	}

	for _, snap := range res.Snapshots {
		logger.Info("snapshot written", "tier", snap.Tier, "path", snap.Path)
	}
	return report.Runs([]domain.Run{res.Run}).Render(os.Stdout)
}

func fromBronze(ctx context.Context, store *parquet.Store, m *pipeline.Medallion) (pipeline.Result, error) {
	snap, err := store.Latest(domain.TierBronze)
	if errors.Is(err, parquet.ErrNoSnapshot) {
		return pipeline.Result{}, fmt.Errorf("%w: ingest a payload with -ingest first", err)
	}
	if err != nil {
		return pipeline.Result{}, err
	}
	payload, err := store.ReadBronze(snap)
	if err != nil {
		return pipeline.Result{}, err
	}
	return m.Process(ctx, snap.Path, payload)
}

func fromSilver(ctx context.Context, store *parquet.Store, m *pipeline.Medallion) (pipeline.Result, error) {
	snap, err := store.Latest(domain.TierSilver)
	if err != nil {
		return pipeline.Result{}, err
	}
	silver, err := store.ReadSilver(snap)
	if err != nil {
		return pipeline.Result{}, err
	}
	return m.Refine(ctx, snap.Path, silver)
}
