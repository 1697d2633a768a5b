package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/rain-forecast-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/rain-forecast-etl/internal/adapter/kafka"
	"github.com/couchcryptid/rain-forecast-etl/internal/adapter/parquet"
	"github.com/couchcryptid/rain-forecast-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/rain-forecast-etl/internal/config"
	"github.com/couchcryptid/rain-forecast-etl/internal/model"
	"github.com/couchcryptid/rain-forecast-etl/internal/observability"
	"github.com/couchcryptid/rain-forecast-etl/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

// idle reports ready when no pipeline is running.
type idle struct{}

func (idle) CheckReadiness(context.Context) error { return nil }

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := parquet.NewStore(cfg.DataDir, cfg.ParquetCompression)
	if err != nil {
		logger.Error("failed to open tier store", "error", err)
		os.Exit(1)
	}
	ledger, err := sqlite.Open(ctx, cfg.LedgerPath, logger)
	if err != nil {
		logger.Error("failed to open run ledger", "error", err, "path", cfg.LedgerPath)
		os.Exit(1)
	}

	// Scoring is feature-flagged via MODEL_ARTIFACT.
	var scorer pipeline.Scorer
	if cfg.ModelArtifact != "" {
		artifact, err := model.Load(cfg.ModelArtifact)
		if err != nil {
			logger.Error("failed to load model artifact", "error", err, "path", cfg.ModelArtifact)
			os.Exit(1)
		}
		scorer = model.NewPredictor(artifact)
		logger.Info("rain model loaded", "name", artifact.Name, "target", artifact.Target, "features", len(artifact.Features))
	} else {
		logger.Info("rain model disabled")
	}

	closers := []func() error{ledger.Close}
	var ready sharedobs.ReadinessChecker = idle{}
	var p *pipeline.Pipeline

	if cfg.KafkaEnabled {
		reader := kafkaadapter.NewReader(cfg, logger)
		writer := kafkaadapter.NewWriter(cfg, logger)
		closers = append(closers, reader.Close, writer.Close)

		medallion := pipeline.NewMedallion(store, ledger, logger, metrics, pipeline.WithBronze())
		p = pipeline.New(reader, medallion, writer, scorer, logger, metrics, cfg.BatchSize)
		ready = p
	} else {
		logger.Info("kafka disabled, serving run history only", "data_dir", cfg.DataDir)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, ledger, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ETL pipeline.
	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		if p == nil {
			return
		}
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Let an in-flight medallion run finish before the ledger closes.
	select {
	case <-pipelineDone:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}

	var result *multierror.Error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		logger.Error("shutdown finished with errors", "error", err)
		return
	}

	logger.Info("shutdown complete")
}
