// Package http serves liveness, readiness, metrics and the recent medallion
// runs of the ETL service.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/rain-forecast-etl/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 500
)

// RunLister returns recorded medallion runs, newest first.
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]domain.Run, error)
}

// Server exposes health, readiness, metrics and run history HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz and /metrics
// routes. /runs is mounted only when runs is non-nil.
func NewServer(addr string, ready sharedobs.ReadinessChecker, runs RunLister, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	if runs != nil {
		mux.HandleFunc("GET /runs", s.handleRuns(runs))
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type runResponse struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Tag         string     `json:"tag"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	SilverRows  int        `json:"silver_rows"`
	HourlyRows  int        `json:"hourly_rows"`
	DailyRows   int        `json:"daily_rows"`
	MLReadyRows int        `json:"ml_ready_rows"`
	Error       string     `json:"error,omitempty"`
}

func toRunResponse(run domain.Run) runResponse {
	out := runResponse{
		ID:          run.ID,
		Source:      run.Source,
		Tag:         run.Tag,
		Status:      string(run.Status),
		StartedAt:   run.StartedAt,
		SilverRows:  run.SilverRows,
		HourlyRows:  run.HourlyRows,
		DailyRows:   run.DailyRows,
		MLReadyRows: run.MLReadyRows,
		Error:       run.Error,
	}
	if !run.FinishedAt.IsZero() {
		out.FinishedAt = &run.FinishedAt
	}
	return out
}

func (s *Server) handleRuns(runs RunLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultRunLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
				return
			}
			limit = min(n, maxRunLimit)
		}

		recent, err := runs.Recent(r.Context(), limit)
		if err != nil {
			s.logger.Error("list runs failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list runs failed"})
			return
		}

		out := make([]runResponse, len(recent))
		for i, run := range recent {
			out[i] = toRunResponse(run)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
