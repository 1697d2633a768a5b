// Package openmeteo fetches raw hourly weather payloads from the Open-Meteo
// forecast API. Payloads are returned as received; parsing is left to the
// normalizer.
package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/rain-forecast-etl/internal/domain"
	"github.com/couchcryptid/rain-forecast-etl/internal/observability"
)

// maxPayloadBytes bounds a single response body.
const maxPayloadBytes = 16 << 20

// Request selects the location and window of a fetch.
type Request struct {
	Latitude     float64
	Longitude    float64
	PastDays     int
	ForecastDays int
}

// Client requests hourly observations from the Open-Meteo API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo client for the given forecast endpoint.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// Fetch returns the raw JSON payload for req. Every measurement the silver
// tier carries is requested, timestamps in GMT.
func (c *Client) Fetch(ctx context.Context, req Request) ([]byte, error) {
	start := time.Now()
	payload, err := c.doRequest(ctx, c.url(req))
	c.metrics.SourceFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.SourceFetches.WithLabelValues("error").Inc()
		return nil, err
	}
	c.metrics.SourceFetches.WithLabelValues("success").Inc()
	c.logger.Debug("payload fetched",
		"latitude", req.Latitude,
		"longitude", req.Longitude,
		"bytes", len(payload),
		"duration", time.Since(start),
	)
	return payload, nil
}

func (c *Client) url(req Request) string {
	params := url.Values{
		"latitude":  {strconv.FormatFloat(req.Latitude, 'f', -1, 64)},
		"longitude": {strconv.FormatFloat(req.Longitude, 'f', -1, 64)},
		"hourly":    {strings.Join(domain.MeasurementFields, ",")},
		"timezone":  {"GMT"},
	}
	if req.PastDays > 0 {
		params.Set("past_days", strconv.Itoa(req.PastDays))
	}
	if req.ForecastDays > 0 {
		params.Set("forecast_days", strconv.Itoa(req.ForecastDays))
	}
	return c.baseURL + "?" + params.Encode()
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forecast request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(body) > maxPayloadBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", maxPayloadBytes)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, apiReason(body))
	}
	if !json.Valid(body) {
		return nil, errors.New("open-meteo API returned invalid JSON")
	}
	return body, nil
}

// apiError is the body Open-Meteo sends with 4xx responses.
type apiError struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

func apiReason(body []byte) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil && e.Reason != "" {
		return e.Reason
	}
	return string(body)
}
