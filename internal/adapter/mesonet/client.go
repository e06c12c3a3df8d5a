package mesonet

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

	"golang.org/x/time/rate"

	"github.com/couchcryptid/mesonet-monitor/internal/domain"
	"github.com/couchcryptid/mesonet-monitor/internal/observability"
)

var (
	ErrUnauthorized = errors.New("mesonet API rejected token")
	ErrNotFound     = errors.New("mesonet API resource not found")
)

const (
	stationsPath     = "/mesonet/db/stations"
	measurementsPath = "/mesonet/db/measurements"
)

// Client reads station metadata and measurements from the Mesonet REST API.
// Outbound requests are rate limited with a token bucket shared by all callers.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mesonet API client.
func NewClient(baseURL, token string, timeout time.Duration, rps float64, burst int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		metrics: metrics,
		logger:  logger,
	}
}

// Stations returns metadata for every station the API knows about.
func (c *Client) Stations(ctx context.Context) ([]domain.Station, error) {
	var rows []stationRow
	if err := c.get(ctx, stationsPath, nil, "stations", &rows); err != nil {
		return nil, err
	}
	out := make([]domain.Station, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// Measurements returns the rows matching q. Station and variable lists are
// sent comma-separated; the window is sent in HST.
func (c *Client) Measurements(ctx context.Context, q domain.MeasurementQuery) ([]domain.Measurement, error) {
	if err := q.Window.Validate(); err != nil {
		return nil, err
	}
	params := url.Values{
		"local_tz": {"True"},
	}
	if len(q.StationIDs) > 0 {
		params.Set("station_ids", strings.Join(q.StationIDs, ","))
	}
	if len(q.Variables) > 0 {
		params.Set("var_ids", strings.Join(q.Variables, ","))
	}
	if !q.Window.Start.IsZero() {
		params.Set("start_date", domain.FormatAPITime(q.Window.Start))
	}
	if !q.Window.End.IsZero() {
		params.Set("end_date", domain.FormatAPITime(q.Window.End))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var rows []domain.Measurement
	if err := c.get(ctx, measurementsPath, params, "measurements", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, endpoint string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit wait: %w", endpoint, err)
	}

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	start := time.Now()
	err := c.doRequest(ctx, fullURL, endpoint, out)
	c.metrics.APIDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.APIRequests.WithLabelValues(endpoint, "error").Inc()
		return err
	}
	c.metrics.APIRequests.WithLabelValues(endpoint, "success").Inc()
	return nil
}

func (c *Client) doRequest(ctx context.Context, fullURL, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, endpoint)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mesonet API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	c.logger.Debug("mesonet request complete", "endpoint", endpoint)
	return nil
}

// Mesonet API response types.

// stationRow tolerates coordinates and elevation sent as strings.
type stationRow struct {
	StationID string          `json:"station_id"`
	Name      string          `json:"name"`
	FullName  string          `json:"full_name"`
	Lat       json.RawMessage `json:"lat"`
	Lng       json.RawMessage `json:"lng"`
	Elevation json.RawMessage `json:"elevation"`
	Status    string          `json:"status"`
}

func (r stationRow) toDomain() domain.Station {
	return domain.Station{
		ID:        r.StationID,
		Name:      r.Name,
		FullName:  r.FullName,
		Lat:       numberOrZero(r.Lat),
		Lng:       numberOrZero(r.Lng),
		Elevation: numberOrZero(r.Elevation),
		Status:    domain.NormalizeStationStatus(r.Status),
	}
}

// numberOrZero decodes a JSON number or numeric string, returning 0 otherwise.
func numberOrZero(raw json.RawMessage) float64 {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
