package httpadapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/mesonet-monitor/internal/adapter/mesonet"
	"github.com/couchcryptid/mesonet-monitor/internal/adapter/reqlog"
	"github.com/couchcryptid/mesonet-monitor/internal/domain"
	"github.com/couchcryptid/mesonet-monitor/internal/export"
	"github.com/couchcryptid/mesonet-monitor/internal/poller"
)

// UserHeader carries the caller's anonymous user ID for the request log.
const UserHeader = "X-Mesonet-User"

const aggregateHourly = "hourly"

var (
	errNoSnapshot     = errors.New("no data for station yet")
	errUnknownStation = errors.New("unknown station")
	errNoHealth       = errors.New("no health report yet")
	errBadParam       = errors.New("invalid parameter")
)

// StationDirectory lists station metadata and resolves single stations.
type StationDirectory interface {
	Stations(ctx context.Context) ([]domain.Station, error)
	Station(ctx context.Context, id string) (domain.Station, bool, error)
}

// ViewReader reads the latest published station views.
type ViewReader interface {
	Snapshot(stationID string) (domain.Snapshot, bool)
	Health() (domain.HealthReport, bool)
}

// Refresher re-polls a station, optionally with a new look-back.
type Refresher interface {
	Refresh(ctx context.Context, stationID string, window time.Duration) error
	Window(stationID string) (time.Duration, bool)
}

// MeasurementFetcher reads measurement rows for ad-hoc exports.
type MeasurementFetcher interface {
	Measurements(ctx context.Context, q domain.MeasurementQuery) ([]domain.Measurement, error)
}

// RequestLogger records data requests.
type RequestLogger interface {
	Log(e reqlog.Entry)
}

// API serves station views and CSV reports.
type API struct {
	Stations   StationDirectory
	Views      ViewReader
	Refresher  Refresher
	Fetcher    MeasurementFetcher
	RequestLog RequestLogger // optional
	Units      domain.UnitSystem
	Variables  []string // default export variables
	Window     time.Duration
	Clock      clockwork.Clock

	logger *slog.Logger
}

func (a *API) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/stations", a.handleStations)
	mux.HandleFunc("GET /api/stations.csv", a.handleStationsCSV)
	mux.HandleFunc("GET /api/stations/{id}/series", a.handleSeries)
	mux.HandleFunc("POST /api/stations/{id}/refresh", a.handleRefresh)
	mux.HandleFunc("GET /api/stations/{id}/export.csv", a.handleExport)
	mux.HandleFunc("GET /api/health", a.handleHealthReport)
	mux.HandleFunc("GET /api/health.csv", a.handleHealthCSV)
}

// seriesResponse is a station snapshot rendered in the caller's units.
type seriesResponse struct {
	StationID  string            `json:"station_id"`
	Name       string            `json:"name"`
	Window     domain.Window     `json:"window"`
	UpdatedAt  time.Time         `json:"updated_at"`
	Sequence   uint64            `json:"sequence"`
	Units      domain.UnitSystem `json:"units"`
	Aggregate  string            `json:"aggregate,omitempty"`
	Series     domain.SeriesSet  `json:"series"`
	UnitLabels map[string]string `json:"unit_labels"`
}

func (a *API) handleStations(w http.ResponseWriter, r *http.Request) {
	stations, err := a.Stations.Stations(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.FilterStations(stations, r.URL.Query().Get("status")))
}

func (a *API) handleStationsCSV(w http.ResponseWriter, r *http.Request) {
	stations, err := a.Stations.Stations(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteStations(&buf, domain.FilterStations(stations, r.URL.Query().Get("status"))); err != nil {
		a.writeError(w, err)
		return
	}
	writeCSV(w, "mesonet_stations.csv", buf.Bytes())
}

func (a *API) handleSeries(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := domain.ValidateStationID(id); err != nil {
		a.writeError(w, err)
		return
	}
	st, err := a.station(r.Context(), id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	units, hourly, err := a.viewParams(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	snap, ok := a.Views.Snapshot(id)
	if !ok {
		a.writeError(w, fmt.Errorf("%w: %s", errNoSnapshot, id))
		return
	}

	set := snap.Series
	resp := seriesResponse{
		StationID:  snap.StationID,
		Name:       st.DisplayName(),
		Window:     snap.Window,
		UpdatedAt:  snap.UpdatedAt,
		Sequence:   snap.Sequence,
		Units:      units,
		UnitLabels: make(map[string]string, len(set)),
	}
	if hourly {
		set = domain.AggregateHourlySet(set)
		resp.Aggregate = aggregateHourly
	}
	resp.Series = domain.ConvertSeriesSet(set, units)
	for v := range resp.Series {
		resp.UnitLabels[v] = domain.UnitLabel(domain.QuantityFor(v), units)
	}

	a.logRequest(r, reqlog.Entry{
		Kind:       reqlog.KindSeries,
		StationIDs: []string{id},
		Variables:  set.Variables(),
		Start:      snap.Window.Start,
		End:        snap.Window.End,
	})
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := domain.ValidateStationID(id); err != nil {
		a.writeError(w, err)
		return
	}
	// Without a duration the station keeps its current look-back.
	var window time.Duration
	if s := r.URL.Query().Get("duration"); s != "" {
		d, err := domain.ParseDurationSelector(s)
		if err != nil {
			a.writeError(w, err)
			return
		}
		window = d
	}
	if err := a.Refresher.Refresh(r.Context(), id, window); err != nil {
		a.writeError(w, err)
		return
	}
	if current, ok := a.Refresher.Window(id); ok {
		window = current
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "refreshed",
		"station_id": id,
		"duration":   window.String(),
	})
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := domain.ValidateStationID(id); err != nil {
		a.writeError(w, err)
		return
	}
	if _, err := a.station(r.Context(), id); err != nil {
		a.writeError(w, err)
		return
	}
	q := r.URL.Query()
	units, hourly, err := a.viewParams(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		a.writeError(w, fmt.Errorf("%w: %w", errBadParam, err))
		return
	}
	d := a.Window
	if s := q.Get("duration"); s != "" {
		if d, err = domain.ParseDurationSelector(s); err != nil {
			a.writeError(w, err)
			return
		}
	}
	vars := a.Variables
	if s := q.Get("vars"); s != "" {
		vars = splitList(s)
	}

	window := domain.WindowEnding(a.Clock.Now(), d)
	rows, err := a.Fetcher.Measurements(r.Context(), domain.MeasurementQuery{
		StationIDs: []string{id},
		Variables:  vars,
		Window:     window,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}

	var buf bytes.Buffer
	req := export.Request{StationID: id, Variables: vars, Format: format, Units: units, Hourly: hourly}
	if err := export.Write(&buf, req, rows); err != nil {
		a.writeError(w, err)
		return
	}

	a.logRequest(r, reqlog.Entry{
		Kind:       reqlog.KindExport,
		StationIDs: []string{id},
		Variables:  vars,
		Start:      window.Start,
		End:        window.End,
		Format:     string(format),
	})
	writeCSV(w, export.Filename(id, window), buf.Bytes())
}

func (a *API) handleHealthReport(w http.ResponseWriter, r *http.Request) {
	report, ok := a.Views.Health()
	if !ok {
		a.writeError(w, errNoHealth)
		return
	}
	a.logRequest(r, reqlog.Entry{Kind: reqlog.KindHealth})
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleHealthCSV(w http.ResponseWriter, r *http.Request) {
	report, ok := a.Views.Health()
	if !ok {
		a.writeError(w, errNoHealth)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteHealth(&buf, report); err != nil {
		a.writeError(w, err)
		return
	}
	a.logRequest(r, reqlog.Entry{Kind: reqlog.KindHealth, Format: "csv"})
	writeCSV(w, "mesonet_station_health.csv", buf.Bytes())
}

// viewParams reads the units and aggregate query parameters.
func (a *API) viewParams(r *http.Request) (domain.UnitSystem, bool, error) {
	q := r.URL.Query()
	units := a.Units
	if s := q.Get("units"); s != "" {
		u, err := domain.ParseUnitSystem(s)
		if err != nil {
			return "", false, fmt.Errorf("%w: %w", errBadParam, err)
		}
		units = u
	}
	switch agg := q.Get("aggregate"); agg {
	case "", "none":
		return units, false, nil
	case aggregateHourly:
		return units, true, nil
	default:
		return "", false, fmt.Errorf("%w: aggregate %q (allowed: hourly)", errBadParam, agg)
	}
}

// station resolves id through the station directory.
func (a *API) station(ctx context.Context, id string) (domain.Station, error) {
	st, ok, err := a.Stations.Station(ctx, id)
	if err != nil {
		return domain.Station{}, err
	}
	if !ok {
		return domain.Station{}, fmt.Errorf("%w: %s", errUnknownStation, id)
	}
	return st, nil
}

func (a *API) logRequest(r *http.Request, e reqlog.Entry) {
	if a.RequestLog == nil {
		return
	}
	e.UserID = r.Header.Get(UserHeader)
	a.RequestLog.Log(e)
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("api request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps domain and adapter errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadParam),
		errors.Is(err, domain.ErrInvalidStationID),
		errors.Is(err, domain.ErrUnknownDuration),
		errors.Is(err, domain.ErrDurationTooLong),
		errors.Is(err, domain.ErrInvalidWindow):
		return http.StatusBadRequest
	case errors.Is(err, errNoSnapshot),
		errors.Is(err, errUnknownStation),
		errors.Is(err, errNoHealth),
		errors.Is(err, poller.ErrUnknownStation),
		errors.Is(err, mesonet.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, poller.ErrNotRunning):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeCSV(w http.ResponseWriter, filename string, body []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(body) //nolint:errcheck // client went away
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
