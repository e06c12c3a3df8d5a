package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/mesonet-monitor/internal/domain"
	"github.com/couchcryptid/mesonet-monitor/internal/observability"
)

const loopHealth = "health"

// DefaultHealthLookback is how far back the health table looks for the
// newest observation of each station.
const DefaultHealthLookback = 2 * time.Hour

// StationLister lists station metadata.
type StationLister interface {
	Stations(ctx context.Context) ([]domain.Station, error)
}

// HealthConfig describes the diagnostic table.
type HealthConfig struct {
	StationIDs []string // restrict the table to these stations; empty means all
	Variables  []string // variables fetched to grade latency, battery and panel temperature
	Lookback   time.Duration
	Interval   time.Duration
	Thresholds domain.HealthThresholds
}

// HealthRefresher polls recent measurements for every station and publishes
// the diagnostic table whenever a station's grade changes.
type HealthRefresher struct {
	cfg      HealthConfig
	stations StationLister
	fetcher  MeasurementFetcher
	sink     HealthSink
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	loop     *Loop

	issued atomic.Uint64

	mu sync.Mutex
	ok bool

	// publishMu serializes the stale check, diff and sink write.
	publishMu sync.Mutex
	applied   uint64
	prev      *domain.HealthReport // last report every sink accepted
}

// NewHealthRefresher creates an idle health refresher.
func NewHealthRefresher(cfg HealthConfig, stations StationLister, fetcher MeasurementFetcher, sink HealthSink, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *HealthRefresher {
	r := &HealthRefresher{
		cfg:      cfg,
		stations: stations,
		fetcher:  fetcher,
		sink:     sink,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
	r.loop = NewLoop(loopHealth, cfg.Interval, r.cycle, clock, logger, metrics)
	return r
}

// Start begins polling.
func (r *HealthRefresher) Start() { r.loop.Start() }

// Destroy stops polling and cancels in-flight requests.
func (r *HealthRefresher) Destroy() { r.loop.Destroy() }

// State returns the lifecycle state of the underlying loop.
func (r *HealthRefresher) State() State { return r.loop.State() }

// Refresh re-evaluates the table immediately.
func (r *HealthRefresher) Refresh(ctx context.Context) error { return r.loop.RunNow(ctx) }

// Ready reports whether any cycle has completed successfully.
func (r *HealthRefresher) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ok
}

func (r *HealthRefresher) cycle(ctx context.Context) error {
	seq := r.issued.Add(1)

	report, err := EvaluateHealth(ctx, r.stations, r.fetcher, r.cfg, r.clock.Now())
	if err != nil {
		return err
	}

	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	if seq <= r.applied {
		r.metrics.PollCycles.WithLabelValues(loopHealth, "stale").Inc()
		r.logger.Debug("discarding out-of-order response", "sequence", seq)
		return nil
	}
	r.applied = seq
	r.mu.Lock()
	r.ok = true
	r.mu.Unlock()

	if r.prev != nil && r.prev.SameGrades(report) {
		r.metrics.PollCycles.WithLabelValues(loopHealth, "unchanged").Inc()
		return nil
	}

	r.metrics.PollCycles.WithLabelValues(loopHealth, "changed").Inc()
	r.logger.Debug("station health changed", "stations", len(report.Stations), "sequence", seq)

	if err := r.sink.PublishHealth(ctx, report); err != nil {
		return fmt.Errorf("publish health: %w", err)
	}
	r.prev = &report
	return nil
}

// EvaluateHealth builds the diagnostic table once: list stations, keep
// cfg.StationIDs (all when empty), fetch cfg.Lookback of cfg.Variables for
// the active ones and grade every station against cfg.Thresholds.
func EvaluateHealth(ctx context.Context, lister StationLister, fetcher MeasurementFetcher, cfg HealthConfig, now time.Time) (domain.HealthReport, error) {
	stations, err := lister.Stations(ctx)
	if err != nil {
		return domain.HealthReport{}, fmt.Errorf("list stations: %w", err)
	}
	stations = selectStations(stations, cfg.StationIDs)

	var active []string
	for _, s := range stations {
		if s.IsActive() {
			active = append(active, s.ID)
		}
	}

	now = now.In(domain.HST)
	var rows []domain.Measurement
	if len(active) > 0 {
		rows, err = fetcher.Measurements(ctx, domain.MeasurementQuery{
			StationIDs: active,
			Variables:  cfg.Variables,
			Window:     domain.WindowEnding(now, cfg.Lookback),
		})
		if err != nil {
			return domain.HealthReport{}, fmt.Errorf("fetch measurements: %w", err)
		}
	}
	return domain.BuildHealthReport(now, stations, rows, cfg.Thresholds), nil
}

// DefaultHealthConfig grades stations with the default thresholds over
// DefaultHealthLookback, using the dashboard variables for latency.
func DefaultHealthConfig(stationIDs, dashboard []string, interval time.Duration) HealthConfig {
	return HealthConfig{
		StationIDs: stationIDs,
		Variables:  HealthVariables(dashboard),
		Lookback:   DefaultHealthLookback,
		Interval:   interval,
		Thresholds: domain.DefaultHealthThresholds,
	}
}

// HealthVariables are the battery and panel readings plus the first
// dashboard variable, which stands in for data latency.
func HealthVariables(dashboard []string) []string {
	vars := []string{domain.VarBatteryVolts, domain.VarPanelTemp}
	if len(dashboard) > 0 {
		vars = append(vars, dashboard[0])
	}
	return vars
}

func selectStations(all []domain.Station, ids []string) []domain.Station {
	if len(ids) == 0 {
		return all
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]domain.Station, 0, len(ids))
	for _, s := range all {
		if want[s.ID] {
			out = append(out, s)
		}
	}
	return out
}
