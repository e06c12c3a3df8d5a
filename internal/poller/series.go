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

const loopSeries = "series"

// MeasurementFetcher reads measurement rows for a query.
type MeasurementFetcher interface {
	Measurements(ctx context.Context, q domain.MeasurementQuery) ([]domain.Measurement, error)
}

// SeriesConfig describes one station view.
type SeriesConfig struct {
	StationID string
	Variables []string
	Window    time.Duration
	Interval  time.Duration
	Limit     int // row cap per request; 0 means none
}

// SeriesRefresher polls one station's measurements and publishes a snapshot
// whenever any variable's series differs from the previous cycle.
type SeriesRefresher struct {
	stationID string
	variables []string
	limit     int
	fetcher   MeasurementFetcher
	sink      SnapshotSink
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	loop      *Loop

	issued atomic.Uint64

	mu     sync.Mutex
	window time.Duration
	ok     bool

	// publishMu serializes the stale check, diff and sink write so an older
	// cycle can never reach the sinks after a newer one.
	publishMu sync.Mutex
	applied   uint64
	prev      domain.SeriesSet // last set every sink accepted
	prevWin   time.Duration
}

// NewSeriesRefresher creates an idle refresher for cfg.StationID.
func NewSeriesRefresher(cfg SeriesConfig, fetcher MeasurementFetcher, sink SnapshotSink, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *SeriesRefresher {
	r := &SeriesRefresher{
		stationID: cfg.StationID,
		variables: cfg.Variables,
		limit:     cfg.Limit,
		window:    cfg.Window,
		fetcher:   fetcher,
		sink:      sink,
		clock:     clock,
		logger:    logger.With("station_id", cfg.StationID),
		metrics:   metrics,
	}
	r.loop = NewLoop(loopSeries, cfg.Interval, r.cycle, clock, r.logger, metrics)
	return r
}

// StationID returns the station this refresher polls.
func (r *SeriesRefresher) StationID() string { return r.stationID }

// Start begins polling. Without a station ID nothing is fetched or scheduled.
func (r *SeriesRefresher) Start() {
	if r.stationID == "" {
		r.logger.Warn("no station id, series refresher not started")
		return
	}
	r.loop.Start()
}

// Destroy stops polling and cancels in-flight requests.
func (r *SeriesRefresher) Destroy() { r.loop.Destroy() }

// State returns the lifecycle state of the underlying loop.
func (r *SeriesRefresher) State() State { return r.loop.State() }

// Window returns the current look-back duration.
func (r *SeriesRefresher) Window() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.window
}

// Refresh switches the look-back to window and fetches immediately. A zero
// window keeps the current one.
func (r *SeriesRefresher) Refresh(ctx context.Context, window time.Duration) error {
	if window > 0 {
		r.mu.Lock()
		r.window = window
		r.mu.Unlock()
	}
	return r.loop.RunNow(ctx)
}

// Ready reports whether any cycle has completed successfully.
func (r *SeriesRefresher) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ok
}

func (r *SeriesRefresher) cycle(ctx context.Context) error {
	seq := r.issued.Add(1)
	winLen := r.Window()
	window := domain.WindowEnding(r.clock.Now(), winLen)

	rows, err := r.fetcher.Measurements(ctx, domain.MeasurementQuery{
		StationIDs: []string{r.stationID},
		Variables:  r.variables,
		Window:     window,
		Limit:      r.limit,
	})
	if err != nil {
		return fmt.Errorf("fetch measurements: %w", err)
	}
	set := domain.BuildSeries(rows)

	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	if seq <= r.applied {
		r.metrics.PollCycles.WithLabelValues(loopSeries, "stale").Inc()
		r.logger.Debug("discarding out-of-order response", "sequence", seq)
		return nil
	}
	r.applied = seq
	r.mu.Lock()
	r.ok = true
	r.mu.Unlock()

	changed := domain.ChangedVariables(r.prev, set)
	if len(changed) == 0 && winLen == r.prevWin {
		r.metrics.PollCycles.WithLabelValues(loopSeries, "unchanged").Inc()
		return nil
	}

	r.metrics.PollCycles.WithLabelValues(loopSeries, "changed").Inc()
	r.logger.Debug("series changed", "variables", changed, "sequence", seq)

	snap := domain.Snapshot{
		StationID: r.stationID,
		Series:    set,
		Changed:   changed,
		Window:    window,
		Sequence:  seq,
		UpdatedAt: r.clock.Now().In(domain.HST),
	}
	if err := r.sink.PublishSnapshot(ctx, snap); err != nil {
		// prev stays put so the next cycle publishes again.
		return fmt.Errorf("publish snapshot: %w", err)
	}
	r.prev = set
	r.prevWin = winLen
	return nil
}
