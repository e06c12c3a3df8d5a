package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mesonet_monitor"

// Metrics holds the Prometheus counters, histograms, and gauges for the monitor.
type Metrics struct {
	// Polling loop metrics.
	PollCycles   *prometheus.CounterVec   // labels: loop={series,health}, outcome={changed,unchanged,error,stale}
	PollDuration *prometheus.HistogramVec // labels: loop
	LoopsRunning prometheus.Gauge

	// Sink metrics.
	SinkPublished *prometheus.CounterVec // labels: sink
	SinkErrors    *prometheus.CounterVec // labels: sink

	// Mesonet API metrics.
	APIRequests  *prometheus.CounterVec   // labels: endpoint={stations,measurements}, outcome={success,error}
	APIDuration  *prometheus.HistogramVec // labels: endpoint
	StationCache *prometheus.CounterVec   // labels: result={hit,miss,stale}

	// Request log metrics.
	RequestLogEntries *prometheus.CounterVec // labels: outcome={sent,failed,dropped}
}

func newMetrics() *Metrics {
	return &Metrics{
		PollCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Poll cycles by loop and outcome.",
		}, []string{"loop", "outcome"}),
		PollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Duration of a complete fetch-and-render cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"loop"}),
		LoopsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loops_running",
			Help:      "Number of polling loops currently scheduled.",
		}),
		SinkPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_published_total",
			Help:      "Updates written to each sink.",
		}, []string{"sink"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed writes per sink.",
		}, []string{"sink"}),
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Mesonet API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		APIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Mesonet API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		StationCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_cache_total",
			Help:      "Station metadata cache lookups by result.",
		}, []string{"result"}),
		RequestLogEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_log_entries_total",
			Help:      "Request-log entries by delivery outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PollCycles,
		m.PollDuration,
		m.LoopsRunning,
		m.SinkPublished,
		m.SinkErrors,
		m.APIRequests,
		m.APIDuration,
		m.StationCache,
		m.RequestLogEntries,
	}
}

// NewMetrics creates and registers all monitor metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates the metrics and registers them with reg. One-shot
// commands pass a private registry that is never served.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
