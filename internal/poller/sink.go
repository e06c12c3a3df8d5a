package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/mesonet-monitor/internal/domain"
	"github.com/couchcryptid/mesonet-monitor/internal/observability"
)

// SnapshotSink receives a station snapshot whenever its series changed.
type SnapshotSink interface {
	PublishSnapshot(ctx context.Context, snap domain.Snapshot) error
}

// HealthSink receives the diagnostic table whenever a station's grade changed.
type HealthSink interface {
	PublishHealth(ctx context.Context, report domain.HealthReport) error
}

type namedSnapshotSink struct {
	name string
	sink SnapshotSink
}

type namedHealthSink struct {
	name string
	sink HealthSink
}

// FanOut delivers updates to every registered sink. A failing sink does not
// stop delivery to the others.
type FanOut struct {
	snapshots []namedSnapshotSink
	health    []namedHealthSink
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewFanOut creates an empty fan-out.
func NewFanOut(logger *slog.Logger, metrics *observability.Metrics) *FanOut {
	return &FanOut{logger: logger, metrics: metrics}
}

// AddSnapshotSink registers a snapshot sink under a metrics label.
func (f *FanOut) AddSnapshotSink(name string, s SnapshotSink) {
	f.snapshots = append(f.snapshots, namedSnapshotSink{name: name, sink: s})
}

// AddHealthSink registers a health sink under a metrics label.
func (f *FanOut) AddHealthSink(name string, s HealthSink) {
	f.health = append(f.health, namedHealthSink{name: name, sink: s})
}

// PublishSnapshot writes snap to every snapshot sink.
func (f *FanOut) PublishSnapshot(ctx context.Context, snap domain.Snapshot) error {
	var errs []error
	for _, s := range f.snapshots {
		if err := s.sink.PublishSnapshot(ctx, snap); err != nil {
			f.metrics.SinkErrors.WithLabelValues(s.name).Inc()
			f.logger.Warn("snapshot sink failed", "sink", s.name, "station_id", snap.StationID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		f.metrics.SinkPublished.WithLabelValues(s.name).Inc()
	}
	return errors.Join(errs...)
}

// PublishHealth writes report to every health sink.
func (f *FanOut) PublishHealth(ctx context.Context, report domain.HealthReport) error {
	var errs []error
	for _, s := range f.health {
		if err := s.sink.PublishHealth(ctx, report); err != nil {
			f.metrics.SinkErrors.WithLabelValues(s.name).Inc()
			f.logger.Warn("health sink failed", "sink", s.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		f.metrics.SinkPublished.WithLabelValues(s.name).Inc()
	}
	return errors.Join(errs...)
}
