package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrUnknownStation is returned when a refresh names a station that is not polled.
var ErrUnknownStation = errors.New("station is not being polled")

// Manager owns the series refreshers for the configured stations and the
// optional health refresher, and starts and destroys them together.
type Manager struct {
	series map[string]*SeriesRefresher
	order  []string
	health *HealthRefresher
	logger *slog.Logger
}

// NewManager groups refreshers. health may be nil.
func NewManager(series []*SeriesRefresher, health *HealthRefresher, logger *slog.Logger) *Manager {
	m := &Manager{
		series: make(map[string]*SeriesRefresher, len(series)),
		health: health,
		logger: logger,
	}
	for _, r := range series {
		m.series[r.StationID()] = r
		m.order = append(m.order, r.StationID())
	}
	return m
}

// Start starts every refresher concurrently and returns once each has run
// its first cycle.
func (m *Manager) Start() {
	var wg sync.WaitGroup
	for _, id := range m.order {
		r := m.series[id]
		wg.Go(r.Start)
	}
	if m.health != nil {
		wg.Go(m.health.Start)
	}
	wg.Wait()
	m.logger.Info("poll loops started", "stations", len(m.order), "health", m.health != nil)
}

// Destroy destroys every refresher.
func (m *Manager) Destroy() {
	for _, id := range m.order {
		m.series[id].Destroy()
	}
	if m.health != nil {
		m.health.Destroy()
	}
}

// StationIDs returns the polled stations in configuration order.
func (m *Manager) StationIDs() []string {
	return append([]string(nil), m.order...)
}

// Window returns the current look-back of a polled station.
func (m *Manager) Window(stationID string) (time.Duration, bool) {
	r, ok := m.series[stationID]
	if !ok {
		return 0, false
	}
	return r.Window(), true
}

// Refresh switches a station to a new look-back and fetches immediately.
func (m *Manager) Refresh(ctx context.Context, stationID string, window time.Duration) error {
	r, ok := m.series[stationID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStation, stationID)
	}
	return r.Refresh(ctx, window)
}

// CheckReadiness returns nil once any refresher has completed a cycle, or an
// error describing why the service is not yet ready.
func (m *Manager) CheckReadiness(_ context.Context) error {
	for _, r := range m.series {
		if r.Ready() {
			return nil
		}
	}
	if m.health != nil && m.health.Ready() {
		return nil
	}
	return errors.New("no poll cycle has completed yet")
}
