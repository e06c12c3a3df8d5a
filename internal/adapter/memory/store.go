// Package memory holds the latest snapshot per station and the latest health
// report in process memory. It is the read side of the HTTP API.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/couchcryptid/mesonet-monitor/internal/domain"
)

// Store is last-write-wins and safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]domain.Snapshot
	health    *domain.HealthReport
}

// New creates an empty store.
func New() *Store {
	return &Store{snapshots: make(map[string]domain.Snapshot)}
}

// PublishSnapshot replaces the station's snapshot.
func (s *Store) PublishSnapshot(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.StationID] = snap
	return nil
}

// PublishHealth replaces the health report.
func (s *Store) PublishHealth(_ context.Context, report domain.HealthReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = &report
	return nil
}

// Snapshot returns the latest snapshot for a station.
func (s *Store) Snapshot(stationID string) (domain.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[stationID]
	return snap, ok
}

// StationIDs returns the stations that have a snapshot, sorted.
func (s *Store) StationIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.snapshots))
	for id := range s.snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Health returns the latest health report.
func (s *Store) Health() (domain.HealthReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.health == nil {
		return domain.HealthReport{}, false
	}
	return *s.health, true
}
