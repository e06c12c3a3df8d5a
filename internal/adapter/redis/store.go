// Package redis persists the latest station snapshots and health report so a
// restarted monitor can serve data before its first poll cycle completes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"github.com/couchcryptid/mesonet-monitor/internal/domain"
)

const (
	snapshotKeyPrefix = "mesonet:snapshot:"
	healthKey         = "mesonet:health"
)

// Store reads and writes JSON documents with a TTL.
type Store struct {
	client redisv9.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewClient connects to a single Redis node.
func NewClient(addr string) *redisv9.Client {
	return redisv9.NewClient(&redisv9.Options{Addr: addr})
}

// NewStore wraps a Redis client. Entries expire after ttl; zero keeps them forever.
func NewStore(client redisv9.UniversalClient, ttl time.Duration, logger *slog.Logger) *Store {
	return &Store{client: client, ttl: ttl, logger: logger}
}

func snapshotKey(stationID string) string {
	return snapshotKeyPrefix + stationID
}

// PublishSnapshot stores snap under mesonet:snapshot:{id}.
func (s *Store) PublishSnapshot(ctx context.Context, snap domain.Snapshot) error {
	return s.set(ctx, snapshotKey(snap.StationID), snap)
}

// PublishHealth stores report under mesonet:health.
func (s *Store) PublishHealth(ctx context.Context, report domain.HealthReport) error {
	return s.set(ctx, healthKey, report)
}

// LoadSnapshot returns the stored snapshot for a station, if any.
func (s *Store) LoadSnapshot(ctx context.Context, stationID string) (domain.Snapshot, bool, error) {
	var snap domain.Snapshot
	ok, err := s.get(ctx, snapshotKey(stationID), &snap)
	return snap, ok, err
}

// LoadHealth returns the stored health report, if any.
func (s *Store) LoadHealth(ctx context.Context) (domain.HealthReport, bool, error) {
	var report domain.HealthReport
	ok, err := s.get(ctx, healthKey, &report)
	return report, ok, err
}

// CheckReadiness pings the server.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string, v any) (bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(val, v); err != nil {
		s.logger.Warn("discarding undecodable redis entry", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}
