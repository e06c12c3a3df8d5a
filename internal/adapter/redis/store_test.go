package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/mesonet-monitor/internal/domain"
)

var testNow = time.Date(2024, time.April, 26, 12, 0, 0, 0, domain.HST)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, ttl, slog.New(slog.NewTextHandler(io.Discard, nil))), mr
}

func TestStore_SnapshotRoundTrip(t *testing.T) {
	s, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	snap := domain.Snapshot{
		StationID: "0115",
		Series: domain.SeriesSet{
			"Tair_1_Avg": {{Timestamp: testNow, Value: 21.4}},
		},
		Changed:   []string{"Tair_1_Avg"},
		Window:    domain.WindowEnding(testNow, 24*time.Hour),
		Sequence:  7,
		UpdatedAt: testNow,
	}
	require.NoError(t, s.PublishSnapshot(ctx, snap))

	assert.True(t, mr.Exists("mesonet:snapshot:0115"))
	assert.Equal(t, time.Hour, mr.TTL("mesonet:snapshot:0115"))

	got, ok, err := s.LoadSnapshot(ctx, "0115")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(7), got.Sequence)
	require.Len(t, got.Series["Tair_1_Avg"], 1)
	assert.True(t, got.Series["Tair_1_Avg"][0].Timestamp.Equal(testNow))
	assert.Equal(t, 21.4, got.Series["Tair_1_Avg"][0].Value)
}

func TestStore_Missing(t *testing.T) {
	s, _ := newTestStore(t, time.Hour)

	_, ok, err := s.LoadSnapshot(context.Background(), "9999")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.LoadHealth(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Expiry(t *testing.T) {
	s, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.PublishHealth(ctx, domain.HealthReport{GeneratedAt: testNow}))
	mr.FastForward(2 * time.Minute)

	_, ok, err := s.LoadHealth(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_HealthRoundTrip(t *testing.T) {
	s, _ := newTestStore(t, 0)
	ctx := context.Background()

	report := domain.HealthReport{
		GeneratedAt: testNow,
		Stations: []domain.StationHealth{
			{StationID: "0115", Name: "Piiholo", Status: domain.HealthWarning, Issues: []string{"battery low: 11.80 V"}},
		},
	}
	require.NoError(t, s.PublishHealth(ctx, report))

	got, ok, err := s.LoadHealth(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, report.Stations, got.Stations)
}

func TestStore_UndecodableEntry(t *testing.T) {
	s, mr := newTestStore(t, 0)
	require.NoError(t, mr.Set("mesonet:snapshot:0115", "{not json"))

	_, ok, err := s.LoadSnapshot(context.Background(), "0115")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ServerDown(t *testing.T) {
	s, mr := newTestStore(t, 0)
	mr.Close()

	require.Error(t, s.CheckReadiness(context.Background()))
	require.Error(t, s.PublishSnapshot(context.Background(), domain.Snapshot{StationID: "0115"}))
}
