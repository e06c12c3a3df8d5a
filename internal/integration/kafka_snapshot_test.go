//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/mesonet-monitor/internal/adapter/kafka"
	"github.com/couchcryptid/mesonet-monitor/internal/domain"
	"github.com/couchcryptid/mesonet-monitor/internal/observability"
	"github.com/couchcryptid/mesonet-monitor/internal/poller"
)

const (
	testTopic     = "test-snapshots"
	testStationID = "0115"
	testVariable  = "Tair_1_Avg"
)

// stubFetcher serves whatever rows were last set.
type stubFetcher struct {
	mu   sync.Mutex
	rows []domain.Measurement
}

func (f *stubFetcher) set(rows []domain.Measurement) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = rows
}

func (f *stubFetcher) Measurements(_ context.Context, _ domain.MeasurementQuery) ([]domain.Measurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows, nil
}

// publishedSnapshot holds a deserialized message read from the snapshot topic.
type publishedSnapshot struct {
	Snapshot domain.Snapshot
	Key      string
	Headers  map[string]string
}

func readSnapshot(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedSnapshot {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from snapshot topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(msg.Value, &snap), "unmarshal snapshot")
	return publishedSnapshot{Snapshot: snap, Key: string(msg.Key), Headers: headers}
}

func samples(base time.Time, values ...float64) []domain.Measurement {
	rows := make([]domain.Measurement, 0, len(values))
	for i, v := range values {
		rows = append(rows, domain.Measurement{
			StationID: testStationID,
			Variable:  testVariable,
			Value:     domain.Float(v),
			Timestamp: base.Add(time.Duration(i) * 5 * time.Minute),
		})
	}
	return rows
}

// TestSeriesRefresherPublishesToKafka runs a refresher against a real broker
// and checks that only cycles with changed data produce messages.
func TestSeriesRefresherPublishesToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	writer := kafka.NewWriter([]string{broker}, testTopic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	now := time.Date(2024, time.April, 26, 12, 0, 0, 0, domain.HST)
	clock := clockwork.NewFakeClockAt(now)
	base := now.Add(-time.Hour)

	fetcher := &stubFetcher{}
	fetcher.set(samples(base, 21.0, 21.2, 21.4))

	refresher := poller.NewSeriesRefresher(poller.SeriesConfig{
		StationID: testStationID,
		Variables: []string{testVariable},
		Window:    24 * time.Hour,
		Interval:  30 * time.Second,
	}, fetcher, writer, clock, discardLogger(), observability.NewMetricsForTesting())

	refresher.Start()
	t.Cleanup(refresher.Destroy)
	require.True(t, refresher.Ready())

	// Unchanged data must not publish.
	require.NoError(t, refresher.Refresh(ctx, 0))

	fetcher.set(samples(base, 21.0, 21.2, 21.4, 21.9))
	require.NoError(t, refresher.Refresh(ctx, 0))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-snapshots-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	first := readSnapshot(ctx, t, consumer)
	assert.Equal(t, testStationID, first.Key)
	assert.Equal(t, testVariable, first.Headers["changed"])
	_, err := time.Parse(time.RFC3339, first.Headers["updated_at"])
	assert.NoError(t, err, "updated_at should be valid RFC3339")
	assert.Equal(t, uint64(1), first.Snapshot.Sequence)
	assert.Len(t, first.Snapshot.Series[testVariable], 3)

	second := readSnapshot(ctx, t, consumer)
	assert.Equal(t, testStationID, second.Key)
	assert.Equal(t, uint64(3), second.Snapshot.Sequence)
	require.Len(t, second.Snapshot.Series[testVariable], 4)
	latest, ok := second.Snapshot.Series[testVariable].Latest()
	require.True(t, ok)
	assert.Equal(t, 21.9, latest.Value)

	// The unchanged cycle left nothing behind.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no third message on snapshot topic")
}

// TestWriterKeysByStation checks that snapshots for different stations keep
// their own keys.
func TestWriterKeysByStation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	writer := kafka.NewWriter([]string{broker}, testTopic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	updated := time.Date(2024, time.April, 26, 12, 0, 0, 0, domain.HST)
	for _, id := range []string{"0115", "0521"} {
		require.NoError(t, writer.PublishSnapshot(ctx, domain.Snapshot{
			StationID: id,
			Series:    domain.SeriesSet{},
			Window:    domain.WindowEnding(updated, time.Hour),
			Sequence:  1,
			UpdatedAt: updated,
		}))
	}

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-keys-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	keys := map[string]bool{}
	for range 2 {
		ps := readSnapshot(ctx, t, consumer)
		keys[ps.Key] = true
		assert.Equal(t, ps.Key, ps.Snapshot.StationID)
		assert.True(t, ps.Snapshot.UpdatedAt.Equal(updated))
	}
	assert.Equal(t, map[string]bool{"0115": true, "0521": true}, keys)
}
