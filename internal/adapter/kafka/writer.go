package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/mesonet-monitor/internal/domain"
)

// Writer publishes changed station snapshots to a Kafka topic.
// It implements poller.SnapshotSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the snapshot topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishSnapshot writes one message keyed by station ID so every update for
// a station lands on the same partition in order.
func (w *Writer) PublishSnapshot(ctx context.Context, snap domain.Snapshot) error {
	msg, err := serializeToMessage(snap)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write snapshot %s: %w", snap.StationID, err)
	}
	w.logger.Debug("snapshot published", "station_id", snap.StationID, "sequence", snap.Sequence)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Snapshot into a Kafka message.
func serializeToMessage(snap domain.Snapshot) (kafkago.Message, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize snapshot: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(snap.StationID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "changed", Value: []byte(strings.Join(snap.Changed, ","))},
			{Key: "updated_at", Value: []byte(snap.UpdatedAt.Format(time.RFC3339))},
		},
	}, nil
}
