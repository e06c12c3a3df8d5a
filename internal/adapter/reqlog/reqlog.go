// Package reqlog records data requests by posting them to a spreadsheet
// logging endpoint. Delivery is best effort: entries are queued, sent by one
// worker, and dropped when the queue is full or the endpoint fails.
package reqlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/mesonet-monitor/internal/observability"
)

// Entry kinds.
const (
	KindSeries = "series"
	KindExport = "export"
	KindHealth = "health"
)

// Entry is one logged request.
type Entry struct {
	UserID     string    `json:"user_id"`
	Timestamp  time.Time `json:"timestamp"`
	Kind       string    `json:"kind"`
	StationIDs []string  `json:"station_ids,omitempty"`
	Variables  []string  `json:"variables,omitempty"`
	Start      time.Time `json:"start_date,omitzero"`
	End        time.Time `json:"end_date,omitzero"`
	Format     string    `json:"format,omitempty"`
}

// Logger queues entries and posts them from a single worker.
type Logger struct {
	url         string
	anonymousID string
	httpClient  *http.Client
	queue       chan Entry
	clock       clockwork.Clock
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// New creates a request logger posting to url. A fresh anonymous ID is
// generated for the process.
func New(url string, queueSize int, timeout time.Duration, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Logger {
	return &Logger{
		url:         url,
		anonymousID: uuid.NewString(),
		httpClient:  &http.Client{Timeout: timeout},
		queue:       make(chan Entry, queueSize),
		clock:       clock,
		metrics:     metrics,
		logger:      logger,
	}
}

// AnonymousID is the user ID recorded when a request carries none.
func (l *Logger) AnonymousID() string { return l.anonymousID }

// Log enqueues e without blocking. Missing user ID and timestamp are filled in.
func (l *Logger) Log(e Entry) {
	if e.UserID == "" {
		e.UserID = l.anonymousID
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.clock.Now()
	}
	select {
	case l.queue <- e:
	default:
		l.metrics.RequestLogEntries.WithLabelValues("dropped").Inc()
		l.logger.Warn("request log queue full, dropping entry", "kind", e.Kind)
	}
}

// Run sends queued entries until ctx is cancelled.
func (l *Logger) Run(ctx context.Context) {
	l.logger.Info("request log worker started", "url", l.url)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("request log worker stopping", "pending", len(l.queue))
			return
		case e := <-l.queue:
			if err := l.send(ctx, e); err != nil {
				l.metrics.RequestLogEntries.WithLabelValues("failed").Inc()
				l.logger.Warn("request log post failed", "kind", e.Kind, "error", err)
				continue
			}
			l.metrics.RequestLogEntries.WithLabelValues("sent").Inc()
		}
	}
}

func (l *Logger) send(ctx context.Context, e Entry) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post entry: %w", err)
	}
	defer resp.Body.Close()

	// Spreadsheet script endpoints answer with a redirect to the result page.
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("post entry: status %d", resp.StatusCode)
	}
	return nil
}
