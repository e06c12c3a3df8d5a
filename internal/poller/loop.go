// Package poller keeps station views current by re-running a fetch-and-render
// cycle on a fixed delay until the view is destroyed.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/mesonet-monitor/internal/observability"
)

// ErrNotRunning is returned when a cycle is requested from a loop that was
// never started or has been destroyed.
var ErrNotRunning = errors.New("poll loop is not running")

// Cycle performs one fetch-and-render pass. ctx is cancelled when the loop is
// destroyed, aborting any request the cycle has in flight.
type Cycle func(ctx context.Context) error

// State is the lifecycle position of a Loop.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDestroyed:
		return "destroyed"
	default:
		return "idle"
	}
}

// Loop runs a Cycle immediately on Start and then again after each interval.
// Destroy is terminal: it stops the pending timer and cancels the context
// shared by every request the loop has issued.
type Loop struct {
	name     string
	interval time.Duration
	cycle    Cycle
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state State
	timer clockwork.Timer
}

// NewLoop creates an idle loop. name labels its logs and metrics.
func NewLoop(name string, interval time.Duration, cycle Cycle, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Loop {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		name:     name,
		interval: interval,
		cycle:    cycle,
		clock:    clock,
		logger:   logger.With("loop", name),
		metrics:  metrics,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs the first cycle on the calling goroutine and schedules the next.
// It does nothing unless the loop is idle.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.state != StateIdle {
		l.mu.Unlock()
		return
	}
	l.state = StateRunning
	l.mu.Unlock()

	l.metrics.LoopsRunning.Inc()
	l.logger.Info("poll loop started", "interval", l.interval)
	l.tick()
}

// Destroy stops the loop for good. It is safe to call more than once.
func (l *Loop) Destroy() {
	l.mu.Lock()
	if l.state == StateDestroyed {
		l.mu.Unlock()
		return
	}
	wasRunning := l.state == StateRunning
	l.state = StateDestroyed
	l.clearTimer()
	l.mu.Unlock()

	l.cancel()
	if wasRunning {
		l.metrics.LoopsRunning.Dec()
	}
	l.logger.Info("poll loop destroyed")
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// RunNow runs one cycle outside the schedule, for example after the caller
// changed what the cycle fetches. The cycle is cancelled when either ctx or
// the loop is done. The schedule is left untouched.
func (l *Loop) RunNow(ctx context.Context) error {
	if l.State() != StateRunning {
		return ErrNotRunning
	}
	runCtx, cancel := context.WithCancel(l.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return l.run(runCtx)
}

// tick is one scheduled cycle: clear the pending handle, run, re-schedule.
func (l *Loop) tick() {
	l.mu.Lock()
	l.clearTimer()
	destroyed := l.state == StateDestroyed
	l.mu.Unlock()
	if destroyed {
		return
	}

	_ = l.run(l.ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateDestroyed {
		return
	}
	l.timer = l.clock.AfterFunc(l.interval, l.tick)
}

// run executes the cycle. Errors are logged and counted but never stop the
// loop; the next cycle runs on schedule without retry or backoff.
func (l *Loop) run(ctx context.Context) error {
	start := l.clock.Now()
	err := l.cycle(ctx)
	l.metrics.PollDuration.WithLabelValues(l.name).Observe(l.clock.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			l.logger.Debug("poll cycle cancelled", "error", err)
			return err
		}
		l.metrics.PollCycles.WithLabelValues(l.name, "error").Inc()
		l.logger.Error("poll cycle failed", "error", err)
	}
	return err
}

func (l *Loop) clearTimer() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}
