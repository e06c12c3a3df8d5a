package mesonet

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/mesonet-monitor/internal/domain"
	"github.com/couchcryptid/mesonet-monitor/internal/observability"
)

// StationSource lists station metadata.
type StationSource interface {
	Stations(ctx context.Context) ([]domain.Station, error)
}

// CachedStations wraps a StationSource with a TTL'd station list and an
// in-memory LRU of stations by ID. When the primary source fails, the
// fallback (typically the static CSV mirror) is tried, then the last good list.
type CachedStations struct {
	inner    StationSource
	fallback StationSource
	ttl      time.Duration
	clock    clockwork.Clock
	metrics  *observability.Metrics
	logger   *slog.Logger

	mu        sync.Mutex
	list      []domain.Station
	fetchedAt time.Time
	byID      *lruCache[domain.Station]
}

// NewCachedStations creates a cache decorator around a station source.
// fallback may be nil.
func NewCachedStations(inner, fallback StationSource, maxEntries int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *CachedStations {
	return &CachedStations{
		inner:    inner,
		fallback: fallback,
		ttl:      ttl,
		clock:    clock,
		metrics:  metrics,
		logger:   logger,
		byID:     newLRUCache[domain.Station](maxEntries),
	}
}

// Stations returns the cached list, refreshing it once the TTL has passed.
func (c *CachedStations) Stations(ctx context.Context) ([]domain.Station, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.list != nil && c.clock.Since(c.fetchedAt) < c.ttl {
		c.metrics.StationCache.WithLabelValues("hit").Inc()
		return c.list, nil
	}
	c.metrics.StationCache.WithLabelValues("miss").Inc()

	stations, err := c.inner.Stations(ctx)
	if err != nil && c.fallback != nil {
		c.logger.Warn("station list failed, using fallback source", "error", err)
		stations, err = c.fallback.Stations(ctx)
	}
	if err != nil {
		if c.list != nil {
			c.metrics.StationCache.WithLabelValues("stale").Inc()
			c.logger.Warn("station refresh failed, serving stale list", "error", err, "age", c.clock.Since(c.fetchedAt))
			return c.list, nil
		}
		return nil, err
	}

	c.list = stations
	c.fetchedAt = c.clock.Now()
	for _, s := range stations {
		c.byID.put(s.ID, s)
	}
	return stations, nil
}

// Station looks up one station by ID, loading the list on a cache miss.
func (c *CachedStations) Station(ctx context.Context, id string) (domain.Station, bool, error) {
	if s, ok := c.byID.get(id); ok {
		return s, true, nil
	}
	stations, err := c.Stations(ctx)
	if err != nil {
		return domain.Station{}, false, err
	}
	for _, s := range stations {
		if s.ID == id {
			c.byID.put(id, s)
			return s, true, nil
		}
	}
	return domain.Station{}, false, nil
}

// lruCache holds the most recently looked-up values, bounded to maxEntries.
type lruCache[V any] struct {
	maxEntries int

	mu    sync.Mutex
	order *list.List // front is most recent; elements hold *lruItem[V]
	items map[string]*list.Element
}

type lruItem[V any] struct {
	key   string
	value V
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		order:      list.New(),
		items:      make(map[string]*list.Element),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruItem[V]).value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*lruItem[V]).value = value
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&lruItem[V]{key: key, value: value})
	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*lruItem[V]).key)
	}
}

func (c *lruCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
