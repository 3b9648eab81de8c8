// Package cache provides an in-memory TTL cache keyed by rounded geographic
// coordinates.
//
// Nearby lookups share one entry: latitude and longitude are rounded to a
// fixed number of decimal places before use as a key. Entries expire after a
// TTL; a background sweeper evicts them, and expired entries are never
// returned even before the sweep runs.
package cache

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/isstracker/internal/metrics"
)

// Config holds cache configuration.
type Config struct {
	TTL       time.Duration // how long an entry stays valid (default: 10m)
	Precision int           // decimal places kept in the key (default: 1, ~11 km)
	Sweep     time.Duration // eviction interval (default: TTL)
}

// Coord is a rounded latitude/longitude pair.
type Coord struct {
	Lat, Lon float64
}

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// CoordCache is a TTL cache of V keyed by rounded coordinates.
// Safe for concurrent use by multiple goroutines.
type CoordCache[V any] struct {
	mu      sync.RWMutex
	entries map[Coord]entry[V]

	config Config
	scale  float64
	now    func() time.Time
	logger *slog.Logger

	// Counters (lock-free).
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates an empty cache. Zero config fields take their defaults.
func New[V any](config Config, logger *slog.Logger) *CoordCache[V] {
	if config.TTL <= 0 {
		config.TTL = 10 * time.Minute
	}
	if config.Precision <= 0 {
		config.Precision = 1
	}
	if config.Sweep <= 0 {
		config.Sweep = config.TTL
	}

	logger.Info("coordinate cache initialized",
		"component", "cache",
		"ttl_seconds", config.TTL.Seconds(),
		"precision", config.Precision,
		"sweep_seconds", config.Sweep.Seconds(),
	)

	return &CoordCache[V]{
		entries: make(map[Coord]entry[V]),
		config:  config,
		scale:   math.Pow(10, float64(config.Precision)),
		now:     time.Now,
		logger:  logger,
	}
}

// Key rounds lat/lon to the cache precision.
func (c *CoordCache[V]) Key(lat, lon float64) Coord {
	return Coord{
		Lat: math.Round(lat*c.scale) / c.scale,
		Lon: math.Round(lon*c.scale) / c.scale,
	}
}

// Get returns the unexpired value stored for lat/lon.
func (c *CoordCache[V]) Get(lat, lon float64) (V, bool) {
	key := c.Key(lat, lon)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && c.now().Sub(e.storedAt) < c.config.TTL {
		c.hits.Add(1)
		metrics.IncGeocodeCacheHits()
		return e.value, true
	}

	c.misses.Add(1)
	metrics.IncGeocodeCacheMisses()
	var zero V
	return zero, false
}

// Put stores v for lat/lon, replacing any previous entry.
func (c *CoordCache[V]) Put(lat, lon float64, v V) {
	key := c.Key(lat, lon)

	c.mu.Lock()
	c.entries[key] = entry[V]{value: v, storedAt: c.now()}
	count := len(c.entries)
	c.mu.Unlock()

	metrics.SetGeocodeCacheEntries(count)
}

// EvictExpired removes entries older than the TTL and returns how many were removed.
func (c *CoordCache[V]) EvictExpired() int {
	cutoff := c.now().Add(-c.config.TTL)
	var removed int

	c.mu.Lock()
	for k, e := range c.entries {
		if !e.storedAt.After(cutoff) {
			delete(c.entries, k)
			removed++
		}
	}
	count := len(c.entries)
	c.mu.Unlock()

	metrics.SetGeocodeCacheEntries(count)
	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.AddGeocodeCacheEvictions(removed)
		c.logger.Debug("cache eviction", "component", "cache", "entries_removed", removed)
	}
	return removed
}

// Stats holds cache statistics.
type Stats struct {
	Entries   int
	Hits      int64
	Misses    int64
	Evictions int64
}

// Stats returns current cache statistics.
func (c *CoordCache[V]) Stats() Stats {
	c.mu.RLock()
	count := len(c.entries)
	c.mu.RUnlock()

	return Stats{
		Entries:   count,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
