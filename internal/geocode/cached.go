package geocode

import (
	"context"
	"log/slog"

	"github.com/star/isstracker/internal/cache"
)

// Reverser is anything that can reverse geocode.
type Reverser interface {
	Reverse(ctx context.Context, lat, lon float64) (Place, bool, error)
}

type lookup struct {
	place Place
	ok    bool
}

// Cached serves repeated lookups for nearby coordinates from a TTL cache.
// Failures are never cached.
type Cached struct {
	next   Reverser
	cache  *cache.CoordCache[lookup]
	logger *slog.Logger
}

// NewCached wraps next with a coordinate cache built from cfg.
func NewCached(next Reverser, cfg cache.Config, logger *slog.Logger) *Cached {
	return &Cached{
		next:   next,
		cache:  cache.New[lookup](cfg, logger),
		logger: logger,
	}
}

// Reverse implements Reverser.
func (c *Cached) Reverse(ctx context.Context, lat, lon float64) (Place, bool, error) {
	if hit, ok := c.cache.Get(lat, lon); ok {
		return hit.place, hit.ok, nil
	}

	place, ok, err := c.next.Reverse(ctx, lat, lon)
	if err != nil {
		return nil, false, err
	}
	c.cache.Put(lat, lon, lookup{place: place, ok: ok})
	return place, ok, nil
}

// Start runs the cache eviction loop until ctx is cancelled.
func (c *Cached) Start(ctx context.Context) {
	c.cache.Start(ctx)
}

// Stats returns cache statistics.
func (c *Cached) Stats() cache.Stats {
	return c.cache.Stats()
}
