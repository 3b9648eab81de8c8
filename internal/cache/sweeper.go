package cache

import (
	"context"
	"time"
)

// Start runs the eviction loop every Sweep interval. Blocks until ctx is cancelled.
func (c *CoordCache[V]) Start(ctx context.Context) {
	ticker := time.NewTicker(c.config.Sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("cache sweeper stopped", "component", "cache")
			return
		case <-ticker.C:
			c.EvictExpired()
		}
	}
}
