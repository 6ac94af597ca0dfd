package cache

import (
	"fmt"

	"github.com/mac-/eidetic/health"
)

// Health reports the cache state for a health.Monitor. A closed cache is
// unhealthy. A full cache that turns away new keys is degraded; one that
// evicts instead stays healthy.
func (c *Engine[V]) Health() health.Status {
	c.mu.Lock()
	size := len(c.items)
	closed := c.closed
	c.mu.Unlock()

	name := c.name
	if name == "" {
		name = "cache"
	}

	metrics := &health.Metrics{
		Uptime:     c.stats.Uptime(),
		Size:       size,
		Capacity:   c.maxSize,
		HitRatio:   c.stats.HitRatio(),
		Rejections: c.stats.Rejections(),
	}

	var status health.Status
	switch {
	case closed:
		status = health.NewUnhealthy(name, "cache closed")
	case size >= c.maxSize && !c.canPutWhenFull:
		status = health.NewDegraded(name, fmt.Sprintf("cache full (%d entries), new keys are rejected", size))
	default:
		status = health.NewHealthy(name, fmt.Sprintf("%d of %d entries in use", size, c.maxSize))
	}

	return status.WithMetrics(metrics)
}
