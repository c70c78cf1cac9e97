package cache

import (
	"time"

	"github.com/gridstat/gridstat/internal/domain/model"
	"github.com/gridstat/gridstat/pkg/logger"
)

// Option applies a configuration option to the Cache.
type Option func(*Cache)

// WithCapacity bounds the total cached record count.
func WithCapacity(records int) Option {
	return func(c *Cache) {
		if records > 0 {
			c.capacity = records
		}
	}
}

// WithShardCount sets how many independent LRU segments the cache
// splits into.
func WithShardCount(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.shardCount = n
		}
	}
}

// WithTTL sets the in-season TTL for a category. Zero disables caching
// for the category.
func WithTTL(category model.Category, ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl[category] = ttl
	}
}

// WithOffseasonTTL overrides a category's TTL outside the active season.
func WithOffseasonTTL(category model.Category, ttl time.Duration) Option {
	return func(c *Cache) {
		c.offTTL[category] = ttl
	}
}

// WithSeasonWindow sets the months (inclusive, wrapping over the new
// year) during which in-season TTLs apply.
func WithSeasonWindow(from, to time.Month) Option {
	return func(c *Cache) {
		c.seasonFrom = from
		c.seasonTo = to
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets a custom logger for the cache.
func WithLogger(l logger.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}
