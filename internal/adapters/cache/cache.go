// Package cache provides the TTL-bound read-through cache in front of
// the versioned store.
package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gridstat/gridstat/internal/domain/model"
	"github.com/gridstat/gridstat/pkg/logger"
	"github.com/gridstat/gridstat/pkg/metrics"
)

// Default cache configuration constants.
const (
	defaultCapacity   = 50_000
	defaultShardCount = 16
)

// Source is the backing read the cache falls through to on miss or
// expiry. Satisfied by repository.Store.
type Source interface {
	Read(ctx context.Context, key model.WeekKey, category model.Category) (model.Batch, uint64, error)
}

type entryKey struct {
	key model.WeekKey
	cat model.Category
}

// entry is one cached (weekKey, category) batch. size is the record
// count charged against the capacity budget.
type entry struct {
	k         entryKey
	batch     model.Batch
	seq       uint64
	expiresAt time.Time
	size      int
}

// shard holds an independent LRU segment. Invalidation and eviction
// only ever take one shard's lock.
type shard struct {
	mu      sync.Mutex
	entries map[entryKey]*list.Element
	lru     *list.List // front = most recently used
	records int

	// floor is the minimum sequence a fill may insert per key, raised
	// by OnCommit. A miss whose source read raced with a commit carries
	// a stale seq and must not land after the invalidation.
	floor map[entryKey]uint64
}

// Cache implements the per-category TTL read-through policy with a
// record-count LRU bound across shards.
type Cache struct {
	source     Source
	capacity   int
	shardCount int
	shards     []*shard
	shardCap   int
	ttl        map[model.Category]time.Duration
	offTTL     map[model.Category]time.Duration
	seasonFrom time.Month
	seasonTo   time.Month
	now        func() time.Time
	records    atomic.Int64
	log        logger.Logger
}

// New constructs a cache in front of source.
func New(source Source, opts ...Option) *Cache {
	c := &Cache{
		source:     source,
		capacity:   defaultCapacity,
		shardCount: defaultShardCount,
		ttl:        map[model.Category]time.Duration{},
		offTTL:     map[model.Category]time.Duration{},
		seasonFrom: time.August,
		seasonTo:   time.February,
		now:        time.Now,
		log:        logger.Get().Named("cache"),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.shardCap = c.capacity / c.shardCount
	if c.shardCap < 1 {
		c.shardCap = 1
	}
	c.shards = make([]*shard, c.shardCount)
	for i := range c.shards {
		c.shards[i] = &shard{
			entries: make(map[entryKey]*list.Element),
			lru:     list.New(),
			floor:   make(map[entryKey]uint64),
		}
	}
	return c
}

// Get returns the batch for a key, from cache when fresh, falling
// through to the source otherwise. The boolean reports a cache hit.
func (c *Cache) Get(ctx context.Context, key model.WeekKey, category model.Category) (model.Batch, uint64, bool, error) {
	ttl := c.ttlFor(category)
	ek := entryKey{key: key, cat: category}
	sh := c.shardFor(ek)

	if ttl > 0 {
		sh.mu.Lock()
		if el, ok := sh.entries[ek]; ok {
			e := el.Value.(*entry)
			if c.now().Before(e.expiresAt) {
				sh.lru.MoveToFront(el)
				batch, seq := e.batch, e.seq
				sh.mu.Unlock()
				metrics.RecordCacheHit()
				return batch, seq, true, nil
			}
			// Expired entries are dropped on sight so the budget frees
			// up before the refill.
			c.removeLocked(sh, el)
		}
		sh.mu.Unlock()
	}
	metrics.RecordCacheMiss()

	batch, seq, err := c.source.Read(ctx, key, category)
	if err != nil {
		return nil, 0, false, err
	}

	if ttl > 0 {
		c.insert(sh, ek, batch, seq, ttl)
	}
	return batch, seq, false, nil
}

// OnCommit evicts the entry for exactly this key and raises its fill
// floor so an in-flight miss cannot re-insert the superseded version.
// Write invalidation takes precedence over any remaining TTL.
func (c *Cache) OnCommit(key model.WeekKey, category model.Category, seq uint64) {
	ek := entryKey{key: key, cat: category}
	sh := c.shardFor(ek)

	sh.mu.Lock()
	if seq > sh.floor[ek] {
		sh.floor[ek] = seq
	}
	el, ok := sh.entries[ek]
	if ok {
		c.removeLocked(sh, el)
	}
	sh.mu.Unlock()

	if ok {
		metrics.RecordCacheInvalidation()
		c.log.Debug(context.Background(), "cache invalidated",
			logger.String("key", key.String()),
			logger.String("category", category.String()),
			logger.Uint64("seq", seq),
		)
	}
}

// Records returns the total record count currently cached.
func (c *Cache) Records() int {
	return int(c.records.Load())
}

func (c *Cache) insert(sh *shard, ek entryKey, batch model.Batch, seq uint64, ttl time.Duration) {
	e := &entry{
		k:         ek,
		batch:     batch,
		seq:       seq,
		expiresAt: c.now().Add(ttl),
		size:      len(batch),
	}

	sh.mu.Lock()
	if e.seq < sh.floor[ek] {
		sh.mu.Unlock()
		return
	}
	if el, ok := sh.entries[ek]; ok {
		c.removeLocked(sh, el)
	}
	sh.entries[ek] = sh.lru.PushFront(e)
	sh.records += e.size
	c.records.Add(int64(e.size))

	// Evict least-recently-used entries until this shard is back under
	// its share of the record budget. The new entry itself survives.
	for sh.records > c.shardCap && sh.lru.Len() > 1 {
		back := sh.lru.Back()
		if back == nil || back.Value.(*entry).k == ek {
			break
		}
		c.removeLocked(sh, back)
		metrics.RecordCacheEviction()
	}
	sh.mu.Unlock()

	metrics.UpdateCachedRecords(c.Records())
}

// removeLocked unlinks an element. Caller holds the shard lock.
func (c *Cache) removeLocked(sh *shard, el *list.Element) {
	e := el.Value.(*entry)
	delete(sh.entries, e.k)
	sh.lru.Remove(el)
	sh.records -= e.size
	c.records.Add(int64(-e.size))
}

// ttlFor returns the effective TTL for a category right now. Zero
// means the category is never served from cache.
func (c *Cache) ttlFor(category model.Category) time.Duration {
	if !c.inSeason() {
		if ttl, ok := c.offTTL[category]; ok {
			return ttl
		}
	}
	return c.ttl[category]
}

// inSeason reports whether now falls inside the active season window,
// which wraps over the new year (August through February by default).
func (c *Cache) inSeason() bool {
	m := c.now().Month()
	if c.seasonFrom <= c.seasonTo {
		return m >= c.seasonFrom && m <= c.seasonTo
	}
	return m >= c.seasonFrom || m <= c.seasonTo
}

// shardFor assigns an entry key to a shard by FNV-style hashing of the
// key string.
func (c *Cache) shardFor(ek entryKey) *shard {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for _, b := range []byte(ek.key.String() + "/" + ek.cat.String()) {
		h ^= uint64(b)
		h *= prime64
	}
	return c.shards[h%uint64(len(c.shards))]
}
