package datacache

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/datacache/pkg/datacache/storage"
	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Cache is a bounded key/value store with per-entry TTL and an optional
// persistent mirror. The in-memory map is always the source of truth; the
// adapter only mirrors it.
type Cache[V any] struct {
	config Config
	logger *log.Logger
	now    func() time.Time

	// Entry state, guarded by mu
	mu    sync.RWMutex
	items map[string]*item[V]
	queue *evictionQueue[V]
	size  int64
	seq   uint64

	// Persistence
	adapter    storage.Adapter
	persistent bool
	framer     *framer
	limiter    *rate.Limiter
	suppressed atomic.Int64

	metrics metrics
	reaper  *Reaper
	flights singleflight.Group

	closeOnce sync.Once
}

// New creates a cache from cfg. A nil cfg uses DefaultConfig. A persistent
// storage type loads the entries already stored under the prefix; when the
// storage cannot be opened the cache logs the failure and runs memory-only.
func New[V any](cfg *Config) (*Cache[V], error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	config := cfg.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	f, err := newFramer(config.CompressionThreshold)
	if err != nil {
		return nil, err
	}

	c := &Cache[V]{
		config:  config,
		logger:  config.Logger,
		now:     config.Clock,
		items:   make(map[string]*item[V]),
		queue:   newEvictionQueue[V](config.EvictionPolicy),
		framer:  f,
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}

	c.adapter, c.persistent = c.openAdapter()
	if c.persistent {
		c.mu.Lock()
		c.loadLocked()
		c.mu.Unlock()
	}

	c.reaper = NewReaper(config.CleanupInterval, c.Cleanup)
	c.reaper.Start()

	return c, nil
}

// openAdapter builds the configured adapter, degrading to memory-only when
// the storage is unavailable.
func (c *Cache[V]) openAdapter() (storage.Adapter, bool) {
	if c.config.Adapter != nil {
		return c.config.Adapter, true
	}

	var (
		adapter storage.Adapter
		err     error
	)
	switch c.config.StorageType {
	case StorageLocal:
		var local *storage.LocalAdapter
		if local, err = storage.NewLocalAdapter(c.config.Fs, c.config.StorageDir, c.config.StoragePrefix); err == nil {
			adapter = local
		}
	case StorageSession:
		var session *storage.SessionAdapter
		if session, err = storage.NewSessionAdapter(c.config.Fs, c.config.StorageDir, c.config.SessionID, c.config.StoragePrefix); err == nil {
			adapter = session
		}
	case StorageMulti:
		var local *storage.LocalAdapter
		if local, err = storage.NewLocalAdapter(c.config.Fs, c.config.StorageDir, c.config.StoragePrefix); err == nil {
			adapter = storage.NewMultiLevelAdapter(storage.NewMemoryAdapter(c.config.StoragePrefix), local)
		}
	default:
		return storage.NopAdapter{}, false
	}

	if err != nil {
		c.logger.Warn("Storage unavailable, running memory-only",
			"storage", c.config.StorageType,
			"err", err)
		return storage.NopAdapter{}, false
	}
	return adapter, true
}

// Set stores value under key, replacing any existing entry. Without WithTTL
// the configured default TTL applies. If the key is new and the cache is
// full, one entry is evicted first. Persistence failures are logged, never
// returned; the only error is ErrItemTooLarge.
func (c *Cache[V]) Set(key string, value V, opts ...SetOption) error {
	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}

	now := c.now()
	it := &item[V]{
		Entry: Entry[V]{
			Key:            key,
			Value:          value,
			CreatedAt:      now,
			LastAccessedAt: now,
			Metadata:       maps.Clone(o.metadata),
		},
		size: c.entrySize(key, value),
	}

	ttl := c.config.DefaultTTL
	if o.ttlSet {
		ttl = o.ttl
	}
	if ttl != 0 {
		it.ExpiryAt = now.Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	maxSize := c.config.MaxSizeBytes
	if maxSize > 0 && it.size > maxSize {
		return fmt.Errorf("%w: %q is %d bytes, limit %d", ErrItemTooLarge, key, it.size, maxSize)
	}

	// The new record overwrites the stored one, so only memory is touched
	if old, ok := c.items[key]; ok {
		c.removeLocked(old, false)
	}

	for len(c.items) >= c.config.MaxEntries && c.evictLocked() {
	}
	for maxSize > 0 && c.size+it.size > maxSize && c.evictLocked() {
	}

	c.seq++
	it.seq = c.seq
	c.items[key] = it
	c.queue.add(it)
	c.size += it.size

	c.metrics.recordSet()
	c.persistLocked(it)

	return nil
}

// Get returns the value stored under key. An expired entry is removed and
// reported as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	e, ok := c.GetEntry(key)
	return e.Value, ok
}

// GetEntry is Get returning a copy of the whole entry.
func (c *Cache[V]) GetEntry(key string) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[key]
	if !ok {
		c.metrics.recordMiss()
		return Entry[V]{}, false
	}

	now := c.now()
	if it.Expired(now) {
		c.expireLocked(it)
		c.metrics.recordMiss()
		return Entry[V]{}, false
	}

	it.LastAccessedAt = now
	it.AccessCount++
	c.seq++
	it.seq = c.seq
	c.queue.update(it)

	c.metrics.recordHit()
	return it.snapshot(), true
}

// Has reports whether a live entry exists for key. It does not count as an
// access or touch the hit/miss counters, but an expired entry it finds is
// removed.
func (c *Cache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[key]
	if !ok {
		return false
	}
	if it.Expired(c.now()) {
		c.expireLocked(it)
		return false
	}
	return true
}

// Delete removes key from the cache and its storage and reports whether it
// was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[key]
	if !ok {
		return false
	}

	c.removeLocked(it, true)
	c.metrics.recordDelete()
	return true
}

// Clear removes every entry from the cache and from its storage namespace.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*item[V])
	c.queue.reset()
	c.size = 0

	if c.persistent {
		if err := safeCall(c.adapter.Clear); err != nil {
			c.storageFailure("clear", "", err)
		}
	}
}

// GetOrSet returns the cached value for key, or calls compute, stores its
// result with opts and returns it. A compute error is returned as is and
// nothing is cached.
//
// Concurrent callers that miss on the same key share a single compute. The
// compute runs with a context detached from any one caller's cancellation;
// a caller whose ctx is done stops waiting and gets ctx.Err().
func (c *Cache[V]) GetOrSet(ctx context.Context, key string, compute func(context.Context) (V, error), opts ...SetOption) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	ch := c.flights.DoChan(key, func() (any, error) {
		// An earlier flight may have filled the key since our miss
		if e, ok := c.peek(key); ok {
			return e.Value, nil
		}

		v, err := runCompute(context.WithoutCancel(ctx), compute)
		if err != nil {
			return nil, err
		}

		if err := c.Set(key, v, opts...); err != nil {
			c.logger.Warn("Computed value not cached", "key", key, "err", err)
		}
		return v, nil
	})

	var zero V
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Keys returns the live keys in sorted order.
func (c *Cache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	keys := make([]string, 0, len(c.items))
	for key, it := range c.items {
		if !it.Expired(now) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Entries returns the live key/value pairs sorted by key.
func (c *Cache[V]) Entries() []KeyValue[V] {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	out := make([]KeyValue[V], 0, len(c.items))
	for key, it := range c.items {
		if !it.Expired(now) {
			out = append(out, KeyValue[V]{Key: key, Value: it.Value})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Len returns the number of resident entries, including expired entries
// that have not been removed yet.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Cleanup removes every expired entry from the cache and its storage and
// returns how many were removed. A failure on one entry is logged and does
// not stop the sweep.
func (c *Cache[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var expired []*item[V]
	for _, it := range c.items {
		if it.Expired(now) {
			expired = append(expired, it)
		}
	}

	removed := 0
	for _, it := range expired {
		if err := c.sweepLocked(it); err != nil {
			c.logger.Warn("Sweep failed", "err", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		c.logger.Debug("Removed expired entries", "count", removed)
	}
	return removed
}

// sweepLocked removes one expired entry, converting a panic into a
// SweepError.
func (c *Cache[V]) sweepLocked(it *item[V]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &SweepError{Key: it.Key, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	c.removeLocked(it, false)
	c.metrics.recordExpiration()

	if c.persistent {
		if rmErr := safeCall(func() error { return c.adapter.RemoveItem(it.Key) }); rmErr != nil {
			c.metrics.recordPersistError()
			// Removed from memory, which is what callers observe
			c.logger.Warn("Sweep could not remove stored entry", "err", &SweepError{Key: it.Key, Err: rmErr})
		}
	}
	return nil
}

// Stats returns a snapshot of the cache's metrics.
func (c *Cache[V]) Stats() Stats {
	var s Stats
	c.metrics.fill(&s)
	s.StorageType = c.config.StorageType
	s.EvictionPolicy = c.config.EvictionPolicy

	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	s.ItemCount = len(c.items)
	s.ApproxSizeBytes = c.size

	var oldest, newest time.Time
	var accesses int64
	for _, it := range c.items {
		if it.Expired(now) {
			s.ExpiredCount++
		}
		if oldest.IsZero() || it.CreatedAt.Before(oldest) {
			oldest = it.CreatedAt
		}
		if it.CreatedAt.After(newest) {
			newest = it.CreatedAt
		}
		accesses += it.AccessCount
	}

	if s.ItemCount > 0 {
		s.OldestItemAge = now.Sub(oldest)
		s.NewestItemAge = now.Sub(newest)
		s.AverageAccessCount = float64(accesses) / float64(s.ItemCount)
	}
	return s
}

// Reaper returns the cache's background reaper so owners can change its
// interval.
func (c *Cache[V]) Reaper() *Reaper { return c.reaper }

// Close stops the reaper, closes the adapter and drops all entries. The
// cache stays usable as a memory-only cache. Close is idempotent.
func (c *Cache[V]) Close() error {
	var err error
	c.closeOnce.Do(func() {
		// The sweep takes c.mu, so stop it before locking
		c.reaper.shutdown()

		c.mu.Lock()
		defer c.mu.Unlock()

		if closeErr := safeCall(c.adapter.Close); closeErr != nil {
			err = fmt.Errorf("failed to close storage: %w", closeErr)
		}
		c.adapter = storage.NopAdapter{}
		c.persistent = false

		c.items = make(map[string]*item[V])
		c.queue.reset()
		c.size = 0
		c.framer.close()
	})
	return err
}

// Private helper methods

// peek returns a live entry without counting an access.
func (c *Cache[V]) peek(key string) (Entry[V], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.items[key]
	if !ok || it.Expired(c.now()) {
		return Entry[V]{}, false
	}
	return it.snapshot(), true
}

// evictLocked removes the policy's victim (must be called with lock held).
func (c *Cache[V]) evictLocked() bool {
	victim := c.queue.peek()
	if victim == nil {
		return false
	}

	c.removeLocked(victim, true)
	c.metrics.recordEviction()
	c.logger.Debug("Evicted entry", "key", victim.Key, "policy", c.config.EvictionPolicy)
	return true
}

// expireLocked removes an entry found expired on read (must be called with
// lock held).
func (c *Cache[V]) expireLocked(it *item[V]) {
	c.removeLocked(it, true)
	c.metrics.recordExpiration()
}

// removeLocked drops an item from memory and, when fromStorage is set, from
// the adapter (must be called with lock held).
func (c *Cache[V]) removeLocked(it *item[V], fromStorage bool) {
	delete(c.items, it.Key)
	c.queue.remove(it)
	c.size -= it.size

	if fromStorage && c.persistent {
		c.dropStored(it.Key)
	}
}

// entrySize estimates the footprint of an entry; values the codec cannot
// encode count as zero.
func (c *Cache[V]) entrySize(key string, value V) int64 {
	data, err := c.config.Codec.Marshal(value)
	if err != nil {
		return 0
	}
	return int64(len(key) + len(data))
}

func (it *item[V]) snapshot() Entry[V] {
	e := it.Entry
	e.Metadata = maps.Clone(it.Metadata)
	return e
}

// runCompute calls compute, turning a panic into an error.
func runCompute[V any](ctx context.Context, compute func(context.Context) (V, error)) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compute panic: %v", r)
		}
	}()
	return compute(ctx)
}

// safeCall runs an adapter operation, turning a panic into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("adapter panic: %v", r)
		}
	}()
	return fn()
}
