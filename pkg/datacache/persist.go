package datacache

import (
	"errors"
	"fmt"

	"github.com/dgnsrekt/datacache/pkg/datacache/storage"
)

// persistLocked mirrors one entry to the adapter (must be called with lock
// held).
func (c *Cache[V]) persistLocked(it *item[V]) {
	if !c.persistent {
		return
	}

	data, err := c.encode(it)
	if err != nil {
		c.storageFailure("encode", it.Key, err)
		// Drop the previous record so a restart cannot resurrect it
		if rmErr := safeCall(func() error { return c.adapter.RemoveItem(it.Key) }); rmErr != nil {
			c.storageFailure("remove", it.Key, rmErr)
		}
		return
	}

	if err := safeCall(func() error { return c.adapter.SetItem(it.Key, data) }); err != nil {
		c.storageFailure("write", it.Key, err)
	}
}

func (c *Cache[V]) encode(it *item[V]) ([]byte, error) {
	data, err := c.config.Codec.Marshal(recordFromEntry(&it.Entry))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return c.framer.encode(data), nil
}

func (c *Cache[V]) decode(key string, data []byte) (*item[V], error) {
	raw, err := c.framer.decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	var r record[V]
	if err := c.config.Codec.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return &item[V]{Entry: *r.entry(key)}, nil
}

// loadLocked populates the cache from the adapter. Expired and unreadable
// records are removed from storage as they are found (must be called with
// lock held).
func (c *Cache[V]) loadLocked() {
	var keys []string
	err := safeCall(func() (err error) {
		keys, err = c.adapter.Keys()
		return err
	})
	if err != nil {
		c.storageFailure("list", "", err)
		return
	}

	now := c.now()
	var discarded int
	for _, key := range keys {
		var data []byte
		err := safeCall(func() (err error) {
			data, err = c.adapter.GetItem(key)
			return err
		})
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			c.storageFailure("read", key, err)
			continue
		}

		it, err := c.decode(key, data)
		if err != nil || it.Expired(now) {
			if err != nil {
				c.logger.Debug("Discarding unreadable entry", "key", key, "err", err)
			}
			c.dropStored(key)
			discarded++
			continue
		}

		it.size = c.entrySize(key, it.Value)
		c.seq++
		it.seq = c.seq
		c.items[key] = it
		c.queue.add(it)
		c.size += it.size
	}

	for len(c.items) > c.config.MaxEntries && c.evictLocked() {
	}
	for c.config.MaxSizeBytes > 0 && c.size > c.config.MaxSizeBytes && c.evictLocked() {
	}

	c.logger.Debug("Loaded persisted entries",
		"storage", c.config.StorageType,
		"loaded", len(c.items),
		"discarded", discarded)
}

func (c *Cache[V]) dropStored(key string) {
	if err := safeCall(func() error { return c.adapter.RemoveItem(key) }); err != nil {
		c.storageFailure("remove", key, err)
	}
}

// storageFailure counts a persistence error and logs it, throttled so a
// broken backend cannot flood the log.
func (c *Cache[V]) storageFailure(op, key string, err error) {
	c.metrics.recordPersistError()

	if !c.limiter.Allow() {
		c.suppressed.Inc()
		return
	}

	fields := []any{"op", op, "err", err}
	if key != "" {
		fields = append(fields, "key", key)
	}
	if n := c.suppressed.Swap(0); n > 0 {
		fields = append(fields, "suppressed", n)
	}
	c.logger.Warn("Persistence failed", fields...)
}
