// Package datacache provides an embeddable key/value cache with per-entry
// TTL, a bounded number of entries with policy-driven eviction, an optional
// persistent mirror, compute-on-miss with single-flight, a background reaper
// for expired entries and live usage metrics.
//
// A cache is created from a Config and must be closed by its owner:
//
//	cfg := datacache.DefaultConfig()
//	cfg.MaxEntries = 500
//	c, err := datacache.New[string](cfg)
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	_ = c.Set("greeting", "hello", datacache.WithTTL(time.Minute))
//	v, ok := c.Get("greeting")
package datacache
