package datacache

import (
	"testing"
	"time"
)

func TestEvictionPolicies(t *testing.T) {
	tests := []struct {
		policy EvictionPolicy
		victim string
	}{
		// a: oldest insertion, read last
		// b: read twice, long ago
		// c: never read
		{EvictLRU, "c"},
		{EvictLFU, "c"},
		{EvictFIFO, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			clock := newFakeClock(0)
			cfg := testConfig(clock)
			cfg.MaxEntries = 3
			cfg.EvictionPolicy = tt.policy
			c := newTestCache(t, cfg)

			mustSet(t, c, "a", "1")
			clock.Advance(time.Second)
			mustSet(t, c, "b", "2")
			clock.Advance(time.Second)
			mustSet(t, c, "c", "3")
			clock.Advance(time.Second)

			c.Get("b")
			c.Get("b")
			clock.Advance(time.Second)
			c.Get("a")
			clock.Advance(time.Second)

			mustSet(t, c, "d", "4")

			if c.Has(tt.victim) {
				t.Errorf("%s should have been evicted; keys = %v", tt.victim, c.Keys())
			}
			if n := c.Len(); n != 3 {
				t.Errorf("Len = %d, want 3", n)
			}
		})
	}
}

func TestEvictionPolicy_LFUFavorsFrequent(t *testing.T) {
	clock := newFakeClock(0)
	cfg := testConfig(clock)
	cfg.MaxEntries = 2
	cfg.EvictionPolicy = EvictLFU
	c := newTestCache(t, cfg)

	mustSet(t, c, "hot", "1")
	mustSet(t, c, "cold", "2")
	for i := 0; i < 5; i++ {
		c.Get("hot")
	}
	clock.Advance(time.Second)
	c.Get("cold") // more recent, but less frequent

	mustSet(t, c, "new", "3")
	if c.Has("cold") {
		t.Error("LFU kept the less frequently read entry")
	}
	if !c.Has("hot") {
		t.Error("LFU evicted the most frequently read entry")
	}
}

func TestEvictionQueue_RemoveMissing(t *testing.T) {
	q := newEvictionQueue[string](EvictLRU)

	a := &item[string]{Entry: Entry[string]{Key: "a"}}
	b := &item[string]{Entry: Entry[string]{Key: "b"}}
	q.add(a)
	q.remove(b) // never added
	q.remove(a)
	q.remove(a) // already removed

	if q.Len() != 0 || q.peek() != nil {
		t.Errorf("queue not empty: %d items", q.Len())
	}
}
