package datacache

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(ms int64) *fakeClock {
	return &fakeClock{now: time.UnixMilli(ms)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fakeClock) SetMillis(ms int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = time.UnixMilli(ms)
}

// testConfig returns a quiet memory-only config with the reaper disabled.
func testConfig(clock *fakeClock) *Config {
	cfg := DefaultConfig()
	cfg.CleanupInterval = 0
	cfg.Logger = log.New(io.Discard)
	if clock != nil {
		cfg.Clock = clock.Now
	}
	return cfg
}

func newTestCache(t *testing.T, cfg *Config) *Cache[string] {
	t.Helper()

	c, err := New[string](cfg)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func mustSet(t *testing.T, c *Cache[string], key, value string, opts ...SetOption) {
	t.Helper()

	if err := c.Set(key, value, opts...); err != nil {
		t.Fatalf("Set(%q) failed: %v", key, err)
	}
}
