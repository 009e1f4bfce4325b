package datacache

import (
	"testing"
	"time"

	"go.uber.org/atomic"
)

func TestReaper_StartStop(t *testing.T) {
	var sweeps atomic.Int64
	r := NewReaper(10*time.Millisecond, func() int {
		sweeps.Inc()
		return 0
	})

	if r.Running() {
		t.Fatal("NewReaper should return a stopped reaper")
	}

	r.Start()
	r.Start() // no-op
	if !r.Running() {
		t.Fatal("Reaper not running after Start")
	}

	time.Sleep(100 * time.Millisecond)
	r.Stop()

	n := sweeps.Load()
	if n == 0 {
		t.Fatal("Reaper never swept")
	}

	time.Sleep(50 * time.Millisecond)
	if sweeps.Load() != n {
		t.Error("Reaper swept after Stop")
	}

	r.Stop() // idempotent
}

func TestReaper_ZeroIntervalDisabled(t *testing.T) {
	r := NewReaper(0, func() int { return 0 })
	r.Start()
	if r.Running() {
		t.Error("Reaper with zero interval should not run")
	}
}

func TestReaper_Reset(t *testing.T) {
	r := NewReaper(time.Hour, func() int { return 0 })
	r.Start()
	defer r.Stop()

	r.Reset(time.Minute)
	if !r.Running() || r.Interval() != time.Minute {
		t.Errorf("After Reset: running=%v interval=%s", r.Running(), r.Interval())
	}

	r.Reset(0)
	if r.Running() {
		t.Error("Reset(0) should stop the reaper")
	}

	r.Reset(time.Second)
	if !r.Running() {
		t.Error("Reset should restart a stopped reaper")
	}
}

func TestCache_ReaperSweeps(t *testing.T) {
	clock := newFakeClock(0)
	cfg := testConfig(clock)
	c := newTestCache(t, cfg)

	swept := make(chan int, 16)
	c.reaper.Stop()
	c.reaper.onSweep = func(removed int) {
		select {
		case swept <- removed:
		default:
		}
	}

	mustSet(t, c, "a", "1", WithTTL(time.Second))
	mustSet(t, c, "b", "2", WithTTL(time.Second))
	mustSet(t, c, "keep", "3", WithTTL(0))
	clock.Advance(time.Minute)

	c.reaper.Reset(5 * time.Millisecond)

	select {
	case removed := <-swept:
		if removed != 2 {
			t.Errorf("First sweep removed %d, want 2", removed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Reaper never swept")
	}

	// The reaper never touches live entries
	if !c.Has("keep") {
		t.Error("Sweep removed a live entry")
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestCache_ReaperStaysStoppedAfterClose(t *testing.T) {
	cfg := testConfig(nil)
	cfg.CleanupInterval = time.Hour
	c, err := New[string](cfg)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	c.Reaper().Reset(time.Millisecond)
	c.Reaper().Start()
	if c.Reaper().Running() {
		t.Error("Reaper restarted on a closed cache")
	}
}
