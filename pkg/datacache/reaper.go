package datacache

import (
	"sync"
	"time"
)

// Reaper runs a sweep function on a fixed interval in its own goroutine.
type Reaper struct {
	sweep func() int

	mu       sync.Mutex
	interval time.Duration
	stop     chan struct{}
	wg       sync.WaitGroup
	closed   bool // set when the owning cache closes; Start and Reset become no-ops

	// onSweep, when set, receives the count from every tick (tests).
	onSweep func(removed int)
}

// NewReaper creates a stopped reaper.
func NewReaper(interval time.Duration, sweep func() int) *Reaper {
	return &Reaper{sweep: sweep, interval: interval}
}

// Start starts the sweep goroutine. A zero interval leaves the reaper
// stopped; starting a running reaper is a no-op.
func (r *Reaper) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.startLocked()
}

// Stop cancels the ticker and waits for the goroutine to exit.
func (r *Reaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked()
}

// Reset restarts the reaper with a new interval. A zero interval stops it.
func (r *Reaper) Reset(interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked()
	r.interval = interval
	r.startLocked()
}

// Running reports whether the sweep goroutine is active.
func (r *Reaper) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.stop != nil
}

// Interval returns the current sweep interval.
func (r *Reaper) Interval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.interval
}

// shutdown stops the reaper for good.
func (r *Reaper) shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked()
	r.closed = true
}

func (r *Reaper) startLocked() {
	if r.closed || r.stop != nil || r.interval <= 0 {
		return
	}

	stop := make(chan struct{})
	r.stop = stop
	ticker := time.NewTicker(r.interval)
	onSweep := r.onSweep

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				removed := r.sweep()
				if onSweep != nil {
					onSweep(removed)
				}
			case <-stop:
				return
			}
		}
	}()
}

func (r *Reaper) stopLocked() {
	if r.stop == nil {
		return
	}

	close(r.stop)
	r.stop = nil
	r.wg.Wait()
}
