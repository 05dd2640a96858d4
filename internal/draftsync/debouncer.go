package draftsync

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of snapshots into a single call made once the input has been
// quiet for the configured window. It owns at most one timer at a time.
type Debouncer struct {
	window time.Duration
	fn     func(Snapshot)

	mu         sync.Mutex
	timer      *time.Timer
	pending    *Snapshot
	generation uint64
}

// NewDebouncer builds a debouncer that calls fn after window of quiescence.
func NewDebouncer(window time.Duration, fn func(Snapshot)) *Debouncer {
	if window <= 0 {
		window = 2 * time.Second
	}
	return &Debouncer{window: window, fn: fn}
}

// Schedule replaces any pending snapshot with snap and restarts the quiet window.
func (d *Debouncer) Schedule(snap Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.pending = &snap
	d.generation++
	gen := d.generation
	d.timer = time.AfterFunc(d.window, func() { d.fire(gen) })
}

// Cancel drops the pending snapshot without calling fn.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.pending = nil
}

// Flush calls fn synchronously with the pending snapshot, if any, and reports whether it did.
func (d *Debouncer) Flush() bool {
	snap, ok := d.Take()
	if !ok {
		return false
	}
	d.fn(snap)
	return true
}

// Take removes and returns the pending snapshot without calling fn.
func (d *Debouncer) Take() (Snapshot, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	if d.pending == nil {
		return Snapshot{}, false
	}
	snap := *d.pending
	d.pending = nil
	return snap, true
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	// a timer that lost the race with Schedule, Cancel or Flush must not run
	if gen != d.generation || d.pending == nil {
		d.mu.Unlock()
		return
	}
	snap := *d.pending
	d.pending = nil
	d.timer = nil
	d.mu.Unlock()

	d.fn(snap)
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.generation++
}
