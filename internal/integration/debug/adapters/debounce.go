package adapters

import (
	"sync"
	"time"
)

// debouncer runs fn once calls have stopped arriving for delay. fn never
// runs concurrently with itself.
type debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	seq   uint64
	run   sync.Mutex
	fn    func()
}

func newDebouncer(delay time.Duration, fn func()) *debouncer {
	return &debouncer{delay: delay, fn: fn}
}

// Call schedules fn, pushing back any call already scheduled.
func (d *debouncer) Call() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		current := d.seq == seq
		d.mu.Unlock()
		if !current {
			return
		}
		d.run.Lock()
		defer d.run.Unlock()
		d.fn()
	})
}

// Cancel drops the scheduled call, if any.
func (d *debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
}
