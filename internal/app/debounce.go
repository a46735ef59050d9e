package app

import (
	"sort"
	"sync"
	"time"
)

// Debouncer coalesces keyed tasks: scheduling a key again before its window
// elapses replaces the pending task and restarts the window, so only the last
// intent for a key runs.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*debounced
	stopped bool
}

type debounced struct {
	timer *time.Timer
	fn    func()
}

// NewDebouncer creates a Debouncer with the given window.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay, pending: make(map[string]*debounced)}
}

// Schedule runs fn after the window unless key is scheduled again first.
func (d *Debouncer) Schedule(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
	}
	p := &debounced{fn: fn}
	p.timer = time.AfterFunc(d.delay, func() { d.fire(key, p) })
	d.pending[key] = p
}

func (d *Debouncer) fire(key string, p *debounced) {
	d.mu.Lock()
	if d.pending[key] != p {
		// Replaced, flushed or stopped while the timer was firing.
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()
	p.fn()
}

// Flush runs every pending task now, in key order, and returns how many ran.
func (d *Debouncer) Flush() int {
	d.mu.Lock()
	keys := make([]string, 0, len(d.pending))
	for k := range d.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tasks := make([]func(), 0, len(keys))
	for _, k := range keys {
		p := d.pending[k]
		p.timer.Stop()
		tasks = append(tasks, p.fn)
		delete(d.pending, k)
	}
	d.mu.Unlock()

	for _, fn := range tasks {
		fn()
	}
	return len(tasks)
}

// Pending returns the number of scheduled tasks.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels every pending task without running it. Later Schedule calls
// are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, k)
	}
	d.stopped = true
}
