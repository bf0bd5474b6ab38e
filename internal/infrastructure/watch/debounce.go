// Package watch turns edits to the workspace files into change notifications
// for the board.
package watch

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid triggers per key into one callback per key.
type Debouncer struct {
	window   time.Duration
	mu       sync.Mutex
	timers   map[string]*time.Timer
	callback func(key string)
}

// NewDebouncer creates a debouncer with the given window duration.
func NewDebouncer(window time.Duration, callback func(key string)) *Debouncer {
	return &Debouncer{
		window:   window,
		timers:   make(map[string]*time.Timer),
		callback: callback,
	}
}

// Trigger resets the timer for key. The callback fires once the window
// elapses with no further triggers for that key.
func (d *Debouncer) Trigger(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	d.timers[key] = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		delete(d.timers, key)
		d.mu.Unlock()
		d.callback(key)
	})
}

// Stop cancels every pending callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}
