package delivery

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet time between keystrokes before an
// address triggers a geocoding call.
const DefaultDebounce = 300 * time.Millisecond

// Debouncer coalesces rapid calls into one, firing fn only after the
// configured quiet period with no newer call. Each Trigger cancels the
// pending one.
//
// The HTTP handlers do not use it; it exists for interactive clients
// of this package that resolve quotes as the user types, such as a CLI
// or an embedded kiosk frontend.
type Debouncer struct {
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewDebouncer creates a debouncer with the given quiet period. A
// non-positive delay falls back to DefaultDebounce.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{delay: delay}
}

// Trigger schedules fn after the quiet period, replacing any pending
// invocation.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels any pending invocation.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
