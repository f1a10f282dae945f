package capture

import (
	"sync"
	"time"
)

// Watchdog fires the auto-submit callback exactly once when continuous
// silence crosses the submit threshold. Once fired (or disarmed) it stays
// quiet until re-armed for the next question, so the auto and manual submit
// paths are mutually exclusive.
type Watchdog struct {
	mu        sync.Mutex
	threshold time.Duration
	armed     bool
	fired     bool
	onFire    func()
}

func NewWatchdog(threshold time.Duration, onFire func()) *Watchdog {
	return &Watchdog{threshold: threshold, onFire: onFire}
}

// Arm resets the watchdog for a new question.
func (w *Watchdog) Arm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.armed = true
	w.fired = false
}

// Disarm prevents any further firing until the next Arm.
func (w *Watchdog) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.armed = false
}

// Observe feeds the current silence duration. Returns true on the single
// tick that crosses the threshold.
func (w *Watchdog) Observe(silence time.Duration) bool {
	w.mu.Lock()
	if !w.armed || w.fired || silence < w.threshold {
		w.mu.Unlock()
		return false
	}
	w.fired = true
	w.armed = false
	fire := w.onFire
	w.mu.Unlock()

	if fire != nil {
		fire()
	}
	return true
}

// Countdown reports the seconds left before auto-submit, floored at zero.
func (w *Watchdog) Countdown(silence time.Duration) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.armed || w.fired {
		return 0
	}
	if silence >= w.threshold {
		return 0
	}
	return w.threshold - silence
}

// Armed reports whether the watchdog can still fire.
func (w *Watchdog) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed && !w.fired
}
