// Package watchdog forces the rig into a stopped state when operator input
// goes quiet.
package watchdog

import "time"

const DefaultTimeout = time.Second

type State int

const (
	Stopped State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "stopped"
}

// Watchdog is a two-state machine driven by the caller's clock readings. It
// starts Stopped so nothing moves until the first qualifying event.
type Watchdog struct {
	timeout   time.Duration
	lastEvent time.Time
	state     State
}

func New(timeout time.Duration) *Watchdog {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Watchdog{timeout: timeout, state: Stopped}
}

// Observe records a qualifying input event and (re)activates the watchdog.
func (w *Watchdog) Observe(now time.Time) {
	w.lastEvent = now
	w.state = Active
}

// Check reports true exactly once per transition into Stopped.
func (w *Watchdog) Check(now time.Time) bool {
	if w.state != Active {
		return false
	}
	if now.Sub(w.lastEvent) < w.timeout {
		return false
	}
	w.state = Stopped
	return true
}

// Trip forces the Stopped state without reporting a transition, for callers
// that already halted the motors for another reason.
func (w *Watchdog) Trip() {
	w.state = Stopped
}

func (w *Watchdog) State() State           { return w.state }
func (w *Watchdog) Stopped() bool          { return w.state == Stopped }
func (w *Watchdog) Active() bool           { return w.state == Active }
func (w *Watchdog) Timeout() time.Duration { return w.timeout }
func (w *Watchdog) LastEvent() time.Time   { return w.lastEvent }
