package clock

import "time"

// Ticker calls a function every interval until stopped. It re-arms a single
// Timer after each call, so at most one callback is ever pending.
type Ticker struct {
	clock    Clock
	interval time.Duration
	fn       func()
	timer    Timer
}

// NewTicker returns a stopped ticker.
func NewTicker(c Clock, interval time.Duration, fn func()) *Ticker {
	return &Ticker{clock: c, interval: interval, fn: fn}
}

// Start begins ticking. The first call happens one interval from now.
// Starting a running ticker restarts its period.
func (t *Ticker) Start() {
	t.Stop()
	t.arm()
}

// Stop cancels the pending tick, if any.
func (t *Ticker) Stop() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Running reports whether a tick is pending.
func (t *Ticker) Running() bool {
	return t.timer != nil
}

// Interval returns the current period.
func (t *Ticker) Interval() time.Duration {
	return t.interval
}

// SetInterval changes the period. A running ticker is restarted with it.
func (t *Ticker) SetInterval(d time.Duration) {
	t.interval = d
	if t.Running() {
		t.Start()
	}
}

func (t *Ticker) arm() {
	var self Timer
	self = t.clock.AfterFunc(t.interval, func() {
		if t.timer != self {
			return
		}
		// Re-arm before calling out so fn may Stop the ticker.
		t.arm()
		t.fn()
	})
	t.timer = self
}
