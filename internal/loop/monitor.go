// Package loop keeps playback inside the active region.
package loop

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/icco/riffloop/internal/clock"
	"github.com/icco/riffloop/internal/region"
)

// DefaultInterval is the polling period. It sits well under the gap a
// listener notices at the loop seam.
const DefaultInterval = 50 * time.Millisecond

// Transport is the part of the playback engine the monitor drives.
type Transport interface {
	CurrentTime() float64
	Seek(seconds float64)
	Play() error
}

// Regions exposes the current loop region.
type Regions interface {
	Current() (region.Region, bool)
}

// State is the monitor's polling state.
type State int

const (
	Idle State = iota
	Watching
)

func (s State) String() string {
	if s == Watching {
		return "watching"
	}
	return "idle"
}

// Monitor polls the playhead while audio plays and a region exists, and
// seeks back to the region start once the end is reached.
type Monitor struct {
	ticker    *clock.Ticker
	transport Transport
	regions   Regions
	state     State
	passes    int
	log       logrus.FieldLogger
}

// New returns an idle monitor.
func New(c clock.Clock, interval time.Duration, t Transport, r Regions, log logrus.FieldLogger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	m := &Monitor{transport: t, regions: r, log: log}
	m.ticker = clock.NewTicker(c, interval, m.Tick)
	return m
}

// Sync moves between Idle and Watching from the current conditions. Calling
// it repeatedly with the same inputs never stacks timers.
func (m *Monitor) Sync(playing bool) {
	want := Idle
	if playing && m.regions != nil {
		if _, ok := m.regions.Current(); ok {
			want = Watching
		}
	}
	if want == m.state {
		return
	}
	m.state = want
	if want == Watching {
		m.ticker.Start()
	} else {
		m.ticker.Stop()
	}
	m.log.WithField("state", want).Debug("loop monitor")
}

// Stop forces the monitor idle.
func (m *Monitor) Stop() {
	m.ticker.Stop()
	m.state = Idle
}

// State returns the polling state.
func (m *Monitor) State() State {
	return m.state
}

// Watching reports whether looping is active.
func (m *Monitor) Watching() bool {
	return m.state == Watching
}

// Passes returns how many times playback was sent back to the region start.
func (m *Monitor) Passes() int {
	return m.passes
}

// Tick checks the playhead once against a single snapshot of the region.
func (m *Monitor) Tick() {
	r, ok := m.regions.Current()
	if !ok {
		return
	}
	if now := m.transport.CurrentTime(); now >= r.End {
		m.transport.Seek(r.Start)
		m.passes++
	}
}

// Finished handles the engine's end-of-track notification. With a region the
// track restarts at the region start and keeps playing; it reports whether it
// did so.
func (m *Monitor) Finished() bool {
	r, ok := m.regions.Current()
	if !ok {
		return false
	}
	m.transport.Seek(r.Start)
	if err := m.transport.Play(); err != nil {
		m.log.WithError(err).Warn("resume after end of track failed")
		return false
	}
	m.passes++
	return true
}
