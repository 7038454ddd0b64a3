// Package metronome generates click events at the session tempo.
package metronome

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/icco/riffloop/internal/clock"
	"github.com/icco/riffloop/internal/grid"
)

const (
	MaxVolume     = 2.0
	DefaultVolume = 1.0

	// MinPeriod is the shortest click interval. Faster tempos are treated
	// like an invalid one.
	MinPeriod = 10 * time.Millisecond
)

// State is the metronome's run state.
//
// Off means the user does not want clicks. Suspended means the user wants
// clicks but the tempo is invalid or transport is halted; it resumes on its
// own. Running means clicks are being produced.
type State int

const (
	Off State = iota
	Suspended
	Running
)

func (s State) String() string {
	switch s {
	case Off:
		return "off"
	case Suspended:
		return "suspended"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Clicker makes the audible click. accent is true on bar downbeats.
type Clicker interface {
	Click(accent bool, volume float64)
}

// Clock fires a click every beat while active and the tempo is valid.
type Clock struct {
	ticker      *clock.Ticker
	clicker     Clicker
	state       State
	bpm         grid.BPM
	beatsPerBar int
	halted      bool
	volume      float64
	beat        int
	log         logrus.FieldLogger
}

// New returns a metronome that is Off.
func New(c clock.Clock, clicker Clicker, log logrus.FieldLogger) *Clock {
	m := &Clock{
		clicker:     clicker,
		beatsPerBar: grid.DefaultBeatsPerBar,
		volume:      DefaultVolume,
		log:         log,
	}
	m.ticker = clock.NewTicker(c, time.Second, m.click)
	return m
}

// State returns the current state.
func (m *Clock) State() State { return m.state }

// Active reports whether the user has asked for clicks.
func (m *Clock) Active() bool { return m.state != Off }

// Start records that the user wants clicks and starts them if possible.
func (m *Clock) Start() {
	if m.state != Off {
		return
	}
	m.state = Suspended
	m.reconcile()
}

// Stop turns clicks off. A stopped metronome never restarts by itself.
func (m *Clock) Stop() {
	m.ticker.Stop()
	if m.state != Off {
		m.log.Debug("metronome off")
	}
	m.state = Off
}

// Toggle flips between Off and active.
func (m *Clock) Toggle() {
	if m.Active() {
		m.Stop()
	} else {
		m.Start()
	}
}

// SetTempo changes the tempo. While running, a changed tempo restarts the
// period with an immediate click; an invalid tempo suspends the clicks.
func (m *Clock) SetTempo(bpm grid.BPM) {
	changed := bpm != m.bpm
	m.bpm = bpm
	switch m.state {
	case Running:
		if _, ok := Period(bpm); !ok {
			m.suspend("invalid tempo")
		} else if changed {
			m.run()
		}
	case Suspended:
		m.reconcile()
	}
}

// SetBeatsPerBar sets which beats are accented.
func (m *Clock) SetBeatsPerBar(n int) {
	m.beatsPerBar = n
}

// Halt suspends clicks while the transport is in an error state, keeping the
// user's intent.
func (m *Clock) Halt() {
	m.halted = true
	if m.state == Running {
		m.suspend("transport halted")
	}
}

// Resume lifts a Halt.
func (m *Clock) Resume() {
	m.halted = false
	m.reconcile()
}

// SetVolume sets the click gain, clamped to [0, MaxVolume].
func (m *Clock) SetVolume(v float64) {
	m.volume = ClampVolume(v)
}

// Volume returns the click gain.
func (m *Clock) Volume() float64 { return m.volume }

// Period returns the click interval for the current tempo.
func (m *Clock) Period() (time.Duration, bool) {
	return Period(m.bpm)
}

// Period returns 60/bpm as a duration. It reports false for an invalid tempo
// or one faster than MinPeriod allows.
func Period(bpm grid.BPM) (time.Duration, bool) {
	if !bpm.Valid() {
		return 0, false
	}
	v, _ := bpm.Unpack()
	p := time.Duration(float64(time.Minute) / float64(v))
	if p < MinPeriod {
		return 0, false
	}
	return p, true
}

// ClampVolume clamps a stored or user volume into [0, MaxVolume].
func ClampVolume(v float64) float64 {
	if math.IsNaN(v) {
		return DefaultVolume
	}
	return math.Max(0, math.Min(MaxVolume, v))
}

func (m *Clock) reconcile() {
	if _, ok := m.Period(); m.state == Suspended && ok && !m.halted {
		m.run()
	}
}

// run (re)starts the period and clicks immediately so there is no startup
// gap and the new tempo is anchored to now.
func (m *Clock) run() {
	period, _ := m.Period()
	m.state = Running
	m.beat = 0
	m.ticker.SetInterval(period)
	m.ticker.Start()
	m.log.WithField("period", period).Debug("metronome running")
	m.click()
}

func (m *Clock) suspend(reason string) {
	m.ticker.Stop()
	m.state = Suspended
	m.log.WithField("reason", reason).Debug("metronome suspended")
}

func (m *Clock) click() {
	accent := m.beatsPerBar > 0 && m.beat%m.beatsPerBar == 0
	m.beat++
	if m.clicker != nil {
		m.clicker.Click(accent, m.volume)
	}
}
