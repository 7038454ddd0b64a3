package clock

import (
	"sort"
	"time"
)

// Manual is a Clock that only moves when told to. Callbacks run
// synchronously inside Advance, in due-time order, which makes timer-driven
// code deterministic under test.
type Manual struct {
	now    time.Time
	seq    int
	timers []*manualTimer
}

// NewManual returns a manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time { return m.now }

func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.seq++
	t := &manualTimer{clock: m, due: m.now.Add(d), seq: m.seq, fn: f}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves time forward by d, firing every timer that comes due,
// including timers scheduled by callbacks during the advance.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	for {
		t := m.next()
		if t == nil || t.due.After(target) {
			break
		}
		m.remove(t)
		if t.due.After(m.now) {
			m.now = t.due
		}
		t.fn()
	}
	m.now = target
}

// Pending returns the number of scheduled timers.
func (m *Manual) Pending() int {
	return len(m.timers)
}

func (m *Manual) next() *manualTimer {
	if len(m.timers) == 0 {
		return nil
	}
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].due.Equal(m.timers[j].due) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].due.Before(m.timers[j].due)
	})
	return m.timers[0]
}

func (m *Manual) remove(t *manualTimer) bool {
	for i, other := range m.timers {
		if other == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return true
		}
	}
	return false
}

type manualTimer struct {
	clock *Manual
	due   time.Time
	seq   int
	fn    func()
}

func (t *manualTimer) Stop() bool {
	return t.clock.remove(t)
}
