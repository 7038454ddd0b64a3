// Package region owns the single loop region of a practice session.
package region

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

const (
	// MinLength is the shortest region the model produces when the track is
	// long enough to hold it.
	MinLength = 0.1
	// DefaultLength is the length of a region synthesized from the playhead.
	DefaultLength = 5.0
	// FineStep and CoarseStep are the nudge increments.
	FineStep   = 0.05
	CoarseStep = 0.5
)

// ErrNoDuration is returned when a region is requested before a track with a
// positive duration is loaded.
var ErrNoDuration = errors.New("region: no track loaded")

// Boundary selects one edge of a region.
type Boundary int

const (
	Start Boundary = iota
	End
)

func (b Boundary) String() string {
	if b == Start {
		return "start"
	}
	return "end"
}

// Region is a loop range in seconds. 0 <= Start < End <= duration.
type Region struct {
	ID    uuid.UUID
	Start float64
	End   float64
}

// Contains reports whether t lies inside the region, edges included.
func (r Region) Contains(t float64) bool {
	return t >= r.Start && t <= r.End
}

// Length returns End - Start.
func (r Region) Length() float64 {
	return r.End - r.Start
}

func (r Region) String() string {
	return fmt.Sprintf("[%.3f, %.3f]", r.Start, r.End)
}

// ChangeKind tells observers what happened to the region.
type ChangeKind int

const (
	Created ChangeKind = iota
	Updated
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is delivered to observers after the model has been mutated.
// For Removed, Region holds the region that was removed. For Created,
// Replaced holds the region it displaced, if any.
type Change struct {
	Kind     ChangeKind
	Region   Region
	Replaced *Region
}

// Model holds at most one region and keeps it inside [0, duration].
type Model struct {
	duration  float64
	current   Region
	exists    bool
	observers []func(Change)
	newID     func() uuid.UUID
}

// New returns an empty model with no duration.
func New() *Model {
	return &Model{newID: uuid.New}
}

// OnChange registers an observer. Observers run synchronously.
func (m *Model) OnChange(f func(Change)) {
	m.observers = append(m.observers, f)
}

// Duration returns the track duration the model clamps against.
func (m *Model) Duration() float64 {
	return m.duration
}

// SetDuration sets the track length. A new source invalidates any region.
func (m *Model) SetDuration(d float64) {
	if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		d = 0
	}
	m.Clear()
	m.duration = d
}

// Current returns the region and whether one exists.
func (m *Model) Current() (Region, bool) {
	return m.current, m.exists
}

// Exists reports whether a region is set.
func (m *Model) Exists() bool {
	return m.exists
}

// CreateOrReplace installs a new region, clamped into the track, replacing
// any existing one in a single step.
func (m *Model) CreateOrReplace(start, end float64) (Region, error) {
	if m.duration <= 0 {
		return Region{}, ErrNoDuration
	}
	s := clamp(start, 0, m.duration)
	e := clamp(end, 0, m.duration)
	if s > e {
		s, e = e, s
	}
	s, e = m.widenEnd(s, e)

	var replaced *Region
	if m.exists {
		prev := m.current
		replaced = &prev
	}
	m.current = Region{ID: m.newID(), Start: s, End: e}
	m.exists = true
	m.emit(Change{Kind: Created, Region: m.current, Replaced: replaced})
	return m.current, nil
}

// UpdateBoundary moves one edge to v. If that would leave the region shorter
// than MinLength, the other edge is pushed away instead of refusing.
func (m *Model) UpdateBoundary(which Boundary, v float64) (Region, bool) {
	if !m.exists {
		return Region{}, false
	}
	v = clamp(v, 0, m.duration)
	s, e := m.current.Start, m.current.End
	if which == Start {
		s, e = m.widenEnd(v, e)
	} else {
		s, e = m.widenStart(s, v)
	}
	return m.update(s, e), true
}

// Resize sets both edges of the existing region, keeping its id. It is what a
// drag-resize on the timeline reports.
func (m *Model) Resize(start, end float64) (Region, bool) {
	if !m.exists {
		return Region{}, false
	}
	s := clamp(start, 0, m.duration)
	e := clamp(end, 0, m.duration)
	if s > e {
		s, e = e, s
	}
	s, e = m.widenEnd(s, e)
	return m.update(s, e), true
}

// Nudge shifts one edge by delta. Unlike UpdateBoundary it never moves the
// other edge: the shared side stops MinLength short of it.
func (m *Model) Nudge(which Boundary, delta float64) (Region, bool) {
	if !m.exists {
		return Region{}, false
	}
	if math.IsNaN(delta) {
		return m.current, true
	}
	s, e := m.current.Start, m.current.End
	if which == Start {
		s = math.Max(0, math.Min(s+delta, e-MinLength))
	} else {
		e = math.Min(m.duration, math.Max(e+delta, s+MinLength))
	}
	return m.update(s, e), true
}

// SetFromPlayhead moves the chosen edge to t, or creates a DefaultLength
// region anchored at t when there is none.
func (m *Model) SetFromPlayhead(which Boundary, t float64) (Region, error) {
	if m.exists {
		r, _ := m.UpdateBoundary(which, t)
		return r, nil
	}
	if which == Start {
		return m.CreateOrReplace(t, t+DefaultLength)
	}
	return m.CreateOrReplace(t-DefaultLength, t)
}

// Clear removes the region. It reports whether there was one.
func (m *Model) Clear() bool {
	if !m.exists {
		return false
	}
	removed := m.current
	m.current = Region{}
	m.exists = false
	m.emit(Change{Kind: Removed, Region: removed})
	return true
}

func (m *Model) update(s, e float64) Region {
	if s == m.current.Start && e == m.current.End {
		return m.current
	}
	m.current.Start, m.current.End = s, e
	m.emit(Change{Kind: Updated, Region: m.current})
	return m.current
}

// widenEnd keeps s and pushes e out to MinLength, falling back to the track
// end.
func (m *Model) widenEnd(s, e float64) (float64, float64) {
	if m.duration <= MinLength {
		return 0, m.duration
	}
	if e-s >= MinLength {
		return s, e
	}
	e = s + MinLength
	if e > m.duration {
		e = m.duration
		s = m.duration - MinLength
	}
	return s, e
}

// widenStart keeps e and pushes s back to MinLength, falling back to zero.
func (m *Model) widenStart(s, e float64) (float64, float64) {
	if m.duration <= MinLength {
		return 0, m.duration
	}
	if e-s >= MinLength {
		return s, e
	}
	s = e - MinLength
	if s < 0 {
		s = 0
		e = MinLength
	}
	return s, e
}

func (m *Model) emit(c Change) {
	for _, f := range m.observers {
		f(c)
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
