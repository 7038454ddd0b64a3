// Package scroll keeps several timeline views at the same horizontal offset
// and centers the playhead while audio plays.
package scroll

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/icco/riffloop/internal/clock"
)

const (
	DefaultQuietWindow   = 3 * time.Second
	DefaultFrameInterval = 16 * time.Millisecond
)

// View is one horizontally scrollable, timeline-aligned pane.
type View interface {
	// VisibleWidth is the width of the viewport in the same unit as offsets.
	VisibleWidth() float64
	// ScrollTo moves the viewport. Implementations may report the move back
	// through UserScrolled; the synchronizer ignores such echoes.
	ScrollTo(offset float64)
}

// Options tunes the synchronizer's timing.
type Options struct {
	QuietWindow   time.Duration
	FrameInterval time.Duration
}

// Synchronizer broadcasts one scroll offset to every view.
type Synchronizer struct {
	views []View

	// propagating is set while an offset is being pushed to the views, so a
	// view echoing the move does not bounce back into the others.
	propagating bool
	// editing is set while an annotation cell has keyboard focus.
	editing bool
	// quiet is set for the window after a manual scroll.
	quiet bool

	playing bool
	zoom    float64
	halted  bool
	offset  float64

	clock       clock.Clock
	quietWindow time.Duration
	quietTimer  clock.Timer
	frames      *clock.Ticker
	playhead    func() float64
	log         logrus.FieldLogger
}

// New returns a synchronizer. playhead reports the current playback time in
// seconds.
func New(c clock.Clock, playhead func() float64, opts Options, log logrus.FieldLogger) *Synchronizer {
	if opts.QuietWindow <= 0 {
		opts.QuietWindow = DefaultQuietWindow
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	s := &Synchronizer{
		clock:       c,
		quietWindow: opts.QuietWindow,
		playhead:    playhead,
		log:         log,
	}
	s.frames = clock.NewTicker(c, opts.FrameInterval, s.Frame)
	return s
}

// AddView registers a view and moves it to the shared offset.
func (s *Synchronizer) AddView(v View) {
	s.views = append(s.views, v)
	s.guarded(func() { v.ScrollTo(s.offset) })
}

// Offset returns the shared offset.
func (s *Synchronizer) Offset() float64 { return s.offset }

// Propagating reports whether an offset is being pushed to the views.
func (s *Synchronizer) Propagating() bool { return s.propagating }

// Editing reports whether autoscroll is held for cell editing.
func (s *Synchronizer) Editing() bool { return s.editing }

// Quiet reports whether a manual scroll is holding autoscroll off.
func (s *Synchronizer) Quiet() bool { return s.quiet }

// Autoscrolling reports whether the frame loop is running.
func (s *Synchronizer) Autoscrolling() bool { return s.frames.Running() }

// UserScrolled handles a manual scroll on from. The offset is copied to every
// other view and autoscroll pauses until the quiet window passes without
// another manual scroll.
func (s *Synchronizer) UserScrolled(from View, offset float64) {
	if s.propagating {
		return
	}
	s.offset = offset
	s.guarded(func() {
		for _, v := range s.views {
			if v != from {
				v.ScrollTo(offset)
			}
		}
	})

	if s.quietTimer != nil {
		s.quietTimer.Stop()
	}
	s.quiet = true
	s.quietTimer = s.clock.AfterFunc(s.quietWindow, func() {
		s.quietTimer = nil
		s.quiet = false
		s.reconcile()
	})
	s.reconcile()
}

// SetEditing holds autoscroll while a cell is being edited.
func (s *Synchronizer) SetEditing(editing bool) {
	s.editing = editing
	s.reconcile()
}

// Sync re-evaluates autoscroll from the transport state. zoom is in pixels
// per second; 0 means fit to view.
func (s *Synchronizer) Sync(playing bool, zoom float64) {
	s.playing = playing
	s.zoom = zoom
	s.reconcile()
}

// Halt stops autoscroll until Resume, for transport errors.
func (s *Synchronizer) Halt() {
	s.halted = true
	s.reconcile()
}

// Resume lifts a Halt.
func (s *Synchronizer) Resume() {
	s.halted = false
	s.reconcile()
}

// Stop cancels the frame loop and the quiet window and clears any editing
// hold or Halt, leaving the synchronizer idle for the next session.
func (s *Synchronizer) Stop() {
	s.frames.Stop()
	if s.quietTimer != nil {
		s.quietTimer.Stop()
		s.quietTimer = nil
	}
	s.quiet = false
	s.playing = false
	s.editing = false
	s.halted = false
}

// Frame runs one autoscroll step: the playhead is centered in the narrowest
// view and that offset is applied to all views.
func (s *Synchronizer) Frame() {
	if s.playhead == nil {
		return
	}
	target, ok := Center(s.playhead(), s.zoom, s.narrowest())
	if !ok {
		return
	}
	s.ScrollAll(target)
}

// ScrollAll moves every view to offset without starting a quiet window.
func (s *Synchronizer) ScrollAll(offset float64) {
	s.offset = offset
	s.guarded(func() {
		for _, v := range s.views {
			v.ScrollTo(offset)
		}
	})
}

// Center returns the offset that puts the playhead in the middle of a
// viewport of the given width.
func Center(t, zoom, width float64) (float64, bool) {
	if zoom <= 0 || width <= 0 {
		return 0, false
	}
	return math.Max(0, t*zoom-width/2), true
}

func (s *Synchronizer) narrowest() float64 {
	w := 0.0
	for _, v := range s.views {
		vw := v.VisibleWidth()
		if vw > 0 && (w == 0 || vw < w) {
			w = vw
		}
	}
	return w
}

func (s *Synchronizer) guarded(f func()) {
	s.propagating = true
	defer func() { s.propagating = false }()
	f()
}

func (s *Synchronizer) reconcile() {
	want := s.playing && s.zoom > 0 && !s.editing && !s.quiet && !s.halted
	switch {
	case want && !s.frames.Running():
		s.frames.Start()
		s.log.Debug("autoscroll on")
	case !want && s.frames.Running():
		s.frames.Stop()
		s.log.Debug("autoscroll off")
	}
}
