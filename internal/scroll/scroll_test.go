package scroll

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/icco/riffloop/internal/clock"
)

// pane echoes every ScrollTo back into the synchronizer, like a real
// scrollable widget firing its scroll handler.
type pane struct {
	width  float64
	offset float64
	moves  int
	sync   *Synchronizer
}

func (p *pane) VisibleWidth() float64 { return p.width }

func (p *pane) ScrollTo(offset float64) {
	p.offset = offset
	p.moves++
	p.sync.UserScrolled(p, offset)
}

type fixture struct {
	sync  *Synchronizer
	clock *clock.Manual
	panes []*pane
	now   float64
}

func newFixture(widths ...float64) *fixture {
	f := &fixture{clock: clock.NewManual(time.Unix(0, 0))}
	log := logrus.New()
	log.SetOutput(io.Discard)
	f.sync = New(f.clock, func() float64 { return f.now }, Options{}, log)
	for _, w := range widths {
		p := &pane{width: w, sync: f.sync}
		f.panes = append(f.panes, p)
		f.sync.AddView(p)
	}
	return f
}

func TestUserScrollPropagatesOnce(t *testing.T) {
	f := newFixture(800, 600, 600)
	for _, p := range f.panes {
		p.moves = 0
	}

	f.panes[0].offset = 250
	f.sync.UserScrolled(f.panes[0], 250)

	if f.panes[0].moves != 0 {
		t.Errorf("source view moved %d times, want 0", f.panes[0].moves)
	}
	for i, p := range f.panes[1:] {
		if p.offset != 250 || p.moves != 1 {
			t.Errorf("view %d: offset=%v moves=%d, want 250 and 1", i+1, p.offset, p.moves)
		}
	}
	if f.sync.Propagating() {
		t.Error("propagating still set after UserScrolled returned")
	}
}

func TestQuietWindowRestarts(t *testing.T) {
	f := newFixture(400)
	f.sync.Sync(true, 50)
	if !f.sync.Autoscrolling() {
		t.Fatal("autoscroll off while playing and zoomed")
	}

	f.sync.UserScrolled(f.panes[0], 10)
	if f.sync.Autoscrolling() {
		t.Fatal("autoscroll on right after a manual scroll")
	}
	f.clock.Advance(2 * time.Second)
	f.sync.UserScrolled(f.panes[0], 20)
	f.clock.Advance(2 * time.Second)
	if f.sync.Autoscrolling() {
		t.Fatal("autoscroll resumed before the restarted window passed")
	}
	f.clock.Advance(time.Second + time.Millisecond)
	if !f.sync.Autoscrolling() {
		t.Error("autoscroll did not resume after the quiet window")
	}
}

func TestAutoscrollCentersInNarrowestView(t *testing.T) {
	f := newFixture(800, 300, 500)
	f.now = 10
	f.sync.Sync(true, 20)
	f.clock.Advance(DefaultFrameInterval)

	// 10s * 20px/s = 200px, centered in 300px -> 50.
	for i, p := range f.panes {
		if p.offset != 50 {
			t.Errorf("view %d offset = %v, want 50", i, p.offset)
		}
	}
	if f.sync.Quiet() {
		t.Error("autoscroll echo started a quiet window")
	}

	f.now = 1
	f.sync.Frame()
	if f.panes[0].offset != 0 {
		t.Errorf("offset = %v near start, want clamped to 0", f.panes[0].offset)
	}
}

func TestAutoscrollSuspension(t *testing.T) {
	tests := []struct {
		name    string
		playing bool
		zoom    float64
		editing bool
		halted  bool
		want    bool
	}{
		{"playing", true, 50, false, false, true},
		{"paused", false, 50, false, false, false},
		{"fit to view", true, 0, false, false, false},
		{"editing", true, 50, true, false, false},
		{"halted", true, 50, false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(400)
			f.sync.SetEditing(tt.editing)
			if tt.halted {
				f.sync.Halt()
			}
			f.sync.Sync(tt.playing, tt.zoom)
			if got := f.sync.Autoscrolling(); got != tt.want {
				t.Errorf("Autoscrolling() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEditingResumes(t *testing.T) {
	f := newFixture(400)
	f.sync.Sync(true, 50)
	f.sync.SetEditing(true)
	f.now = 100
	f.clock.Advance(time.Second)
	if f.panes[0].offset != 0 {
		t.Fatalf("view moved while editing: %v", f.panes[0].offset)
	}
	f.sync.SetEditing(false)
	f.clock.Advance(DefaultFrameInterval)
	if f.panes[0].offset != 100*50-200 {
		t.Errorf("offset = %v after editing ended, want %v", f.panes[0].offset, 100*50-200)
	}
}

func TestStopCancelsTimers(t *testing.T) {
	f := newFixture(400)
	f.sync.Sync(true, 50)
	f.sync.UserScrolled(f.panes[0], 5)
	f.sync.Stop()
	if f.clock.Pending() != 0 {
		t.Errorf("pending timers = %d after Stop, want 0", f.clock.Pending())
	}
}

func TestStopClearsHolds(t *testing.T) {
	f := newFixture(400)
	f.sync.Sync(true, 50)
	f.sync.SetEditing(true)
	f.sync.Halt()
	f.sync.Stop()
	if f.sync.Editing() {
		t.Error("Editing() = true after Stop")
	}
	f.sync.Sync(true, 50)
	if !f.sync.Autoscrolling() {
		t.Error("Autoscrolling() = false for a fresh session after Stop")
	}
}

func TestCenter(t *testing.T) {
	if _, ok := Center(3, 0, 100); ok {
		t.Error("Center() ok with zoom 0")
	}
	if _, ok := Center(3, 10, 0); ok {
		t.Error("Center() ok with no width")
	}
	if got, _ := Center(30, 10, 100); got != 250 {
		t.Errorf("Center(30, 10, 100) = %v, want 250", got)
	}
}
