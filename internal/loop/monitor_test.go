package loop

import (
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/icco/riffloop/internal/clock"
	"github.com/icco/riffloop/internal/region"
)

type fakeTransport struct {
	now     float64
	seeks   []float64
	plays   int
	playErr error
}

func (f *fakeTransport) CurrentTime() float64 { return f.now }
func (f *fakeTransport) Seek(t float64)       { f.now = t; f.seeks = append(f.seeks, t) }
func (f *fakeTransport) Play() error          { f.plays++; return f.playErr }

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func setup(t *testing.T, start, end float64) (*Monitor, *fakeTransport, *region.Model, *clock.Manual) {
	t.Helper()
	c := clock.NewManual(time.Unix(0, 0))
	tr := &fakeTransport{}
	regions := region.New()
	regions.SetDuration(60)
	if end > start {
		if _, err := regions.CreateOrReplace(start, end); err != nil {
			t.Fatal(err)
		}
	}
	return New(c, DefaultInterval, tr, regions, quietLogger()), tr, regions, c
}

func TestSyncTransitions(t *testing.T) {
	m, _, regions, c := setup(t, 10, 15)

	m.Sync(false)
	if m.State() != Idle {
		t.Fatalf("state = %v when paused, want idle", m.State())
	}
	m.Sync(true)
	if m.State() != Watching {
		t.Fatalf("state = %v when playing with region, want watching", m.State())
	}
	m.Sync(true)
	if c.Pending() != 1 {
		t.Errorf("pending timers = %d after repeated Sync, want 1", c.Pending())
	}

	regions.Clear()
	m.Sync(true)
	if m.State() != Idle {
		t.Errorf("state = %v without region, want idle", m.State())
	}
	if c.Pending() != 0 {
		t.Errorf("pending timers = %d when idle, want 0", c.Pending())
	}
}

func TestTickSnapsBackAtRegionEnd(t *testing.T) {
	m, tr, _, c := setup(t, 10, 15)
	m.Sync(true)

	tr.now = 14.9
	c.Advance(DefaultInterval)
	if len(tr.seeks) != 0 {
		t.Fatalf("seeked before region end: %v", tr.seeks)
	}

	tr.now = 15.02
	c.Advance(DefaultInterval)
	if len(tr.seeks) != 1 || tr.seeks[0] != 10 {
		t.Fatalf("seeks = %v, want [10]", tr.seeks)
	}
	if tr.plays != 0 {
		t.Error("tick restarted playback; it should only seek")
	}
	if m.Passes() != 1 {
		t.Errorf("Passes() = %d, want 1", m.Passes())
	}
}

func TestPositionAfterTickIsBeforeEnd(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 200; trial++ {
		s := rng.Float64() * 50
		e := s + 0.1 + rng.Float64()*9
		m, tr, _, c := setup(t, s, e)
		m.Sync(true)

		tr.now = s
		for step := 0; step < 50; step++ {
			// Time strictly increases between ticks, possibly far past e.
			tr.now += 0.001 + rng.Float64()*2
			crossed := tr.now >= e
			c.Advance(DefaultInterval)
			if crossed && tr.now != s {
				t.Fatalf("trial %d: region [%v,%v], position after tick = %v, want %v", trial, s, e, tr.now, s)
			}
			if tr.now >= e {
				t.Fatalf("trial %d: position %v not before end %v after tick", trial, tr.now, e)
			}
		}
	}
}

func TestFinished(t *testing.T) {
	m, tr, regions, _ := setup(t, 3, 8)
	tr.now = 60

	if !m.Finished() {
		t.Fatal("Finished() = false with a region")
	}
	if tr.now != 3 || tr.plays != 1 {
		t.Errorf("after finish: now=%v plays=%d, want now=3 plays=1", tr.now, tr.plays)
	}

	regions.Clear()
	tr.now = 60
	if m.Finished() {
		t.Error("Finished() = true without a region")
	}
	if tr.now != 60 || tr.plays != 1 {
		t.Errorf("finish without region touched transport: now=%v plays=%d", tr.now, tr.plays)
	}
}

func TestStopCancelsTimer(t *testing.T) {
	m, tr, _, c := setup(t, 1, 2)
	m.Sync(true)
	m.Stop()
	tr.now = 5
	c.Advance(time.Second)
	if len(tr.seeks) != 0 {
		t.Errorf("stopped monitor seeked: %v", tr.seeks)
	}
	if m.Watching() {
		t.Error("Watching() = true after Stop")
	}
}
