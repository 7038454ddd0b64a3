// Package enginetest provides an in-memory engine.Player for tests.
package enginetest

import (
	"context"
	"errors"

	"github.com/icco/riffloop/internal/engine"
)

// ErrClosed is returned by a closed Fake.
var ErrClosed = errors.New("player closed")

// Fake is a scriptable player. Transport calls change its state at once and
// queue the matching notification; Flush delivers the queue. The helpers
// Ready, Fail, Finish and Tick deliver immediately.
type Fake struct {
	Now     float64
	Dur     float64
	IsPlay  bool
	ZoomPx  float64
	LoadErr error
	PlayErr error
	Loads   []string
	Seeks   []float64
	Plays   int
	Pauses  int
	Closed  bool
	notify  engine.Notify
	queue   []engine.Event
}

// New returns a fake that sends events to notify.
func New(notify engine.Notify) *Fake {
	return &Fake{notify: notify}
}

// Provider returns a provider that hands out f, wiring it to the notify
// function the caller passes.
func Provider(f *Fake) engine.Provider {
	return engine.ProviderFunc(func(notify engine.Notify) (engine.Player, error) {
		f.notify = notify
		return f, nil
	})
}

func (f *Fake) Load(_ context.Context, ref string) error {
	if f.Closed {
		return ErrClosed
	}
	f.Loads = append(f.Loads, ref)
	f.IsPlay = false
	f.Now = 0
	return f.LoadErr
}

func (f *Fake) Play() error {
	if f.Closed {
		return ErrClosed
	}
	f.Plays++
	if f.PlayErr != nil {
		return f.PlayErr
	}
	if !f.IsPlay {
		f.IsPlay = true
		f.queue = append(f.queue, engine.Event{Kind: engine.PlayState, Playing: true})
	}
	return nil
}

func (f *Fake) Pause() {
	f.Pauses++
	if f.IsPlay {
		f.IsPlay = false
		f.queue = append(f.queue, engine.Event{Kind: engine.PlayState, Playing: false})
	}
}

func (f *Fake) Seek(seconds float64) {
	f.Seeks = append(f.Seeks, seconds)
	f.Now = seconds
}

func (f *Fake) CurrentTime() float64     { return f.Now }
func (f *Fake) Duration() float64        { return f.Dur }
func (f *Fake) Playing() bool            { return f.IsPlay }
func (f *Fake) Zoom(pxPerSecond float64) { f.ZoomPx = engine.ClampZoom(pxPerSecond) }
func (f *Fake) ZoomLevel() float64       { return f.ZoomPx }

func (f *Fake) Close() error {
	f.Closed = true
	f.IsPlay = false
	return nil
}

// Flush delivers queued notifications in order.
func (f *Fake) Flush() {
	for len(f.queue) > 0 {
		ev := f.queue[0]
		f.queue = f.queue[1:]
		f.emit(ev)
	}
}

// Ready finishes a load with the given duration.
func (f *Fake) Ready(duration float64) {
	f.Dur = duration
	f.Flush()
	f.emit(engine.Event{Kind: engine.Ready, Duration: duration})
}

// Fail reports a transport error and stops playback.
func (f *Fake) Fail(err error) {
	f.Flush()
	if f.IsPlay {
		f.IsPlay = false
		f.emit(engine.Event{Kind: engine.PlayState, Playing: false})
	}
	f.emit(engine.Event{Kind: engine.Error, Err: err})
}

// Finish reports the natural end of the track.
func (f *Fake) Finish() {
	f.Flush()
	f.Now = f.Dur
	f.IsPlay = false
	f.emit(engine.Event{Kind: engine.Finished})
}

// Tick moves the playhead to t and reports it.
func (f *Fake) Tick(t float64) {
	f.Flush()
	f.Now = t
	f.emit(engine.Event{Kind: engine.TimeUpdate, Time: t})
}

func (f *Fake) emit(ev engine.Event) {
	if f.notify != nil {
		f.notify(ev)
	}
}
