package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/icco/riffloop/internal/engine"
)

// watchInterval is how often a playing track reports its position.
const watchInterval = 50 * time.Millisecond

var errNotLoaded = errors.New("no track loaded")

// sink is the part of *oto.Player a Track drives.
type sink interface {
	Play()
	Pause()
	IsPlaying() bool
	BufferedSize() int
	Seek(offset int64, whence int) (int64, error)
}

// Track plays one decoded audio file. Transport calls may come from any
// goroutine; events go to the notify function given at construction.
type Track struct {
	newSink func(r io.Reader) (sink, error)
	notify  engine.Notify
	log     logrus.FieldLogger

	mu       sync.Mutex
	gen      int
	stream   *stream
	sink     sink
	duration float64
	playing  bool
	zoom     float64
	closed   bool
	stop     chan struct{}
}

// NewTrack returns an empty track that plays through out.
func NewTrack(out *Output, notify engine.Notify, log logrus.FieldLogger) *Track {
	return newTrack(func(r io.Reader) (sink, error) {
		return out.NewPlayer(r)
	}, notify, log)
}

func newTrack(newSink func(io.Reader) (sink, error), notify engine.Notify, log logrus.FieldLogger) *Track {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Track{newSink: newSink, notify: notify, log: log}
}

// Provider opens tracks on a shared output.
func Provider(out *Output, log logrus.FieldLogger) engine.Provider {
	return engine.ProviderFunc(func(notify engine.Notify) (engine.Player, error) {
		return NewTrack(out, notify, log), nil
	})
}

// Load stops whatever is playing and decodes ref in the background. A
// missing file fails at once; decode errors arrive as an Error event.
func (t *Track) Load(ctx context.Context, ref string) error {
	if _, err := os.Stat(ref); err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(ref), err)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.New("track closed")
	}
	t.gen++
	gen := t.gen
	t.resetLocked()
	t.mu.Unlock()

	go t.decode(ctx, gen, ref)
	return nil
}

func (t *Track) decode(ctx context.Context, gen int, ref string) {
	pcm, err := decodeFile(ref)
	if err == nil {
		err = ctx.Err()
	}

	t.mu.Lock()
	if gen != t.gen || t.closed {
		t.mu.Unlock()
		return
	}
	if err != nil {
		t.mu.Unlock()
		t.emit(engine.Event{Kind: engine.Error, Err: err})
		return
	}
	st := newStream(pcm)
	sk, err := t.newSink(st)
	if err != nil {
		t.mu.Unlock()
		t.emit(engine.Event{Kind: engine.Error, Err: err})
		return
	}
	t.stream = st
	t.sink = sk
	t.duration = offsetToSeconds(st.Len())
	dur := t.duration
	t.mu.Unlock()

	t.log.WithFields(logrus.Fields{"file": filepath.Base(ref), "duration": dur}).Debug("track decoded")
	t.emit(engine.Event{Kind: engine.Ready, Duration: dur})
}

func decodeFile(ref string) ([]byte, error) {
	f, err := os.Open(ref)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, ref)
}

// resetLocked drops the loaded track. t.mu must be held.
func (t *Track) resetLocked() {
	t.stopWatchLocked()
	if t.sink != nil {
		t.sink.Pause()
	}
	t.sink = nil
	t.stream = nil
	t.duration = 0
	t.playing = false
}

func (t *Track) Play() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.New("track closed")
	}
	if t.sink == nil {
		t.mu.Unlock()
		return errNotLoaded
	}
	if t.playing {
		t.mu.Unlock()
		return nil
	}
	if t.stream.Position() >= t.stream.Len() {
		if _, err := t.sink.Seek(0, io.SeekStart); err != nil {
			t.mu.Unlock()
			return fmt.Errorf("rewind: %w", err)
		}
	}
	t.sink.Play()
	t.playing = true
	t.startWatchLocked()
	t.mu.Unlock()

	t.emit(engine.Event{Kind: engine.PlayState, Playing: true})
	return nil
}

func (t *Track) Pause() {
	t.mu.Lock()
	if !t.playing {
		t.mu.Unlock()
		return
	}
	t.sink.Pause()
	t.playing = false
	t.stopWatchLocked()
	t.mu.Unlock()

	t.emit(engine.Event{Kind: engine.PlayState, Playing: false})
}

func (t *Track) Seek(seconds float64) {
	t.mu.Lock()
	if t.sink == nil {
		t.mu.Unlock()
		return
	}
	seconds = min(max(seconds, 0), t.duration)
	if _, err := t.sink.Seek(secondsToOffset(seconds), io.SeekStart); err != nil {
		t.mu.Unlock()
		t.log.WithError(err).Warn("seek failed")
		return
	}
	t.mu.Unlock()

	t.emit(engine.Event{Kind: engine.TimeUpdate, Time: seconds})
}

// CurrentTime is the position of the sample being heard: what has been read
// from the stream minus what oto still holds in its buffer.
func (t *Track) CurrentTime() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentTimeLocked()
}

func (t *Track) currentTimeLocked() float64 {
	if t.stream == nil {
		return 0
	}
	return offsetToSeconds(t.stream.Position() - int64(t.sink.BufferedSize()))
}

func (t *Track) Duration() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.duration
}

func (t *Track) Playing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

func (t *Track) Zoom(pxPerSecond float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.zoom = engine.ClampZoom(pxPerSecond)
}

func (t *Track) ZoomLevel() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.zoom
}

func (t *Track) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.gen++
	t.resetLocked()
	return nil
}

func (t *Track) startWatchLocked() {
	t.stopWatchLocked()
	stop := make(chan struct{})
	t.stop = stop
	go t.watch(stop)
}

func (t *Track) stopWatchLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

// watch reports the position while playing and detects the end of the track.
func (t *Track) watch(stop chan struct{}) {
	tick := time.NewTicker(watchInterval)
	defer tick.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tick.C:
		}
		if !t.poll(stop) {
			return
		}
	}
}

// poll emits one position update. It returns false once the track finished
// or the watcher was replaced.
func (t *Track) poll(stop chan struct{}) bool {
	t.mu.Lock()
	if t.stop != stop || !t.playing {
		t.mu.Unlock()
		return false
	}
	finished := t.stream.Position() >= t.stream.Len() && !t.sink.IsPlaying()
	if finished {
		t.playing = false
		t.stop = nil
		dur := t.duration
		t.mu.Unlock()
		t.emit(engine.Event{Kind: engine.TimeUpdate, Time: dur})
		t.emit(engine.Event{Kind: engine.PlayState, Playing: false})
		t.emit(engine.Event{Kind: engine.Finished})
		return false
	}
	now := t.currentTimeLocked()
	t.mu.Unlock()
	t.emit(engine.Event{Kind: engine.TimeUpdate, Time: now})
	return true
}

func (t *Track) emit(ev engine.Event) {
	if t.notify != nil {
		t.notify(ev)
	}
}
