// Package session ties one loaded track to its loop region, tempo grid,
// metronome, scroll state and annotations.
//
// A Session is not safe for concurrent use. Every method, and every timer
// callback its clock delivers, must run on the same owner goroutine. Player
// notifications are moved there through the Poster given to New.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/icco/riffloop/internal/annotation"
	"github.com/icco/riffloop/internal/clock"
	"github.com/icco/riffloop/internal/engine"
	"github.com/icco/riffloop/internal/grid"
	"github.com/icco/riffloop/internal/loop"
	"github.com/icco/riffloop/internal/metronome"
	"github.com/icco/riffloop/internal/region"
	"github.com/icco/riffloop/internal/scroll"
	"github.com/icco/riffloop/internal/store"
)

var (
	// ErrNotReady is returned by transport calls before a track is ready.
	ErrNotReady = errors.New("no track ready")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session closed")
)

// Options tunes a session.
type Options struct {
	LoopInterval time.Duration
	Scroll       scroll.Options
	Log          logrus.FieldLogger
}

// Session is one practice session.
type Session struct {
	player  engine.Player
	regions *region.Model
	monitor *loop.Monitor
	metro   *metronome.Clock
	scroll  *scroll.Synchronizer
	notes   *annotation.Store

	tempo grid.TempoConfig
	bars  []float64
	// keyedTempo is the tempo whose bars the annotations are addressed by.
	keyedTempo grid.TempoConfig
	keyed      bool

	source    string
	title     string
	notesText string
	ready     bool
	err       error
	closed    bool

	log logrus.FieldLogger
}

// New opens a player from provider and builds an empty session around it.
// post must deliver functions to the goroutine that owns the session and the
// clock.
func New(c clock.Clock, provider engine.Provider, post clock.Poster, clicker metronome.Clicker, opts Options) (*Session, error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Session{
		notes: annotation.New(),
		tempo: grid.TempoConfig{BeatsPerBar: grid.DefaultBeatsPerBar},
		log:   log,
	}
	p, err := provider.Open(func(ev engine.Event) {
		post(func() { s.HandleEvent(ev) })
	})
	if err != nil {
		return nil, fmt.Errorf("open player: %w", err)
	}
	s.player = p
	s.regions = region.New()
	s.regions.OnChange(s.regionChanged)
	s.monitor = loop.New(c, opts.LoopInterval, p, s.regions, log.WithField("component", "loop"))
	s.metro = metronome.New(c, clicker, log.WithField("component", "metronome"))
	s.metro.SetBeatsPerBar(s.tempo.BeatsPerBar)
	s.scroll = scroll.New(c, p.CurrentTime, opts.Scroll, log.WithField("component", "scroll"))
	return s, nil
}

// Load discards the current track and everything attached to it, then starts
// loading ref. Playback features resume when the player reports Ready.
func (s *Session) Load(ctx context.Context, ref string) error {
	return s.load(ctx, ref, func() {
		s.title = filepath.Base(ref)
	})
}

// Restore loads the session described by rec.
func (s *Session) Restore(ctx context.Context, rec store.Record) error {
	return s.load(ctx, rec.SourceRef, func() {
		s.title = rec.Title
		s.notesText = rec.Notes
		s.tempo = grid.TempoConfig{
			BPM:         grid.BPMFromPtr(rec.BPM),
			BeatsPerBar: grid.DefaultBeatsPerBar,
		}
		if rec.BeatsPerBar != nil {
			s.tempo.BeatsPerBar = *rec.BeatsPerBar
		}
		if rec.OffsetSeconds != nil {
			s.tempo.Offset = *rec.OffsetSeconds
		}
		if rec.ClickVolume != nil {
			s.metro.SetVolume(*rec.ClickVolume)
		}
		notes, err := annotation.FromRecord(rec.Chords, rec.Tabs)
		if err != nil {
			s.log.WithError(err).Warn("restoring annotations")
		}
		s.notes = notes
		s.keyTo(s.tempo)
	})
}

func (s *Session) load(ctx context.Context, ref string, apply func()) error {
	if s.closed {
		return ErrClosed
	}
	// Stop every timer before the state they read is replaced.
	s.monitor.Stop()
	s.scroll.Stop()
	s.metro.Halt()
	s.player.Pause()

	s.ready = false
	s.err = nil
	s.regions.SetDuration(0)
	s.notes = annotation.New()
	s.bars, s.keyed = nil, false
	s.tempo = grid.TempoConfig{BeatsPerBar: grid.DefaultBeatsPerBar}
	s.title, s.notesText = "", ""
	s.source = ref
	apply()
	s.metro.SetBeatsPerBar(s.tempo.BeatsPerBar)
	s.metro.SetTempo(s.tempo.BPM)

	s.log.WithField("source", ref).Info("loading track")
	if err := s.player.Load(ctx, ref); err != nil {
		s.fail(err)
		return s.err
	}
	return nil
}

// Record returns the session in its persisted shape. An unset tempo is
// absent from the record.
func (s *Session) Record() store.Record {
	chords, tabs := s.notes.Record()
	beats := s.tempo.BeatsPerBar
	offset := s.tempo.Offset
	volume := s.metro.Volume()
	return store.Record{
		SourceRef:     s.source,
		Title:         s.title,
		Notes:         s.notesText,
		BPM:           s.tempo.BPM.Ptr(),
		BeatsPerBar:   &beats,
		OffsetSeconds: &offset,
		ClickVolume:   &volume,
		Chords:        chords,
		Tabs:          tabs,
	}
}

// HandleEvent applies a player notification.
func (s *Session) HandleEvent(ev engine.Event) {
	if s.closed {
		return
	}
	switch ev.Kind {
	case engine.Ready:
		s.ready = true
		s.err = nil
		s.regions.SetDuration(ev.Duration)
		s.recomputeBars()
		s.metro.Resume()
		s.scroll.Resume()
		s.log.WithField("duration", ev.Duration).Info("track ready")
	case engine.Finished:
		if !s.monitor.Finished() {
			s.log.Debug("end of track")
		}
	case engine.Error:
		s.fail(ev.Err)
	}
	s.syncActivities()
}

// HandleRegionEvent applies a drag on the timeline. A reported creation
// replaces any existing region.
func (s *Session) HandleRegionEvent(ev engine.RegionEvent) {
	switch ev.Kind {
	case engine.RegionCreated:
		if _, err := s.regions.CreateOrReplace(ev.Start, ev.End); err != nil {
			s.log.WithError(err).Warn("region drag ignored")
		}
	case engine.RegionUpdated:
		if _, ok := s.regions.Resize(ev.Start, ev.End); !ok {
			s.regions.CreateOrReplace(ev.Start, ev.End)
		}
	case engine.RegionRemoved:
		s.regions.Clear()
	}
}

// Close cancels every activity and releases the player.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.monitor.Stop()
	s.scroll.Stop()
	s.metro.Stop()
	s.closed = true
	return s.player.Close()
}

func (s *Session) fail(err error) {
	if err == nil {
		err = errors.New("unknown playback error")
	}
	s.ready = false
	s.err = fault.Wrap(err, fmsg.WithDesc("playback", fmt.Sprintf("Could not play %s: %v", filepath.Base(s.source), err)))
	s.monitor.Stop()
	s.metro.Halt()
	s.scroll.Halt()
	s.player.Pause()
	s.log.WithError(err).Error("transport error")
}

func (s *Session) syncActivities() {
	playing := s.ready && s.err == nil && s.player.Playing()
	s.monitor.Sync(playing)
	s.scroll.Sync(playing, s.player.ZoomLevel())
}

func (s *Session) regionChanged(c region.Change) {
	if c.Kind == region.Created && s.player != nil {
		if now := s.player.CurrentTime(); !c.Region.Contains(now) {
			s.player.Seek(c.Region.Start)
		}
	}
	if s.monitor != nil {
		s.syncActivities()
	}
}

func (s *Session) recomputeBars() {
	s.bars = grid.Bars(s.regions.Duration(), s.tempo)
	s.keyTo(s.tempo)
}

// keyTo readdresses the annotations to the bars of cfg. A degenerate tempo
// leaves them on the last usable one.
func (s *Session) keyTo(cfg grid.TempoConfig) {
	if _, ok := grid.TimeAt(cfg, 0); !ok {
		return
	}
	if s.keyed && s.keyedTempo != cfg {
		s.notes.Rekey(s.keyedTempo, cfg)
	}
	s.keyedTempo, s.keyed = cfg, true
}

// Err returns the transport error, if the session is in the error state.
func (s *Session) Err() error { return s.err }

// ErrorMessage returns the user-facing text of the transport error.
func (s *Session) ErrorMessage() string {
	if s.err == nil {
		return ""
	}
	return fmsg.GetIssue(s.err)
}

// Ready reports whether a track is loaded and playable.
func (s *Session) Ready() bool { return s.ready }

// Source returns the loaded track reference.
func (s *Session) Source() string { return s.source }

func (s *Session) Title() string           { return s.title }
func (s *Session) SetTitle(title string)   { s.title = title }
func (s *Session) Notes() string           { return s.notesText }
func (s *Session) SetNotes(notes string)   { s.notesText = notes }
func (s *Session) Looping() bool           { return s.monitor.Watching() }
func (s *Session) LoopPasses() int         { return s.monitor.Passes() }
func (s *Session) State() engine.State     { return engine.Snapshot(s.player) }
func (s *Session) Tempo() grid.TempoConfig { return s.tempo }

// Region returns the loop region, if any.
func (s *Session) Region() (region.Region, bool) {
	return s.regions.Current()
}

// Bars returns the bar start times of the current grid.
func (s *Session) Bars() []float64 {
	return slices.Clone(s.bars)
}

// BarWidth returns the length of one bar, if the tempo is valid.
func (s *Session) BarWidth() (float64, bool) {
	return grid.BarWidth(s.tempo)
}

// Play starts playback.
func (s *Session) Play() error {
	if s.closed {
		return ErrClosed
	}
	if s.err != nil {
		return s.err
	}
	if !s.ready {
		return ErrNotReady
	}
	if err := s.player.Play(); err != nil {
		s.fail(err)
		s.syncActivities()
		return s.err
	}
	s.syncActivities()
	return nil
}

// Pause stops playback.
func (s *Session) Pause() {
	s.player.Pause()
	s.syncActivities()
}

// TogglePlay flips between playing and paused.
func (s *Session) TogglePlay() error {
	if s.player.Playing() {
		s.Pause()
		return nil
	}
	return s.Play()
}

// Seek moves the playhead, clamped into the track.
func (s *Session) Seek(t float64) {
	if !s.ready {
		return
	}
	s.player.Seek(math.Max(0, math.Min(t, s.regions.Duration())))
}

// SeekBy moves the playhead relative to where it is.
func (s *Session) SeekBy(delta float64) {
	s.Seek(s.player.CurrentTime() + delta)
}

// CurrentTime returns the playhead position.
func (s *Session) CurrentTime() float64 { return s.player.CurrentTime() }

// SetZoom sets the waveform zoom in pixels per second; see engine.ClampZoom.
func (s *Session) SetZoom(z float64) {
	s.player.Zoom(engine.ClampZoom(z))
	s.syncActivities()
}

// CreateRegion installs a new loop region.
func (s *Session) CreateRegion(start, end float64) (region.Region, error) {
	return s.regions.CreateOrReplace(start, end)
}

// UpdateBoundary moves one region edge.
func (s *Session) UpdateBoundary(which region.Boundary, v float64) (region.Region, bool) {
	return s.regions.UpdateBoundary(which, v)
}

// Nudge shifts one region edge by delta.
func (s *Session) Nudge(which region.Boundary, delta float64) (region.Region, bool) {
	return s.regions.Nudge(which, delta)
}

// MarkBoundary sets one region edge at the playhead, creating a region if
// there is none.
func (s *Session) MarkBoundary(which region.Boundary) (region.Region, error) {
	return s.regions.SetFromPlayhead(which, s.player.CurrentTime())
}

// ClearRegion removes the loop region.
func (s *Session) ClearRegion() bool {
	return s.regions.Clear()
}

// SetTempo replaces the tempo configuration. The grid is recomputed and
// annotations follow their bars.
func (s *Session) SetTempo(cfg grid.TempoConfig) {
	s.tempo = cfg
	s.metro.SetBeatsPerBar(cfg.BeatsPerBar)
	s.metro.SetTempo(cfg.BPM)
	s.recomputeBars()
}

// SetBPM changes only the tempo.
func (s *Session) SetBPM(bpm grid.BPM) {
	cfg := s.tempo
	cfg.BPM = bpm
	s.SetTempo(cfg)
}

// SetBeatsPerBar changes only the time signature.
func (s *Session) SetBeatsPerBar(n int) {
	cfg := s.tempo
	cfg.BeatsPerBar = n
	s.SetTempo(cfg)
}

// SetOffset changes only the first bar's position.
func (s *Session) SetOffset(seconds float64) {
	cfg := s.tempo
	cfg.Offset = seconds
	s.SetTempo(cfg)
}

// SlotsPerBar returns the tab resolution for the current time signature.
func (s *Session) SlotsPerBar() int {
	return grid.SlotsPerBar(s.tempo.BeatsPerBar)
}

// Annotations exposes the annotation store for reading.
func (s *Session) Annotations() *annotation.Store { return s.notes }

func (s *Session) bar(i int) (float64, error) {
	if i < 0 || i >= len(s.bars) {
		return 0, fmt.Errorf("bar %d of %d: %w", i, len(s.bars), annotation.ErrOutOfRange)
	}
	return s.bars[i], nil
}

// SetChord sets a chord by bar index in the current grid.
func (s *Session) SetChord(bar, segment int, text string) error {
	t, err := s.bar(bar)
	if err != nil {
		return err
	}
	return s.notes.SetChord(t, segment, text)
}

// SetTabCell sets a tab cell by bar index in the current grid.
func (s *Session) SetTabCell(bar, str, slot int, text string) error {
	t, err := s.bar(bar)
	if err != nil {
		return err
	}
	return s.notes.SetTabCell(t, str, slot, text, s.SlotsPerBar())
}

// Chord returns a chord by bar index.
func (s *Session) Chord(bar, segment int) string {
	t, err := s.bar(bar)
	if err != nil {
		return ""
	}
	return s.notes.Chord(t, segment)
}

// TabRow returns one string's slots by bar index.
func (s *Session) TabRow(bar, str int) []string {
	t, err := s.bar(bar)
	if err != nil {
		return make([]string, s.SlotsPerBar())
	}
	return s.notes.TabRow(t, str, s.SlotsPerBar())
}

// ToggleMetronome turns clicks on or off.
func (s *Session) ToggleMetronome() { s.metro.Toggle() }

// Metronome returns the metronome state.
func (s *Session) Metronome() metronome.State { return s.metro.State() }

// SetClickVolume sets the click gain, clamped to [0, 2].
func (s *Session) SetClickVolume(v float64) { s.metro.SetVolume(v) }

// ClickVolume returns the click gain.
func (s *Session) ClickVolume() float64 { return s.metro.Volume() }

// Scroll exposes the scroll synchronizer so views can register.
func (s *Session) Scroll() *scroll.Synchronizer { return s.scroll }

// SetEditing holds autoscroll while an annotation cell is being edited.
func (s *Session) SetEditing(editing bool) { s.scroll.SetEditing(editing) }
