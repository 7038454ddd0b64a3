// Package midifile moves tempo information between sessions and Standard
// MIDI Files.
package midifile

import (
	"errors"
	"fmt"
	"io"
	"math"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/icco/riffloop/internal/grid"
)

const (
	ticksPerQuarterNote = 960 // Standard MIDI resolution
	defaultBPM          = 120 // SMF tempo when the file sets none
	drumChannel         = 9
	clickNote           = 76
	accentNote          = 77
	clickVelocity       = 100
	accentVelocity      = 127
	clickLength         = ticksPerQuarterNote / 8
)

// ErrNoGrid is returned when a click track is requested for a tempo that
// yields no bars.
var ErrNoGrid = errors.New("tempo has no bar grid")

// Tempo is what a MIDI file says about the bar grid.
type Tempo struct {
	BPM         float64
	BeatsPerBar int
	// Offset is the time of the first note, taken as the first downbeat.
	Offset float64
	// Changes counts tempo events after the first; only the first is used.
	Changes int
}

// Config converts t to a grid configuration, rounding the tempo to a whole
// BPM.
func (t Tempo) Config() grid.TempoConfig {
	return grid.TempoConfig{
		BPM:         grid.NewBPM(int(math.Round(t.BPM))),
		BeatsPerBar: t.BeatsPerBar,
		Offset:      grid.Round(t.Offset),
	}
}

// ReadTempoFile reads the tempo of the SMF at path.
func ReadTempoFile(path string) (Tempo, error) {
	rd, err := smf.ReadFile(path)
	if err != nil {
		return Tempo{}, fmt.Errorf("read MIDI file: %w", err)
	}
	return tempoOf(rd)
}

// ReadTempo reads the tempo of an SMF stream.
func ReadTempo(r io.Reader) (Tempo, error) {
	rd, err := smf.ReadFrom(r)
	if err != nil {
		return Tempo{}, fmt.Errorf("failed to parse MIDI: %w", err)
	}
	return tempoOf(rd)
}

func tempoOf(rd *smf.SMF) (Tempo, error) {
	mt, ok := rd.TimeFormat.(smf.MetricTicks)
	if !ok {
		return Tempo{}, fmt.Errorf("unsupported MIDI time format %v", rd.TimeFormat)
	}

	t := Tempo{BPM: defaultBPM, BeatsPerBar: grid.DefaultBeatsPerBar}
	tempoSeen, meterSeen := false, false
	firstNote := int64(-1)

	for _, track := range rd.Tracks {
		var tick int64
		for _, ev := range track {
			tick += int64(ev.Delta)

			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) {
				if !tempoSeen {
					t.BPM = bpm
					tempoSeen = true
				} else {
					t.Changes++
				}
			}

			var num, denom uint8
			if !meterSeen && ev.Message.GetMetaMeter(&num, &denom) && num > 0 {
				t.BeatsPerBar = int(num)
				meterSeen = true
			}

			var ch, key, vel uint8
			if ev.Message.GetNoteOn(&ch, &key, &vel) && vel > 0 {
				if firstNote < 0 || tick < firstNote {
					firstNote = tick
				}
			}
		}
	}

	if firstNote > 0 {
		t.Offset = float64(firstNote) / float64(mt.Resolution()) * 60 / t.BPM
	}
	return t, nil
}

// WriteClickTrack writes an SMF with a tempo track and a click on every beat
// of the grid, from the first beat at or after zero until duration. Downbeats
// use an accented note.
func WriteClickTrack(w io.Writer, cfg grid.TempoConfig, duration float64) error {
	sm, err := clickTrack(cfg, duration)
	if err != nil {
		return err
	}
	if _, err := sm.WriteTo(w); err != nil {
		return fmt.Errorf("error writing MIDI file: %w", err)
	}
	return nil
}

// WriteClickTrackFile is WriteClickTrack to a file.
func WriteClickTrackFile(path string, cfg grid.TempoConfig, duration float64) error {
	sm, err := clickTrack(cfg, duration)
	if err != nil {
		return err
	}
	if err := sm.WriteFile(path); err != nil {
		return fmt.Errorf("error writing MIDI file: %w", err)
	}
	return nil
}

func clickTrack(cfg grid.TempoConfig, duration float64) (*smf.SMF, error) {
	bpm, _ := cfg.BPM.Unpack()
	if _, ok := grid.BarWidth(cfg); !ok || !finite(duration) || duration <= 0 || !finite(cfg.Offset) {
		return nil, ErrNoGrid
	}

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(ticksPerQuarterNote)

	// Track 0: Tempo track
	var track0 smf.Track
	track0.Add(0, smf.MetaMeter(uint8(min(cfg.BeatsPerBar, 255)), 4)) //nolint:gosec // clamped
	track0.Add(0, smf.MetaTempo(float64(bpm)))
	track0.Close(0)
	if err := sm.Add(track0); err != nil {
		return nil, fmt.Errorf("error adding tempo track: %w", err)
	}

	var clicks smf.Track
	var lastTick int64
	for _, b := range beats(cfg, duration) {
		note, vel := uint8(clickNote), uint8(clickVelocity)
		if b.accent {
			note, vel = accentNote, accentVelocity
		}
		tick := max(b.tick, lastTick)
		clicks.Add(uint32(tick-lastTick), midi.NoteOn(drumChannel, note, vel)) //nolint:gosec // ticks ascend
		clicks.Add(clickLength, midi.NoteOff(drumChannel, note))
		lastTick = tick + clickLength
	}
	clicks.Close(0)
	if err := sm.Add(clicks); err != nil {
		return nil, fmt.Errorf("error adding click track: %w", err)
	}
	return sm, nil
}

type beat struct {
	tick   int64
	accent bool
}

// beats lists the beat positions in ticks. Beats before zero are dropped; the
// accent pattern still counts from the offset so downbeats line up with bars.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func beats(cfg grid.TempoConfig, duration float64) []beat {
	bpm, _ := cfg.BPM.Unpack()
	beatLen := 60 / float64(bpm)
	first := 0
	if cfg.Offset < 0 {
		first = int(math.Ceil(-cfg.Offset / beatLen))
	}

	var out []beat
	for i := first; ; i++ {
		t := grid.Round(cfg.Offset + float64(i)*beatLen)
		if t > duration {
			break
		}
		out = append(out, beat{
			tick:   int64(math.Round((cfg.Offset/beatLen + float64(i)) * ticksPerQuarterNote)),
			accent: i%cfg.BeatsPerBar == 0,
		})
	}
	return out
}
