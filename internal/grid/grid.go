// Package grid derives musical bar positions from a tempo configuration.
package grid

import (
	"math"
	"sort"
	"strconv"
)

const (
	// SegmentsPerBar is the number of chord cells in one bar.
	SegmentsPerBar = 4
	// Strings is the number of tab rows (standard guitar).
	Strings = 6
	// DefaultBeatsPerBar is used when a session has no time signature.
	DefaultBeatsPerBar = 4
	// MinBarWidth is the millisecond resolution bars are rounded to. A
	// narrower bar would round onto its neighbour.
	MinBarWidth = 0.001
)

// BPM is an optional tempo. The zero value is unset, which is different from
// an explicit (invalid) tempo of 0.
type BPM struct {
	value int
	set   bool
}

// NewBPM returns a set tempo.
func NewBPM(v int) BPM { return BPM{value: v, set: true} }

// UnsetBPM returns the unset tempo.
func UnsetBPM() BPM { return BPM{} }

// Unpack returns the tempo and whether it is set.
func (b BPM) Unpack() (int, bool) { return b.value, b.set }

// IsSet reports whether a tempo was given.
func (b BPM) IsSet() bool { return b.set }

// Valid reports whether the tempo can drive a grid or a metronome.
func (b BPM) Valid() bool { return b.set && b.value > 0 }

// Ptr returns nil for an unset tempo, for optional persistence fields.
func (b BPM) Ptr() *int {
	if !b.set {
		return nil
	}
	v := b.value
	return &v
}

// BPMFromPtr is the inverse of Ptr.
func BPMFromPtr(p *int) BPM {
	if p == nil {
		return UnsetBPM()
	}
	return NewBPM(*p)
}

// String renders an unset tempo as an empty string, never as "0".
func (b BPM) String() string {
	if !b.set {
		return ""
	}
	return strconv.Itoa(b.value)
}

// TempoConfig positions bars on the timeline.
type TempoConfig struct {
	BPM         BPM
	BeatsPerBar int
	// Offset is the time of the first downbeat. It may be negative or past
	// the end of the track.
	Offset float64
}

// BarWidth returns the length of one bar in seconds. ok is false for
// degenerate configurations.
func BarWidth(cfg TempoConfig) (width float64, ok bool) {
	bpm, set := cfg.BPM.Unpack()
	if !set || bpm <= 0 || cfg.BeatsPerBar <= 0 {
		return 0, false
	}
	width = 60 / float64(bpm) * float64(cfg.BeatsPerBar)
	if width < MinBarWidth {
		return 0, false
	}
	return width, true
}

// Bars returns the bar start times inside [0, duration], rounded to the
// millisecond. Degenerate inputs yield an empty (non-nil) slice.
func Bars(duration float64, cfg TempoConfig) []float64 {
	bars := []float64{}
	width, ok := BarWidth(cfg)
	if !ok || !finite(duration) || duration <= 0 || !finite(cfg.Offset) {
		return bars
	}

	for i := 0; ; i++ {
		t := timeAt(cfg.Offset, width, float64(i))
		if t > duration {
			break
		}
		if t < 0 {
			continue
		}
		if n := len(bars); n > 0 && t <= bars[n-1] {
			continue
		}
		bars = append(bars, t)
	}
	return bars
}

// SlotsPerBar returns the number of tab slots in one bar. It depends only on
// the time signature.
func SlotsPerBar(beatsPerBar int) int {
	if beatsPerBar <= 0 {
		return 0
	}
	return 4 * beatsPerBar
}

// BarAt returns the index of the bar containing t, or -1 when t is before the
// first bar or bars is empty.
func BarAt(bars []float64, t float64) int {
	i := sort.SearchFloat64s(bars, t)
	if i < len(bars) && bars[i] == t {
		return i
	}
	return i - 1
}

// Round rounds seconds to millisecond precision.
func Round(t float64) float64 {
	return math.Round(t*1000) / 1000
}

// TimeAt returns the time of position pos on the bar lattice of cfg, rounded
// to the millisecond. Position 0 is the first bar at or after zero and whole
// positions are bar starts; the lattice runs on past the end of any track.
func TimeAt(cfg TempoConfig, pos float64) (float64, bool) {
	width, ok := BarWidth(cfg)
	if !ok || !finite(cfg.Offset) || !finite(pos) {
		return 0, false
	}
	return timeAt(cfg.Offset, width, pos), true
}

// BarPosition is the inverse of TimeAt: it reports where t falls on the bar
// lattice of cfg, in bars.
func BarPosition(cfg TempoConfig, t float64) (float64, bool) {
	width, ok := BarWidth(cfg)
	if !ok || !finite(cfg.Offset) || !finite(t) {
		return 0, false
	}
	return (t-cfg.Offset)/width - float64(firstBar(cfg.Offset, width)), true
}

// firstBar is the lattice index of the first bar at or after zero. Whole bars
// before zero are skipped arithmetically so a large negative offset stays
// cheap.
func firstBar(offset, width float64) int {
	if offset < 0 {
		return int(math.Ceil(-offset / width))
	}
	return 0
}

// timeAt multiplies rather than accumulates to keep drift out of long tracks.
func timeAt(offset, width, pos float64) float64 {
	t := Round(offset + (float64(firstBar(offset, width))+pos)*width)
	if t == 0 {
		t = 0 // normalize -0
	}
	return t
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
