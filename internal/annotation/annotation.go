// Package annotation stores chord and tab text keyed by bar.
package annotation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/icco/riffloop/internal/grid"
)

var (
	// ErrInvalidTab is returned for tab text that is not a fret number or a
	// single blank.
	ErrInvalidTab = errors.New("tab cell must be a fret number or blank")
	// ErrOutOfRange is returned for a segment, string or slot index outside
	// its bar.
	ErrOutOfRange = errors.New("annotation index out of range")
)

// BarKey addresses a bar by its start time in whole milliseconds. Bar times
// from grid.Bars are already millisecond-rounded, so the conversion is exact.
type BarKey int64

// KeyOf returns the key for a bar start time in seconds.
func KeyOf(bar float64) BarKey {
	return BarKey(math.Round(bar * 1000))
}

// Seconds returns the bar start time.
func (k BarKey) Seconds() float64 {
	return float64(k) / 1000
}

// String formats the key the way the session record does, e.g. "2.000".
func (k BarKey) String() string {
	return strconv.FormatFloat(k.Seconds(), 'f', 3, 64)
}

// ParseKey parses a record key such as "2.000" or "2".
func ParseKey(s string) (BarKey, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("bad bar key %q", s)
	}
	return KeyOf(v), nil
}

// ChordKey addresses one quarter of a bar.
type ChordKey struct {
	Bar     BarKey
	Segment int
}

// TabKey addresses one string of a bar.
type TabKey struct {
	Bar    BarKey
	String int
}

// Store holds sparse chord and tab maps. Absent keys are empty.
type Store struct {
	chords map[ChordKey]string
	tabs   map[TabKey][]string
}

// New returns an empty store.
func New() *Store {
	return &Store{
		chords: map[ChordKey]string{},
		tabs:   map[TabKey][]string{},
	}
}

// ValidateTab accepts digits (multi-digit frets) or a single blank.
func ValidateTab(text string) error {
	if text == "" || text == " " {
		return nil
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return fmt.Errorf("%q: %w", text, ErrInvalidTab)
		}
	}
	return nil
}

// SetChord sets the chord for one segment of a bar. Empty text clears it.
func (s *Store) SetChord(bar float64, segment int, text string) error {
	if segment < 0 || segment >= grid.SegmentsPerBar {
		return fmt.Errorf("segment %d: %w", segment, ErrOutOfRange)
	}
	k := ChordKey{KeyOf(bar), segment}
	text = strings.TrimSpace(text)
	if text == "" {
		delete(s.chords, k)
		return nil
	}
	s.chords[k] = text
	return nil
}

// Chord returns the chord for one segment of a bar.
func (s *Store) Chord(bar float64, segment int) string {
	return s.chords[ChordKey{KeyOf(bar), segment}]
}

// SetTabCell sets one slot of a string's row in a bar. A stored row shorter
// than slotsPerBar is rebuilt at full length with its old values kept at
// their indices.
func (s *Store) SetTabCell(bar float64, str, slot int, text string, slotsPerBar int) error {
	if str < 0 || str >= grid.Strings {
		return fmt.Errorf("string %d: %w", str, ErrOutOfRange)
	}
	if slot < 0 || slot >= slotsPerBar {
		return fmt.Errorf("slot %d of %d: %w", slot, slotsPerBar, ErrOutOfRange)
	}
	if err := ValidateTab(text); err != nil {
		return err
	}
	if text == " " {
		text = ""
	}

	k := TabKey{KeyOf(bar), str}
	row := resize(s.tabs[k], slotsPerBar)
	row[slot] = text
	if blank(row) {
		delete(s.tabs, k)
		return nil
	}
	s.tabs[k] = row
	return nil
}

// TabRow returns a copy of a string's row, padded to at least slotsPerBar.
func (s *Store) TabRow(bar float64, str, slotsPerBar int) []string {
	return resize(s.tabs[TabKey{KeyOf(bar), str}], slotsPerBar)
}

// Tab returns one tab cell.
func (s *Store) Tab(bar float64, str, slot int) string {
	row := s.tabs[TabKey{KeyOf(bar), str}]
	if slot < 0 || slot >= len(row) {
		return ""
	}
	return row[slot]
}

// Empty reports whether nothing is stored.
func (s *Store) Empty() bool {
	return len(s.chords) == 0 && len(s.tabs) == 0
}

// Bars returns every bar key that has an annotation, in order.
func (s *Store) Bars() []BarKey {
	seen := map[BarKey]struct{}{}
	for k := range s.chords {
		seen[k.Bar] = struct{}{}
	}
	for k := range s.tabs {
		seen[k.Bar] = struct{}{}
	}
	keys := maps.Keys(seen)
	slices.Sort(keys)
	return keys
}

// Rekey moves annotations from the bar lattice of one tempo to that of
// another. An entry on bar n of the old lattice lands on bar n of the new
// one, also for bars past the end of the track, so a later tempo change back
// restores every key. Entries between bars keep their relative position. A
// cell that would land on an occupied key moves on a millisecond at a time
// until it finds a free one; nothing is overwritten.
func (s *Store) Rekey(from, to grid.TempoConfig) {
	if _, ok := grid.TimeAt(from, 0); !ok {
		return
	}
	if _, ok := grid.TimeAt(to, 0); !ok {
		return
	}

	moved := map[BarKey]BarKey{}
	var onBar, between []BarKey
	for _, k := range s.Bars() {
		pos, _ := grid.BarPosition(from, k.Seconds())
		n := math.Round(pos)
		if t, _ := grid.TimeAt(from, n); n >= 0 && KeyOf(t) == k {
			t, _ = grid.TimeAt(to, n)
			moved[k] = KeyOf(t)
			onBar = append(onBar, k)
			continue
		}
		t, _ := grid.TimeAt(to, pos)
		moved[k] = KeyOf(t)
		between = append(between, k)
	}

	chords := make(map[ChordKey]string, len(s.chords))
	tabs := make(map[TabKey][]string, len(s.tabs))
	for _, k := range append(onBar, between...) {
		for seg := 0; seg < grid.SegmentsPerBar; seg++ {
			if v, ok := s.chords[ChordKey{k, seg}]; ok {
				dst := ChordKey{moved[k], seg}
				for chords[dst] != "" {
					dst.Bar++
				}
				chords[dst] = v
			}
		}
		for str := 0; str < grid.Strings; str++ {
			if v, ok := s.tabs[TabKey{k, str}]; ok {
				dst := TabKey{moved[k], str}
				for tabs[dst] != nil {
					dst.Bar++
				}
				tabs[dst] = v
			}
		}
	}
	s.chords, s.tabs = chords, tabs
}

func resize(row []string, n int) []string {
	out := make([]string, max(len(row), n))
	copy(out, row)
	return out
}

func blank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
