package annotation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/icco/riffloop/internal/grid"
)

func TestValidateTab(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", true},
		{" ", true},
		{"0", true},
		{"12", true},
		{"24", true},
		{"  ", false},
		{"x", false},
		{"1a", false},
		{"-1", false},
		{"h5", false},
		{"١", false}, // Arabic-Indic digit
	}
	for _, tt := range tests {
		err := ValidateTab(tt.in)
		if (err == nil) != tt.want {
			t.Errorf("ValidateTab(%q) = %v, want ok=%v", tt.in, err, tt.want)
		}
		if err != nil && !errors.Is(err, ErrInvalidTab) {
			t.Errorf("ValidateTab(%q) error %v is not ErrInvalidTab", tt.in, err)
		}
	}
}

func TestSetTabCellRejectsBeforeStoring(t *testing.T) {
	s := New()
	if err := s.SetTabCell(2, 0, 0, "x", 16); !errors.Is(err, ErrInvalidTab) {
		t.Fatalf("SetTabCell() error = %v, want ErrInvalidTab", err)
	}
	if !s.Empty() {
		t.Error("invalid text was stored")
	}
	if err := s.SetTabCell(2, 6, 0, "1", 16); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("string 6: error = %v, want ErrOutOfRange", err)
	}
	if err := s.SetTabCell(2, 0, 16, "1", 16); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("slot 16: error = %v, want ErrOutOfRange", err)
	}
}

func TestTabRowResize(t *testing.T) {
	s := New()
	small := grid.SlotsPerBar(1)
	for i, v := range []string{"3", "5", "", "7"} {
		if err := s.SetTabCell(4, 2, i, v, small); err != nil {
			t.Fatal(err)
		}
	}

	big := grid.SlotsPerBar(4)
	if err := s.SetTabCell(4, 2, 5, "9", big); err != nil {
		t.Fatalf("SetTabCell() after growing: %v", err)
	}
	row := s.TabRow(4, 2, big)
	if len(row) != 16 {
		t.Fatalf("row length = %d, want 16", len(row))
	}
	want := []string{"3", "5", "", "7", "", "9", "", "", "", "", "", "", "", "", "", ""}
	if !reflect.DeepEqual(row, want) {
		t.Errorf("row = %q, want %q", row, want)
	}
}

func TestTabRowIsCopy(t *testing.T) {
	s := New()
	s.SetTabCell(0, 0, 0, "1", 4)
	row := s.TabRow(0, 0, 4)
	row[0] = "99"
	if got := s.Tab(0, 0, 0); got != "1" {
		t.Errorf("stored cell changed through TabRow: %q", got)
	}
}

func TestBlankClearsCell(t *testing.T) {
	s := New()
	s.SetTabCell(0, 1, 2, "5", 4)
	s.SetTabCell(0, 1, 2, " ", 4)
	s.SetChord(0, 1, "Am")
	s.SetChord(0, 1, "  ")
	if !s.Empty() {
		t.Errorf("store not empty after blanking: %v", s.Bars())
	}
}

func TestChordSegments(t *testing.T) {
	s := New()
	if err := s.SetChord(2, 4, "G"); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("segment 4: error = %v, want ErrOutOfRange", err)
	}
	s.SetChord(2.0000001, 3, " G7 ")
	if got := s.Chord(2, 3); got != "G7" {
		t.Errorf("Chord() = %q, want G7", got)
	}
}

func tempo(bpm, beats int, offset float64) grid.TempoConfig {
	return grid.TempoConfig{BPM: grid.NewBPM(bpm), BeatsPerBar: beats, Offset: offset}
}

func TestRekeyByOrdinal(t *testing.T) {
	fast, slow := tempo(120, 4, 0), tempo(60, 4, 0) // bars every 2s and 4s

	s := New()
	for i, c := range []string{"A", "B", "C", "D", "E", "F"} {
		s.SetChord(float64(2*i), 0, c)
	}
	s.SetChord(8, 1, "G")
	s.SetChord(3.5, 0, "X") // between bars 1 and 2
	s.SetTabCell(2, 5, 1, "3", 16)

	s.Rekey(fast, slow)

	checks := []struct {
		bar  float64
		seg  int
		want string
	}{
		{0, 0, "A"},
		{4, 0, "B"},
		{8, 0, "C"},
		{12, 0, "D"}, // past a 10s track, kept for later
		{16, 0, "E"},
		{16, 1, "G"},
		{20, 0, "F"},
		{7, 0, "X"},
		{2, 0, ""},
		{3.5, 0, ""},
	}
	for _, c := range checks {
		if got := s.Chord(c.bar, c.seg); got != c.want {
			t.Errorf("Chord(%v, %d) = %q, want %q", c.bar, c.seg, got, c.want)
		}
	}
	if got := s.Tab(4, 5, 1); got != "3" {
		t.Errorf("tab did not move with its bar: %q", got)
	}
}

func TestRekeyRoundTrip(t *testing.T) {
	fast, slow := tempo(120, 4, 0), tempo(60, 4, 0)

	s := New()
	for i, c := range []string{"A", "B", "C", "D", "E", "F"} {
		s.SetChord(float64(2*i), 0, c)
	}
	s.SetChord(3.5, 2, "X")
	s.SetTabCell(8, 0, 3, "5", 16)
	wantChords, wantTabs := s.Record()

	s.Rekey(fast, slow)
	s.Rekey(slow, tempo(90, 3, -0.25))
	s.Rekey(tempo(90, 3, -0.25), fast)

	chords, tabs := s.Record()
	if !reflect.DeepEqual(chords, wantChords) {
		t.Errorf("chords after round trip = %q, want %q", chords, wantChords)
	}
	if !reflect.DeepEqual(tabs, wantTabs) {
		t.Errorf("tabs after round trip = %q, want %q", tabs, wantTabs)
	}
}

func TestRekeyNeverOverwrites(t *testing.T) {
	// Three cells a millisecond apart squeeze onto one key when bars get
	// eight times narrower.
	s := New()
	s.SetChord(2.001, 0, "A")
	s.SetChord(2.002, 0, "B")
	s.SetChord(2.003, 0, "C")

	s.Rekey(tempo(60, 4, 0), tempo(480, 4, 0))

	got := []string{s.Chord(0.25, 0), s.Chord(0.251, 0), s.Chord(0.252, 0)}
	if !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Errorf("chords = %q, want A B C on consecutive keys", got)
	}
}

func TestRekeyDegenerateTempo(t *testing.T) {
	s := New()
	s.SetChord(2, 0, "C")
	s.Rekey(tempo(120, 4, 0), tempo(0, 4, 0))
	s.Rekey(grid.TempoConfig{BeatsPerBar: 4}, tempo(60, 4, 0))
	s.Rekey(tempo(120, 4, 0), tempo(1_000_000, 1, 0))
	if s.Chord(2, 0) != "C" {
		t.Error("annotation moved by a degenerate tempo")
	}
}

func TestRecordRoundTrip(t *testing.T) {
	s := New()
	s.SetChord(2, 0, "Am")
	s.SetChord(2, 2, "E")
	s.SetTabCell(4.5, 0, 3, "12", 8)

	chords, tabs := s.Record()
	if !reflect.DeepEqual(chords["2.000"], []string{"Am", "", "E", ""}) {
		t.Errorf("chords = %q", chords)
	}
	rows := tabs["4.500"]
	if len(rows) != grid.Strings || rows[0][3] != "12" || len(rows[1]) != 0 {
		t.Errorf("tabs = %q", tabs)
	}

	back, err := FromRecord(chords, tabs)
	if err != nil {
		t.Fatal(err)
	}
	if back.Chord(2, 2) != "E" || back.Tab(4.5, 0, 3) != "12" {
		t.Error("FromRecord lost data")
	}
}

func TestFromRecordSkipsBadKeys(t *testing.T) {
	s, err := FromRecord(ChordMap{"abc": {"C"}, "1.000": {"D"}}, nil)
	if err == nil {
		t.Fatal("FromRecord() error = nil for a malformed key")
	}
	if s.Chord(1, 0) != "D" {
		t.Error("good entries were dropped with the bad one")
	}
}

func TestFromRecordDropsInvalidTabCells(t *testing.T) {
	s, err := FromRecord(nil, TabMap{"0.000": {{"3", "x", " "}}})
	if !strings.Contains(fmt.Sprint(err), "0.000[0][1]") {
		t.Fatalf("FromRecord() error = %v, want the bad cell named", err)
	}
	if got := s.TabRow(0, 0, 4); got[0] != "3" || got[1] != "" || got[2] != "" {
		t.Errorf("row = %q", got)
	}
}

func TestLegacyJSON(t *testing.T) {
	in := `{
		"chords": {"2.000": "Am", "4.000": ["C", "", "G", ""]},
		"tabs": {"2.000:0": ["3", "", "5", ""], "2.000:5": ["0"], "4.000": [[], ["1"], [], [], [], []]}
	}`
	var rec struct {
		Chords ChordMap `json:"chords"`
		Tabs   TabMap   `json:"tabs"`
	}
	if err := json.Unmarshal([]byte(in), &rec); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(rec.Chords["2.000"], []string{"Am", "", "", ""}) {
		t.Errorf("legacy chord = %q", rec.Chords["2.000"])
	}
	rows := rec.Tabs["2.000"]
	if len(rows) != grid.Strings || rows[0][2] != "5" || rows[5][0] != "0" {
		t.Errorf("legacy tabs = %q", rows)
	}

	s, err := FromRecord(rec.Chords, rec.Tabs)
	if err != nil {
		t.Fatal(err)
	}
	if s.Chord(4, 2) != "G" || s.Tab(4, 1, 0) != "1" || s.Tab(2, 0, 0) != "3" {
		t.Error("migrated store is missing entries")
	}
}

func TestLegacyYAML(t *testing.T) {
	in := `
chords:
  "1.500": Dm
tabs:
  "1.500:3": ["7", 9]
`
	var rec struct {
		Chords ChordMap `yaml:"chords"`
		Tabs   TabMap   `yaml:"tabs"`
	}
	if err := yaml.Unmarshal([]byte(in), &rec); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if rec.Chords["1.500"][0] != "Dm" {
		t.Errorf("chords = %q", rec.Chords)
	}
	if got := rec.Tabs["1.500"][3]; !reflect.DeepEqual(got, []string{"7", "9"}) {
		t.Errorf("tab row = %q, want [7 9]", got)
	}
}

func TestBadLegacyKey(t *testing.T) {
	_, err := TabsFromRaw(map[string]any{"2.000:9": []any{"1"}})
	if err == nil {
		t.Error("TabsFromRaw() accepted string index 9")
	}
}

func TestKeys(t *testing.T) {
	k, err := ParseKey("2")
	if err != nil || k.String() != "2.000" {
		t.Errorf("ParseKey(2) = %v, %v", k, err)
	}
	if KeyOf(1.9999999) != KeyOf(2) {
		t.Error("float noise changed the key")
	}
	if _, err := ParseKey("NaN"); err == nil {
		t.Error("ParseKey(NaN) succeeded")
	}
}
