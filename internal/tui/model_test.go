package tui

import (
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/icco/riffloop/internal/clock"
	"github.com/icco/riffloop/internal/engine/enginetest"
	"github.com/icco/riffloop/internal/grid"
	"github.com/icco/riffloop/internal/remote"
	"github.com/icco/riffloop/internal/store"
)

type fixture struct {
	m      *Model
	player *enginetest.Fake
	clock  *clock.Manual
	store  *store.FileStore
	dir    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return newFixtureWithStore(t, st)
}

func newFixtureWithStore(t *testing.T, st *store.FileStore) *fixture {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	f := &fixture{
		player: enginetest.New(nil),
		clock:  clock.NewManual(time.Unix(0, 0)),
		store:  st,
		dir:    t.TempDir(),
	}
	m, err := New(Options{
		Dir:           f.dir,
		Store:         st,
		Provider:      enginetest.Provider(f.player),
		Clock:         f.clock,
		Bridge:        NewBridge(256),
		AutosaveDelay: time.Hour,
		Log:           log,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.m = m
	return f
}

// drain runs every queued bridge message through Update.
func (f *fixture) drain() {
	for {
		select {
		case msg := <-f.m.bridge.msgs:
			f.m.Update(msg)
		default:
			return
		}
	}
}

// open loads a track of the given length into the practice screen.
func (f *fixture) open(t *testing.T, name string, duration float64) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	if err := os.WriteFile(path, []byte{}, 0600); err != nil {
		t.Fatalf("Error creating test file: %v", err)
	}
	f.m.openFile(path)
	if f.m.mode != practiceMode {
		t.Fatalf("mode = %v after opening %s, message %q", f.m.mode, name, f.m.browser.message)
	}
	f.player.Ready(duration)
	f.drain()
	return path
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func (f *fixture) press(keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		_, cmd = f.m.Update(keyMsg(k))
		f.player.Flush()
		f.drain()
	}
	return cmd
}

// typeText sends each rune of s to the focused input.
func (f *fixture) typeText(s string) {
	for _, r := range s {
		f.m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestFileBrowserViewport(t *testing.T) {
	f := newFixture(t)
	m := f.m

	// Create 30 test files
	for i := 0; i < 30; i++ {
		filename := filepath.Join(f.dir, "test_"+strconv.Itoa(i)+"_file.wav")
		if err := os.WriteFile(filename, []byte{}, 0600); err != nil {
			t.Fatalf("Error creating test file: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(f.dir, "readme.txt"), []byte{}, 0600); err != nil {
		t.Fatal(err)
	}

	m.browser.loadFiles()
	m.height = 20 // Simulate a terminal height

	// ".." plus the audio files; the text file is not offered
	if got := len(m.browser.files); got != 31 {
		t.Fatalf("Expected 31 entries, got %d", got)
	}
	if m.browser.viewportTop != 0 {
		t.Errorf("Expected viewportTop to be 0, got %d", m.browser.viewportTop)
	}

	maxVisibleLines := m.visibleLines()
	for i := 0; i < maxVisibleLines+5; i++ {
		f.press("down")
	}
	if m.browser.cursor != maxVisibleLines+5 {
		t.Fatalf("Expected cursor at %d, got %d", maxVisibleLines+5, m.browser.cursor)
	}
	expectedTop := m.browser.cursor - maxVisibleLines + 1
	if m.browser.viewportTop != expectedTop {
		t.Errorf("Expected viewportTop to be %d, got %d", expectedTop, m.browser.viewportTop)
	}

	for m.browser.cursor > 2 {
		f.press("up")
	}
	if m.browser.viewportTop != 2 {
		t.Errorf("Expected viewportTop to be 2, got %d", m.browser.viewportTop)
	}

	if view := m.viewFileBrowser(); !strings.Contains(view, "more") {
		t.Error("Expected the view to note entries below the viewport")
	}
}

func TestFileBrowserLoadFilesResetsViewport(t *testing.T) {
	testDir := t.TempDir()
	for i := 0; i < 5; i++ {
		filename := filepath.Join(testDir, "test_file_"+strconv.Itoa(i)+".mp3")
		if err := os.WriteFile(filename, []byte{}, 0600); err != nil {
			t.Fatalf("Error creating test file: %v", err)
		}
	}

	fb := &fileBrowserModel{
		currentDir:  testDir,
		cursor:      10, // Out of bounds
		viewportTop: 5,  // Also out of bounds
	}
	fb.loadFiles()

	if fb.cursor >= len(fb.files) {
		t.Errorf("Expected cursor to be within bounds, got %d for %d files", fb.cursor, len(fb.files))
	}
	if fb.viewportTop > fb.cursor {
		t.Errorf("Expected viewportTop (%d) to be <= cursor (%d)", fb.viewportTop, fb.cursor)
	}
}

func TestOpenFileStartsPractice(t *testing.T) {
	f := newFixture(t)
	path := f.open(t, "Blue Bossa (take 2).wav", 60)

	if len(f.player.Loads) != 1 || f.player.Loads[0] != path {
		t.Errorf("Loads = %v, want [%s]", f.player.Loads, path)
	}
	if f.m.sessionID != "Blue-Bossa-take-2" {
		t.Errorf("sessionID = %q", f.m.sessionID)
	}
	if !f.m.sess.Ready() {
		t.Fatal("session not ready after the player reported Ready")
	}
	if view := f.m.View(); !strings.Contains(view, "paused") {
		t.Errorf("practice view missing transport state:\n%s", view)
	}
}

func TestTransportAndLoopKeys(t *testing.T) {
	f := newFixture(t)
	f.open(t, "song.wav", 60)

	f.press(" ")
	if !f.player.IsPlay {
		t.Fatal("space did not start playback")
	}
	if cmd := f.m.startFrames(); cmd != nil || !f.m.ticking {
		t.Error("expected frame ticks to be running while playing")
	}

	f.player.Now = 10
	f.press("[")
	r, ok := f.m.sess.Region()
	if !ok || r.Start != 10 {
		t.Fatalf("region after [ = %v, %v; want start 10", r, ok)
	}
	f.player.Now = 14
	f.press("]")
	if r, _ = f.m.sess.Region(); r.End != 14 {
		t.Errorf("region end = %v, want 14", r.End)
	}

	f.press("S")
	if r, _ = f.m.sess.Region(); r.Start != 10.5 {
		t.Errorf("coarse nudge start = %v, want 10.5", r.Start)
	}
	f.press("d")
	if r, _ = f.m.sess.Region(); math.Abs(r.End-13.95) > 1e-9 {
		t.Errorf("fine nudge end = %v, want 13.95", r.End)
	}

	f.press("x")
	if _, ok := f.m.sess.Region(); ok {
		t.Error("x did not clear the region")
	}
	f.press("x")
	if f.m.message == "" {
		t.Error("expected a message clearing with no region")
	}

	f.press(" ")
	if f.player.IsPlay {
		t.Error("space did not pause")
	}
}

func TestPlayBeforeReadyShowsMessage(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.dir, "slow.wav")
	if err := os.WriteFile(path, []byte{}, 0600); err != nil {
		t.Fatal(err)
	}
	f.m.openFile(path)
	f.press(" ")
	if f.player.Plays != 0 {
		t.Error("played before the track was ready")
	}
	if f.m.message != "Track is still loading" {
		t.Errorf("message = %q", f.m.message)
	}
}

func TestTempoEditAndAnnotations(t *testing.T) {
	f := newFixture(t)
	f.open(t, "song.wav", 60)

	f.press("enter")
	if f.m.edit != editNone {
		t.Fatal("cell editing started without a grid")
	}

	f.press("b")
	f.typeText("120")
	f.press("enter")
	if bpm, _ := f.m.sess.Tempo().BPM.Unpack(); bpm != 120 {
		t.Fatalf("BPM = %d, want 120", bpm)
	}
	if got := len(f.m.sess.Bars()); got != 31 {
		t.Errorf("bars = %d, want 31", got)
	}

	f.press("enter")
	if !f.m.sess.Scroll().Editing() {
		t.Error("autoscroll not held while editing")
	}
	f.typeText("Am7")
	f.press("enter")
	if f.m.sess.Scroll().Editing() {
		t.Error("autoscroll still held after editing")
	}
	if got := f.m.sess.Chord(0, 0); got != "Am7" {
		t.Errorf("chord = %q, want Am7", got)
	}
	if !f.m.dirty {
		t.Error("edit did not mark the session modified")
	}

	// Down to the high e string, then write two frets.
	f.press("j", "enter")
	f.typeText("12")
	f.press("enter", "enter")
	f.typeText("x")
	f.press("enter")
	row := f.m.sess.TabRow(0, 0)
	if row[0] != "12" || row[1] != "" {
		t.Errorf("tab row = %q, want 12 then blank", row)
	}
	if f.m.message == "" {
		t.Error("expected a message for an invalid fret")
	}

	f.m.cursor.col = 0
	f.press("backspace")
	if got := f.m.sess.TabRow(0, 0)[0]; got != "" {
		t.Errorf("cell after backspace = %q", got)
	}
}

func TestTempoEditRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	f.open(t, "song.wav", 60)

	f.press("b")
	f.typeText("fast")
	f.press("enter")
	if f.m.sess.Tempo().BPM.IsSet() {
		t.Error("BPM set from non-numeric input")
	}
	if f.m.message == "" {
		t.Error("expected an error message")
	}

	f.press("+")
	if bpm, _ := f.m.sess.Tempo().BPM.Unpack(); bpm != defaultBPM {
		t.Errorf("+ on an unset tempo = %d, want %d", bpm, defaultBPM)
	}
	f.press("-", "-")
	if bpm, _ := f.m.sess.Tempo().BPM.Unpack(); bpm != defaultBPM-2 {
		t.Errorf("BPM = %d, want %d", bpm, defaultBPM-2)
	}

	f.press("B")
	f.typeText("0")
	f.press("enter")
	if got := f.m.sess.Tempo().BeatsPerBar; got != grid.DefaultBeatsPerBar {
		t.Errorf("beats per bar = %d after invalid input", got)
	}

	f.press("b", "esc")
	if f.m.edit != editNone {
		t.Error("esc did not cancel the edit")
	}
}

func TestSaveAndResume(t *testing.T) {
	f := newFixture(t)
	path := f.open(t, "song.wav", 60)

	f.press("b")
	f.typeText("90")
	f.press("enter", "enter")
	f.typeText("D")
	f.press("enter")

	cmd := f.press("w")
	if cmd == nil {
		t.Fatal("w returned no save command")
	}
	msg := cmd()
	saved, ok := msg.(savedMsg)
	if !ok || saved.err != nil {
		t.Fatalf("save result = %#v", msg)
	}
	f.m.Update(msg)

	rec, err := f.store.Load(context.Background(), "song")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rec.SourceRef != path || rec.BPM == nil || *rec.BPM != 90 {
		t.Errorf("saved record = %+v", rec)
	}
	if len(rec.Chords) != 1 {
		t.Errorf("saved chords = %v", rec.Chords)
	}

	// A new program on the same store resumes the session.
	g := newFixtureWithStore(t, f.store)
	g.dir = f.dir
	g.m.openFile(path)
	g.player.Ready(60)
	g.drain()
	if bpm, _ := g.m.sess.Tempo().BPM.Unpack(); bpm != 90 {
		t.Errorf("resumed BPM = %d, want 90", bpm)
	}
	if got := g.m.sess.Chord(0, 0); got != "D" {
		t.Errorf("resumed chord = %q, want D", got)
	}
}

func TestBackToBrowserAndResumeFromList(t *testing.T) {
	f := newFixture(t)
	f.open(t, "song.wav", 60)
	f.press("T")
	f.typeText("Etude")
	f.press("enter")

	cmd := f.press("q")
	if f.m.mode != fileBrowserMode {
		t.Fatal("q did not return to the browser")
	}
	if cmd == nil {
		t.Fatal("leaving practice with edits returned no save command")
	}
	f.m.Update(cmd())

	f.press("tab")
	if len(f.m.browser.sessions) != 1 || f.m.browser.sessions[0].Title != "Etude" {
		t.Fatalf("sessions = %+v", f.m.browser.sessions)
	}
	f.press("enter")
	if f.m.mode != practiceMode || f.m.sessionID != "song" {
		t.Errorf("mode = %v, session %q after resuming", f.m.mode, f.m.sessionID)
	}

	// The browser comes back on the session list.
	f.press("q", "d")
	if len(f.m.browser.sessions) != 0 {
		t.Errorf("sessions after delete = %+v", f.m.browser.sessions)
	}
}

func TestRemoteActionsRunOnProgramGoroutine(t *testing.T) {
	f := newFixture(t)
	f.m.Remote(remote.TogglePlay)
	f.drain()
	if f.player.Plays != 0 {
		t.Error("remote action applied outside practice")
	}

	f.open(t, "song.wav", 60)
	f.m.Remote(remote.TogglePlay)
	f.drain()
	if !f.player.IsPlay {
		t.Error("remote toggle did not start playback")
	}
	f.player.Now = 5
	f.m.Remote(remote.MarkStart)
	f.drain()
	if r, ok := f.m.sess.Region(); !ok || r.Start != 5 {
		t.Errorf("region = %v, %v", r, ok)
	}
}

func TestZoomAndManualScroll(t *testing.T) {
	f := newFixture(t)
	f.open(t, "song.wav", 60)

	f.press(",")
	if f.m.message == "" {
		t.Error("expected a hint scrolling in fit mode")
	}

	f.press("z")
	if got := f.m.sess.State().Zoom; got != 5 {
		t.Fatalf("zoom = %v, want 5", got)
	}
	f.press(".")
	for _, p := range f.m.panes {
		if p.offset != float64(defaultLaneWidth/4) {
			t.Errorf("%s offset = %v, want %d", p.name, p.offset, defaultLaneWidth/4)
		}
	}
	if !f.m.sess.Scroll().Quiet() {
		t.Error("manual scroll did not start the quiet window")
	}

	f.press("Z", "Z")
	if got := f.m.sess.State().Zoom; got != 0 {
		t.Errorf("zoom = %v, want fit", got)
	}
}

func TestLaneMapping(t *testing.T) {
	l := lane{start: 10, secPerCol: 0.5, cols: 20}
	if c, ok := l.col(12.2); !ok || c != 4 {
		t.Errorf("col(12.2) = %d, %v", c, ok)
	}
	if _, ok := l.col(9.9); ok {
		t.Error("time before the lane mapped to a column")
	}
	if _, ok := l.col(20); ok {
		t.Error("time past the lane mapped to a column")
	}
	if got := l.time(4); got != 12 {
		t.Errorf("time(4) = %v", got)
	}

	row := blankRow(5, '-')
	writeText(row, 3, "Am7")
	if got := strings.Join(row, ""); got != "---Am" {
		t.Errorf("row = %q", got)
	}
}

func TestSessionIDFor(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/music/Blue Bossa.mp3", "Blue-Bossa"},
		{"/music/solo_01.wav", "solo_01"},
		{"/music/ça va.wav", "a-va"},
	}
	for _, tt := range tests {
		if got := sessionIDFor(tt.path); got != tt.want {
			t.Errorf("sessionIDFor(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
	if got := sessionIDFor("/music/---.wav"); !store.ValidID(got) || len(got) != 36 {
		t.Errorf("fallback id = %q", got)
	}
}

func TestFormatClock(t *testing.T) {
	if got := formatClock(75.25); got != "1:15.2" && got != "1:15.3" {
		t.Errorf("formatClock(75.25) = %q", got)
	}
	if got := formatClock(-3); got != "0:00.0" {
		t.Errorf("formatClock(-3) = %q", got)
	}
}
