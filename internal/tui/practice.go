package tui

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/icco/riffloop/internal/grid"
	"github.com/icco/riffloop/internal/metronome"
	"github.com/icco/riffloop/internal/region"
	"github.com/icco/riffloop/internal/scroll"
	"github.com/icco/riffloop/internal/session"
)

const (
	defaultLaneWidth = 72
	labelWidth       = 8
	defaultBPM       = 120
	minBPM           = 20
	maxBPM           = 300
	maxBeatsPerBar   = 16
	volumeStep       = 0.1
)

// zoomLevels are the columns per second z and Z step through. 0 fits the
// whole track.
var zoomLevels = []float64{0, 5, 10, 20, 50, 100}

// stringNames label the tab rows, highest string first.
var stringNames = [grid.Strings]string{"e", "B", "G", "D", "A", "E"}

// pane is one horizontally scrolling lane. The timeline, chord and tab lanes
// share one offset through the session's scroll synchronizer.
type pane struct {
	name   string
	width  int
	offset float64
}

func (p *pane) VisibleWidth() float64   { return float64(p.width) }
func (p *pane) ScrollTo(offset float64) { p.offset = offset }

var _ scroll.View = (*pane)(nil)

// cellCursor addresses an annotation cell: row 0 is the chord lane, rows 1
// to 6 are strings.
type cellCursor struct {
	bar int
	row int
	col int
}

type editTarget int

const (
	editNone editTarget = iota
	editCell
	editBPM
	editBeats
	editOffset
	editTitle
	editNotes
)

func (m *Model) laneWidth() int {
	if m.width == 0 {
		return defaultLaneWidth
	}
	return max(m.width-labelWidth, 20)
}

// lane maps timeline columns to seconds.
type lane struct {
	start     float64
	secPerCol float64
	cols      int
}

func (m *Model) lane() lane {
	st := m.sess.State()
	l := lane{cols: m.panes[0].width, secPerCol: 1}
	if st.Zoom > 0 {
		l.start = m.panes[0].offset / st.Zoom
		l.secPerCol = 1 / st.Zoom
	} else if st.Duration > 0 {
		l.secPerCol = st.Duration / float64(l.cols)
	}
	return l
}

// col returns the column holding t.
func (l lane) col(t float64) (int, bool) {
	c := int(math.Floor((t - l.start) / l.secPerCol))
	return c, c >= 0 && c < l.cols
}

func (l lane) time(c int) float64 {
	return l.start + float64(c)*l.secPerCol
}

func (m *Model) cursorCols(row int) int {
	if row == 0 {
		return grid.SegmentsPerBar
	}
	return m.sess.SlotsPerBar()
}

func (m *Model) clampCursor() {
	c := &m.cursor
	bars := len(m.sess.Bars())
	c.bar = min(max(c.bar, 0), max(bars-1, 0))
	c.row = min(max(c.row, 0), grid.Strings)
	c.col = min(max(c.col, 0), max(m.cursorCols(c.row)-1, 0))
}

// moveCol steps the cursor through cells, wrapping into the neighbouring bar.
func (m *Model) moveCol(delta int) {
	c := &m.cursor
	cols := m.cursorCols(c.row)
	bars := len(m.sess.Bars())
	c.col += delta
	switch {
	case c.col < 0 && c.bar > 0:
		c.bar--
		c.col = cols - 1
	case c.col >= cols && c.bar < bars-1:
		c.bar++
		c.col = 0
	}
	m.clampCursor()
}

func (m *Model) updatePractice(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	m.message = ""
	step := region.FineStep
	if len(msg.Runes) == 1 && unicode.IsUpper(msg.Runes[0]) {
		step = region.CoarseStep
	}

	switch {
	case key.Matches(msg, k.Play):
		if err := m.sess.TogglePlay(); err != nil {
			m.message = describe(err)
		}
	case key.Matches(msg, k.SeekBack):
		m.sess.SeekBy(-1)
	case key.Matches(msg, k.SeekForward):
		m.sess.SeekBy(1)
	case key.Matches(msg, k.JumpBack):
		m.sess.SeekBy(-5)
	case key.Matches(msg, k.JumpForward):
		m.sess.SeekBy(5)

	case key.Matches(msg, k.MarkStart):
		m.mark(region.Start)
	case key.Matches(msg, k.MarkEnd):
		m.mark(region.End)
	case key.Matches(msg, k.StartDown):
		m.nudge(region.Start, -step)
	case key.Matches(msg, k.StartUp):
		m.nudge(region.Start, step)
	case key.Matches(msg, k.EndDown):
		m.nudge(region.End, -step)
	case key.Matches(msg, k.EndUp):
		m.nudge(region.End, step)
	case key.Matches(msg, k.Clear):
		if !m.sess.ClearRegion() {
			m.message = "No loop to clear"
		}

	case key.Matches(msg, k.Metronome):
		m.sess.ToggleMetronome()
	case key.Matches(msg, k.VolumeDown):
		m.sess.SetClickVolume(m.sess.ClickVolume() - volumeStep)
		m.changed()
	case key.Matches(msg, k.VolumeUp):
		m.sess.SetClickVolume(m.sess.ClickVolume() + volumeStep)
		m.changed()
	case key.Matches(msg, k.BPMDown):
		m.stepBPM(-1)
	case key.Matches(msg, k.BPMUp):
		m.stepBPM(1)
	case key.Matches(msg, k.EditBPM):
		return m, m.beginEdit(editBPM, "BPM: ", m.sess.Tempo().BPM.String())
	case key.Matches(msg, k.EditBeats):
		return m, m.beginEdit(editBeats, "Beats per bar: ", strconv.Itoa(m.sess.Tempo().BeatsPerBar))
	case key.Matches(msg, k.EditOffset):
		return m, m.beginEdit(editOffset, "First bar at (s): ", formatSeconds(m.sess.Tempo().Offset))
	case key.Matches(msg, k.OffsetHere):
		m.sess.SetOffset(grid.Round(m.sess.CurrentTime()))
		m.changed()

	case key.Matches(msg, k.Left):
		m.moveCol(-1)
	case key.Matches(msg, k.Right):
		m.moveCol(1)
	case key.Matches(msg, k.Up):
		m.cursor.row--
		m.clampCursor()
	case key.Matches(msg, k.Down):
		m.cursor.row++
		m.clampCursor()
	case key.Matches(msg, k.PrevBar):
		m.cursor.bar--
		m.clampCursor()
	case key.Matches(msg, k.NextBar):
		m.cursor.bar++
		m.clampCursor()
	case key.Matches(msg, k.Edit):
		if len(m.sess.Bars()) == 0 {
			m.message = "Set a BPM (b) to get bars"
			return m, nil
		}
		return m, m.beginEdit(editCell, m.cellName()+": ", m.cellValue())
	case key.Matches(msg, k.ClearCell):
		m.setCell("")
	case key.Matches(msg, k.ToPlayhead):
		if bar := grid.BarAt(m.sess.Bars(), m.sess.CurrentTime()); bar >= 0 {
			m.cursor.bar = bar
			m.clampCursor()
		}
	case key.Matches(msg, k.ToCursor):
		if bars := m.sess.Bars(); m.cursor.bar < len(bars) {
			m.sess.Seek(bars[m.cursor.bar])
		}

	case key.Matches(msg, k.ZoomIn):
		m.stepZoom(1)
	case key.Matches(msg, k.ZoomOut):
		m.stepZoom(-1)
	case key.Matches(msg, k.ScrollLeft):
		m.scrollLanes(-1)
	case key.Matches(msg, k.ScrollRight):
		m.scrollLanes(1)

	case key.Matches(msg, k.Title):
		return m, m.beginEdit(editTitle, "Title: ", m.sess.Title())
	case key.Matches(msg, k.Notes):
		return m, m.beginEdit(editNotes, "Notes: ", m.sess.Notes())
	case key.Matches(msg, k.Save):
		m.dirty = true
		m.message = "Saving…"
		return m, m.saveCmd()
	case key.Matches(msg, k.Help):
		m.help.ShowAll = !m.help.ShowAll
	}

	return m, m.startFrames()
}

func describe(err error) string {
	switch {
	case errors.Is(err, session.ErrNotReady):
		return "Track is still loading"
	case errors.Is(err, session.ErrClosed):
		return "Session closed"
	}
	return err.Error()
}

func (m *Model) mark(which region.Boundary) {
	if _, err := m.sess.MarkBoundary(which); err != nil {
		m.message = err.Error()
	}
}

func (m *Model) nudge(which region.Boundary, delta float64) {
	if _, ok := m.sess.Nudge(which, delta); !ok {
		m.message = "No loop to adjust"
	}
}

func (m *Model) stepBPM(delta int) {
	bpm, set := m.sess.Tempo().BPM.Unpack()
	if !set || bpm <= 0 {
		bpm = defaultBPM
	} else {
		bpm += delta
	}
	m.sess.SetBPM(grid.NewBPM(min(max(bpm, minBPM), maxBPM)))
	m.clampCursor()
	m.changed()
}

func (m *Model) stepZoom(dir int) {
	cur := m.sess.State().Zoom
	i := 0
	for j, z := range zoomLevels {
		if z <= cur {
			i = j
		}
	}
	i = min(max(i+dir, 0), len(zoomLevels)-1)
	z := zoomLevels[i]
	m.sess.SetZoom(z)
	if off, ok := scroll.Center(m.sess.CurrentTime(), z, float64(m.panes[0].width)); ok {
		m.sess.Scroll().ScrollAll(off)
	} else {
		m.sess.Scroll().ScrollAll(0)
	}
}

// scrollLanes pans the lanes by a quarter screen, holding autoscroll off for
// a moment.
func (m *Model) scrollLanes(dir int) {
	if m.sess.State().Zoom <= 0 {
		m.message = "Zoom in (z) to scroll"
		return
	}
	p := m.panes[0]
	off := math.Max(0, p.offset+float64(dir*p.width/4))
	p.ScrollTo(off)
	m.sess.Scroll().UserScrolled(p, off)
}

func (m *Model) cellName() string {
	c := m.cursor
	if c.row == 0 {
		return fmt.Sprintf("Bar %d chord %d", c.bar+1, c.col+1)
	}
	return fmt.Sprintf("Bar %d %s string slot %d", c.bar+1, stringNames[c.row-1], c.col+1)
}

func (m *Model) cellValue() string {
	c := m.cursor
	if c.row == 0 {
		return m.sess.Chord(c.bar, c.col)
	}
	row := m.sess.TabRow(c.bar, c.row-1)
	if c.col < len(row) {
		return row[c.col]
	}
	return ""
}

func (m *Model) setCell(text string) bool {
	c := m.cursor
	var err error
	if c.row == 0 {
		err = m.sess.SetChord(c.bar, c.col, text)
	} else {
		err = m.sess.SetTabCell(c.bar, c.row-1, c.col, text)
	}
	if err != nil {
		m.message = err.Error()
		return false
	}
	m.changed()
	return true
}

func (m *Model) beginEdit(t editTarget, prompt, value string) tea.Cmd {
	m.edit = t
	m.input.Prompt = prompt
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.sess.SetEditing(true)
	return tea.Batch(m.input.Focus(), textinput.Blink)
}

func (m *Model) endEdit() {
	m.edit = editNone
	m.input.Blur()
	m.input.SetValue("")
	m.sess.SetEditing(false)
}

func (m *Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.endEdit()
		return m, nil
	case "enter":
		target, value := m.edit, strings.TrimSpace(m.input.Value())
		m.endEdit()
		m.commit(target, value)
		return m, m.startFrames()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) commit(target editTarget, value string) {
	m.message = ""
	switch target {
	case editCell:
		if m.setCell(value) && m.cursor.row > 0 {
			m.moveCol(1)
		}
	case editBPM:
		if value == "" {
			m.sess.SetBPM(grid.UnsetBPM())
			m.changed()
			return
		}
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			m.message = fmt.Sprintf("BPM must be a positive whole number, got %q", value)
			return
		}
		m.sess.SetBPM(grid.NewBPM(n))
		m.clampCursor()
		m.changed()
	case editBeats:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > maxBeatsPerBar {
			m.message = fmt.Sprintf("Beats per bar must be 1 to %d", maxBeatsPerBar)
			return
		}
		m.sess.SetBeatsPerBar(n)
		m.clampCursor()
		m.changed()
	case editOffset:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			m.message = fmt.Sprintf("Offset must be a number of seconds, got %q", value)
			return
		}
		m.sess.SetOffset(grid.Round(f))
		m.clampCursor()
		m.changed()
	case editTitle:
		m.sess.SetTitle(value)
		m.changed()
	case editNotes:
		m.sess.SetNotes(value)
		m.changed()
	}
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

// formatClock renders seconds as m:ss.s.
func formatClock(s float64) string {
	if s < 0 {
		s = 0
	}
	mins := int(s) / 60
	return fmt.Sprintf("%d:%04.1f", mins, s-float64(mins*60))
}

func (m *Model) viewPractice() string {
	var b strings.Builder
	st := m.sess.State()

	title := m.sess.Title()
	if title == "" {
		title = "Untitled"
	}
	b.WriteString(titleStyle.Render("RIFFLOOP - "+title) + "\n\n")

	switch {
	case m.sess.Err() != nil:
		b.WriteString(errorStyle.Render(m.sess.ErrorMessage()) + "\n")
	case !m.sess.Ready():
		b.WriteString(m.spinner.View() + " Loading " + m.sess.Source() + "\n")
	default:
		state := "⏸ paused"
		if st.Playing {
			state = "▶ playing"
		}
		b.WriteString(fmt.Sprintf("%s  %s / %s", selectedStyle.Render(state), formatClock(st.CurrentTime), formatClock(st.Duration)))
		if r, ok := m.sess.Region(); ok {
			loop := fmt.Sprintf("  loop %s-%s", formatClock(r.Start), formatClock(r.End))
			if m.sess.Looping() {
				loop += fmt.Sprintf(" (pass %d)", m.sess.LoopPasses()+1)
			}
			b.WriteString(regionStyle.Render(loop))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.statusLine(st.Zoom) + "\n\n")

	b.WriteString(m.viewLanes())
	b.WriteString("\n")
	b.WriteString(m.viewBarEditor())

	if notes := m.sess.Notes(); notes != "" {
		b.WriteString("\n" + labelStyle.Render("Notes: ") + notes + "\n")
	}

	b.WriteString("\n")
	switch {
	case m.edit != editNone:
		b.WriteString(m.input.View() + "\n")
		b.WriteString(helpStyle.Render("enter: apply • esc: cancel"))
		return b.String()
	case m.message != "":
		b.WriteString(errorStyle.Render(m.message) + "\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) statusLine(zoom float64) string {
	tempo := m.sess.Tempo()
	bpm := "--"
	if tempo.BPM.IsSet() {
		bpm = tempo.BPM.String()
	}
	metro := m.sess.Metronome()
	metroText := "off"
	if metro != metronome.Off {
		metroText = metro.String()
	}
	zoomText := "fit"
	if zoom > 0 {
		zoomText = fmt.Sprintf("%gx", zoom)
	}
	line := fmt.Sprintf("BPM %s  %d/4  offset %ss  click %s vol %.1f  zoom %s",
		bpm, tempo.BeatsPerBar, formatSeconds(tempo.Offset), metroText, m.sess.ClickVolume(), zoomText)
	if m.dirty {
		line += "  [modified]"
	}
	return labelStyle.Render(line)
}

// viewLanes draws the ruler, the timeline and the annotation lanes on the
// shared column mapping.
func (m *Model) viewLanes() string {
	l := m.lane()
	st := m.sess.State()
	bars := m.sess.Bars()
	width, _ := m.sess.BarWidth()
	slots := m.sess.SlotsPerBar()

	ruler := blankRow(l.cols, ' ')
	line := blankRow(l.cols, '─')
	chords := blankRow(l.cols, ' ')
	tabs := make([][]string, grid.Strings)
	for i := range tabs {
		tabs[i] = blankRow(l.cols, '-')
	}

	for i, t := range bars {
		if c, ok := l.col(t); ok {
			writeText(ruler, c, strconv.Itoa(i+1))
			line[c] = "┼"
		}
		for seg := 0; seg < grid.SegmentsPerBar; seg++ {
			if text := m.sess.Chord(i, seg); text != "" {
				if c, ok := l.col(t + width*float64(seg)/grid.SegmentsPerBar); ok {
					writeText(chords, c, text)
				}
			}
		}
		for s := 0; s < grid.Strings; s++ {
			for slot, cell := range m.sess.TabRow(i, s) {
				if cell == "" || slots == 0 {
					continue
				}
				if c, ok := l.col(t + width*float64(slot)/float64(slots)); ok {
					writeText(tabs[s], c, cell)
				}
			}
		}
	}

	if r, ok := m.sess.Region(); ok {
		for c := 0; c < l.cols; c++ {
			if t := l.time(c); t >= r.Start && t < r.End {
				line[c] = regionStyle.Render("═")
			}
		}
	}
	if m.sess.Ready() {
		if c, ok := l.col(st.CurrentTime); ok {
			line[c] = playheadStyle.Render("│")
		}
	}

	var b strings.Builder
	row := func(label string, cells []string) {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-*s", labelWidth, label)))
		b.WriteString(strings.Join(cells, ""))
		b.WriteString("\n")
	}
	row("bar", ruler)
	row("time", line)
	row("chords", chords)
	for s, cells := range tabs {
		row(stringNames[s], cells)
	}
	return b.String()
}

func blankRow(n int, r rune) []string {
	row := make([]string, n)
	for i := range row {
		row[i] = string(r)
	}
	return row
}

// writeText writes text into row from column c, cut at the row's end.
func writeText(row []string, c int, text string) {
	for _, r := range text {
		if c >= len(row) {
			return
		}
		row[c] = string(r)
		c++
	}
}

// viewBarEditor shows the cells of the cursor's bar.
func (m *Model) viewBarEditor() string {
	bars := m.sess.Bars()
	if len(bars) == 0 {
		return dimStyle.Render("Set a BPM (b) to get bars for chords and tabs.") + "\n"
	}
	c := m.cursor
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Bar %d of %d at %s\n", c.bar+1, len(bars), formatClock(bars[c.bar])))

	cell := func(text string, width int, selected bool) string {
		s := fmt.Sprintf("%-*s", width, text)
		if selected {
			return cursorStyle.Render(s)
		}
		return s
	}

	b.WriteString(labelStyle.Render(fmt.Sprintf("%-*s", labelWidth, "chords")))
	for seg := 0; seg < grid.SegmentsPerBar; seg++ {
		text := m.sess.Chord(c.bar, seg)
		if text == "" {
			text = "·"
		}
		b.WriteString(cell(text, 8, c.row == 0 && c.col == seg))
	}
	b.WriteString("\n")

	for s := 0; s < grid.Strings; s++ {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-*s", labelWidth, stringNames[s])))
		for slot, text := range m.sess.TabRow(c.bar, s) {
			if text == "" {
				text = "-"
			}
			b.WriteString(cell(text, 3, c.row == s+1 && c.col == slot))
		}
		b.WriteString("\n")
	}
	return b.String()
}
