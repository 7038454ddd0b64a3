// Package tui is the terminal front end: a file browser and the practice
// screen for one track.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/bep/debounce"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/icco/riffloop/internal/clock"
	"github.com/icco/riffloop/internal/engine"
	"github.com/icco/riffloop/internal/metronome"
	"github.com/icco/riffloop/internal/remote"
	"github.com/icco/riffloop/internal/scroll"
	"github.com/icco/riffloop/internal/session"
	"github.com/icco/riffloop/internal/store"
)

// View modes
type viewMode int

const (
	fileBrowserMode viewMode = iota
	practiceMode
)

// frameMsg redraws the playhead while audio plays.
type frameMsg time.Time

// autosaveMsg fires once edits have settled.
type autosaveMsg struct{}

// savedMsg reports the result of a background save.
type savedMsg struct {
	id  string
	err error
}

// frameInterval is the redraw rate of the playhead.
const frameInterval = 100 * time.Millisecond

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	dirStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AAFF")).
			Bold(true)

	fileStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00"))

	regionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true)

	playheadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#00AA00")).
			Bold(true)

	cursorStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#7D56F4"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#444444"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
)

// Options configures the program.
type Options struct {
	// Dir is where the file browser starts.
	Dir   string
	Store store.Store

	Provider engine.Provider
	Clicker  metronome.Clicker
	// Clock defaults to a real clock posting through Bridge.
	Clock  clock.Clock
	Bridge *Bridge

	LoopInterval  time.Duration
	Scroll        scroll.Options
	AutosaveDelay time.Duration
	Zoom          float64
	ClickVolume   float64

	Log logrus.FieldLogger
}

// Model represents the application state
type Model struct {
	opts   Options
	mode   viewMode
	bridge *Bridge
	log    logrus.FieldLogger

	browser fileBrowserModel

	sess      *session.Session
	sessionID string
	panes     []*pane
	cursor    cellCursor
	edit      editTarget
	input     textinput.Model
	spinner   spinner.Model
	help      help.Model
	keys      keyMap
	autosave  func(f func())
	dirty     bool
	ticking   bool
	message   string

	width  int
	height int
}

// New builds the program model and its session.
func New(opts Options) (*Model, error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.Bridge == nil {
		opts.Bridge = NewBridge(256)
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewReal(opts.Bridge.Post)
	}
	if opts.AutosaveDelay <= 0 {
		opts.AutosaveDelay = time.Second
	}
	if opts.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			opts.Dir = home
		} else {
			opts.Dir = "."
		}
	}

	m := &Model{
		opts:     opts,
		bridge:   opts.Bridge,
		log:      log,
		input:    textinput.New(),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:     help.New(),
		keys:     defaultKeyMap(),
		autosave: debounce.New(opts.AutosaveDelay),
	}

	sess, err := session.New(opts.Clock, opts.Provider, opts.Bridge.Post, opts.Clicker, session.Options{
		LoopInterval: opts.LoopInterval,
		Scroll:       opts.Scroll,
		Log:          log,
	})
	if err != nil {
		return nil, err
	}
	if opts.ClickVolume > 0 {
		sess.SetClickVolume(opts.ClickVolume)
	}
	m.sess = sess
	for _, name := range []string{"timeline", "chords", "tabs"} {
		p := &pane{name: name, width: defaultLaneWidth}
		m.panes = append(m.panes, p)
		sess.Scroll().AddView(p)
	}

	m.browser = fileBrowserModel{currentDir: opts.Dir}
	m.browser.loadFiles()
	return m, nil
}

// Session exposes the practice session, for wiring outside the program.
func (m *Model) Session() *session.Session { return m.sess }

// Remote queues a pedal action. It may be called from any goroutine.
func (m *Model) Remote(a remote.Action) {
	m.bridge.Post(func() {
		if m.mode != practiceMode {
			return
		}
		if err := remote.Apply(m.sess, a); err != nil {
			m.message = err.Error()
		}
	})
}

// Open starts the program on a track or a saved session instead of the
// browser. Call it before the program runs; failures show in the browser.
func (m *Model) Open(file, sessionID string) {
	switch {
	case sessionID != "":
		m.openSession(sessionID)
	case file != "":
		abs, err := filepath.Abs(file)
		if err != nil {
			abs = file
		}
		m.openFile(abs)
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.bridge.Wait(), m.spinner.Tick)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		for _, p := range m.panes {
			p.width = m.laneWidth()
		}
		m.scrollBrowser()
		return m, nil

	case taskMsg:
		msg()
		return m, tea.Batch(m.bridge.Wait(), m.startFrames())

	case frameMsg:
		if m.sess.State().Playing {
			return m, frame()
		}
		m.ticking = false
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case autosaveMsg:
		return m, tea.Batch(m.bridge.Wait(), m.saveCmd())

	case savedMsg:
		if msg.err != nil {
			m.message = fmt.Sprintf("Error saving: %v", msg.err)
			m.dirty = true
		} else if msg.id == m.sessionID && m.message == "" {
			m.message = "Saved"
		}
		if m.mode == fileBrowserMode && m.browser.showSessions {
			m.browser.loadSessions(m.opts.Store)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		if m.edit != editNone {
			return m.updateEdit(msg)
		}
		if msg.String() == "q" {
			if m.mode == fileBrowserMode {
				return m, m.quit()
			}
			// Return to file browser from practice
			cmd := m.saveCmd()
			m.sess.Pause()
			m.mode = fileBrowserMode
			if m.browser.showSessions {
				m.browser.loadSessions(m.opts.Store)
			} else {
				m.browser.loadFiles()
			}
			return m, cmd
		}

		// Route to appropriate mode handler
		switch m.mode {
		case fileBrowserMode:
			return m.updateFileBrowser(msg)
		case practiceMode:
			return m.updatePractice(msg)
		}
	}

	return m, nil
}

func (m *Model) View() string {
	switch m.mode {
	case fileBrowserMode:
		return m.viewFileBrowser()
	case practiceMode:
		return m.viewPractice()
	default:
		return "Unknown mode"
	}
}

func frame() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

// startFrames begins redrawing once playback starts.
func (m *Model) startFrames() tea.Cmd {
	if m.ticking || !m.sess.State().Playing {
		return nil
	}
	m.ticking = true
	return frame()
}

func (m *Model) quit() tea.Cmd {
	save := m.saveCmd()
	if err := m.sess.Close(); err != nil {
		m.log.WithError(err).Warn("closing session")
	}
	if save == nil {
		return tea.Quit
	}
	return tea.Sequence(save, tea.Quit)
}

var unsafeID = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sessionIDFor derives a stable id from a track's file name, so opening the
// same file again resumes its annotations.
func sessionIDFor(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	id := strings.Trim(unsafeID.ReplaceAllString(base, "-"), "-._")
	if len(id) > 100 {
		id = id[:100]
	}
	if !store.ValidID(id) {
		return uuid.NewString()
	}
	return id
}

func (m *Model) openFile(path string) tea.Cmd {
	id := sessionIDFor(path)
	if m.opts.Store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rec, err := m.opts.Store.Load(ctx, id)
		cancel()
		if err == nil && rec.SourceRef == path {
			return m.restore(id, rec)
		}
		if err == nil {
			// Same name, different track.
			id = id + "-" + uuid.NewString()[:8]
		}
	}

	if err := m.sess.Load(context.Background(), path); err != nil {
		m.browser.message = m.sess.ErrorMessage()
		return nil
	}
	m.enterPractice(id)
	return nil
}

func (m *Model) openSession(id string) tea.Cmd {
	if m.opts.Store == nil {
		m.browser.message = "No session store configured"
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	rec, err := m.opts.Store.Load(ctx, id)
	cancel()
	if err != nil {
		m.browser.message = fmt.Sprintf("Error loading session: %v", err)
		return nil
	}
	return m.restore(id, rec)
}

func (m *Model) restore(id string, rec store.Record) tea.Cmd {
	if err := m.sess.Restore(context.Background(), rec); err != nil {
		m.browser.message = m.sess.ErrorMessage()
		return nil
	}
	m.enterPractice(id)
	return nil
}

func (m *Model) enterPractice(id string) {
	m.sessionID = id
	m.mode = practiceMode
	m.cursor = cellCursor{}
	m.message = ""
	m.dirty = false
	m.sess.SetZoom(m.opts.Zoom)
	m.log.WithField("session", id).Info("practice started")
}

// changed schedules an autosave.
func (m *Model) changed() {
	m.dirty = true
	m.autosave(func() { m.bridge.Send(autosaveMsg{}) })
}

// saveCmd writes the session in the background if it has unsaved edits.
func (m *Model) saveCmd() tea.Cmd {
	if !m.dirty || m.opts.Store == nil || m.sessionID == "" {
		return nil
	}
	m.dirty = false
	st, id, rec := m.opts.Store, m.sessionID, m.sess.Record()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return savedMsg{id: id, err: st.Save(ctx, id, rec)}
	}
}
