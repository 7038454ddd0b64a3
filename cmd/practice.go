package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/icco/riffloop/internal/audio"
	"github.com/icco/riffloop/internal/remote"
	"github.com/icco/riffloop/internal/scroll"
	"github.com/icco/riffloop/internal/tui"
)

var (
	practiceSession string
	practiceMIDIIn  string
	practiceMIDIOut string
)

var practiceCmd = &cobra.Command{
	Use:   "practice [file]",
	Short: "Open the practice screen",
	Long: `Open the practice screen with an interactive TUI.

Without arguments a file browser starts in the current directory. Give an
audio file (WAV or MP3) to open it directly, or --session to resume a saved
session.

A MIDI foot controller can drive the transport: set midi_in in the config, or
pass --midi-in. Use "virtual" to create a port other software can connect to.

Example:
  riffloop practice song.mp3
  riffloop practice --session song --midi-in virtual
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPractice,
}

func init() {
	practiceCmd.Flags().StringVarP(&practiceSession, "session", "s", "", "saved session to resume")
	practiceCmd.Flags().StringVar(&practiceMIDIIn, "midi-in", "", "MIDI input for the foot controller (\"virtual\" creates a port)")
	practiceCmd.Flags().StringVar(&practiceMIDIOut, "midi-out", "", "MIDI output that also receives metronome clicks")
	rootCmd.AddCommand(practiceCmd)
}

func runPractice(cmd *cobra.Command, args []string) error {
	log, closeLog, err := newLogger(true)
	if err != nil {
		return err
	}
	defer closeLog()

	st, err := openStore()
	if err != nil {
		return err
	}

	out := audio.NewOutput()
	synth, err := audio.NewClickSynth(out)
	if err != nil {
		return err
	}
	defer synth.Close()
	clickers := audio.Clickers{synth}

	if practiceMIDIOut != "" {
		cfg.MIDIOut = practiceMIDIOut
	}
	if cfg.MIDIOut != "" {
		mc, err := audio.OpenMIDIClicker(cfg.MIDIOut)
		if err != nil {
			return err
		}
		defer mc.Close()
		clickers = append(clickers, mc)
	}

	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	m, err := tui.New(tui.Options{
		Dir:          dir,
		Store:        st,
		Provider:     audio.Provider(out, log.WithField("component", "audio")),
		Clicker:      clickers,
		LoopInterval: cfg.LoopInterval,
		Scroll: scroll.Options{
			QuietWindow:   cfg.ScrollQuiet,
			FrameInterval: cfg.FrameInterval,
		},
		AutosaveDelay: cfg.AutosaveDelay,
		Zoom:          cfg.Zoom,
		ClickVolume:   cfg.ClickVolume,
		Log:           log,
	})
	if err != nil {
		return err
	}

	if practiceMIDIIn != "" {
		cfg.MIDIIn = practiceMIDIIn
	}
	if cfg.MIDIIn != "" {
		l, err := listenRemote(m, log)
		if err != nil {
			return err
		}
		defer l.Close()
	}

	var file string
	if len(args) > 0 {
		file = args[0]
	}
	m.Open(file, practiceSession)

	p := tea.NewProgram(m, tea.WithAltScreen())

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)
	go func() {
		if _, ok := <-c; ok {
			p.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

func listenRemote(m *tui.Model, log *logrus.Logger) (*remote.Listener, error) {
	mapping := remote.DefaultMapping()
	if len(cfg.Remote) > 0 {
		mp, err := remote.ParseMapping(cfg.Remote)
		if err != nil {
			return nil, fmt.Errorf("remote mapping: %w", err)
		}
		mapping = mp
	}
	port := cfg.MIDIIn
	if port == "virtual" {
		port = ""
	}
	l, err := remote.Listen(port, mapping, m.Remote, log.WithField("component", "remote"))
	if err != nil {
		return nil, err
	}
	log.WithField("port", l.Port()).Info("listening for remote")
	return l, nil
}
