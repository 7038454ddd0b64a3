package cmd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/icco/riffloop/internal/grid"
	"github.com/icco/riffloop/internal/midifile"
)

var (
	clickSession  string
	clickBPM      int
	clickBeats    int
	clickOffset   float64
	clickDuration float64
	clickOutput   string
)

var clickCmd = &cobra.Command{
	Use:   "click",
	Short: "Metronome tools",
}

var clickExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the metronome as a MIDI file",
	Long: `Write a Standard MIDI File with one click per beat, accented on each
downbeat, lined up with a session's bar grid. Load it in a DAW next to the
track to check the grid.

The tempo comes from --session, or from --bpm, --beats and --offset.

Example:
  riffloop click export --session song --duration 180 -o click.mid
`,
	Args: cobra.NoArgs,
	RunE: runClickExport,
}

func init() {
	f := clickExportCmd.Flags()
	f.StringVarP(&clickSession, "session", "s", "", "saved session to take the tempo from")
	f.IntVar(&clickBPM, "bpm", 0, "tempo in beats per minute")
	f.IntVar(&clickBeats, "beats", grid.DefaultBeatsPerBar, "beats per bar")
	f.Float64Var(&clickOffset, "offset", 0, "time of the first downbeat in seconds")
	f.Float64Var(&clickDuration, "duration", 0, "length of the click track in seconds")
	f.StringVarP(&clickOutput, "output", "o", "click.mid", "file to write")
	clickCmd.AddCommand(clickExportCmd)
	rootCmd.AddCommand(clickCmd)
}

func runClickExport(cmd *cobra.Command, args []string) error {
	if math.IsNaN(clickDuration) || math.IsInf(clickDuration, 0) || clickDuration <= 0 {
		return errors.New("--duration must be a positive number of seconds")
	}

	tempo := grid.TempoConfig{
		BPM:         grid.NewBPM(clickBPM),
		BeatsPerBar: clickBeats,
		Offset:      clickOffset,
	}
	if clickSession != "" {
		st, err := openStore()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		rec, err := st.Load(ctx, clickSession)
		if err != nil {
			return err
		}
		tempo.BPM = grid.BPMFromPtr(rec.BPM)
		if rec.BeatsPerBar != nil {
			tempo.BeatsPerBar = *rec.BeatsPerBar
		}
		if rec.OffsetSeconds != nil {
			tempo.Offset = *rec.OffsetSeconds
		}
	}

	if err := midifile.WriteClickTrackFile(clickOutput, tempo, clickDuration); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s bpm, %d/4)\n", clickOutput, tempo.BPM, tempo.BeatsPerBar)
	return nil
}
