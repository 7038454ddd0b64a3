package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/icco/riffloop/internal/midifile"
)

var tempoSession string

var tempoCmd = &cobra.Command{
	Use:   "tempo",
	Short: "Tempo tools",
}

var tempoImportCmd = &cobra.Command{
	Use:   "import <file.mid>",
	Short: "Set a session's tempo from a MIDI file",
	Long: `Read the tempo, time signature and first note of a Standard MIDI File
and store them as a saved session's grid. Useful when a transcription or
backing track of the song exists as MIDI.

Example:
  riffloop tempo import song.mid --session song
`,
	Args: cobra.ExactArgs(1),
	RunE: runTempoImport,
}

func init() {
	tempoImportCmd.Flags().StringVarP(&tempoSession, "session", "s", "", "saved session to update")
	_ = tempoImportCmd.MarkFlagRequired("session")
	tempoCmd.AddCommand(tempoImportCmd)
	rootCmd.AddCommand(tempoCmd)
}

func runTempoImport(cmd *cobra.Command, args []string) error {
	tempo, err := midifile.ReadTempoFile(args[0])
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	rec, err := st.Load(ctx, tempoSession)
	if err != nil {
		return err
	}

	tc := tempo.Config()
	bpm, _ := tc.BPM.Unpack()
	beats, offset := tc.BeatsPerBar, tc.Offset
	rec.BPM = tc.BPM.Ptr()
	rec.BeatsPerBar = &beats
	rec.OffsetSeconds = &offset
	if err := st.Save(ctx, tempoSession, rec); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d bpm, %d beats per bar, first bar at %.3fs\n", tempoSession, bpm, beats, offset)
	if tempo.Changes > 0 {
		fmt.Fprintf(out, "note: the file has %d tempo changes; only the first tempo is used\n", tempo.Changes)
	}
	return nil
}
