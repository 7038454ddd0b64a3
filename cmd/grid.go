package cmd

import (
	"errors"
	"fmt"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/icco/riffloop/internal/grid"
)

var (
	gridBPM      int
	gridBeats    int
	gridOffset   float64
	gridDuration float64
)

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Print the bar start times for a tempo",
	Long: `Print where each bar starts in a track of the given length.

Example:
  riffloop grid --bpm 120 --beats 4 --offset 0.35 --duration 30
`,
	Args: cobra.NoArgs,
	RunE: runGrid,
}

func init() {
	gridCmd.Flags().IntVar(&gridBPM, "bpm", 120, "tempo in beats per minute")
	gridCmd.Flags().IntVar(&gridBeats, "beats", grid.DefaultBeatsPerBar, "beats per bar")
	gridCmd.Flags().Float64Var(&gridOffset, "offset", 0, "time of the first downbeat in seconds")
	gridCmd.Flags().Float64Var(&gridDuration, "duration", 0, "track length in seconds")
	rootCmd.AddCommand(gridCmd)
}

func runGrid(cmd *cobra.Command, args []string) error {
	if math.IsNaN(gridDuration) || math.IsInf(gridDuration, 0) || gridDuration <= 0 {
		return errors.New("--duration must be a positive number of seconds")
	}
	cfg := grid.TempoConfig{
		BPM:         grid.NewBPM(gridBPM),
		BeatsPerBar: gridBeats,
		Offset:      gridOffset,
	}
	width, ok := grid.BarWidth(cfg)
	if !ok {
		return fmt.Errorf("no bars for %d bpm with %d beats per bar", gridBPM, gridBeats)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "bar width %.3fs, %d tab slots per bar\n\n", width, grid.SlotsPerBar(gridBeats))
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BAR\tSTART")
	for i, t := range grid.Bars(gridDuration, cfg) {
		fmt.Fprintf(w, "%d\t%.3f\n", i+1, t)
	}
	return w.Flush()
}
