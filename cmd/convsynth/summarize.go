package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/convsynth/internal/service"
	"github.com/capitalize-ai/convsynth/internal/store"
)

func newSummarizeCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize the conversations saved under the output directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := service.Summarize(store.New(a.cfg.OutputDir))
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}
			printSummary(cmd.OutOrStdout(), a.cfg.OutputDir, s)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}

func printSummary(w io.Writer, root string, s *service.Summary) {
	fmt.Fprintf(w, "output: %s\n", root)
	fmt.Fprintf(w, "conversations: %d\n", s.Conversations)
	if s.Skipped > 0 {
		fmt.Fprintf(w, "skipped (unreadable): %d\n", s.Skipped)
	}
	fmt.Fprintf(w, "turns: %d (average %.2f)\n", s.Turns, s.AverageTurns)
	fmt.Fprintf(w, "recommended tracks: %d (%d unique)\n", s.RecommendedTracks, s.UniqueTracks)
	if len(s.GoalProgress) == 0 {
		return
	}
	fmt.Fprintln(w, "goal progress:")
	labels := make([]string, 0, len(s.GoalProgress))
	for l := range s.GoalProgress {
		labels = append(labels, l)
	}
	slices.Sort(labels)
	for _, l := range labels {
		fmt.Fprintf(w, "  %s: %d\n", l, s.GoalProgress[l])
	}
}
