package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/convsynth/internal/store"
)

func newGenerateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one conversation from the first session of the dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := a.build(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			report, err := d.runner.Run(ctx, a.cfg.NumTurns)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s: %d turns saved to %s\n", report.RunID, report.Turns, report.OutputDir)
			if n := len(report.Warnings); n > 0 {
				fmt.Fprintf(out, "%d artifact warnings, see %s\n", n, filepath.Join(report.OutputDir, store.ReportFile))
			}
			return nil
		},
	}
	addGenerationFlags(cmd)
	return cmd
}
