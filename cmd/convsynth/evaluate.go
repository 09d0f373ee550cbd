package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/convsynth/internal/eval"
	"github.com/capitalize-ai/convsynth/internal/llm"
	"github.com/capitalize-ai/convsynth/internal/store"
)

func newEvaluateCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score the saved conversations with LLM judges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := a.cfg
			if err := cfg.Validate(); err != nil {
				return err
			}
			raw, err := a.backend(ctx)
			if err != nil {
				return err
			}
			backend := llm.Instrument(llm.WithRetry(raw, cfg.ModelMaxRetries, a.log), llm.InstrumentOptions{
				Delay:   cfg.APIDelay,
				Timeout: cfg.ModelTimeout,
				Logger:  a.log,
			})

			evaluator := eval.New(backend, eval.Options{
				Model:     cfg.Model(),
				MaxTokens: cfg.MaxOutputTokens,
				Logger:    a.log,
			})
			report, err := evaluator.Evaluate(ctx, store.New(cfg.OutputDir))
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printEvaluation(cmd.OutOrStdout(), cfg.OutputDir, report)
			return nil
		},
	}
	f := cmd.Flags()
	f.BoolVar(&asJSON, "json", false, "print the full report, per-conversation scores included, as JSON")
	f.String("provider", "", "LLM provider of the judge (gemini, openai, anthropic)")
	f.String("model", "", "judge model name")
	return cmd
}

func printEvaluation(w io.Writer, root string, r *eval.Report) {
	fmt.Fprintf(w, "output: %s\n", root)
	fmt.Fprintf(w, "evaluated: %d (skipped %d)\n", r.Evaluated, r.Skipped)
	for _, m := range r.Metrics {
		d := m.Distribution
		fmt.Fprintf(w, "%s: avg=%.2f/4, dist=(1:%d, 2:%d, 3:%d, 4:%d), n=%d", m.Name, m.Average, d[0], d[1], d[2], d[3], m.N)
		if m.Invalid > 0 {
			fmt.Fprintf(w, ", invalid=%d", m.Invalid)
		}
		fmt.Fprintln(w)
	}
}
