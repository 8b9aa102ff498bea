package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/tritium/search"
)

func newBreakEvenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "breakeven",
		Short: "Find the TBR at which storage ends where it started",
		Long: `Breakeven searches the reference fuel cycle for the tritium breeding
ratio at which the storage inventory at the end of the horizon equals the
startup inventory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(cmd, func(e *env) {
				applySimulationFlags(cmd, e)
				applyReferenceFlags(cmd, e)
				flags := cmd.Flags()
				if flags.Changed("min-tbr") {
					e.cfg.Search.MinTBR, _ = flags.GetFloat64("min-tbr")
				}
				if flags.Changed("max-tbr") {
					e.cfg.Search.MaxTBR, _ = flags.GetFloat64("max-tbr")
				}
				if flags.Changed("max-evals") {
					e.cfg.Search.MaxEvals, _ = flags.GetInt("max-evals")
				}
			}, func(e *env) error {
				res, err := search.BreakEvenTBR(cmd.Context(), e.referenceParams(), e.settings(), search.Options{
					MinTBR:   e.cfg.Search.MinTBR,
					MaxTBR:   e.cfg.Search.MaxTBR,
					MaxEvals: e.cfg.Search.MaxEvals,
				}, e.logger)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if e.jsonOut {
					return writeJSON(w, map[string]any{
						"tbr":           res.TBR,
						"final_storage": res.FinalStorage,
						"residual":      res.Residual,
						"evaluations":   res.Evaluations,
						"converged":     res.Converged,
					})
				}
				fmt.Fprintf(w, "break-even TBR: %.6f (final storage %.6f, residual %.3g, %d evaluations)\n",
					res.TBR, res.FinalStorage, res.Residual, res.Evaluations)
				if !res.Converged {
					fmt.Fprintf(w, "warning: no break-even point in [%g, %g]\n", e.cfg.Search.MinTBR, e.cfg.Search.MaxTBR)
				}
				return nil
			})
		},
	}

	addSimulationFlags(cmd)
	addReferenceFlags(cmd)
	cmd.Flags().Float64("min-tbr", 0, "Lower TBR bound (overrides config)")
	cmd.Flags().Float64("max-tbr", 0, "Upper TBR bound (overrides config)")
	cmd.Flags().Int("max-evals", 0, "Maximum simulation runs (overrides config)")
	return cmd
}
