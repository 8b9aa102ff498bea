package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs in the run store, or show one with --id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(cmd, nil, func(e *env) error {
				if e.db == nil {
					return errors.New("no run database configured (use --db or output.database)")
				}
				w := cmd.OutOrStdout()

				if id, _ := cmd.Flags().GetInt64("id"); id > 0 {
					run, err := e.db.Run(cmd.Context(), id)
					if err != nil {
						return err
					}
					stats, err := e.db.BoxSummaries(cmd.Context(), id)
					if err != nil {
						return err
					}
					if e.jsonOut {
						return writeJSON(w, stats)
					}
					fmt.Fprintf(w, "run %d: %s\n\n", id, run.Label)
					if len(stats) == 0 {
						fmt.Fprintln(w, "No boxes stored.")
						return nil
					}
					printStats(w, stats)
					return nil
				}

				runs, err := e.db.ListRuns(cmd.Context())
				if err != nil {
					return err
				}
				if e.jsonOut {
					return writeJSON(w, runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(w, "No runs stored.")
					return nil
				}
				fmt.Fprintf(w, "%5s %-20s %-36s %8s %8s %6s %-7s\n", "ID", "CREATED", "LABEL", "TBR", "STARTUP", "STEPS", "STEPPER")
				for _, r := range runs {
					fmt.Fprintf(w, "%5d %-20s %-36s %8.4f %8.4f %6d %-7s\n",
						r.ID, r.CreatedAt.Format(time.DateTime), r.Label, r.TBR, r.StartupInventory, r.Steps, r.Stepper)
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64("id", 0, "Show the per-box summary of this run")
	return cmd
}
