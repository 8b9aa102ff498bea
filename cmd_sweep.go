package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/tritium/scenario"
	"github.com/pthm-cable/tritium/sweep"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Sweep the reference fuel cycle over TBR and startup inventory",
		Long: `Sweep runs the reference fuel cycle for every combination of the
sweep.tbr and sweep.startup_inventory ranges in the config and reports the
storage outcome of each run. The default grid varies TBR from 1.0 to 1.28
in steps of 0.02 at a startup inventory of 1.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(cmd, func(e *env) {
				applySimulationFlags(cmd, e)
				if cmd.Flags().Changed("workers") {
					e.cfg.Sweep.Workers, _ = cmd.Flags().GetInt("workers")
				}
				if cmd.Flags().Changed("policy") {
					e.cfg.Reference.GenerationPolicy, _ = cmd.Flags().GetString("policy")
				}
			}, func(e *env) error {
				return runSweep(cmd, e)
			})
		},
	}

	addSimulationFlags(cmd)
	cmd.Flags().Int("workers", 0, "Concurrent runs, 0 = GOMAXPROCS (overrides config)")
	cmd.Flags().String("policy", "", "Breeder generation policy: constant or coupled (overrides config)")
	return cmd
}

// sweepRow is one line of sweep output.
type sweepRow struct {
	TBR              float64  `json:"tbr"`
	StartupInventory float64  `json:"startup_inventory"`
	FinalStorage     float64  `json:"final_storage"`
	MinStorage       float64  `json:"min_storage"`
	ExhaustedAt      *float64 `json:"exhausted_at,omitempty"`
}

func runSweep(cmd *cobra.Command, e *env) error {
	points := sweep.Grid(e.cfg.Derived.TBRValues, e.cfg.Derived.InventoryValues)
	e.logger.Info("starting sweep",
		"points", len(points),
		"tbr_values", len(e.cfg.Derived.TBRValues),
		"inventory_values", len(e.cfg.Derived.InventoryValues),
	)

	results, err := sweep.Run(cmd.Context(), sweep.Options{
		Points:   points,
		Base:     e.referenceParams(),
		Settings: e.settings(),
		Workers:  e.cfg.Sweep.Workers,
	}, e.logger)
	if err != nil {
		return err
	}

	rows := make([]sweepRow, 0, len(results))
	for _, r := range results {
		if err := e.record(cmd.Context(), r.Info(), r.System, r.Stats, r.Events); err != nil {
			return err
		}
		storage, ok := r.Stat(scenario.BoxStorage)
		if !ok {
			return fmt.Errorf("sweep point %d has no %s box", r.Index, scenario.BoxStorage)
		}
		row := sweepRow{
			TBR:              r.Point.TBR,
			StartupInventory: r.Point.StartupInventory,
			FinalStorage:     storage.Final,
			MinStorage:       storage.Min,
		}
		if storage.Exhausted {
			at := storage.ExhaustedAt
			row.ExhaustedAt = &at
		}
		rows = append(rows, row)
	}

	w := cmd.OutOrStdout()
	if e.jsonOut {
		return writeJSON(w, rows)
	}
	fmt.Fprintf(w, "%8s %10s %14s %14s %14s\n", "TBR", "STARTUP", "FINAL_STORAGE", "MIN_STORAGE", "EXHAUSTED_AT")
	for _, row := range rows {
		var at float64
		if row.ExhaustedAt != nil {
			at = *row.ExhaustedAt
		}
		fmt.Fprintf(w, "%8.4f %10.4f %14.4f %14.4f %14s\n",
			row.TBR, row.StartupInventory, row.FinalStorage, row.MinStorage, formatTime(at, row.ExhaustedAt != nil))
	}
	return nil
}
