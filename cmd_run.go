package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/tritium/scenario"
	"github.com/pthm-cable/tritium/telemetry"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one scenario and report per-box results",
		Long: `Run simulates one compartment network over the configured horizon.

Without --scenario it runs the reference Storage/Plasma/Breeder fuel cycle
built from the reference section of the config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(cmd, func(e *env) {
				applySimulationFlags(cmd, e)
				applyReferenceFlags(cmd, e)
			}, func(e *env) error {
				return runScenario(cmd, e)
			})
		},
	}

	cmd.Flags().String("scenario", "", "Scenario YAML file (empty = reference fuel cycle)")
	addSimulationFlags(cmd)
	addReferenceFlags(cmd)
	return cmd
}

// runScenario runs the --scenario file, or the reference fuel cycle.
func runScenario(cmd *cobra.Command, e *env) error {
	var (
		sc   *scenario.Scenario
		info telemetry.RunInfo
	)
	if path, _ := cmd.Flags().GetString("scenario"); path != "" {
		var err error
		sc, err = scenario.Load(path)
		if err != nil {
			return err
		}
		info = telemetry.RunInfo{Label: sc.Name}
	} else {
		params := e.referenceParams()
		sc = scenario.Reference(params)
		info = telemetry.RunInfo{Label: sc.Name, TBR: params.TBR, StartupInventory: params.StartupInventory}
	}

	e.logger.Info("running scenario", "name", sc.Name, "boxes", len(sc.Boxes))
	sys, err := sc.Run(e.settings())
	if err != nil {
		return err
	}

	stats := telemetry.Summarize(info, sys)
	events := telemetry.DetectEvents(info, sys)
	if err := e.record(cmd.Context(), info, sys, stats, events); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if e.jsonOut {
		return writeJSON(w, map[string]any{
			"scenario": sc.Name,
			"dt":       sys.Dt(),
			"steps":    sys.Steps(),
			"stats":    stats,
			"events":   events,
		})
	}
	fmt.Fprintf(w, "%s (steps=%d, dt=%g, stepper=%s)\n\n", sc.Name, sys.Steps(), sys.Dt(), sys.Stepper())
	printStats(w, stats)
	if len(events) > 0 {
		fmt.Fprintln(w)
		for _, ev := range events {
			fmt.Fprintf(w, "t=%-8.3f %-10s %s\n", ev.Time, ev.Type, ev.Description)
		}
	}
	return nil
}

func printStats(w io.Writer, stats []telemetry.BoxStats) {
	fmt.Fprintf(w, "%-14s %12s %12s %12s %12s %12s\n", "BOX", "INITIAL", "FINAL", "MIN", "MAX", "EXHAUSTED_AT")
	for _, s := range stats {
		fmt.Fprintf(w, "%-14s %12.4f %12.4f %12.4f %12.4f %12s\n",
			s.Box, s.Initial, s.Final, s.Min, s.Max, formatTime(s.ExhaustedAt, s.Exhausted))
	}
}

// addSimulationFlags registers overrides for the simulation config section.
func addSimulationFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("duration", 0, "Simulation horizon (overrides config)")
	cmd.Flags().Int("steps", 0, "Number of Euler steps (overrides config)")
	cmd.Flags().String("stepper", "", "Rate resolver: scalar or matrix (overrides config)")
}

func applySimulationFlags(cmd *cobra.Command, e *env) {
	flags := cmd.Flags()
	sim := &e.cfg.Simulation
	if flags.Changed("duration") {
		sim.Duration, _ = flags.GetFloat64("duration")
	}
	if flags.Changed("steps") {
		sim.Steps, _ = flags.GetInt("steps")
	}
	if flags.Changed("stepper") {
		sim.Stepper, _ = flags.GetString("stepper")
	}
}

// addReferenceFlags registers overrides for the reference fuel cycle.
func addReferenceFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("tbr", 0, "Tritium breeding ratio (overrides config)")
	cmd.Flags().Float64("startup", 0, "Startup storage inventory (overrides config)")
	cmd.Flags().String("policy", "", "Breeder generation policy: constant or coupled (overrides config)")
}

func applyReferenceFlags(cmd *cobra.Command, e *env) {
	flags := cmd.Flags()
	ref := &e.cfg.Reference
	if flags.Changed("tbr") {
		ref.TBR, _ = flags.GetFloat64("tbr")
	}
	if flags.Changed("startup") {
		ref.StartupInventory, _ = flags.GetFloat64("startup")
	}
	if flags.Changed("policy") {
		ref.GenerationPolicy, _ = flags.GetString("policy")
	}
}
