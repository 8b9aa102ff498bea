package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/tritium/config"
	"github.com/pthm-cable/tritium/engine"
	"github.com/pthm-cable/tritium/logging"
	"github.com/pthm-cable/tritium/scenario"
	"github.com/pthm-cable/tritium/store"
	"github.com/pthm-cable/tritium/telemetry"
)

var version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tritium",
		Short: "Tritium fuel-cycle compartment simulator",
		Long: `tritium simulates tritium inventories in a network of compartments
(storage, plasma, breeding blanket, ...) connected by flows.

It runs single scenarios, sweeps the reference fuel cycle over breeding
ratio and startup inventory, and searches for the break-even breeding ratio.`,
		SilenceUsage: true,
	}

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to config.yaml (empty = use defaults)")
	pf.String("output-dir", "", "Output directory for CSV logs and config snapshot (overrides config)")
	pf.String("db", "", "SQLite run store path (overrides config)")
	pf.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	pf.Bool("json", false, "Output results as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newSweepCmd(),
		newBreakEvenCmd(),
		newRunsCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "tritium version %s\n", version)
			return err
		},
	}
}

// env is the per-command runtime: configuration, logger, and result sinks.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	out     *telemetry.OutputManager
	db      *store.Store
	jsonOut bool
}

// setup loads configuration, applies global flag overrides, and installs the
// default logger. Outputs are opened separately by openOutputs.
func setup(cmd *cobra.Command) (*env, error) {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	if err := config.Init(configPath); err != nil {
		return nil, err
	}
	cfg := config.Cfg()

	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := flags.GetString("output-dir"); v != "" {
		cfg.Output.Dir = v
	}
	if v, _ := flags.GetString("db"); v != "" {
		cfg.Output.Database = v
	}
	jsonOut, _ := flags.GetBool("json")

	logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	return &env{cfg: cfg, logger: logger, jsonOut: jsonOut}, nil
}

// runWithEnv sets up the runtime, lets prepare apply command flags, opens the
// outputs, and runs fn. Outputs are closed when fn returns.
func runWithEnv(cmd *cobra.Command, prepare func(*env), fn func(*env) error) (err error) {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	if prepare != nil {
		prepare(e)
	}
	if err := e.openOutputs(); err != nil {
		e.close()
		return err
	}
	defer func() {
		if cerr := e.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(e)
}

// openOutputs validates the final configuration and opens the CSV directory
// and run store, if configured.
func (e *env) openOutputs() error {
	if err := e.cfg.Refresh(); err != nil {
		return err
	}

	out, err := telemetry.NewOutputManager(e.cfg.Output.Dir)
	if err != nil {
		return err
	}
	e.out = out
	if err := e.out.WriteConfig(e.cfg); err != nil {
		return err
	}

	if e.cfg.Output.Database != "" {
		db, err := store.Open(e.cfg.Output.Database)
		if err != nil {
			return err
		}
		e.db = db
	}

	e.logger.Debug("outputs ready", "dir", e.out.Dir(), "database", e.cfg.Output.Database)
	return nil
}

// record logs a run's events and writes it to every configured sink.
func (e *env) record(ctx context.Context, info telemetry.RunInfo, sys *engine.System, stats []telemetry.BoxStats, events []telemetry.Event) error {
	for _, ev := range events {
		ev.Log(e.logger)
	}
	if err := e.out.WriteTrajectories(info, sys); err != nil {
		return err
	}
	if err := e.out.WriteSummary(stats); err != nil {
		return err
	}
	if err := e.out.WriteEvents(events); err != nil {
		return err
	}
	if e.db != nil {
		id, err := e.db.SaveRun(ctx, store.RunRecord{
			Label:            info.Label,
			TBR:              info.TBR,
			StartupInventory: info.StartupInventory,
		}, sys)
		if err != nil {
			return err
		}
		e.logger.Debug("run stored", "id", id, "label", info.Label)
	}
	return nil
}

func (e *env) close() error {
	var firstErr error
	if err := e.out.Close(); err != nil {
		firstErr = err
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *env) settings() scenario.Settings {
	return scenario.Settings{
		Duration: e.cfg.Simulation.Duration,
		Steps:    e.cfg.Simulation.Steps,
		Stepper:  e.cfg.Derived.Stepper,
	}
}

func (e *env) referenceParams() scenario.ReferenceParams {
	r := e.cfg.Reference
	return scenario.ReferenceParams{
		TBR:              r.TBR,
		StartupInventory: r.StartupInventory,
		BurnRate:         r.BurnRate,
		ExtractionRate:   r.ExtractionRate,
		FuelingRate:      r.FuelingRate,
		Policy:           e.cfg.Derived.GenerationPolicy,
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatTime renders an optional time, "-" when absent.
func formatTime(t float64, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.3f", t)
}
