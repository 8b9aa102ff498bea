// Package sweep runs the reference fuel cycle over a grid of TBR and startup
// inventory values.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/tritium/engine"
	"github.com/pthm-cable/tritium/scenario"
	"github.com/pthm-cable/tritium/telemetry"
)

// Point is one parameter combination of a sweep.
type Point struct {
	TBR              float64
	StartupInventory float64
}

// Grid returns the cartesian product of tbrs and inventories, TBR-major.
func Grid(tbrs, inventories []float64) []Point {
	points := make([]Point, 0, len(tbrs)*len(inventories))
	for _, tbr := range tbrs {
		for _, inv := range inventories {
			points = append(points, Point{TBR: tbr, StartupInventory: inv})
		}
	}
	return points
}

// Options configures a sweep.
type Options struct {
	Points   []Point
	Base     scenario.ReferenceParams // TBR and StartupInventory are overridden per point
	Settings scenario.Settings
	Workers  int // concurrent runs; <= 0 means GOMAXPROCS
}

// Result is the outcome of one point. Results keep the order of Options.Points.
type Result struct {
	Index  int
	Point  Point
	System *engine.System
	Stats  []telemetry.BoxStats
	Events []telemetry.Event
}

// Info returns the telemetry labels for this result.
func (r Result) Info() telemetry.RunInfo {
	return telemetry.RunInfo{
		Run:              r.Index,
		Label:            fmt.Sprintf("tbr=%.4g startup=%.4g", r.Point.TBR, r.Point.StartupInventory),
		TBR:              r.Point.TBR,
		StartupInventory: r.Point.StartupInventory,
	}
}

// Stat returns the statistics of the named box, if present.
func (r Result) Stat(box string) (telemetry.BoxStats, bool) {
	for _, s := range r.Stats {
		if s.Box == box {
			return s, true
		}
	}
	return telemetry.BoxStats{}, false
}

// Run simulates every point, at most Workers at a time. The first failing run
// cancels the rest and its error is returned.
func Run(ctx context.Context, opts Options, logger *slog.Logger) ([]Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	start := time.Now()
	results := make([]Result, len(opts.Points))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range opts.Points {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := runPoint(i, p, opts)
			if err != nil {
				return fmt.Errorf("sweep point %d (tbr=%g, startup=%g): %w", i, p.TBR, p.StartupInventory, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("sweep complete",
		"points", len(opts.Points),
		"workers", workers,
		"elapsed", time.Since(start).String(),
	)
	return results, nil
}

func runPoint(i int, p Point, opts Options) (Result, error) {
	params := opts.Base
	params.TBR = p.TBR
	params.StartupInventory = p.StartupInventory

	sys, err := scenario.Reference(params).Run(opts.Settings)
	if err != nil {
		return Result{}, err
	}

	r := Result{Index: i, Point: p, System: sys}
	info := r.Info()
	r.Stats = telemetry.Summarize(info, sys)
	r.Events = telemetry.DetectEvents(info, sys)
	return r, nil
}
