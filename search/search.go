// Package search finds the break-even tritium breeding ratio of the reference
// fuel cycle: the TBR at which storage ends the horizon holding exactly its
// startup inventory.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/tritium/scenario"
)

// ErrInvalidBounds is returned when MaxTBR does not exceed MinTBR.
var ErrInvalidBounds = errors.New("max TBR must exceed min TBR")

// Options bounds the search.
type Options struct {
	MinTBR   float64
	MaxTBR   float64
	MaxEvals int // <= 0 means 200
}

// Result is the outcome of a break-even search.
type Result struct {
	TBR          float64
	FinalStorage float64
	Residual     float64 // FinalStorage - StartupInventory
	Evaluations  int
	// Converged reports whether the residual is within tolerance. False usually
	// means the break-even point lies outside [MinTBR, MaxTBR].
	Converged bool
}

// residualTolerance is relative to max(1, startup inventory).
const residualTolerance = 1e-3

// BreakEvenTBR minimizes (final storage - startup inventory)^2 over TBR with
// Nelder-Mead. TBR is searched in a normalized [0, 1] coordinate and clamped to
// the bounds.
func BreakEvenTBR(ctx context.Context, base scenario.ReferenceParams, settings scenario.Settings, opts Options, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !(opts.MaxTBR > opts.MinTBR) {
		return Result{}, fmt.Errorf("search bounds [%g, %g]: %w", opts.MinTBR, opts.MaxTBR, ErrInvalidBounds)
	}
	maxEvals := opts.MaxEvals
	if maxEvals <= 0 {
		maxEvals = 200
	}

	span := opts.MaxTBR - opts.MinTBR
	denormalize := func(x float64) float64 {
		return math.Min(opts.MaxTBR, math.Max(opts.MinTBR, opts.MinTBR+x*span))
	}

	var (
		evals   int
		best    = Result{Residual: math.Inf(1)}
		bestObj = math.Inf(1)
		runErr  error
	)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			if runErr != nil {
				return math.Inf(1)
			}
			if err := ctx.Err(); err != nil {
				runErr = err
				return math.Inf(1)
			}

			tbr := denormalize(x[0])
			final, err := finalStorage(base, settings, tbr)
			if err != nil {
				runErr = err
				return math.Inf(1)
			}
			evals++

			residual := final - base.StartupInventory
			obj := residual * residual
			if obj < bestObj {
				bestObj = obj
				best = Result{TBR: tbr, FinalStorage: final, Residual: residual}
			}
			logger.Debug("break-even evaluation", "eval", evals, "tbr", tbr, "residual", residual)
			return obj
		},
	}

	method := &optimize.NelderMead{}
	optSettings := &optimize.Settings{
		FuncEvaluations: maxEvals,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-14,
			Iterations: 50,
		},
	}

	_, err := optimize.Minimize(problem, []float64{0.5}, optSettings, method)
	if runErr != nil {
		return Result{}, fmt.Errorf("break-even search: %w", runErr)
	}
	if err != nil {
		// Hitting the evaluation limit still leaves a usable best point
		logger.Warn("break-even optimization ended early", "err", err)
	}
	if evals == 0 {
		return Result{}, errors.New("break-even search: no evaluations")
	}

	best.Evaluations = evals
	best.Converged = math.Abs(best.Residual) <= residualTolerance*math.Max(1, base.StartupInventory)

	logger.Info("break-even search complete",
		"tbr", best.TBR,
		"residual", best.Residual,
		"evaluations", evals,
		"converged", best.Converged,
	)
	return best, nil
}

func finalStorage(base scenario.ReferenceParams, settings scenario.Settings, tbr float64) (float64, error) {
	p := base
	p.TBR = tbr
	sys, err := scenario.Reference(p).Run(settings)
	if err != nil {
		return 0, err
	}
	storage, ok := sys.Box(scenario.BoxStorage)
	if !ok {
		return 0, fmt.Errorf("reference scenario has no %s box", scenario.BoxStorage)
	}
	return storage.Inventory(), nil
}
