// Package telemetry summarizes, annotates, and exports simulation trajectories.
package telemetry

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/tritium/engine"
)

// RunInfo labels every record written for one run.
type RunInfo struct {
	Run              int
	Label            string
	TBR              float64
	StartupInventory float64
}

// BoxStats holds aggregated statistics for one box over one run.
type BoxStats struct {
	Run              int     `csv:"run"`
	Label            string  `csv:"label"`
	TBR              float64 `csv:"tbr"`
	StartupInventory float64 `csv:"startup_inventory"`
	Box              string  `csv:"box"`

	Initial float64 `csv:"initial"`
	Final   float64 `csv:"final"`
	Min     float64 `csv:"min"`
	MinTime float64 `csv:"min_t"`
	Max     float64 `csv:"max"`
	Mean    float64 `csv:"mean"`

	// Exhaustion: first time the inventory dropped below zero
	Exhausted   bool    `csv:"exhausted"`
	ExhaustedAt float64 `csv:"exhausted_at"`
}

// Summarize computes per-box statistics for a completed run, in box order.
// Returns nil if the system has not been run.
func Summarize(info RunInfo, sys *engine.System) []BoxStats {
	times := sys.Times()
	if len(times) == 0 {
		return nil
	}

	boxes := sys.Boxes()
	stats := make([]BoxStats, 0, len(boxes))
	for _, b := range boxes {
		inv := b.Inventories()
		minIdx := floats.MinIdx(inv)

		s := BoxStats{
			Run:              info.Run,
			Label:            info.Label,
			TBR:              info.TBR,
			StartupInventory: info.StartupInventory,
			Box:              b.Name(),
			Initial:          inv[0],
			Final:            inv[len(inv)-1],
			Min:              inv[minIdx],
			MinTime:          times[minIdx],
			Max:              floats.Max(inv),
			Mean:             stat.Mean(inv, nil),
		}
		if t, ok := FirstCrossing(times, inv); ok {
			s.Exhausted = true
			s.ExhaustedAt = t
		}
		stats = append(stats, s)
	}
	return stats
}

// Totals returns the inventory summed over all boxes at every recorded step.
// For a closed network this is constant.
func Totals(sys *engine.System) []float64 {
	total := make([]float64, len(sys.Times()))
	for _, b := range sys.Boxes() {
		floats.Add(total, b.Inventories())
	}
	return total
}
