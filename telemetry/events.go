package telemetry

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/pthm-cable/tritium/engine"
)

// EventType identifies a trajectory event.
type EventType string

const (
	EventExhausted EventType = "exhausted" // inventory dropped below zero
	EventRecovered EventType = "recovered" // inventory back at or above zero after exhaustion
	EventDoubled   EventType = "doubled"   // inventory reached twice a positive initial value
)

// Event marks a notable moment in a box trajectory.
type Event struct {
	Run         int       `csv:"run"`
	Label       string    `csv:"label"`
	Type        EventType `csv:"type"`
	Box         string    `csv:"box"`
	Time        float64   `csv:"t"`
	Description string    `csv:"description"`
}

// Log logs the event using slog.
func (e Event) Log(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("trajectory event",
		"run", e.Run,
		"label", e.Label,
		"type", string(e.Type),
		"box", e.Box,
		"t", e.Time,
		"description", e.Description,
	)
}

// FirstCrossing returns the first time values drops below zero, linearly
// interpolated between the bracketing samples. A series that starts below
// zero crosses at times[0].
func FirstCrossing(times, values []float64) (float64, bool) {
	t, idx := crossing(times, values, 0, 0, true)
	return t, idx >= 0
}

// crossing finds the first index k >= start where values[k] is on the
// requested side of level (below when down, at-or-above otherwise) and
// returns the interpolated crossing time. values[start-1], if any, must be
// on the opposite side. Returns -1 when there is no crossing.
func crossing(times, values []float64, level float64, start int, down bool) (float64, int) {
	for k := start; k < len(values); k++ {
		if (values[k] < level) != down {
			continue
		}
		if k == 0 {
			return times[0], 0
		}
		v0, v1 := values[k-1], values[k]
		frac := (level - v0) / (v1 - v0)
		return times[k-1] + frac*(times[k]-times[k-1]), k
	}
	return math.NaN(), -1
}

// DetectEvents scans every box of a completed run and returns its events in time order.
func DetectEvents(info RunInfo, sys *engine.System) []Event {
	times := sys.Times()
	var events []Event
	for _, b := range sys.Boxes() {
		events = append(events, boxEvents(info, b.Name(), times, b.Inventories())...)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time < events[j].Time
	})
	return events
}

func boxEvents(info RunInfo, box string, times, inv []float64) []Event {
	if len(inv) == 0 {
		return nil
	}
	var events []Event
	add := func(typ EventType, t float64, desc string) {
		events = append(events, Event{Run: info.Run, Label: info.Label, Type: typ, Box: box, Time: t, Description: desc})
	}

	// Alternate between exhaustion and recovery crossings
	down := true
	for start := 0; start < len(inv); {
		t, k := crossing(times, inv, 0, start, down)
		if k < 0 {
			break
		}
		if down {
			add(EventExhausted, t, fmt.Sprintf("%s inventory ran out at t=%.3f", box, t))
		} else {
			add(EventRecovered, t, fmt.Sprintf("%s inventory recovered at t=%.3f", box, t))
		}
		down = !down
		start = k + 1
	}

	if initial := inv[0]; initial > 0 {
		if t, k := crossing(times, inv, 2*initial, 0, false); k >= 0 {
			add(EventDoubled, t, fmt.Sprintf("%s inventory doubled from %.4g by t=%.3f", box, initial, t))
		}
	}
	return events
}
