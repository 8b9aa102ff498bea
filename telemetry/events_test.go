package telemetry

import (
	"math"
	"testing"
)

func TestFirstCrossing(t *testing.T) {
	tests := []struct {
		name   string
		times  []float64
		values []float64
		want   float64
		ok     bool
	}{
		{"never", []float64{0, 1, 2}, []float64{2, 1, 0}, 0, false},
		{"interpolated", []float64{0, 1, 2}, []float64{2, 1, -1}, 1.5, true},
		{"starts negative", []float64{0, 1}, []float64{-1, 1}, 0, true},
		{"empty", nil, nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FirstCrossing(tt.times, tt.values)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("crossing = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBoxEvents(t *testing.T) {
	times := []float64{0, 1, 2, 3, 4}
	values := []float64{1, -1, 1, 3, -3}

	events := boxEvents(RunInfo{Run: 1, Label: "x"}, "storage", times, values)

	want := []struct {
		typ EventType
		t   float64
	}{
		{EventExhausted, 0.5},
		{EventRecovered, 1.5},
		{EventExhausted, 3.5},
		{EventDoubled, 2.5},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i, w := range want {
		e := events[i]
		if e.Type != w.typ || math.Abs(e.Time-w.t) > 1e-12 {
			t.Errorf("event %d = %s@%v, want %s@%v", i, e.Type, e.Time, w.typ, w.t)
		}
		if e.Box != "storage" || e.Run != 1 || e.Label != "x" || e.Description == "" {
			t.Errorf("event %d labels = %+v", i, e)
		}
	}
}

func TestBoxEventsNoDoublingFromZero(t *testing.T) {
	events := boxEvents(RunInfo{}, "sink", []float64{0, 1}, []float64{0, 5})
	if len(events) != 0 {
		t.Errorf("got %+v, want no events", events)
	}
}

func TestDetectEventsSorted(t *testing.T) {
	sys := drainSystem(t)
	events := DetectEvents(RunInfo{}, sys)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1: %+v", len(events), events)
	}
	if events[0].Type != EventExhausted || events[0].Box != "tank" {
		t.Errorf("event = %+v", events[0])
	}
	if math.Abs(events[0].Time-1/0.3) > 1e-9 {
		t.Errorf("exhausted at %v, want %v", events[0].Time, 1/0.3)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Time < events[i-1].Time {
			t.Fatalf("events not sorted: %+v", events)
		}
	}
}
