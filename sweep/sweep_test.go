package sweep

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/tritium/engine"
	"github.com/pthm-cable/tritium/scenario"
)

var settings = scenario.Settings{Duration: 20, Steps: 200, Stepper: engine.StepperScalar}

func TestGrid(t *testing.T) {
	points := Grid([]float64{1, 2}, []float64{10, 20, 30})
	require.Len(t, points, 6)
	assert.Equal(t, Point{TBR: 1, StartupInventory: 10}, points[0])
	assert.Equal(t, Point{TBR: 1, StartupInventory: 30}, points[2])
	assert.Equal(t, Point{TBR: 2, StartupInventory: 10}, points[3])

	assert.Empty(t, Grid(nil, []float64{1}))
}

func TestRun_OrderedResults(t *testing.T) {
	opts := Options{
		Points:   Grid([]float64{0.9, 1.0, 1.1, 1.3}, []float64{1, 5}),
		Base:     scenario.DefaultReferenceParams(0, 0),
		Settings: settings,
		Workers:  3,
	}

	results, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)
	require.Len(t, results, len(opts.Points))

	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, opts.Points[i], r.Point)
		require.NotNil(t, r.System)
		assert.Equal(t, engine.StateRun, r.System.State())
		require.Len(t, r.Stats, 3)

		storage, ok := r.Stat(scenario.BoxStorage)
		require.True(t, ok)
		assert.Equal(t, r.Point.StartupInventory, storage.Initial)
		assert.Equal(t, r.Point.TBR, storage.TBR)
	}

	// TBR 0.9 with startup 1 runs out; TBR 1.1 does not
	low, _ := results[0].Stat(scenario.BoxStorage)
	assert.True(t, low.Exhausted)
	assert.NotEmpty(t, results[0].Events)

	high, _ := results[4].Stat(scenario.BoxStorage)
	assert.False(t, high.Exhausted)
	assert.Greater(t, high.Final, high.Initial)
}

func TestRun_StepperAgreement(t *testing.T) {
	opts := Options{
		Points:   Grid([]float64{1.05, 1.2}, []float64{2}),
		Base:     scenario.DefaultReferenceParams(0, 0),
		Settings: settings,
	}
	scalar, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)

	opts.Settings.Stepper = engine.StepperMatrix
	matrix, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)

	for i := range scalar {
		for j := range scalar[i].Stats {
			assert.InDelta(t, scalar[i].Stats[j].Final, matrix[i].Stats[j].Final, 1e-9)
		}
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := Options{
		Points:   Grid([]float64{1.1}, []float64{1, 2, 3}),
		Base:     scenario.DefaultReferenceParams(0, 0),
		Settings: settings,
	}
	_, err := Run(ctx, opts, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_InvalidSettings(t *testing.T) {
	opts := Options{
		Points:   Grid([]float64{1.1}, []float64{1}),
		Base:     scenario.DefaultReferenceParams(0, 0),
		Settings: scenario.Settings{Duration: 0, Steps: 200},
	}
	_, err := Run(context.Background(), opts, nil)
	assert.ErrorIs(t, err, engine.ErrNonPositiveDuration)
	assert.ErrorContains(t, err, "sweep point 0")
}

func TestRun_NoPoints(t *testing.T) {
	results, err := Run(context.Background(), Options{Settings: settings}, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
