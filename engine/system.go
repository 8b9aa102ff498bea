package engine

import (
	"fmt"
	"math"

	"github.com/pthm-cable/tritium/components"
)

// DefaultSteps is the number of steps a run takes when WithSteps is not given.
const DefaultSteps = 200

// State is the lifecycle state of a System.
type State uint8

const (
	StateUnrun State = iota
	StateRun
)

// String returns the state name.
func (s State) String() string {
	if s == StateRun {
		return "run"
	}
	return "unrun"
}

// Option configures a System.
type Option func(*System)

// WithSteps sets the fixed number of steps per run.
func WithSteps(n int) Option {
	return func(s *System) { s.steps = n }
}

// WithStepper selects the resolve-phase implementation.
func WithStepper(kind StepperKind) Option {
	return func(s *System) { s.stepperKind = kind }
}

// System steps every box of a network forward in lock-step.
// It takes exclusive ownership of the network: once built, no boxes or edges
// can be added.
type System struct {
	net         *Network
	steps       int
	stepperKind StepperKind
	resolver    resolver

	state State
	dt    float64
	t     []float64

	// Cached component pointers for the stepping loop. Valid because a frozen
	// network never changes structure.
	inv  []*components.Inventory
	traj []*components.Trajectory

	x    []float64
	rate []float64
}

// NewSystem builds a System from net and freezes it. A network belongs to
// at most one System.
func NewSystem(net *Network, opts ...Option) (*System, error) {
	if net == nil {
		return nil, fmt.Errorf("building system: %w", ErrNilNetwork)
	}
	if net.frozen {
		return nil, fmt.Errorf("building system: %w", ErrFrozen)
	}
	s := &System{
		net:         net,
		steps:       DefaultSteps,
		stepperKind: StepperScalar,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.steps <= 0 {
		return nil, fmt.Errorf("steps %d: %w", s.steps, ErrInvalidSteps)
	}

	r, err := newResolver(s.stepperKind, net.topology())
	if err != nil {
		return nil, err
	}
	s.resolver = r

	n := len(net.entities)
	s.inv = make([]*components.Inventory, n)
	s.traj = make([]*components.Trajectory, n)
	for i, e := range net.entities {
		s.inv[i] = net.invMap.Get(e)
		s.traj[i] = net.trajMap.Get(e)
	}
	s.x = make([]float64, n)
	s.rate = make([]float64, n)

	net.frozen = true
	return s, nil
}

// Run integrates the network over duration and records every box's trajectory.
// Each run starts from the initial inventories with cleared trajectories, so
// repeated runs of the same System produce identical results.
func (s *System) Run(duration float64) error {
	if !(duration > 0) || math.IsInf(duration, 1) {
		return fmt.Errorf("duration %g: %w", duration, ErrNonPositiveDuration)
	}

	s.reset()
	s.dt = duration / float64(s.steps)
	s.record(0)

	for k := 0; k < s.steps; k++ {
		s.step()
		s.record(float64(k+1) * s.dt)
	}

	for i, inv := range s.inv {
		inv.Value = s.x[i]
	}
	s.state = StateRun
	return nil
}

// reset restores initial inventories and clears all recorded series.
func (s *System) reset() {
	s.t = make([]float64, 0, s.steps+1)
	for i, inv := range s.inv {
		inv.Value = inv.Initial
		s.x[i] = inv.Initial
		s.traj[i].Values = make([]float64, 0, s.steps+1)
	}
}

// step resolves all rates from the current state, then commits them.
func (s *System) step() {
	s.resolver.resolve(s.x, s.rate)
	for i := range s.x {
		s.x[i] += s.rate[i] * s.dt
	}
}

func (s *System) record(t float64) {
	s.t = append(s.t, t)
	for i, traj := range s.traj {
		traj.Values = append(traj.Values, s.x[i])
	}
}

// Times returns the recorded time axis, starting at 0.
// The slice must not be modified.
func (s *System) Times() []float64 {
	return s.t
}

// Boxes returns the boxes in network order.
func (s *System) Boxes() []Box {
	return s.net.Boxes()
}

// Box looks up a box by name.
func (s *System) Box(name string) (Box, bool) {
	return s.net.Lookup(name)
}

// Network returns the frozen network the System steps.
func (s *System) Network() *Network {
	return s.net
}

// State reports whether Run has completed.
func (s *System) State() State {
	return s.state
}

// Steps returns the fixed step count.
func (s *System) Steps() int {
	return s.steps
}

// Stepper returns the resolve-phase implementation in use.
func (s *System) Stepper() StepperKind {
	return s.stepperKind
}

// Dt returns the step size of the last run, or 0 before the first run.
func (s *System) Dt() float64 {
	return s.dt
}
