package engine

import (
	"fmt"
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/tritium/components"
)

// Network is the arena that owns every box of a simulation.
// Box order is the registration order and is stable for the network's lifetime.
type Network struct {
	world *ecs.World

	boxMapper *ecs.Map5[
		components.Label,
		components.Inventory,
		components.Source,
		components.Outflows,
		components.Trajectory,
	]
	labelMap  *ecs.Map1[components.Label]
	invMap    *ecs.Map1[components.Inventory]
	sourceMap *ecs.Map1[components.Source]
	outMap    *ecs.Map1[components.Outflows]
	trajMap   *ecs.Map1[components.Trajectory]

	entities []ecs.Entity
	frozen   bool
}

// NewNetwork creates an empty network.
func NewNetwork() *Network {
	world := ecs.NewWorld()
	return &Network{
		world: world,
		boxMapper: ecs.NewMap5[
			components.Label,
			components.Inventory,
			components.Source,
			components.Outflows,
			components.Trajectory,
		](world),
		labelMap:  ecs.NewMap1[components.Label](world),
		invMap:    ecs.NewMap1[components.Inventory](world),
		sourceMap: ecs.NewMap1[components.Source](world),
		outMap:    ecs.NewMap1[components.Outflows](world),
		trajMap:   ecs.NewMap1[components.Trajectory](world),
	}
}

type boxSpec struct {
	initial    float64
	generation float64
}

// BoxOption configures a box at creation.
type BoxOption func(*boxSpec)

// WithInitialInventory sets the inventory a box is reset to at the start of a run.
func WithInitialInventory(v float64) BoxOption {
	return func(s *boxSpec) { s.initial = v }
}

// WithGenerationTerm sets a constant intrinsic rate.
// Positive values produce, negative values consume.
func WithGenerationTerm(rate float64) BoxOption {
	return func(s *boxSpec) { s.generation = rate }
}

// NewBox adds a box to the network.
// Names are not required to be unique, but Lookup returns the first match.
func (n *Network) NewBox(name string, opts ...BoxOption) (Box, error) {
	if n.frozen {
		return Box{}, fmt.Errorf("adding box %q: %w", name, ErrFrozen)
	}

	var spec boxSpec
	for _, opt := range opts {
		opt(&spec)
	}

	label := components.Label{Name: name}
	inv := components.Inventory{Value: spec.initial, Initial: spec.initial}
	src := components.Source{Policy: components.GenerationConstant, Rate: spec.generation}
	outs := components.Outflows{}
	traj := components.Trajectory{}

	entity := n.boxMapper.NewEntity(&label, &inv, &src, &outs, &traj)
	n.entities = append(n.entities, entity)

	return Box{net: n, id: components.BoxID(len(n.entities) - 1)}, nil
}

// Len returns the number of boxes.
func (n *Network) Len() int {
	return len(n.entities)
}

// Boxes returns handles for every box in registration order.
func (n *Network) Boxes() []Box {
	boxes := make([]Box, len(n.entities))
	for i := range n.entities {
		boxes[i] = Box{net: n, id: components.BoxID(i)}
	}
	return boxes
}

// Box returns the handle for id.
func (n *Network) Box(id components.BoxID) (Box, bool) {
	if id < 0 || int(id) >= len(n.entities) {
		return Box{}, false
	}
	return Box{net: n, id: id}, true
}

// Lookup finds the first box with the given name.
func (n *Network) Lookup(name string) (Box, bool) {
	for i, e := range n.entities {
		if n.labelMap.Get(e).Name == name {
			return Box{net: n, id: components.BoxID(i)}, true
		}
	}
	return Box{}, false
}

// Frozen reports whether a System has been built from this network.
func (n *Network) Frozen() bool {
	return n.frozen
}

func (n *Network) entity(id components.BoxID) ecs.Entity {
	return n.entities[id]
}

// Box is a handle to one inventory box in a Network.
// The zero value is not usable.
type Box struct {
	net *Network
	id  components.BoxID
}

// ID returns the box's stable index in its network.
func (b Box) ID() components.BoxID {
	return b.id
}

// Name returns the box label.
func (b Box) Name() string {
	return b.net.labelMap.Get(b.net.entity(b.id)).Name
}

// Inventory returns the current inventory.
func (b Box) Inventory() float64 {
	return b.net.invMap.Get(b.net.entity(b.id)).Value
}

// InitialInventory returns the value the box is reset to at the start of a run.
func (b Box) InitialInventory() float64 {
	return b.net.invMap.Get(b.net.entity(b.id)).Initial
}

// Source returns the box's generation term.
func (b Box) Source() components.Source {
	return *b.net.sourceMap.Get(b.net.entity(b.id))
}

// GenerationTerm returns the constant generation rate.
// For a coupled box it returns 0; see Source for the coupling.
func (b Box) GenerationTerm() float64 {
	src := b.net.sourceMap.Get(b.net.entity(b.id))
	if src.Policy != components.GenerationConstant {
		return 0
	}
	return src.Rate
}

// Outputs returns a copy of the box's outgoing edges in registration order.
func (b Box) Outputs() []components.Flow {
	edges := b.net.outMap.Get(b.net.entity(b.id)).Edges
	out := make([]components.Flow, len(edges))
	copy(out, edges)
	return out
}

// Inventories returns the recorded trajectory, index-aligned with System.Times.
// The slice must not be modified.
func (b Box) Inventories() []float64 {
	return b.net.trajMap.Get(b.net.entity(b.id)).Values
}

// AddOutput registers a proportional edge moving rate*inventory per unit time to target.
func (b Box) AddOutput(target Box, rate float64) error {
	return b.addFlow(target, rate, components.FlowProportional)
}

// AddConstantOutput registers an edge moving a fixed rate per unit time to target,
// regardless of the source inventory.
func (b Box) AddConstantOutput(target Box, rate float64) error {
	return b.addFlow(target, rate, components.FlowConstant)
}

func (b Box) addFlow(target Box, rate float64, kind components.FlowKind) error {
	if err := b.checkMutable(target); err != nil {
		return err
	}
	if rate < 0 || math.IsNaN(rate) {
		return fmt.Errorf("%s output %s -> %s rate %g: %w",
			kind, b.Name(), target.Name(), rate, ErrNegativeRate)
	}

	outs := b.net.outMap.Get(b.net.entity(b.id))
	outs.Edges = append(outs.Edges, components.Flow{
		Target: target.id,
		Rate:   rate,
		Kind:   kind,
	})
	return nil
}

// CoupleGeneration replaces the box's constant generation term with
// factor times the inflow rate into ref, evaluated at the start of each step.
func (b Box) CoupleGeneration(ref Box, factor float64) error {
	if err := b.checkMutable(ref); err != nil {
		return err
	}
	src := b.net.sourceMap.Get(b.net.entity(b.id))
	src.Policy = components.GenerationCoupled
	src.Ref = ref.id
	src.Factor = factor
	src.Rate = 0
	return nil
}

func (b Box) checkMutable(other Box) error {
	if b.net == nil || other.net != b.net {
		return ErrForeignBox
	}
	if b.net.frozen {
		return fmt.Errorf("modifying box %q: %w", b.Name(), ErrFrozen)
	}
	return nil
}
