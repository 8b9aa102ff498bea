// Package components defines ECS components for fuel-cycle boxes.
package components

import "fmt"

// BoxID is a stable index into a network's ordered box list.
// Flow edges refer to their target by BoxID rather than by pointer.
type BoxID int

// FlowKind determines how a flow edge's rate is interpreted.
type FlowKind uint8

const (
	FlowProportional FlowKind = iota // rate * source inventory per unit time
	FlowConstant                     // fixed rate per unit time, independent of inventory
)

// String returns the lowercase name used in scenario files and CSV output.
func (k FlowKind) String() string {
	switch k {
	case FlowProportional:
		return "proportional"
	case FlowConstant:
		return "constant"
	default:
		return fmt.Sprintf("FlowKind(%d)", uint8(k))
	}
}

// ParseFlowKind maps a scenario file name to a FlowKind.
// An empty string means proportional.
func ParseFlowKind(s string) (FlowKind, error) {
	switch s {
	case "", "proportional":
		return FlowProportional, nil
	case "constant":
		return FlowConstant, nil
	default:
		return 0, fmt.Errorf("unknown flow kind %q", s)
	}
}

// GenerationPolicy selects how a box's generation term is evaluated each step.
type GenerationPolicy uint8

const (
	// GenerationConstant uses Source.Rate as a bare per-unit-time rate.
	GenerationConstant GenerationPolicy = iota
	// GenerationCoupled uses Source.Factor times the inflow rate into Source.Ref,
	// both taken at the start of the step.
	GenerationCoupled
)

// String returns the lowercase policy name.
func (p GenerationPolicy) String() string {
	switch p {
	case GenerationConstant:
		return "constant"
	case GenerationCoupled:
		return "coupled"
	default:
		return fmt.Sprintf("GenerationPolicy(%d)", uint8(p))
	}
}

// ParseGenerationPolicy maps a config name to a GenerationPolicy.
// An empty string means constant.
func ParseGenerationPolicy(s string) (GenerationPolicy, error) {
	switch s {
	case "", "constant":
		return GenerationConstant, nil
	case "coupled":
		return GenerationCoupled, nil
	default:
		return 0, fmt.Errorf("unknown generation policy %q", s)
	}
}

// Label names a box. Names are used for lookup and labeling only.
type Label struct {
	Name string
}

// Inventory holds a box's current and starting quantity.
// Value may go negative; that signals exhaustion and is never clamped.
type Inventory struct {
	Value   float64
	Initial float64
}

// Source is a box's intrinsic generation (positive) or consumption (negative) term.
type Source struct {
	Policy GenerationPolicy
	Rate   float64 // used by GenerationConstant
	Ref    BoxID   // used by GenerationCoupled
	Factor float64 // used by GenerationCoupled
}

// Flow is one outgoing edge of a box.
type Flow struct {
	Target BoxID
	Rate   float64
	Kind   FlowKind
}

// Outflows holds a box's outgoing edges in registration order.
type Outflows struct {
	Edges []Flow
}

// Trajectory is the recorded inventory series of a box, one value per step
// including the initial value.
type Trajectory struct {
	Values []float64
}
