// Package scenario describes box networks as data and builds engine networks from them.
package scenario

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/tritium/components"
	"github.com/pthm-cable/tritium/engine"
)

// Scenario is a named box network plus optional run settings.
// Zero Duration, Steps, or Stepper fall back to the caller's settings.
type Scenario struct {
	Name     string    `yaml:"name"`
	Duration float64   `yaml:"duration,omitempty"`
	Steps    int       `yaml:"steps,omitempty"`
	Stepper  string    `yaml:"stepper,omitempty"`
	Boxes    []BoxSpec `yaml:"boxes"`
}

// BoxSpec describes one box. Outputs name their target box.
type BoxSpec struct {
	Name             string        `yaml:"name"`
	InitialInventory float64       `yaml:"initial_inventory,omitempty"`
	GenerationTerm   float64       `yaml:"generation_term,omitempty"`
	Coupling         *CouplingSpec `yaml:"coupling,omitempty"`
	Outputs          []OutputSpec  `yaml:"outputs,omitempty"`
}

// CouplingSpec makes a box's generation Factor times the inflow into Box.
type CouplingSpec struct {
	Box    string  `yaml:"box"`
	Factor float64 `yaml:"factor"`
}

// OutputSpec is one flow edge. Kind is "proportional" (default) or "constant".
type OutputSpec struct {
	Target string  `yaml:"target"`
	Rate   float64 `yaml:"rate"`
	Kind   string  `yaml:"kind,omitempty"`
}

// Settings are the run parameters of a scenario.
type Settings struct {
	Duration float64
	Steps    int
	Stepper  engine.StepperKind
}

// Options converts the settings into System options.
func (s Settings) Options() []engine.Option {
	return []engine.Option{engine.WithSteps(s.Steps), engine.WithStepper(s.Stepper)}
}

// Parse decodes and validates a YAML scenario.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Marshal encodes the scenario as YAML.
func (s *Scenario) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshaling scenario: %w", err)
	}
	return data, nil
}

// Validate checks names, references, kinds, and rates.
// Box names must be unique within a scenario because edges refer to them by name.
func (s *Scenario) Validate() error {
	var errs []error

	if s.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration %g: %w", s.Duration, engine.ErrNonPositiveDuration))
	}
	if s.Steps < 0 {
		errs = append(errs, fmt.Errorf("steps %d: %w", s.Steps, engine.ErrInvalidSteps))
	}
	if _, err := engine.ParseStepper(s.Stepper); err != nil {
		errs = append(errs, err)
	}

	names := make(map[string]bool, len(s.Boxes))
	for i, b := range s.Boxes {
		switch {
		case b.Name == "":
			errs = append(errs, fmt.Errorf("box %d: missing name", i))
		case names[b.Name]:
			errs = append(errs, fmt.Errorf("box %q: duplicate name", b.Name))
		}
		names[b.Name] = true
	}

	for _, b := range s.Boxes {
		if b.Coupling != nil && !names[b.Coupling.Box] {
			errs = append(errs, fmt.Errorf("box %q: coupling to unknown box %q", b.Name, b.Coupling.Box))
		}
		for _, out := range b.Outputs {
			if !names[out.Target] {
				errs = append(errs, fmt.Errorf("box %q: output to unknown box %q", b.Name, out.Target))
			}
			if _, err := components.ParseFlowKind(out.Kind); err != nil {
				errs = append(errs, fmt.Errorf("box %q: %w", b.Name, err))
			}
			if out.Rate < 0 {
				errs = append(errs, fmt.Errorf("box %q output to %q rate %g: %w", b.Name, out.Target, out.Rate, engine.ErrNegativeRate))
			}
		}
	}

	return errors.Join(errs...)
}

// Build creates an engine network with boxes in scenario order.
func (s *Scenario) Build() (*engine.Network, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	net := engine.NewNetwork()
	boxes := make(map[string]engine.Box, len(s.Boxes))
	for _, spec := range s.Boxes {
		b, err := net.NewBox(spec.Name,
			engine.WithInitialInventory(spec.InitialInventory),
			engine.WithGenerationTerm(spec.GenerationTerm),
		)
		if err != nil {
			return nil, err
		}
		boxes[spec.Name] = b
	}

	for _, spec := range s.Boxes {
		from := boxes[spec.Name]
		for _, out := range spec.Outputs {
			kind, _ := components.ParseFlowKind(out.Kind)
			var err error
			if kind == components.FlowConstant {
				err = from.AddConstantOutput(boxes[out.Target], out.Rate)
			} else {
				err = from.AddOutput(boxes[out.Target], out.Rate)
			}
			if err != nil {
				return nil, err
			}
		}
		if spec.Coupling != nil {
			if err := from.CoupleGeneration(boxes[spec.Coupling.Box], spec.Coupling.Factor); err != nil {
				return nil, err
			}
		}
	}

	return net, nil
}

// Settings resolves the scenario's run settings against fallback.
func (s *Scenario) Settings(fallback Settings) Settings {
	out := fallback
	if s.Duration > 0 {
		out.Duration = s.Duration
	}
	if s.Steps > 0 {
		out.Steps = s.Steps
	}
	if s.Stepper != "" {
		out.Stepper, _ = engine.ParseStepper(s.Stepper)
	}
	return out
}

// Run builds the network, runs it with the resolved settings, and returns the System.
func (s *Scenario) Run(fallback Settings) (*engine.System, error) {
	net, err := s.Build()
	if err != nil {
		return nil, fmt.Errorf("building scenario %q: %w", s.Name, err)
	}
	settings := s.Settings(fallback)
	sys, err := engine.NewSystem(net, settings.Options()...)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	if err := sys.Run(settings.Duration); err != nil {
		return nil, fmt.Errorf("running scenario %q: %w", s.Name, err)
	}
	return sys, nil
}
