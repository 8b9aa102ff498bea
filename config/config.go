// Package config provides configuration loading and access for the fuel-cycle simulator.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/tritium/components"
	"github.com/pthm-cable/tritium/engine"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulator configuration parameters.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Reference  ReferenceConfig  `yaml:"reference"`
	Sweep      SweepConfig      `yaml:"sweep"`
	Search     SearchConfig     `yaml:"search"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimulationConfig holds integration parameters.
type SimulationConfig struct {
	Duration float64 `yaml:"duration"` // Horizon in time units
	Steps    int     `yaml:"steps"`    // Fixed step count; dt = duration / steps
	Stepper  string  `yaml:"stepper"`  // "scalar" or "matrix"
}

// ReferenceConfig holds the Storage/Plasma/Breeder model parameters.
type ReferenceConfig struct {
	TBR              float64 `yaml:"tbr"`               // Tritium breeding ratio
	StartupInventory float64 `yaml:"startup_inventory"` // Initial storage inventory
	BurnRate         float64 `yaml:"burn_rate"`         // Plasma intrinsic consumption per unit time
	ExtractionRate   float64 `yaml:"extraction_rate"`   // Breeder -> Storage proportional rate
	FuelingRate      float64 `yaml:"fueling_rate"`      // Storage -> Plasma constant rate
	GenerationPolicy string  `yaml:"generation_policy"` // "constant" or "coupled"
}

// RangeConfig describes an evenly spaced range: start inclusive, stop exclusive.
type RangeConfig struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
	Step  float64 `yaml:"step"`
}

// Values expands the range. Like numpy.arange, the count is ceil((stop-start)/step)
// and each value is start + i*step.
func (r RangeConfig) Values() []float64 {
	if r.Step <= 0 || r.Stop <= r.Start {
		return nil
	}
	n := int(math.Ceil((r.Stop - r.Start) / r.Step))
	values := make([]float64, n)
	for i := range values {
		values[i] = r.Start + float64(i)*r.Step
	}
	return values
}

// SweepConfig holds parameter sweep settings.
type SweepConfig struct {
	TBR              RangeConfig `yaml:"tbr"`
	StartupInventory RangeConfig `yaml:"startup_inventory"`
	Workers          int         `yaml:"workers"` // Concurrent runs (0 = GOMAXPROCS)
}

// SearchConfig holds break-even TBR search bounds.
type SearchConfig struct {
	MinTBR   float64 `yaml:"min_tbr"`
	MaxTBR   float64 `yaml:"max_tbr"`
	MaxEvals int     `yaml:"max_evals"`
}

// OutputConfig holds result destinations. Empty values disable the output.
type OutputConfig struct {
	Dir      string `yaml:"dir"`      // CSV and config snapshot directory
	Database string `yaml:"database"` // SQLite run store path
}

// LoggingConfig holds slog settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	DT               float64                     // Simulation.Duration / Simulation.Steps
	Stepper          engine.StepperKind          // Parsed Simulation.Stepper
	GenerationPolicy components.GenerationPolicy // Parsed Reference.GenerationPolicy
	TBRValues        []float64                   // Expanded Sweep.TBR
	InventoryValues  []float64                   // Expanded Sweep.StartupInventory
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Refresh(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Refresh validates the configuration and recomputes derived values.
// Call it after changing fields of a loaded Config.
func (c *Config) Refresh() error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.computeDerived()
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if !(c.Simulation.Duration > 0) {
		errs = append(errs, fmt.Errorf("simulation.duration %g: %w", c.Simulation.Duration, engine.ErrNonPositiveDuration))
	}
	if c.Simulation.Steps <= 0 {
		errs = append(errs, fmt.Errorf("simulation.steps %d: %w", c.Simulation.Steps, engine.ErrInvalidSteps))
	}
	if _, err := engine.ParseStepper(c.Simulation.Stepper); err != nil {
		errs = append(errs, fmt.Errorf("simulation.stepper: %w", err))
	}
	if _, err := components.ParseGenerationPolicy(c.Reference.GenerationPolicy); err != nil {
		errs = append(errs, fmt.Errorf("reference.generation_policy: %w", err))
	}
	rates := []struct {
		name string
		rate float64
	}{
		{"reference.burn_rate", c.Reference.BurnRate},
		{"reference.extraction_rate", c.Reference.ExtractionRate},
		{"reference.fueling_rate", c.Reference.FuelingRate},
	}
	for _, r := range rates {
		if r.rate < 0 {
			errs = append(errs, fmt.Errorf("%s %g: %w", r.name, r.rate, engine.ErrNegativeRate))
		}
	}
	ranges := []struct {
		name string
		r    RangeConfig
	}{
		{"sweep.tbr", c.Sweep.TBR},
		{"sweep.startup_inventory", c.Sweep.StartupInventory},
	}
	for _, rg := range ranges {
		if rg.r.Step <= 0 {
			errs = append(errs, fmt.Errorf("%s.step must be positive, got %g", rg.name, rg.r.Step))
		}
	}
	if c.Sweep.Workers < 0 {
		errs = append(errs, fmt.Errorf("sweep.workers must not be negative, got %d", c.Sweep.Workers))
	}
	if c.Search.MaxTBR <= c.Search.MinTBR {
		errs = append(errs, fmt.Errorf("search.max_tbr %g must exceed search.min_tbr %g", c.Search.MaxTBR, c.Search.MinTBR))
	}

	return errors.Join(errs...)
}

// computeDerived calculates values derived from loaded config.
// Validate must have succeeded first.
func (c *Config) computeDerived() {
	c.Derived.DT = c.Simulation.Duration / float64(c.Simulation.Steps)
	c.Derived.Stepper, _ = engine.ParseStepper(c.Simulation.Stepper)
	c.Derived.GenerationPolicy, _ = components.ParseGenerationPolicy(c.Reference.GenerationPolicy)
	c.Derived.TBRValues = c.Sweep.TBR.Values()
	c.Derived.InventoryValues = c.Sweep.StartupInventory.Values()
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
