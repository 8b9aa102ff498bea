package engine

import "errors"

// Configuration errors. Negative or growing inventories are simulation
// results, never errors.
var (
	ErrNegativeRate        = errors.New("flow rate must be non-negative")
	ErrNonPositiveDuration = errors.New("duration must be positive and finite")
	ErrInvalidSteps        = errors.New("step count must be positive")
	ErrForeignBox          = errors.New("box belongs to a different network")
	ErrFrozen              = errors.New("network is frozen by a system")
	ErrUnknownStepper      = errors.New("unknown stepper")
	ErrNilNetwork          = errors.New("nil network")
)
