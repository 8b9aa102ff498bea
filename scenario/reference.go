package scenario

import (
	"fmt"

	"github.com/pthm-cable/tritium/components"
)

// Box names of the reference fuel cycle.
const (
	BoxStorage = "Storage"
	BoxPlasma  = "Plasma"
	BoxBreeder = "Breeder"
)

// ReferenceParams parameterizes the Storage/Plasma/Breeder fuel cycle.
type ReferenceParams struct {
	TBR              float64
	StartupInventory float64
	BurnRate         float64 // plasma consumption per unit time
	ExtractionRate   float64 // breeder -> storage, proportional
	FuelingRate      float64 // storage -> plasma, constant
	Policy           components.GenerationPolicy
}

// DefaultReferenceParams returns unit rates with the given TBR and startup inventory.
func DefaultReferenceParams(tbr, startup float64) ReferenceParams {
	return ReferenceParams{
		TBR:              tbr,
		StartupInventory: startup,
		BurnRate:         1,
		ExtractionRate:   1,
		FuelingRate:      1,
		Policy:           components.GenerationConstant,
	}
}

// Reference builds the three-box fuel cycle. Storage fuels the plasma at a
// fixed rate, the plasma burns its fuel, and the breeder produces TBR per unit
// time (or TBR times the plasma's fuel intake under the coupled policy) and
// returns it to storage.
func Reference(p ReferenceParams) *Scenario {
	breeder := BoxSpec{
		Name:           BoxBreeder,
		GenerationTerm: p.TBR,
		Outputs:        []OutputSpec{{Target: BoxStorage, Rate: p.ExtractionRate, Kind: components.FlowProportional.String()}},
	}
	if p.Policy == components.GenerationCoupled {
		breeder.GenerationTerm = 0
		breeder.Coupling = &CouplingSpec{Box: BoxPlasma, Factor: p.TBR}
	}

	return &Scenario{
		Name: fmt.Sprintf("reference tbr=%.4g startup=%.4g", p.TBR, p.StartupInventory),
		Boxes: []BoxSpec{
			{
				Name:             BoxStorage,
				InitialInventory: p.StartupInventory,
				Outputs:          []OutputSpec{{Target: BoxPlasma, Rate: p.FuelingRate, Kind: components.FlowConstant.String()}},
			},
			{
				Name:           BoxPlasma,
				GenerationTerm: -p.BurnRate,
			},
			breeder,
		},
	}
}
