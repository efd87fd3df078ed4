package methods

import (
	"ghg-ledger/inventory-engine/internal/units"
)

// hoursPerYear is the annualization base for component operating hours.
const hoursPerYear = 8760.0

// tankBBLPerM3 converts tank throughput to barrels for loss factors quoted
// per bbl.
const tankBBLPerM3 = 0.158987

// Component is one entry of a component-count fugitive survey: count of
// components of one type, the gas they leak and the per-component annual
// emission factor.
type Component struct {
	Count          int
	Gas            string  // zero value means CH4
	EFKgPerYear    float64 // kg per component per year
	OperatingHours float64 // zero means 8760
}

// ComponentLeaks computes equipment leak emissions with the component-factor
// approach: mass = count x EF x (operating_hours / 8760), summed per gas.
// VOC is tracked with zero CO2e since it is not a greenhouse gas.
func ComponentLeaks(components []Component, gwp GWPSet) (*Result, error) {
	g := gwp.orDefault()

	byGas := map[string]float64{
		GasCH4: 0, GasVOC: 0, GasCO2: 0, GasN2O: 0,
	}
	for _, c := range components {
		if c.Count < 0 {
			return nil, &InputError{Field: "components", Reason: "negative component count"}
		}
		if c.EFKgPerYear < 0 {
			return nil, &InputError{Field: "components", Reason: "negative emission factor"}
		}
		gas := c.Gas
		if gas == "" {
			gas = GasCH4
		}
		hours := c.OperatingHours
		if hours == 0 {
			hours = hoursPerYear
		}
		massKg := float64(c.Count) * c.EFKgPerYear * (hours / hoursPerYear)
		byGas[gas] += massKg
	}

	co2eKg := byGas[GasCO2] + byGas[GasCH4]*g.CH4 + byGas[GasN2O]*g.N2O

	return &Result{
		Emissions: map[string]GasEmission{
			GasCO2: gasLine(byGas[GasCO2], 1),
			GasCH4: gasLine(byGas[GasCH4], g.CH4),
			GasN2O: gasLine(byGas[GasN2O], g.N2O),
			GasVOC: {MassKg: byGas[GasVOC], CO2eKg: 0, GWP: 0},
		},
		TotalCO2eKg: co2eKg,
		Method:      "Component-factor",
		Details: map[string]any{
			"component_count": len(components),
		},
	}, nil
}

// TankLossesInput parameterizes tank flashing and breathing losses.
type TankLossesInput struct {
	Throughput     float64
	ThroughputUnit string
	LossFactor     float64 // kg VOC per bbl
	VOCToCH4Ratio  float64 // zero means 0.6
	GWP            GWPSet
}

// TankLosses computes tank flashing/breathing losses: VOC = throughput(bbl) x
// loss factor, with the methane share converted to CO2e.
func TankLosses(reg *units.Registry, in TankLossesInput) (*Result, error) {
	if in.Throughput < 0 {
		return nil, &InputError{Field: "throughput", Reason: "must not be negative"}
	}
	if in.LossFactor < 0 {
		return nil, &InputError{Field: "loss_factor", Reason: "must not be negative"}
	}
	ratio := in.VOCToCH4Ratio
	if ratio == 0 {
		ratio = 0.6
	}
	gwp := in.GWP.orDefault()

	m3, err := reg.ConvertVolume(in.Throughput, in.ThroughputUnit, units.CanonicalVolume)
	if err != nil {
		return nil, &InputError{Field: "throughput_unit", Err: err}
	}
	throughputBBL := m3 / tankBBLPerM3

	vocKg := throughputBBL * in.LossFactor
	ch4Kg := vocKg * ratio

	return &Result{
		Emissions: map[string]GasEmission{
			GasCH4: gasLine(ch4Kg, gwp.CH4),
			GasVOC: {MassKg: vocKg, CO2eKg: 0, GWP: 0},
		},
		TotalCO2eKg: ch4Kg * gwp.CH4,
		Method:      "Tank losses",
		Details: map[string]any{
			"throughput_bbl": throughputBBL,
		},
	}, nil
}

// BlowdownInput parameterizes a pipeline blowdown/depressurization event.
type BlowdownInput struct {
	PipelineVolume     float64
	PipelineVolumeUnit string
	GasPressure        float64
	GasPressureUnit    string // "bar" or "psi"
	TemperatureC       float64
	CH4MoleFraction    float64 // zero means 0.95
	GWP                GWPSet
}

// gasConstantBar is R in bar*m3/(mol*K) as used by the blowdown estimate.
const gasConstantBar = 0.08314

// PipelineBlowdown estimates vented gas mass with the ideal gas law
// n = P*V/(R*T) and converts the methane share to CO2e:
// CH4_kg = n x mole_fraction x 16 / 1000.
func PipelineBlowdown(reg *units.Registry, in BlowdownInput) (*Result, error) {
	if in.PipelineVolume < 0 {
		return nil, &InputError{Field: "pipeline_volume", Reason: "must not be negative"}
	}
	if in.GasPressure < 0 {
		return nil, &InputError{Field: "gas_pressure", Reason: "must not be negative"}
	}
	moleFrac := in.CH4MoleFraction
	if moleFrac == 0 {
		moleFrac = 0.95
	}
	gwp := in.GWP.orDefault()

	volumeM3, err := reg.ConvertVolume(in.PipelineVolume, in.PipelineVolumeUnit, units.CanonicalVolume)
	if err != nil {
		return nil, &InputError{Field: "pipeline_volume_unit", Err: err}
	}

	pressureBar := in.GasPressure
	if normalizedUnit(in.GasPressureUnit) == "psi" {
		pressureBar = in.GasPressure * 0.0689476
	}

	temperatureK := in.TemperatureC + 273.15
	moles := (pressureBar * volumeM3) / (gasConstantBar * temperatureK)
	ch4Kg := (moles * moleFrac * 16) / 1000

	return &Result{
		Emissions: map[string]GasEmission{
			GasCH4: gasLine(ch4Kg, gwp.CH4),
		},
		TotalCO2eKg: ch4Kg * gwp.CH4,
		Method:      "Pipeline blowdown",
		Details: map[string]any{
			"pipeline_volume_m3": volumeM3,
			"pressure_bar":       pressureBar,
		},
	}, nil
}

// LoadingInput parameterizes product loading operations (truck, rail, ship).
type LoadingInput struct {
	ProductLoaded           float64
	ProductUnit             string
	LossFactor              float64 // kg VOC per m3 loaded
	VaporRecoveryEfficiency float64 // 0-1
	VOCToCH4Ratio           float64 // zero means 0.3
	GWP                     GWPSet
}

// LoadingLosses computes loading emissions with vapor recovery applied to the
// gross VOC before the methane share is taken.
func LoadingLosses(reg *units.Registry, in LoadingInput) (*Result, error) {
	if in.ProductLoaded < 0 {
		return nil, &InputError{Field: "product_loaded", Reason: "must not be negative"}
	}
	if in.VaporRecoveryEfficiency < 0 || in.VaporRecoveryEfficiency > 1 {
		return nil, &InputError{Field: "vapor_recovery_efficiency", Reason: "must be between 0 and 1"}
	}
	ratio := in.VOCToCH4Ratio
	if ratio == 0 {
		ratio = 0.3
	}
	gwp := in.GWP.orDefault()

	volumeM3, err := reg.ConvertVolume(in.ProductLoaded, in.ProductUnit, units.CanonicalVolume)
	if err != nil {
		return nil, &InputError{Field: "product_unit", Err: err}
	}

	vocGrossKg := volumeM3 * in.LossFactor
	vocNetKg := vocGrossKg * (1 - in.VaporRecoveryEfficiency)
	ch4Kg := vocNetKg * ratio

	return &Result{
		Emissions: map[string]GasEmission{
			GasCH4: gasLine(ch4Kg, gwp.CH4),
			GasVOC: {MassKg: vocNetKg, CO2eKg: 0, GWP: 0},
		},
		TotalCO2eKg: ch4Kg * gwp.CH4,
		Method:      "Loading operations",
		Details: map[string]any{
			"product_loaded_m3":         volumeM3,
			"vapor_recovery_efficiency": in.VaporRecoveryEfficiency,
		},
	}, nil
}
