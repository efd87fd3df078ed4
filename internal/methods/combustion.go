package methods

import (
	"ghg-ledger/inventory-engine/internal/units"
)

// co2PerCarbon is the molecular weight ratio CO2/C (44/12).
const co2PerCarbon = 44.0 / 12.0

// CombustionInput parameterizes a Tier 1 stationary combustion calculation.
// Emission factors are per GJ of fuel energy; CH4 and N2O factors may be zero
// when the authority publishes CO2 only.
type CombustionInput struct {
	EnergyInput   float64
	EnergyUnit    string
	EFCO2         float64 // kg CO2/GJ
	EFCH4         float64 // kg CH4/GJ
	EFN2O         float64 // kg N2O/GJ
	OxidationFrac float64 // zero means 1.0
	Basis         string  // HHV, LHV or NA; recorded, not applied
	GWP           GWPSet
}

// Combustion computes Tier 1 stationary combustion emissions:
//
//	CO2 = Energy(GJ) x EF_CO2 x oxidation_frac
//	CH4 = Energy(GJ) x EF_CH4
//	N2O = Energy(GJ) x EF_N2O
//	CO2e = CO2 + CH4 x GWP_CH4 + N2O x GWP_N2O
func Combustion(reg *units.Registry, in CombustionInput) (*Result, error) {
	if in.EnergyInput < 0 {
		return nil, &InputError{Field: "energy_input", Reason: "must not be negative"}
	}
	if in.EFCO2 < 0 || in.EFCH4 < 0 || in.EFN2O < 0 {
		return nil, &InputError{Field: "emission_factor", Reason: "must not be negative"}
	}
	ox := in.OxidationFrac
	if ox == 0 {
		ox = 1.0
	}
	basis := in.Basis
	if basis == "" {
		basis = "HHV"
	}
	gwp := in.GWP.orDefault()

	energyGJ, err := reg.ConvertEnergy(in.EnergyInput, in.EnergyUnit, units.CanonicalEnergy)
	if err != nil {
		return nil, &InputError{Field: "energy_unit", Err: err}
	}

	co2Kg := energyGJ * in.EFCO2 * ox
	ch4Kg := energyGJ * in.EFCH4
	n2oKg := energyGJ * in.EFN2O

	return &Result{
		Emissions: map[string]GasEmission{
			GasCO2: gasLine(co2Kg, 1),
			GasCH4: gasLine(ch4Kg, gwp.CH4),
			GasN2O: gasLine(n2oKg, gwp.N2O),
		},
		TotalCO2eKg: co2Kg + ch4Kg*gwp.CH4 + n2oKg*gwp.N2O,
		Details: map[string]any{
			"energy_input_gj": energyGJ,
			"basis":           basis,
			"oxidation_frac":  ox,
		},
	}, nil
}

// CompositionInput parameterizes a Tier 2 combustion calculation driven by
// measured fuel carbon content rather than a published CO2 factor.
type CompositionInput struct {
	EnergyInput   float64
	EnergyUnit    string
	CarbonContent float64 // kg C/GJ
	OxidationFrac float64 // zero means 0.995
	EFCH4         float64 // zero means 0.001 kg/GJ
	EFN2O         float64 // zero means 0.0001 kg/GJ
	GWP           GWPSet
}

// CombustionFromComposition computes Tier 2 combustion emissions from fuel
// composition: CO2 = Energy(GJ) x CarbonContent x (44/12) x oxidation_frac.
func CombustionFromComposition(reg *units.Registry, in CompositionInput) (*Result, error) {
	if in.EnergyInput < 0 {
		return nil, &InputError{Field: "energy_input", Reason: "must not be negative"}
	}
	if in.CarbonContent < 0 {
		return nil, &InputError{Field: "carbon_content", Reason: "must not be negative"}
	}
	ox := in.OxidationFrac
	if ox == 0 {
		ox = 0.995
	}
	efCH4 := in.EFCH4
	if efCH4 == 0 {
		efCH4 = 0.001
	}
	efN2O := in.EFN2O
	if efN2O == 0 {
		efN2O = 0.0001
	}
	gwp := in.GWP.orDefault()

	energyGJ, err := reg.ConvertEnergy(in.EnergyInput, in.EnergyUnit, units.CanonicalEnergy)
	if err != nil {
		return nil, &InputError{Field: "energy_unit", Err: err}
	}

	co2Kg := energyGJ * in.CarbonContent * co2PerCarbon * ox
	ch4Kg := energyGJ * efCH4
	n2oKg := energyGJ * efN2O

	return &Result{
		Emissions: map[string]GasEmission{
			GasCO2: gasLine(co2Kg, 1),
			GasCH4: gasLine(ch4Kg, gwp.CH4),
			GasN2O: gasLine(n2oKg, gwp.N2O),
		},
		TotalCO2eKg: co2Kg + ch4Kg*gwp.CH4 + n2oKg*gwp.N2O,
		Method:      "Tier 2 - Composition",
		Details: map[string]any{
			"energy_input_gj":          energyGJ,
			"carbon_content_kg_per_gj": in.CarbonContent,
			"oxidation_frac":           ox,
		},
	}, nil
}

// MobileInput parameterizes a mobile combustion calculation. Fuel may arrive
// in energy, volume or mass units; volume and mass convert to energy through
// the fuel's energy content.
type MobileInput struct {
	FuelConsumed  float64
	FuelUnit      string
	FuelType      string // e.g. "diesel", "gasoline"
	EnergyContent *units.EnergyContent
	EFCO2         float64
	EFCH4         float64
	EFN2O         float64
	GWP           GWPSet
}

// energyUnits and volumeUnits drive mobile fuel-unit sensing. Anything not
// recognized as energy or volume is treated as a mass unit.
var (
	mobileEnergyUnits = map[string]bool{"gj": true, "mj": true, "kwh": true, "mmbtu": true}
	mobileVolumeUnits = map[string]bool{
		"l": true, "liter": true, "litre": true,
		"gal": true, "gallon": true, "bbl": true, "barrel": true,
	}
)

// MobileCombustion computes vehicle, vessel and aircraft fuel emissions by
// converting the fuel quantity to energy and applying the Tier 1 formula with
// the mobile oxidation fraction of 0.99.
func MobileCombustion(reg *units.Registry, in MobileInput) (*Result, error) {
	if in.FuelConsumed < 0 {
		return nil, &InputError{Field: "fuel_consumed", Reason: "must not be negative"}
	}

	var (
		energyGJ float64
		err      error
	)
	switch unit := normalizedUnit(in.FuelUnit); {
	case mobileEnergyUnits[unit]:
		energyGJ, err = reg.ConvertEnergy(in.FuelConsumed, in.FuelUnit, units.CanonicalEnergy)
	case mobileVolumeUnits[unit]:
		energyGJ, err = reg.VolumeToEnergy(in.FuelConsumed, in.FuelUnit, in.FuelType, in.EnergyContent)
	default:
		energyGJ, err = reg.MassToEnergy(in.FuelConsumed, in.FuelUnit, in.FuelType, in.EnergyContent)
	}
	if err != nil {
		return nil, &InputError{Field: "fuel_unit", Err: err}
	}

	return Combustion(reg, CombustionInput{
		EnergyInput:   energyGJ,
		EnergyUnit:    units.CanonicalEnergy,
		EFCO2:         in.EFCO2,
		EFCH4:         in.EFCH4,
		EFN2O:         in.EFN2O,
		OxidationFrac: 0.99,
		GWP:           in.GWP,
	})
}
