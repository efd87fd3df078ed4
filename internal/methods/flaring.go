package methods

import (
	"ghg-ledger/inventory-engine/internal/units"
)

// ch4PerCarbon is the molecular weight ratio CH4/C (16/12).
const ch4PerCarbon = 16.0 / 12.0

// FlareInput parameterizes a volume-based flare calculation per the API
// Compendium method. UnburnedCH4Factor is the CH4 content (kg per volume) of
// the uncombusted slip; zero disables the CH4 line.
type FlareInput struct {
	GasVolume             float64
	GasVolumeUnit         string  // "Nm3", "scf", ...
	EFCO2                 float64 // kg CO2 per Nm3 flared
	DestructionEfficiency float64 // zero means 0.98
	AssistGasVolume       float64
	AssistGasUnit         string // zero value means "Nm3"
	AssistEFCO2           float64
	UnburnedCH4Factor     float64 // kg CH4 per Nm3 uncombusted
	GWP                   GWPSet
}

// Flare computes flare stack emissions:
//
//	CO2 = Volume x EF_CO2 x destruction_efficiency (+ assist gas CO2)
//	CH4 = Volume x (1 - destruction_efficiency) x CH4 content factor
func Flare(reg *units.Registry, in FlareInput) (*Result, error) {
	if in.GasVolume < 0 {
		return nil, &InputError{Field: "gas_volume", Reason: "must not be negative"}
	}
	if in.EFCO2 < 0 {
		return nil, &InputError{Field: "ef_co2", Reason: "must not be negative"}
	}
	de := in.DestructionEfficiency
	if de == 0 {
		de = 0.98
	}
	gwp := in.GWP.orDefault()

	gasNm3, err := reg.ConvertVolume(in.GasVolume, in.GasVolumeUnit, units.CanonicalVolume)
	if err != nil {
		return nil, &InputError{Field: "gas_volume_unit", Err: err}
	}

	co2CombustionKg := gasNm3 * in.EFCO2 * de

	var assistNm3, co2AssistKg float64
	if in.AssistGasVolume > 0 {
		assistUnit := in.AssistGasUnit
		if assistUnit == "" {
			assistUnit = "Nm3"
		}
		assistNm3, err = reg.ConvertVolume(in.AssistGasVolume, assistUnit, units.CanonicalVolume)
		if err != nil {
			return nil, &InputError{Field: "assist_gas_unit", Err: err}
		}
		if in.AssistEFCO2 > 0 {
			co2AssistKg = assistNm3 * in.AssistEFCO2
		}
	}

	totalCO2Kg := co2CombustionKg + co2AssistKg

	var ch4Kg float64
	if in.UnburnedCH4Factor > 0 {
		ch4Kg = gasNm3 * (1 - de) * in.UnburnedCH4Factor
	}

	return &Result{
		Emissions: map[string]GasEmission{
			GasCO2: gasLine(totalCO2Kg, 1),
			GasCH4: gasLine(ch4Kg, gwp.CH4),
		},
		TotalCO2eKg: totalCO2Kg + ch4Kg*gwp.CH4,
		Method:      "API Flaring",
		Details: map[string]any{
			"gas_volume_nm3":         gasNm3,
			"destruction_efficiency": de,
			"assist_gas_nm3":         assistNm3,
		},
	}, nil
}

// FlareFromEnergyInput parameterizes the energy-based flare method used when
// flared volume is metered as heat content.
type FlareFromEnergyInput struct {
	EnergyContent         float64
	EnergyUnit            string
	CarbonContentFactor   float64 // kg C/GJ, zero means 15.3
	DestructionEfficiency float64 // zero means 0.98
	GWP                   GWPSet
}

// FlareFromEnergy computes flare emissions from energy content: combusted
// carbon leaves as CO2 (x44/12), uncombusted carbon as CH4 (x16/12).
func FlareFromEnergy(reg *units.Registry, in FlareFromEnergyInput) (*Result, error) {
	if in.EnergyContent < 0 {
		return nil, &InputError{Field: "energy_content", Reason: "must not be negative"}
	}
	cc := in.CarbonContentFactor
	if cc == 0 {
		cc = 15.3
	}
	de := in.DestructionEfficiency
	if de == 0 {
		de = 0.98
	}
	gwp := in.GWP.orDefault()

	energyGJ, err := reg.ConvertEnergy(in.EnergyContent, in.EnergyUnit, units.CanonicalEnergy)
	if err != nil {
		return nil, &InputError{Field: "energy_unit", Err: err}
	}

	co2Kg := energyGJ * cc * co2PerCarbon * de
	uncombustedCKg := energyGJ * cc * (1 - de)
	ch4Kg := uncombustedCKg * ch4PerCarbon

	return &Result{
		Emissions: map[string]GasEmission{
			GasCO2: gasLine(co2Kg, 1),
			GasCH4: gasLine(ch4Kg, gwp.CH4),
		},
		TotalCO2eKg: co2Kg + ch4Kg*gwp.CH4,
		Method:      "Flaring from energy",
		Details: map[string]any{
			"energy_gj":              energyGJ,
			"destruction_efficiency": de,
		},
	}, nil
}

// ThermalOxidizerInput parameterizes a thermal oxidizer treating VOC streams.
type ThermalOxidizerInput struct {
	VOCMass               float64
	VOCUnit               string
	DestructionEfficiency float64 // zero means 0.98
	VOCToCO2Ratio         float64 // zero means 3.0
}

// ThermalOxidizer computes CO2 produced from VOC oxidation.
func ThermalOxidizer(reg *units.Registry, in ThermalOxidizerInput) (*Result, error) {
	if in.VOCMass < 0 {
		return nil, &InputError{Field: "voc_mass", Reason: "must not be negative"}
	}
	de := in.DestructionEfficiency
	if de == 0 {
		de = 0.98
	}
	ratio := in.VOCToCO2Ratio
	if ratio == 0 {
		ratio = 3.0
	}

	vocKg, err := reg.ConvertMass(in.VOCMass, in.VOCUnit, units.CanonicalMass)
	if err != nil {
		return nil, &InputError{Field: "voc_unit", Err: err}
	}

	co2Kg := vocKg * de * ratio

	return &Result{
		Emissions: map[string]GasEmission{
			GasCO2: gasLine(co2Kg, 1),
		},
		TotalCO2eKg: co2Kg,
		Method:      "Thermal oxidizer",
		Details: map[string]any{
			"voc_destroyed_kg": vocKg * de,
		},
	}, nil
}
