package methods

import (
	"math"

	"ghg-ledger/inventory-engine/internal/units"
)

// LocationElectricityInput parameterizes the location-based Scope 2 method.
// Grid factors are usually CO2 only; CH4Fraction/N2OFraction split the CO2e
// total back into gas masses when the factor includes them.
type LocationElectricityInput struct {
	ElectricityKWh float64
	GridEF         float64 // kg CO2e/kWh
	CH4Fraction    float64
	N2OFraction    float64
	GWP            GWPSet
}

// LocationBasedElectricity computes location-based Scope 2 emissions:
// CO2e = kWh x grid EF, with optional gas split.
func LocationBasedElectricity(in LocationElectricityInput) (*Result, error) {
	if in.ElectricityKWh < 0 {
		return nil, &InputError{Field: "electricity_kwh", Reason: "must not be negative"}
	}
	if in.GridEF < 0 {
		return nil, &InputError{Field: "grid_ef", Reason: "must not be negative"}
	}
	gwp := in.GWP.orDefault()

	totalCO2eKg := in.ElectricityKWh * in.GridEF
	co2Kg := totalCO2eKg * (1 - in.CH4Fraction - in.N2OFraction)
	ch4Kg := (totalCO2eKg * in.CH4Fraction) / gwp.CH4
	n2oKg := (totalCO2eKg * in.N2OFraction) / gwp.N2O

	return &Result{
		Emissions: map[string]GasEmission{
			GasCO2: gasLine(co2Kg, 1),
			GasCH4: gasLine(ch4Kg, gwp.CH4),
			GasN2O: gasLine(n2oKg, gwp.N2O),
		},
		TotalCO2eKg: totalCO2eKg,
		Method:      "Location-based",
		Details: map[string]any{
			"electricity_kwh":    in.ElectricityKWh,
			"grid_ef_kg_per_kwh": in.GridEF,
		},
	}, nil
}

// MarketElectricityInput parameterizes the market-based Scope 2 method.
// Factor fields are pointers: nil means "not contracted/published", which is
// different from an explicit zero factor for certified renewable supply.
type MarketElectricityInput struct {
	ElectricityKWh  float64
	SupplierEF      *float64 // kg CO2/kWh
	CertificatesKWh float64  // RECs/EACs
	ResidualMixEF   *float64
	GridEF          *float64
}

// MarketBasedElectricity computes market-based Scope 2 emissions. The
// effective factor resolves supplier, then residual mix, then grid average;
// none resolvable is a ConfigurationError. Certificates zero out the covered
// consumption before the factor applies.
func MarketBasedElectricity(in MarketElectricityInput) (*Result, error) {
	if in.ElectricityKWh < 0 {
		return nil, &InputError{Field: "electricity_kwh", Reason: "must not be negative"}
	}
	if in.CertificatesKWh < 0 {
		return nil, &InputError{Field: "certificates_kwh", Reason: "must not be negative"}
	}

	var effectiveEF float64
	switch {
	case in.SupplierEF != nil:
		effectiveEF = *in.SupplierEF
	case in.ResidualMixEF != nil:
		effectiveEF = *in.ResidualMixEF
	case in.GridEF != nil:
		effectiveEF = *in.GridEF
	default:
		return nil, &ConfigurationError{Reason: "must provide a supplier, residual mix or grid emission factor"}
	}

	uncoveredKWh := math.Max(0, in.ElectricityKWh-in.CertificatesKWh)
	coveredKWh := math.Min(in.ElectricityKWh, in.CertificatesKWh)

	co2Kg := uncoveredKWh * effectiveEF

	return &Result{
		Emissions: map[string]GasEmission{
			GasCO2: gasLine(co2Kg, 1),
		},
		TotalCO2eKg: co2Kg,
		Method:      "Market-based",
		Details: map[string]any{
			"electricity_kwh":         in.ElectricityKWh,
			"certificates_kwh":        in.CertificatesKWh,
			"uncovered_kwh":           uncoveredKWh,
			"covered_kwh":             coveredKWh,
			"effective_ef_kg_per_kwh": effectiveEF,
		},
	}, nil
}

// DualElectricityResult carries both Scope 2 methods side by side, as the GHG
// Protocol Scope 2 Guidance requires for dual reporting.
type DualElectricityResult struct {
	LocationBased  *Result `json:"location_based"`
	MarketBased    *Result `json:"market_based"`
	ElectricityKWh float64 `json:"electricity_kwh"`
}

// DualReportingElectricity computes location-based and market-based results
// for the same consumption.
func DualReportingElectricity(in MarketElectricityInput, gridEF float64, gwp GWPSet) (*DualElectricityResult, error) {
	location, err := LocationBasedElectricity(LocationElectricityInput{
		ElectricityKWh: in.ElectricityKWh,
		GridEF:         gridEF,
		GWP:            gwp,
	})
	if err != nil {
		return nil, err
	}

	if in.GridEF == nil {
		in.GridEF = &gridEF
	}
	market, err := MarketBasedElectricity(in)
	if err != nil {
		return nil, err
	}

	return &DualElectricityResult{
		LocationBased:  location,
		MarketBased:    market,
		ElectricityKWh: in.ElectricityKWh,
	}, nil
}

// PurchasedEnergyInput parameterizes purchased steam, heat or cooling.
type PurchasedEnergyInput struct {
	EnergyQuantity float64
	EnergyUnit     string // "GJ", "MMBtu", "MWh", ...
	EmissionFactor float64 // kg CO2 per GJ
}

// PurchasedSteamHeat computes emissions from purchased steam, heat or
// cooling: CO2 = energy(GJ) x EF.
func PurchasedSteamHeat(reg *units.Registry, in PurchasedEnergyInput) (*Result, error) {
	if in.EnergyQuantity < 0 {
		return nil, &InputError{Field: "energy_quantity", Reason: "must not be negative"}
	}
	if in.EmissionFactor < 0 {
		return nil, &InputError{Field: "emission_factor", Reason: "must not be negative"}
	}

	energyGJ, err := reg.ConvertEnergy(in.EnergyQuantity, in.EnergyUnit, units.CanonicalEnergy)
	if err != nil {
		return nil, &InputError{Field: "energy_unit", Err: err}
	}

	co2Kg := energyGJ * in.EmissionFactor

	return &Result{
		Emissions: map[string]GasEmission{
			GasCO2: gasLine(co2Kg, 1),
		},
		TotalCO2eKg: co2Kg,
		Method:      "Purchased energy",
		Details: map[string]any{
			"energy_gj":       energyGJ,
			"emission_factor": in.EmissionFactor,
		},
	}, nil
}
