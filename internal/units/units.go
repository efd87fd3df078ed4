// Package units provides dimension-safe unit conversion for GHG calculations:
// energy, mass and volume conversion with petroleum-industry units, fuel
// energy-content defaults, HHV/LHV basis conversion and compound
// emission-factor unit parsing.
package units

import (
	"strings"
)

// Dimension identifies a physical dimension handled by the registry.
type Dimension string

const (
	Energy Dimension = "energy"
	Mass   Dimension = "mass"
	Volume Dimension = "volume"
)

// Canonical units per dimension: GJ for energy, kg for mass, m3 for volume.
const (
	CanonicalEnergy = "GJ"
	CanonicalMass   = "kg"
	CanonicalVolume = "m3"
)

// EnergyContent is a fuel energy density, e.g. {38.6, "MJ/L"} for diesel.
type EnergyContent struct {
	Value float64
	Unit  string
}

// Registry holds conversion tables and fuel property defaults. The zero value
// is not usable; construct with NewRegistry.
type Registry struct {
	energy map[string]float64 // multiplier to GJ
	mass   map[string]float64 // multiplier to kg
	volume map[string]float64 // multiplier to m3

	energyContent map[string]EnergyContent
	hhvToLHV      map[string]float64
}

// NewRegistry returns a registry seeded with the standard unit tables,
// petroleum units (bbl = 158.9873 L, scf = 0.0283168 m3, toe = 41.868 GJ),
// fuel energy-content defaults and HHV-to-LHV ratios.
func NewRegistry() *Registry {
	return &Registry{
		energy: map[string]float64{
			"j":     1e-9,
			"kj":    1e-6,
			"mj":    1e-3,
			"gj":    1.0,
			"kwh":   0.0036,
			"mwh":   3.6,
			"mmbtu": 1.05506,
			"therm": 0.105506,
			"toe":   41.868,
		},
		mass: map[string]float64{
			"g":         0.001,
			"kg":        1.0,
			"t":         1000.0,
			"tonne":     1000.0,
			"lb":        0.453592,
			"lbs":       0.453592,
			"short_ton": 907.185,
			"long_ton":  1016.05,
		},
		volume: map[string]float64{
			"l":      0.001,
			"liter":  0.001,
			"litre":  0.001,
			"ml":     1e-6,
			"m3":     1.0,
			"nm3":    1.0, // normal cubic meter (0 degC, 1 atm)
			"bbl":    0.1589873,
			"barrel": 0.1589873,
			"gal":    0.00378541,
			"gallon": 0.00378541,
			"ft3":    0.0283168,
			"scf":    0.0283168,
		},
		energyContent: map[string]EnergyContent{
			// HHV basis throughout.
			"natural_gas": {38.3, "MJ/Nm3"},
			"crude_oil":   {6.119, "GJ/bbl"},
			"diesel":      {38.6, "MJ/L"},
			"gasoline":    {34.2, "MJ/L"},
			"fuel_oil":    {40.4, "MJ/kg"},
			"lpg":         {46.1, "MJ/kg"},
			"coal":        {25.8, "MJ/kg"},
		},
		hhvToLHV: map[string]float64{
			"natural_gas": 0.90,
			"diesel":      0.95,
			"gasoline":    0.93,
			"fuel_oil":    0.95,
			"lpg":         0.92,
			"coal":        0.98,
		},
	}
}

// defaultHHVToLHV applies when the fuel has no tabulated ratio.
const defaultHHVToLHV = 0.95

// normalize maps unit spellings onto table keys: case-insensitive, spaces
// stripped, superscript and caret volume notations folded to plain digits.
func normalize(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	u = strings.ReplaceAll(u, " ", "")
	u = strings.ReplaceAll(u, "**", "")
	u = strings.ReplaceAll(u, "^", "")
	u = strings.ReplaceAll(u, "³", "3")
	return u
}

// Register adds or overrides a unit in the given dimension. toCanonical is the
// multiplier converting one of the unit into the dimension's canonical unit.
func (r *Registry) Register(dim Dimension, unit string, toCanonical float64) {
	switch dim {
	case Energy:
		r.energy[normalize(unit)] = toCanonical
	case Mass:
		r.mass[normalize(unit)] = toCanonical
	case Volume:
		r.volume[normalize(unit)] = toCanonical
	}
}

// RegisterEnergyContent adds or overrides the default energy content for a
// fuel type.
func (r *Registry) RegisterEnergyContent(fuelType string, ec EnergyContent) {
	r.energyContent[fuelType] = ec
}

func (r *Registry) table(dim Dimension) map[string]float64 {
	switch dim {
	case Energy:
		return r.energy
	case Mass:
		return r.mass
	case Volume:
		return r.volume
	}
	return nil
}

// DimensionOf reports which dimension a unit belongs to.
func (r *Registry) DimensionOf(unit string) (Dimension, bool) {
	u := normalize(unit)
	if _, ok := r.energy[u]; ok {
		return Energy, true
	}
	if _, ok := r.mass[u]; ok {
		return Mass, true
	}
	if _, ok := r.volume[u]; ok {
		return Volume, true
	}
	return "", false
}

func (r *Registry) convert(dim Dimension, value float64, from, to string) (float64, error) {
	tbl := r.table(dim)
	f, ok := tbl[normalize(from)]
	if !ok {
		return 0, &UnitError{Unit: from, Dimension: dim}
	}
	t, ok := tbl[normalize(to)]
	if !ok {
		return 0, &UnitError{Unit: to, Dimension: dim}
	}
	return value * f / t, nil
}

// ConvertEnergy converts an energy value between units.
func (r *Registry) ConvertEnergy(value float64, from, to string) (float64, error) {
	return r.convert(Energy, value, from, to)
}

// ConvertMass converts a mass value between units.
func (r *Registry) ConvertMass(value float64, from, to string) (float64, error) {
	return r.convert(Mass, value, from, to)
}

// ConvertVolume converts a volume value between units.
func (r *Registry) ConvertVolume(value float64, from, to string) (float64, error) {
	return r.convert(Volume, value, from, to)
}

// Convert converts between two units that must share a dimension.
func (r *Registry) Convert(value float64, from, to string) (float64, error) {
	fromDim, ok := r.DimensionOf(from)
	if !ok {
		return 0, &UnitError{Unit: from}
	}
	toDim, ok := r.DimensionOf(to)
	if !ok {
		return 0, &UnitError{Unit: to}
	}
	if fromDim != toDim {
		return 0, &UnitError{
			Unit:   from + " -> " + to,
			Reason: "conversion across dimensions (" + string(fromDim) + " to " + string(toDim) + ")",
		}
	}
	return r.convert(fromDim, value, from, to)
}

// ToCanonical converts a value into the canonical unit of the given dimension
// (GJ, kg or m3).
func (r *Registry) ToCanonical(value float64, from string, dim Dimension) (float64, error) {
	tbl := r.table(dim)
	if tbl == nil {
		return 0, &UnitError{Unit: from, Reason: "unknown dimension"}
	}
	f, ok := tbl[normalize(from)]
	if !ok {
		return 0, &UnitError{Unit: from, Dimension: dim}
	}
	return value * f, nil
}

// resolveContent picks the caller override when both fields are set, otherwise
// the fuel's tabulated default.
func (r *Registry) resolveContent(fuelType string, override *EnergyContent) (EnergyContent, error) {
	if override != nil && override.Value > 0 && override.Unit != "" {
		return *override, nil
	}
	ec, ok := r.energyContent[fuelType]
	if !ok {
		return EnergyContent{}, &MissingEnergyContentError{FuelType: fuelType}
	}
	return ec, nil
}

// applyContent converts a quantity in fromUnit through an energy density such
// as "MJ/L" or "GJ/bbl" into GJ. The density's denominator decides whether the
// quantity is read as mass or volume.
func (r *Registry) applyContent(quantity float64, fromUnit string, ec EnergyContent) (float64, error) {
	num, den, err := ParseFactorUnit(ec.Unit)
	if err != nil {
		return 0, err
	}
	perGJ, ok := r.energy[normalize(num)]
	if !ok {
		return 0, &UnitError{Unit: num, Dimension: Energy}
	}
	denDim, ok := r.DimensionOf(den)
	if !ok {
		return 0, &UnitError{Unit: den}
	}
	inDen, err := r.convert(denDim, quantity, fromUnit, den)
	if err != nil {
		return 0, err
	}
	return inDen * ec.Value * perGJ, nil
}

// VolumeToEnergy converts a fuel volume to energy in GJ using the fuel's
// default energy content or the caller override.
func (r *Registry) VolumeToEnergy(volume float64, volumeUnit, fuelType string, override *EnergyContent) (float64, error) {
	ec, err := r.resolveContent(fuelType, override)
	if err != nil {
		return 0, err
	}
	return r.applyContent(volume, volumeUnit, ec)
}

// MassToEnergy converts a fuel mass to energy in GJ using the fuel's default
// energy content or the caller override.
func (r *Registry) MassToEnergy(mass float64, massUnit, fuelType string, override *EnergyContent) (float64, error) {
	ec, err := r.resolveContent(fuelType, override)
	if err != nil {
		return 0, err
	}
	return r.applyContent(mass, massUnit, ec)
}

// HHVToLHV converts an energy amount from higher to lower heating value basis.
func (r *Registry) HHVToLHV(energy float64, fuelType string) float64 {
	factor, ok := r.hhvToLHV[fuelType]
	if !ok {
		factor = defaultHHVToLHV
	}
	return energy * factor
}

// LHVToHHV converts an energy amount from lower to higher heating value basis.
func (r *Registry) LHVToHHV(energy float64, fuelType string) float64 {
	factor, ok := r.hhvToLHV[fuelType]
	if !ok {
		factor = defaultHHVToLHV
	}
	return energy / factor
}

// gasTokens are gas labels embedded in factor-unit numerators ("kg CO2/GJ").
var gasTokens = map[string]bool{
	"co2": true, "ch4": true, "n2o": true, "co2e": true,
	"sf6": true, "nf3": true, "voc": true,
}

// ParseFactorUnit splits a compound emission-factor unit such as "kg CO2/GJ"
// into its numerator and denominator units, dropping any gas token from the
// numerator. A unit with no "/" separator is rejected.
func ParseFactorUnit(factorUnit string) (numerator, denominator string, err error) {
	if !strings.Contains(factorUnit, "/") {
		return "", "", &UnitError{Unit: factorUnit, Reason: "not a compound factor unit"}
	}
	parts := strings.Split(factorUnit, "/")
	numerator = strings.TrimSpace(parts[0])
	denominator = strings.TrimSpace(parts[1])

	if fields := strings.Fields(numerator); len(fields) > 1 {
		kept := fields[:0]
		for _, f := range fields {
			if !gasTokens[strings.ToLower(f)] {
				kept = append(kept, f)
			}
		}
		if len(kept) > 0 {
			numerator = kept[0]
		} else {
			numerator = fields[0]
		}
	}
	return numerator, denominator, nil
}

// defaultRegistry backs the package-level helpers.
var defaultRegistry = NewRegistry()

// Default returns the shared registry seeded with the standard tables.
func Default() *Registry {
	return defaultRegistry
}
