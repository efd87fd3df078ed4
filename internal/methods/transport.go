package methods

import (
	"ghg-ledger/inventory-engine/internal/units"
)

// kmPerMile converts statute miles to kilometers.
const kmPerMile = 1.60934

// toKilometers folds common distance spellings to km. Unrecognized units are
// taken as already being km.
func toKilometers(distance float64, unit string) float64 {
	switch normalizedUnit(unit) {
	case "mi", "mile", "miles":
		return distance * kmPerMile
	case "m", "meter", "meters":
		return distance / 1000
	default:
		return distance
	}
}

// FreightInput parameterizes freight transport on a tonne-km factor.
type FreightInput struct {
	Mass         float64
	MassUnit     string
	Distance     float64
	DistanceUnit string
	EFPerTonneKm float64 // kg CO2e per tonne-km
	LoadFactor   float64 // zero means 1.0
}

// Freight computes freight transport emissions:
// CO2e = tonnes x km x load factor x EF.
func Freight(reg *units.Registry, in FreightInput) (*Result, error) {
	if in.Mass < 0 {
		return nil, &InputError{Field: "mass", Reason: "must not be negative"}
	}
	if in.Distance < 0 {
		return nil, &InputError{Field: "distance", Reason: "must not be negative"}
	}
	lf := in.LoadFactor
	if lf == 0 {
		lf = 1.0
	}

	massKg, err := reg.ConvertMass(in.Mass, in.MassUnit, units.CanonicalMass)
	if err != nil {
		return nil, &InputError{Field: "mass_unit", Err: err}
	}
	massTonne := massKg / 1000
	distanceKm := toKilometers(in.Distance, in.DistanceUnit)

	tonneKm := massTonne * distanceKm * lf
	co2eKg := tonneKm * in.EFPerTonneKm

	return &Result{
		Emissions: map[string]GasEmission{
			GasCO2e: gasLine(co2eKg, 1),
		},
		TotalCO2eKg: co2eKg,
		Method:      "Freight transport",
		Details: map[string]any{
			"tonne_km":    tonneKm,
			"mass_tonne":  massTonne,
			"distance_km": distanceKm,
		},
	}, nil
}

// TravelDistanceInput parameterizes distance-based business travel.
type TravelDistanceInput struct {
	Distance     float64
	DistanceUnit string
	EFPerKm      float64 // kg CO2e/km, mode-specific
	Passengers   int     // zero means 1
}

// BusinessTravelDistance computes per-passenger travel emissions:
// CO2e = (km x EF) / passengers.
func BusinessTravelDistance(in TravelDistanceInput) (*Result, error) {
	if in.Distance < 0 {
		return nil, &InputError{Field: "distance", Reason: "must not be negative"}
	}
	if in.Passengers < 0 {
		return nil, &InputError{Field: "passengers", Reason: "must not be negative"}
	}
	passengers := in.Passengers
	if passengers == 0 {
		passengers = 1
	}

	distanceKm := toKilometers(in.Distance, in.DistanceUnit)
	co2eKg := (distanceKm * in.EFPerKm) / float64(passengers)

	return &Result{
		Emissions: map[string]GasEmission{
			GasCO2e: gasLine(co2eKg, 1),
		},
		TotalCO2eKg: co2eKg,
		Method:      "Business travel - distance",
		Details: map[string]any{
			"distance_km": distanceKm,
			"passengers":  passengers,
		},
	}, nil
}

// BusinessTravelFuel computes travel emissions from fuel consumption by
// delegating to the mobile combustion method.
func BusinessTravelFuel(reg *units.Registry, in MobileInput) (*Result, error) {
	return MobileCombustion(reg, in)
}

// CommutingInput parameterizes employee commuting with a modal split.
// ModeSplit fractions should sum to 1; ModeEF is kg CO2e/km per mode. Modes
// missing from ModeEF contribute zero.
type CommutingInput struct {
	Employees            int
	AvgCommuteDistanceKm float64 // one way
	WorkingDays          int
	ModeSplit            map[string]float64
	ModeEF               map[string]float64
}

// ModeEmission is the per-mode breakdown of a commuting result.
type ModeEmission struct {
	DistanceKm float64 `json:"distance_km"`
	CO2eKg     float64 `json:"co2e_kg"`
}

// EmployeeCommuting computes commuting emissions over round trips:
// total km = employees x distance x 2 x working days, split across modes.
func EmployeeCommuting(in CommutingInput) (*Result, error) {
	if in.Employees < 0 {
		return nil, &InputError{Field: "employees", Reason: "must not be negative"}
	}
	if in.AvgCommuteDistanceKm < 0 {
		return nil, &InputError{Field: "avg_commute_distance_km", Reason: "must not be negative"}
	}
	if in.WorkingDays < 0 {
		return nil, &InputError{Field: "working_days", Reason: "must not be negative"}
	}

	totalDistanceKm := float64(in.Employees) * in.AvgCommuteDistanceKm * 2 * float64(in.WorkingDays)

	byMode := make(map[string]ModeEmission, len(in.ModeSplit))
	totalCO2eKg := 0.0
	for mode, fraction := range in.ModeSplit {
		modeDistance := totalDistanceKm * fraction
		modeCO2e := modeDistance * in.ModeEF[mode]
		byMode[mode] = ModeEmission{DistanceKm: modeDistance, CO2eKg: modeCO2e}
		totalCO2eKg += modeCO2e
	}

	return &Result{
		Emissions: map[string]GasEmission{
			GasCO2e: gasLine(totalCO2eKg, 1),
		},
		TotalCO2eKg: totalCO2eKg,
		Method:      "Employee commuting",
		Details: map[string]any{
			"total_distance_km": totalDistanceKm,
			"employees":         in.Employees,
			"working_days":      in.WorkingDays,
			"emissions_by_mode": byMode,
		},
	}, nil
}

// AirTravelInput parameterizes air travel with a radiative forcing index.
// EFBase overrides the distance-banded default factor; when it is zero the
// default banding and flight-class multiplier apply.
type AirTravelInput struct {
	DistanceKm       float64
	FlightClass      string  // economy, premium_economy, business, first
	RadiativeForcing float64 // zero means 1.9
	EFBase           float64 // kg CO2/passenger-km
}

// flightClassMultipliers scale the per-km factor by cabin space.
var flightClassMultipliers = map[string]float64{
	"economy":         1.0,
	"premium_economy": 1.3,
	"business":        2.0,
	"first":           3.0,
}

// AirTravel computes flight emissions. Short-haul flights carry a higher
// per-km factor from takeoff and landing; the RFI multiplier accounts for
// high-altitude effects and applies to CO2e only.
func AirTravel(in AirTravelInput) (*Result, error) {
	if in.DistanceKm < 0 {
		return nil, &InputError{Field: "distance_km", Reason: "must not be negative"}
	}
	rfi := in.RadiativeForcing
	if rfi == 0 {
		rfi = 1.9
	}
	class := in.FlightClass
	if class == "" {
		class = "economy"
	}

	efBase := in.EFBase
	if efBase == 0 {
		switch {
		case in.DistanceKm < 500:
			efBase = 0.25
		case in.DistanceKm < 3700:
			efBase = 0.15
		default:
			efBase = 0.12
		}
		if mult, ok := flightClassMultipliers[class]; ok {
			efBase *= mult
		}
	}

	co2Kg := in.DistanceKm * efBase
	co2eKg := co2Kg * rfi

	return &Result{
		Emissions: map[string]GasEmission{
			GasCO2:     gasLine(co2Kg, 1),
			GasCO2eRFI: gasLine(co2eKg, 1),
		},
		TotalCO2eKg: co2eKg,
		Method:      "Air travel with RFI",
		Details: map[string]any{
			"co2_only_kg":       co2Kg,
			"distance_km":       in.DistanceKm,
			"flight_class":      class,
			"radiative_forcing": rfi,
		},
	}, nil
}
