package methods

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghg-ledger/inventory-engine/internal/units"
)

func TestFreight(t *testing.T) {
	reg := units.NewRegistry()

	result, err := Freight(reg, FreightInput{
		Mass:         20,
		MassUnit:     "t",
		Distance:     500,
		DistanceUnit: "km",
		EFPerTonneKm: 0.1,
	})
	require.NoError(t, err)

	assert.InDelta(t, 10000.0, result.Details["tonne_km"].(float64), 0.001)
	assert.InDelta(t, 1000.0, result.TotalCO2eKg, 0.001)
	assert.InDelta(t, 1000.0, result.Emissions[GasCO2e].MassKg, 0.001)
	assert.Equal(t, "Freight transport", result.Method)
}

func TestFreightMiles(t *testing.T) {
	reg := units.NewRegistry()

	result, err := Freight(reg, FreightInput{
		Mass:         10,
		MassUnit:     "t",
		Distance:     100,
		DistanceUnit: "mi",
		EFPerTonneKm: 0.05,
	})
	require.NoError(t, err)

	assert.InDelta(t, 160.934, result.Details["distance_km"].(float64), 0.001)
	assert.InDelta(t, 10*160.934*0.05, result.TotalCO2eKg, 0.01)
}

func TestFreightLoadFactor(t *testing.T) {
	reg := units.NewRegistry()

	result, err := Freight(reg, FreightInput{
		Mass:         20,
		MassUnit:     "t",
		Distance:     500,
		DistanceUnit: "km",
		EFPerTonneKm: 0.1,
		LoadFactor:   0.8,
	})
	require.NoError(t, err)

	assert.InDelta(t, 8000.0, result.Details["tonne_km"].(float64), 0.001)
	assert.InDelta(t, 800.0, result.TotalCO2eKg, 0.001)
}

func TestFreightMassConversion(t *testing.T) {
	reg := units.NewRegistry()

	result, err := Freight(reg, FreightInput{
		Mass:         2000,
		MassUnit:     "lb",
		Distance:     100,
		DistanceUnit: "km",
		EFPerTonneKm: 0.1,
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.907184, result.Details["mass_tonne"].(float64), 0.0001)
}

func TestBusinessTravelDistance(t *testing.T) {
	result, err := BusinessTravelDistance(TravelDistanceInput{
		Distance:     1000,
		DistanceUnit: "km",
		EFPerKm:      0.15,
		Passengers:   2,
	})
	require.NoError(t, err)

	assert.InDelta(t, 75.0, result.TotalCO2eKg, 0.001)
	assert.Equal(t, 2, result.Details["passengers"])
	assert.Equal(t, "Business travel - distance", result.Method)
}

func TestBusinessTravelDistanceDefaultsToOnePassenger(t *testing.T) {
	result, err := BusinessTravelDistance(TravelDistanceInput{
		Distance:     1000,
		DistanceUnit: "km",
		EFPerKm:      0.15,
	})
	require.NoError(t, err)

	assert.InDelta(t, 150.0, result.TotalCO2eKg, 0.001)
}

func TestBusinessTravelDistanceMiles(t *testing.T) {
	result, err := BusinessTravelDistance(TravelDistanceInput{
		Distance:     100,
		DistanceUnit: "miles",
		EFPerKm:      0.15,
	})
	require.NoError(t, err)

	assert.InDelta(t, 160.934*0.15, result.TotalCO2eKg, 0.01)
}

func TestEmployeeCommuting(t *testing.T) {
	result, err := EmployeeCommuting(CommutingInput{
		Employees:            100,
		AvgCommuteDistanceKm: 10,
		WorkingDays:          200,
		ModeSplit:            map[string]float64{"car": 0.7, "bus": 0.2, "rail": 0.1},
		ModeEF:               map[string]float64{"car": 0.17, "bus": 0.10},
	})
	require.NoError(t, err)

	// 100 employees x 10 km x 2 x 200 days.
	assert.InDelta(t, 400000.0, result.Details["total_distance_km"].(float64), 0.001)

	byMode := result.Details["emissions_by_mode"].(map[string]ModeEmission)
	assert.InDelta(t, 280000*0.17, byMode["car"].CO2eKg, 0.001)
	assert.InDelta(t, 80000*0.10, byMode["bus"].CO2eKg, 0.001)

	// Rail has no factor and contributes nothing.
	assert.Zero(t, byMode["rail"].CO2eKg)
	assert.InDelta(t, 40000.0, byMode["rail"].DistanceKm, 0.001)

	assert.InDelta(t, 47600+8000, result.TotalCO2eKg, 0.001)
	assert.Equal(t, "Employee commuting", result.Method)
}

func TestEmployeeCommutingRejectsNegatives(t *testing.T) {
	_, err := EmployeeCommuting(CommutingInput{Employees: -1})
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "employees", inputErr.Field)
}

func TestAirTravelDistanceBands(t *testing.T) {
	short, err := AirTravel(AirTravelInput{DistanceKm: 400})
	require.NoError(t, err)
	assert.InDelta(t, 400*0.25, short.Details["co2_only_kg"].(float64), 0.001)

	medium, err := AirTravel(AirTravelInput{DistanceKm: 1000})
	require.NoError(t, err)
	assert.InDelta(t, 1000*0.15, medium.Details["co2_only_kg"].(float64), 0.001)

	long, err := AirTravel(AirTravelInput{DistanceKm: 5000})
	require.NoError(t, err)
	assert.InDelta(t, 5000*0.12, long.Details["co2_only_kg"].(float64), 0.001)
}

func TestAirTravelRFI(t *testing.T) {
	result, err := AirTravel(AirTravelInput{DistanceKm: 1000})
	require.NoError(t, err)

	co2 := 1000 * 0.15
	assert.InDelta(t, co2, result.Emissions[GasCO2].MassKg, 0.001)
	assert.InDelta(t, co2*1.9, result.Emissions[GasCO2eRFI].MassKg, 0.001)
	assert.InDelta(t, co2*1.9, result.TotalCO2eKg, 0.001)
	assert.Equal(t, "Air travel with RFI", result.Method)
}

func TestAirTravelClassMultiplier(t *testing.T) {
	economy, err := AirTravel(AirTravelInput{DistanceKm: 2000})
	require.NoError(t, err)

	business, err := AirTravel(AirTravelInput{DistanceKm: 2000, FlightClass: "business"})
	require.NoError(t, err)

	assert.InDelta(t, economy.TotalCO2eKg*2, business.TotalCO2eKg, 0.001)
	assert.Equal(t, "business", business.Details["flight_class"])
}

func TestAirTravelExplicitFactorSkipsClassMultiplier(t *testing.T) {
	result, err := AirTravel(AirTravelInput{
		DistanceKm:  1000,
		FlightClass: "first",
		EFBase:      0.1,
	})
	require.NoError(t, err)

	// An explicit base factor is used as-is; the class multiplier only
	// scales the distance-banded defaults.
	assert.InDelta(t, 100.0, result.Details["co2_only_kg"].(float64), 0.001)
}

func TestAirTravelCustomRFI(t *testing.T) {
	result, err := AirTravel(AirTravelInput{DistanceKm: 1000, RadiativeForcing: 1.0})
	require.NoError(t, err)

	assert.InDelta(t, result.Emissions[GasCO2].MassKg, result.Emissions[GasCO2eRFI].MassKg, 0.001)
}

func TestAirTravelUnknownClassFallsBackToEconomy(t *testing.T) {
	unknown, err := AirTravel(AirTravelInput{DistanceKm: 1000, FlightClass: "coach"})
	require.NoError(t, err)

	economy, err := AirTravel(AirTravelInput{DistanceKm: 1000})
	require.NoError(t, err)

	assert.InDelta(t, economy.TotalCO2eKg, unknown.TotalCO2eKg, 0.001)
}
