package methods

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghg-ledger/inventory-engine/internal/units"
)

func TestComponentLeaks(t *testing.T) {
	result, err := ComponentLeaks([]Component{
		{Count: 100, Gas: GasCH4, EFKgPerYear: 0.2},
		{Count: 10, Gas: GasVOC, EFKgPerYear: 5, OperatingHours: 4380},
	}, GWPSet{})
	require.NoError(t, err)

	// Full-year valves: 100 x 0.2. Half-year pumps: 10 x 5 x 0.5.
	assert.InDelta(t, 20.0, result.Emissions[GasCH4].MassKg, 0.001)
	assert.InDelta(t, 25.0, result.Emissions[GasVOC].MassKg, 0.001)

	// VOC carries no CO2e.
	assert.Zero(t, result.Emissions[GasVOC].CO2eKg)
	assert.InDelta(t, 20.0*28, result.TotalCO2eKg, 0.001)
	assert.Equal(t, 2, result.Details["component_count"])
	assert.Equal(t, "Component-factor", result.Method)
}

func TestComponentLeaksGasDefaultsToCH4(t *testing.T) {
	result, err := ComponentLeaks([]Component{
		{Count: 50, EFKgPerYear: 0.1},
	}, GWPSet{})
	require.NoError(t, err)

	assert.InDelta(t, 5.0, result.Emissions[GasCH4].MassKg, 0.001)
}

func TestComponentLeaksRejectsNegativeCount(t *testing.T) {
	_, err := ComponentLeaks([]Component{{Count: -1, EFKgPerYear: 0.1}}, GWPSet{})
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "components", inputErr.Field)
}

func TestTankLosses(t *testing.T) {
	reg := units.NewRegistry()

	result, err := TankLosses(reg, TankLossesInput{
		Throughput:     1000,
		ThroughputUnit: "m3",
		LossFactor:     0.1,
	})
	require.NoError(t, err)

	throughputBBL := 1000 / 0.158987
	vocKg := throughputBBL * 0.1
	ch4Kg := vocKg * 0.6

	assert.InDelta(t, throughputBBL, result.Details["throughput_bbl"].(float64), 0.01)
	assert.InDelta(t, vocKg, result.Emissions[GasVOC].MassKg, 0.01)
	assert.InDelta(t, ch4Kg, result.Emissions[GasCH4].MassKg, 0.01)
	assert.InDelta(t, ch4Kg*28, result.TotalCO2eKg, 0.5)
	assert.Equal(t, "Tank losses", result.Method)
}

func TestTankLossesCustomRatio(t *testing.T) {
	reg := units.NewRegistry()

	result, err := TankLosses(reg, TankLossesInput{
		Throughput:     100,
		ThroughputUnit: "m3",
		LossFactor:     0.2,
		VOCToCH4Ratio:  0.4,
	})
	require.NoError(t, err)

	vocKg := (100 / 0.158987) * 0.2
	assert.InDelta(t, vocKg*0.4, result.Emissions[GasCH4].MassKg, 0.01)
}

func TestPipelineBlowdown(t *testing.T) {
	reg := units.NewRegistry()

	result, err := PipelineBlowdown(reg, BlowdownInput{
		PipelineVolume:     100,
		PipelineVolumeUnit: "m3",
		GasPressure:        50,
		GasPressureUnit:    "bar",
		TemperatureC:       15,
	})
	require.NoError(t, err)

	// n = PV/RT = 50*100 / (0.08314 * 288.15) kmol; CH4 = n * 0.95 * 16 / 1000.
	assert.InDelta(t, 3.1724, result.Emissions[GasCH4].MassKg, 0.001)
	assert.InDelta(t, 3.1724*28, result.TotalCO2eKg, 0.1)
	assert.Equal(t, "Pipeline blowdown", result.Method)
	assert.InDelta(t, 50.0, result.Details["pressure_bar"].(float64), 0.001)
}

func TestPipelineBlowdownPSI(t *testing.T) {
	reg := units.NewRegistry()

	barResult, err := PipelineBlowdown(reg, BlowdownInput{
		PipelineVolume:     100,
		PipelineVolumeUnit: "m3",
		GasPressure:        50,
		GasPressureUnit:    "bar",
		TemperatureC:       15,
	})
	require.NoError(t, err)

	psiResult, err := PipelineBlowdown(reg, BlowdownInput{
		PipelineVolume:     100,
		PipelineVolumeUnit: "m3",
		GasPressure:        725.189,
		GasPressureUnit:    "psi",
		TemperatureC:       15,
	})
	require.NoError(t, err)

	assert.InDelta(t, barResult.Emissions[GasCH4].MassKg, psiResult.Emissions[GasCH4].MassKg, 0.001)
}

func TestPipelineBlowdownMoleFraction(t *testing.T) {
	reg := units.NewRegistry()

	pure, err := PipelineBlowdown(reg, BlowdownInput{
		PipelineVolume:     100,
		PipelineVolumeUnit: "m3",
		GasPressure:        50,
		TemperatureC:       15,
		CH4MoleFraction:    1.0,
	})
	require.NoError(t, err)

	lean, err := PipelineBlowdown(reg, BlowdownInput{
		PipelineVolume:     100,
		PipelineVolumeUnit: "m3",
		GasPressure:        50,
		TemperatureC:       15,
		CH4MoleFraction:    0.5,
	})
	require.NoError(t, err)

	assert.InDelta(t, pure.Emissions[GasCH4].MassKg/2, lean.Emissions[GasCH4].MassKg, 0.001)
}

func TestLoadingLosses(t *testing.T) {
	reg := units.NewRegistry()

	result, err := LoadingLosses(reg, LoadingInput{
		ProductLoaded:           1000,
		ProductUnit:             "m3",
		LossFactor:              0.5,
		VaporRecoveryEfficiency: 0.95,
	})
	require.NoError(t, err)

	// Gross 500 kg VOC, 95% recovered, net 25 kg, 30% methane share.
	assert.InDelta(t, 25.0, result.Emissions[GasVOC].MassKg, 0.001)
	assert.InDelta(t, 7.5, result.Emissions[GasCH4].MassKg, 0.001)
	assert.InDelta(t, 7.5*28, result.TotalCO2eKg, 0.001)
	assert.Equal(t, "Loading operations", result.Method)
}

func TestLoadingLossesNoRecovery(t *testing.T) {
	reg := units.NewRegistry()

	result, err := LoadingLosses(reg, LoadingInput{
		ProductLoaded: 1000,
		ProductUnit:   "m3",
		LossFactor:    0.5,
	})
	require.NoError(t, err)

	assert.InDelta(t, 500.0, result.Emissions[GasVOC].MassKg, 0.001)
}

func TestLoadingLossesRejectsBadRecovery(t *testing.T) {
	reg := units.NewRegistry()

	_, err := LoadingLosses(reg, LoadingInput{
		ProductLoaded:           100,
		ProductUnit:             "m3",
		LossFactor:              0.5,
		VaporRecoveryEfficiency: 1.5,
	})
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "vapor_recovery_efficiency", inputErr.Field)
}
