package units

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertEnergy(t *testing.T) {
	r := NewRegistry()

	got, err := r.ConvertEnergy(1000, "MJ", "GJ")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-9)

	got, err = r.ConvertEnergy(1, "kWh", "GJ")
	require.NoError(t, err)
	assert.InDelta(t, 0.0036, got, 1e-9)

	got, err = r.ConvertEnergy(1, "MWh", "GJ")
	require.NoError(t, err)
	assert.InDelta(t, 3.6, got, 1e-9)

	got, err = r.ConvertEnergy(1, "MMBtu", "GJ")
	require.NoError(t, err)
	assert.InDelta(t, 1.05506, got, 1e-9)

	got, err = r.ConvertEnergy(1, "toe", "GJ")
	require.NoError(t, err)
	assert.InDelta(t, 41.868, got, 1e-9)
}

func TestConvertMass(t *testing.T) {
	r := NewRegistry()

	got, err := r.ConvertMass(1, "tonne", "kg")
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, got, 1e-9)

	got, err = r.ConvertMass(1, "lb", "kg")
	require.NoError(t, err)
	assert.InDelta(t, 0.453592, got, 1e-9)

	got, err = r.ConvertMass(500, "kg", "t")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-9)
}

func TestConvertVolume(t *testing.T) {
	r := NewRegistry()

	got, err := r.ConvertVolume(1, "bbl", "m3")
	require.NoError(t, err)
	assert.InDelta(t, 0.1589873, got, 1e-9)

	got, err = r.ConvertVolume(1, "scf", "m3")
	require.NoError(t, err)
	assert.InDelta(t, 0.0283168, got, 1e-9)

	got, err = r.ConvertVolume(1000, "L", "m3")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-9)

	got, err = r.ConvertVolume(1, "gal", "L")
	require.NoError(t, err)
	assert.InDelta(t, 3.78541, got, 1e-9)
}

func TestConvertRoundTrip(t *testing.T) {
	r := NewRegistry()

	dims := map[Dimension][]string{
		Energy: {"J", "kJ", "MJ", "GJ", "kWh", "MWh", "MMBtu", "therm", "toe"},
		Mass:   {"g", "kg", "tonne", "lb", "short_ton", "long_ton"},
		Volume: {"L", "m3", "bbl", "gal", "ft3", "scf", "Nm3"},
	}

	for dim, names := range dims {
		for _, from := range names {
			for _, to := range names {
				fwd, err := r.Convert(123.456, from, to)
				require.NoError(t, err, "%s %s -> %s", dim, from, to)
				back, err := r.Convert(fwd, to, from)
				require.NoError(t, err)
				assert.InDelta(t, 123.456, back, 1e-6, "%s -> %s -> %s", from, to, from)
			}
		}
	}
}

func TestConvertCrossDimension(t *testing.T) {
	r := NewRegistry()

	_, err := r.Convert(1, "kg", "GJ")
	require.Error(t, err)
	var ue *UnitError
	assert.True(t, errors.As(err, &ue))
}

func TestConvertUnknownUnit(t *testing.T) {
	r := NewRegistry()

	_, err := r.ConvertEnergy(1, "furlong", "GJ")
	require.Error(t, err)
	var ue *UnitError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "furlong", ue.Unit)
}

func TestRegisterCustomUnit(t *testing.T) {
	r := NewRegistry()
	r.Register(Energy, "PJ", 1e6)

	got, err := r.ConvertEnergy(2, "PJ", "GJ")
	require.NoError(t, err)
	assert.InDelta(t, 2e6, got, 1e-3)
}

func TestVolumeToEnergyDefaults(t *testing.T) {
	r := NewRegistry()

	// 1000 L diesel at 38.6 MJ/L.
	got, err := r.VolumeToEnergy(1000, "L", "diesel", nil)
	require.NoError(t, err)
	assert.InDelta(t, 38.6, got, 1e-9)

	// 10 bbl crude at 6.119 GJ/bbl.
	got, err = r.VolumeToEnergy(10, "bbl", "crude_oil", nil)
	require.NoError(t, err)
	assert.InDelta(t, 61.19, got, 1e-9)

	// 1000 Nm3 natural gas at 38.3 MJ/Nm3.
	got, err = r.VolumeToEnergy(1000, "Nm3", "natural_gas", nil)
	require.NoError(t, err)
	assert.InDelta(t, 38.3, got, 1e-9)
}

func TestVolumeToEnergyOverride(t *testing.T) {
	r := NewRegistry()

	got, err := r.VolumeToEnergy(100, "L", "biodiesel", &EnergyContent{Value: 33.0, Unit: "MJ/L"})
	require.NoError(t, err)
	assert.InDelta(t, 3.3, got, 1e-9)
}

func TestVolumeToEnergyMissingContent(t *testing.T) {
	r := NewRegistry()

	_, err := r.VolumeToEnergy(100, "L", "mystery_fuel", nil)
	require.Error(t, err)
	var me *MissingEnergyContentError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "mystery_fuel", me.FuelType)
}

func TestVolumeToEnergyDimensionMismatch(t *testing.T) {
	r := NewRegistry()

	// fuel_oil content is per kg; a volume quantity cannot use it directly.
	_, err := r.VolumeToEnergy(100, "L", "fuel_oil", nil)
	assert.Error(t, err)
}

func TestMassToEnergy(t *testing.T) {
	r := NewRegistry()

	// 2 t fuel oil at 40.4 MJ/kg.
	got, err := r.MassToEnergy(2, "tonne", "fuel_oil", nil)
	require.NoError(t, err)
	assert.InDelta(t, 80.8, got, 1e-9)

	// 500 kg coal at 25.8 MJ/kg.
	got, err = r.MassToEnergy(500, "kg", "coal", nil)
	require.NoError(t, err)
	assert.InDelta(t, 12.9, got, 1e-9)
}

func TestHeatingValueBasis(t *testing.T) {
	r := NewRegistry()

	assert.InDelta(t, 90.0, r.HHVToLHV(100, "natural_gas"), 1e-9)
	assert.InDelta(t, 95.0, r.HHVToLHV(100, "diesel"), 1e-9)
	assert.InDelta(t, 95.0, r.HHVToLHV(100, "unknown_fuel"), 1e-9)

	// Round trip.
	lhv := r.HHVToLHV(250, "lpg")
	assert.InDelta(t, 250.0, r.LHVToHHV(lhv, "lpg"), 1e-9)
}

func TestParseFactorUnit(t *testing.T) {
	cases := []struct {
		in   string
		num  string
		den  string
	}{
		{"kg CO2/GJ", "kg", "GJ"},
		{"kg CH4/kWh", "kg", "kWh"},
		{"g N2O/km", "g", "km"},
		{"t CO2e/MWh", "t", "MWh"},
		{"kg/t", "kg", "t"},
		{"kg CO2 / GJ", "kg", "GJ"},
	}
	for _, c := range cases {
		num, den, err := ParseFactorUnit(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.num, num, c.in)
		assert.Equal(t, c.den, den, c.in)
	}
}

func TestParseFactorUnitRejectsSimpleUnit(t *testing.T) {
	_, _, err := ParseFactorUnit("kg")
	assert.Error(t, err)
}

func TestDefaultRegistryShared(t *testing.T) {
	got, err := Default().ConvertEnergy(1, "GJ", "MJ")
	require.NoError(t, err)
	assert.False(t, math.IsNaN(got))
	assert.InDelta(t, 1000.0, got, 1e-9)
}
