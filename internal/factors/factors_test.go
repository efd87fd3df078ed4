package factors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghg-ledger/inventory-engine/internal/inventory"
)

func TestNormalizeAppliesDefaults(t *testing.T) {
	records := []Record{{
		"activity_code": "S1_SC_NG",
		"gas":           " co₂ ",
		"factor_value":  "56.1",
		"factor_unit":   "kg CO2/GJ",
	}}

	factors := Normalize(records, nil, "EPA")

	require.Len(t, factors, 1)
	f := factors[0]
	assert.Equal(t, "CO2", f.Gas)
	assert.Equal(t, 1, f.Scope)
	assert.Equal(t, inventory.BasisNA, f.Basis)
	assert.Equal(t, 1.0, f.OxidationFrac)
	assert.Equal(t, "NA", f.FuelState)
	assert.Equal(t, "Global", f.Geography)
	assert.Equal(t, "NA", f.MarketOrLocation)
	assert.Equal(t, "EPA", f.SourceAuthority)
	assert.Equal(t, time.Now().Year(), f.SourceYear)
	assert.False(t, f.ValidFrom.IsZero())
	assert.Nil(t, f.ValidTo)
	assert.Nil(t, f.UncertaintyPct)
}

func TestNormalizeMapsColumns(t *testing.T) {
	mapping := map[string]string{
		"Fuel Code":       "activity_code",
		"Fuel Type":       "activity_name",
		"Gas":             "gas",
		"Emission Factor": "factor_value",
		"Default Unit":    "factor_unit",
	}
	records := []Record{{
		"Fuel Code":       "S1_SC_DIESEL",
		"Fuel Type":       "Diesel oil",
		"Gas":             "CO2",
		"Emission Factor": "74.1",
		"Default Unit":    "kg CO2/GJ",
		"scope":           "1",
	}}

	factors := Normalize(records, mapping, "IPCC")

	require.Len(t, factors, 1)
	assert.Equal(t, "S1_SC_DIESEL", factors[0].ActivityCode)
	assert.Equal(t, "Diesel oil", factors[0].ActivityName)
	assert.Equal(t, 74.1, factors[0].FactorValue)
}

func TestNormalizeCanonicalKeysWin(t *testing.T) {
	// A loader that pre-filled factor_value beats the mapped source column.
	mapping := map[string]string{"Emission Factor": "factor_value"}
	records := []Record{{
		"activity_code":   "S2_ELECTRICITY_EG",
		"gas":             "CO2",
		"factor_value":    "0.45",
		"factor_unit":     "kg CO2/kWh",
		"Emission Factor": "450",
	}}

	factors := Normalize(records, mapping, "IEA")

	require.Len(t, factors, 1)
	assert.Equal(t, 0.45, factors[0].FactorValue)
}

func TestNormalizeDropsIncompleteRows(t *testing.T) {
	complete := Record{"activity_code": "A", "gas": "CO2", "factor_value": "1.5", "factor_unit": "kg/GJ"}
	records := []Record{
		complete,
		{"gas": "CO2", "factor_value": "1.5", "factor_unit": "kg/GJ"},
		{"activity_code": "A", "factor_value": "1.5", "factor_unit": "kg/GJ"},
		{"activity_code": "A", "gas": "CO2", "factor_unit": "kg/GJ"},
		{"activity_code": "A", "gas": "CO2", "factor_value": "not a number", "factor_unit": "kg/GJ"},
		{"activity_code": "A", "gas": "CO2", "factor_value": "1.5"},
	}

	factors := Normalize(records, nil, "EPA")

	require.Len(t, factors, 1)
	assert.Equal(t, 1.5, factors[0].FactorValue)
}

func TestNormalizeCoercions(t *testing.T) {
	records := []Record{{
		"activity_code":   "A",
		"gas":             "CO2",
		"factor_value":    "1,234.5",
		"factor_unit":     "kg/GJ",
		"scope":           "2.0",
		"source_year":     "not a year",
		"oxidation_frac":  "0.98",
		"uncertainty_pct": "5",
		"valid_from":      "2024-01-01",
		"valid_to":        "2025-01-01",
	}}

	factors := Normalize(records, nil, "EPA")

	require.Len(t, factors, 1)
	f := factors[0]
	assert.Equal(t, 1234.5, f.FactorValue)
	assert.Equal(t, 2, f.Scope)
	assert.Equal(t, time.Now().Year(), f.SourceYear)
	assert.Equal(t, 0.98, f.OxidationFrac)
	require.NotNil(t, f.UncertaintyPct)
	assert.Equal(t, 5.0, *f.UncertaintyPct)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), f.ValidFrom)
	require.NotNil(t, f.ValidTo)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *f.ValidTo)
}

func TestCleanGas(t *testing.T) {
	assert.Equal(t, "CO2", CleanGas(" co₂ "))
	assert.Equal(t, "CH4", CleanGas("CH₄"))
	assert.Equal(t, "N2O", CleanGas("n₂o"))
	assert.Equal(t, "SF6", CleanGas("SF₆"))
	assert.Equal(t, "HFC-134A", CleanGas("HFC-134a"))
}

func TestStandardizeUnit(t *testing.T) {
	assert.Equal(t, "kg CO2e/kWh", StandardizeUnit("kgCO2e per kWh"))
	assert.Equal(t, "kg CO2/GJ", StandardizeUnit("kg CO2/GJ"))
	assert.Equal(t, "kg CH4/tonne", StandardizeUnit(" kgCH4 per tonne "))
}

func TestValidateCleanBatch(t *testing.T) {
	result := Validate([]inventory.EmissionFactor{{
		Scope:           1,
		Subcategory:     "stationary_combustion",
		ActivityCode:    "S1_SC_NG",
		ActivityName:    "Natural gas",
		Gas:             "CO2",
		FactorValue:     56.1,
		FactorUnit:      "kg CO2/GJ",
		SourceAuthority: "EPA",
		SourceYear:      2025,
		ValidFrom:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}})

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidateHardErrors(t *testing.T) {
	result := Validate([]inventory.EmissionFactor{{
		Scope:           4,
		ActivityCode:    "A",
		ActivityName:    "A",
		Gas:             "CO2",
		FactorValue:     -1,
		FactorUnit:      "kg/GJ",
		SourceAuthority: "EPA",
		SourceYear:      2025,
		ValidFrom:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}})

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "subcategory")
	assert.Contains(t, result.Errors[1], "invalid scope values found: [4]")
	assert.Contains(t, result.Errors[2], "non-positive factor_value found in 1 rows")
}

func TestValidateGasWarningIsSoft(t *testing.T) {
	result := Validate([]inventory.EmissionFactor{{
		Scope:           1,
		Subcategory:     "fugitives",
		ActivityCode:    "S1_FUG_VALVE",
		ActivityName:    "Valve leaks",
		Gas:             "VOC",
		FactorValue:     0.0045,
		FactorUnit:      "kg/hr/component",
		SourceAuthority: "API",
		SourceYear:      2021,
		ValidFrom:       time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
	}})

	assert.True(t, result.Valid)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "VOC")
	assert.Contains(t, result.Warnings[0], "check manually")
}

func TestValidateHFCCaseInsensitive(t *testing.T) {
	// The normalizer uppercases gas names; the whitelist match must not
	// flag HFC-134A as unknown.
	result := Validate([]inventory.EmissionFactor{{
		Scope:           1,
		Subcategory:     "fugitives",
		ActivityCode:    "S1_REFRIG",
		ActivityName:    "Refrigerant leakage",
		Gas:             "HFC-134A",
		FactorValue:     1,
		FactorUnit:      "kg/kg",
		SourceAuthority: "DEFRA",
		SourceYear:      2024,
		ValidFrom:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}})

	assert.True(t, result.Valid)
	assert.Empty(t, result.Warnings)
}
