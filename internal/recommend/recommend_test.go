package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghg-ledger/inventory-engine/internal/aggregation"
)

func categories(recs []Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Category
	}
	return out
}

func findCategory(t *testing.T, recs []Recommendation, category string) Recommendation {
	t.Helper()
	for _, r := range recs {
		if r.Category == category {
			return r
		}
	}
	t.Fatalf("no recommendation with category %q in %v", category, categories(recs))
	return Recommendation{}
}

func TestGenerateStandingRecommendations(t *testing.T) {
	recs := Generate(aggregation.Summary{})

	require.Len(t, recs, 2)
	assert.Equal(t, "Energy Efficiency", recs[0].Category)
	assert.Equal(t, PriorityMedium, recs[0].Priority)
	assert.Equal(t, "Data Quality & Monitoring", recs[1].Category)
	assert.Equal(t, PriorityLow, recs[1].Priority)
}

func TestGenerateScope1Dominated(t *testing.T) {
	summary := aggregation.Summary{
		TotalCO2eKg:     1_000_000,
		TotalCO2eTonnes: 1000,
		ByScope: map[int]aggregation.GroupTotals{
			1: {TotalCO2eKg: 700_000},
			2: {TotalCO2eKg: 200_000},
			3: {TotalCO2eKg: 100_000},
		},
		ScopePercentages: map[int]float64{1: 70, 2: 20, 3: 10},
	}

	recs := Generate(summary)

	rec := findCategory(t, recs, "Scope 1 Direct Emissions")
	assert.Equal(t, PriorityHigh, rec.Priority)
	assert.Contains(t, rec.Recommendation, "70.0%")
	assert.Contains(t, rec.Recommendation, "700 tCO2e")
	assert.Contains(t, rec.PotentialImpact, "105 - 175 tCO2e")
}

func TestGenerateScope2Threshold(t *testing.T) {
	summary := aggregation.Summary{
		TotalCO2eTonnes: 100,
		ByScope: map[int]aggregation.GroupTotals{
			2: {TotalCO2eKg: 35_000},
		},
		ScopePercentages: map[int]float64{1: 65, 2: 35, 3: 0},
	}

	recs := Generate(summary)

	rec := findCategory(t, recs, "Renewable Energy Transition")
	assert.Equal(t, PriorityHigh, rec.Priority)
	assert.Contains(t, rec.Recommendation, "35.0%")
}

func TestGenerateFlaringAndFugitives(t *testing.T) {
	summary := aggregation.Summary{
		TotalCO2eTonnes: 500,
		BySubcategory: map[string]aggregation.GroupTotals{
			"Flaring":            {TotalCO2eKg: 120_000},
			"Fugitive Emissions": {TotalCO2eKg: 30_000},
			"Stationary Combustion": {
				TotalCO2eKg: 350_000,
			},
		},
	}

	recs := Generate(summary)

	flare := findCategory(t, recs, "Flare Gas Recovery")
	assert.Equal(t, PriorityHigh, flare.Priority)
	assert.Contains(t, flare.Recommendation, "120 tCO2e")
	assert.Contains(t, flare.PotentialImpact, "48 - 84 tCO2e")

	fugitive := findCategory(t, recs, "Fugitive Emission Control")
	assert.Equal(t, PriorityMedium, fugitive.Priority)
	assert.Contains(t, fugitive.Recommendation, "30 tCO2e")
}

func TestGenerateTransportBelowTenPercentSkipped(t *testing.T) {
	summary := aggregation.Summary{
		TotalCO2eTonnes: 1000,
		BySubcategory: map[string]aggregation.GroupTotals{
			"Business Travel": {TotalCO2eKg: 50_000},
		},
	}

	recs := Generate(summary)

	assert.NotContains(t, categories(recs), "Transportation Optimization")
}

func TestGenerateTransportAboveTenPercent(t *testing.T) {
	summary := aggregation.Summary{
		TotalCO2eTonnes: 1000,
		BySubcategory: map[string]aggregation.GroupTotals{
			"Business Travel":    {TotalCO2eKg: 90_000},
			"Employee Commuting": {TotalCO2eKg: 60_000},
		},
	}

	recs := Generate(summary)

	rec := findCategory(t, recs, "Transportation Optimization")
	assert.Contains(t, rec.Recommendation, "150 tCO2e")
	assert.Contains(t, rec.Recommendation, "15.0% of total")
}

func TestGenerateDominantFacility(t *testing.T) {
	summary := aggregation.Summary{
		TotalCO2eTonnes: 100,
		ByFacility: map[string]aggregation.GroupTotals{
			"Refinery Alpha": {TotalCO2eKg: 55_000},
			"Terminal Beta":  {TotalCO2eKg: 45_000},
		},
	}

	recs := Generate(summary)

	rec := findCategory(t, recs, "Facility-Specific Action")
	assert.Equal(t, PriorityHigh, rec.Priority)
	assert.Contains(t, rec.Recommendation, `"Refinery Alpha"`)
	assert.Contains(t, rec.Recommendation, "55.0% of total")
}

func TestGenerateSingleFacilityNeverDominates(t *testing.T) {
	summary := aggregation.Summary{
		TotalCO2eTonnes: 100,
		ByFacility: map[string]aggregation.GroupTotals{
			"Refinery Alpha": {TotalCO2eKg: 100_000},
		},
	}

	recs := Generate(summary)

	assert.NotContains(t, categories(recs), "Facility-Specific Action")
}

func TestGenerateCapsAtSix(t *testing.T) {
	// Every rule fires: the cap drops the last two, data quality and the
	// facility rule.
	summary := aggregation.Summary{
		TotalCO2eKg:     1_000_000,
		TotalCO2eTonnes: 1000,
		ByScope: map[int]aggregation.GroupTotals{
			1: {TotalCO2eKg: 610_000},
			2: {TotalCO2eKg: 310_000},
			3: {TotalCO2eKg: 80_000},
		},
		ScopePercentages: map[int]float64{1: 61, 2: 31, 3: 8},
		BySubcategory: map[string]aggregation.GroupTotals{
			"Flaring":            {TotalCO2eKg: 100_000},
			"Fugitive Emissions": {TotalCO2eKg: 50_000},
			"Business Travel":    {TotalCO2eKg: 150_000},
		},
		ByFacility: map[string]aggregation.GroupTotals{
			"Refinery Alpha": {TotalCO2eKg: 600_000},
			"Terminal Beta":  {TotalCO2eKg: 400_000},
		},
	}

	recs := Generate(summary)

	require.Len(t, recs, 6)
	assert.NotContains(t, categories(recs), "Data Quality & Monitoring")
	assert.NotContains(t, categories(recs), "Facility-Specific Action")
}
