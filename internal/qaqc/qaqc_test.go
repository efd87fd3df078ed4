package qaqc

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"ghg-ledger/inventory-engine/internal/inventory"
	"ghg-ledger/inventory-engine/internal/methods"
	"ghg-ledger/inventory-engine/internal/store"
)

func line(subcategory string, total float64) Line {
	return Line{
		CalculationID: uuid.New(),
		ActivityID:    uuid.New(),
		Subcategory:   subcategory,
		TotalCO2eKg:   total,
	}
}

func TestMissingData(t *testing.T) {
	complete := inventory.Activity{ID: uuid.New(), Quantity: 100, Unit: "GJ"}
	incomplete := inventory.Activity{ID: uuid.New()}

	issues := MissingData(
		[]inventory.Activity{complete, incomplete},
		[]Line{{ActivityID: complete.ID}},
	)

	require.Len(t, issues, 3)
	for _, issue := range issues {
		assert.Equal(t, "Missing Data", issue.Check)
		assert.Equal(t, SeverityError, issue.Severity)
		assert.Equal(t, incomplete.ID.String(), issue.EntityID)
	}
	assert.Contains(t, issues[0].Message, "has no calculations")
	assert.Contains(t, issues[1].Message, "missing quantity")
	assert.Contains(t, issues[2].Message, "missing unit")
}

func TestNegativeValues(t *testing.T) {
	bad := line("stationary_combustion", -5)
	bad.Emissions = map[string]methods.GasEmission{
		"CO2": {MassKg: -3},
		"CH4": {MassKg: 0.1},
	}
	clean := line("stationary_combustion", 100)

	issues := NegativeValues([]Line{bad, clean})

	require.Len(t, issues, 2)
	assert.Contains(t, issues[0].Message, "negative CO2e")
	assert.Contains(t, issues[1].Message, "negative CO2")
	assert.Equal(t, bad.CalculationID.String(), issues[0].EntityID)
}

func TestOutliersFlagsExtremeValue(t *testing.T) {
	lines := []Line{
		line("stationary_combustion", 10),
		line("stationary_combustion", 12),
		line("stationary_combustion", 11),
		line("stationary_combustion", 13),
		line("stationary_combustion", 1000),
	}

	issues := Outliers(lines)

	require.Len(t, issues, 1)
	assert.Equal(t, "Outliers", issues[0].Check)
	assert.Equal(t, SeverityWarning, issues[0].Severity)
	assert.Equal(t, lines[4].CalculationID.String(), issues[0].EntityID)
	assert.Contains(t, issues[0].Message, "1000.00 kg CO2e")
}

func TestOutliersSkipsSmallGroups(t *testing.T) {
	lines := []Line{
		line("mobile_combustion", 10),
		line("mobile_combustion", 12),
		line("mobile_combustion", 1000),
	}

	assert.Empty(t, Outliers(lines))
}

func TestBasisConsistency(t *testing.T) {
	hhv := line("stationary_combustion", 100)
	hhv.ActivityType = "natural_gas"
	hhv.Factors = []FactorUse{{Gas: "CO2", Basis: "HHV"}}
	lhv := line("stationary_combustion", 90)
	lhv.ActivityType = "natural_gas"
	lhv.Factors = []FactorUse{{Gas: "CO2", Basis: "LHV"}}
	diesel := line("mobile_combustion", 50)
	diesel.ActivityType = "diesel"
	diesel.Factors = []FactorUse{{Gas: "CO2", Basis: "LHV"}}

	issues := BasisConsistency([]Line{hhv, lhv, diesel})

	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "natural_gas")
	assert.Contains(t, issues[0].Message, "HHV")
	assert.Contains(t, issues[0].Message, "LHV")
}

func TestFactorCurrency(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	expiry := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	expired := line("stationary_combustion", 100)
	expired.Factors = []FactorUse{{Gas: "CO2", SourceYear: 2024, ValidTo: &expiry}}
	stale := line("stationary_combustion", 100)
	stale.Factors = []FactorUse{{Gas: "CO2", SourceYear: 2018}}
	current := line("stationary_combustion", 100)
	current.Factors = []FactorUse{{Gas: "CO2", SourceYear: 2023}}

	issues := FactorCurrency([]Line{expired, stale, current}, now)

	require.Len(t, issues, 2)
	assert.Contains(t, issues[0].Message, "expired: 2025-12-31")
	assert.Contains(t, issues[1].Message, "from 2018 (>5 years old)")
}

func TestStaleFactor(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	expiry := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	reason, stale := StaleFactor(inventory.EmissionFactor{SourceYear: 2024, ValidTo: &expiry}, now)
	assert.True(t, stale)
	assert.Contains(t, reason, "expired 2025-12-31")

	reason, stale = StaleFactor(inventory.EmissionFactor{SourceYear: 2018}, now)
	assert.True(t, stale)
	assert.Contains(t, reason, "source year 2018")

	_, stale = StaleFactor(inventory.EmissionFactor{SourceYear: 2023}, now)
	assert.False(t, stale)
}

func TestCompletenessReport(t *testing.T) {
	sources := []inventory.Source{
		{ID: uuid.New(), Scope: 1, Subcategory: "stationary_combustion"},
		{ID: uuid.New(), Scope: 1, Subcategory: "mobile_combustion"},
		{ID: uuid.New(), Scope: 2, Subcategory: "purchased_electricity"},
		{ID: uuid.New(), Scope: 3, Subcategory: "business_travel"},
		{ID: uuid.New(), Scope: 3, Subcategory: "waste"},
	}
	activities := []inventory.Activity{
		{SourceID: sources[0].ID},
		{SourceID: sources[0].ID},
		{SourceID: sources[2].ID},
	}

	report := CompletenessReport(sources, activities)

	assert.Equal(t, 5, report.TotalSources)
	assert.Equal(t, 2, report.SourcesWithData)
	assert.InDelta(t, 40.0, report.OverallPct, 1e-9)
	assert.Equal(t, ScopeCompleteness{TotalCategories: 2, CategoriesWithData: 1, CompletenessPct: 50}, report.ByScope[1])
	assert.Equal(t, ScopeCompleteness{TotalCategories: 1, CategoriesWithData: 1, CompletenessPct: 100}, report.ByScope[2])
	assert.Equal(t, ScopeCompleteness{TotalCategories: 2, CategoriesWithData: 0, CompletenessPct: 0}, report.ByScope[3])
}

func TestBuildReportWarningsStillPass(t *testing.T) {
	report := BuildReport([]Issue{
		{Check: "Outliers", Severity: SeverityWarning},
		{Check: "Factor Currency", Severity: SeverityWarning},
	}, Completeness{})

	assert.True(t, report.Passed)
	assert.Equal(t, Summary{TotalIssues: 2, Warnings: 2}, report.Summary)
}

func TestBuildReportErrorsFail(t *testing.T) {
	report := BuildReport([]Issue{
		{Check: "Missing Data", Severity: SeverityError},
		{Check: "Outliers", Severity: SeverityWarning},
	}, Completeness{})

	assert.False(t, report.Passed)
	assert.Equal(t, 1, report.Summary.Errors)
	assert.Equal(t, 1, report.Summary.Warnings)
}

func TestRunnerEndToEnd(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	require.NoError(t, repo.SeedReferenceData(ctx))

	org := inventory.Organization{Name: "Acme"}
	require.NoError(t, repo.CreateOrganization(ctx, &org))
	facility := inventory.Facility{OrganizationID: org.ID, Name: "Plant"}
	require.NoError(t, repo.CreateFacility(ctx, &facility))
	source, err := repo.FindSource(ctx, 1, "stationary_combustion")
	require.NoError(t, err)

	calculated := inventory.Activity{
		FacilityID:   facility.ID,
		SourceID:     source.ID,
		ActivityType: "natural_gas",
		ActivityDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		MethodKey:    "tier1",
		Quantity:     100,
		Unit:         "GJ",
	}
	require.NoError(t, repo.CreateActivity(ctx, &calculated))
	calc := inventory.Calculation{
		ActivityID:     calculated.ID,
		MethodKey:      "tier1",
		EngineVersion:  "1.0.0",
		InputSnapshot:  datatypes.JSON(`{}`),
		FactorSnapshot: datatypes.JSON(`[{"gas":"CO2","basis":"HHV","source_year":2024}]`),
		Results:        datatypes.JSON(`{"total_co2e_kg":5610,"emissions":{"CO2":{"mass_kg":5610,"co2e_kg":5610,"gwp":1}}}`),
	}
	require.NoError(t, repo.CreateCalculation(ctx, &calc, nil))

	pending := inventory.Activity{
		FacilityID:   facility.ID,
		SourceID:     source.ID,
		ActivityType: "natural_gas",
		ActivityDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		MethodKey:    "tier1",
		Quantity:     50,
		Unit:         "GJ",
	}
	require.NoError(t, repo.CreateActivity(ctx, &pending))

	report, err := NewRunner(repo, nil).Run(ctx, org.ID)
	require.NoError(t, err)

	// The uncalculated activity fails the run.
	assert.False(t, report.Passed)
	assert.Equal(t, 1, report.Summary.Errors)
	assert.Contains(t, report.Issues[0].Message, "has no calculations")

	assert.Equal(t, 15, report.Completeness.TotalSources)
	assert.Equal(t, 1, report.Completeness.SourcesWithData)
	assert.Equal(t, 1, report.Completeness.ByScope[1].CategoriesWithData)
}
