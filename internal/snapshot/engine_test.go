package snapshot

import (
	"context"
	"encoding/json"
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

type fixture struct {
	repo     *store.MemoryRepository
	org      inventory.Organization
	facility inventory.Facility
	factor   inventory.EmissionFactor
	activity inventory.Activity
}

// newFixture seeds one organization with a facility, a natural gas CO2
// factor of 56.1 kg/GJ and a 100 GJ stationary combustion activity with
// oxidation 0.995.
func newFixture(t *testing.T, gwpSet inventory.GWPSetName) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	require.NoError(t, repo.SeedReferenceData(ctx))

	org := inventory.Organization{Name: "Acme Energy", GWPSet: gwpSet}
	require.NoError(t, repo.CreateOrganization(ctx, &org))
	facility := inventory.Facility{OrganizationID: org.ID, Name: "Refinery A"}
	require.NoError(t, repo.CreateFacility(ctx, &facility))
	source, err := repo.FindSource(ctx, 1, "stationary_combustion")
	require.NoError(t, err)

	factor := inventory.EmissionFactor{
		Scope:           1,
		Subcategory:     "stationary_combustion",
		ActivityCode:    "natural_gas",
		Gas:             "CO2",
		FactorValue:     56.1,
		FactorUnit:      "kg/GJ",
		Basis:           inventory.BasisHHV,
		OxidationFrac:   1.0,
		SourceAuthority: "IPCC",
		SourceYear:      2006,
		Geography:       "Global",
		ValidFrom:       time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.CreateFactor(ctx, &factor))

	activity := inventory.Activity{
		FacilityID:   facility.ID,
		SourceID:     source.ID,
		ActivityType: "natural_gas",
		ActivityDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		MethodKey:    "stationary_combustion_tier1",
		Quantity:     100,
		Unit:         "GJ",
		Params:       datatypes.JSON(`{"oxidation_frac":0.995}`),
	}
	require.NoError(t, repo.CreateActivity(ctx, &activity))

	return &fixture{repo: repo, org: org, facility: facility, factor: factor, activity: activity}
}

func storedTotal(t *testing.T, calc *inventory.Calculation) float64 {
	t.Helper()
	var result methods.Result
	require.NoError(t, json.Unmarshal(calc.Results, &result))
	return result.TotalCO2eKg
}

func TestCalculateWritesImmutableRecord(t *testing.T) {
	ctx := context.Background()
	fix := newFixture(t, inventory.GWPSetAR5)
	engine := NewEngine(fix.repo, nil, nil)

	first, err := engine.Calculate(ctx, fix.activity.ID, "analyst@example.com")
	require.NoError(t, err)
	assert.InDelta(t, 5581.95, storedTotal(t, first), 1e-9)
	assert.Equal(t, EngineVersion, first.EngineVersion)
	assert.Len(t, first.InputHash, 64)
	assert.Len(t, first.FactorHash, 64)
	assert.Empty(t, first.Receipt)

	// Bump the live factor and recompute. The new record picks up the new
	// value; the first record keeps what it saw.
	fix.factor.FactorValue = 60
	require.NoError(t, fix.repo.UpdateFactor(ctx, &fix.factor))

	second, err := engine.Calculate(ctx, fix.activity.ID, "analyst@example.com")
	require.NoError(t, err)
	assert.InDelta(t, 5970.0, storedTotal(t, second), 1e-9)

	reloaded, err := fix.repo.GetCalculation(ctx, first.ID)
	require.NoError(t, err)
	assert.InDelta(t, 5581.95, storedTotal(t, reloaded), 1e-9)

	var frozen []factorRecord
	require.NoError(t, json.Unmarshal(reloaded.FactorSnapshot, &frozen))
	require.Len(t, frozen, 1)
	assert.Equal(t, 56.1, frozen[0].FactorValue)
	assert.Equal(t, "IPCC", frozen[0].SourceAuthority)

	events, err := fix.repo.ListAuditEvents(ctx, "calculation", uuid.Nil)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, "calculate", events[0].Action)
}

func TestReproduceFromFrozenSnapshots(t *testing.T) {
	ctx := context.Background()
	fix := newFixture(t, inventory.GWPSetAR5)
	engine := NewEngine(fix.repo, nil, nil)

	calc, err := engine.Calculate(ctx, fix.activity.ID, "analyst@example.com")
	require.NoError(t, err)

	// Change the live factor after the fact; reproduction must still use
	// the frozen 56.1.
	fix.factor.FactorValue = 60
	require.NoError(t, fix.repo.UpdateFactor(ctx, &fix.factor))

	result, err := engine.Reproduce(ctx, calc.ID)
	require.NoError(t, err)
	assert.True(t, result.Match)
	assert.True(t, result.HashesValid)
	assert.InDelta(t, 5581.95, result.StoredTotalKg, 1e-9)
	assert.Equal(t, result.StoredTotalKg, result.RecomputedTotalKg)
}

func TestCalculateHonorsOrganizationGWPSet(t *testing.T) {
	ctx := context.Background()
	fix := newFixture(t, inventory.GWPSetAR6)

	ch4 := inventory.EmissionFactor{
		Scope:           1,
		Subcategory:     "stationary_combustion",
		ActivityCode:    "natural_gas",
		Gas:             "CH4",
		FactorValue:     0.001,
		FactorUnit:      "kg/GJ",
		SourceAuthority: "IPCC",
		SourceYear:      2006,
		Geography:       "Global",
		ValidFrom:       time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, fix.repo.CreateFactor(ctx, &ch4))

	engine := NewEngine(fix.repo, nil, nil)
	calc, err := engine.Calculate(ctx, fix.activity.ID, "analyst@example.com")
	require.NoError(t, err)

	// 5581.95 CO2 plus 0.1 kg CH4 at the AR6 GWP of 27.9.
	assert.InDelta(t, 5584.74, storedTotal(t, calc), 1e-9)

	var result methods.Result
	require.NoError(t, json.Unmarshal(calc.Results, &result))
	assert.Equal(t, 27.9, result.Emissions["CH4"].GWP)
}

func TestCalculateUnknownMethod(t *testing.T) {
	ctx := context.Background()
	fix := newFixture(t, inventory.GWPSetAR5)
	fix.activity.MethodKey = "steam_reforming"
	require.NoError(t, fix.repo.UpdateActivity(ctx, &fix.activity))

	engine := NewEngine(fix.repo, nil, nil)
	_, err := engine.Calculate(ctx, fix.activity.ID, "analyst@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported method: steam_reforming")
}

func TestCalculatePrefersRegionalFactor(t *testing.T) {
	ctx := context.Background()
	fix := newFixture(t, inventory.GWPSetAR5)

	fix.facility.GridRegion = "WECC"
	require.NoError(t, fix.repo.UpdateFacility(ctx, &fix.facility))
	source, err := fix.repo.FindSource(ctx, 2, "purchased_electricity")
	require.NoError(t, err)

	global := inventory.EmissionFactor{
		Scope:           2,
		Subcategory:     "purchased_electricity",
		ActivityCode:    "electricity_grid",
		Gas:             "CO2",
		FactorValue:     0.5,
		FactorUnit:      "kg/kWh",
		SourceAuthority: "IEA",
		SourceYear:      2023,
		Geography:       "Global",
		ValidFrom:       time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	regional := inventory.EmissionFactor{
		Scope:           2,
		Subcategory:     "purchased_electricity",
		ActivityCode:    "electricity_grid",
		Gas:             "CO2",
		FactorValue:     0.25,
		FactorUnit:      "kg/kWh",
		SourceAuthority: "EPA",
		SourceYear:      2023,
		Geography:       "WECC",
		ValidFrom:       time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, fix.repo.CreateFactors(ctx, []inventory.EmissionFactor{global, regional}))

	activity := inventory.Activity{
		FacilityID:   fix.facility.ID,
		SourceID:     source.ID,
		ActivityType: "electricity_grid",
		ActivityDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		MethodKey:    "electricity_location",
		Quantity:     1000,
		Unit:         "kWh",
	}
	require.NoError(t, fix.repo.CreateActivity(ctx, &activity))

	engine := NewEngine(fix.repo, nil, nil)
	calc, err := engine.Calculate(ctx, activity.ID, "analyst@example.com")
	require.NoError(t, err)
	assert.InDelta(t, 250.0, storedTotal(t, calc), 1e-9)

	var frozen []factorRecord
	require.NoError(t, json.Unmarshal(calc.FactorSnapshot, &frozen))
	require.Len(t, frozen, 1)
	assert.Equal(t, "WECC", frozen[0].Geography)
}

func TestCalculateFoldsFactorMetadataIntoInputs(t *testing.T) {
	ctx := context.Background()
	fix := newFixture(t, inventory.GWPSetAR5)

	// Strip the explicit oxidation so the factor row's value applies.
	fix.activity.Params = nil
	require.NoError(t, fix.repo.UpdateActivity(ctx, &fix.activity))
	fix.factor.OxidationFrac = 0.98
	fix.factor.Basis = inventory.BasisLHV
	require.NoError(t, fix.repo.UpdateFactor(ctx, &fix.factor))

	engine := NewEngine(fix.repo, nil, nil)
	calc, err := engine.Calculate(ctx, fix.activity.ID, "analyst@example.com")
	require.NoError(t, err)
	assert.InDelta(t, 100*56.1*0.98, storedTotal(t, calc), 1e-9)

	var input inputSnapshot
	require.NoError(t, json.Unmarshal(calc.InputSnapshot, &input))
	assert.Equal(t, 0.98, input.Params["oxidation_frac"])
	assert.Equal(t, "LHV", input.Params["basis"])
}

type stubSigner struct {
	token     string
	inputHash string
}

func (s *stubSigner) Mint(calculationID uuid.UUID, inputHash, factorHash, engineVersion string) (string, error) {
	s.inputHash = inputHash
	return s.token, nil
}

func TestCalculateMintsReceipt(t *testing.T) {
	ctx := context.Background()
	fix := newFixture(t, inventory.GWPSetAR5)
	signer := &stubSigner{token: "signed-receipt"}
	engine := NewEngine(fix.repo, signer, nil)

	calc, err := engine.Calculate(ctx, fix.activity.ID, "analyst@example.com")
	require.NoError(t, err)
	assert.Equal(t, "signed-receipt", calc.Receipt)
	assert.Equal(t, calc.InputHash, signer.inputHash)
}

func TestRecalculateInsertsNewRecord(t *testing.T) {
	ctx := context.Background()
	fix := newFixture(t, inventory.GWPSetAR5)
	engine := NewEngine(fix.repo, nil, nil)

	first, err := engine.Calculate(ctx, fix.activity.ID, "analyst@example.com")
	require.NoError(t, err)
	second, err := engine.Recalculate(ctx, first.ID, "analyst@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.ActivityID, second.ActivityID)

	calcs, err := fix.repo.ListCalculations(ctx, store.CalculationFilter{ActivityID: &fix.activity.ID})
	require.NoError(t, err)
	assert.Len(t, calcs, 2)
}
