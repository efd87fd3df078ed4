// Package aggregation rolls calculation results up into the views an
// inventory report is built from: totals by scope, subcategory, facility
// and month. Rollups always read the latest calculation per activity.
package aggregation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ghg-ledger/inventory-engine/internal/methods"
	"ghg-ledger/inventory-engine/internal/store"
)

// Record is one decoded calculation feeding the rollups.
type Record struct {
	Scope       int
	Subcategory string
	Facility    string
	Month       string
	Emissions   map[string]GasTotal
	TotalCO2eKg float64
}

// GasTotal accumulates one gas within a group.
type GasTotal struct {
	MassKg float64 `json:"mass_kg"`
	CO2eKg float64 `json:"co2e_kg"`
}

// GroupTotals is the rollup of one group: per-gas totals plus the group
// total CO2e.
type GroupTotals struct {
	Gases       map[string]GasTotal
	TotalCO2eKg float64
}

// MarshalJSON emits the gas lines keyed by gas name, with the group total
// under the reserved _total_co2e_kg key. The underscore keeps the total from
// colliding with any gas name.
func (g GroupTotals) MarshalJSON() ([]byte, error) {
	doc := make(map[string]interface{}, len(g.Gases)+1)
	for gas, totals := range g.Gases {
		doc[gas] = totals
	}
	doc["_total_co2e_kg"] = g.TotalCO2eKg
	return json.Marshal(doc)
}

func (g *GroupTotals) add(rec Record) {
	if g.Gases == nil {
		g.Gases = make(map[string]GasTotal)
	}
	for gas, em := range rec.Emissions {
		t := g.Gases[gas]
		t.MassKg += em.MassKg
		t.CO2eKg += em.CO2eKg
		g.Gases[gas] = t
	}
	g.TotalCO2eKg += rec.TotalCO2eKg
}

// ByScope groups records by scope. Scopes 1 through 3 are always present so
// downstream tables render complete.
func ByScope(records []Record) map[int]GroupTotals {
	out := make(map[int]GroupTotals, 3)
	for scope := 1; scope <= 3; scope++ {
		out[scope] = GroupTotals{Gases: make(map[string]GasTotal)}
	}
	for _, rec := range records {
		group := out[rec.Scope]
		group.add(rec)
		out[rec.Scope] = group
	}
	return out
}

// BySubcategory groups records by subcategory. A scope of 0 includes all
// scopes; otherwise only records of that scope are counted.
func BySubcategory(records []Record, scope int) map[string]GroupTotals {
	out := make(map[string]GroupTotals)
	for _, rec := range records {
		if scope != 0 && rec.Scope != scope {
			continue
		}
		group := out[rec.Subcategory]
		group.add(rec)
		out[rec.Subcategory] = group
	}
	return out
}

// ByFacility groups records by facility name.
func ByFacility(records []Record) map[string]GroupTotals {
	out := make(map[string]GroupTotals)
	for _, rec := range records {
		group := out[rec.Facility]
		group.add(rec)
		out[rec.Facility] = group
	}
	return out
}

// ByMonth groups records by activity month (YYYY-MM). Keys sort
// chronologically, so the encoded form reads as a time series.
func ByMonth(records []Record) map[string]GroupTotals {
	out := make(map[string]GroupTotals)
	for _, rec := range records {
		group := out[rec.Month]
		group.add(rec)
		out[rec.Month] = group
	}
	return out
}

// Summary is the complete rollup set for one organization and period.
type Summary struct {
	OrganizationID   uuid.UUID              `json:"organization_id"`
	TotalCO2eKg      float64                `json:"total_co2e_kg"`
	TotalCO2eTonnes  float64                `json:"total_co2e_tonnes"`
	ByScope          map[int]GroupTotals    `json:"by_scope"`
	BySubcategory    map[string]GroupTotals `json:"by_subcategory"`
	ByFacility       map[string]GroupTotals `json:"by_facility"`
	ByMonth          map[string]GroupTotals `json:"by_month"`
	ScopePercentages map[int]float64        `json:"scope_percentages"`
	RecordCount      int                    `json:"record_count"`
	SkippedRecords   int                    `json:"skipped_records,omitempty"`
}

// Aggregator loads calculation rows and produces rollups.
type Aggregator struct {
	repo   store.Repository
	logger *zap.Logger
}

// NewAggregator creates an aggregator over the given repository.
func NewAggregator(repo store.Repository, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{repo: repo, logger: logger}
}

// Records loads and decodes the latest calculation per activity for an
// organization within the period. It returns the decoded records and the
// count of rows skipped because their stored results were unreadable.
func (a *Aggregator) Records(ctx context.Context, organizationID uuid.UUID, from, to time.Time) ([]Record, int, error) {
	rows, err := a.repo.LatestCalculationRows(ctx, organizationID, from, to)
	if err != nil {
		return nil, 0, err
	}

	records := make([]Record, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		var result methods.Result
		if err := json.Unmarshal(row.Calculation.Results, &result); err != nil {
			a.logger.Warn("skipping calculation with unreadable results",
				zap.String("calculation_id", row.Calculation.ID.String()),
				zap.Error(err))
			skipped++
			continue
		}
		emissions := make(map[string]GasTotal, len(result.Emissions))
		for gas, em := range result.Emissions {
			emissions[gas] = GasTotal{MassKg: em.MassKg, CO2eKg: em.CO2eKg}
		}
		records = append(records, Record{
			Scope:       row.Source.Scope,
			Subcategory: row.Source.Subcategory,
			Facility:    row.Facility.Name,
			Month:       row.Activity.ActivityDate.Format("2006-01"),
			Emissions:   emissions,
			TotalCO2eKg: result.TotalCO2eKg,
		})
	}
	return records, skipped, nil
}

// Summarize computes the full rollup set for an organization over a period.
// The four groupings run concurrently over the same record slice.
func (a *Aggregator) Summarize(ctx context.Context, organizationID uuid.UUID, from, to time.Time) (*Summary, error) {
	records, skipped, err := a.Records(ctx, organizationID, from, to)
	if err != nil {
		return nil, err
	}
	summary := Summarize(records)
	summary.OrganizationID = organizationID
	summary.SkippedRecords = skipped
	return summary, nil
}

// Summarize rolls an already-decoded record set into a Summary.
func Summarize(records []Record) *Summary {
	var (
		wg            sync.WaitGroup
		byScope       map[int]GroupTotals
		bySubcategory map[string]GroupTotals
		byFacility    map[string]GroupTotals
		byMonth       map[string]GroupTotals
	)
	wg.Add(4)
	go func() { defer wg.Done(); byScope = ByScope(records) }()
	go func() { defer wg.Done(); bySubcategory = BySubcategory(records, 0) }()
	go func() { defer wg.Done(); byFacility = ByFacility(records) }()
	go func() { defer wg.Done(); byMonth = ByMonth(records) }()
	wg.Wait()

	var total float64
	for _, rec := range records {
		total += rec.TotalCO2eKg
	}
	percentages := make(map[int]float64, 3)
	for scope := 1; scope <= 3; scope++ {
		if total == 0 {
			percentages[scope] = 0
			continue
		}
		percentages[scope] = byScope[scope].TotalCO2eKg / total * 100
	}

	return &Summary{
		TotalCO2eKg:      total,
		TotalCO2eTonnes:  total / 1000,
		ByScope:          byScope,
		BySubcategory:    bySubcategory,
		ByFacility:       byFacility,
		ByMonth:          byMonth,
		ScopePercentages: percentages,
		RecordCount:      len(records),
	}
}
