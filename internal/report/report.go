// Package report composes the context a rendered inventory report is built
// from: organization block, reporting period, facilities, summary with scope
// percentages, the four rollups, uncertainty by scope, QA/QC results,
// reduction recommendations and a standards-compliance block. The context is
// plain nested maps and slices; rendering is left to external consumers.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ghg-ledger/inventory-engine/internal/aggregation"
	"ghg-ledger/inventory-engine/internal/qaqc"
	"ghg-ledger/inventory-engine/internal/recommend"
	"ghg-ledger/inventory-engine/internal/store"
	"ghg-ledger/inventory-engine/internal/uncertainty"
)

// Composer builds report contexts for one organization at a time.
type Composer struct {
	repo       store.Repository
	aggregator *aggregation.Aggregator
	checks     *qaqc.Runner
	logger     *zap.Logger
}

func NewComposer(repo store.Repository, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		repo:       repo,
		aggregator: aggregation.NewAggregator(repo, logger),
		checks:     qaqc.NewRunner(repo, logger),
		logger:     logger,
	}
}

// Compose assembles the full report context for the organization's configured
// reporting period. Year is informational; zero means the current year.
func (c *Composer) Compose(ctx context.Context, organizationID uuid.UUID, year int) (map[string]interface{}, error) {
	if year <= 0 {
		year = time.Now().Year()
	}

	org, err := c.repo.GetOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}
	facilities, err := c.repo.ListFacilities(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load facilities: %w", err)
	}

	summary, err := c.aggregator.Summarize(ctx, organizationID, org.PeriodStart, org.PeriodEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate inventory: %w", err)
	}

	qaqcReport, err := c.checks.Run(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to run QA/QC checks: %w", err)
	}

	facilityBlocks := make([]map[string]interface{}, 0, len(facilities))
	for _, f := range facilities {
		facilityBlocks = append(facilityBlocks, map[string]interface{}{
			"name":        f.Name,
			"country":     f.Country,
			"grid_region": f.GridRegion,
		})
	}

	c.logger.Info("report context composed",
		zap.String("organization_id", organizationID.String()),
		zap.Int("year", year),
		zap.Int("record_count", summary.RecordCount),
		zap.Bool("qaqc_passed", qaqcReport.Passed))

	return map[string]interface{}{
		"organization": map[string]interface{}{
			"id":                     org.ID,
			"name":                   org.Name,
			"base_year":              org.BaseYear,
			"gwp_set":                org.GWPSet,
			"electricity_method":     org.ElectricityMethod,
			"consolidation_approach": org.ConsolidationApproach,
		},

		"year":            year,
		"period_start":    org.PeriodStart.Format("2006-01-02"),
		"period_end":      org.PeriodEnd.Format("2006-01-02"),
		"generation_date": time.Now().UTC().Format(time.RFC3339),

		"facilities": facilityBlocks,

		"summary": map[string]interface{}{
			"total_co2e_kg":     summary.TotalCO2eKg,
			"total_co2e_tonnes": summary.TotalCO2eTonnes,
			"scope_1_pct":       summary.ScopePercentages[1],
			"scope_2_pct":       summary.ScopePercentages[2],
			"scope_3_pct":       summary.ScopePercentages[3],
		},

		"by_scope":       summary.ByScope,
		"by_facility":    summary.ByFacility,
		"by_subcategory": summary.BySubcategory,
		"by_month":       summary.ByMonth,

		"uncertainty": uncertainty.ScopeUncertainty(summary.ByScope, 0),

		"qaqc": qaqcReport,

		"recommendations": recommend.Generate(*summary),

		"standards_compliance": map[string]interface{}{
			"iso_14064_1":  true,
			"ghg_protocol": true,
			"gwp_set":      org.GWPSet,
		},
	}, nil
}

// FactorLine is one appendix row: an emission factor exactly as it was
// frozen into a calculation's factor snapshot.
type FactorLine struct {
	ActivityCode    string  `json:"activity_code"`
	ActivityName    string  `json:"activity_name,omitempty"`
	Gas             string  `json:"gas"`
	FactorValue     float64 `json:"factor_value"`
	FactorUnit      string  `json:"factor_unit"`
	SourceAuthority string  `json:"source_authority"`
	SourceDoc       string  `json:"source_doc,omitempty"`
	SourceYear      int     `json:"source_year"`
	Citation        string  `json:"citation,omitempty"`
}

// FactorAppendix lists the distinct emission factors used by the
// organization's latest calculations, one line per activity code and gas,
// sorted for stable appendix output. Factors are read from the frozen
// snapshots, not the live factor table, so the appendix matches what the
// numbers were actually computed with.
func (c *Composer) FactorAppendix(ctx context.Context, organizationID uuid.UUID) ([]FactorLine, error) {
	rows, err := c.repo.LatestCalculationRows(ctx, organizationID, time.Time{}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to load calculations: %w", err)
	}

	seen := make(map[string]bool)
	var lines []FactorLine
	for _, row := range rows {
		if len(row.Calculation.FactorSnapshot) == 0 {
			continue
		}
		var frozen []FactorLine
		if err := json.Unmarshal(row.Calculation.FactorSnapshot, &frozen); err != nil {
			c.logger.Warn("skipping undecodable factor snapshot",
				zap.String("calculation_id", row.Calculation.ID.String()),
				zap.Error(err))
			continue
		}
		for _, line := range frozen {
			if line.ActivityCode == "" {
				continue
			}
			key := line.ActivityCode + "|" + line.Gas
			if seen[key] {
				continue
			}
			seen[key] = true
			lines = append(lines, line)
		}
	}

	sort.Slice(lines, func(i, j int) bool {
		if lines[i].ActivityCode != lines[j].ActivityCode {
			return lines[i].ActivityCode < lines[j].ActivityCode
		}
		return lines[i].Gas < lines[j].Gas
	})
	return lines, nil
}
