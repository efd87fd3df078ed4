// Package qaqc runs data-quality checks over an organization's inventory:
// missing data, negative values, statistical outliers, energy-basis
// consistency, emission factor currency and completeness by scope. The
// checks follow GHG Protocol and ISO 14064-1 QA/QC guidance.
package qaqc

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ghg-ledger/inventory-engine/internal/inventory"
	"ghg-ledger/inventory-engine/internal/methods"
	"ghg-ledger/inventory-engine/internal/store"
)

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Issue is one finding from a check.
type Issue struct {
	Check    string `json:"check"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	EntityID string `json:"entity_id,omitempty"`
}

// FactorUse is one frozen factor line from a calculation's factor snapshot,
// reduced to the fields the checks care about.
type FactorUse struct {
	Gas        string     `json:"gas"`
	Basis      string     `json:"basis"`
	SourceYear int        `json:"source_year"`
	ValidTo    *time.Time `json:"valid_to,omitempty"`
}

// Line is one latest calculation joined with its activity and source,
// decoded once so every check can share it.
type Line struct {
	CalculationID uuid.UUID
	ActivityID    uuid.UUID
	ActivityType  string
	Subcategory   string
	TotalCO2eKg   float64
	Emissions     map[string]methods.GasEmission
	Factors       []FactorUse
}

// ScopeCompleteness counts reporting categories with data for one scope.
type ScopeCompleteness struct {
	TotalCategories    int     `json:"total_categories"`
	CategoriesWithData int     `json:"categories_with_data"`
	CompletenessPct    float64 `json:"completeness_pct"`
}

// Completeness summarizes coverage of the source taxonomy.
type Completeness struct {
	OverallPct      float64                   `json:"overall_completeness_pct"`
	ByScope         map[int]ScopeCompleteness `json:"by_scope"`
	TotalSources    int                       `json:"total_sources"`
	SourcesWithData int                       `json:"sources_with_data"`
}

// Summary counts issues by severity.
type Summary struct {
	TotalIssues int `json:"total_issues"`
	Errors      int `json:"errors"`
	Warnings    int `json:"warnings"`
	Info        int `json:"info"`
}

// Report is the full QA/QC result. Passed is true when no check raised an
// error; warnings alone do not fail a run.
type Report struct {
	Summary      Summary      `json:"summary"`
	Issues       []Issue      `json:"issues"`
	Completeness Completeness `json:"completeness"`
	Passed       bool         `json:"passed"`
}

// =====================================================
// Checks
// =====================================================

// MissingData flags activities without calculations and activities missing
// quantity or unit data.
func MissingData(activities []inventory.Activity, lines []Line) []Issue {
	calculated := make(map[uuid.UUID]bool, len(lines))
	for _, line := range lines {
		calculated[line.ActivityID] = true
	}

	var issues []Issue
	for _, a := range activities {
		if !calculated[a.ID] {
			issues = append(issues, Issue{
				Check:    "Missing Data",
				Severity: SeverityError,
				Message:  fmt.Sprintf("Activity %s has no calculations", a.ID),
				EntityID: a.ID.String(),
			})
		}
	}
	for _, a := range activities {
		if a.Quantity == 0 {
			issues = append(issues, Issue{
				Check:    "Missing Data",
				Severity: SeverityError,
				Message:  fmt.Sprintf("Activity %s missing quantity data", a.ID),
				EntityID: a.ID.String(),
			})
		}
		if a.Unit == "" {
			issues = append(issues, Issue{
				Check:    "Missing Data",
				Severity: SeverityError,
				Message:  fmt.Sprintf("Activity %s missing unit of measure", a.ID),
				EntityID: a.ID.String(),
			})
		}
	}
	return issues
}

// NegativeValues flags calculations with a negative total or negative
// per-gas mass, which is physically impossible.
func NegativeValues(lines []Line) []Issue {
	var issues []Issue
	for _, line := range lines {
		if line.TotalCO2eKg < 0 {
			issues = append(issues, Issue{
				Check:    "Negative Values",
				Severity: SeverityError,
				Message:  fmt.Sprintf("Calculation %s has negative CO2e: %g kg", line.CalculationID, line.TotalCO2eKg),
				EntityID: line.CalculationID.String(),
			})
		}
		gases := make([]string, 0, len(line.Emissions))
		for gas := range line.Emissions {
			gases = append(gases, gas)
		}
		sort.Strings(gases)
		for _, gas := range gases {
			if mass := line.Emissions[gas].MassKg; mass < 0 {
				issues = append(issues, Issue{
					Check:    "Negative Values",
					Severity: SeverityError,
					Message:  fmt.Sprintf("Calculation %s has negative %s: %g kg", line.CalculationID, gas, mass),
					EntityID: line.CalculationID.String(),
				})
			}
		}
	}
	return issues
}

// Outliers flags calculation totals far outside the interquartile range of
// their subcategory. Groups with fewer than four points are skipped.
func Outliers(lines []Line) []Issue {
	bySubcategory := make(map[string][]Line)
	for _, line := range lines {
		bySubcategory[line.Subcategory] = append(bySubcategory[line.Subcategory], line)
	}
	subcategories := make([]string, 0, len(bySubcategory))
	for subcat := range bySubcategory {
		subcategories = append(subcategories, subcat)
	}
	sort.Strings(subcategories)

	var issues []Issue
	for _, subcat := range subcategories {
		group := bySubcategory[subcat]
		if len(group) < 4 {
			continue
		}

		totals := make([]float64, len(group))
		for i, line := range group {
			totals[i] = line.TotalCO2eKg
		}
		sort.Float64s(totals)

		q1 := totals[len(totals)/4]
		q3 := totals[3*len(totals)/4]
		iqr := q3 - q1
		lower := q1 - 3*iqr
		upper := q3 + 3*iqr

		for _, line := range group {
			if line.TotalCO2eKg < lower || line.TotalCO2eKg > upper {
				issues = append(issues, Issue{
					Check:    "Outliers",
					Severity: SeverityWarning,
					Message: fmt.Sprintf("Calculation %s in %s is an outlier: %.2f kg CO2e (expected range: %.2f - %.2f)",
						line.CalculationID, subcat, line.TotalCO2eKg, lower, upper),
					EntityID: line.CalculationID.String(),
				})
			}
		}
	}
	return issues
}

// BasisConsistency flags activity types whose calculations mix HHV and LHV
// energy bases.
func BasisConsistency(lines []Line) []Issue {
	basesByType := make(map[string]map[string]bool)
	for _, line := range lines {
		if basesByType[line.ActivityType] == nil {
			basesByType[line.ActivityType] = make(map[string]bool)
		}
		basesByType[line.ActivityType][primaryBasis(line.Factors)] = true
	}
	types := make([]string, 0, len(basesByType))
	for t := range basesByType {
		types = append(types, t)
	}
	sort.Strings(types)

	var issues []Issue
	for _, t := range types {
		if len(basesByType[t]) < 2 {
			continue
		}
		bases := make([]string, 0, len(basesByType[t]))
		for b := range basesByType[t] {
			bases = append(bases, b)
		}
		sort.Strings(bases)
		issues = append(issues, Issue{
			Check:    "Basis Consistency",
			Severity: SeverityWarning,
			Message: fmt.Sprintf("Activity type %q uses inconsistent energy basis: %v. Consider standardizing to HHV or LHV.",
				t, bases),
		})
	}
	return issues
}

// primaryBasis reports the energy basis of the primary CO2 factor line.
func primaryBasis(factors []FactorUse) string {
	for _, f := range factors {
		if f.Gas == methods.GasCO2 || f.Gas == methods.GasCO2e {
			if f.Basis != "" {
				return f.Basis
			}
			return string(inventory.BasisNA)
		}
	}
	return string(inventory.BasisNA)
}

// FactorCurrency flags calculations whose frozen factors have expired or
// come from a source more than five years old.
func FactorCurrency(lines []Line, now time.Time) []Issue {
	var issues []Issue
	for _, line := range lines {
		for _, f := range line.Factors {
			if f.ValidTo != nil && f.ValidTo.Before(now) {
				issues = append(issues, Issue{
					Check:    "Factor Currency",
					Severity: SeverityWarning,
					Message: fmt.Sprintf("Calculation %s uses expired emission factor (expired: %s)",
						line.CalculationID, f.ValidTo.Format("2006-01-02")),
					EntityID: line.CalculationID.String(),
				})
				break
			}
		}

		oldest := 0
		for _, f := range line.Factors {
			if f.SourceYear > 0 && (oldest == 0 || f.SourceYear < oldest) {
				oldest = f.SourceYear
			}
		}
		if oldest > 0 && now.Year()-oldest > 5 {
			issues = append(issues, Issue{
				Check:    "Factor Currency",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("Calculation %s uses emission factor from %d (>5 years old)", line.CalculationID, oldest),
				EntityID: line.CalculationID.String(),
			})
		}
	}
	return issues
}

// StaleFactor applies the currency rule to a live factor row: expired
// validity or a source more than five years old. The factor-watch sweep and
// the snapshot checks share this horizon.
func StaleFactor(factor inventory.EmissionFactor, now time.Time) (string, bool) {
	if factor.ValidTo != nil && factor.ValidTo.Before(now) {
		return fmt.Sprintf("expired %s", factor.ValidTo.Format("2006-01-02")), true
	}
	if factor.SourceYear > 0 && now.Year()-factor.SourceYear > 5 {
		return fmt.Sprintf("source year %d (>5 years old)", factor.SourceYear), true
	}
	return "", false
}

// CompletenessReport measures how much of the source taxonomy has reported
// activity data, overall and per scope.
func CompletenessReport(sources []inventory.Source, activities []inventory.Activity) Completeness {
	withData := make(map[uuid.UUID]bool)
	for _, a := range activities {
		withData[a.SourceID] = true
	}

	byScope := make(map[int]ScopeCompleteness, 3)
	covered := 0
	for scope := 1; scope <= 3; scope++ {
		total := 0
		have := 0
		for _, s := range sources {
			if s.Scope != scope {
				continue
			}
			total++
			if withData[s.ID] {
				have++
			}
		}
		pct := 0.0
		if total > 0 {
			pct = float64(have) / float64(total) * 100
		}
		byScope[scope] = ScopeCompleteness{
			TotalCategories:    total,
			CategoriesWithData: have,
			CompletenessPct:    pct,
		}
		covered += have
	}

	overall := 0.0
	if len(sources) > 0 {
		overall = float64(covered) / float64(len(sources)) * 100
	}
	return Completeness{
		OverallPct:      overall,
		ByScope:         byScope,
		TotalSources:    len(sources),
		SourcesWithData: covered,
	}
}

// =====================================================
// Runner
// =====================================================

// Runner loads an organization's inventory and runs every check against it.
type Runner struct {
	repo   store.Repository
	logger *zap.Logger
}

func NewRunner(repo store.Repository, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{repo: repo, logger: logger}
}

// Run executes all checks over the latest calculation per activity and
// compiles the report.
func (r *Runner) Run(ctx context.Context, organizationID uuid.UUID) (*Report, error) {
	activities, err := r.repo.ListActivities(ctx, store.ActivityFilter{OrganizationID: &organizationID})
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	rows, err := r.repo.LatestCalculationRows(ctx, organizationID, time.Time{}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to load calculations: %w", err)
	}
	sources, err := r.repo.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	lines := r.decodeLines(rows)

	var issues []Issue
	issues = append(issues, MissingData(activities, lines)...)
	issues = append(issues, NegativeValues(lines)...)
	issues = append(issues, Outliers(lines)...)
	issues = append(issues, BasisConsistency(lines)...)
	issues = append(issues, FactorCurrency(lines, time.Now().UTC())...)

	return BuildReport(issues, CompletenessReport(sources, activities)), nil
}

func (r *Runner) decodeLines(rows []store.CalculationRow) []Line {
	lines := make([]Line, 0, len(rows))
	for _, row := range rows {
		var result methods.Result
		if err := json.Unmarshal(row.Calculation.Results, &result); err != nil {
			r.logger.Warn("skipping calculation with unreadable results",
				zap.String("calculation_id", row.Calculation.ID.String()),
				zap.Error(err))
			continue
		}
		var factors []FactorUse
		if len(row.Calculation.FactorSnapshot) > 0 {
			if err := json.Unmarshal(row.Calculation.FactorSnapshot, &factors); err != nil {
				r.logger.Warn("skipping unreadable factor snapshot",
					zap.String("calculation_id", row.Calculation.ID.String()),
					zap.Error(err))
			}
		}
		lines = append(lines, Line{
			CalculationID: row.Calculation.ID,
			ActivityID:    row.Activity.ID,
			ActivityType:  row.Activity.ActivityType,
			Subcategory:   row.Source.Subcategory,
			TotalCO2eKg:   result.TotalCO2eKg,
			Emissions:     result.Emissions,
			Factors:       factors,
		})
	}
	return lines
}

// BuildReport counts issues by severity and assembles the final report.
func BuildReport(issues []Issue, completeness Completeness) *Report {
	summary := Summary{TotalIssues: len(issues)}
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityError:
			summary.Errors++
		case SeverityWarning:
			summary.Warnings++
		case SeverityInfo:
			summary.Info++
		}
	}
	if issues == nil {
		issues = []Issue{}
	}
	return &Report{
		Summary:      summary,
		Issues:       issues,
		Completeness: completeness,
		Passed:       summary.Errors == 0,
	}
}
