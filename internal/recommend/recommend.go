// Package recommend derives reduction recommendations from an inventory's
// rollups. The rules are share-driven: large scope shares, flaring and
// fugitive subcategories, transport above a tenth of the total and a single
// dominant facility each trigger a targeted action, on top of two standing
// recommendations for energy efficiency and data quality.
package recommend

import (
	"fmt"
	"sort"
	"strings"

	"ghg-ledger/inventory-engine/internal/aggregation"
)

const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

// Recommendation is one suggested reduction action.
type Recommendation struct {
	Priority        string `json:"priority"`
	Category        string `json:"category"`
	Recommendation  string `json:"recommendation"`
	PotentialImpact string `json:"potential_impact"`
}

const maxRecommendations = 6

// Generate evaluates the rule set against a summary and returns at most six
// recommendations, ordered by rule, not by priority.
func Generate(summary aggregation.Summary) []Recommendation {
	recs := make([]Recommendation, 0, maxRecommendations+2)

	totalTonnes := summary.TotalCO2eTonnes
	scope1Pct := summary.ScopePercentages[1]
	scope2Pct := summary.ScopePercentages[2]

	if scope1Pct > 60 {
		scope1Tonnes := summary.ByScope[1].TotalCO2eKg / 1000
		recs = append(recs, Recommendation{
			Priority: PriorityHigh,
			Category: "Scope 1 Direct Emissions",
			Recommendation: fmt.Sprintf(
				"Scope 1 emissions represent %.1f%% (%.0f tCO2e) of the total footprint. "+
					"Conduct a combustion efficiency audit, implement flare gas recovery, upgrade the leak detection and repair program and evaluate fuel switching to lower-carbon alternatives.",
				scope1Pct, scope1Tonnes),
			PotentialImpact: fmt.Sprintf("Estimated reduction potential: 15-25%% of Scope 1 emissions (%.0f - %.0f tCO2e annually)",
				scope1Tonnes*0.15, scope1Tonnes*0.25),
		})
	}

	if scope2Pct > 30 {
		scope2Tonnes := summary.ByScope[2].TotalCO2eKg / 1000
		recs = append(recs, Recommendation{
			Priority: PriorityHigh,
			Category: "Renewable Energy Transition",
			Recommendation: fmt.Sprintf(
				"Scope 2 emissions account for %.1f%% (%.0f tCO2e). "+
					"Evaluate on-site solar potential, negotiate renewable power purchase agreements, buy certificates for residual consumption and improve electrical efficiency in lighting, HVAC and motors.",
				scope2Pct, scope2Tonnes),
			PotentialImpact: fmt.Sprintf("Potential to reach 50-100%% Scope 2 reduction through renewable energy (%.0f - %.0f tCO2e)",
				scope2Tonnes*0.5, scope2Tonnes),
		})
	}

	if flaringTonnes := subcategoryTonnes(summary.BySubcategory, "flaring", "flare"); flaringTonnes > 0 {
		recs = append(recs, Recommendation{
			Priority: PriorityHigh,
			Category: "Flare Gas Recovery",
			Recommendation: fmt.Sprintf(
				"Flaring activities contribute %.0f tCO2e. "+
					"Install vapor recovery units, minimize process upsets, route excess gas to the fuel system where possible and upgrade flare monitoring.",
				flaringTonnes),
			PotentialImpact: fmt.Sprintf("Flare reduction potential: 40-70%% (%.0f - %.0f tCO2e annually)",
				flaringTonnes*0.4, flaringTonnes*0.7),
		})
	}

	if fugitiveTonnes := subcategoryTonnes(summary.BySubcategory, "fugitive", "leak"); fugitiveTonnes > 0 {
		recs = append(recs, Recommendation{
			Priority: PriorityMedium,
			Category: "Fugitive Emission Control",
			Recommendation: fmt.Sprintf(
				"Fugitive emissions total %.0f tCO2e. "+
					"Strengthen the leak detection and repair program with optical gas imaging surveys, more frequent inspections, low-emission component replacements and continuous monitoring at critical points.",
				fugitiveTonnes),
			PotentialImpact: fmt.Sprintf("LDAR program improvements: 25-40%% reduction (%.0f - %.0f tCO2e)",
				fugitiveTonnes*0.25, fugitiveTonnes*0.4),
		})
	}

	if transportTonnes := subcategoryTonnes(summary.BySubcategory, "transport", "travel", "commut"); totalTonnes > 0 && transportTonnes > totalTonnes*0.1 {
		recs = append(recs, Recommendation{
			Priority: PriorityMedium,
			Category: "Transportation Optimization",
			Recommendation: fmt.Sprintf(
				"Transportation-related emissions total %.0f tCO2e (%.1f%% of total). "+
					"Optimize logistics and routing, transition the fleet to hybrid or electric vehicles, encourage carpooling and remote work and consolidate shipments.",
				transportTonnes, transportTonnes/totalTonnes*100),
			PotentialImpact: fmt.Sprintf("Transportation optimization: 15-30%% reduction (%.0f - %.0f tCO2e)",
				transportTonnes*0.15, transportTonnes*0.3),
		})
	}

	recs = append(recs, Recommendation{
		Priority: PriorityMedium,
		Category: "Energy Efficiency",
		Recommendation: "Implement an energy management system per ISO 50001: facility energy audits, sub-metering for real-time monitoring, boiler and heater optimization, waste heat recovery and energy performance KPIs.",
		PotentialImpact: fmt.Sprintf("Energy efficiency programs typically yield 10-15%% reduction (%.0f - %.0f tCO2e)",
			totalTonnes*0.1, totalTonnes*0.15),
	})

	recs = append(recs, Recommendation{
		Priority:        PriorityLow,
		Category:        "Data Quality & Monitoring",
		Recommendation:  "Enhance the GHG data infrastructure: continuous emissions monitoring at major sources, automated data collection and validation, third-party verification and monthly tracking dashboards.",
		PotentialImpact: "Improved data quality enables better decisions and accurate tracking of reduction progress",
	})

	if name, tonnes, ok := dominantFacility(summary.ByFacility); ok && totalTonnes > 0 && tonnes > totalTonnes*0.4 {
		recs = append(recs, Recommendation{
			Priority: PriorityHigh,
			Category: "Facility-Specific Action",
			Recommendation: fmt.Sprintf(
				"Facility %q accounts for %.0f tCO2e (%.1f%% of total). "+
					"Prioritize a site-specific decarbonization plan: detailed facility audit, feasibility studies for capture, electrification and hydrogen, and a capital investment plan.",
				name, tonnes, tonnes/totalTonnes*100),
			PotentialImpact: "Focus on the top facility can drive 30-50% of the total organizational reduction target",
		})
	}

	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

// subcategoryTonnes sums the CO2e of every subcategory whose name contains
// one of the given substrings, case-insensitively.
func subcategoryTonnes(bySubcategory map[string]aggregation.GroupTotals, substrings ...string) float64 {
	var tonnes float64
	for name, totals := range bySubcategory {
		lower := strings.ToLower(name)
		for _, sub := range substrings {
			if strings.Contains(lower, sub) {
				tonnes += totals.TotalCO2eKg / 1000
				break
			}
		}
	}
	return tonnes
}

// dominantFacility returns the largest emitter when more than one facility
// reported. Ties break on name so the result is stable.
func dominantFacility(byFacility map[string]aggregation.GroupTotals) (string, float64, bool) {
	if len(byFacility) < 2 {
		return "", 0, false
	}
	names := make([]string, 0, len(byFacility))
	for name := range byFacility {
		names = append(names, name)
	}
	sort.Strings(names)

	var topName string
	var topTonnes float64
	for _, name := range names {
		if tonnes := byFacility[name].TotalCO2eKg / 1000; tonnes > topTonnes {
			topName, topTonnes = name, tonnes
		}
	}
	return topName, topTonnes, true
}
