// Package factors ingests authority emission factor publications into the
// canonical factor schema. Authority loaders (DEFRA, EPA, IPCC, API, IEA)
// read workbooks into raw records; a shared normalizer maps source columns,
// fills defaults, coerces types and drops unusable rows; a validator gates
// what reaches the database.
package factors

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"ghg-ledger/inventory-engine/internal/inventory"
)

// Record is one raw factor row keyed by source column header.
type Record map[string]string

// CanonicalColumns is the column order of the canonical factor schema, as
// written by WriteTemplate and produced by the normalizer.
var CanonicalColumns = []string{
	"scope", "subcategory", "activity_code", "activity_name", "gas",
	"factor_value", "factor_unit", "basis", "oxidation_frac", "fuel_state",
	"source_authority", "source_doc", "source_table", "source_year",
	"geography", "region_code", "market_or_location", "technology",
	"uncertainty_pct", "valid_from", "valid_to", "citation",
	"method_equation_ref", "notes",
}

// Normalize maps raw records onto the canonical schema. Rows missing any of
// activity_code, gas, factor_value or factor_unit are dropped; optional
// fields get schema defaults.
func Normalize(records []Record, mapping map[string]string, authority string) []inventory.EmissionFactor {
	now := time.Now().UTC()
	factors := make([]inventory.EmissionFactor, 0, len(records))
	for _, rec := range records {
		factor, ok := buildFactor(canonicalize(rec, mapping), authority, now)
		if !ok {
			continue
		}
		factors = append(factors, factor)
	}
	return factors
}

// canonicalize resolves a raw record to canonical keys. Values already under
// a canonical key win over mapped source columns, so loaders can pre-fill
// fields the mapping cannot express.
func canonicalize(rec Record, mapping map[string]string) Record {
	out := make(Record, len(rec))
	for _, col := range CanonicalColumns {
		if v := strings.TrimSpace(rec[col]); v != "" {
			out[col] = v
		}
	}
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		col, ok := mapping[k]
		if !ok || out[col] != "" {
			continue
		}
		if v := strings.TrimSpace(rec[k]); v != "" {
			out[col] = v
		}
	}
	return out
}

func buildFactor(rec Record, authority string, now time.Time) (inventory.EmissionFactor, bool) {
	value, err := parseFloat(rec["factor_value"])
	if err != nil || rec["activity_code"] == "" || rec["gas"] == "" || rec["factor_unit"] == "" {
		return inventory.EmissionFactor{}, false
	}

	sourceAuthority := rec["source_authority"]
	if sourceAuthority == "" {
		sourceAuthority = authority
	}
	basis := rec["basis"]
	if basis == "" {
		basis = string(inventory.BasisNA)
	}
	fuelState := rec["fuel_state"]
	if fuelState == "" {
		fuelState = "NA"
	}
	geography := rec["geography"]
	if geography == "" {
		geography = "Global"
	}
	marketOrLocation := rec["market_or_location"]
	if marketOrLocation == "" {
		marketOrLocation = "NA"
	}

	factor := inventory.EmissionFactor{
		Scope:             parseIntDefault(rec["scope"], 1),
		Subcategory:       rec["subcategory"],
		ActivityCode:      rec["activity_code"],
		ActivityName:      rec["activity_name"],
		Gas:               CleanGas(rec["gas"]),
		FactorValue:       value,
		FactorUnit:        StandardizeUnit(rec["factor_unit"]),
		Basis:             inventory.FactorBasis(basis),
		OxidationFrac:     parseFloatDefault(rec["oxidation_frac"], 1.0),
		FuelState:         fuelState,
		SourceAuthority:   sourceAuthority,
		SourceDoc:         rec["source_doc"],
		SourceTable:       rec["source_table"],
		SourceYear:        parseIntDefault(rec["source_year"], now.Year()),
		Geography:         geography,
		RegionCode:        rec["region_code"],
		MarketOrLocation:  marketOrLocation,
		Technology:        rec["technology"],
		Citation:          rec["citation"],
		MethodEquationRef: rec["method_equation_ref"],
		Notes:             rec["notes"],
	}
	if pct, err := parseFloat(rec["uncertainty_pct"]); err == nil {
		factor.UncertaintyPct = &pct
	}
	if from, ok := parseDate(rec["valid_from"]); ok {
		factor.ValidFrom = from
	} else {
		factor.ValidFrom = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	if to, ok := parseDate(rec["valid_to"]); ok {
		factor.ValidTo = &to
	}
	return factor, true
}

var gasSubscripts = strings.NewReplacer("₂", "2", "₃", "3", "₄", "4", "₆", "6")

// CleanGas standardizes a gas name: trimmed, uppercased, unicode subscripts
// flattened (CO₂ → CO2).
func CleanGas(gas string) string {
	return gasSubscripts.Replace(strings.ToUpper(strings.TrimSpace(gas)))
}

var unitReplacer = strings.NewReplacer(
	"kgCO2e", "kg CO2e",
	"kgCO2", "kg CO2",
	"kgCH4", "kg CH4",
	"kgN2O", "kg N2O",
	" per ", "/",
)

// StandardizeUnit normalizes common factor unit spellings ("kgCO2e per kWh"
// → "kg CO2e/kWh").
func StandardizeUnit(unit string) string {
	return strings.TrimSpace(unitReplacer.Replace(unit))
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
}

func parseFloatDefault(s string, def float64) float64 {
	v, err := parseFloat(s)
	if err != nil {
		return def
	}
	return v
}

func parseIntDefault(s string, def int) int {
	v, err := parseFloat(s)
	if err != nil {
		return def
	}
	return int(v)
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006/01/02", "01/02/2006", "1/2/2006", "02-01-2006"}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// =====================================================
// Validation
// =====================================================

// KnownGases is the gas whitelist the validator warns against. Other names
// (VOC among them) may still be legitimate.
var KnownGases = []string{
	"CO2", "CH4", "N2O", "SF6", "HFC-134a", "HFC-125", "HFC-32",
	"HFC-143a", "HFC-152a", "CF4", "C2F6", "NF3",
}

// ValidationResult reports hard errors and soft warnings for a normalized
// batch. Valid is true when there are no errors; warnings alone do not
// block an import.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Validate checks a normalized batch before it is written: required fields
// present, scope in 1..3, positive factor values, recognized gas names.
func Validate(factors []inventory.EmissionFactor) ValidationResult {
	var result ValidationResult

	missingFields := missingRequiredFields(factors)
	if len(missingFields) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("missing required fields: %v", missingFields))
	}

	invalidScopes := map[int]bool{}
	for _, f := range factors {
		if f.Scope < 1 || f.Scope > 3 {
			invalidScopes[f.Scope] = true
		}
	}
	if len(invalidScopes) > 0 {
		scopes := make([]int, 0, len(invalidScopes))
		for s := range invalidScopes {
			scopes = append(scopes, s)
		}
		sort.Ints(scopes)
		result.Errors = append(result.Errors, fmt.Sprintf("invalid scope values found: %v", scopes))
	}

	nonPositive := 0
	for _, f := range factors {
		if f.FactorValue <= 0 {
			nonPositive++
		}
	}
	if nonPositive > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("non-positive factor_value found in %d rows", nonPositive))
	}

	unknown := map[string]bool{}
	for _, f := range factors {
		if !knownGas(f.Gas) {
			unknown[f.Gas] = true
		}
	}
	if len(unknown) > 0 {
		gases := make([]string, 0, len(unknown))
		for g := range unknown {
			gases = append(gases, g)
		}
		sort.Strings(gases)
		result.Warnings = append(result.Warnings, fmt.Sprintf("non-standard gas names found: %v (may be valid, check manually)", gases))
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func missingRequiredFields(factors []inventory.EmissionFactor) []string {
	missing := map[string]bool{}
	for _, f := range factors {
		if f.Scope == 0 {
			missing["scope"] = true
		}
		if f.Subcategory == "" {
			missing["subcategory"] = true
		}
		if f.ActivityName == "" {
			missing["activity_name"] = true
		}
		if f.SourceAuthority == "" {
			missing["source_authority"] = true
		}
		if f.SourceYear == 0 {
			missing["source_year"] = true
		}
		if f.ValidFrom.IsZero() {
			missing["valid_from"] = true
		}
	}
	ordered := []string{"scope", "subcategory", "activity_name", "source_authority", "source_year", "valid_from"}
	var out []string
	for _, field := range ordered {
		if missing[field] {
			out = append(out, field)
		}
	}
	return out
}

func knownGas(gas string) bool {
	for _, g := range KnownGases {
		if strings.EqualFold(g, gas) {
			return true
		}
	}
	return false
}
