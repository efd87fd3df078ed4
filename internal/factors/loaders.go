package factors

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"ghg-ledger/inventory-engine/internal/inventory"
)

// Loader reads one authority's factor publication into raw records. Loaders
// produce records plus a column mapping for Normalize; parsing quirks stay
// inside LoadRaw, which may pre-fill canonical keys directly.
type Loader interface {
	Authority() string
	LoadRaw(path string) ([]Record, error)
	ColumnMapping() map[string]string
}

// NewLoader returns the loader registered for an authority tag.
func NewLoader(authority string) (Loader, error) {
	switch strings.ToUpper(strings.TrimSpace(authority)) {
	case "DEFRA":
		return DEFRALoader{}, nil
	case "EPA":
		return EPALoader{}, nil
	case "IPCC":
		return IPCCLoader{}, nil
	case "API":
		return APILoader{}, nil
	case "IEA":
		return IEALoader{}, nil
	}
	return nil, fmt.Errorf("unknown factor authority: %s", authority)
}

// DetectAuthority guesses the authority from a file name.
func DetectAuthority(path string) (string, bool) {
	name := strings.ToLower(filepath.Base(path))
	for _, tag := range []string{"defra", "epa", "ipcc", "iea", "api"} {
		if strings.Contains(name, tag) {
			return strings.ToUpper(tag), true
		}
	}
	return "", false
}

// LoadAndNormalize runs a loader end to end: raw records through the
// normalizer under the loader's column mapping.
func LoadAndNormalize(l Loader, path string) ([]inventory.EmissionFactor, error) {
	records, err := l.LoadRaw(path)
	if err != nil {
		return nil, err
	}
	return Normalize(records, l.ColumnMapping(), l.Authority()), nil
}

// =====================================================
// Tabular readers
// =====================================================

func readTabular(path string) ([]Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path)
	case ".xlsx", ".xlsm":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %w", err)
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		return readSheet(f, sheets[0])
	}
	return nil, fmt.Errorf("unsupported file format: %s", filepath.Ext(path))
}

func readCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return rowsToRecords(rows), nil
}

func readSheet(f *excelize.File, sheet string) ([]Record, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rowsToRecords(rows), nil
}

// rowsToRecords keys each data row by its header cell, skipping blanks.
func rowsToRecords(rows [][]string) []Record {
	if len(rows) < 2 {
		return nil
	}
	header := rows[0]
	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(Record, len(header))
		for i, cell := range row {
			if i >= len(header) {
				break
			}
			key := strings.TrimSpace(header[i])
			cell = strings.TrimSpace(cell)
			if key == "" || cell == "" {
				continue
			}
			rec[key] = cell
		}
		if len(rec) > 0 {
			records = append(records, rec)
		}
	}
	return records
}

// gasColumn pairs a wide-format factor column with the gas it reports.
type gasColumn struct {
	column string
	gas    string
}

// meltGasColumns converts wide per-gas factor columns to long rows, one per
// gas present. Batches without any wide columns pass through untouched.
func meltGasColumns(records []Record, columns []gasColumn) []Record {
	wide := false
	for _, rec := range records {
		for _, gc := range columns {
			if rec[gc.column] != "" {
				wide = true
				break
			}
		}
		if wide {
			break
		}
	}
	if !wide {
		return records
	}

	var melted []Record
	for _, rec := range records {
		for _, gc := range columns {
			value := rec[gc.column]
			if value == "" {
				continue
			}
			clone := make(Record, len(rec))
			for k, v := range rec {
				clone[k] = v
			}
			for _, other := range columns {
				delete(clone, other.column)
			}
			clone["gas"] = gc.gas
			clone["factor_value"] = value
			melted = append(melted, clone)
		}
	}
	return melted
}

func first(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// =====================================================
// DEFRA
// =====================================================

// DEFRALoader reads UK Government GHG Conversion Factors workbooks. DEFRA
// publishes multi-sheet files; documentation sheets are skipped and the
// subcategory is inferred from the sheet name when the data lacks one.
type DEFRALoader struct{}

func (DEFRALoader) Authority() string { return "DEFRA" }

func (DEFRALoader) LoadRaw(path string) ([]Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DEFRA file: %w", err)
	}
	defer f.Close()

	var records []Record
	for _, sheet := range f.GetSheetList() {
		lower := strings.ToLower(sheet)
		if strings.Contains(lower, "info") || strings.Contains(lower, "contents") || strings.Contains(lower, "intro") {
			continue
		}
		recs, err := readSheet(f, sheet)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			if rec["subcategory"] == "" && rec["Level 1"] == "" {
				rec["subcategory"] = defraSheetSubcategory(sheet)
			}
			rec["geography"] = "UK"
			rec["region_code"] = "GB"
			rec["source_doc"] = "2024 GHG Conversion Factors"
		}
		records = append(records, recs...)
	}
	if len(records) == 0 {
		return nil, errors.New("no valid data sheets found in DEFRA file")
	}
	return records, nil
}

func (DEFRALoader) ColumnMapping() map[string]string {
	return map[string]string{
		"Scope":                      "scope",
		"Level 1":                    "subcategory",
		"Level 2":                    "activity_name",
		"Level 3":                    "activity_code",
		"Activity":                   "activity_name",
		"GHG":                        "gas",
		"kgCO2e":                     "factor_value",
		"GHG Conversion Factor 2024": "factor_value",
		"Unit":                       "factor_unit",
		"UOM":                        "factor_unit",
		"Year":                       "source_year",
		"Type":                       "technology",
	}
}

func defraSheetSubcategory(sheet string) string {
	lower := strings.ToLower(sheet)
	switch {
	case strings.Contains(lower, "fuel"), strings.Contains(lower, "combustion"):
		return "stationary_combustion"
	case strings.Contains(lower, "electricity"):
		return "purchased_electricity"
	case strings.Contains(lower, "transport"), strings.Contains(lower, "freight"):
		return "transport_downstream"
	case strings.Contains(lower, "travel"):
		return "business_travel"
	}
	return "other"
}

// =====================================================
// EPA
// =====================================================

// EPALoader reads EPA 40 CFR Part 98 factor tables. EPA publishes wide
// per-gas columns, melted here to one row per gas.
type EPALoader struct{}

func (EPALoader) Authority() string { return "EPA" }

var epaGasColumns = []gasColumn{
	{"CO2 Factor", "CO2"},
	{"CH4 Factor", "CH4"},
	{"N2O Factor", "N2O"},
}

func (EPALoader) LoadRaw(path string) ([]Record, error) {
	records, err := readTabular(path)
	if err != nil {
		return nil, err
	}
	records = meltGasColumns(records, epaGasColumns)
	for _, rec := range records {
		rec["geography"] = "USA"
		rec["region_code"] = "US"
		rec["source_doc"] = "40 CFR Part 98"
		if rec["oxidation_frac"] == "" {
			rec["oxidation_frac"] = "0.995"
		}
	}
	return records, nil
}

func (EPALoader) ColumnMapping() map[string]string {
	return map[string]string{
		"Fuel Type":       "activity_name",
		"Fuel Code":       "activity_code",
		"Gas":             "gas",
		"Emission Factor": "factor_value",
		"Unit":            "factor_unit",
		"Default Unit":    "factor_unit",
		"HHV":             "basis",
		"Subpart":         "source_table",
		"Table":           "source_table",
		"Year":            "source_year",
	}
}

// =====================================================
// IPCC
// =====================================================

// IPCCLoader reads IPCC Guidelines default factor tables (2006/2019).
type IPCCLoader struct{}

func (IPCCLoader) Authority() string { return "IPCC" }

var ipccGasColumns = []gasColumn{
	{"CO2", "CO2"},
	{"CH4", "CH4"},
	{"N2O", "N2O"},
}

func (IPCCLoader) LoadRaw(path string) ([]Record, error) {
	records, err := readTabular(path)
	if err != nil {
		return nil, err
	}
	records = meltGasColumns(records, ipccGasColumns)
	for _, rec := range records {
		rec["geography"] = "Global"
		rec["region_code"] = "GL"
		rec["source_doc"] = "2006 IPCC Guidelines"
		// IPCC states factors on a net calorific value basis.
		for _, key := range []string{"basis", "NCV", "Net Calorific Value"} {
			switch rec[key] {
			case "NCV", "Net":
				rec[key] = "LHV"
			case "Gross":
				rec[key] = "HHV"
			}
		}
	}
	return records, nil
}

func (IPCCLoader) ColumnMapping() map[string]string {
	return map[string]string{
		"Fuel":                "activity_name",
		"Fuel Type":           "activity_name",
		"IPCC Code":           "activity_code",
		"Gas":                 "gas",
		"Emission Factor":     "factor_value",
		"EF":                  "factor_value",
		"Default Value":       "factor_value",
		"Unit":                "factor_unit",
		"Default Unit":        "factor_unit",
		"Net Calorific Value": "basis",
		"NCV":                 "basis",
		"Chapter":             "source_table",
		"Technology":          "technology",
	}
}

// =====================================================
// API Compendium
// =====================================================

// APILoader reads API Compendium tables for petroleum industry operations
// (flaring, fugitives, venting). Source types map onto the inventory's
// subcategory taxonomy by keyword.
type APILoader struct{}

func (APILoader) Authority() string { return "API" }

func (APILoader) LoadRaw(path string) ([]Record, error) {
	records, err := readTabular(path)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		rec["geography"] = "Global"
		rec["region_code"] = "GL"
		rec["source_doc"] = "API Compendium"
		if sub := apiSubcategory(first(rec["subcategory"], rec["Source Type"])); sub != "" {
			rec["subcategory"] = sub
		}
	}
	return records, nil
}

func (APILoader) ColumnMapping() map[string]string {
	return map[string]string{
		"Source Type":            "subcategory",
		"Activity":               "activity_name",
		"Activity Code":          "activity_code",
		"Emission Source":        "activity_name",
		"Gas Type":               "gas",
		"GHG":                    "gas",
		"Emission Factor":        "factor_value",
		"EF":                     "factor_value",
		"Units":                  "factor_unit",
		"Unit":                   "factor_unit",
		"Technology":             "technology",
		"Equipment Type":         "technology",
		"Destruction Efficiency": "oxidation_frac",
		"Section":                "source_table",
		"Table":                  "source_table",
		"Year":                   "source_year",
		"Uncertainty":            "uncertainty_pct",
	}
}

func apiSubcategory(sourceType string) string {
	s := strings.ToLower(sourceType)
	switch {
	case s == "":
		return ""
	case strings.Contains(s, "flar"):
		return "flaring"
	case strings.Contains(s, "fugitive"), strings.Contains(s, "leak"), strings.Contains(s, "storage tank"):
		return "fugitives"
	case strings.Contains(s, "vent"):
		return "venting"
	case strings.Contains(s, "combust"):
		return "stationary_combustion"
	}
	return ""
}

// =====================================================
// IEA
// =====================================================

// IEALoader reads IEA country grid factors. Factors published in gCO2/kWh
// are converted to kg CO2/kWh; missing activity codes are generated from
// the region code.
type IEALoader struct{}

func (IEALoader) Authority() string { return "IEA" }

func (IEALoader) LoadRaw(path string) ([]Record, error) {
	records, err := readTabular(path)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		rec["source_doc"] = "IEA Country CO2 Factors"
		if rec["scope"] == "" {
			rec["scope"] = "2"
		}
		if rec["subcategory"] == "" {
			rec["subcategory"] = "purchased_electricity"
		}
		if rec["gas"] == "" {
			rec["gas"] = "CO2"
		}
		if rec["market_or_location"] == "" {
			rec["market_or_location"] = "location"
		}

		unit := first(rec["factor_unit"], rec["Unit"])
		value := first(rec["factor_value"], rec["Emission Factor"], rec["EF"], rec["Grid Factor"])
		if strings.Contains(unit, "gCO2") {
			if v, err := parseFloat(value); err == nil {
				rec["factor_value"] = strconv.FormatFloat(v/1000, 'f', -1, 64)
				rec["factor_unit"] = "kg CO2/kWh"
			}
		} else if value == "" && rec["gCO2/kWh"] != "" {
			// The unit lives in the column header.
			if v, err := parseFloat(rec["gCO2/kWh"]); err == nil {
				rec["factor_value"] = strconv.FormatFloat(v/1000, 'f', -1, 64)
				rec["factor_unit"] = "kg CO2/kWh"
			}
		}

		region := first(rec["region_code"], rec["ISO Code"])
		if rec["activity_code"] == "" {
			if region == "" {
				region = "XX"
			}
			rec["activity_code"] = "S2_ELECTRICITY_" + region
		}
		geography := first(rec["geography"], rec["Country"], rec["Country/Region"])
		if rec["activity_name"] == "" {
			if geography == "" {
				geography = "Unknown"
			}
			rec["activity_name"] = "Grid electricity - " + geography
		}
	}
	return records, nil
}

func (IEALoader) ColumnMapping() map[string]string {
	return map[string]string{
		"Country":         "geography",
		"Country/Region":  "geography",
		"ISO Code":        "region_code",
		"Year":            "source_year",
		"Emission Factor": "factor_value",
		"EF":              "factor_value",
		"Grid Factor":     "factor_value",
		"Unit":            "factor_unit",
		"Technology":      "technology",
		"Grid Mix":        "technology",
	}
}
