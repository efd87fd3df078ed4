package factors

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Documentation strings for the canonical columns, in CanonicalColumns order.
var columnDescriptions = []string{
	"GHG Protocol scope (1, 2, or 3)",
	"Emission subcategory (e.g., stationary_combustion, flaring)",
	"Stable activity code (e.g., S1_SC_NG)",
	"Human-readable activity name",
	"Greenhouse gas (CO2, CH4, N2O, etc.)",
	"Emission factor numeric value",
	"Unit of emission factor (e.g., kg CO2/GJ)",
	"Energy basis: HHV, LHV, or NA",
	"Oxidation/combustion fraction (0-1)",
	"Fuel physical state: gas, liquid, solid, or NA",
	"Authoritative source: DEFRA, EPA, IPCC, API, IEA, Other",
	"Source document name",
	"Table/section reference within source document",
	"Publication year of source",
	"Geographic applicability (country or \"Global\")",
	"ISO country code (e.g., EG, US) or region code",
	"For electricity: location, market, or NA",
	"Technology/equipment type (optional)",
	"Uncertainty as percentage (optional)",
	"Valid from date (YYYY-MM-DD)",
	"Valid to date (YYYY-MM-DD) or blank if current",
	"Full citation or URL",
	"Method equation reference (e.g., EPA C-1)",
	"Additional notes",
}

var columnExamples = []string{
	"1", "stationary_combustion", "S1_SC_NG", "Pipeline natural gas",
	"CO2", "56.1", "kg CO2/GJ", "HHV", "0.995", "gas",
	"EPA", "40 CFR 98 Subpart C", "Table C-1", "2025",
	"USA", "US", "NA", "boiler", "3.0",
	"2025-01-01", "", "https://...", "EPA C-1", "Example",
}

// WriteTemplate writes the emission factor master workbook used for manual
// factor entry: the canonical factor sheet with illustrative rows, GWP sets,
// an activity catalog and per-column documentation.
func WriteTemplate(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "emission_factors"); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeSheet(f, "emission_factors", header, toCells(CanonicalColumns), sampleFactorRows()); err != nil {
		return err
	}
	if err := writeSheet(f, "gwp_sets", header,
		[]interface{}{"set_name", "gas", "horizon_yr", "value"}, gwpRows()); err != nil {
		return err
	}
	if err := writeSheet(f, "activity_catalog", header,
		[]interface{}{"activity_code", "activity_name", "scope", "subcategory", "default_unit", "method_key"},
		activityCatalogRows()); err != nil {
		return err
	}
	if err := writeSheet(f, "documentation", header,
		[]interface{}{"Field", "Description", "Example"}, documentationRows()); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, header []interface{}, rows [][]interface{}) error {
	if sheet != "emission_factors" {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		return fmt.Errorf("failed to size %s columns: %w", sheet, err)
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func toCells(cols []string) []interface{} {
	out := make([]interface{}, len(cols))
	for i, c := range cols {
		out[i] = c
	}
	return out
}

func sampleFactorRows() [][]interface{} {
	return [][]interface{}{
		{1, "stationary_combustion", "S1_SC_NG", "Pipeline natural gas - combustion", "CO2",
			56.1, "kg CO2/GJ", "HHV", 0.995, "gas",
			"EPA", "40 CFR 98 Subpart C", "Table C-1", 2025,
			"USA", "US", "NA", "boiler", 3.0,
			"2025-01-01", "", "https://www.ecfr.gov/current/title-40/chapter-I/subchapter-C/part-98",
			"EPA C-1", "Default emission factor for natural gas combustion"},
		{1, "stationary_combustion", "S1_SC_NG", "Pipeline natural gas - combustion", "CH4",
			0.001, "kg CH4/GJ", "HHV", 1.0, "gas",
			"EPA", "40 CFR 98 Subpart C", "Table C-2", 2025,
			"USA", "US", "NA", "boiler", 50.0,
			"2025-01-01", "", "https://www.ecfr.gov/current/title-40/chapter-I/subchapter-C/part-98",
			"EPA C-2", "Methane emissions from natural gas combustion"},
		{1, "stationary_combustion", "S1_SC_NG", "Pipeline natural gas - combustion", "N2O",
			0.0001, "kg N2O/GJ", "HHV", 1.0, "gas",
			"EPA", "40 CFR 98 Subpart C", "Table C-2", 2025,
			"USA", "US", "NA", "boiler", 50.0,
			"2025-01-01", "", "https://www.ecfr.gov/current/title-40/chapter-I/subchapter-C/part-98",
			"EPA C-2", "Nitrous oxide emissions from natural gas combustion"},
		{1, "stationary_combustion", "S1_SC_FUELGAS", "Refinery fuel gas - combustion", "CO2",
			57.5, "kg CO2/GJ", "HHV", 0.995, "gas",
			"IPCC", "2006 GL Vol2", "Ch2 defaults", 2019,
			"Global", "GL", "NA", "heater", 5.0,
			"2019-01-01", "", "https://www.ipcc-nggip.iges.or.jp/public/2006gl/",
			"IPCC V2Ch2", "Composition-specific overrides allowed"},
		{1, "stationary_combustion", "S1_SC_DIESEL", "Diesel oil - combustion", "CO2",
			74.1, "kg CO2/GJ", "HHV", 0.99, "liquid",
			"IPCC", "2006 GL Vol2", "Table 2.3", 2019,
			"Global", "GL", "NA", "generator", 5.0,
			"2019-01-01", "", "https://www.ipcc-nggip.iges.or.jp/public/2006gl/",
			"IPCC V2Ch2 Eq2.1", "Default diesel emission factor"},
		{2, "purchased_electricity", "S2_ELECTRICITY", "Grid electricity - Egypt (location)", "CO2",
			0.45, "kg CO2/kWh", "NA", "", "NA",
			"IEA", "Country CO2 factors", "Egypt 2023", 2024,
			"Egypt", "EG", "location", "grid-mix", 10.0,
			"2024-01-01", "", "https://www.iea.org/data-and-statistics",
			"IEA method", "Illustrative Egypt grid emission factor"},
		{1, "flaring", "S1_FLARE_NG", "Natural gas flaring", "CO2",
			2.55, "kg CO2/Nm3", "NA", 0.98, "gas",
			"API", "API Compendium", "Flaring defaults", 2021,
			"Global", "GL", "NA", "smokeless_flare", 15.0,
			"2021-01-01", "", "https://www.api.org/oil-and-natural-gas/environment/clean-air/ghg-emissions-estimation",
			"API Compendium 2021", "Assumes 98% destruction efficiency for smokeless flare"},
		{3, "transport_downstream", "S3_TRUCK_DIESEL", "Heavy duty truck - diesel", "CO2",
			0.062, "kg CO2/tonne-km", "NA", "", "NA",
			"DEFRA", "2024 GHG Conversion Factors", "Freight transport", 2024,
			"UK", "GB", "NA", "articulated_hgv", 20.0,
			"2024-01-01", "", "https://www.gov.uk/government/publications/greenhouse-gas-reporting-conversion-factors-2024",
			"DEFRA 2024", "Average load factor included"},
	}
}

func gwpRows() [][]interface{} {
	return [][]interface{}{
		{"AR5", "CO2", 100, 1},
		{"AR5", "CH4", 100, 28},
		{"AR5", "N2O", 100, 265},
		{"AR5", "SF6", 100, 23500},
		{"AR5", "HFC-134a", 100, 1300},
		{"AR6", "CO2", 100, 1},
		{"AR6", "CH4", 100, 27.9},
		{"AR6", "N2O", 100, 273},
		{"AR6", "SF6", 100, 25200},
		{"AR6", "HFC-134a", 100, 1530},
	}
}

func activityCatalogRows() [][]interface{} {
	return [][]interface{}{
		{"S1_SC_NG", "Natural gas combustion", 1, "stationary_combustion", "GJ", "tier1"},
		{"S1_SC_DIESEL", "Diesel combustion", 1, "stationary_combustion", "GJ", "tier1"},
		{"S2_ELECTRICITY", "Grid electricity", 2, "purchased_electricity", "kWh", "electricity_location"},
		{"S1_FLARE_NG", "Natural gas flaring", 1, "flaring", "Nm3", "flaring"},
		{"S3_TRUCK_DIESEL", "Truck transportation", 3, "transport_downstream", "tonne-km", "freight"},
	}
}

func documentationRows() [][]interface{} {
	rows := make([][]interface{}, len(CanonicalColumns))
	for i, col := range CanonicalColumns {
		rows[i] = []interface{}{col, columnDescriptions[i], columnExamples[i]}
	}
	return rows
}
