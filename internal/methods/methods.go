// Package methods implements the calculation methods library: pure functions
// computing per-gas mass and CO2e for each emission category (stationary and
// mobile combustion, flaring, fugitives, purchased energy, transport). Every
// function takes its configuration explicitly and returns a Result whose JSON
// form is the serializable nested mapping consumed by aggregation, QA/QC and
// reporting.
package methods

import (
	"encoding/json"
	"strings"
)

// Gas names used across method results.
const (
	GasCO2     = "CO2"
	GasCH4     = "CH4"
	GasN2O     = "N2O"
	GasVOC     = "VOC"
	GasCO2e    = "CO2e"
	GasCO2eRFI = "CO2e_with_RFI"
)

// GWPSet carries the 100-year global warming potentials applied to non-CO2
// gases. The zero value resolves to the AR5 defaults (CH4 28, N2O 265); an
// organization configured for AR6 passes 27.9/273.
type GWPSet struct {
	CH4 float64
	N2O float64
}

// DefaultGWP is the IPCC AR5 100-year set.
var DefaultGWP = GWPSet{CH4: 28, N2O: 265}

// AR6GWP is the IPCC AR6 100-year set.
var AR6GWP = GWPSet{CH4: 27.9, N2O: 273}

func (g GWPSet) orDefault() GWPSet {
	if g.CH4 == 0 {
		g.CH4 = DefaultGWP.CH4
	}
	if g.N2O == 0 {
		g.N2O = DefaultGWP.N2O
	}
	return g
}

// GasEmission is one gas line of a calculation result.
type GasEmission struct {
	MassKg float64 `json:"mass_kg"`
	CO2eKg float64 `json:"co2e_kg"`
	GWP    float64 `json:"gwp"`
}

// Result is the outcome of one calculation method. Details carries
// method-specific values (energy_input_gj, destruction_efficiency, ...) that
// serialize at the top level of the result document alongside emissions and
// total_co2e_kg, matching the shape stored in Calculation records.
type Result struct {
	Emissions   map[string]GasEmission
	TotalCO2eKg float64
	Method      string
	Details     map[string]any
}

// MarshalJSON flattens Details into the top-level result object.
func (r Result) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(r.Details)+3)
	for k, v := range r.Details {
		doc[k] = v
	}
	doc["emissions"] = r.Emissions
	doc["total_co2e_kg"] = r.TotalCO2eKg
	if r.Method != "" {
		doc["method"] = r.Method
	}
	return json.Marshal(doc)
}

// UnmarshalJSON restores a result document, collecting unknown top-level keys
// back into Details.
func (r *Result) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	r.Emissions = map[string]GasEmission{}
	r.Details = map[string]any{}
	for k, raw := range doc {
		switch k {
		case "emissions":
			if err := json.Unmarshal(raw, &r.Emissions); err != nil {
				return err
			}
		case "total_co2e_kg":
			if err := json.Unmarshal(raw, &r.TotalCO2eKg); err != nil {
				return err
			}
		case "method":
			if err := json.Unmarshal(raw, &r.Method); err != nil {
				return err
			}
		default:
			var v any
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			r.Details[k] = v
		}
	}
	return nil
}

// gasLine builds a GasEmission from mass and GWP.
func gasLine(massKg, gwp float64) GasEmission {
	return GasEmission{MassKg: massKg, CO2eKg: massKg * gwp, GWP: gwp}
}

func normalizedUnit(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}
