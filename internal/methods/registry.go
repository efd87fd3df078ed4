package methods

import (
	"fmt"
	"sort"

	"ghg-ledger/inventory-engine/internal/units"
)

// Method keys as stored on Activity records. Stable; renaming one orphans
// every activity that references it.
const (
	KeyStationaryCombustionTier1 = "stationary_combustion_tier1"
	KeyStationaryCombustionTier2 = "stationary_combustion_tier2"
	KeyMobileCombustion          = "mobile_combustion"
	KeyFlaring                   = "flaring"
	KeyFlaringEnergy             = "flaring_energy"
	KeyThermalOxidizer           = "thermal_oxidizer"
	KeyComponentLeaks            = "fugitive_component_leaks"
	KeyTankLosses                = "tank_losses"
	KeyLoadingLosses             = "loading_losses"
	KeyPipelineBlowdown          = "pipeline_blowdown"
	KeyElectricityLocation       = "electricity_location"
	KeyElectricityMarket         = "electricity_market"
	KeyElectricityDual           = "electricity_dual"
	KeyPurchasedSteam            = "purchased_steam"
	KeyFreight                   = "freight"
	KeyBusinessTravelDistance    = "business_travel_distance"
	KeyBusinessTravelFuel        = "business_travel_fuel"
	KeyEmployeeCommuting         = "employee_commuting"
	KeyAirTravel                 = "air_travel"
)

// Request carries the resolved inputs for one method dispatch: the activity
// quantity and unit, its free-form params, the emission-factor values from the
// factor snapshot keyed by gas, the GWP set and the unit registry.
type Request struct {
	Quantity float64
	Unit     string
	Params   map[string]any
	Factors  map[string]float64
	GWP      GWPSet
	Units    *units.Registry
}

// Float returns the named param as a number, or def when absent.
func (r *Request) Float(key string, def float64) float64 {
	switch v := r.Params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// OptFloat returns a pointer to the named param, nil when absent. Absence and
// zero are different things for market-based electricity factors.
func (r *Request) OptFloat(key string) *float64 {
	switch v := r.Params[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	}
	return nil
}

// Int returns the named param as an int, or def when absent.
func (r *Request) Int(key string, def int) int {
	switch v := r.Params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// String returns the named param as a string, or def when absent.
func (r *Request) String(key, def string) string {
	if v, ok := r.Params[key].(string); ok {
		return v
	}
	return def
}

// FloatMap returns the named param as a string-to-number map.
func (r *Request) FloatMap(key string) map[string]float64 {
	raw, ok := r.Params[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		switch n := v.(type) {
		case float64:
			out[k] = n
		case int:
			out[k] = float64(n)
		}
	}
	return out
}

// Factor returns the factor snapshot value for a gas, zero when not supplied.
func (r *Request) Factor(gas string) float64 { return r.Factors[gas] }

// co2eFactor resolves a CO2e-denominated factor from the snapshot, whichever
// gas key the authority publishes it under.
func (r *Request) co2eFactor() float64 {
	if v, ok := r.Factors[GasCO2e]; ok {
		return v
	}
	return r.Factors[GasCO2]
}

// optGridEF returns the grid electricity factor as a pointer, preferring the
// factor snapshot over an explicit grid_ef param.
func (r *Request) optGridEF() *float64 {
	if v := r.co2eFactor(); v > 0 {
		return &v
	}
	return r.OptFloat("grid_ef")
}

// energyContentOverride builds the fuel energy-content override from params,
// nil when the defaults should apply.
func energyContentOverride(r *Request) *units.EnergyContent {
	value := r.Float("energy_content_value", 0)
	unit := r.String("energy_content_unit", "")
	if value <= 0 || unit == "" {
		return nil
	}
	return &units.EnergyContent{Value: value, Unit: unit}
}

// numField reads a numeric entry from a nested param object.
func numField(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// componentParams decodes the "components" param into leak components.
func componentParams(r *Request) ([]Component, error) {
	raw, ok := r.Params["components"].([]any)
	if !ok {
		return nil, &InputError{Field: "components", Reason: "must be a list of component entries"}
	}
	comps := make([]Component, 0, len(raw))
	for _, entry := range raw {
		fields, ok := entry.(map[string]any)
		if !ok {
			return nil, &InputError{Field: "components", Reason: "entries must be objects"}
		}
		var comp Component
		if v, ok := numField(fields, "count"); ok {
			comp.Count = int(v)
		}
		if s, ok := fields["gas"].(string); ok {
			comp.Gas = s
		}
		if v, ok := numField(fields, "ef_kg_per_year"); ok {
			comp.EFKgPerYear = v
		}
		if v, ok := numField(fields, "operating_hours"); ok {
			comp.OperatingHours = v
		}
		comps = append(comps, comp)
	}
	return comps, nil
}

// requireParams builds a validator that rejects requests missing any of the
// named params.
func requireParams(keys ...string) func(*Request) error {
	return func(r *Request) error {
		for _, key := range keys {
			if _, ok := r.Params[key]; !ok {
				return &InputError{Field: key, Reason: "required parameter missing"}
			}
		}
		return nil
	}
}

// marketInput assembles the market-based electricity input from a request.
func marketInput(r *Request) MarketElectricityInput {
	return MarketElectricityInput{
		ElectricityKWh:  r.Quantity,
		SupplierEF:      r.OptFloat("supplier_ef"),
		CertificatesKWh: r.Float("certificates_kwh", 0),
		ResidualMixEF:   r.OptFloat("residual_mix_ef"),
		GridEF:          r.optGridEF(),
	}
}

// Definition describes one registered calculation method: its stable key,
// display name, placement in the source taxonomy, an optional pre-dispatch
// validator and the compute adapter.
type Definition struct {
	Key         string
	Name        string
	Scope       int
	Subcategory string
	Validate    func(*Request) error
	Compute     func(*Request) (*Result, error)
}

// Registry holds the known calculation methods keyed by method key.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry returns a registry with all built-in methods registered.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]Definition)}
	r.registerBuiltins()
	return r
}

// Register adds or replaces a method definition.
func (r *Registry) Register(def Definition) {
	r.defs[def.Key] = def
}

// Get returns the definition for a method key.
func (r *Registry) Get(key string) (Definition, bool) {
	def, ok := r.defs[key]
	return def, ok
}

// Keys returns all registered method keys, sorted.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.defs))
	for k := range r.defs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Compute dispatches a request to the named method, running its validator
// first when one is registered.
func (r *Registry) Compute(key string, req *Request) (*Result, error) {
	def, ok := r.defs[key]
	if !ok {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unsupported method: %s", key)}
	}
	if def.Validate != nil {
		if err := def.Validate(req); err != nil {
			return nil, err
		}
	}
	return def.Compute(req)
}

// registerBuiltins registers every built-in calculation method.
func (r *Registry) registerBuiltins() {
	// Scope 1: stationary and mobile combustion
	r.Register(Definition{
		Key:         KeyStationaryCombustionTier1,
		Name:        "Stationary combustion (Tier 1)",
		Scope:       1,
		Subcategory: "stationary_combustion",
		Compute: func(req *Request) (*Result, error) {
			return Combustion(req.Units, CombustionInput{
				EnergyInput:   req.Quantity,
				EnergyUnit:    req.Unit,
				EFCO2:         req.Factor(GasCO2),
				EFCH4:         req.Factor(GasCH4),
				EFN2O:         req.Factor(GasN2O),
				OxidationFrac: req.Float("oxidation_frac", 0),
				Basis:         req.String("basis", ""),
				GWP:           req.GWP,
			})
		},
	})
	r.Register(Definition{
		Key:         KeyStationaryCombustionTier2,
		Name:        "Stationary combustion (Tier 2)",
		Scope:       1,
		Subcategory: "stationary_combustion",
		Validate:    requireParams("carbon_content_kg_per_gj"),
		Compute: func(req *Request) (*Result, error) {
			return CombustionFromComposition(req.Units, CompositionInput{
				EnergyInput:   req.Quantity,
				EnergyUnit:    req.Unit,
				CarbonContent: req.Float("carbon_content_kg_per_gj", 0),
				OxidationFrac: req.Float("oxidation_frac", 0),
				EFCH4:         req.Factor(GasCH4),
				EFN2O:         req.Factor(GasN2O),
				GWP:           req.GWP,
			})
		},
	})
	r.Register(Definition{
		Key:         KeyMobileCombustion,
		Name:        "Mobile combustion",
		Scope:       1,
		Subcategory: "mobile_combustion",
		Compute: func(req *Request) (*Result, error) {
			return MobileCombustion(req.Units, MobileInput{
				FuelConsumed:  req.Quantity,
				FuelUnit:      req.Unit,
				FuelType:      req.String("fuel_type", ""),
				EnergyContent: energyContentOverride(req),
				EFCO2:         req.Factor(GasCO2),
				EFCH4:         req.Factor(GasCH4),
				EFN2O:         req.Factor(GasN2O),
				GWP:           req.GWP,
			})
		},
	})

	// Scope 1: flaring and destruction devices
	r.Register(Definition{
		Key:         KeyFlaring,
		Name:        "Flare stack (volume)",
		Scope:       1,
		Subcategory: "flaring",
		Compute: func(req *Request) (*Result, error) {
			return Flare(req.Units, FlareInput{
				GasVolume:             req.Quantity,
				GasVolumeUnit:         req.Unit,
				EFCO2:                 req.Factor(GasCO2),
				DestructionEfficiency: req.Float("destruction_efficiency", 0),
				AssistGasVolume:       req.Float("assist_gas_volume", 0),
				AssistGasUnit:         req.String("assist_gas_unit", ""),
				AssistEFCO2:           req.Float("assist_gas_ef_co2", 0),
				UnburnedCH4Factor:     req.Factor(GasCH4),
				GWP:                   req.GWP,
			})
		},
	})
	r.Register(Definition{
		Key:         KeyFlaringEnergy,
		Name:        "Flare stack (energy)",
		Scope:       1,
		Subcategory: "flaring",
		Compute: func(req *Request) (*Result, error) {
			return FlareFromEnergy(req.Units, FlareFromEnergyInput{
				EnergyContent:         req.Quantity,
				EnergyUnit:            req.Unit,
				CarbonContentFactor:   req.Float("carbon_content_kg_per_gj", 0),
				DestructionEfficiency: req.Float("destruction_efficiency", 0),
				GWP:                   req.GWP,
			})
		},
	})
	r.Register(Definition{
		Key:         KeyThermalOxidizer,
		Name:        "Thermal oxidizer",
		Scope:       1,
		Subcategory: "flaring",
		Compute: func(req *Request) (*Result, error) {
			return ThermalOxidizer(req.Units, ThermalOxidizerInput{
				VOCMass:               req.Quantity,
				VOCUnit:               req.Unit,
				DestructionEfficiency: req.Float("destruction_efficiency", 0),
				VOCToCO2Ratio:         req.Float("voc_to_co2_ratio", 0),
			})
		},
	})

	// Scope 1: fugitives and venting
	r.Register(Definition{
		Key:         KeyComponentLeaks,
		Name:        "Fugitive component leaks",
		Scope:       1,
		Subcategory: "fugitives",
		Validate:    requireParams("components"),
		Compute: func(req *Request) (*Result, error) {
			comps, err := componentParams(req)
			if err != nil {
				return nil, err
			}
			return ComponentLeaks(comps, req.GWP)
		},
	})
	r.Register(Definition{
		Key:         KeyTankLosses,
		Name:        "Tank flashing and breathing losses",
		Scope:       1,
		Subcategory: "fugitives",
		Compute: func(req *Request) (*Result, error) {
			return TankLosses(req.Units, TankLossesInput{
				Throughput:     req.Quantity,
				ThroughputUnit: req.Unit,
				LossFactor:     req.Factor(GasVOC),
				VOCToCH4Ratio:  req.Float("voc_to_ch4_ratio", 0),
				GWP:            req.GWP,
			})
		},
	})
	r.Register(Definition{
		Key:         KeyLoadingLosses,
		Name:        "Product loading losses",
		Scope:       1,
		Subcategory: "fugitives",
		Compute: func(req *Request) (*Result, error) {
			return LoadingLosses(req.Units, LoadingInput{
				ProductLoaded:           req.Quantity,
				ProductUnit:             req.Unit,
				LossFactor:              req.Factor(GasVOC),
				VaporRecoveryEfficiency: req.Float("vapor_recovery_efficiency", 0),
				VOCToCH4Ratio:           req.Float("voc_to_ch4_ratio", 0),
				GWP:                     req.GWP,
			})
		},
	})
	r.Register(Definition{
		Key:         KeyPipelineBlowdown,
		Name:        "Pipeline blowdown",
		Scope:       1,
		Subcategory: "venting",
		Validate:    requireParams("gas_pressure"),
		Compute: func(req *Request) (*Result, error) {
			return PipelineBlowdown(req.Units, BlowdownInput{
				PipelineVolume:     req.Quantity,
				PipelineVolumeUnit: req.Unit,
				GasPressure:        req.Float("gas_pressure", 0),
				GasPressureUnit:    req.String("gas_pressure_unit", "bar"),
				TemperatureC:       req.Float("temperature_c", 15),
				CH4MoleFraction:    req.Float("ch4_mole_fraction", 0),
				GWP:                req.GWP,
			})
		},
	})

	// Scope 2: purchased energy
	r.Register(Definition{
		Key:         KeyElectricityLocation,
		Name:        "Electricity (location-based)",
		Scope:       2,
		Subcategory: "purchased_electricity",
		Compute: func(req *Request) (*Result, error) {
			return LocationBasedElectricity(LocationElectricityInput{
				ElectricityKWh: req.Quantity,
				GridEF:         req.co2eFactor(),
				CH4Fraction:    req.Float("ch4_fraction", 0),
				N2OFraction:    req.Float("n2o_fraction", 0),
				GWP:            req.GWP,
			})
		},
	})
	r.Register(Definition{
		Key:         KeyElectricityMarket,
		Name:        "Electricity (market-based)",
		Scope:       2,
		Subcategory: "purchased_electricity",
		Compute: func(req *Request) (*Result, error) {
			return MarketBasedElectricity(marketInput(req))
		},
	})
	r.Register(Definition{
		Key:         KeyElectricityDual,
		Name:        "Electricity (dual reporting)",
		Scope:       2,
		Subcategory: "purchased_electricity",
		Compute: func(req *Request) (*Result, error) {
			dual, err := DualReportingElectricity(marketInput(req), req.co2eFactor(), req.GWP)
			if err != nil {
				return nil, err
			}
			// The location-based side is the canonical inventory line; the
			// full pair travels in the details for disclosure.
			return &Result{
				Emissions:   dual.LocationBased.Emissions,
				TotalCO2eKg: dual.LocationBased.TotalCO2eKg,
				Method:      "Dual reporting",
				Details: map[string]any{
					"location_based":  dual.LocationBased,
					"market_based":    dual.MarketBased,
					"electricity_kwh": dual.ElectricityKWh,
				},
			}, nil
		},
	})
	r.Register(Definition{
		Key:         KeyPurchasedSteam,
		Name:        "Purchased steam and heat",
		Scope:       2,
		Subcategory: "purchased_steam",
		Compute: func(req *Request) (*Result, error) {
			return PurchasedSteamHeat(req.Units, PurchasedEnergyInput{
				EnergyQuantity: req.Quantity,
				EnergyUnit:     req.Unit,
				EmissionFactor: req.co2eFactor(),
			})
		},
	})

	// Scope 3: transport
	r.Register(Definition{
		Key:         KeyFreight,
		Name:        "Freight transport",
		Scope:       3,
		Subcategory: "transport_upstream",
		Validate:    requireParams("distance"),
		Compute: func(req *Request) (*Result, error) {
			return Freight(req.Units, FreightInput{
				Mass:         req.Quantity,
				MassUnit:     req.Unit,
				Distance:     req.Float("distance", 0),
				DistanceUnit: req.String("distance_unit", "km"),
				EFPerTonneKm: req.co2eFactor(),
				LoadFactor:   req.Float("load_factor", 0),
			})
		},
	})
	r.Register(Definition{
		Key:         KeyBusinessTravelDistance,
		Name:        "Business travel (distance)",
		Scope:       3,
		Subcategory: "business_travel",
		Compute: func(req *Request) (*Result, error) {
			return BusinessTravelDistance(TravelDistanceInput{
				Distance:     req.Quantity,
				DistanceUnit: req.Unit,
				EFPerKm:      req.co2eFactor(),
				Passengers:   req.Int("passengers", 0),
			})
		},
	})
	r.Register(Definition{
		Key:         KeyBusinessTravelFuel,
		Name:        "Business travel (fuel)",
		Scope:       3,
		Subcategory: "business_travel",
		Compute: func(req *Request) (*Result, error) {
			return BusinessTravelFuel(req.Units, MobileInput{
				FuelConsumed:  req.Quantity,
				FuelUnit:      req.Unit,
				FuelType:      req.String("fuel_type", ""),
				EnergyContent: energyContentOverride(req),
				EFCO2:         req.Factor(GasCO2),
				EFCH4:         req.Factor(GasCH4),
				EFN2O:         req.Factor(GasN2O),
				GWP:           req.GWP,
			})
		},
	})
	r.Register(Definition{
		Key:         KeyEmployeeCommuting,
		Name:        "Employee commuting",
		Scope:       3,
		Subcategory: "employee_commuting",
		Validate:    requireParams("avg_commute_distance_km", "working_days", "mode_split"),
		Compute: func(req *Request) (*Result, error) {
			return EmployeeCommuting(CommutingInput{
				Employees:            int(req.Quantity),
				AvgCommuteDistanceKm: req.Float("avg_commute_distance_km", 0),
				WorkingDays:          req.Int("working_days", 0),
				ModeSplit:            req.FloatMap("mode_split"),
				ModeEF:               req.FloatMap("mode_ef"),
			})
		},
	})
	r.Register(Definition{
		Key:         KeyAirTravel,
		Name:        "Air travel",
		Scope:       3,
		Subcategory: "business_travel",
		Compute: func(req *Request) (*Result, error) {
			return AirTravel(AirTravelInput{
				DistanceKm:       toKilometers(req.Quantity, req.Unit),
				FlightClass:      req.String("flight_class", ""),
				RadiativeForcing: req.Float("radiative_forcing", 0),
				EFBase:           req.Float("ef_base", req.co2eFactor()),
			})
		},
	})
}
