package inventory

// SeedGWPValues returns the IPCC AR5 and AR6 100-year GWP tables used to seed
// a fresh database.
func SeedGWPValues() []GWPValue {
	return []GWPValue{
		{SetName: GWPSetAR5, Gas: "CO2", HorizonYr: 100, Value: 1},
		{SetName: GWPSetAR5, Gas: "CH4", HorizonYr: 100, Value: 28},
		{SetName: GWPSetAR5, Gas: "N2O", HorizonYr: 100, Value: 265},
		{SetName: GWPSetAR5, Gas: "SF6", HorizonYr: 100, Value: 23500},
		{SetName: GWPSetAR5, Gas: "HFC-134a", HorizonYr: 100, Value: 1300},
		{SetName: GWPSetAR5, Gas: "HFC-32", HorizonYr: 100, Value: 677},
		{SetName: GWPSetAR5, Gas: "HFC-125", HorizonYr: 100, Value: 3170},
		{SetName: GWPSetAR5, Gas: "CF4", HorizonYr: 100, Value: 6630},

		{SetName: GWPSetAR6, Gas: "CO2", HorizonYr: 100, Value: 1},
		{SetName: GWPSetAR6, Gas: "CH4", HorizonYr: 100, Value: 27.9},
		{SetName: GWPSetAR6, Gas: "N2O", HorizonYr: 100, Value: 273},
		{SetName: GWPSetAR6, Gas: "SF6", HorizonYr: 100, Value: 25200},
		{SetName: GWPSetAR6, Gas: "HFC-134a", HorizonYr: 100, Value: 1530},
		{SetName: GWPSetAR6, Gas: "HFC-32", HorizonYr: 100, Value: 771},
		{SetName: GWPSetAR6, Gas: "HFC-125", HorizonYr: 100, Value: 3740},
		{SetName: GWPSetAR6, Gas: "CF4", HorizonYr: 100, Value: 7380},
	}
}

// SeedSources returns the standard source taxonomy for a petroleum-sector
// inventory.
func SeedSources() []Source {
	return []Source{
		{Scope: 1, Subcategory: "stationary_combustion", Description: "Stationary fuel combustion"},
		{Scope: 1, Subcategory: "mobile_combustion", Description: "Mobile fuel combustion"},
		{Scope: 1, Subcategory: "flaring", Description: "Flare and thermal oxidizer"},
		{Scope: 1, Subcategory: "fugitives", Description: "Fugitive equipment leaks"},
		{Scope: 1, Subcategory: "process_co2", Description: "Process CO2 emissions"},
		{Scope: 1, Subcategory: "venting", Description: "Intentional venting"},

		{Scope: 2, Subcategory: "purchased_electricity", Description: "Purchased electricity"},
		{Scope: 2, Subcategory: "purchased_steam", Description: "Purchased steam"},
		{Scope: 2, Subcategory: "purchased_heat", Description: "Purchased heating"},
		{Scope: 2, Subcategory: "purchased_cooling", Description: "Purchased cooling"},

		{Scope: 3, Subcategory: "transport_upstream", Description: "Upstream transportation"},
		{Scope: 3, Subcategory: "transport_downstream", Description: "Downstream transportation"},
		{Scope: 3, Subcategory: "business_travel", Description: "Business travel"},
		{Scope: 3, Subcategory: "employee_commuting", Description: "Employee commuting"},
		{Scope: 3, Subcategory: "waste_disposal", Description: "Waste disposal"},
	}
}
