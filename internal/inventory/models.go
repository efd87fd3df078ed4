// Package inventory defines the persistent entities of the GHG inventory:
// organizations, facilities, the source taxonomy, reported activities,
// canonical emission factors, GWP tables and immutable calculation records.
package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// GWPSetName identifies an IPCC assessment-report GWP table.
type GWPSetName string

const (
	GWPSetAR5 GWPSetName = "AR5"
	GWPSetAR6 GWPSetName = "AR6"
)

// ElectricityMethod selects the Scope 2 accounting method.
type ElectricityMethod string

const (
	ElectricityLocationBased ElectricityMethod = "location_based"
	ElectricityMarketBased   ElectricityMethod = "market_based"
	ElectricityDualReporting ElectricityMethod = "dual"
)

// FactorBasis is the heating-value convention of an emission factor.
type FactorBasis string

const (
	BasisHHV FactorBasis = "HHV"
	BasisLHV FactorBasis = "LHV"
	BasisNA  FactorBasis = "NA"
)

// Organization is the reporting entity owning facilities and activities.
type Organization struct {
	ID                    uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name                  string            `gorm:"not null" json:"name"`
	GWPSet                GWPSetName        `gorm:"not null;default:'AR5'" json:"gwp_set"`
	ElectricityMethod     ElectricityMethod `gorm:"not null;default:'location_based'" json:"electricity_method"`
	ConsolidationApproach string            `gorm:"not null;default:'operational_control'" json:"consolidation_approach"`
	BaseYear              int               `json:"base_year"`
	PeriodStart           time.Time         `json:"period_start"`
	PeriodEnd             time.Time         `json:"period_end"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// Facility is a reporting site within an organization.
type Facility struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organization_id"`
	Name           string    `gorm:"not null" json:"name"`
	Country        string    `json:"country"`
	GridRegion     string    `json:"grid_region"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Organization Organization `gorm:"foreignKey:OrganizationID" json:"-"`
}

// Source is a scope+subcategory taxonomy entry. Read-mostly; seeded once.
type Source struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Scope       int       `gorm:"not null;uniqueIndex:idx_sources_scope_subcategory" json:"scope"`
	Subcategory string    `gorm:"not null;uniqueIndex:idx_sources_scope_subcategory" json:"subcategory"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Activity is one reported event (fuel burned, kWh purchased, km driven).
// Mutable until a Calculation is created from it.
type Activity struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	FacilityID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"facility_id"`
	SourceID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"source_id"`
	ActivityType string         `gorm:"not null" json:"activity_type"`
	ActivityDate time.Time      `gorm:"not null;index" json:"activity_date"`
	MethodKey    string         `gorm:"not null" json:"method_key"`
	Quantity     float64        `json:"quantity"`
	Unit         string         `json:"unit"`
	Params       datatypes.JSON `json:"params"`
	EvidenceNote string         `json:"evidence_note"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`

	Facility Facility `gorm:"foreignKey:FacilityID" json:"-"`
	Source   Source   `gorm:"foreignKey:SourceID" json:"-"`
}

// EmissionFactor is one row of the canonical factor schema. Live rows are
// superseded over time by ingestion; history is preserved in Calculation
// snapshots, never here.
type EmissionFactor struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Scope             int            `gorm:"not null;index" json:"scope"`
	Subcategory       string         `gorm:"index" json:"subcategory"`
	ActivityCode      string         `gorm:"not null;index" json:"activity_code"`
	ActivityName      string         `json:"activity_name"`
	Gas               string         `gorm:"not null" json:"gas"`
	FactorValue       float64        `gorm:"not null" json:"factor_value"`
	FactorUnit        string         `gorm:"not null" json:"factor_unit"`
	Basis             FactorBasis    `gorm:"not null;default:'NA'" json:"basis"`
	OxidationFrac     float64        `gorm:"not null;default:1.0" json:"oxidation_frac"`
	FuelState         string         `gorm:"default:'NA'" json:"fuel_state"`
	SourceAuthority   string         `gorm:"not null;index" json:"source_authority"`
	SourceDoc         string         `json:"source_doc"`
	SourceTable       string         `json:"source_table"`
	SourceYear        int            `json:"source_year"`
	Geography         string         `gorm:"default:'Global'" json:"geography"`
	RegionCode        string         `json:"region_code"`
	MarketOrLocation  string         `gorm:"default:'NA'" json:"market_or_location"`
	Technology        string         `json:"technology"`
	UncertaintyPct    *float64       `json:"uncertainty_pct"`
	ValidFrom         time.Time      `gorm:"not null" json:"valid_from"`
	ValidTo           *time.Time     `json:"valid_to"`
	Citation          string         `json:"citation"`
	MethodEquationRef string         `json:"method_equation_ref"`
	Notes             string         `json:"notes"`
	Tags              pq.StringArray `gorm:"type:text[]" json:"tags,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// GWPValue is one gas entry of a GWP set (set, gas, horizon, multiplier).
type GWPValue struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SetName   GWPSetName `gorm:"not null;uniqueIndex:idx_gwp_set_gas" json:"set_name"`
	Gas       string     `gorm:"not null;uniqueIndex:idx_gwp_set_gas" json:"gas"`
	HorizonYr int        `gorm:"not null;default:100" json:"horizon_yr"`
	Value     float64    `gorm:"not null" json:"value"`
	CreatedAt time.Time  `json:"created_at"`
}

// Calculation is the immutable result of running one method over one
// Activity. input_snapshot and factor_snapshot are value copies frozen at
// write time; later edits to the live Activity or EmissionFactor never reach
// them. Recalculation inserts a new row.
type Calculation struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ActivityID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"activity_id"`
	MethodKey      string         `gorm:"not null" json:"method_key"`
	EngineVersion  string         `gorm:"not null" json:"engine_version"`
	InputSnapshot  datatypes.JSON `gorm:"not null" json:"input_snapshot"`
	FactorSnapshot datatypes.JSON `json:"factor_snapshot"`
	Results        datatypes.JSON `gorm:"not null" json:"results"`
	InputHash      string         `gorm:"not null" json:"input_hash"`
	FactorHash     string         `json:"factor_hash"`
	Receipt        string         `json:"receipt,omitempty"`
	PerformedBy    string         `json:"performed_by"`
	CalculatedAt   time.Time      `gorm:"not null;index" json:"calculated_at"`
	CreatedAt      time.Time      `json:"created_at"`

	Activity Activity `gorm:"foreignKey:ActivityID" json:"-"`
}

// Attachment records an evidence file stored in object storage.
type Attachment struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ActivityID uuid.UUID `gorm:"type:uuid;not null;index" json:"activity_id"`
	FileName   string    `gorm:"not null" json:"file_name"`
	ObjectKey  string    `gorm:"not null" json:"object_key"`
	SHA256     string    `gorm:"not null" json:"sha256"`
	SizeBytes  int64     `json:"size_bytes"`
	Tag        string    `json:"tag"`
	UploadedBy string    `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditEvent is an append-only log entry for data-changing operations.
type AuditEvent struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Actor     string         `json:"actor"`
	Action    string         `gorm:"not null" json:"action"`
	Entity    string         `gorm:"not null" json:"entity"`
	EntityID  uuid.UUID      `gorm:"type:uuid" json:"entity_id"`
	Detail    datatypes.JSON `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}
