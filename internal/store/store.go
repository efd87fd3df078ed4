// Package store provides data access for the inventory entities. The
// canonical implementation is backed by PostgreSQL through GORM; an
// in-memory implementation backs tests and ephemeral runs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"ghg-ledger/inventory-engine/internal/inventory"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ActivityFilter narrows activity listings. Zero-valued fields are ignored.
type ActivityFilter struct {
	OrganizationID *uuid.UUID
	FacilityID     *uuid.UUID
	SourceID       *uuid.UUID
	MethodKey      string
	From           time.Time
	To             time.Time
}

// FactorQuery selects emission factors valid at a point in time. AsOf zero
// means now. Optional fields narrow the match when set.
type FactorQuery struct {
	Scope        int
	ActivityCode string
	Subcategory  string
	Gas          string
	Geography    string
	Authority    string
	AsOf         time.Time
}

// CalculationFilter narrows calculation listings.
type CalculationFilter struct {
	ActivityID *uuid.UUID
	From       time.Time
	To         time.Time
	Limit      int
}

// CalculationRow joins the latest calculation of an activity with the
// activity itself and its facility and source, the shape rollups consume.
type CalculationRow struct {
	Calculation inventory.Calculation
	Activity    inventory.Activity
	Facility    inventory.Facility
	Source      inventory.Source
}

// Repository defines the interface for inventory data access.
type Repository interface {
	// Organizations
	CreateOrganization(ctx context.Context, org *inventory.Organization) error
	GetOrganization(ctx context.Context, id uuid.UUID) (*inventory.Organization, error)
	UpdateOrganization(ctx context.Context, org *inventory.Organization) error
	ListOrganizations(ctx context.Context) ([]inventory.Organization, error)

	// Facilities
	CreateFacility(ctx context.Context, facility *inventory.Facility) error
	GetFacility(ctx context.Context, id uuid.UUID) (*inventory.Facility, error)
	UpdateFacility(ctx context.Context, facility *inventory.Facility) error
	ListFacilities(ctx context.Context, organizationID uuid.UUID) ([]inventory.Facility, error)

	// Source taxonomy
	GetSource(ctx context.Context, id uuid.UUID) (*inventory.Source, error)
	FindSource(ctx context.Context, scope int, subcategory string) (*inventory.Source, error)
	ListSources(ctx context.Context) ([]inventory.Source, error)

	// Activities
	CreateActivity(ctx context.Context, activity *inventory.Activity) error
	GetActivity(ctx context.Context, id uuid.UUID) (*inventory.Activity, error)
	UpdateActivity(ctx context.Context, activity *inventory.Activity) error
	DeleteActivity(ctx context.Context, id uuid.UUID) error
	ListActivities(ctx context.Context, filter ActivityFilter) ([]inventory.Activity, error)

	// Emission factors
	CreateFactor(ctx context.Context, factor *inventory.EmissionFactor) error
	CreateFactors(ctx context.Context, factors []inventory.EmissionFactor) error
	UpdateFactor(ctx context.Context, factor *inventory.EmissionFactor) error
	RetireFactors(ctx context.Context, authority string, activityCodes []string, asOf time.Time) (int64, error)
	LookupFactors(ctx context.Context, query FactorQuery) ([]inventory.EmissionFactor, error)
	ListFactors(ctx context.Context) ([]inventory.EmissionFactor, error)

	// GWP tables
	GWPSet(ctx context.Context, set inventory.GWPSetName) (map[string]float64, error)

	// Calculations. CreateCalculation writes the record and its audit event
	// in one transaction; calculations are never updated or deleted.
	CreateCalculation(ctx context.Context, calc *inventory.Calculation, event *inventory.AuditEvent) error
	GetCalculation(ctx context.Context, id uuid.UUID) (*inventory.Calculation, error)
	LatestCalculation(ctx context.Context, activityID uuid.UUID) (*inventory.Calculation, error)
	ListCalculations(ctx context.Context, filter CalculationFilter) ([]inventory.Calculation, error)
	LatestCalculationRows(ctx context.Context, organizationID uuid.UUID, from, to time.Time) ([]CalculationRow, error)

	// Attachments
	CreateAttachment(ctx context.Context, attachment *inventory.Attachment) error
	ListAttachments(ctx context.Context, activityID uuid.UUID) ([]inventory.Attachment, error)

	// Audit trail
	AppendAudit(ctx context.Context, event *inventory.AuditEvent) error
	ListAuditEvents(ctx context.Context, entity string, entityID uuid.UUID) ([]inventory.AuditEvent, error)

	// Schema and reference data
	Migrate(ctx context.Context) error
	SeedReferenceData(ctx context.Context) error
}
