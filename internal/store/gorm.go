package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"ghg-ledger/inventory-engine/internal/inventory"
)

// Open connects to PostgreSQL using the given DSN.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// gormRepository implements Repository using PostgreSQL through GORM.
type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a PostgreSQL-backed repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(
		&inventory.Organization{},
		&inventory.Facility{},
		&inventory.Source{},
		&inventory.Activity{},
		&inventory.EmissionFactor{},
		&inventory.GWPValue{},
		&inventory.Calculation{},
		&inventory.Attachment{},
		&inventory.AuditEvent{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// SeedReferenceData inserts the source taxonomy and GWP tables, skipping
// rows that already exist.
func (r *gormRepository) SeedReferenceData(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	for _, source := range inventory.SeedSources() {
		var existing inventory.Source
		err := db.Where("scope = ? AND subcategory = ?", source.Scope, source.Subcategory).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			if err := db.Create(&source).Error; err != nil {
				return fmt.Errorf("failed to seed source %s: %w", source.Subcategory, err)
			}
		} else if err != nil {
			return fmt.Errorf("failed to check source %s: %w", source.Subcategory, err)
		}
	}
	for _, gwp := range inventory.SeedGWPValues() {
		var existing inventory.GWPValue
		err := db.Where("set_name = ? AND gas = ?", gwp.SetName, gwp.Gas).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			if err := db.Create(&gwp).Error; err != nil {
				return fmt.Errorf("failed to seed GWP value %s/%s: %w", gwp.SetName, gwp.Gas, err)
			}
		} else if err != nil {
			return fmt.Errorf("failed to check GWP value %s/%s: %w", gwp.SetName, gwp.Gas, err)
		}
	}
	return nil
}

// =====================================================
// Organizations
// =====================================================

func (r *gormRepository) CreateOrganization(ctx context.Context, org *inventory.Organization) error {
	if err := r.db.WithContext(ctx).Create(org).Error; err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

func (r *gormRepository) GetOrganization(ctx context.Context, id uuid.UUID) (*inventory.Organization, error) {
	var org inventory.Organization
	if err := r.db.WithContext(ctx).First(&org, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

func (r *gormRepository) UpdateOrganization(ctx context.Context, org *inventory.Organization) error {
	if err := r.db.WithContext(ctx).Save(org).Error; err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	return nil
}

func (r *gormRepository) ListOrganizations(ctx context.Context) ([]inventory.Organization, error) {
	var orgs []inventory.Organization
	if err := r.db.WithContext(ctx).Order("name").Find(&orgs).Error; err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return orgs, nil
}

// =====================================================
// Facilities
// =====================================================

func (r *gormRepository) CreateFacility(ctx context.Context, facility *inventory.Facility) error {
	if err := r.db.WithContext(ctx).Create(facility).Error; err != nil {
		return fmt.Errorf("failed to create facility: %w", err)
	}
	return nil
}

func (r *gormRepository) GetFacility(ctx context.Context, id uuid.UUID) (*inventory.Facility, error) {
	var facility inventory.Facility
	if err := r.db.WithContext(ctx).First(&facility, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get facility: %w", err)
	}
	return &facility, nil
}

func (r *gormRepository) UpdateFacility(ctx context.Context, facility *inventory.Facility) error {
	if err := r.db.WithContext(ctx).Save(facility).Error; err != nil {
		return fmt.Errorf("failed to update facility: %w", err)
	}
	return nil
}

func (r *gormRepository) ListFacilities(ctx context.Context, organizationID uuid.UUID) ([]inventory.Facility, error) {
	var facilities []inventory.Facility
	if err := r.db.WithContext(ctx).Where("organization_id = ?", organizationID).Order("name").Find(&facilities).Error; err != nil {
		return nil, fmt.Errorf("failed to list facilities: %w", err)
	}
	return facilities, nil
}

// =====================================================
// Source taxonomy
// =====================================================

func (r *gormRepository) GetSource(ctx context.Context, id uuid.UUID) (*inventory.Source, error) {
	var source inventory.Source
	if err := r.db.WithContext(ctx).First(&source, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return &source, nil
}

func (r *gormRepository) FindSource(ctx context.Context, scope int, subcategory string) (*inventory.Source, error) {
	var source inventory.Source
	err := r.db.WithContext(ctx).Where("scope = ? AND subcategory = ?", scope, subcategory).First(&source).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find source: %w", err)
	}
	return &source, nil
}

func (r *gormRepository) ListSources(ctx context.Context) ([]inventory.Source, error) {
	var sources []inventory.Source
	if err := r.db.WithContext(ctx).Order("scope, subcategory").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	return sources, nil
}

// =====================================================
// Activities
// =====================================================

func (r *gormRepository) CreateActivity(ctx context.Context, activity *inventory.Activity) error {
	if err := r.db.WithContext(ctx).Create(activity).Error; err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}
	return nil
}

func (r *gormRepository) GetActivity(ctx context.Context, id uuid.UUID) (*inventory.Activity, error) {
	var activity inventory.Activity
	if err := r.db.WithContext(ctx).First(&activity, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return &activity, nil
}

func (r *gormRepository) UpdateActivity(ctx context.Context, activity *inventory.Activity) error {
	if err := r.db.WithContext(ctx).Save(activity).Error; err != nil {
		return fmt.Errorf("failed to update activity: %w", err)
	}
	return nil
}

func (r *gormRepository) DeleteActivity(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&inventory.Activity{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete activity: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormRepository) ListActivities(ctx context.Context, filter ActivityFilter) ([]inventory.Activity, error) {
	query := r.db.WithContext(ctx).Model(&inventory.Activity{})
	if filter.OrganizationID != nil {
		query = query.Joins("JOIN facilities ON facilities.id = activities.facility_id").
			Where("facilities.organization_id = ?", *filter.OrganizationID)
	}
	if filter.FacilityID != nil {
		query = query.Where("facility_id = ?", *filter.FacilityID)
	}
	if filter.SourceID != nil {
		query = query.Where("source_id = ?", *filter.SourceID)
	}
	if filter.MethodKey != "" {
		query = query.Where("method_key = ?", filter.MethodKey)
	}
	if !filter.From.IsZero() {
		query = query.Where("activity_date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("activity_date <= ?", filter.To)
	}
	var activities []inventory.Activity
	if err := query.Order("activity_date").Find(&activities).Error; err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, nil
}

// =====================================================
// Emission factors
// =====================================================

func (r *gormRepository) CreateFactor(ctx context.Context, factor *inventory.EmissionFactor) error {
	if err := r.db.WithContext(ctx).Create(factor).Error; err != nil {
		return fmt.Errorf("failed to create emission factor: %w", err)
	}
	return nil
}

func (r *gormRepository) CreateFactors(ctx context.Context, factors []inventory.EmissionFactor) error {
	if len(factors) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(factors, 500).Error; err != nil {
		return fmt.Errorf("failed to create emission factors: %w", err)
	}
	return nil
}

func (r *gormRepository) UpdateFactor(ctx context.Context, factor *inventory.EmissionFactor) error {
	if err := r.db.WithContext(ctx).Save(factor).Error; err != nil {
		return fmt.Errorf("failed to update emission factor: %w", err)
	}
	return nil
}

func (r *gormRepository) RetireFactors(ctx context.Context, authority string, activityCodes []string, asOf time.Time) (int64, error) {
	if len(activityCodes) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&inventory.EmissionFactor{}).
		Where("source_authority = ? AND activity_code IN ? AND valid_to IS NULL", authority, activityCodes).
		Update("valid_to", asOf)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to retire emission factors: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *gormRepository) LookupFactors(ctx context.Context, q FactorQuery) ([]inventory.EmissionFactor, error) {
	asOf := q.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	query := r.db.WithContext(ctx).
		Where("scope = ? AND activity_code = ?", q.Scope, q.ActivityCode).
		Where("valid_from <= ? AND (valid_to IS NULL OR valid_to > ?)", asOf, asOf)
	if q.Subcategory != "" {
		query = query.Where("subcategory = ?", q.Subcategory)
	}
	if q.Gas != "" {
		query = query.Where("gas = ?", q.Gas)
	}
	if q.Geography != "" {
		query = query.Where("geography = ?", q.Geography)
	}
	if q.Authority != "" {
		query = query.Where("source_authority = ?", q.Authority)
	}
	var factors []inventory.EmissionFactor
	if err := query.Order("source_year DESC, valid_from DESC").Find(&factors).Error; err != nil {
		return nil, fmt.Errorf("failed to look up emission factors: %w", err)
	}
	return factors, nil
}

func (r *gormRepository) ListFactors(ctx context.Context) ([]inventory.EmissionFactor, error) {
	var factors []inventory.EmissionFactor
	if err := r.db.WithContext(ctx).Order("activity_code, gas, valid_from").Find(&factors).Error; err != nil {
		return nil, fmt.Errorf("failed to list emission factors: %w", err)
	}
	return factors, nil
}

// =====================================================
// GWP tables
// =====================================================

func (r *gormRepository) GWPSet(ctx context.Context, set inventory.GWPSetName) (map[string]float64, error) {
	var values []inventory.GWPValue
	if err := r.db.WithContext(ctx).Where("set_name = ?", set).Find(&values).Error; err != nil {
		return nil, fmt.Errorf("failed to load GWP set: %w", err)
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}
	gwp := make(map[string]float64, len(values))
	for _, v := range values {
		gwp[v.Gas] = v.Value
	}
	return gwp, nil
}

// =====================================================
// Calculations
// =====================================================

func (r *gormRepository) CreateCalculation(ctx context.Context, calc *inventory.Calculation, event *inventory.AuditEvent) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Writers for the same activity queue behind a transaction-scoped
		// advisory lock so latest-per-activity reads never race an insert.
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", calc.ActivityID.String()).Error; err != nil {
			return err
		}
		if err := tx.Create(calc).Error; err != nil {
			return err
		}
		if event != nil {
			if event.EntityID == uuid.Nil {
				event.EntityID = calc.ID
			}
			if err := tx.Create(event).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create calculation: %w", err)
	}
	return nil
}

func (r *gormRepository) GetCalculation(ctx context.Context, id uuid.UUID) (*inventory.Calculation, error) {
	var calc inventory.Calculation
	if err := r.db.WithContext(ctx).First(&calc, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get calculation: %w", err)
	}
	return &calc, nil
}

func (r *gormRepository) LatestCalculation(ctx context.Context, activityID uuid.UUID) (*inventory.Calculation, error) {
	var calc inventory.Calculation
	err := r.db.WithContext(ctx).Where("activity_id = ?", activityID).
		Order("calculated_at DESC").First(&calc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest calculation: %w", err)
	}
	return &calc, nil
}

func (r *gormRepository) ListCalculations(ctx context.Context, filter CalculationFilter) ([]inventory.Calculation, error) {
	query := r.db.WithContext(ctx).Model(&inventory.Calculation{})
	if filter.ActivityID != nil {
		query = query.Where("activity_id = ?", *filter.ActivityID)
	}
	if !filter.From.IsZero() {
		query = query.Where("calculated_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("calculated_at <= ?", filter.To)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var calcs []inventory.Calculation
	if err := query.Order("calculated_at DESC").Find(&calcs).Error; err != nil {
		return nil, fmt.Errorf("failed to list calculations: %w", err)
	}
	return calcs, nil
}

// LatestCalculationRows loads the newest calculation per activity for an
// organization, joined with the owning facility and source.
func (r *gormRepository) LatestCalculationRows(ctx context.Context, organizationID uuid.UUID, from, to time.Time) ([]CalculationRow, error) {
	facilities, err := r.ListFacilities(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if len(facilities) == 0 {
		return nil, nil
	}
	facilityByID := make(map[uuid.UUID]inventory.Facility, len(facilities))
	facilityIDs := make([]uuid.UUID, 0, len(facilities))
	for _, f := range facilities {
		facilityByID[f.ID] = f
		facilityIDs = append(facilityIDs, f.ID)
	}

	query := r.db.WithContext(ctx).Where("facility_id IN ?", facilityIDs)
	if !from.IsZero() {
		query = query.Where("activity_date >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("activity_date <= ?", to)
	}
	var activities []inventory.Activity
	if err := query.Order("activity_date").Find(&activities).Error; err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	if len(activities) == 0 {
		return nil, nil
	}

	sources, err := r.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	sourceByID := make(map[uuid.UUID]inventory.Source, len(sources))
	for _, s := range sources {
		sourceByID[s.ID] = s
	}

	activityIDs := make([]uuid.UUID, 0, len(activities))
	for _, a := range activities {
		activityIDs = append(activityIDs, a.ID)
	}
	var calcs []inventory.Calculation
	err = r.db.WithContext(ctx).Where("activity_id IN ?", activityIDs).
		Order("calculated_at DESC").Find(&calcs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list calculations: %w", err)
	}
	latest := make(map[uuid.UUID]inventory.Calculation, len(activityIDs))
	for _, c := range calcs {
		if _, ok := latest[c.ActivityID]; !ok {
			latest[c.ActivityID] = c
		}
	}

	rows := make([]CalculationRow, 0, len(activities))
	for _, a := range activities {
		calc, ok := latest[a.ID]
		if !ok {
			continue
		}
		rows = append(rows, CalculationRow{
			Calculation: calc,
			Activity:    a,
			Facility:    facilityByID[a.FacilityID],
			Source:      sourceByID[a.SourceID],
		})
	}
	return rows, nil
}

// =====================================================
// Attachments
// =====================================================

func (r *gormRepository) CreateAttachment(ctx context.Context, attachment *inventory.Attachment) error {
	if err := r.db.WithContext(ctx).Create(attachment).Error; err != nil {
		return fmt.Errorf("failed to create attachment: %w", err)
	}
	return nil
}

func (r *gormRepository) ListAttachments(ctx context.Context, activityID uuid.UUID) ([]inventory.Attachment, error) {
	var attachments []inventory.Attachment
	err := r.db.WithContext(ctx).Where("activity_id = ?", activityID).
		Order("created_at").Find(&attachments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	return attachments, nil
}

// =====================================================
// Audit trail
// =====================================================

func (r *gormRepository) AppendAudit(ctx context.Context, event *inventory.AuditEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

func (r *gormRepository) ListAuditEvents(ctx context.Context, entity string, entityID uuid.UUID) ([]inventory.AuditEvent, error) {
	query := r.db.WithContext(ctx).Model(&inventory.AuditEvent{})
	if entity != "" {
		query = query.Where("entity = ?", entity)
	}
	if entityID != uuid.Nil {
		query = query.Where("entity_id = ?", entityID)
	}
	var events []inventory.AuditEvent
	if err := query.Order("created_at").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	return events, nil
}
