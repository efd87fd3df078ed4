package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ghg-ledger/inventory-engine/internal/inventory"
)

// MemoryRepository is a map-backed Repository used by tests and ephemeral
// runs. Calculations and audit events are append-only, matching the
// database-backed implementation.
type MemoryRepository struct {
	mu            sync.RWMutex
	organizations map[uuid.UUID]inventory.Organization
	facilities    map[uuid.UUID]inventory.Facility
	sources       []inventory.Source
	activities    map[uuid.UUID]inventory.Activity
	factors       map[uuid.UUID]inventory.EmissionFactor
	gwpValues     []inventory.GWPValue
	calculations  []inventory.Calculation
	attachments   []inventory.Attachment
	auditEvents   []inventory.AuditEvent
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		organizations: make(map[uuid.UUID]inventory.Organization),
		facilities:    make(map[uuid.UUID]inventory.Facility),
		activities:    make(map[uuid.UUID]inventory.Activity),
		factors:       make(map[uuid.UUID]inventory.EmissionFactor),
	}
}

func (m *MemoryRepository) Migrate(ctx context.Context) error {
	return nil
}

func (m *MemoryRepository) SeedReferenceData(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, source := range inventory.SeedSources() {
		if m.findSourceLocked(source.Scope, source.Subcategory) != nil {
			continue
		}
		source.ID = uuid.New()
		source.CreatedAt = time.Now().UTC()
		m.sources = append(m.sources, source)
	}
	for _, gwp := range inventory.SeedGWPValues() {
		exists := false
		for _, existing := range m.gwpValues {
			if existing.SetName == gwp.SetName && existing.Gas == gwp.Gas {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		gwp.ID = uuid.New()
		gwp.CreatedAt = time.Now().UTC()
		m.gwpValues = append(m.gwpValues, gwp)
	}
	return nil
}

// =====================================================
// Organizations
// =====================================================

func (m *MemoryRepository) CreateOrganization(ctx context.Context, org *inventory.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now
	m.organizations[org.ID] = *org
	return nil
}

func (m *MemoryRepository) GetOrganization(ctx context.Context, id uuid.UUID) (*inventory.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	org, ok := m.organizations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &org, nil
}

func (m *MemoryRepository) UpdateOrganization(ctx context.Context, org *inventory.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.organizations[org.ID]; !ok {
		return ErrNotFound
	}
	org.UpdatedAt = time.Now().UTC()
	m.organizations[org.ID] = *org
	return nil
}

func (m *MemoryRepository) ListOrganizations(ctx context.Context) ([]inventory.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	orgs := make([]inventory.Organization, 0, len(m.organizations))
	for _, org := range m.organizations {
		orgs = append(orgs, org)
	}
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].Name < orgs[j].Name })
	return orgs, nil
}

// =====================================================
// Facilities
// =====================================================

func (m *MemoryRepository) CreateFacility(ctx context.Context, facility *inventory.Facility) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if facility.ID == uuid.Nil {
		facility.ID = uuid.New()
	}
	now := time.Now().UTC()
	facility.CreatedAt = now
	facility.UpdatedAt = now
	m.facilities[facility.ID] = *facility
	return nil
}

func (m *MemoryRepository) GetFacility(ctx context.Context, id uuid.UUID) (*inventory.Facility, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	facility, ok := m.facilities[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &facility, nil
}

func (m *MemoryRepository) UpdateFacility(ctx context.Context, facility *inventory.Facility) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.facilities[facility.ID]; !ok {
		return ErrNotFound
	}
	facility.UpdatedAt = time.Now().UTC()
	m.facilities[facility.ID] = *facility
	return nil
}

func (m *MemoryRepository) ListFacilities(ctx context.Context, organizationID uuid.UUID) ([]inventory.Facility, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var facilities []inventory.Facility
	for _, f := range m.facilities {
		if f.OrganizationID == organizationID {
			facilities = append(facilities, f)
		}
	}
	sort.Slice(facilities, func(i, j int) bool { return facilities[i].Name < facilities[j].Name })
	return facilities, nil
}

// =====================================================
// Source taxonomy
// =====================================================

func (m *MemoryRepository) findSourceLocked(scope int, subcategory string) *inventory.Source {
	for i := range m.sources {
		if m.sources[i].Scope == scope && m.sources[i].Subcategory == subcategory {
			return &m.sources[i]
		}
	}
	return nil
}

func (m *MemoryRepository) GetSource(ctx context.Context, id uuid.UUID) (*inventory.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sources {
		if s.ID == id {
			source := s
			return &source, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRepository) FindSource(ctx context.Context, scope int, subcategory string) (*inventory.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s := m.findSourceLocked(scope, subcategory); s != nil {
		source := *s
		return &source, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepository) ListSources(ctx context.Context) ([]inventory.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sources := make([]inventory.Source, len(m.sources))
	copy(sources, m.sources)
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].Scope != sources[j].Scope {
			return sources[i].Scope < sources[j].Scope
		}
		return sources[i].Subcategory < sources[j].Subcategory
	})
	return sources, nil
}

// =====================================================
// Activities
// =====================================================

func (m *MemoryRepository) CreateActivity(ctx context.Context, activity *inventory.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if activity.ID == uuid.Nil {
		activity.ID = uuid.New()
	}
	now := time.Now().UTC()
	activity.CreatedAt = now
	activity.UpdatedAt = now
	m.activities[activity.ID] = *activity
	return nil
}

func (m *MemoryRepository) GetActivity(ctx context.Context, id uuid.UUID) (*inventory.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	activity, ok := m.activities[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &activity, nil
}

func (m *MemoryRepository) UpdateActivity(ctx context.Context, activity *inventory.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.activities[activity.ID]; !ok {
		return ErrNotFound
	}
	activity.UpdatedAt = time.Now().UTC()
	m.activities[activity.ID] = *activity
	return nil
}

func (m *MemoryRepository) DeleteActivity(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.activities[id]; !ok {
		return ErrNotFound
	}
	delete(m.activities, id)
	return nil
}

func (m *MemoryRepository) ListActivities(ctx context.Context, filter ActivityFilter) ([]inventory.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var activities []inventory.Activity
	for _, a := range m.activities {
		if !m.matchesFilterLocked(a, filter) {
			continue
		}
		activities = append(activities, a)
	}
	sort.Slice(activities, func(i, j int) bool {
		return activities[i].ActivityDate.Before(activities[j].ActivityDate)
	})
	return activities, nil
}

func (m *MemoryRepository) matchesFilterLocked(a inventory.Activity, filter ActivityFilter) bool {
	if filter.OrganizationID != nil {
		facility, ok := m.facilities[a.FacilityID]
		if !ok || facility.OrganizationID != *filter.OrganizationID {
			return false
		}
	}
	if filter.FacilityID != nil && a.FacilityID != *filter.FacilityID {
		return false
	}
	if filter.SourceID != nil && a.SourceID != *filter.SourceID {
		return false
	}
	if filter.MethodKey != "" && a.MethodKey != filter.MethodKey {
		return false
	}
	if !filter.From.IsZero() && a.ActivityDate.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && a.ActivityDate.After(filter.To) {
		return false
	}
	return true
}

// =====================================================
// Emission factors
// =====================================================

func (m *MemoryRepository) CreateFactor(ctx context.Context, factor *inventory.EmissionFactor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createFactorLocked(factor)
	return nil
}

func (m *MemoryRepository) createFactorLocked(factor *inventory.EmissionFactor) {
	if factor.ID == uuid.Nil {
		factor.ID = uuid.New()
	}
	now := time.Now().UTC()
	factor.CreatedAt = now
	factor.UpdatedAt = now
	m.factors[factor.ID] = *factor
}

func (m *MemoryRepository) CreateFactors(ctx context.Context, factors []inventory.EmissionFactor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range factors {
		m.createFactorLocked(&factors[i])
	}
	return nil
}

func (m *MemoryRepository) UpdateFactor(ctx context.Context, factor *inventory.EmissionFactor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.factors[factor.ID]; !ok {
		return ErrNotFound
	}
	factor.UpdatedAt = time.Now().UTC()
	m.factors[factor.ID] = *factor
	return nil
}

func (m *MemoryRepository) RetireFactors(ctx context.Context, authority string, activityCodes []string, asOf time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	codes := make(map[string]bool, len(activityCodes))
	for _, code := range activityCodes {
		codes[code] = true
	}
	var retired int64
	for id, factor := range m.factors {
		if factor.SourceAuthority != authority || !codes[factor.ActivityCode] || factor.ValidTo != nil {
			continue
		}
		validTo := asOf
		factor.ValidTo = &validTo
		factor.UpdatedAt = time.Now().UTC()
		m.factors[id] = factor
		retired++
	}
	return retired, nil
}

func (m *MemoryRepository) LookupFactors(ctx context.Context, q FactorQuery) ([]inventory.EmissionFactor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	asOf := q.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	var factors []inventory.EmissionFactor
	for _, f := range m.factors {
		if f.Scope != q.Scope || f.ActivityCode != q.ActivityCode {
			continue
		}
		if f.ValidFrom.After(asOf) {
			continue
		}
		if f.ValidTo != nil && !f.ValidTo.After(asOf) {
			continue
		}
		if q.Subcategory != "" && f.Subcategory != q.Subcategory {
			continue
		}
		if q.Gas != "" && !strings.EqualFold(f.Gas, q.Gas) {
			continue
		}
		if q.Geography != "" && f.Geography != q.Geography {
			continue
		}
		if q.Authority != "" && f.SourceAuthority != q.Authority {
			continue
		}
		factors = append(factors, f)
	}
	sort.Slice(factors, func(i, j int) bool {
		if factors[i].SourceYear != factors[j].SourceYear {
			return factors[i].SourceYear > factors[j].SourceYear
		}
		return factors[i].ValidFrom.After(factors[j].ValidFrom)
	})
	return factors, nil
}

func (m *MemoryRepository) ListFactors(ctx context.Context) ([]inventory.EmissionFactor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	factors := make([]inventory.EmissionFactor, 0, len(m.factors))
	for _, f := range m.factors {
		factors = append(factors, f)
	}
	sort.Slice(factors, func(i, j int) bool {
		if factors[i].ActivityCode != factors[j].ActivityCode {
			return factors[i].ActivityCode < factors[j].ActivityCode
		}
		if factors[i].Gas != factors[j].Gas {
			return factors[i].Gas < factors[j].Gas
		}
		return factors[i].ValidFrom.Before(factors[j].ValidFrom)
	})
	return factors, nil
}

// =====================================================
// GWP tables
// =====================================================

func (m *MemoryRepository) GWPSet(ctx context.Context, set inventory.GWPSetName) (map[string]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	gwp := make(map[string]float64)
	for _, v := range m.gwpValues {
		if v.SetName == set {
			gwp[v.Gas] = v.Value
		}
	}
	if len(gwp) == 0 {
		return nil, ErrNotFound
	}
	return gwp, nil
}

// =====================================================
// Calculations
// =====================================================

func (m *MemoryRepository) CreateCalculation(ctx context.Context, calc *inventory.Calculation, event *inventory.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if calc.ID == uuid.Nil {
		calc.ID = uuid.New()
	}
	now := time.Now().UTC()
	calc.CreatedAt = now
	if calc.CalculatedAt.IsZero() {
		calc.CalculatedAt = now
	}
	m.calculations = append(m.calculations, *calc)
	if event != nil {
		if event.ID == uuid.Nil {
			event.ID = uuid.New()
		}
		if event.EntityID == uuid.Nil {
			event.EntityID = calc.ID
		}
		event.CreatedAt = now
		m.auditEvents = append(m.auditEvents, *event)
	}
	return nil
}

func (m *MemoryRepository) GetCalculation(ctx context.Context, id uuid.UUID) (*inventory.Calculation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.calculations {
		if c.ID == id {
			calc := c
			return &calc, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRepository) LatestCalculation(ctx context.Context, activityID uuid.UUID) (*inventory.Calculation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calc := m.latestCalculationLocked(activityID)
	if calc == nil {
		return nil, ErrNotFound
	}
	return calc, nil
}

func (m *MemoryRepository) latestCalculationLocked(activityID uuid.UUID) *inventory.Calculation {
	var latest *inventory.Calculation
	for i := range m.calculations {
		c := m.calculations[i]
		if c.ActivityID != activityID {
			continue
		}
		if latest == nil || !c.CalculatedAt.Before(latest.CalculatedAt) {
			calc := c
			latest = &calc
		}
	}
	return latest
}

func (m *MemoryRepository) ListCalculations(ctx context.Context, filter CalculationFilter) ([]inventory.Calculation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var calcs []inventory.Calculation
	for _, c := range m.calculations {
		if filter.ActivityID != nil && c.ActivityID != *filter.ActivityID {
			continue
		}
		if !filter.From.IsZero() && c.CalculatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && c.CalculatedAt.After(filter.To) {
			continue
		}
		calcs = append(calcs, c)
	}
	sort.Slice(calcs, func(i, j int) bool {
		return calcs[i].CalculatedAt.After(calcs[j].CalculatedAt)
	})
	if filter.Limit > 0 && len(calcs) > filter.Limit {
		calcs = calcs[:filter.Limit]
	}
	return calcs, nil
}

func (m *MemoryRepository) LatestCalculationRows(ctx context.Context, organizationID uuid.UUID, from, to time.Time) ([]CalculationRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sourceByID := make(map[uuid.UUID]inventory.Source, len(m.sources))
	for _, s := range m.sources {
		sourceByID[s.ID] = s
	}

	var activities []inventory.Activity
	for _, a := range m.activities {
		facility, ok := m.facilities[a.FacilityID]
		if !ok || facility.OrganizationID != organizationID {
			continue
		}
		if !from.IsZero() && a.ActivityDate.Before(from) {
			continue
		}
		if !to.IsZero() && a.ActivityDate.After(to) {
			continue
		}
		activities = append(activities, a)
	}
	sort.Slice(activities, func(i, j int) bool {
		return activities[i].ActivityDate.Before(activities[j].ActivityDate)
	})

	var rows []CalculationRow
	for _, a := range activities {
		calc := m.latestCalculationLocked(a.ID)
		if calc == nil {
			continue
		}
		rows = append(rows, CalculationRow{
			Calculation: *calc,
			Activity:    a,
			Facility:    m.facilities[a.FacilityID],
			Source:      sourceByID[a.SourceID],
		})
	}
	return rows, nil
}

// =====================================================
// Attachments
// =====================================================

func (m *MemoryRepository) CreateAttachment(ctx context.Context, attachment *inventory.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if attachment.ID == uuid.Nil {
		attachment.ID = uuid.New()
	}
	attachment.CreatedAt = time.Now().UTC()
	m.attachments = append(m.attachments, *attachment)
	return nil
}

func (m *MemoryRepository) ListAttachments(ctx context.Context, activityID uuid.UUID) ([]inventory.Attachment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var attachments []inventory.Attachment
	for _, a := range m.attachments {
		if a.ActivityID == activityID {
			attachments = append(attachments, a)
		}
	}
	return attachments, nil
}

// =====================================================
// Audit trail
// =====================================================

func (m *MemoryRepository) AppendAudit(ctx context.Context, event *inventory.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now().UTC()
	m.auditEvents = append(m.auditEvents, *event)
	return nil
}

func (m *MemoryRepository) ListAuditEvents(ctx context.Context, entity string, entityID uuid.UUID) ([]inventory.AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var events []inventory.AuditEvent
	for _, e := range m.auditEvents {
		if entity != "" && e.Entity != entity {
			continue
		}
		if entityID != uuid.Nil && e.EntityID != entityID {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}
