// Package snapshot runs calculation methods over reported activities and
// persists each run as an immutable record. Everything a method consumed,
// the activity inputs and the emission-factor rows, is frozen as a value
// copy at write time; later edits to the live rows never reach a stored
// calculation. Recalculation always inserts a new record.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"ghg-ledger/inventory-engine/internal/inventory"
	"ghg-ledger/inventory-engine/internal/methods"
	"ghg-ledger/inventory-engine/internal/store"
	"ghg-ledger/inventory-engine/internal/units"
)

// EngineVersion is stamped on every calculation record. Bump it whenever
// method arithmetic changes so old records stay attributable to the code
// that produced them.
const EngineVersion = "1.0.0"

// ReceiptSigner mints a verifiable receipt for a finished calculation.
type ReceiptSigner interface {
	Mint(calculationID uuid.UUID, inputHash, factorHash, engineVersion string) (string, error)
}

// Engine dispatches activities through the method registry and writes the
// resulting calculation records.
type Engine struct {
	repo     store.Repository
	registry *methods.Registry
	units    *units.Registry
	signer   ReceiptSigner
	logger   *zap.Logger
}

// NewEngine creates a calculation engine. The signer is optional; without
// one calculations are stored without receipts.
func NewEngine(repo store.Repository, signer ReceiptSigner, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		repo:     repo,
		registry: methods.NewRegistry(),
		units:    units.NewRegistry(),
		signer:   signer,
		logger:   logger,
	}
}

// Registry returns the method registry backing this engine.
func (e *Engine) Registry() *methods.Registry {
	return e.registry
}

// SupportedMethods returns the keys of all registered calculation methods.
func (e *Engine) SupportedMethods() []string {
	return e.registry.Keys()
}

// inputSnapshot is the value copy of everything a method consumed besides
// emission factors.
type inputSnapshot struct {
	ActivityID   uuid.UUID      `json:"activity_id"`
	ActivityType string         `json:"activity_type"`
	ActivityDate time.Time      `json:"activity_date"`
	MethodKey    string         `json:"method_key"`
	Quantity     float64        `json:"quantity"`
	Unit         string         `json:"unit"`
	Params       map[string]any `json:"params,omitempty"`
	Scope        int            `json:"scope"`
	Subcategory  string         `json:"subcategory"`
	GWPSetName   string         `json:"gwp_set"`
	GWP          methods.GWPSet `json:"gwp"`
}

// factorRecord is the frozen copy of one emission-factor row as it stood
// when the calculation ran.
type factorRecord struct {
	FactorID        uuid.UUID  `json:"factor_id"`
	ActivityCode    string     `json:"activity_code,omitempty"`
	ActivityName    string     `json:"activity_name,omitempty"`
	Gas             string     `json:"gas"`
	FactorValue     float64    `json:"factor_value"`
	FactorUnit      string     `json:"factor_unit"`
	Basis           string     `json:"basis"`
	OxidationFrac   float64    `json:"oxidation_frac"`
	SourceAuthority string     `json:"source_authority"`
	SourceDoc       string     `json:"source_doc,omitempty"`
	SourceYear      int        `json:"source_year"`
	Geography       string     `json:"geography"`
	ValidFrom       time.Time  `json:"valid_from"`
	ValidTo         *time.Time `json:"valid_to,omitempty"`
	Citation        string     `json:"citation,omitempty"`
}

// Calculate runs the activity's method and stores the result together with
// frozen input and factor snapshots, their hashes and an audit event.
func (e *Engine) Calculate(ctx context.Context, activityID uuid.UUID, performedBy string) (*inventory.Calculation, error) {
	activity, err := e.repo.GetActivity(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity: %w", err)
	}
	source, err := e.repo.GetSource(ctx, activity.SourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load source: %w", err)
	}
	facility, err := e.repo.GetFacility(ctx, activity.FacilityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load facility: %w", err)
	}
	org, err := e.repo.GetOrganization(ctx, facility.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}

	params := map[string]any{}
	if len(activity.Params) > 0 {
		if err := json.Unmarshal(activity.Params, &params); err != nil {
			return nil, fmt.Errorf("failed to parse activity params: %w", err)
		}
	}

	gwp := e.resolveGWP(ctx, org)
	frozen, factors, err := e.resolveFactors(ctx, activity, source, facility, params)
	if err != nil {
		return nil, err
	}

	req := &methods.Request{
		Quantity: activity.Quantity,
		Unit:     activity.Unit,
		Params:   params,
		Factors:  factors,
		GWP:      gwp,
		Units:    e.units,
	}
	result, err := e.registry.Compute(activity.MethodKey, req)
	if err != nil {
		return nil, fmt.Errorf("calculation failed: %w", err)
	}

	input := inputSnapshot{
		ActivityID:   activity.ID,
		ActivityType: activity.ActivityType,
		ActivityDate: activity.ActivityDate,
		MethodKey:    activity.MethodKey,
		Quantity:     activity.Quantity,
		Unit:         activity.Unit,
		Params:       params,
		Scope:        source.Scope,
		Subcategory:  source.Subcategory,
		GWPSetName:   string(org.GWPSet),
		GWP:          gwp,
	}
	inputJSON, err := canonicalJSON(input)
	if err != nil {
		return nil, fmt.Errorf("failed to freeze input snapshot: %w", err)
	}
	factorJSON, err := canonicalJSON(frozen)
	if err != nil {
		return nil, fmt.Errorf("failed to freeze factor snapshot: %w", err)
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	calc := &inventory.Calculation{
		ID:             uuid.New(),
		ActivityID:     activity.ID,
		MethodKey:      activity.MethodKey,
		EngineVersion:  EngineVersion,
		InputSnapshot:  datatypes.JSON(inputJSON),
		FactorSnapshot: datatypes.JSON(factorJSON),
		Results:        datatypes.JSON(resultJSON),
		InputHash:      hashBytes(inputJSON),
		FactorHash:     hashBytes(factorJSON),
		PerformedBy:    performedBy,
		CalculatedAt:   time.Now().UTC(),
	}
	if e.signer != nil {
		receipt, err := e.signer.Mint(calc.ID, calc.InputHash, calc.FactorHash, EngineVersion)
		if err != nil {
			return nil, fmt.Errorf("failed to mint receipt: %w", err)
		}
		calc.Receipt = receipt
	}

	detail, _ := json.Marshal(map[string]any{
		"activity_id":   activity.ID,
		"method_key":    activity.MethodKey,
		"total_co2e_kg": result.TotalCO2eKg,
	})
	event := &inventory.AuditEvent{
		Actor:    performedBy,
		Action:   "calculate",
		Entity:   "calculation",
		EntityID: calc.ID,
		Detail:   datatypes.JSON(detail),
	}
	if err := e.repo.CreateCalculation(ctx, calc, event); err != nil {
		return nil, err
	}

	e.logger.Info("calculation stored",
		zap.String("calculation_id", calc.ID.String()),
		zap.String("activity_id", activity.ID.String()),
		zap.String("method_key", activity.MethodKey),
		zap.Float64("total_co2e_kg", result.TotalCO2eKg))
	return calc, nil
}

// Recalculate reruns the method behind an existing calculation against the
// live activity and factors. The prior record is untouched.
func (e *Engine) Recalculate(ctx context.Context, calculationID uuid.UUID, performedBy string) (*inventory.Calculation, error) {
	prior, err := e.repo.GetCalculation(ctx, calculationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load calculation: %w", err)
	}
	return e.Calculate(ctx, prior.ActivityID, performedBy)
}

// ReproduceResult reports whether a stored calculation could be recomputed
// bit-for-bit from its own snapshots.
type ReproduceResult struct {
	Match             bool    `json:"match"`
	HashesValid       bool    `json:"hashes_valid"`
	StoredTotalKg     float64 `json:"stored_total_co2e_kg"`
	RecomputedTotalKg float64 `json:"recomputed_total_co2e_kg"`
}

// Reproduce re-runs a stored calculation from its frozen snapshots, without
// touching live activity or factor rows, and compares the outcome with what
// was recorded.
func (e *Engine) Reproduce(ctx context.Context, calculationID uuid.UUID) (*ReproduceResult, error) {
	calc, err := e.repo.GetCalculation(ctx, calculationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load calculation: %w", err)
	}

	var input inputSnapshot
	if err := json.Unmarshal(calc.InputSnapshot, &input); err != nil {
		return nil, fmt.Errorf("failed to parse input snapshot: %w", err)
	}
	var frozen []factorRecord
	if len(calc.FactorSnapshot) > 0 {
		if err := json.Unmarshal(calc.FactorSnapshot, &frozen); err != nil {
			return nil, fmt.Errorf("failed to parse factor snapshot: %w", err)
		}
	}
	factors := make(map[string]float64, len(frozen))
	for _, f := range frozen {
		factors[f.Gas] = f.FactorValue
	}

	req := &methods.Request{
		Quantity: input.Quantity,
		Unit:     input.Unit,
		Params:   input.Params,
		Factors:  factors,
		GWP:      input.GWP,
		Units:    e.units,
	}
	result, err := e.registry.Compute(input.MethodKey, req)
	if err != nil {
		return nil, fmt.Errorf("recomputation failed: %w", err)
	}

	var stored methods.Result
	if err := json.Unmarshal(calc.Results, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse stored results: %w", err)
	}

	match := result.TotalCO2eKg == stored.TotalCO2eKg && len(result.Emissions) == len(stored.Emissions)
	if match {
		for gas, em := range result.Emissions {
			prev, ok := stored.Emissions[gas]
			if !ok || prev.MassKg != em.MassKg || prev.CO2eKg != em.CO2eKg {
				match = false
				break
			}
		}
	}

	hashesValid := rehash(calc.InputSnapshot) == calc.InputHash
	if calc.FactorHash != "" {
		hashesValid = hashesValid && rehash(calc.FactorSnapshot) == calc.FactorHash
	}

	return &ReproduceResult{
		Match:             match,
		HashesValid:       hashesValid,
		StoredTotalKg:     stored.TotalCO2eKg,
		RecomputedTotalKg: result.TotalCO2eKg,
	}, nil
}

// resolveGWP loads the organization's GWP table. A missing table falls back
// to the built-in AR5 defaults.
func (e *Engine) resolveGWP(ctx context.Context, org *inventory.Organization) methods.GWPSet {
	values, err := e.repo.GWPSet(ctx, org.GWPSet)
	if err != nil {
		e.logger.Warn("GWP set not seeded, using AR5 defaults",
			zap.String("set", string(org.GWPSet)))
		return methods.GWPSet{}
	}
	return methods.GWPSet{CH4: values[methods.GasCH4], N2O: values[methods.GasN2O]}
}

// resolveFactors picks the emission-factor rows valid on the activity date,
// preferring rows scoped to the facility's grid region over global ones.
// The newest row per gas wins. Factor-level oxidation fraction and heating
// basis are folded into the params when the activity does not set them; the
// schema default oxidation 1.0 means the authority published none and is
// not treated as an override.
func (e *Engine) resolveFactors(ctx context.Context, activity *inventory.Activity, source *inventory.Source, facility *inventory.Facility, params map[string]any) ([]factorRecord, map[string]float64, error) {
	query := store.FactorQuery{
		Scope:        source.Scope,
		ActivityCode: activity.ActivityType,
		AsOf:         activity.ActivityDate,
	}
	var rows []inventory.EmissionFactor
	if facility.GridRegion != "" {
		regional := query
		regional.Geography = facility.GridRegion
		var err error
		rows, err = e.repo.LookupFactors(ctx, regional)
		if err != nil {
			return nil, nil, err
		}
	}
	if len(rows) == 0 {
		var err error
		rows, err = e.repo.LookupFactors(ctx, query)
		if err != nil {
			return nil, nil, err
		}
	}

	frozen := make([]factorRecord, 0, len(rows))
	values := make(map[string]float64, len(rows))
	var primary *inventory.EmissionFactor
	for i, row := range rows {
		if _, ok := values[row.Gas]; ok {
			continue
		}
		values[row.Gas] = row.FactorValue
		frozen = append(frozen, factorRecord{
			FactorID:        row.ID,
			Gas:             row.Gas,
			FactorValue:     row.FactorValue,
			FactorUnit:      row.FactorUnit,
			Basis:           string(row.Basis),
			OxidationFrac:   row.OxidationFrac,
			SourceAuthority: row.SourceAuthority,
			SourceYear:      row.SourceYear,
			Geography:       row.Geography,
			ValidFrom:       row.ValidFrom,
			ValidTo:         row.ValidTo,
		})
		if primary == nil && (row.Gas == methods.GasCO2 || row.Gas == methods.GasCO2e) {
			primary = &rows[i]
		}
	}
	if primary != nil {
		if _, ok := params["oxidation_frac"]; !ok && primary.OxidationFrac > 0 && primary.OxidationFrac != 1 {
			params["oxidation_frac"] = primary.OxidationFrac
		}
		if _, ok := params["basis"]; !ok && primary.Basis != inventory.BasisNA && primary.Basis != "" {
			params["basis"] = string(primary.Basis)
		}
	}
	return frozen, values, nil
}

// canonicalJSON encodes v with all object keys sorted, so equal values
// produce identical bytes regardless of struct field order or storage
// round-trips.
func canonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// rehash canonicalizes stored snapshot bytes before hashing, so a JSONB
// round-trip that reorders keys does not invalidate the recorded hash.
func rehash(snapshot []byte) string {
	canon, err := canonicalJSON(json.RawMessage(snapshot))
	if err != nil {
		return ""
	}
	return hashBytes(canon)
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
