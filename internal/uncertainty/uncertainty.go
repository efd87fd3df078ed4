// Package uncertainty quantifies how well an inventory total is known:
// analytic error propagation over emission lines, Monte Carlo simulation of
// the total, default uncertainties by factor tier, and a data-quality score.
package uncertainty

import (
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"ghg-ledger/inventory-engine/internal/aggregation"
)

// Item is one emissions line with its relative uncertainty.
type Item struct {
	Label          string
	ValueKg        float64
	UncertaintyPct float64
}

// Combined is the propagated uncertainty for a set of independent lines.
type Combined struct {
	TotalKg        float64 `json:"total_co2e_kg"`
	StdDevKg       float64 `json:"std_dev_kg"`
	UncertaintyPct float64 `json:"uncertainty_pct"`
	CI95LowerKg    float64 `json:"ci95_lower_kg"`
	CI95UpperKg    float64 `json:"ci95_upper_kg"`
}

// CombineRSS propagates independent relative uncertainties by
// root-sum-of-squares. The 95 percent interval assumes normal errors.
func CombineRSS(items []Item) Combined {
	var total, sumSquares float64
	for _, item := range items {
		total += item.ValueKg
		std := item.ValueKg * item.UncertaintyPct / 100
		sumSquares += std * std
	}
	std := math.Sqrt(sumSquares)
	pct := 0.0
	if total != 0 {
		pct = std / total * 100
	}
	return Combined{
		TotalKg:        total,
		StdDevKg:       std,
		UncertaintyPct: pct,
		CI95LowerKg:    total - 1.96*std,
		CI95UpperKg:    total + 1.96*std,
	}
}

// PairRSS combines two absolute standard deviations.
func PairRSS(a, b float64) float64 {
	return math.Sqrt(a*a + b*b)
}

// tierBasePct is the default relative uncertainty per factor tier: Tier 1
// default factors carry far more uncertainty than measured Tier 3 data.
var tierBasePct = map[int]float64{1: 50, 2: 25, 3: 10}

// DefaultPct returns the default relative uncertainty for a factor tier and
// data source quality. Unknown tiers are treated as Tier 1.
func DefaultPct(tier int, source string) float64 {
	base, ok := tierBasePct[tier]
	if !ok {
		base = 50
	}
	mult := 1.0
	switch strings.ToLower(source) {
	case "measured":
		mult = 0.5
	case "estimated":
		mult = 1.0
	case "default":
		mult = 1.5
	}
	return base * mult
}

// MonteCarloInput configures a simulation of the inventory total.
type MonteCarloInput struct {
	Items           []Item
	Iterations      int     // 0 means 10000
	ConfidenceLevel float64 // 0 means 0.95
	Workers         int     // 0 means 4
	Seed            int64   // worker w draws from Seed+w
}

// MonteCarloResult summarizes the simulated distribution of the total.
type MonteCarloResult struct {
	MeanKg     float64 `json:"mean_kg"`
	MedianKg   float64 `json:"median_kg"`
	StdDevKg   float64 `json:"std_dev_kg"`
	LowerKg    float64 `json:"lower_kg"`
	UpperKg    float64 `json:"upper_kg"`
	Confidence float64 `json:"confidence_level"`
	Iterations int     `json:"iterations"`
}

// MonteCarlo samples each line from a normal distribution clamped at zero
// and sums per iteration. Iterations are split across a fixed worker pool;
// each worker draws from its own seeded source, so a given seed always
// produces the same result regardless of scheduling.
func MonteCarlo(in MonteCarloInput) MonteCarloResult {
	iterations := in.Iterations
	if iterations <= 0 {
		iterations = 10000
	}
	confidence := in.ConfidenceLevel
	if confidence <= 0 {
		confidence = 0.95
	}
	workers := in.Workers
	if workers <= 0 {
		workers = 4
	}
	if workers > iterations {
		workers = iterations
	}
	if len(in.Items) == 0 {
		return MonteCarloResult{Confidence: confidence, Iterations: iterations}
	}

	totals := make([]float64, iterations)
	chunk := iterations / workers
	extra := iterations % workers

	var wg sync.WaitGroup
	start := 0
	for w := 0; w < workers; w++ {
		size := chunk
		if w < extra {
			size++
		}
		wg.Add(1)
		go func(worker, from, to int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(in.Seed + int64(worker)))
			for i := from; i < to; i++ {
				var total float64
				for _, item := range in.Items {
					std := item.ValueKg * item.UncertaintyPct / 100
					sample := rng.NormFloat64()*std + item.ValueKg
					if sample < 0 {
						sample = 0
					}
					total += sample
				}
				totals[i] = total
			}
		}(w, start, start+size)
		start += size
	}
	wg.Wait()

	sort.Float64s(totals)
	var sum float64
	for _, t := range totals {
		sum += t
	}
	lowerIdx := int((1 - confidence) / 2 * float64(iterations))
	upperIdx := int((1 + confidence) / 2 * float64(iterations))
	if upperIdx >= iterations {
		upperIdx = iterations - 1
	}
	lower := totals[lowerIdx]
	upper := totals[upperIdx]

	return MonteCarloResult{
		MeanKg:     sum / float64(iterations),
		MedianKg:   totals[iterations/2],
		StdDevKg:   (upper - lower) / (2 * 1.96),
		LowerKg:    lower,
		UpperKg:    upper,
		Confidence: confidence,
		Iterations: iterations,
	}
}

// ScopeUncertainty applies RSS per scope to a by-scope rollup. Gas lines
// carry no per-line uncertainty of their own, so each uses defaultPct
// (25 percent when zero).
func ScopeUncertainty(byScope map[int]aggregation.GroupTotals, defaultPct float64) map[int]Combined {
	if defaultPct <= 0 {
		defaultPct = 25
	}
	out := make(map[int]Combined, len(byScope))
	for scope, group := range byScope {
		items := make([]Item, 0, len(group.Gases))
		for gas, totals := range group.Gases {
			items = append(items, Item{Label: gas, ValueKg: totals.CO2eKg, UncertaintyPct: defaultPct})
		}
		out[scope] = CombineRSS(items)
	}
	return out
}

// QualityInput describes the evidence backing a data set.
type QualityInput struct {
	DataQuality      string  // high, medium or low
	Completeness     float64 // share of categories with data, 0..1
	HasDocumentation bool
}

// QualityScore rates activity data on a 0-100 scale: a base from the stated
// quality band, up to 15 points for completeness and 5 for documentation.
func QualityScore(in QualityInput) float64 {
	score := 50.0
	switch strings.ToLower(in.DataQuality) {
	case "high":
		score = 80
	case "medium":
		score = 50
	case "low":
		score = 20
	}
	score += in.Completeness * 15
	if in.HasDocumentation {
		score += 5
	}
	if score > 100 {
		score = 100
	}
	return score
}
