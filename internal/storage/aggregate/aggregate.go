// Package aggregate provides streaming accumulators for sales data.
//
// Profiler keeps running price statistics with DDSketch quantiles.
// Rollup groups transactions by customer and joins the result onto the
// customer table.
package aggregate

import (
	"math"
	"sync"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/shopspring/decimal"

	"github.com/xtxerr/salesetl/internal/storage/types"
)

// DefaultAccuracy is the relative accuracy of profile quantiles.
const DefaultAccuracy = 0.01

// Profiler maintains running statistics for a stream of values.
type Profiler struct {
	mu sync.Mutex

	accuracy float64

	count int64
	min   float64
	max   float64

	// nil if the sketch could not be created
	sketch *ddsketch.DDSketch
}

// NewProfiler creates a Profiler with DefaultAccuracy.
func NewProfiler() *Profiler {
	return NewProfilerWithAccuracy(DefaultAccuracy)
}

// NewProfilerWithAccuracy creates a Profiler with custom quantile accuracy.
func NewProfilerWithAccuracy(accuracy float64) *Profiler {
	p := &Profiler{accuracy: accuracy}
	p.reset()
	return p
}

func (p *Profiler) reset() {
	p.count = 0
	p.min = math.MaxFloat64
	p.max = -math.MaxFloat64

	// DDSketch doesn't have a Clear method
	sketch, err := ddsketch.NewDefaultDDSketch(p.accuracy)
	if err == nil {
		p.sketch = sketch
	} else {
		p.sketch = nil
	}
}

// Add adds a value to the profile.
func (p *Profiler) Add(value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.count++
	if value < p.min {
		p.min = value
	}
	if value > p.max {
		p.max = value
	}
	if p.sketch != nil {
		// Add only fails outside the indexable range
		_ = p.sketch.Add(value)
	}
}

// AddDecimal adds a decimal value to the profile.
func (p *Profiler) AddDecimal(d decimal.Decimal) {
	f, _ := d.Float64()
	p.Add(f)
}

// AddTransactions adds the price of every transaction.
func (p *Profiler) AddTransactions(txs []types.Transaction) {
	for i := range txs {
		p.AddDecimal(txs[i].Price)
	}
}

// Count returns the number of values added.
func (p *Profiler) Count() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// IsEmpty returns true if no values have been added.
func (p *Profiler) IsEmpty() bool {
	return p.Count() == 0
}

// Profile returns the current statistics. An empty profiler yields the
// zero PriceProfile.
func (p *Profiler) Profile() types.PriceProfile {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.count == 0 {
		return types.PriceProfile{}
	}

	result := types.PriceProfile{
		Count: p.count,
		Min:   p.min,
		Max:   p.max,
	}

	if p.sketch != nil {
		result.P50, _ = p.sketch.GetValueAtQuantile(0.50)
		result.P90, _ = p.sketch.GetValueAtQuantile(0.90)
		result.P99, _ = p.sketch.GetValueAtQuantile(0.99)

		// Sketch quantiles are approximate; keep them inside the exact range.
		result.P50 = clamp(result.P50, p.min, p.max)
		result.P90 = clamp(result.P90, p.min, p.max)
		result.P99 = clamp(result.P99, p.min, p.max)
	}

	return result
}

// Reset clears the profiler for reuse.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}

// Merge combines another profiler into this one.
func (p *Profiler) Merge(other *Profiler) {
	if other == nil || other == p {
		return
	}

	other.mu.Lock()
	defer other.mu.Unlock()
	if other.count == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.count += other.count
	if other.min < p.min {
		p.min = other.min
	}
	if other.max > p.max {
		p.max = other.max
	}

	if p.sketch != nil && other.sketch != nil {
		_ = p.sketch.MergeWith(other.sketch)
	}
}

// ProfileTransactions returns the price profile of txs.
func ProfileTransactions(txs []types.Transaction) types.PriceProfile {
	p := NewProfiler()
	p.AddTransactions(txs)
	return p.Profile()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
