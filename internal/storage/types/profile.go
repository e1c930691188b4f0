package types

// PriceProfile summarizes the price distribution of a set of transactions.
// Quantiles are approximate (relative accuracy set by the profiler).
type PriceProfile struct {
	Count int64
	Min   float64
	Max   float64
	P50   float64
	P90   float64
	P99   float64
}

// IsEmpty returns true if the profile covers no transactions.
func (p *PriceProfile) IsEmpty() bool {
	return p.Count == 0
}
