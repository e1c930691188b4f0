package aggregate

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/xtxerr/salesetl/internal/storage/types"
)

// customerTotals is the running rollup of one customer's transactions.
type customerTotals struct {
	products map[int64]struct{}
	quantity int64
	spent    decimal.Decimal
}

// Rollup groups transactions by customer.
//
// Totals are commutative, so transactions may be processed in any order and
// from any number of partitions.
type Rollup struct {
	mu sync.RWMutex

	totals map[int64]*customerTotals

	// Spend of every processed transaction, for the run summary
	spend *Profiler

	stats RollupStats
}

// RollupStats holds statistics for a rollup.
type RollupStats struct {
	TransactionsProcessed int64
	CustomersSeen         int64
	CustomersJoined       int64
	CustomersWithoutSales int64
	OrphanCustomers       int64 // Customer ids in sales but not in the customer table
}

// NewRollup creates an empty rollup.
func NewRollup() *Rollup {
	return &Rollup{
		totals: make(map[int64]*customerTotals),
		spend:  NewProfiler(),
	}
}

// Process adds a transaction to its customer's totals.
func (r *Rollup) Process(tx types.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.totals[tx.CustomerID]
	if !ok {
		t = &customerTotals{products: make(map[int64]struct{})}
		r.totals[tx.CustomerID] = t
	}

	t.products[tx.ProductID] = struct{}{}
	t.quantity += tx.Quantity
	t.spent = t.spent.Add(tx.Price)

	r.spend.AddDecimal(tx.Price)
	r.stats.TransactionsProcessed++
}

// ProcessBatch processes multiple transactions.
func (r *Rollup) ProcessBatch(txs []types.Transaction) {
	for i := range txs {
		r.Process(txs[i])
	}
}

// Join left-joins the rollup onto customers. The result has exactly one row
// per customer, in the order given. Customers without transactions get zero
// unique products and no quantity or spend.
func (r *Rollup) Join(customers []types.Customer) []types.CustomerAggregate {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined := make(map[int64]struct{}, len(customers))
	result := make([]types.CustomerAggregate, len(customers))
	r.stats.CustomersJoined = 0
	r.stats.CustomersWithoutSales = 0

	for i, c := range customers {
		agg := types.CustomerAggregate{Customer: c}

		if t, ok := r.totals[c.CustomerID]; ok {
			agg.HasTransactions = true
			agg.TotalUniqueProducts = int64(len(t.products))
			agg.TotalQuantity = t.quantity
			agg.TotalSpent = t.spent
			r.stats.CustomersJoined++
		} else {
			r.stats.CustomersWithoutSales++
		}

		joined[c.CustomerID] = struct{}{}
		result[i] = agg
	}

	r.stats.OrphanCustomers = 0
	for id := range r.totals {
		if _, ok := joined[id]; !ok {
			r.stats.OrphanCustomers++
		}
	}

	return result
}

// SpendProfile returns the price profile of all processed transactions.
func (r *Rollup) SpendProfile() types.PriceProfile {
	return r.spend.Profile()
}

// Stats returns current statistics.
func (r *Rollup) Stats() RollupStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := r.stats
	stats.CustomersSeen = int64(len(r.totals))
	return stats
}
