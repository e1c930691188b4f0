// Package aggregator computes the per-customer rollup over every
// materialized sales partition and writes the aggregated table.
package aggregator

import (
	"context"
	"time"

	"github.com/xtxerr/salesetl/internal/errors"
	"github.com/xtxerr/salesetl/internal/logging"
	"github.com/xtxerr/salesetl/internal/storage/aggregate"
	"github.com/xtxerr/salesetl/internal/storage/types"
	"github.com/xtxerr/salesetl/internal/store"
)

var aggLog = logging.Component("aggregator")

// Store is the part of the storage gateway the aggregator uses.
// Satisfied by *store.Store.
type Store interface {
	ReadPartitions(ctx context.Context) (*store.Snapshot, error)
	ReadCustomers(ctx context.Context) ([]types.Customer, error)
	ReplaceAggregates(ctx context.Context, aggs []types.CustomerAggregate) error
}

// Result is the outcome of one aggregation run.
type Result struct {
	// Aggregates has one row per customer, in customer order.
	Aggregates []types.CustomerAggregate

	Partitions   int
	Transactions int
	Stats        aggregate.RollupStats
	Spend        types.PriceProfile
	Duration     time.Duration
}

// Aggregator joins partitioned sales onto customers.
type Aggregator struct {
	store Store
}

// New creates an Aggregator over s.
func New(s Store) *Aggregator {
	return &Aggregator{store: s}
}

// Aggregate rolls up all registered partitions by customer, left-joins the
// totals onto customers and replaces the aggregated table with the result.
//
// Every failure is returned wrapped in ErrAggregationFailed with the cause
// preserved. With no registered partition the cause is ErrNoDataFound.
func (a *Aggregator) Aggregate(ctx context.Context, customers []types.Customer) (*Result, error) {
	return a.aggregate(ctx, func() ([]types.Customer, error) { return customers, nil })
}

// AggregateStored runs Aggregate against the customer table of the store.
// The partition check comes first, so an empty store reports ErrNoDataFound.
func (a *Aggregator) AggregateStored(ctx context.Context) (*Result, error) {
	return a.aggregate(ctx, func() ([]types.Customer, error) { return a.store.ReadCustomers(ctx) })
}

func (a *Aggregator) aggregate(ctx context.Context, customersFn func() ([]types.Customer, error)) (*Result, error) {
	log := logging.FromContext(ctx, aggLog)
	start := time.Now()

	snap, err := a.store.ReadPartitions(ctx)
	if err != nil {
		return nil, errors.NewAggregationFailed(err)
	}
	if len(snap.Entries) == 0 {
		return nil, errors.NewAggregationFailed(errors.ErrNoDataFound)
	}

	customers, err := customersFn()
	if err != nil {
		return nil, errors.NewAggregationFailed(err)
	}

	rollup := aggregate.NewRollup()
	rollup.ProcessBatch(snap.Transactions)
	aggs := rollup.Join(customers)

	if err := a.store.ReplaceAggregates(ctx, aggs); err != nil {
		return nil, errors.NewAggregationFailed(err)
	}

	result := &Result{
		Aggregates:   aggs,
		Partitions:   len(snap.Entries),
		Transactions: len(snap.Transactions),
		Stats:        rollup.Stats(),
		Spend:        rollup.SpendProfile(),
		Duration:     time.Since(start),
	}

	if result.Stats.OrphanCustomers > 0 {
		log.Warn("transactions reference unknown customers", "customers", result.Stats.OrphanCustomers)
	}

	log.Info("aggregated sales",
		"partitions", result.Partitions,
		"transactions", result.Transactions,
		"customers", len(aggs),
		"without_sales", result.Stats.CustomersWithoutSales,
		"price_p50", result.Spend.P50,
		"price_p99", result.Spend.P99,
		"duration", result.Duration)

	return result, nil
}
