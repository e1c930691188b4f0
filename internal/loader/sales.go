// Package loader materializes raw source files into the store.
//
// SalesLoader writes one hourly partition per call. CustomerLoader mirrors
// the whole customer source into a single table. Both fully replace their
// target table, so reprocessing is idempotent.
package loader

import (
	"context"
	"time"

	"github.com/xtxerr/salesetl/internal/logging"
	"github.com/xtxerr/salesetl/internal/partition"
	"github.com/xtxerr/salesetl/internal/source"
	"github.com/xtxerr/salesetl/internal/storage/aggregate"
	"github.com/xtxerr/salesetl/internal/storage/types"
	"github.com/xtxerr/salesetl/internal/store"
)

var (
	salesLog    = logging.Component("sales_loader")
	customerLog = logging.Component("customer_loader")
)

// PartitionWriter persists one partition. Satisfied by *store.Store.
type PartitionWriter interface {
	ReplacePartition(ctx context.Context, key types.PartitionKey, txs []types.Transaction, profile types.PriceProfile) (store.PartitionEntry, error)
}

// PartitionResult is the outcome of one partition load.
type PartitionResult struct {
	Key types.PartitionKey

	// Table is empty when nothing was written.
	Table string

	// Records are exactly the persisted transactions.
	Records []types.Transaction

	Profile  types.PriceProfile
	Duration time.Duration
}

// Empty reports whether the partition held no transactions.
func (r *PartitionResult) Empty() bool {
	return len(r.Records) == 0
}

// SalesLoader loads hourly sales partitions.
type SalesLoader struct {
	src      source.TransactionSource
	store    PartitionWriter
	resolver *partition.Resolver
	now      func() time.Time
}

// SalesOption configures a SalesLoader.
type SalesOption func(*SalesLoader)

// WithResolver makes LoadPartition reject keys outside the resolver's range.
func WithResolver(r *partition.Resolver) SalesOption {
	return func(l *SalesLoader) { l.resolver = r }
}

// WithClock overrides the clock used for key validation.
func WithClock(now func() time.Time) SalesOption {
	return func(l *SalesLoader) { l.now = now }
}

// NewSalesLoader creates a SalesLoader reading src and writing to w.
func NewSalesLoader(src source.TransactionSource, w PartitionWriter, opts ...SalesOption) *SalesLoader {
	l := &SalesLoader{src: src, store: w, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadPartition reads the transaction source, selects the records of key
// and replaces the partition table for key with them.
//
// An hour without transactions is not an error: a warning is logged,
// nothing is written and the result is empty. A table written by an
// earlier run for that key is left untouched.
func (l *SalesLoader) LoadPartition(ctx context.Context, key types.PartitionKey) (*PartitionResult, error) {
	ctx = logging.ContextWithPartition(ctx, key.String())
	log := logging.FromContext(ctx, salesLog)
	start := time.Now()

	if l.resolver != nil {
		if err := l.resolver.Validate(key, l.now()); err != nil {
			return nil, err
		}
	}

	selected, scanned, err := l.read(ctx, key)
	if err != nil {
		return nil, err
	}

	result := &PartitionResult{Key: key, Records: selected}

	if len(selected) == 0 {
		log.Warn("no transactions in partition", "source", l.src.Name(), "scanned", scanned)
		result.Duration = time.Since(start)
		return result, nil
	}

	result.Profile = aggregate.ProfileTransactions(selected)

	entry, err := l.store.ReplacePartition(ctx, key, selected, result.Profile)
	if err != nil {
		return nil, err
	}
	result.Table = entry.Table
	result.Duration = time.Since(start)

	log.Info("loaded partition",
		"table", entry.Table,
		"rows", len(selected),
		"scanned", scanned,
		"price_min", result.Profile.Min,
		"price_p50", result.Profile.P50,
		"price_p99", result.Profile.P99,
		"price_max", result.Profile.Max,
		"duration", result.Duration)

	return result, nil
}

func (l *SalesLoader) read(ctx context.Context, key types.PartitionKey) ([]types.Transaction, int, error) {
	if ps, ok := l.src.(source.PartitionedSource); ok {
		return ps.Partition(ctx, key)
	}

	txs, err := l.src.Transactions(ctx)
	if err != nil {
		return nil, 0, err
	}
	return types.FilterPartition(txs, key), len(txs), nil
}
