// Package scheduler drives a complete pipeline run.
//
// A run loads every requested hourly partition with bounded concurrency,
// loads the customer table once in parallel with them, and aggregates only
// after both have succeeded. Source files are parsed once per run. The
// scheduler does not retry; the first failure cancels the remaining loads
// and ends the run.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/salesetl/config"
	"github.com/xtxerr/salesetl/internal/aggregator"
	"github.com/xtxerr/salesetl/internal/errors"
	"github.com/xtxerr/salesetl/internal/loader"
	"github.com/xtxerr/salesetl/internal/logging"
	"github.com/xtxerr/salesetl/internal/source"
	"github.com/xtxerr/salesetl/internal/storage/types"
)

var log = logging.Component("scheduler")

// =============================================================================
// Collaborators
// =============================================================================

// PartitionLoader loads one hourly partition. Satisfied by *loader.SalesLoader.
type PartitionLoader interface {
	LoadPartition(ctx context.Context, key types.PartitionKey) (*loader.PartitionResult, error)
}

// CustomerLoader loads the customer table. Satisfied by *loader.CustomerLoader.
type CustomerLoader interface {
	LoadCustomers(ctx context.Context) ([]types.Customer, error)
}

// Aggregator builds the aggregated table. Satisfied by *aggregator.Aggregator.
type Aggregator interface {
	Aggregate(ctx context.Context, customers []types.Customer) (*aggregator.Result, error)
}

// Exporter publishes the aggregated table. Satisfied by *export.Exporter.
type Exporter interface {
	Write(ctx context.Context, aggs []types.CustomerAggregate) error
}

// =============================================================================
// Scheduler Configuration
// =============================================================================

// Config holds scheduler configuration.
type Config struct {
	// Workers is the number of partitions loaded concurrently.
	Workers int
}

// DefaultConfig returns default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		Workers: config.DefaultSchedulerWorkers,
	}
}

// =============================================================================
// Scheduler
// =============================================================================

// Scheduler runs the pipeline's assets in dependency order.
//
// Scheduler is safe for concurrent use, though runs against the same store
// serialize on its writes.
type Scheduler struct {
	sales     PartitionLoader
	customers CustomerLoader
	agg       Aggregator
	exporter  Exporter

	workers int

	// Metrics
	runs              atomic.Int64
	runsFailed        atomic.Int64
	partitionsLoaded  atomic.Int64
	partitionsEmpty   atomic.Int64
	partitionsActive  atomic.Int64
	transactionsTotal atomic.Int64
}

// New creates a new Scheduler. exporter may be nil.
func New(cfg *Config, sales PartitionLoader, customers CustomerLoader, agg Aggregator, exporter Exporter) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Scheduler{
		sales:     sales,
		customers: customers,
		agg:       agg,
		exporter:  exporter,
		workers:   workers,
	}
}

// Report summarizes one run.
type Report struct {
	RunID string

	// Partitions holds one result per requested key, ordered by key.
	Partitions []*loader.PartitionResult

	Customers int
	Aggregate *aggregator.Result
	Duration  time.Duration
}

// Loaded returns the number of partitions that held transactions.
func (r *Report) Loaded() int {
	n := 0
	for _, p := range r.Partitions {
		if !p.Empty() {
			n++
		}
	}
	return n
}

// Run loads keys and the customer table, then aggregates.
func (s *Scheduler) Run(ctx context.Context, keys []types.PartitionKey) (*Report, error) {
	ctx, report := s.begin(ctx)
	log := logging.FromContext(ctx, log)
	start := time.Now()

	log.Info("run started", "partitions", len(keys), "workers", s.workers)

	var customers []types.Customer

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		customers, err = s.customers.LoadCustomers(logging.ContextWithAsset(gctx, "customers"))
		if err != nil {
			return errors.Wrap(err, "load customers")
		}
		return nil
	})
	g.Go(func() error {
		results, err := s.loadPartitions(gctx, keys)
		report.Partitions = results
		return err
	})

	if err := g.Wait(); err != nil {
		return s.fail(ctx, report, err)
	}
	report.Customers = len(customers)

	result, err := s.agg.Aggregate(logging.ContextWithAsset(ctx, "aggregate"), customers)
	if err != nil {
		return s.fail(ctx, report, errors.Wrap(err, "aggregate"))
	}
	report.Aggregate = result

	if s.exporter != nil {
		if err := s.exporter.Write(logging.ContextWithAsset(ctx, "export"), result.Aggregates); err != nil {
			return s.fail(ctx, report, errors.Wrap(err, "export"))
		}
	}

	report.Duration = time.Since(start)
	log.Info("run completed",
		"partitions", len(report.Partitions),
		"loaded", report.Loaded(),
		"customers", report.Customers,
		"duration", report.Duration)

	return report, nil
}

// LoadPartitions loads keys with bounded concurrency without aggregating.
func (s *Scheduler) LoadPartitions(ctx context.Context, keys []types.PartitionKey) (*Report, error) {
	ctx, report := s.begin(ctx)
	start := time.Now()

	results, err := s.loadPartitions(ctx, keys)
	report.Partitions = results
	if err != nil {
		return s.fail(ctx, report, err)
	}

	report.Duration = time.Since(start)
	logging.FromContext(ctx, log).Info("partitions loaded",
		"partitions", len(results),
		"loaded", report.Loaded(),
		"duration", report.Duration)
	return report, nil
}

// begin tags ctx with a run id and a source read cache, keeping either if
// the caller already provided one.
func (s *Scheduler) begin(ctx context.Context) (context.Context, *Report) {
	s.runs.Add(1)
	ctx = source.WithReadCache(ctx)

	runID := logging.RunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = logging.ContextWithRunID(ctx, runID)
	}
	return ctx, &Report{RunID: runID}
}

func (s *Scheduler) fail(ctx context.Context, report *Report, err error) (*Report, error) {
	s.runsFailed.Add(1)
	logging.FromContext(ctx, log).Error("run failed", "error", err)
	return report, err
}

// loadPartitions loads every key. Results are ordered by key and contain
// only the partitions that finished.
func (s *Scheduler) loadPartitions(ctx context.Context, keys []types.PartitionKey) ([]*loader.PartitionResult, error) {
	var (
		mu      sync.Mutex
		results = make([]*loader.PartitionResult, 0, len(keys))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, key := range keys {
		key := key
		g.Go(func() error {
			s.partitionsActive.Add(1)
			defer s.partitionsActive.Add(-1)

			pctx := logging.ContextWithAsset(gctx, "sales")
			result, err := s.sales.LoadPartition(pctx, key)
			if err != nil {
				return errors.Wrapf(err, "load partition %s", key)
			}

			if result.Empty() {
				s.partitionsEmpty.Add(1)
			} else {
				s.partitionsLoaded.Add(1)
				s.transactionsTotal.Add(int64(len(result.Records)))
			}

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Key.Before(results[j].Key)
	})
	return results, err
}

// =============================================================================
// Statistics
// =============================================================================

// Stats holds scheduler statistics.
type Stats struct {
	Runs              int64
	RunsFailed        int64
	PartitionsLoaded  int64
	PartitionsEmpty   int64
	PartitionsActive  int64
	TransactionsTotal int64
	Workers           int
}

// Stats returns current scheduler statistics.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Runs:              s.runs.Load(),
		RunsFailed:        s.runsFailed.Load(),
		PartitionsLoaded:  s.partitionsLoaded.Load(),
		PartitionsEmpty:   s.partitionsEmpty.Load(),
		PartitionsActive:  s.partitionsActive.Load(),
		TransactionsTotal: s.transactionsTotal.Load(),
		Workers:           s.workers,
	}
}
