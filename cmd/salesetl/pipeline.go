package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/xtxerr/salesetl/internal/aggregator"
	"github.com/xtxerr/salesetl/internal/errors"
	"github.com/xtxerr/salesetl/internal/export"
	"github.com/xtxerr/salesetl/internal/loader"
	"github.com/xtxerr/salesetl/internal/partition"
	"github.com/xtxerr/salesetl/internal/pipeline/config"
	"github.com/xtxerr/salesetl/internal/scheduler"
	"github.com/xtxerr/salesetl/internal/source"
	"github.com/xtxerr/salesetl/internal/storage/types"
	"github.com/xtxerr/salesetl/internal/store"
)

// pipeline holds the components of one invocation.
type pipeline struct {
	store        *store.Store
	transactions *source.TransactionFile
	customerSrc  *source.CustomerFile
	customers    *loader.CustomerLoader
	aggregator   *aggregator.Aggregator
	exporter     *export.Exporter
	workers      int
	now          func() time.Time
}

func openPipeline(cfg *config.Config) (*pipeline, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, errors.NewStorage("prepare directories", "", err)
	}

	storeOpts, err := store.OptionsFrom(cfg)
	if err != nil {
		return nil, errors.NewValidation("location", err.Error())
	}
	txOpts, err := source.OptionsFrom(cfg, cfg.Sources.Transactions)
	if err != nil {
		return nil, errors.NewValidation("sources.transactions", err.Error())
	}
	custOpts, err := source.OptionsFrom(cfg, cfg.Sources.Customers)
	if err != nil {
		return nil, errors.NewValidation("sources.customers", err.Error())
	}

	s, err := store.Open(storeOpts)
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		store:        s,
		transactions: source.NewTransactionFile(cfg.TransactionsPath(), txOpts),
		customerSrc:  source.NewCustomerFile(cfg.CustomersPath(), custOpts),
		aggregator:   aggregator.New(s),
		exporter:     export.FromConfig(cfg),
		workers:      cfg.Scheduler.Workers,
		now:          time.Now,
	}
	p.customers = loader.NewCustomerLoader(p.customerSrc, s)
	return p, nil
}

func (p *pipeline) Close() error {
	return p.store.Close()
}

// resolver scans the transaction source once for the earliest partition.
func (p *pipeline) resolver(ctx context.Context) (*partition.Resolver, error) {
	return partition.NewResolver(ctx, p.transactions)
}

func (p *pipeline) scheduler(r *partition.Resolver) *scheduler.Scheduler {
	sales := loader.NewSalesLoader(p.transactions, p.store,
		loader.WithResolver(r), loader.WithClock(p.now))

	var exp scheduler.Exporter
	if p.exporter != nil {
		exp = p.exporter
	}
	return scheduler.New(&scheduler.Config{Workers: p.workers}, sales, p.customers, p.aggregator, exp)
}

func (p *pipeline) listPartitions(ctx context.Context, w io.Writer) error {
	r, err := p.resolver(ctx)
	if err != nil {
		return err
	}
	entries, err := p.store.Partitions(ctx)
	if err != nil {
		return err
	}

	loaded := make(map[string]store.PartitionEntry, len(entries))
	for _, e := range entries {
		loaded[e.Table] = e
	}

	tables, err := p.store.PartitionTables(ctx)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(tables))
	for _, name := range tables {
		present[name] = true
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PARTITION\tTABLE\tROWS\tP50_PRICE\tLOADED_AT")
	for _, key := range r.Keys(p.now()) {
		table := p.store.PartitionTable(key)
		e, ok := loaded[table]
		if !ok {
			state := "-"
			if present[table] {
				state = "unregistered"
			}
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t%s\n", key, table, state)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%s\n", key, e.Table, e.Rows, e.Profile.P50, e.LoadedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func (p *pipeline) loadPartitions(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.NewMissingField("partition key")
	}

	r, err := p.resolver(ctx)
	if err != nil {
		return err
	}

	now := p.now()
	keys := make([]types.PartitionKey, 0, len(args))
	for _, arg := range args {
		key, err := r.Parse(arg, now)
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}

	report, err := p.scheduler(r).LoadPartitions(ctx, keys)
	if err != nil {
		return err
	}
	for _, res := range report.Partitions {
		if res.Empty() {
			fmt.Printf("%s: no transactions\n", res.Key)
			continue
		}
		fmt.Printf("%s: %d rows -> %s\n", res.Key, len(res.Records), res.Table)
	}
	return nil
}

func (p *pipeline) loadCustomers(ctx context.Context) error {
	customers, err := p.customers.LoadCustomers(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d customers -> %s\n", len(customers), p.store.Tables().Customers)
	return nil
}

func (p *pipeline) aggregate(ctx context.Context) error {
	result, err := p.aggregator.AggregateStored(ctx)
	if err != nil {
		return err
	}
	if p.exporter != nil {
		if err := p.exporter.Write(ctx, result.Aggregates); err != nil {
			return err
		}
	}
	fmt.Printf("%d customers from %d partitions -> %s\n",
		len(result.Aggregates), result.Partitions, p.store.Tables().Aggregates)
	return nil
}

func (p *pipeline) runAll(ctx context.Context) error {
	r, err := p.resolver(ctx)
	if err != nil {
		return err
	}

	report, err := p.scheduler(r).Run(ctx, r.Keys(p.now()))
	if err != nil {
		return err
	}
	fmt.Printf("run %s: %d/%d partitions with data, %d customers aggregated in %s\n",
		report.RunID, report.Loaded(), len(report.Partitions), len(report.Aggregate.Aggregates),
		report.Duration.Round(time.Millisecond))
	return nil
}
