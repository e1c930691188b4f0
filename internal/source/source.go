// Package source reads the raw transaction and customer flat files.
//
// Sources are CSV (UTF-8 or ISO-8859-1) or Parquet files. Every read parses
// the full file; concurrent reads of the same file are coalesced into one,
// and a ReadCache in the context keeps the parse for a whole run.
// Failures are reported as ErrSourceUnavailable when the file cannot be
// opened or read and as ErrSourceMalformed when its schema or values do not
// parse.
package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	defaults "github.com/xtxerr/salesetl/config"
	"github.com/xtxerr/salesetl/internal/logging"
	"github.com/xtxerr/salesetl/internal/pipeline/config"
	"github.com/xtxerr/salesetl/internal/storage/types"
)

var log = logging.Component("source")

// TransactionSource yields the full raw transaction dataset.
type TransactionSource interface {
	Name() string
	Transactions(ctx context.Context) ([]types.Transaction, error)
}

// CustomerSource yields the full raw customer dataset.
type CustomerSource interface {
	Name() string
	Customers(ctx context.Context) ([]types.Customer, error)
}

// Format is the physical format of a source file.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// Options controls how a source file is decoded.
type Options struct {
	Format           Format
	Encoding         string
	Delimiter        rune
	TimestampLayouts []string
	Location         *time.Location
}

// DefaultOptions returns options for a Latin-1 comma separated CSV file.
func DefaultOptions() Options {
	return Options{
		Format:           FormatCSV,
		Encoding:         defaults.DefaultSourceEncoding,
		Delimiter:        ',',
		TimestampLayouts: defaults.DefaultTimestampLayouts,
		Location:         time.UTC,
	}
}

// OptionsFrom builds Options for sc using the shared settings of cfg.
func OptionsFrom(cfg *config.Config, sc config.SourceConfig) (Options, error) {
	loc, err := cfg.TimeLocation()
	if err != nil {
		return Options{}, fmt.Errorf("location: %w", err)
	}

	opts := DefaultOptions()
	opts.Location = loc
	if len(cfg.TimestampLayouts) > 0 {
		opts.TimestampLayouts = cfg.TimestampLayouts
	}
	if sc.Format != "" {
		opts.Format = Format(strings.ToLower(sc.Format))
	}
	if sc.Encoding != "" {
		opts.Encoding = sc.Encoding
	}
	if sc.Delimiter != "" {
		opts.Delimiter = []rune(sc.Delimiter)[0]
	}

	return opts, nil
}

// PartitionedSource serves the records of one hourly partition.
type PartitionedSource interface {
	TransactionSource

	// Partition returns the transactions of key in source order and the
	// number of transactions scanned to find them.
	Partition(ctx context.Context, key types.PartitionKey) ([]types.Transaction, int, error)
}

// TransactionFile is a TransactionSource backed by a file.
//
// TransactionFile is safe for concurrent use. Callers must treat the
// returned slice as read-only since concurrent callers may share it.
type TransactionFile struct {
	path  string
	opts  Options
	group singleflight.Group
}

// NewTransactionFile returns a TransactionSource reading path.
func NewTransactionFile(path string, opts Options) *TransactionFile {
	return &TransactionFile{path: path, opts: opts}
}

// Name returns the file path.
func (f *TransactionFile) Name() string {
	return f.path
}

// Transactions reads and parses the whole file. Within a context carrying
// a ReadCache the file is parsed at most once.
func (f *TransactionFile) Transactions(ctx context.Context) ([]types.Transaction, error) {
	set, err := f.read(ctx)
	if err != nil {
		return nil, err
	}
	return set.all, nil
}

// Partition returns the transactions of key. With a ReadCache the lookup
// uses an index built once per read; otherwise the file is filtered.
func (f *TransactionFile) Partition(ctx context.Context, key types.PartitionKey) ([]types.Transaction, int, error) {
	set, err := f.read(ctx)
	if err != nil {
		return nil, 0, err
	}
	return set.partition(key), len(set.all), nil
}

func (f *TransactionFile) read(ctx context.Context) (*transactionSet, error) {
	cache := readCacheFrom(ctx)
	if v, ok := cache.get(f.path); ok {
		return v.(*transactionSet), nil
	}

	v, shared, err := sharedRead(ctx, &f.group, f.path, func(ctx context.Context) (interface{}, error) {
		start := time.Now()

		var (
			txs []types.Transaction
			err error
		)
		switch f.opts.Format {
		case FormatParquet:
			txs, err = readTransactionsParquet(f.path, f.opts)
		default:
			txs, err = readTransactionsCSV(ctx, f.path, f.opts)
		}
		if err != nil {
			return nil, err
		}

		log.Debug("read transactions",
			"path", f.path,
			"rows", len(txs),
			"elapsed", time.Since(start))
		return newTransactionSet(txs, cache != nil), nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug("coalesced transaction read", "path", f.path)
	}

	set := v.(*transactionSet)
	if cache != nil {
		set = cache.put(f.path, set).(*transactionSet)
	}
	return set, nil
}

// transactionSet is one parse of a transaction file.
type transactionSet struct {
	all []types.Transaction

	// byHour maps the unix start of a partition to its transactions.
	// It is nil when the set is not cached.
	byHour map[int64][]types.Transaction
}

func newTransactionSet(txs []types.Transaction, indexed bool) *transactionSet {
	set := &transactionSet{all: txs}
	if indexed {
		groups := types.GroupByPartition(txs)
		set.byHour = make(map[int64][]types.Transaction, len(groups))
		for key, group := range groups {
			set.byHour[key.Start().Unix()] = group
		}
	}
	return set
}

func (s *transactionSet) partition(key types.PartitionKey) []types.Transaction {
	if s.byHour == nil {
		return types.FilterPartition(s.all, key)
	}
	return s.byHour[key.Start().Unix()]
}

// CustomerFile is a CustomerSource backed by a file.
type CustomerFile struct {
	path  string
	opts  Options
	group singleflight.Group
}

// NewCustomerFile returns a CustomerSource reading path.
func NewCustomerFile(path string, opts Options) *CustomerFile {
	return &CustomerFile{path: path, opts: opts}
}

// Name returns the file path.
func (f *CustomerFile) Name() string {
	return f.path
}

// Customers reads and parses the whole file.
func (f *CustomerFile) Customers(ctx context.Context) ([]types.Customer, error) {
	v, _, err := sharedRead(ctx, &f.group, f.path, func(ctx context.Context) (interface{}, error) {
		switch f.opts.Format {
		case FormatParquet:
			return readCustomersParquet(f.path)
		default:
			return readCustomersCSV(ctx, f.path, f.opts)
		}
	})
	if err != nil {
		return nil, err
	}
	return v.([]types.Customer), nil
}

// sharedRead runs read once for all concurrent callers of key. The read is
// detached from the cancellation of whichever caller started it; each
// caller stops waiting when its own ctx is done.
func sharedRead(ctx context.Context, g *singleflight.Group, key string, read func(context.Context) (interface{}, error)) (interface{}, bool, error) {
	detached := context.WithoutCancel(ctx)
	ch := g.DoChan(key, func() (interface{}, error) {
		return read(detached)
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		return res.Val, res.Shared, res.Err
	}
}
