// Package store is the storage gateway of the pipeline.
//
// It owns the DuckDB database file and exposes replace-table writes and
// ad-hoc reads for the partition, customer and aggregate tables. Every
// replace runs in a single transaction, so readers see either the previous
// or the new table contents, never a mix. The store also maintains the
// partition registry: one row per materialized hourly partition, written in
// the same transaction as the partition table itself.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	defaults "github.com/xtxerr/salesetl/config"
	"github.com/xtxerr/salesetl/internal/errors"
	"github.com/xtxerr/salesetl/internal/logging"
	"github.com/xtxerr/salesetl/internal/pipeline/config"
	"github.com/xtxerr/salesetl/internal/validation"
)

var log = logging.Component("store")

// =============================================================================
// Store Configuration
// =============================================================================

// Options holds store configuration options.
type Options struct {
	// Path is the database file. Empty opens an in-memory database.
	Path string

	// MemoryLimit is the DuckDB memory limit, e.g. "1GB".
	MemoryLimit string

	// Threads is the DuckDB worker thread count. 0 keeps the default.
	Threads int

	// Tables names the physical tables.
	Tables config.TablesConfig

	// Location is applied to timestamps read back from the store.
	Location *time.Location
}

// DefaultOptions returns Options with the default table names.
func DefaultOptions() Options {
	return Options{
		MemoryLimit: defaults.DefaultMemoryLimit,
		Tables:      config.DefaultConfig().Tables,
		Location:    time.UTC,
	}
}

// OptionsFrom builds store Options from the pipeline configuration.
func OptionsFrom(cfg *config.Config) (Options, error) {
	loc, err := cfg.TimeLocation()
	if err != nil {
		return Options{}, fmt.Errorf("location: %w", err)
	}
	return Options{
		Path:        cfg.DatabasePath(),
		MemoryLimit: cfg.Database.MemoryLimit,
		Threads:     cfg.Database.Threads,
		Tables:      cfg.Tables,
		Location:    loc,
	}, nil
}

// =============================================================================
// Store
// =============================================================================

// Store provides table operations on the relational backend.
//
// Store is safe for concurrent use. Replace operations are serialized so
// that concurrent partition loads never race on catalog changes.
type Store struct {
	db     *sql.DB
	opts   Options
	mu     sync.RWMutex
	writes sync.Mutex
	closed bool
}

// Open opens (or creates) the DuckDB database described by opts.
func Open(opts Options) (*Store, error) {
	db, err := sql.Open("duckdb", opts.Path)
	if err != nil {
		return nil, errors.NewStorage("open database", opts.Path, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaults.DefaultPingTimeout)
	defer cancel()

	if opts.MemoryLimit != "" {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("SET memory_limit='%s'", opts.MemoryLimit)); err != nil {
			db.Close()
			return nil, errors.NewStorage("set memory limit", "", err)
		}
	}
	if opts.Threads > 0 {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("SET threads=%d", opts.Threads)); err != nil {
			db.Close()
			return nil, errors.NewStorage("set threads", "", err)
		}
	}

	s, err := New(db, opts)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Info("opened database", "path", displayPath(opts.Path))
	return s, nil
}

// New wraps an already open database handle, checks that it answers and
// ensures the registry exists.
func New(db *sql.DB, opts Options) (*Store, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	for _, name := range []string{opts.Tables.Registry, opts.Tables.Customers, opts.Tables.Aggregates} {
		if err := validation.ValidateIdentifier(name); err != nil {
			return nil, errors.NewValidation("table name", fmt.Sprintf("%q: %v", name, err))
		}
	}
	if err := validation.ValidatePartitionPrefix(opts.Tables.PartitionPrefix); err != nil {
		return nil, errors.NewValidation("partition prefix", fmt.Sprintf("%q: %v", opts.Tables.PartitionPrefix, err))
	}

	s := &Store{db: db, opts: opts}

	ctx, cancel := context.WithTimeout(context.Background(), defaults.DefaultPingTimeout)
	defer cancel()

	if err := s.Health(ctx); err != nil {
		return nil, errors.NewStorage("ping database", displayPath(opts.Path), err)
	}
	if err := s.ensureRegistry(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// Close closes the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.db.Close()
}

// DB returns the underlying database connection.
// Use with caution - prefer using Store methods.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Tables returns the configured table names.
func (s *Store) Tables() config.TablesConfig {
	return s.opts.Tables
}

// =============================================================================
// Transaction Support
// =============================================================================

// replace runs fn in a write transaction, serialized with all other writes.
//
// If fn returns an error, the transaction is rolled back and no change
// becomes visible.
func (s *Store) replace(ctx context.Context, fn func(*sql.Tx) error) error {
	s.writes.Lock()
	defer s.writes.Unlock()

	return s.TransactionContext(ctx, fn)
}

// TransactionContext executes a function within a database transaction with context.
func (s *Store) TransactionContext(ctx context.Context, fn func(*sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := ctx.Err(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("context cancelled before commit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// =============================================================================
// Ad-hoc Reads
// =============================================================================

// TableExists reports whether a table named name exists.
func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM information_schema.tables WHERE table_name = ?`, name).Scan(&n)
	if err != nil {
		return false, errors.NewStorage("lookup", name, err)
	}
	return n > 0, nil
}

// RowCount returns the number of rows in table.
func (s *Store) RowCount(ctx context.Context, table string) (int64, error) {
	if err := validation.ValidateIdentifier(table); err != nil {
		return 0, errors.NewValidation("table name", fmt.Sprintf("%q: %v", table, err))
	}
	if err := s.requireTable(ctx, s.db, table); err != nil {
		return 0, err
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM "+quoteIdent(table)).Scan(&n); err != nil {
		return 0, errors.NewStorage("count", table, err)
	}
	return n, nil
}

// PartitionTables lists every table whose name starts with the partition
// prefix, registered or not. Tables left behind by other writers show up
// here but never in Partitions.
func (s *Store) PartitionTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_name LIKE ? ESCAPE '\'
		ORDER BY table_name`, validation.SafeLikePrefix(s.opts.Tables.PartitionPrefix))
	if err != nil {
		return nil, errors.NewStorage("list tables", "", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.NewStorage("list tables", "", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage("list tables", "", err)
	}
	return tables, nil
}

// Health checks database connectivity.
func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// requireTable returns ErrTableNotFound when table was never materialized.
func (s *Store) requireTable(ctx context.Context, q queryer, table string) error {
	var n int64
	err := q.QueryRowContext(ctx,
		`SELECT count(*) FROM information_schema.tables WHERE table_name = ?`, table).Scan(&n)
	if err != nil {
		return errors.NewStorage("lookup", table, err)
	}
	if n == 0 {
		return errors.NewTableNotFound(table)
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// quoteIdent quotes a table name for use in SQL text.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// placeholders returns "(?, ?, ...)" groups for a multi-row INSERT.
func placeholders(row string, n int) string {
	var b strings.Builder
	b.Grow(n * (len(row) + 2))
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(row)
	}
	return b.String()
}

func displayPath(p string) string {
	if p == "" {
		return ":memory:"
	}
	return p
}
