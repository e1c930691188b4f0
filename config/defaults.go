// Package config provides configuration defaults
// for the salesetl pipeline.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or environment variables.
package config

import "time"

// =============================================================================
// Location Defaults
// =============================================================================

const (
	// DefaultDataDir is the directory holding raw sources and the database.
	// Override via config: data_dir
	DefaultDataDir = "data"

	// DefaultDatabaseFile is the DuckDB file name inside DefaultDataDir.
	// Override via config: database.path
	DefaultDatabaseFile = "thoughtspot.db"

	// DefaultTransactionsFile is the raw transaction source.
	// Override via config: sources.transactions.path
	DefaultTransactionsFile = "transactions.csv"

	// DefaultCustomersFile is the raw customer source.
	// Override via config: sources.customers.path
	DefaultCustomersFile = "customer.csv"

	// DefaultExportFile is the Parquet export of the aggregated table.
	// Override via config: export.path
	DefaultExportFile = "customer_aggregated_data.parquet"
)

// =============================================================================
// Source Defaults
// =============================================================================

const (
	// DefaultSourceEncoding is the character set of raw CSV sources.
	// The generator writes Latin-1 files.
	// Override via config: sources.*.encoding
	DefaultSourceEncoding = "iso-8859-1"

	// DefaultSourceFormat is the raw source file format (csv or parquet).
	// Override via config: sources.*.format
	DefaultSourceFormat = "csv"

	// DefaultTimestampLayout is the layout of TRANSACTION_DATE.
	// Override via config: timestamp_layouts
	DefaultTimestampLayout = "2006-01-02 15:04"
)

// DefaultTimestampLayouts lists accepted TRANSACTION_DATE layouts in order.
var DefaultTimestampLayouts = []string{
	DefaultTimestampLayout,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339,
}

// =============================================================================
// Table Defaults
// =============================================================================

const (
	// DefaultPartitionPrefix prefixes every hourly sales partition table.
	// Override via config: tables.partition_prefix
	DefaultPartitionPrefix = "sales_table_"

	// DefaultCustomersTable holds the customer mirror.
	// Override via config: tables.customers
	DefaultCustomersTable = "customer_data"

	// DefaultAggregatesTable holds the per-customer rollup.
	// Override via config: tables.aggregates
	DefaultAggregatesTable = "customer_aggregated_data"

	// DefaultRegistryTable records every materialized partition.
	// Override via config: tables.registry
	DefaultRegistryTable = "sales_partitions"
)

// =============================================================================
// Partition Defaults
// =============================================================================

const (
	// PartitionGranularity is the width of one sales partition.
	PartitionGranularity = time.Hour

	// PartitionKeyLayout is the string form of a partition key.
	PartitionKeyLayout = "2006-01-02-15:04"

	// PartitionKeyOffsetLayout names one of two wall-clock hours that repeat
	// when clocks fall back.
	PartitionKeyOffsetLayout = PartitionKeyLayout + "Z07:00"

	// PartitionSuffixLayout is the fixed-width table name suffix of a key,
	// formatted in UTC.
	PartitionSuffixLayout = "2006010215"
)

// =============================================================================
// Scheduler Defaults
// =============================================================================

const (
	// DefaultSchedulerWorkers is the number of partitions loaded concurrently
	// during a backfill. Writes are still serialized by the store.
	// Override via config: scheduler.workers
	DefaultSchedulerWorkers = 4
)

// =============================================================================
// Database Defaults
// =============================================================================

const (
	// DefaultMemoryLimit is the DuckDB memory limit.
	// Override via config: database.memory_limit
	DefaultMemoryLimit = "1GB"

	// DefaultPingTimeout bounds the connectivity check on open.
	DefaultPingTimeout = 5 * time.Second
)
