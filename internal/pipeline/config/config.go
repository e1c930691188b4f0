// Package config holds the pipeline configuration object.
//
// A single Config is built at startup (from YAML or DefaultConfig) and passed
// to every component at construction. Nothing in the pipeline reads ambient
// global state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	defaults "github.com/xtxerr/salesetl/config"
	"gopkg.in/yaml.v3"
)

// Config represents the complete pipeline configuration.
type Config struct {
	// DataDir is the root directory for sources, database and exports.
	// Relative paths elsewhere in the config are resolved against it.
	DataDir string `yaml:"data_dir"`

	// Database configures the relational store.
	Database DatabaseConfig `yaml:"database"`

	// Sources configures the raw input files.
	Sources SourcesConfig `yaml:"sources"`

	// TimestampLayouts are tried in order when parsing TRANSACTION_DATE.
	TimestampLayouts []string `yaml:"timestamp_layouts"`

	// Location is the IANA time zone of source timestamps.
	Location string `yaml:"location"`

	// Tables names the physical tables.
	Tables TablesConfig `yaml:"tables"`

	// Scheduler configures the backfill runner.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Export configures the Parquet export of the aggregated table.
	Export ExportConfig `yaml:"export"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// DatabaseConfig configures the DuckDB store.
type DatabaseConfig struct {
	// Path is the database file. Empty means in-memory.
	Path string `yaml:"path"`

	// MemoryLimit is the DuckDB memory limit, e.g. "1GB".
	MemoryLimit string `yaml:"memory_limit"`

	// Threads is the DuckDB worker thread count. 0 keeps the engine default.
	Threads int `yaml:"threads"`
}

// SourcesConfig configures the raw input files.
type SourcesConfig struct {
	Transactions SourceConfig `yaml:"transactions"`
	Customers    SourceConfig `yaml:"customers"`
}

// SourceConfig describes a single flat file.
type SourceConfig struct {
	// Path of the file.
	Path string `yaml:"path"`

	// Format is csv or parquet.
	Format string `yaml:"format"`

	// Encoding is the CSV character set: utf-8 or iso-8859-1.
	Encoding string `yaml:"encoding"`

	// Delimiter is the CSV field separator.
	Delimiter string `yaml:"delimiter"`
}

// TablesConfig names the physical tables.
type TablesConfig struct {
	// PartitionPrefix prefixes hourly partition tables.
	PartitionPrefix string `yaml:"partition_prefix"`

	// Customers is the customer mirror table.
	Customers string `yaml:"customers"`

	// Aggregates is the per-customer rollup table.
	Aggregates string `yaml:"aggregates"`

	// Registry records every materialized partition.
	Registry string `yaml:"registry"`
}

// SchedulerConfig configures the backfill runner.
type SchedulerConfig struct {
	// Workers is the number of partitions loaded concurrently.
	Workers int `yaml:"workers"`
}

// ExportConfig configures the Parquet export.
type ExportConfig struct {
	// Enabled writes the aggregated table to Path after each aggregation.
	Enabled bool `yaml:"enabled"`

	// Path of the Parquet file.
	Path string `yaml:"path"`

	// Compression is snappy, zstd, lz4, gzip or none.
	Compression string `yaml:"compression"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// JSON switches to JSON output.
	JSON bool `yaml:"json"`
}

// Load loads configuration from a YAML file.
// Environment variables in the file are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	layouts := make([]string, len(defaults.DefaultTimestampLayouts))
	copy(layouts, defaults.DefaultTimestampLayouts)

	return &Config{
		DataDir: defaults.DefaultDataDir,
		Database: DatabaseConfig{
			Path:        defaults.DefaultDatabaseFile,
			MemoryLimit: defaults.DefaultMemoryLimit,
		},
		Sources: SourcesConfig{
			Transactions: SourceConfig{
				Path:      defaults.DefaultTransactionsFile,
				Format:    defaults.DefaultSourceFormat,
				Encoding:  defaults.DefaultSourceEncoding,
				Delimiter: ",",
			},
			Customers: SourceConfig{
				Path:      defaults.DefaultCustomersFile,
				Format:    defaults.DefaultSourceFormat,
				Encoding:  defaults.DefaultSourceEncoding,
				Delimiter: ",",
			},
		},
		TimestampLayouts: layouts,
		Location:         "UTC",
		Tables: TablesConfig{
			PartitionPrefix: defaults.DefaultPartitionPrefix,
			Customers:       defaults.DefaultCustomersTable,
			Aggregates:      defaults.DefaultAggregatesTable,
			Registry:        defaults.DefaultRegistryTable,
		},
		Scheduler: SchedulerConfig{
			Workers: defaults.DefaultSchedulerWorkers,
		},
		Export: ExportConfig{
			Enabled:     false,
			Path:        defaults.DefaultExportFile,
			Compression: "zstd",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ResolvePath resolves p against DataDir unless it is absolute.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || c.DataDir == "" {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// DatabasePath returns the resolved database file, or "" for in-memory.
func (c *Config) DatabasePath() string {
	return c.ResolvePath(c.Database.Path)
}

// TransactionsPath returns the resolved raw transaction source.
func (c *Config) TransactionsPath() string {
	return c.ResolvePath(c.Sources.Transactions.Path)
}

// CustomersPath returns the resolved raw customer source.
func (c *Config) CustomersPath() string {
	return c.ResolvePath(c.Sources.Customers.Path)
}

// ExportPath returns the resolved Parquet export file.
func (c *Config) ExportPath() string {
	return c.ResolvePath(c.Export.Path)
}

// TimeLocation returns the configured time zone, defaulting to UTC.
func (c *Config) TimeLocation() (*time.Location, error) {
	if c.Location == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Location)
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	var dirs []string
	if p := c.DatabasePath(); p != "" {
		dirs = append(dirs, filepath.Dir(p))
	}
	if c.Export.Enabled {
		dirs = append(dirs, filepath.Dir(c.ExportPath()))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
