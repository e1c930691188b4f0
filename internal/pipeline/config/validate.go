package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xtxerr/salesetl/internal/logging"
	"github.com/xtxerr/salesetl/internal/validation"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	// Database
	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}

	// Sources
	if err := c.Sources.Transactions.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sources.transactions: %w", err))
	}
	if err := c.Sources.Customers.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sources.customers: %w", err))
	}

	// Timestamps
	if len(c.TimestampLayouts) == 0 {
		errs = append(errs, errors.New("timestamp_layouts must not be empty"))
	}
	if c.Location != "" {
		loc, err := time.LoadLocation(c.Location)
		if err == nil {
			err = checkWholeHourShifts(loc)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("location: %w", err))
		}
	}

	// Tables
	if err := c.Tables.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tables: %w", err))
	}

	// Scheduler
	if c.Scheduler.Workers <= 0 {
		errs = append(errs, errors.New("scheduler.workers must be positive"))
	}

	// Export
	if err := c.Export.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("export: %w", err))
	}

	// Logging
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// checkWholeHourShifts rejects locations whose UTC offset changed by a
// fraction of an hour since 2000. Partition tables are named after the UTC
// hour a partition starts in, which is only unique when every partition
// starts in its own UTC hour.
func checkWholeHourShifts(loc *time.Location) error {
	t := time.Date(2000, 1, 1, 0, 0, 0, 0, loc)
	until := time.Date(2100, 1, 1, 0, 0, 0, 0, loc)

	for t.Before(until) {
		_, end := t.ZoneBounds()
		if end.IsZero() {
			return nil
		}
		_, before := t.Zone()
		_, after := end.Zone()
		if shift := after - before; shift%3600 != 0 {
			return fmt.Errorf("%s shifts its offset by %s at %s; only whole-hour shifts are supported",
				loc, time.Duration(shift)*time.Second, end.UTC().Format(time.RFC3339))
		}
		t = end
	}
	return nil
}

// Validate checks the database configuration.
func (c *DatabaseConfig) Validate() error {
	if c.Threads < 0 {
		return errors.New("threads must not be negative")
	}
	if strings.ContainsAny(c.MemoryLimit, "'\";") {
		return errors.New("memory_limit contains invalid characters")
	}
	return nil
}

// Validate checks a source configuration.
func (c *SourceConfig) Validate() error {
	var errs []error

	if c.Path == "" {
		errs = append(errs, errors.New("path is required"))
	}

	switch strings.ToLower(c.Format) {
	case "csv", "":
		switch strings.ToLower(c.Encoding) {
		case "", "utf-8", "utf8", "iso-8859-1", "latin1", "latin-1":
		default:
			errs = append(errs, fmt.Errorf("encoding must be one of: utf-8, iso-8859-1"))
		}
		if len([]rune(c.Delimiter)) > 1 {
			errs = append(errs, errors.New("delimiter must be a single character"))
		}
	case "parquet":
	default:
		errs = append(errs, fmt.Errorf("format must be one of: csv, parquet"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the table names.
func (c *TablesConfig) Validate() error {
	var errs []error

	named := []struct {
		field string
		value string
	}{
		{"partition_prefix", c.PartitionPrefix},
		{"customers", c.Customers},
		{"aggregates", c.Aggregates},
		{"registry", c.Registry},
	}

	seen := make(map[string]string)
	for i, n := range named {
		check := validation.ValidateIdentifier
		if i == 0 {
			check = validation.ValidatePartitionPrefix
		}
		if err := check(n.value); err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", n.field, n.value, err))
			continue
		}
		key := strings.ToLower(n.value)
		if other, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("%s and %s must differ", other, n.field))
		}
		seen[key] = n.field
	}

	// A fixed table must never look like a partition table.
	prefix := strings.ToLower(c.PartitionPrefix)
	for _, n := range named[1:] {
		if prefix != "" && strings.HasPrefix(strings.ToLower(n.value), prefix) {
			errs = append(errs, fmt.Errorf("%s must not start with partition_prefix", n.field))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the export configuration.
func (c *ExportConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	var errs []error

	if c.Path == "" {
		errs = append(errs, errors.New("path is required when enabled"))
	}

	switch c.Compression {
	case "snappy", "zstd", "lz4", "gzip", "none", "":
	default:
		errs = append(errs, fmt.Errorf("compression must be one of: snappy, zstd, lz4, gzip, none"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
