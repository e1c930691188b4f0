// Package parquet implements Parquet file reading and writing for pipeline records.
//
// The package provides:
//   - Row types for transactions, customers and customer aggregates
//   - A generic Writer that publishes files atomically on Close
//   - ReadAll for whole-file reads of raw Parquet sources
//   - Support for multiple compression algorithms (snappy, zstd, lz4, gzip)
package parquet
