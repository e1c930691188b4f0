// Package types defines the core data types used throughout the pipeline.
//
// Key types:
//   - Transaction: A single sale from the raw transaction source
//   - Customer: A customer record from the raw customer source
//   - CustomerAggregate: Per-customer rollup joined onto the customer record
//   - PartitionKey: Hour-aligned identifier of a sales partition
package types
