// LOCATION: internal/errors/errors.go
//
// This file provides:
// - Sentinel errors for all pipeline error conditions
// - Error category checking functions
// - Exit code mapping for the CLI
// - Error wrapping utilities and constructors with context

package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Exit codes - returned by cmd/salesetl
// ============================================================================

const (
	ExitOK                = 0
	ExitUnknown           = 1
	ExitInvalidConfig     = 2
	ExitSourceUnavailable = 3
	ExitSourceMalformed   = 4
	ExitStorage           = 5
	ExitNoData            = 6
	ExitAggregation       = 7
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Source errors
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrSourceMalformed   = errors.New("source malformed")

	// Storage errors
	ErrStorage       = errors.New("storage error")
	ErrTableNotFound = errors.New("table not found")

	// Aggregation errors
	ErrNoDataFound       = errors.New("no partitioned sales data found")
	ErrAggregationFailed = errors.New("aggregation failed")

	// Validation errors
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrMissingField        = errors.New("missing required field")
	ErrInvalidPartitionKey = errors.New("invalid partition key")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// New is a convenience wrapper for errors.New
var New = errors.New

// Join is a convenience wrapper for errors.Join
var Join = errors.Join

// IsSourceError returns true if err originates from reading a raw source.
func IsSourceError(err error) bool {
	return errors.Is(err, ErrSourceUnavailable) ||
		errors.Is(err, ErrSourceMalformed)
}

// IsStorageError returns true if err originates from the storage backend.
func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorage) ||
		errors.Is(err, ErrTableNotFound)
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidPartitionKey)
}

// IsRetriable returns true if a caller may reasonably retry the invocation
// without changing its inputs. Malformed sources and invalid keys stay broken.
func IsRetriable(err error) bool {
	if errors.Is(err, ErrSourceMalformed) || IsValidation(err) {
		return false
	}
	return errors.Is(err, ErrSourceUnavailable) ||
		errors.Is(err, ErrStorage) ||
		errors.Is(err, ErrNoDataFound)
}

// ============================================================================
// Error to exit code mapping
// ============================================================================

// ExitCode maps an error to the process exit code used by the CLI.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	switch {
	// NoData before Aggregation, which may wrap it
	case Is(err, ErrNoDataFound):
		return ExitNoData
	case Is(err, ErrAggregationFailed):
		return ExitAggregation

	case IsValidation(err):
		return ExitInvalidConfig
	case Is(err, ErrSourceUnavailable):
		return ExitSourceUnavailable
	case Is(err, ErrSourceMalformed):
		return ExitSourceMalformed
	case IsStorageError(err):
		return ExitStorage

	default:
		return ExitUnknown
	}
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewSourceUnavailable reports a raw source that cannot be opened or read.
func NewSourceUnavailable(source string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", source, ErrSourceUnavailable)
	}
	return fmt.Errorf("%s: %w: %w", source, ErrSourceUnavailable, cause)
}

// NewSourceMalformed reports a raw source whose schema or values do not parse.
func NewSourceMalformed(source, detail string) error {
	return fmt.Errorf("%s: %w: %s", source, ErrSourceMalformed, detail)
}

// NewStorage reports a backend failure for op on table.
func NewStorage(op, table string, cause error) error {
	if table == "" {
		return fmt.Errorf("%s: %w: %w", op, ErrStorage, cause)
	}
	return fmt.Errorf("%s %s: %w: %w", op, table, ErrStorage, cause)
}

// NewTableNotFound reports a read of a table that was never materialized.
func NewTableNotFound(table string) error {
	return fmt.Errorf("table '%s': %w", table, ErrTableNotFound)
}

// NewAggregationFailed wraps cause so that both ErrAggregationFailed and the
// original error kind remain matchable with errors.Is.
func NewAggregationFailed(cause error) error {
	if cause == nil {
		return ErrAggregationFailed
	}
	return fmt.Errorf("%w: %w", ErrAggregationFailed, cause)
}

// NewInvalidPartitionKey reports a key that is malformed or out of range.
func NewInvalidPartitionKey(key, reason string) error {
	return fmt.Errorf("partition '%s': %s: %w", key, reason, ErrInvalidPartitionKey)
}

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// ============================================================================
// Validation Errors Collection
// ============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, NewValidation(field, reason))
}

// AddMissing adds a missing field error.
func (v *ValidationErrors) AddMissing(field string) {
	v.Errors = append(v.Errors, NewMissingField(field))
}

// HasErrors returns true if there are any errors.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap returns the collected errors for errors.Is/As support.
func (v *ValidationErrors) Unwrap() []error {
	return v.Errors
}
