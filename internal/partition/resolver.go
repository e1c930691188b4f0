// Package partition derives the legal set of hourly partition keys.
//
// The earliest partition is computed once from the raw transaction source
// when the Resolver is built. Every later question about keys is answered
// from that bound without touching the source again.
package partition

import (
	"context"
	"time"

	"github.com/xtxerr/salesetl/internal/errors"
	"github.com/xtxerr/salesetl/internal/logging"
	"github.com/xtxerr/salesetl/internal/source"
	"github.com/xtxerr/salesetl/internal/storage/types"
)

var log = logging.Component("resolver")

// Resolver bounds the partition keys a scheduler may request.
// It is immutable and safe for concurrent use.
type Resolver struct {
	earliest types.PartitionKey
}

// NewResolver scans src once and returns a Resolver starting at the hour
// of the earliest transaction.
func NewResolver(ctx context.Context, src source.TransactionSource) (*Resolver, error) {
	earliest, err := EarliestPartition(ctx, src)
	if err != nil {
		return nil, err
	}

	r := &Resolver{earliest: types.KeyFor(earliest)}
	log.Info("resolved earliest partition", "source", src.Name(), "partition", r.earliest.String())
	return r, nil
}

// NewResolverFrom returns a Resolver whose earliest partition contains t.
func NewResolverFrom(t time.Time) *Resolver {
	return &Resolver{earliest: types.KeyFor(t)}
}

// EarliestPartition returns the minimum transaction timestamp of src,
// floored to the hour. A source without any transaction has no valid
// timestamp and is reported as malformed.
func EarliestPartition(ctx context.Context, src source.TransactionSource) (time.Time, error) {
	txs, err := src.Transactions(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if len(txs) == 0 {
		return time.Time{}, errors.NewSourceMalformed(src.Name(), "no transaction timestamps")
	}

	earliest := txs[0].Timestamp
	for i := 1; i < len(txs); i++ {
		if txs[i].Timestamp.Before(earliest) {
			earliest = txs[i].Timestamp
		}
	}

	return types.KeyFor(earliest).Start(), nil
}

// PartitionRange returns the half-open hourly interval [start, end) of key.
func PartitionRange(key types.PartitionKey) (time.Time, time.Time) {
	return key.Range()
}

// Earliest returns the first legal key.
func (r *Resolver) Earliest() types.PartitionKey {
	return r.earliest
}

// Location returns the location partition keys are expressed in.
func (r *Resolver) Location() *time.Location {
	return r.earliest.Start().Location()
}

// Range returns the half-open hourly interval [start, end) of key.
func (r *Resolver) Range(key types.PartitionKey) (time.Time, time.Time) {
	return PartitionRange(key)
}

// Latest returns the key of the hour containing now.
func (r *Resolver) Latest(now time.Time) types.PartitionKey {
	return types.KeyFor(now.In(r.Location()))
}

// Keys returns every legal key from the earliest partition up to and
// including the hour containing now, in ascending order.
func (r *Resolver) Keys(now time.Time) []types.PartitionKey {
	return types.KeysBetween(r.earliest, r.Latest(now))
}

// Validate returns ErrInvalidPartitionKey if key lies outside the legal range.
func (r *Resolver) Validate(key types.PartitionKey, now time.Time) error {
	if key.IsZero() {
		return errors.NewInvalidPartitionKey("", "empty key")
	}
	if key.Before(r.earliest) {
		return errors.NewInvalidPartitionKey(key.String(), "before earliest partition "+r.earliest.String())
	}
	if latest := r.Latest(now); latest.Before(key) {
		return errors.NewInvalidPartitionKey(key.String(), "after latest partition "+latest.String())
	}
	return nil
}

// Parse parses the "YYYY-MM-DD-HH:MM" form of a key and validates it.
func (r *Resolver) Parse(s string, now time.Time) (types.PartitionKey, error) {
	key, err := types.ParseKey(s, r.Location())
	if err != nil {
		return types.PartitionKey{}, errors.NewInvalidPartitionKey(s, err.Error())
	}
	if err := r.Validate(key, now); err != nil {
		return types.PartitionKey{}, err
	}
	return key, nil
}
