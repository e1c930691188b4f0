package types

import (
	"fmt"
	"time"

	"github.com/xtxerr/salesetl/config"
)

// PartitionKey identifies an hourly sales partition by the start of its hour.
// The zero value is not a valid key.
type PartitionKey struct {
	start time.Time
}

// KeyFor returns the key of the hour containing t.
//
// Hours follow the wall clock of t's location but are delimited by absolute
// instants, so the hour repeated when clocks fall back is two distinct keys.
func KeyFor(t time.Time) PartitionKey {
	return PartitionKey{start: floorHour(t)}
}

// ParseKey parses the "YYYY-MM-DD-HH:MM" form of a key in loc. The minutes
// must be zero. A trailing UTC offset ("2025-11-02-01:00-05:00") selects
// one of two repeated hours.
func ParseKey(s string, loc *time.Location) (PartitionKey, error) {
	if loc == nil {
		loc = time.UTC
	}
	layout := config.PartitionKeyLayout
	if len(s) > len(layout) {
		layout = config.PartitionKeyOffsetLayout
	}
	t, err := time.ParseInLocation(layout, s, loc)
	if err != nil {
		return PartitionKey{}, fmt.Errorf("parse partition key %q: %w", s, err)
	}
	t = t.In(loc)
	if !floorHour(t).Equal(t) {
		return PartitionKey{}, fmt.Errorf("partition key %q is not hour aligned", s)
	}
	return PartitionKey{start: t}, nil
}

// floorHour drops the wall-clock minutes and below from t. The result keeps
// t's location and carries no monotonic reading, so keys compare with ==.
func floorHour(t time.Time) time.Time {
	into := time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
	return t.Add(-into).Round(0)
}

// IsZero reports whether k is the zero key.
func (k PartitionKey) IsZero() bool {
	return k.start.IsZero()
}

// Start returns the inclusive start of the partition.
func (k PartitionKey) Start() time.Time {
	return k.start
}

// End returns the exclusive end of the partition, which is the start of
// the next one. It is one hour after Start except across offset changes
// that are not a whole hour.
func (k PartitionKey) End() time.Time {
	return k.Next().start
}

// Range returns the half-open interval [start, end) covered by k.
func (k PartitionKey) Range() (time.Time, time.Time) {
	return k.Start(), k.End()
}

// Contains reports whether t floors to k.
func (k PartitionKey) Contains(t time.Time) bool {
	return !t.Before(k.Start()) && t.Before(k.End())
}

// Next returns the key of the following hour. It is always later than k.
func (k PartitionKey) Next() PartitionKey {
	return KeyFor(k.start.Add(config.PartitionGranularity))
}

// Before reports whether k precedes other.
func (k PartitionKey) Before(other PartitionKey) bool {
	return k.start.Before(other.start)
}

// Equal reports whether k and other denote the same hour.
func (k PartitionKey) Equal(other PartitionKey) bool {
	return k.start.Equal(other.start)
}

// String returns the "YYYY-MM-DD-HH:MM" form. Wall-clock hours that occur
// twice carry their UTC offset so that ParseKey gets back the same key.
func (k PartitionKey) String() string {
	if k.Ambiguous() {
		return k.start.Format(config.PartitionKeyOffsetLayout)
	}
	return k.start.Format(config.PartitionKeyLayout)
}

// Ambiguous reports whether the wall-clock hour of k occurs twice, as it
// does when clocks fall back.
func (k PartitionKey) Ambiguous() bool {
	if k.IsZero() {
		return false
	}
	s := k.start.Format(config.PartitionKeyLayout)
	return k.start.Add(-config.PartitionGranularity).Format(config.PartitionKeyLayout) == s ||
		k.start.Add(config.PartitionGranularity).Format(config.PartitionKeyLayout) == s
}

// Suffix returns the fixed-width "YYYYMMDDHH" table suffix of the UTC hour
// k starts in. For UTC keys this is the hour of String.
func (k PartitionKey) Suffix() string {
	return k.start.UTC().Format(config.PartitionSuffixLayout)
}

// TableName returns the partition table for k under prefix.
// Distinct keys yield distinct names in any location whose offsets change
// by whole hours.
func (k PartitionKey) TableName(prefix string) string {
	return prefix + k.Suffix()
}

// KeysBetween returns every key from first up to and including last.
func KeysBetween(first, last PartitionKey) []PartitionKey {
	if last.Before(first) {
		return nil
	}
	var keys []PartitionKey
	for k := first; !last.Before(k); k = k.Next() {
		keys = append(keys, k)
	}
	return keys
}
