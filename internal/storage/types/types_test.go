package types

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", s)
	require.NoError(t, err)
	return ts
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("2025-02-24-10:00", time.UTC)
	require.NoError(t, err)

	assert.Equal(t, "2025-02-24-10:00", k.String())
	assert.Equal(t, "2025022410", k.Suffix())
	assert.Equal(t, "sales_table_2025022410", k.TableName("sales_table_"))

	start, end := k.Range()
	assert.Equal(t, mustTime(t, "2025-02-24 10:00"), start)
	assert.Equal(t, mustTime(t, "2025-02-24 11:00"), end)
}

func TestParseKeyRejects(t *testing.T) {
	for _, s := range []string{"", "2025-02-24 10:00", "2025-02-24-10:30", "2025-13-01-00:00"} {
		_, err := ParseKey(s, time.UTC)
		assert.Error(t, err, s)
	}
}

func TestKeyFor(t *testing.T) {
	k := KeyFor(mustTime(t, "2025-02-24 10:59"))
	assert.Equal(t, "2025-02-24-10:00", k.String())
	assert.True(t, k.Contains(mustTime(t, "2025-02-24 10:00")))
	assert.True(t, k.Contains(mustTime(t, "2025-02-24 10:59")))
	assert.False(t, k.Contains(mustTime(t, "2025-02-24 11:00")))
	assert.False(t, k.Contains(mustTime(t, "2025-02-24 09:59")))

	// Keys built from the same hour compare equal and work as map keys.
	assert.Equal(t, k, KeyFor(mustTime(t, "2025-02-24 10:01")))
}

func TestTableNamesAreDistinct(t *testing.T) {
	first := KeyFor(mustTime(t, "2024-12-31 00:00"))
	last := KeyFor(mustTime(t, "2025-03-02 00:00"))

	seen := make(map[string]PartitionKey)
	for _, k := range KeysBetween(first, last) {
		name := k.TableName("sales_table_")
		prev, dup := seen[name]
		require.False(t, dup, "%s collides with %s", k, prev)
		seen[name] = k
	}
	assert.Len(t, seen, 61*24+1)
}

func TestKeysBetween(t *testing.T) {
	first := KeyFor(mustTime(t, "2025-02-24 10:00"))
	last := KeyFor(mustTime(t, "2025-02-24 12:30"))

	keys := KeysBetween(first, last)
	require.Len(t, keys, 3)
	assert.Equal(t, "2025-02-24-11:00", keys[1].String())
	assert.Equal(t, "2025-02-24-12:00", keys[2].String())

	assert.Empty(t, KeysBetween(last, first))
}

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestKeysAcrossFallBack(t *testing.T) {
	ny := newYork(t)

	// Clocks go from 01:59 EDT back to 01:00 EST on 2025-11-02.
	first := KeyFor(time.Date(2025, 11, 2, 0, 0, 0, 0, ny))
	last := KeyFor(time.Date(2025, 11, 2, 3, 0, 0, 0, ny))

	keys := KeysBetween(first, last)
	require.Len(t, keys, 5)
	for i := 1; i < len(keys); i++ {
		assert.Equal(t, time.Hour, keys[i].Start().Sub(keys[i-1].Start()), "step %d", i)
	}

	edt, est := keys[1], keys[2]
	assert.True(t, edt.Ambiguous())
	assert.True(t, est.Ambiguous())
	assert.False(t, keys[0].Ambiguous())
	assert.Equal(t, "2025-11-02-01:00-04:00", edt.String())
	assert.Equal(t, "2025-11-02-01:00-05:00", est.String())
	assert.Equal(t, "2025-11-02-03:00", keys[4].String())

	names := make(map[string]bool)
	for _, k := range keys {
		names[k.TableName("sales_table_")] = true

		parsed, err := ParseKey(k.String(), ny)
		require.NoError(t, err, k.String())
		assert.True(t, parsed.Equal(k), "%s round trip", k)
	}
	assert.Len(t, names, 5)
	assert.Equal(t, "sales_table_2025110205", edt.TableName("sales_table_"))
	assert.Equal(t, "sales_table_2025110206", est.TableName("sales_table_"))

	// 01:30 EST lies in the second 01:00 hour and in no other.
	tx := time.Date(2025, 11, 2, 6, 30, 0, 0, time.UTC).In(ny)
	assert.Equal(t, est, KeyFor(tx))
	covering := 0
	for _, k := range keys {
		if k.Contains(tx) {
			covering++
		}
	}
	assert.Equal(t, 1, covering)
}

func TestKeysAcrossSpringForward(t *testing.T) {
	ny := newYork(t)

	// 02:00 EST does not exist on 2025-03-09.
	first := KeyFor(time.Date(2025, 3, 9, 0, 0, 0, 0, ny))
	last := KeyFor(time.Date(2025, 3, 9, 4, 0, 0, 0, ny))

	keys := KeysBetween(first, last)
	require.Len(t, keys, 4)
	assert.Equal(t, "2025-03-09-01:00", keys[1].String())
	assert.Equal(t, "2025-03-09-03:00", keys[2].String())
	assert.True(t, keys[1].Contains(time.Date(2025, 3, 9, 1, 59, 0, 0, ny)))
	assert.Equal(t, keys[2].Start(), keys[1].End())
}

func TestKeyForHalfHourOffset(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	k := KeyFor(time.Date(2025, 2, 24, 10, 45, 0, 0, kolkata))
	assert.Equal(t, "2025-02-24-10:00", k.String())
	assert.Equal(t, time.Date(2025, 2, 24, 4, 30, 0, 0, time.UTC), k.Start().UTC())
	assert.Equal(t, time.Hour, k.End().Sub(k.Start()))
}

func TestKeyForIgnoresMonotonicClock(t *testing.T) {
	now := time.Now()
	assert.Equal(t, KeyFor(now.Round(0)), KeyFor(now))

	groups := GroupByPartition([]Transaction{{ID: "a", Timestamp: now}, {ID: "b", Timestamp: now.Round(0)}})
	assert.Len(t, groups, 1)
}

func sampleTransactions(t *testing.T) []Transaction {
	return []Transaction{
		{ID: "1", CustomerID: 1001, ProductID: 201, Quantity: 2, Price: decimal.RequireFromString("20.0"), Timestamp: mustTime(t, "2025-02-24 10:00")},
		{ID: "2", CustomerID: 1002, ProductID: 202, Quantity: 1, Price: decimal.RequireFromString("35.5"), Timestamp: mustTime(t, "2025-02-24 11:00")},
		{ID: "3", CustomerID: 1001, ProductID: 203, Quantity: 3, Price: decimal.RequireFromString("12.0"), Timestamp: mustTime(t, "2025-02-24 10:30")},
	}
}

func TestFilterPartition(t *testing.T) {
	txs := sampleTransactions(t)

	got := FilterPartition(txs, KeyFor(mustTime(t, "2025-02-24 10:00")))
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)

	assert.Empty(t, FilterPartition(txs, KeyFor(mustTime(t, "2025-02-24 12:00"))))
}

func TestGroupByPartitionIsDisjointAndCovering(t *testing.T) {
	txs := sampleTransactions(t)
	groups := GroupByPartition(txs)

	total := 0
	for k, g := range groups {
		for _, tx := range g {
			assert.Equal(t, k, tx.Partition())
		}
		total += len(g)
	}
	assert.Equal(t, len(txs), total)
	assert.Len(t, groups, 2)
}

func TestCustomerAggregateNullables(t *testing.T) {
	a := CustomerAggregate{Customer: Customer{CustomerID: 1003}}
	assert.Nil(t, a.NullableQuantity())
	assert.False(t, a.NullableSpent().Valid)

	a.HasTransactions = true
	a.TotalQuantity = 5
	a.TotalSpent = decimal.RequireFromString("32.0")
	require.NotNil(t, a.NullableQuantity())
	assert.EqualValues(t, 5, *a.NullableQuantity())
	assert.True(t, a.NullableSpent().Decimal.Equal(decimal.NewFromInt(32)))
}
