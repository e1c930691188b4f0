package parquet

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtxerr/salesetl/internal/storage/types"
)

func TestTransactionWriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.parquet")

	ts := time.Date(2025, 2, 24, 10, 30, 0, 0, time.UTC)
	txs := []types.Transaction{
		{ID: "a", CustomerID: 1001, ProductID: 201, Quantity: 2, Price: decimal.RequireFromString("20.05"), Timestamp: ts},
		{ID: "b", CustomerID: 1002, ProductID: 202, Quantity: 1, Price: decimal.RequireFromString("35.5"), Timestamp: ts.Add(time.Hour)},
	}

	rows := make([]TransactionRow, len(txs))
	for i := range txs {
		rows[i] = TransactionToRow(&txs[i])
	}
	require.NoError(t, WriteFile(path, rows, DefaultOptions()))

	got, err := ReadFile[TransactionRow](path)
	require.NoError(t, err)
	require.Len(t, got, 2)

	for i := range got {
		tx, err := RowToTransaction(&got[i], time.UTC)
		require.NoError(t, err)
		assert.Equal(t, txs[i].ID, tx.ID)
		assert.Equal(t, txs[i].CustomerID, tx.CustomerID)
		assert.True(t, txs[i].Price.Equal(tx.Price))
		assert.True(t, txs[i].Timestamp.Equal(tx.Timestamp))
	}

	info, err := GetFileInfo(path)
	require.NoError(t, err)
	assert.EqualValues(t, 2, info.NumRows)
	assert.Positive(t, info.Size)
}

func TestAggregateNullsSurvive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agg.parquet")

	aggs := []types.CustomerAggregate{
		{
			Customer:            types.Customer{CustomerID: 1001, Name: "Alice", Age: 25, Country: "USA"},
			HasTransactions:     true,
			TotalUniqueProducts: 2,
			TotalQuantity:       5,
			TotalSpent:          decimal.RequireFromString("32.0"),
		},
		{
			Customer: types.Customer{CustomerID: 1003, Name: "Charlie", Age: 35, Country: "UK"},
		},
	}

	rows := make([]AggregateRow, len(aggs))
	for i := range aggs {
		rows[i] = AggregateToRow(&aggs[i])
	}
	require.NoError(t, WriteFile(path, rows, Options{Compression: CompressionSnappy}))

	got, err := ReadFile[AggregateRow](path)
	require.NoError(t, err)
	require.Len(t, got, 2)

	alice, err := RowToAggregate(&got[0])
	require.NoError(t, err)
	assert.True(t, alice.HasTransactions)
	assert.EqualValues(t, 5, alice.TotalQuantity)
	assert.True(t, alice.TotalSpent.Equal(decimal.NewFromInt(32)))

	charlie, err := RowToAggregate(&got[1])
	require.NoError(t, err)
	assert.False(t, charlie.HasTransactions)
	assert.Nil(t, got[1].TotalQuantity)
	assert.Nil(t, got[1].TotalSpent)
	assert.Equal(t, "Charlie", charlie.Name)
}

func TestWriterPublishesOnClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "customers.parquet")

	w, err := NewWriter[CustomerRow](path, DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, w.Write([]CustomerRow{{CustomerID: 1, Name: "A"}}))
	assert.NoFileExists(t, path)

	require.NoError(t, w.Close())
	assert.FileExists(t, path)
	assert.EqualValues(t, 1, w.RowCount())
	assert.ErrorIs(t, w.Write([]CustomerRow{{CustomerID: 2}}), ErrWriterClosed)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestWriterAbort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aborted.parquet")

	w, err := NewWriter[CustomerRow](path, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, w.Write([]CustomerRow{{CustomerID: 1}}))
	w.Abort()

	assert.NoFileExists(t, path)
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile[CustomerRow](filepath.Join(t.TempDir(), "missing.parquet"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseCompressionType(t *testing.T) {
	assert.Equal(t, CompressionSnappy, ParseCompressionType("snappy"))
	assert.Equal(t, CompressionNone, ParseCompressionType(""))
	assert.Equal(t, CompressionGzip, ParseCompressionType("gzip"))
	assert.Equal(t, CompressionZstd, ParseCompressionType("unknown"))
}
