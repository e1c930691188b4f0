package export

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtxerr/salesetl/internal/errors"
	"github.com/xtxerr/salesetl/internal/pipeline/config"
	"github.com/xtxerr/salesetl/internal/storage/parquet"
	"github.com/xtxerr/salesetl/internal/storage/types"
)

func TestWriteAndRead(t *testing.T) {
	e := New(filepath.Join(t.TempDir(), "agg.parquet"), parquet.DefaultOptions())

	in := []types.CustomerAggregate{
		{
			Customer:            types.Customer{CustomerID: 1001, Name: "Alice", Age: 25, Country: "USA"},
			HasTransactions:     true,
			TotalUniqueProducts: 2,
			TotalQuantity:       5,
			TotalSpent:          decimal.RequireFromString("32.0"),
		},
		{Customer: types.Customer{CustomerID: 1003, Name: "Charlie", Age: 35, Country: "UK"}},
		{Customer: types.Customer{CustomerID: 1004, Name: "Dana", AgeUnknown: true}},
	}
	require.NoError(t, e.Write(context.Background(), in))

	out, err := e.Read()
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Nil(t, out[2].NullableAge())
	assert.EqualValues(t, 35, out[1].Age)
	assert.True(t, out[0].HasTransactions)
	assert.True(t, out[0].TotalSpent.Equal(in[0].TotalSpent))
	assert.False(t, out[1].HasTransactions)
	assert.Equal(t, "Charlie", out[1].Name)
}

func TestWriteManyBatches(t *testing.T) {
	e := New(filepath.Join(t.TempDir(), "agg.parquet"), parquet.Options{Compression: parquet.CompressionSnappy})

	in := make([]types.CustomerAggregate, 2*batchSize+3)
	for i := range in {
		in[i].CustomerID = int64(i)
		in[i].Name = fmt.Sprintf("c%d", i)
	}
	require.NoError(t, e.Write(context.Background(), in))

	out, err := e.Read()
	require.NoError(t, err)
	assert.Len(t, out, len(in))
	assert.EqualValues(t, len(in)-1, out[len(out)-1].CustomerID)
}

func TestWriteEmpty(t *testing.T) {
	e := New(filepath.Join(t.TempDir(), "agg.parquet"), parquet.DefaultOptions())
	require.NoError(t, e.Write(context.Background(), nil))

	out, err := e.Read()
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestWriteCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agg.parquet")
	e := New(path, parquet.DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Write(ctx, []types.CustomerAggregate{{Customer: types.Customer{CustomerID: 1}}})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = e.Read()
	assert.ErrorIs(t, err, errors.ErrStorage)
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Nil(t, FromConfig(cfg))

	cfg.Export.Enabled = true
	e := FromConfig(cfg)
	require.NotNil(t, e)
	assert.Equal(t, cfg.ExportPath(), e.Path())
}
