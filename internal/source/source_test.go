package source

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/singleflight"

	"github.com/xtxerr/salesetl/internal/errors"
	"github.com/xtxerr/salesetl/internal/pipeline/config"
	"github.com/xtxerr/salesetl/internal/storage/parquet"
	"github.com/xtxerr/salesetl/internal/storage/types"
)

const transactionsCSV = `TRANSACTION_ID,CUSTOMER_ID,PRODUCT_ID,QUANTITY,PRICE,TRANSACTION_DATE
1,1001,201,2,20.0,2025-02-24 10:00
2,1002,202,1,35.5,2025-02-24 11:00
3,1001,203,3,12.0,2025-02-24 10:30
`

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestReadTransactionsCSV(t *testing.T) {
	path := writeFile(t, "transactions.csv", []byte(transactionsCSV))

	txs, err := NewTransactionFile(path, DefaultOptions()).Transactions(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 3)

	assert.Equal(t, "1", txs[0].ID)
	assert.EqualValues(t, 1001, txs[0].CustomerID)
	assert.EqualValues(t, 201, txs[0].ProductID)
	assert.EqualValues(t, 2, txs[0].Quantity)
	assert.True(t, txs[1].Price.Equal(decimal.RequireFromString("35.5")))
	assert.Equal(t, time.Date(2025, 2, 24, 10, 30, 0, 0, time.UTC), txs[2].Timestamp)
}

func TestReadTransactionsAcceptsSecondsAndReorderedColumns(t *testing.T) {
	content := "transaction_date,price,quantity,product_id,customer_id,transaction_id\n" +
		"2025-02-24 10:15:42,9.99,1,7,1500.0,abc\n"
	path := writeFile(t, "tx.csv", []byte(content))

	txs, err := NewTransactionFile(path, DefaultOptions()).Transactions(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.EqualValues(t, 1500, txs[0].CustomerID)
	assert.Equal(t, "abc", txs[0].ID)
	assert.Equal(t, 42, txs[0].Timestamp.Second())
}

func TestReadTransactionsErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewTransactionFile(filepath.Join(t.TempDir(), "missing.csv"), DefaultOptions()).Transactions(ctx)
	assert.ErrorIs(t, err, errors.ErrSourceUnavailable)

	tests := []struct {
		name    string
		content string
		detail  string
	}{
		{"empty", "", "missing header"},
		{"no date column", "TRANSACTION_ID,CUSTOMER_ID,PRODUCT_ID,QUANTITY,PRICE\n1,1,1,1,1\n", "TRANSACTION_DATE"},
		{"bad date", "TRANSACTION_ID,CUSTOMER_ID,PRODUCT_ID,QUANTITY,PRICE,TRANSACTION_DATE\n1,1,1,1,1,yesterday\n", "line 2"},
		{"bad price", "TRANSACTION_ID,CUSTOMER_ID,PRODUCT_ID,QUANTITY,PRICE,TRANSACTION_DATE\n1,1,1,1,cheap,2025-02-24 10:00\n", "PRICE"},
		{"negative price", "TRANSACTION_ID,CUSTOMER_ID,PRODUCT_ID,QUANTITY,PRICE,TRANSACTION_DATE\n1,1,1,1,-1,2025-02-24 10:00\n", "negative"},
		{"zero quantity", "TRANSACTION_ID,CUSTOMER_ID,PRODUCT_ID,QUANTITY,PRICE,TRANSACTION_DATE\n1,1,1,0,1,2025-02-24 10:00\n", "positive"},
		{"fractional id", "TRANSACTION_ID,CUSTOMER_ID,PRODUCT_ID,QUANTITY,PRICE,TRANSACTION_DATE\n1,1.5,1,1,1,2025-02-24 10:00\n", "CUSTOMER_ID"},
		{"bare quote", "TRANSACTION_ID,CUSTOMER_ID,PRODUCT_ID,QUANTITY,PRICE,TRANSACTION_DATE\n1,\"1,1,1,1,2025-02-24 10:00\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "tx.csv", []byte(tt.content))
			_, err := NewTransactionFile(path, DefaultOptions()).Transactions(ctx)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrSourceMalformed)
			assert.Contains(t, err.Error(), tt.detail)
		})
	}
}

func TestReadCustomersLatin1(t *testing.T) {
	// "José" encoded as ISO-8859-1.
	content := []byte("CUSTOMER_ID,NAME,AGE,COUNTRY\n1001,Jos\xe9,25,USA\n1002,Bob,30,Canada\n")
	path := writeFile(t, "customer.csv", content)

	customers, err := NewCustomerFile(path, DefaultOptions()).Customers(context.Background())
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, types.Customer{CustomerID: 1001, Name: "José", Age: 25, Country: "USA"}, customers[0])
}

func TestReadCustomersUTF8WithBOM(t *testing.T) {
	content := []byte("\xef\xbb\xbfCUSTOMER_ID;NAME;AGE;COUNTRY\n7;Zoë;41;Côte d'Ivoire\n")
	path := writeFile(t, "customer.csv", content)

	opts := DefaultOptions()
	opts.Encoding = "utf-8"
	opts.Delimiter = ';'

	customers, err := NewCustomerFile(path, opts).Customers(context.Background())
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "Zoë", customers[0].Name)
	assert.Equal(t, "Côte d'Ivoire", customers[0].Country)
}

func TestReadCustomersMissingAge(t *testing.T) {
	content := "CUSTOMER_ID,NAME,AGE,COUNTRY\n1,Ann,,USA\n2,Ben,NaN,UK\n3,Cy,40.0,UK\n"
	path := writeFile(t, "customer.csv", []byte(content))

	customers, err := NewCustomerFile(path, DefaultOptions()).Customers(context.Background())
	require.NoError(t, err)
	require.Len(t, customers, 3)

	assert.True(t, customers[0].AgeUnknown)
	assert.Nil(t, customers[0].NullableAge())
	assert.True(t, customers[1].AgeUnknown)
	assert.False(t, customers[2].AgeUnknown)
	assert.EqualValues(t, 40, customers[2].Age)

	path = writeFile(t, "bad.csv", []byte("CUSTOMER_ID,NAME,AGE,COUNTRY\n1,Ann,old,USA\n"))
	_, err = NewCustomerFile(path, DefaultOptions()).Customers(context.Background())
	assert.ErrorIs(t, err, errors.ErrSourceMalformed)
}

func TestReadCustomersMissingColumn(t *testing.T) {
	path := writeFile(t, "customer.csv", []byte("CUSTOMER_ID,NAME,COUNTRY\n1,A,B\n"))

	_, err := NewCustomerFile(path, DefaultOptions()).Customers(context.Background())
	assert.ErrorIs(t, err, errors.ErrSourceMalformed)
	assert.Contains(t, err.Error(), "AGE")
}

func TestReadParquetSources(t *testing.T) {
	dir := t.TempDir()
	txPath := filepath.Join(dir, "transactions.parquet")
	custPath := filepath.Join(dir, "customer.parquet")

	tx := types.Transaction{
		ID: "p1", CustomerID: 1001, ProductID: 201, Quantity: 2,
		Price:     decimal.RequireFromString("20.00"),
		Timestamp: time.Date(2025, 2, 24, 10, 5, 0, 0, time.UTC),
	}
	require.NoError(t, parquet.WriteFile(txPath, []parquet.TransactionRow{parquet.TransactionToRow(&tx)}, parquet.DefaultOptions()))
	alice := types.Customer{CustomerID: 1001, Name: "Alice", Age: 25, Country: "USA"}
	nobody := types.Customer{CustomerID: 1002, Name: "Bob", AgeUnknown: true}
	require.NoError(t, parquet.WriteFile(custPath, []parquet.CustomerRow{parquet.CustomerToRow(&alice), parquet.CustomerToRow(&nobody)}, parquet.DefaultOptions()))

	opts := DefaultOptions()
	opts.Format = FormatParquet

	txs, err := NewTransactionFile(txPath, opts).Transactions(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "p1", txs[0].ID)
	assert.True(t, tx.Timestamp.Equal(txs[0].Timestamp))

	customers, err := NewCustomerFile(custPath, opts).Customers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.Customer{alice, nobody}, customers)

	_, err = NewTransactionFile(filepath.Join(dir, "nope.parquet"), opts).Transactions(context.Background())
	assert.ErrorIs(t, err, errors.ErrSourceUnavailable)

	garbage := writeFile(t, "garbage.parquet", []byte("not parquet at all"))
	_, err = NewTransactionFile(garbage, opts).Transactions(context.Background())
	assert.ErrorIs(t, err, errors.ErrSourceMalformed)
}

func TestConcurrentReadsShareResult(t *testing.T) {
	path := writeFile(t, "transactions.csv", []byte(transactionsCSV))
	src := NewTransactionFile(path, DefaultOptions())

	var wg sync.WaitGroup
	results := make([][]types.Transaction, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = src.Transactions(context.Background())
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Len(t, results[i], 3)
	}
}

func TestReadCacheParsesOncePerRun(t *testing.T) {
	path := writeFile(t, "transactions.csv", []byte(transactionsCSV))
	src := NewTransactionFile(path, DefaultOptions())
	ctx := WithReadCache(context.Background())
	assert.Equal(t, ctx, WithReadCache(ctx))

	first, err := src.Transactions(ctx)
	require.NoError(t, err)

	// Later reads within the run see the first parse even if the file changes.
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))

	ten := types.KeyFor(time.Date(2025, 2, 24, 10, 0, 0, 0, time.UTC))
	for i := 0; i < 50; i++ {
		selected, scanned, err := src.Partition(ctx, ten)
		require.NoError(t, err)
		assert.Equal(t, 3, scanned)
		require.Len(t, selected, 2)
		assert.Equal(t, "1", selected[0].ID)
		assert.Equal(t, "3", selected[1].ID)
	}

	again, err := src.Transactions(ctx)
	require.NoError(t, err)
	assert.Same(t, &first[0], &again[0])

	// Without a cache every call parses the file.
	_, err = src.Transactions(context.Background())
	assert.ErrorIs(t, err, errors.ErrSourceMalformed)
}

func TestPartitionWithoutCache(t *testing.T) {
	path := writeFile(t, "transactions.csv", []byte(transactionsCSV))
	src := NewTransactionFile(path, DefaultOptions())

	eleven := types.KeyFor(time.Date(2025, 2, 24, 11, 0, 0, 0, time.UTC))
	selected, scanned, err := src.Partition(context.Background(), eleven)
	require.NoError(t, err)
	assert.Equal(t, 3, scanned)
	require.Len(t, selected, 1)
	assert.Equal(t, "2", selected[0].ID)

	empty, _, err := src.Partition(context.Background(), eleven.Next())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSharedReadSurvivesCancelledCaller(t *testing.T) {
	var (
		g       singleflight.Group
		once    sync.Once
		started = make(chan struct{})
		release = make(chan struct{})
	)
	read := func(ctx context.Context) (interface{}, error) {
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return "parsed", nil
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := sharedRead(firstCtx, &g, "transactions.csv", read)
		firstErr <- err
	}()
	<-started

	type outcome struct {
		v   interface{}
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		v, _, err := sharedRead(context.Background(), &g, "transactions.csv", read)
		second <- outcome{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "parsed", got.v)
}

func TestOptionsFrom(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Location = "Europe/Berlin"
	cfg.Sources.Customers.Format = "PARQUET"
	cfg.Sources.Customers.Delimiter = "|"

	opts, err := OptionsFrom(cfg, cfg.Sources.Customers)
	require.NoError(t, err)
	assert.Equal(t, FormatParquet, opts.Format)
	assert.Equal(t, '|', opts.Delimiter)
	assert.Equal(t, "Europe/Berlin", opts.Location.String())
}

func TestParseTimestamp(t *testing.T) {
	layouts := []string{"2006-01-02 15:04", "2006-01-02 15:04:05"}

	ts, err := ParseTimestamp("2025-02-24 10:00:30", layouts, nil)
	require.NoError(t, err)
	assert.Equal(t, 30, ts.Second())

	_, err = ParseTimestamp("24/02/2025", layouts, time.UTC)
	assert.Error(t, err)

	_, err = ParseTimestamp("2025-02-24 10:00", nil, time.UTC)
	assert.Error(t, err)
}
