package testing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xtxerr/salesetl/internal/storage/types"
	"github.com/xtxerr/salesetl/internal/store"
)

// SampleTransactionsCSV holds two transactions at 10:xx and one at 11:00
// on 2025-02-24.
const SampleTransactionsCSV = `TRANSACTION_ID,CUSTOMER_ID,PRODUCT_ID,QUANTITY,PRICE,TRANSACTION_DATE
1,1001,201,2,20.0,2025-02-24 10:00
2,1002,202,1,35.5,2025-02-24 11:00
3,1001,203,3,12.0,2025-02-24 10:30
`

// SampleCustomersCSV holds customers 1001 to 1003. 1003 has no transactions
// in SampleTransactionsCSV.
const SampleCustomersCSV = `CUSTOMER_ID,NAME,AGE,COUNTRY
1001,Alice,25,USA
1002,Bob,30,Canada
1003,Charlie,35,UK
`

// Sources are the paths of the raw files written by WriteSources.
type Sources struct {
	Dir          string
	Transactions string
	Customers    string
}

// WriteSources writes the sample CSV files to a fresh temp directory using
// the default file names.
func WriteSources(t *testing.T) Sources {
	t.Helper()
	return WriteSourcesContent(t, SampleTransactionsCSV, SampleCustomersCSV)
}

// WriteSourcesContent writes the given CSV contents to a fresh temp directory.
func WriteSourcesContent(t *testing.T, transactions, customers string) Sources {
	t.Helper()

	dir := t.TempDir()
	s := Sources{
		Dir:          dir,
		Transactions: filepath.Join(dir, "transactions.csv"),
		Customers:    filepath.Join(dir, "customer.csv"),
	}
	if err := os.WriteFile(s.Transactions, []byte(transactions), 0644); err != nil {
		t.Fatalf("write transactions: %v", err)
	}
	if err := os.WriteFile(s.Customers, []byte(customers), 0644); err != nil {
		t.Fatalf("write customers: %v", err)
	}
	return s
}

// OpenStore opens a store backed by a file in a temp directory and closes it
// when the test ends.
func OpenStore(t *testing.T) *store.Store {
	t.Helper()

	opts := store.DefaultOptions()
	opts.Path = filepath.Join(t.TempDir(), "test.db")

	s, err := store.Open(opts)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// MustKey parses a "YYYY-MM-DD-HH:MM" partition key in UTC.
func MustKey(t *testing.T, s string) types.PartitionKey {
	t.Helper()

	key, err := types.ParseKey(s, time.UTC)
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	return key
}
