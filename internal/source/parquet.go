package source

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/xtxerr/salesetl/internal/errors"
	"github.com/xtxerr/salesetl/internal/storage/parquet"
	"github.com/xtxerr/salesetl/internal/storage/types"
)

func readTransactionsParquet(path string, opts Options) ([]types.Transaction, error) {
	rows, err := readParquet[parquet.TransactionRow](path)
	if err != nil {
		return nil, err
	}

	txs := make([]types.Transaction, len(rows))
	for i := range rows {
		tx, err := parquet.RowToTransaction(&rows[i], opts.Location)
		if err != nil {
			return nil, errors.NewSourceMalformed(path, fmt.Sprintf("row %d: %v", i+1, err))
		}
		if tx.Quantity <= 0 {
			return nil, errors.NewSourceMalformed(path, fmt.Sprintf("row %d: quantity must be positive", i+1))
		}
		if tx.Price.IsNegative() {
			return nil, errors.NewSourceMalformed(path, fmt.Sprintf("row %d: price must not be negative", i+1))
		}
		txs[i] = tx
	}

	return txs, nil
}

func readCustomersParquet(path string) ([]types.Customer, error) {
	rows, err := readParquet[parquet.CustomerRow](path)
	if err != nil {
		return nil, err
	}

	customers := make([]types.Customer, len(rows))
	for i := range rows {
		customers[i] = parquet.RowToCustomer(&rows[i])
	}
	return customers, nil
}

func readParquet[R any](path string) ([]R, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NewSourceUnavailable(path, err)
	}

	rows, err := parquet.ReadFile[R](path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, errors.NewSourceUnavailable(path, err)
		}
		return nil, errors.NewSourceMalformed(path, err.Error())
	}
	return rows, nil
}
