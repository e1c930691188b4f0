package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xtxerr/salesetl/internal/errors"
	"github.com/xtxerr/salesetl/internal/storage/types"
)

const customerColumns = `CUSTOMER_ID BIGINT NOT NULL,
	NAME VARCHAR,
	AGE BIGINT,
	COUNTRY VARCHAR`

const aggregateColumns = `CUSTOMER_ID BIGINT NOT NULL,
	NAME VARCHAR,
	AGE BIGINT,
	COUNTRY VARCHAR,
	TOTAL_UNIQUE_PRODUCTS BIGINT NOT NULL,
	TOTAL_QUANTITY BIGINT,
	TOTAL_SPENT DECIMAL(38,4)`

const (
	customerRow  = `(?, ?, ?, ?)`
	aggregateRow = `(?, ?, ?, ?, ?, ?, CAST(? AS DECIMAL(38,4)))`
)

// =============================================================================
// Customers
// =============================================================================

// ReplaceCustomers replaces the customer table with customers.
func (s *Store) ReplaceCustomers(ctx context.Context, customers []types.Customer) error {
	table := s.opts.Tables.Customers

	err := s.replace(ctx, func(tx *sql.Tx) error {
		if err := createOrReplace(ctx, tx, table, customerColumns); err != nil {
			return err
		}
		return insertBatches(ctx, tx, table, customerRow, len(customers), func(i int) []interface{} {
			c := &customers[i]
			return []interface{}{c.CustomerID, c.Name, ageArg(c), c.Country}
		})
	})
	if err != nil {
		return errors.NewStorage("replace customers", table, err)
	}

	log.Debug("replaced customers", "table", table, "rows", len(customers))
	return nil
}

// ReadCustomers returns the customer table in insertion order.
// It fails with ErrTableNotFound before the first ReplaceCustomers.
func (s *Store) ReadCustomers(ctx context.Context) ([]types.Customer, error) {
	table := s.opts.Tables.Customers
	if err := s.requireTable(ctx, s.db, table); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT CUSTOMER_ID, NAME, AGE, COUNTRY
		FROM `+quoteIdent(table)+`
		ORDER BY rowid`)
	if err != nil {
		return nil, errors.NewStorage("read", table, err)
	}
	defer rows.Close()

	var customers []types.Customer
	for rows.Next() {
		var (
			c       types.Customer
			name    sql.NullString
			age     sql.NullInt64
			country sql.NullString
		)
		if err := rows.Scan(&c.CustomerID, &name, &age, &country); err != nil {
			return nil, errors.NewStorage("scan", table, err)
		}
		c.Name, c.Country = name.String, country.String
		c.Age, c.AgeUnknown = age.Int64, !age.Valid
		customers = append(customers, c)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage("read", table, err)
	}
	return customers, nil
}

// ageArg binds AGE as NULL for unknown ages.
func ageArg(c *types.Customer) interface{} {
	if c.AgeUnknown {
		return nil
	}
	return c.Age
}

// =============================================================================
// Aggregates
// =============================================================================

// ReplaceAggregates replaces the aggregated table with aggs.
func (s *Store) ReplaceAggregates(ctx context.Context, aggs []types.CustomerAggregate) error {
	table := s.opts.Tables.Aggregates

	err := s.replace(ctx, func(tx *sql.Tx) error {
		if err := createOrReplace(ctx, tx, table, aggregateColumns); err != nil {
			return err
		}
		return insertBatches(ctx, tx, table, aggregateRow, len(aggs), func(i int) []interface{} {
			a := &aggs[i]
			var qty, spent interface{}
			if a.HasTransactions {
				qty, spent = a.TotalQuantity, a.TotalSpent.String()
			}
			return []interface{}{a.CustomerID, a.Name, ageArg(&a.Customer), a.Country, a.TotalUniqueProducts, qty, spent}
		})
	})
	if err != nil {
		return errors.NewStorage("replace aggregates", table, err)
	}

	log.Debug("replaced aggregates", "table", table, "rows", len(aggs))
	return nil
}

// ReadAggregates returns the aggregated table in insertion order.
func (s *Store) ReadAggregates(ctx context.Context) ([]types.CustomerAggregate, error) {
	table := s.opts.Tables.Aggregates
	if err := s.requireTable(ctx, s.db, table); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT CUSTOMER_ID, NAME, AGE, COUNTRY,
		       TOTAL_UNIQUE_PRODUCTS, TOTAL_QUANTITY, CAST(TOTAL_SPENT AS VARCHAR)
		FROM `+quoteIdent(table)+`
		ORDER BY rowid`)
	if err != nil {
		return nil, errors.NewStorage("read", table, err)
	}
	defer rows.Close()

	var aggs []types.CustomerAggregate
	for rows.Next() {
		var (
			a       types.CustomerAggregate
			name    sql.NullString
			age     sql.NullInt64
			country sql.NullString
			qty     sql.NullInt64
			spent   sql.NullString
		)
		if err := rows.Scan(&a.CustomerID, &name, &age, &country, &a.TotalUniqueProducts, &qty, &spent); err != nil {
			return nil, errors.NewStorage("scan", table, err)
		}
		a.Name, a.Country = name.String, country.String
		a.Age, a.AgeUnknown = age.Int64, !age.Valid

		if qty.Valid {
			a.HasTransactions = true
			a.TotalQuantity = qty.Int64
		}
		if spent.Valid {
			a.HasTransactions = true
			if a.TotalSpent, err = decimal.NewFromString(spent.String); err != nil {
				return nil, errors.NewStorage("scan", table, err)
			}
		}
		aggs = append(aggs, a)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage("read", table, err)
	}
	return aggs, nil
}

// insertBatches inserts n rows built by rowArgs using multi-row INSERTs.
func insertBatches(ctx context.Context, tx *sql.Tx, table, row string, n int, rowArgs func(i int) []interface{}) error {
	for start := 0; start < n; start += rowsPerInsert {
		end := min(start+rowsPerInsert, n)

		var args []interface{}
		for i := start; i < end; i++ {
			args = append(args, rowArgs(i)...)
		}

		query := "INSERT INTO " + quoteIdent(table) + " VALUES " + placeholders(row, end-start)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert rows %d-%d: %w", start, end, err)
		}
	}
	return nil
}
