package parquet

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xtxerr/salesetl/internal/storage/types"
)

// TransactionRow represents a transaction in Parquet format.
// Prices are kept as decimal text so they round-trip exactly.
type TransactionRow struct {
	TransactionID     string `parquet:"transaction_id,zstd"`
	CustomerID        int64  `parquet:"customer_id"`
	ProductID         int64  `parquet:"product_id"`
	Quantity          int64  `parquet:"quantity"`
	Price             string `parquet:"price"`
	TransactionDateMs int64  `parquet:"transaction_date_ms"`
}

// CustomerRow represents a customer in Parquet format.
// Age is null when unknown.
type CustomerRow struct {
	CustomerID int64  `parquet:"customer_id"`
	Name       string `parquet:"name,zstd"`
	Age        *int64 `parquet:"age"`
	Country    string `parquet:"country,zstd"`
}

// AggregateRow represents a customer aggregate in Parquet format.
// TotalQuantity and TotalSpent are null for customers without transactions.
type AggregateRow struct {
	CustomerID          int64   `parquet:"customer_id"`
	Name                string  `parquet:"name,zstd"`
	Age                 *int64  `parquet:"age"`
	Country             string  `parquet:"country,zstd"`
	TotalUniqueProducts int64   `parquet:"total_unique_products"`
	TotalQuantity       *int64  `parquet:"total_quantity"`
	TotalSpent          *string `parquet:"total_spent"`
}

// TransactionToRow converts a Transaction to a TransactionRow.
func TransactionToRow(t *types.Transaction) TransactionRow {
	return TransactionRow{
		TransactionID:     t.ID,
		CustomerID:        t.CustomerID,
		ProductID:         t.ProductID,
		Quantity:          t.Quantity,
		Price:             t.Price.String(),
		TransactionDateMs: t.Timestamp.UnixMilli(),
	}
}

// RowToTransaction converts a TransactionRow to a Transaction in loc.
func RowToTransaction(r *TransactionRow, loc *time.Location) (types.Transaction, error) {
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("price %q: %w", r.Price, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return types.Transaction{
		ID:         r.TransactionID,
		CustomerID: r.CustomerID,
		ProductID:  r.ProductID,
		Quantity:   r.Quantity,
		Price:      price,
		Timestamp:  time.UnixMilli(r.TransactionDateMs).In(loc),
	}, nil
}

// CustomerToRow converts a Customer to a CustomerRow.
func CustomerToRow(c *types.Customer) CustomerRow {
	return CustomerRow{
		CustomerID: c.CustomerID,
		Name:       c.Name,
		Age:        c.NullableAge(),
		Country:    c.Country,
	}
}

// RowToCustomer converts a CustomerRow to a Customer.
func RowToCustomer(r *CustomerRow) types.Customer {
	c := types.Customer{
		CustomerID: r.CustomerID,
		Name:       r.Name,
		Country:    r.Country,
	}
	c.SetAge(r.Age)
	return c
}

// AggregateToRow converts a CustomerAggregate to an AggregateRow.
func AggregateToRow(a *types.CustomerAggregate) AggregateRow {
	row := AggregateRow{
		CustomerID:          a.CustomerID,
		Name:                a.Name,
		Age:                 a.NullableAge(),
		Country:             a.Country,
		TotalUniqueProducts: a.TotalUniqueProducts,
		TotalQuantity:       a.NullableQuantity(),
	}

	if a.HasTransactions {
		spent := a.TotalSpent.String()
		row.TotalSpent = &spent
	}

	return row
}

// RowToAggregate converts an AggregateRow to a CustomerAggregate.
func RowToAggregate(r *AggregateRow) (types.CustomerAggregate, error) {
	result := types.CustomerAggregate{
		Customer: types.Customer{
			CustomerID: r.CustomerID,
			Name:       r.Name,
			Country:    r.Country,
		},
		TotalUniqueProducts: r.TotalUniqueProducts,
	}
	result.SetAge(r.Age)

	if r.TotalQuantity != nil {
		result.HasTransactions = true
		result.TotalQuantity = *r.TotalQuantity
	}
	if r.TotalSpent != nil {
		spent, err := decimal.NewFromString(*r.TotalSpent)
		if err != nil {
			return types.CustomerAggregate{}, fmt.Errorf("total_spent %q: %w", *r.TotalSpent, err)
		}
		result.HasTransactions = true
		result.TotalSpent = spent
	}

	return result, nil
}
