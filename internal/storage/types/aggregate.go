package types

import "github.com/shopspring/decimal"

// CustomerAggregate is one row of the aggregated table: a customer record
// left-joined with the rollup of that customer's transactions.
type CustomerAggregate struct {
	Customer

	// HasTransactions is false when no partition held a transaction for the
	// customer. TotalQuantity and TotalSpent are then stored as NULL.
	HasTransactions bool

	TotalUniqueProducts int64           // Distinct PRODUCT_ID count
	TotalQuantity       int64           // Sum of QUANTITY
	TotalSpent          decimal.Decimal // Sum of PRICE
}

// NullableQuantity returns the quantity total, or nil for customers without transactions.
func (a *CustomerAggregate) NullableQuantity() *int64 {
	if !a.HasTransactions {
		return nil
	}
	q := a.TotalQuantity
	return &q
}

// NullableSpent returns the spend total as a NullDecimal.
func (a *CustomerAggregate) NullableSpent() decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: a.TotalSpent, Valid: a.HasTransactions}
}
