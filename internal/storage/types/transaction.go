package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one row of the raw transaction source.
// Records are immutable once read.
type Transaction struct {
	ID         string          // Opaque unique id (TRANSACTION_ID)
	CustomerID int64           // Foreign key to Customer (CUSTOMER_ID)
	ProductID  int64           // PRODUCT_ID
	Quantity   int64           // Positive unit count (QUANTITY)
	Price      decimal.Decimal // Non-negative price (PRICE)
	Timestamp  time.Time       // TRANSACTION_DATE
}

// Partition returns the key of the hourly partition the transaction belongs to.
func (t *Transaction) Partition() PartitionKey {
	return KeyFor(t.Timestamp)
}

// FilterPartition returns the transactions whose timestamp floors to key.
// The input order is preserved.
func FilterPartition(txs []Transaction, key PartitionKey) []Transaction {
	var out []Transaction
	for i := range txs {
		if key.Contains(txs[i].Timestamp) {
			out = append(out, txs[i])
		}
	}
	return out
}

// GroupByPartition buckets transactions by hourly partition key.
func GroupByPartition(txs []Transaction) map[PartitionKey][]Transaction {
	groups := make(map[PartitionKey][]Transaction)
	for i := range txs {
		k := txs[i].Partition()
		groups[k] = append(groups[k], txs[i])
	}
	return groups
}
