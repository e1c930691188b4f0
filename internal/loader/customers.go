package loader

import (
	"context"
	"time"

	"github.com/xtxerr/salesetl/internal/logging"
	"github.com/xtxerr/salesetl/internal/source"
	"github.com/xtxerr/salesetl/internal/storage/types"
)

// CustomerWriter persists the customer table. Satisfied by *store.Store.
type CustomerWriter interface {
	ReplaceCustomers(ctx context.Context, customers []types.Customer) error
}

// CustomerLoader mirrors the customer source into the customer table.
type CustomerLoader struct {
	src   source.CustomerSource
	store CustomerWriter
}

// NewCustomerLoader creates a CustomerLoader reading src and writing to w.
func NewCustomerLoader(src source.CustomerSource, w CustomerWriter) *CustomerLoader {
	return &CustomerLoader{src: src, store: w}
}

// LoadCustomers reads the whole customer source, replaces the customer
// table with it and returns the records.
func (l *CustomerLoader) LoadCustomers(ctx context.Context) ([]types.Customer, error) {
	log := logging.FromContext(ctx, customerLog)
	start := time.Now()

	customers, err := l.src.Customers(ctx)
	if err != nil {
		return nil, err
	}

	if err := l.store.ReplaceCustomers(ctx, customers); err != nil {
		return nil, err
	}

	log.Info("loaded customers",
		"source", l.src.Name(),
		"rows", len(customers),
		"duration", time.Since(start))

	return customers, nil
}
