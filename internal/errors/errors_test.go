package errors

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAggregationFailedKeepsCause(t *testing.T) {
	cause := NewStorage("read", "sales_table_2025022410", fs.ErrClosed)
	err := NewAggregationFailed(cause)

	assert.ErrorIs(t, err, ErrAggregationFailed)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, fs.ErrClosed)
	assert.Contains(t, err.Error(), "sales_table_2025022410")
}

func TestSourceConstructors(t *testing.T) {
	err := NewSourceUnavailable("data/transactions.csv", fs.ErrNotExist)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.True(t, IsSourceError(err))
	assert.True(t, IsRetriable(err))

	err = NewSourceMalformed("data/customer.csv", "missing column AGE")
	assert.ErrorIs(t, err, ErrSourceMalformed)
	assert.False(t, IsRetriable(err))
	assert.Contains(t, err.Error(), "missing column AGE")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"unavailable", NewSourceUnavailable("x", nil), ExitSourceUnavailable},
		{"malformed", NewSourceMalformed("x", "bad"), ExitSourceMalformed},
		{"storage", NewStorage("write", "t", fs.ErrPermission), ExitStorage},
		{"no data", NewAggregationFailed(ErrNoDataFound), ExitNoData},
		{"aggregation", NewAggregationFailed(NewStorage("read", "t", fs.ErrClosed)), ExitAggregation},
		{"validation", NewValidation("tables.customers", "empty"), ExitInvalidConfig},
		{"partition", NewInvalidPartitionKey("bad", "unparseable"), ExitInvalidConfig},
		{"other", New("boom"), ExitUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestValidationErrors(t *testing.T) {
	v := NewValidationErrors()
	assert.NoError(t, v.Err())

	v.AddField("database.path", "cannot be empty")
	v.AddMissing("sources.transactions.path")

	err := v.Err()
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), "validation failed with 2 errors")
}

func TestWrapKeepsCategory(t *testing.T) {
	assert.NoError(t, Wrap(nil, "load customers"))
	assert.NoError(t, Wrapf(nil, "load partition %s", "2025-02-24-10:00"))

	err := Wrapf(NewSourceMalformed("transactions.csv", "bad PRICE"), "load partition %s", "2025-02-24-10:00")
	assert.ErrorIs(t, err, ErrSourceMalformed)
	assert.Equal(t, ExitSourceMalformed, ExitCode(err))
	assert.Contains(t, err.Error(), "load partition 2025-02-24-10:00: ")
}
