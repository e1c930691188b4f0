package store

import (
	"github.com/xtxerr/salesetl/internal/errors"
)

var (
	ErrStorage       = errors.ErrStorage
	ErrTableNotFound = errors.ErrTableNotFound
)
