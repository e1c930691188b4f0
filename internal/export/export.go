// Package export writes the aggregated table to a Parquet file.
package export

import (
	"context"
	"fmt"

	"github.com/xtxerr/salesetl/internal/errors"
	"github.com/xtxerr/salesetl/internal/logging"
	"github.com/xtxerr/salesetl/internal/pipeline/config"
	"github.com/xtxerr/salesetl/internal/storage/parquet"
	"github.com/xtxerr/salesetl/internal/storage/types"
)

var log = logging.Component("export")

// batchSize is the number of rows handed to the writer at once.
const batchSize = 4096

// Exporter writes aggregates to a fixed Parquet file. The file is replaced
// atomically, so readers never observe a partial export.
type Exporter struct {
	path string
	opts parquet.Options
}

// New creates an Exporter writing to path.
func New(path string, opts parquet.Options) *Exporter {
	return &Exporter{path: path, opts: opts}
}

// FromConfig returns the configured Exporter, or nil when export is disabled.
func FromConfig(cfg *config.Config) *Exporter {
	if !cfg.Export.Enabled {
		return nil
	}
	return New(cfg.ExportPath(), parquet.Options{
		Compression: parquet.ParseCompressionType(cfg.Export.Compression),
	})
}

// Path returns the export file.
func (e *Exporter) Path() string {
	return e.path
}

// Write replaces the export file with aggs.
func (e *Exporter) Write(ctx context.Context, aggs []types.CustomerAggregate) error {
	w, err := parquet.NewWriter[parquet.AggregateRow](e.path, e.opts)
	if err != nil {
		return errors.NewStorage("export", e.path, err)
	}

	rows := make([]parquet.AggregateRow, 0, min(batchSize, len(aggs)))
	for i := range aggs {
		rows = append(rows, parquet.AggregateToRow(&aggs[i]))
		if len(rows) < batchSize && i < len(aggs)-1 {
			continue
		}

		if err := ctx.Err(); err != nil {
			w.Abort()
			return errors.NewStorage("export", e.path, err)
		}
		if err := w.Write(rows); err != nil {
			w.Abort()
			return errors.NewStorage("export", e.path, err)
		}
		rows = rows[:0]
	}

	if err := w.Close(); err != nil {
		return errors.NewStorage("export", e.path, err)
	}

	info, err := parquet.GetFileInfo(e.path)
	if err != nil {
		return errors.NewStorage("verify export", e.path, err)
	}
	if info.NumRows != int64(len(aggs)) {
		return errors.NewStorage("verify export", e.path,
			fmt.Errorf("file holds %d rows, wrote %d", info.NumRows, len(aggs)))
	}

	logging.FromContext(ctx, log).Info("exported aggregates",
		"path", e.path,
		"rows", info.NumRows,
		"bytes", info.Size)
	return nil
}

// Read returns the aggregates stored in the export file.
func (e *Exporter) Read() ([]types.CustomerAggregate, error) {
	rows, err := parquet.ReadFile[parquet.AggregateRow](e.path)
	if err != nil {
		return nil, errors.NewStorage("read export", e.path, err)
	}

	aggs := make([]types.CustomerAggregate, len(rows))
	for i := range rows {
		if aggs[i], err = parquet.RowToAggregate(&rows[i]); err != nil {
			return nil, errors.NewStorage("read export", e.path, err)
		}
	}
	return aggs, nil
}
