package parquet

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
)

// Options configures the Parquet writer.
type Options struct {
	// Compression algorithm
	Compression CompressionType
}

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// DefaultOptions returns default Parquet options.
func DefaultOptions() Options {
	return Options{
		Compression: CompressionZstd,
	}
}

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) CompressionType {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "zstd":
		return CompressionZstd
	case "lz4":
		return CompressionLZ4
	case "gzip":
		return CompressionGzip
	case "none", "":
		return CompressionNone
	default:
		return CompressionZstd
	}
}

// getCompression returns the parquet-go compression codec.
func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// Writer writes rows of type R to a Parquet file.
//
// Rows go to a temporary file next to the target; Close renames it into
// place, so readers never observe a partially written file.
type Writer[R any] struct {
	mu       sync.Mutex
	path     string
	tmpPath  string
	file     *os.File
	writer   *parquet.GenericWriter[R]
	rowCount int64
	closed   bool
}

// NewWriter creates a new Parquet writer for path.
func NewWriter[R any](path string, opts Options) (*Writer[R], error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	writerOpts := []parquet.WriterOption{
		parquet.Compression(getCompression(opts.Compression)),
	}

	return &Writer[R]{
		path:    path,
		tmpPath: f.Name(),
		file:    f,
		writer:  parquet.NewGenericWriter[R](f, writerOpts...),
	}, nil
}

// Write writes rows to the Parquet file.
func (w *Writer[R]) Write(rows []R) error {
	if len(rows) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	n, err := w.writer.Write(rows)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}

	w.rowCount += int64(n)
	return nil
}

// Close flushes the writer and publishes the file at its final path.
func (w *Writer[R]) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		w.file.Close()
		os.Remove(w.tmpPath)
		return fmt.Errorf("close writer: %w", err)
	}

	if err := w.file.Close(); err != nil {
		os.Remove(w.tmpPath)
		return fmt.Errorf("close file: %w", err)
	}

	if err := os.Rename(w.tmpPath, w.path); err != nil {
		os.Remove(w.tmpPath)
		return fmt.Errorf("publish file: %w", err)
	}

	return nil
}

// Abort discards everything written so far.
func (w *Writer[R]) Abort() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true

	w.writer.Close()
	w.file.Close()
	os.Remove(w.tmpPath)
}

// RowCount returns the number of rows written.
func (w *Writer[R]) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowCount
}

// Path returns the final file path.
func (w *Writer[R]) Path() string {
	return w.path
}

// WriteFile writes rows to path in one call.
func WriteFile[R any](path string, rows []R, opts Options) error {
	w, err := NewWriter[R](path, opts)
	if err != nil {
		return err
	}

	if err := w.Write(rows); err != nil {
		w.Abort()
		return err
	}

	return w.Close()
}

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = fmt.Errorf("parquet writer is closed")
