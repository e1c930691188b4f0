package parquet

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

// Reader reads rows of type R from a Parquet file.
type Reader[R any] struct {
	file   *os.File
	reader *parquet.GenericReader[R]
	path   string
}

// NewReader creates a new Parquet reader for path.
func NewReader[R any](path string) (*Reader[R], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	// Opening the footer first turns a corrupt file into an error;
	// NewGenericReader would panic on it.
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	return &Reader[R]{
		file:   f,
		reader: parquet.NewGenericReader[R](pf),
		path:   path,
	}, nil
}

// Read reads up to n rows from the file. It returns io.EOF after the last row.
func (r *Reader[R]) Read(n int) ([]R, error) {
	rows := make([]R, n)
	count, err := r.reader.Read(rows)
	if err != nil && !(errors.Is(err, io.EOF) && count > 0) {
		return nil, err
	}
	return rows[:count], nil
}

// ReadAll reads all remaining rows from the file.
func (r *Reader[R]) ReadAll() ([]R, error) {
	rows := make([]R, 0, r.reader.NumRows())
	buf := make([]R, 4096)

	for {
		n, err := r.reader.Read(buf)
		rows = append(rows, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return rows, nil
		}
	}
}

// NumRows returns the total number of rows in the file.
func (r *Reader[R]) NumRows() int64 {
	return r.reader.NumRows()
}

// Close closes the reader.
func (r *Reader[R]) Close() error {
	if err := r.reader.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// Path returns the file path.
func (r *Reader[R]) Path() string {
	return r.path
}

// ReadFile reads every row of path.
func ReadFile[R any](path string) ([]R, error) {
	r, err := NewReader[R](path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return r.ReadAll()
}

// FileInfo holds information about a Parquet file.
type FileInfo struct {
	Path    string
	Size    int64
	NumRows int64
}

// GetFileInfo returns information about a Parquet file.
func GetFileInfo(path string) (*FileInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	return &FileInfo{
		Path:    path,
		Size:    stat.Size(),
		NumRows: pf.NumRows(),
	}, nil
}
