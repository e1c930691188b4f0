package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"github.com/xtxerr/salesetl/internal/errors"
	"github.com/xtxerr/salesetl/internal/storage/types"
)

// Column names of the raw sources.
const (
	ColTransactionID   = "TRANSACTION_ID"
	ColCustomerID      = "CUSTOMER_ID"
	ColProductID       = "PRODUCT_ID"
	ColQuantity        = "QUANTITY"
	ColPrice           = "PRICE"
	ColTransactionDate = "TRANSACTION_DATE"
	ColName            = "NAME"
	ColAge             = "AGE"
	ColCountry         = "COUNTRY"
)

var (
	transactionColumns = []string{ColTransactionID, ColCustomerID, ColProductID, ColQuantity, ColPrice, ColTransactionDate}
	customerColumns    = []string{ColCustomerID, ColName, ColAge, ColCountry}
)

// csvFile is an open CSV source positioned after its header row.
type csvFile struct {
	path   string
	file   *os.File
	reader *csv.Reader
	index  map[string]int
	line   int
}

func openCSV(path string, opts Options, required []string) (*csvFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewSourceUnavailable(path, err)
	}

	var r io.Reader = bufio.NewReader(f)
	switch strings.ToLower(opts.Encoding) {
	case "iso-8859-1", "latin1", "latin-1":
		r = charmap.ISO8859_1.NewDecoder().Reader(r)
	default:
		r = stripBOM(r.(*bufio.Reader))
	}

	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		f.Close()
		return nil, errors.NewSourceMalformed(path, "missing header row")
	}
	if err != nil {
		f.Close()
		return nil, readError(path, err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToUpper(strings.TrimSpace(h))] = i
	}

	var missing []string
	for _, col := range required {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		f.Close()
		return nil, errors.NewSourceMalformed(path, "missing columns "+strings.Join(missing, ", "))
	}

	return &csvFile{path: path, file: f, reader: cr, index: index, line: 1}, nil
}

// stripBOM discards a leading UTF-8 byte order mark.
func stripBOM(r *bufio.Reader) io.Reader {
	if b, err := r.Peek(3); err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = r.Discard(3)
	}
	return r
}

// next returns the next record, or io.EOF.
func (c *csvFile) next() ([]string, error) {
	rec, err := c.reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, readError(c.path, err)
	}
	c.line++
	return rec, nil
}

func (c *csvFile) field(rec []string, col string) string {
	i := c.index[col]
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (c *csvFile) malformed(col, value, reason string) error {
	return errors.NewSourceMalformed(c.path,
		fmt.Sprintf("line %d: %s %q: %s", c.line, col, value, reason))
}

func (c *csvFile) close() {
	c.file.Close()
}

// readError classifies a csv.Reader failure.
func readError(path string, err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return errors.NewSourceMalformed(path, perr.Error())
	}
	return errors.NewSourceUnavailable(path, err)
}

func readTransactionsCSV(ctx context.Context, path string, opts Options) ([]types.Transaction, error) {
	c, err := openCSV(path, opts, transactionColumns)
	if err != nil {
		return nil, err
	}
	defer c.close()

	var txs []types.Transaction
	for {
		rec, err := c.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if c.line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		tx, err := c.parseTransaction(rec, opts)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}

	return txs, nil
}

func (c *csvFile) parseTransaction(rec []string, opts Options) (types.Transaction, error) {
	var tx types.Transaction
	var err error

	tx.ID = c.field(rec, ColTransactionID)
	if tx.ID == "" {
		return tx, c.malformed(ColTransactionID, "", "empty")
	}

	if tx.CustomerID, err = c.parseInt(rec, ColCustomerID); err != nil {
		return tx, err
	}
	if tx.ProductID, err = c.parseInt(rec, ColProductID); err != nil {
		return tx, err
	}
	if tx.Quantity, err = c.parseInt(rec, ColQuantity); err != nil {
		return tx, err
	}
	if tx.Quantity <= 0 {
		return tx, c.malformed(ColQuantity, c.field(rec, ColQuantity), "must be positive")
	}

	raw := c.field(rec, ColPrice)
	tx.Price, err = decimal.NewFromString(raw)
	if err != nil {
		return tx, c.malformed(ColPrice, raw, "not a decimal")
	}
	if tx.Price.IsNegative() {
		return tx, c.malformed(ColPrice, raw, "must not be negative")
	}

	raw = c.field(rec, ColTransactionDate)
	tx.Timestamp, err = ParseTimestamp(raw, opts.TimestampLayouts, opts.Location)
	if err != nil {
		return tx, c.malformed(ColTransactionDate, raw, "unparseable date-time")
	}

	return tx, nil
}

func readCustomersCSV(ctx context.Context, path string, opts Options) ([]types.Customer, error) {
	c, err := openCSV(path, opts, customerColumns)
	if err != nil {
		return nil, err
	}
	defer c.close()

	var customers []types.Customer
	for {
		rec, err := c.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var cust types.Customer
		if cust.CustomerID, err = c.parseInt(rec, ColCustomerID); err != nil {
			return nil, err
		}
		age, err := c.parseOptionalInt(rec, ColAge)
		if err != nil {
			return nil, err
		}
		cust.SetAge(age)
		cust.Name = c.field(rec, ColName)
		cust.Country = c.field(rec, ColCountry)

		customers = append(customers, cust)
	}

	return customers, nil
}

// parseInt accepts integers and integral floats ("1001.0"), the latter being
// what dataframe exports produce for integer columns that once held nulls.
func (c *csvFile) parseInt(rec []string, col string) (int64, error) {
	raw := c.field(rec, col)
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, c.malformed(col, raw, "not an integer")
	}
	return int64(f), nil
}

// missingValues are the cell contents dataframe exports write for a null.
var missingValues = map[string]bool{
	"": true, "NA": true, "N/A": true, "NaN": true, "nan": true, "null": true, "NULL": true, "None": true,
}

// parseOptionalInt is parseInt for nullable columns; a missing value
// yields nil.
func (c *csvFile) parseOptionalInt(rec []string, col string) (*int64, error) {
	if missingValues[c.field(rec, col)] {
		return nil, nil
	}
	v, err := c.parseInt(rec, col)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ParseTimestamp parses s with the first matching layout in loc.
func ParseTimestamp(s string, layouts []string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	var firstErr error
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = fmt.Errorf("no timestamp layouts configured")
	}
	return time.Time{}, firstErr
}
