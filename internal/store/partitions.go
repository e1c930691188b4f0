package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xtxerr/salesetl/internal/errors"
	"github.com/xtxerr/salesetl/internal/storage/types"
)

// rowsPerInsert bounds the number of rows per multi-row INSERT.
const rowsPerInsert = 1000

const transactionColumns = `TRANSACTION_ID VARCHAR NOT NULL,
	CUSTOMER_ID BIGINT NOT NULL,
	PRODUCT_ID BIGINT NOT NULL,
	QUANTITY BIGINT NOT NULL,
	PRICE DECIMAL(18,4) NOT NULL,
	TRANSACTION_DATE TIMESTAMP NOT NULL`

const transactionRow = `(?, ?, ?, ?, CAST(? AS DECIMAL(18,4)), ?)`

// PartitionEntry is one row of the partition registry.
type PartitionEntry struct {
	Key      types.PartitionKey
	Table    string
	Rows     int64
	LoadedAt time.Time
	Profile  types.PriceProfile
}

func (s *Store) ensureRegistry(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+quoteIdent(s.opts.Tables.Registry)+` (
		PARTITION_KEY TIMESTAMP PRIMARY KEY,
		TABLE_NAME VARCHAR NOT NULL,
		ROW_COUNT BIGINT NOT NULL,
		LOADED_AT TIMESTAMP NOT NULL,
		MIN_PRICE DOUBLE,
		MAX_PRICE DOUBLE,
		P50_PRICE DOUBLE,
		P90_PRICE DOUBLE,
		P99_PRICE DOUBLE
	)`)
	if err != nil {
		return errors.NewStorage("create registry", s.opts.Tables.Registry, err)
	}
	return nil
}

// PartitionTable returns the table that holds the partition for key.
func (s *Store) PartitionTable(key types.PartitionKey) string {
	return key.TableName(s.opts.Tables.PartitionPrefix)
}

// ReplacePartition replaces the table for key with txs and records it in
// the registry. Table and registry change in one transaction.
func (s *Store) ReplacePartition(ctx context.Context, key types.PartitionKey, txs []types.Transaction, profile types.PriceProfile) (PartitionEntry, error) {
	table := s.PartitionTable(key)
	entry := PartitionEntry{
		Key:      key,
		Table:    table,
		Rows:     int64(len(txs)),
		LoadedAt: time.Now().UTC(),
		Profile:  profile,
	}

	err := s.replace(ctx, func(tx *sql.Tx) error {
		if err := createOrReplace(ctx, tx, table, transactionColumns); err != nil {
			return err
		}
		err := insertBatches(ctx, tx, table, transactionRow, len(txs), func(i int) []interface{} {
			t := &txs[i]
			return []interface{}{t.ID, t.CustomerID, t.ProductID, t.Quantity, t.Price.String(), t.Timestamp.UTC()}
		})
		if err != nil {
			return err
		}
		return s.register(ctx, tx, entry)
	})
	if err != nil {
		return PartitionEntry{}, errors.NewStorage("replace partition", table, err)
	}

	log.Debug("replaced partition", "table", table, "rows", len(txs))
	return entry, nil
}

func createOrReplace(ctx context.Context, tx *sql.Tx, table, columns string) error {
	_, err := tx.ExecContext(ctx, "CREATE OR REPLACE TABLE "+quoteIdent(table)+" (\n\t"+columns+"\n)")
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

func (s *Store) register(ctx context.Context, tx *sql.Tx, e PartitionEntry) error {
	registry := quoteIdent(s.opts.Tables.Registry)
	keyTime := e.Key.Start().UTC()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+registry+" WHERE PARTITION_KEY = ?", keyTime); err != nil {
		return fmt.Errorf("unregister: %w", err)
	}

	var minP, maxP, p50, p90, p99 interface{}
	if !e.Profile.IsEmpty() {
		minP, maxP = e.Profile.Min, e.Profile.Max
		p50, p90, p99 = e.Profile.P50, e.Profile.P90, e.Profile.P99
	}

	_, err := tx.ExecContext(ctx, "INSERT INTO "+registry+" VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		keyTime, e.Table, e.Rows, e.LoadedAt, minP, maxP, p50, p90, p99)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// Partitions lists the registry ordered by partition key.
func (s *Store) Partitions(ctx context.Context) ([]PartitionEntry, error) {
	return s.partitions(ctx, s.db)
}

func (s *Store) partitions(ctx context.Context, q queryer) ([]PartitionEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT PARTITION_KEY, TABLE_NAME, ROW_COUNT, LOADED_AT,
		       MIN_PRICE, MAX_PRICE, P50_PRICE, P90_PRICE, P99_PRICE
		FROM `+quoteIdent(s.opts.Tables.Registry)+`
		ORDER BY PARTITION_KEY`)
	if err != nil {
		return nil, errors.NewStorage("list partitions", s.opts.Tables.Registry, err)
	}
	defer rows.Close()

	var entries []PartitionEntry
	for rows.Next() {
		var (
			e             PartitionEntry
			keyTime       time.Time
			minP, maxP    sql.NullFloat64
			p50, p90, p99 sql.NullFloat64
		)
		if err := rows.Scan(&keyTime, &e.Table, &e.Rows, &e.LoadedAt, &minP, &maxP, &p50, &p90, &p99); err != nil {
			return nil, errors.NewStorage("scan partition", s.opts.Tables.Registry, err)
		}

		e.Key = types.KeyFor(keyTime.In(s.opts.Location))
		if minP.Valid {
			e.Profile = types.PriceProfile{
				Count: e.Rows,
				Min:   minP.Float64,
				Max:   maxP.Float64,
				P50:   p50.Float64,
				P90:   p90.Float64,
				P99:   p99.Float64,
			}
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage("list partitions", s.opts.Tables.Registry, err)
	}
	return entries, nil
}

// ReadPartition returns the contents of the partition table for key.
func (s *Store) ReadPartition(ctx context.Context, key types.PartitionKey) ([]types.Transaction, error) {
	table := s.PartitionTable(key)
	if err := s.requireTable(ctx, s.db, table); err != nil {
		return nil, err
	}
	return s.readTransactions(ctx, s.db, table)
}

// Snapshot is a consistent view of every registered partition.
type Snapshot struct {
	Entries      []PartitionEntry
	Transactions []types.Transaction
}

// ReadPartitions reads the registry and the union of all registered
// partition tables inside one transaction, so concurrent replaces are
// either fully visible or not at all.
func (s *Store) ReadPartitions(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	err := s.TransactionContext(ctx, func(tx *sql.Tx) error {
		entries, err := s.partitions(ctx, tx)
		if err != nil {
			return err
		}
		snap.Entries = entries

		for _, e := range entries {
			txs, err := s.readTransactions(ctx, tx, e.Table)
			if err != nil {
				return err
			}
			snap.Transactions = append(snap.Transactions, txs...)
		}
		return nil
	})
	if err != nil {
		if errors.IsStorageError(err) {
			return nil, err
		}
		return nil, errors.NewStorage("read partitions", "", err)
	}

	return snap, nil
}

func (s *Store) readTransactions(ctx context.Context, q queryer, table string) ([]types.Transaction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT TRANSACTION_ID, CUSTOMER_ID, PRODUCT_ID, QUANTITY,
		       CAST(PRICE AS VARCHAR), TRANSACTION_DATE
		FROM `+quoteIdent(table)+`
		ORDER BY TRANSACTION_DATE, TRANSACTION_ID`)
	if err != nil {
		return nil, errors.NewStorage("read", table, err)
	}
	defer rows.Close()

	var txs []types.Transaction
	for rows.Next() {
		var (
			t     types.Transaction
			price string
			ts    time.Time
		)
		if err := rows.Scan(&t.ID, &t.CustomerID, &t.ProductID, &t.Quantity, &price, &ts); err != nil {
			return nil, errors.NewStorage("scan", table, err)
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, errors.NewStorage("scan", table, err)
		}
		t.Timestamp = ts.In(s.opts.Location)
		txs = append(txs, t)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage("read", table, err)
	}
	return txs, nil
}
