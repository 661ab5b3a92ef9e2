/*
Package sqlite provides a SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  Persists every record of the distribution ledger: stock entries and the
  warehouse item projection, monthly closings, customers and their balance
  log, orders, transfers, returns and the delivery holiday calendar.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on stock_entries / balance_entries,
    except the inventory_count upsert
  - A reversal is a new row whose reverses_id points at the original;
    a UNIQUE index on reverses_id forbids reversing a row twice

KEY TABLES:
  stock_entries:       immutable stock movement log
  warehouse_items:     current quantity per (warehouse, item)
  monthly_closings:    per-(warehouse, item, month) snapshot + lock flag
  customers:           directory + running balance
  balance_entries:     immutable balance log
  balance_postings:    manual deposit/adjustment documents
  orders, order_items: order header and lines
  warehouse_transfers, warehouse_transfer_items
  order_returns
  holidays

CONCURRENCY:
  - Transactions start with BEGIN IMMEDIATE (_txlock=immediate), so a
    writer holds the database write lock for its whole unit of work
  - WithTx additionally serialises writers in-process with a mutex
  - current_quantity and balance only change through compare-and-set
    UPDATEs; zero rows affected means another writer got there first
  - The pool is limited to one connection. ":memory:" databases exist per
    connection, and SQLite allows a single writer anyway

STORAGE FORMATS:
  Decimals are TEXT in canonical decimal.String() form, so the CAS
  comparison is a plain string equality. Dates are YYYY-MM-DD, periods
  YYYY-MM, timestamps RFC3339.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  err = store.WithTx(ctx, func(tx ledger.Store) error {
      return stock.NewLedger(tx, logger).Adjust(ctx, ...)
  })

SEE ALSO:
  - ledger/store.go: interface definitions
  - schema.go: tables and indexes
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/distribution-ledger/ledger"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every statement, bound to either the database or a
// transaction.
type queries struct {
	q querier
}

// Store implements ledger.TxStore using SQLite.
type Store struct {
	*queries
	db *sql.DB
	mu sync.Mutex
}

var _ ledger.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{queries: &queries{q: db}, db: db}
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates any missing table or index. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{queries: &queries{q: sqlTx}}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore exposes the same statements bound to an open transaction. It
// never calls back into Store, so it cannot wait on the mutex WithTx holds.
type txStore struct {
	*queries
}

var _ ledger.Store = (*txStore)(nil)

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// children before parents
	tables := []string{
		"order_returns", "order_items", "orders",
		"warehouse_transfer_items", "warehouse_transfers",
		"stock_entries", "monthly_closings", "warehouse_items",
		"balance_postings", "balance_entries", "customers",
		"holidays",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func dec(d decimal.Decimal) string { return d.String() }

func formatDate(t time.Time) string { return t.UTC().Format(ledger.DateLayout) }

func parseDate(s string) time.Time {
	t, _ := time.Parse(ledger.DateLayout, s)
	return t
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func now() string { return formatTime(time.Now()) }

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(*t), Valid: true}
}

func timePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// expectOne turns a CAS that matched no row into ErrConcurrentModification.
func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ledger.ErrConcurrentModification)
	}
	return nil
}

// inClause returns "?, ?, ?" for n placeholders.
func inClause(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, '?')
	}
	return string(b)
}
