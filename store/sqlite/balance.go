package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/distribution-ledger/ledger"
)

// =============================================================================
// CUSTOMERS (ledger.CustomerStore)
// =============================================================================

const customerColumns = `id, org_id, name, deposit_type, balance, created_at, updated_at`

// SaveCustomer creates the customer or updates its master data. The balance
// column is only written on insert; afterwards it moves through
// CompareAndSetBalance.
func (q *queries) SaveCustomer(ctx context.Context, c ledger.Customer) error {
	query := `
		INSERT INTO customers (id, org_id, name, deposit_type, balance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			org_id = excluded.org_id,
			name = excluded.name,
			deposit_type = excluded.deposit_type,
			updated_at = excluded.updated_at
	`
	ts := now()
	_, err := q.q.ExecContext(ctx, query, c.ID, c.OrgID, c.Name, c.DepositType, dec(c.Balance), ts, ts)
	if err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}
	return nil
}

func (q *queries) GetCustomer(ctx context.Context, id ledger.CustomerID) (*ledger.Customer, error) {
	row := q.q.QueryRowContext(ctx, "SELECT "+customerColumns+" FROM customers WHERE id = ?", id)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (q *queries) ListCustomers(ctx context.Context, org ledger.OrgID) ([]ledger.Customer, error) {
	query := "SELECT " + customerColumns + " FROM customers"
	var args []any
	if org != "" {
		query += " WHERE org_id = ?"
		args = append(args, org)
	}
	query += " ORDER BY name"

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var customers []ledger.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// CompareAndSetBalance only succeeds when balance still equals old.
func (q *queries) CompareAndSetBalance(ctx context.Context, id ledger.CustomerID, old, new decimal.Decimal) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE customers SET balance = ?, updated_at = ?
		WHERE id = ? AND balance = ?`,
		dec(new), now(), id, dec(old))
	if err != nil {
		return fmt.Errorf("failed to update customer balance: %w", err)
	}
	return expectOne(res, fmt.Sprintf("customer %s balance", id))
}

func scanCustomer(s scanner) (ledger.Customer, error) {
	var (
		c                    ledger.Customer
		createdAt, updatedAt string
	)
	if err := s.Scan(&c.ID, &c.OrgID, &c.Name, &c.DepositType, &c.Balance, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, err
		}
		return c, fmt.Errorf("failed to scan customer: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}

// =============================================================================
// BALANCE ENTRIES (ledger.BalanceStore)
// =============================================================================

const balanceEntryColumns = `id, customer_id, entry_date, entry_type, amount, balance_after,
	reference_type, reference_id, reverses_id, note, created_at`

func (q *queries) AppendBalanceEntry(ctx context.Context, e ledger.BalanceEntry) error {
	createdAt := now()
	if !e.CreatedAt.IsZero() {
		createdAt = formatTime(e.CreatedAt)
	}
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO balance_entries (`+balanceEntryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CustomerID, formatDate(e.Date), e.Type, dec(e.Amount), dec(e.BalanceAfter),
		e.Reference.Type, e.Reference.ID, nullString(e.ReversesID), e.Note, createdAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) && e.ReversesID != "" {
			return fmt.Errorf("balance entry %s already reversed: %w", e.ReversesID, ledger.ErrConcurrentModification)
		}
		return fmt.Errorf("failed to append balance entry: %w", err)
	}
	return nil
}

func (q *queries) GetBalanceEntry(ctx context.Context, id string) (*ledger.BalanceEntry, error) {
	row := q.q.QueryRowContext(ctx, "SELECT "+balanceEntryColumns+" FROM balance_entries WHERE id = ?", id)
	e, err := scanBalanceEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListBalanceEntries returns a customer's entries in [from, to]; zero bounds
// are open.
func (q *queries) ListBalanceEntries(ctx context.Context, customer ledger.CustomerID, from, to time.Time) ([]ledger.BalanceEntry, error) {
	query := "SELECT " + balanceEntryColumns + " FROM balance_entries WHERE customer_id = ?"
	args := []any{customer}
	if !from.IsZero() {
		query += " AND entry_date >= ?"
		args = append(args, formatDate(from))
	}
	if !to.IsZero() {
		query += " AND entry_date <= ?"
		args = append(args, formatDate(to))
	}
	query += " ORDER BY rowid ASC"
	return q.queryBalanceEntries(ctx, query, args...)
}

func (q *queries) ListBalanceEntriesByReference(ctx context.Context, refType ledger.ReferenceType, refID string) ([]ledger.BalanceEntry, error) {
	query := "SELECT " + balanceEntryColumns + ` FROM balance_entries
		WHERE reference_type = ? AND reference_id = ?
		ORDER BY rowid ASC`
	return q.queryBalanceEntries(ctx, query, refType, refID)
}

func (q *queries) IsBalanceEntryReversed(ctx context.Context, id string) (bool, error) {
	var count int
	err := q.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM balance_entries WHERE reverses_id = ?", id).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (q *queries) queryBalanceEntries(ctx context.Context, query string, args ...any) ([]ledger.BalanceEntry, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.BalanceEntry
	for rows.Next() {
		e, err := scanBalanceEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanBalanceEntry(s scanner) (ledger.BalanceEntry, error) {
	var (
		e          ledger.BalanceEntry
		entryDate  string
		refType    sql.NullString
		refID      sql.NullString
		reversesID sql.NullString
		note       sql.NullString
		createdAt  string
	)
	err := s.Scan(&e.ID, &e.CustomerID, &entryDate, &e.Type, &e.Amount, &e.BalanceAfter,
		&refType, &refID, &reversesID, &note, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("failed to scan balance entry: %w", err)
	}
	e.Date = parseDate(entryDate)
	e.Reference = ledger.Reference{Type: ledger.ReferenceType(refType.String), ID: refID.String}
	e.ReversesID = reversesID.String
	e.Note = note.String
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}

// =============================================================================
// BALANCE POSTINGS
// =============================================================================

const postingColumns = `id, kind, customer_id, amount, posting_date, note, entry_id, created_at, updated_at`

func (q *queries) SavePosting(ctx context.Context, p ledger.BalancePosting) error {
	ts := now()
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO balance_postings (`+postingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			posting_date = excluded.posting_date,
			note = excluded.note,
			entry_id = excluded.entry_id,
			updated_at = excluded.updated_at`,
		p.ID, p.Kind, p.CustomerID, dec(p.Amount), formatDate(p.Date), p.Note, p.EntryID, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to save posting: %w", err)
	}
	return nil
}

func (q *queries) GetPosting(ctx context.Context, id string) (*ledger.BalancePosting, error) {
	row := q.q.QueryRowContext(ctx, "SELECT "+postingColumns+" FROM balance_postings WHERE id = ?", id)
	p, err := scanPosting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (q *queries) DeletePosting(ctx context.Context, id string) error {
	_, err := q.q.ExecContext(ctx, "DELETE FROM balance_postings WHERE id = ?", id)
	return err
}

func (q *queries) ListPostings(ctx context.Context, customer ledger.CustomerID, kind ledger.PostingKind) ([]ledger.BalancePosting, error) {
	query := "SELECT " + postingColumns + " FROM balance_postings WHERE customer_id = ?"
	args := []any{customer}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY posting_date, created_at"

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query postings: %w", err)
	}
	defer rows.Close()

	var postings []ledger.BalancePosting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		postings = append(postings, p)
	}
	return postings, rows.Err()
}

func scanPosting(s scanner) (ledger.BalancePosting, error) {
	var (
		p                    ledger.BalancePosting
		date                 string
		note                 sql.NullString
		createdAt, updatedAt string
	)
	err := s.Scan(&p.ID, &p.Kind, &p.CustomerID, &p.Amount, &date, &note, &p.EntryID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("failed to scan posting: %w", err)
	}
	p.Date = parseDate(date)
	p.Note = note.String
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}
