package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/distribution-ledger/ledger"
)

// =============================================================================
// STOCK ENTRIES (ledger.StockStore)
// =============================================================================

const stockEntryColumns = `id, org_id, warehouse_id, item_id, entry_date, entry_type,
	quantity, unit_price, amount, note, reference_type, reference_id, reference_line,
	reverses_id, created_at`

// AppendStockEntry adds an entry to the stock log.
func (q *queries) AppendStockEntry(ctx context.Context, e ledger.StockEntry) error {
	query := `
		INSERT INTO stock_entries
		(id, org_id, warehouse_id, item_id, entry_date, period, entry_type,
		 quantity, unit_price, amount, note, reference_type, reference_id, reference_line,
		 reverses_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.q.ExecContext(ctx, query, stockEntryArgs(e)...)
	if err != nil {
		if isUniqueConstraintError(err) && e.ReversesID != "" {
			return fmt.Errorf("stock entry %s already reversed: %w", e.ReversesID, ledger.ErrConcurrentModification)
		}
		return fmt.Errorf("failed to append stock entry: %w", err)
	}
	return nil
}

// UpsertCountEntry replaces the inventory_count record with the same ID.
func (q *queries) UpsertCountEntry(ctx context.Context, e ledger.StockEntry) error {
	query := `
		INSERT INTO stock_entries
		(id, org_id, warehouse_id, item_id, entry_date, period, entry_type,
		 quantity, unit_price, amount, note, reference_type, reference_id, reference_line,
		 reverses_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			entry_date = excluded.entry_date,
			quantity = excluded.quantity,
			unit_price = excluded.unit_price,
			amount = excluded.amount,
			note = excluded.note
		WHERE stock_entries.entry_type = 'inventory_count'
	`
	if _, err := q.q.ExecContext(ctx, query, stockEntryArgs(e)...); err != nil {
		return fmt.Errorf("failed to upsert count entry: %w", err)
	}
	return nil
}

func stockEntryArgs(e ledger.StockEntry) []any {
	createdAt := now()
	if !e.CreatedAt.IsZero() {
		createdAt = formatTime(e.CreatedAt)
	}
	return []any{
		e.ID,
		e.OrgID,
		e.WarehouseID,
		e.ItemID,
		formatDate(e.Date),
		ledger.YearMonthOf(e.Date).String(),
		e.Type,
		dec(e.Quantity),
		dec(e.UnitPrice),
		dec(e.Amount),
		e.Note,
		e.Reference.Type,
		e.Reference.ID,
		e.Reference.Line,
		nullString(e.ReversesID),
		createdAt,
	}
}

func (q *queries) GetStockEntry(ctx context.Context, id string) (*ledger.StockEntry, error) {
	row := q.q.QueryRowContext(ctx, "SELECT "+stockEntryColumns+" FROM stock_entries WHERE id = ?", id)
	e, err := scanStockEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListStockEntries returns matching entries ordered by date, then insertion.
func (q *queries) ListStockEntries(ctx context.Context, f ledger.StockEntryFilter) ([]ledger.StockEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.WarehouseID != "" {
		where = append(where, "warehouse_id = ?")
		args = append(args, f.WarehouseID)
	}
	if f.ItemID != "" {
		where = append(where, "item_id = ?")
		args = append(args, f.ItemID)
	}
	if !f.From.IsZero() {
		where = append(where, "entry_date >= ?")
		args = append(args, formatDate(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "entry_date <= ?")
		args = append(args, formatDate(f.To))
	}
	if len(f.Types) > 0 {
		where = append(where, "entry_type IN ("+inClause(len(f.Types))+")")
		for _, t := range f.Types {
			args = append(args, t)
		}
	}

	query := "SELECT " + stockEntryColumns + " FROM stock_entries"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY entry_date ASC, created_at ASC, rowid ASC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	return q.queryStockEntries(ctx, query, args...)
}

func (q *queries) ListStockEntriesByReference(ctx context.Context, refType ledger.ReferenceType, refID string) ([]ledger.StockEntry, error) {
	query := "SELECT " + stockEntryColumns + ` FROM stock_entries
		WHERE reference_type = ? AND reference_id = ?
		ORDER BY rowid ASC`
	return q.queryStockEntries(ctx, query, refType, refID)
}

// IsStockEntryReversed checks if an entry has already been reversed.
func (q *queries) IsStockEntryReversed(ctx context.Context, id string) (bool, error) {
	var count int
	err := q.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM stock_entries WHERE reverses_id = ?", id).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (q *queries) queryStockEntries(ctx context.Context, query string, args ...any) ([]ledger.StockEntry, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.StockEntry
	for rows.Next() {
		e, err := scanStockEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanStockEntry(s scanner) (ledger.StockEntry, error) {
	var (
		e          ledger.StockEntry
		entryDate  string
		note       sql.NullString
		refType    sql.NullString
		refID      sql.NullString
		reversesID sql.NullString
		createdAt  string
	)
	err := s.Scan(
		&e.ID, &e.OrgID, &e.WarehouseID, &e.ItemID, &entryDate, &e.Type,
		&e.Quantity, &e.UnitPrice, &e.Amount, &note, &refType, &refID, &e.Reference.Line,
		&reversesID, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("failed to scan stock entry: %w", err)
	}
	e.Date = parseDate(entryDate)
	e.Note = note.String
	e.Reference.Type = ledger.ReferenceType(refType.String)
	e.Reference.ID = refID.String
	e.ReversesID = reversesID.String
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}

// =============================================================================
// WAREHOUSE ITEMS
// =============================================================================

func (q *queries) GetWarehouseItem(ctx context.Context, wh ledger.WarehouseID, item ledger.ItemID) (*ledger.WarehouseItem, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT warehouse_id, item_id, current_quantity, safe_quantity, updated_at
		FROM warehouse_items WHERE warehouse_id = ? AND item_id = ?`, wh, item)
	wi, err := scanWarehouseItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wi, nil
}

func (q *queries) CreateWarehouseItem(ctx context.Context, wi ledger.WarehouseItem) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO warehouse_items (warehouse_id, item_id, current_quantity, safe_quantity, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		wi.WarehouseID, wi.ItemID, dec(wi.CurrentQuantity), dec(wi.SafeQuantity), now())
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.Invalid("item_id", "item %s already registered in warehouse %s", wi.ItemID, wi.WarehouseID)
		}
		return fmt.Errorf("failed to create warehouse item: %w", err)
	}
	return nil
}

func (q *queries) ListWarehouseItems(ctx context.Context, wh ledger.WarehouseID) ([]ledger.WarehouseItem, error) {
	query := `SELECT warehouse_id, item_id, current_quantity, safe_quantity, updated_at FROM warehouse_items`
	var args []any
	if wh != "" {
		query += " WHERE warehouse_id = ?"
		args = append(args, wh)
	}
	query += " ORDER BY warehouse_id, item_id"

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query warehouse items: %w", err)
	}
	defer rows.Close()

	var items []ledger.WarehouseItem
	for rows.Next() {
		wi, err := scanWarehouseItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, wi)
	}
	return items, rows.Err()
}

// CompareAndSetQuantity only succeeds when current_quantity still equals old.
func (q *queries) CompareAndSetQuantity(ctx context.Context, wh ledger.WarehouseID, item ledger.ItemID, old, new decimal.Decimal) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE warehouse_items SET current_quantity = ?, updated_at = ?
		WHERE warehouse_id = ? AND item_id = ? AND current_quantity = ?`,
		dec(new), now(), wh, item, dec(old))
	if err != nil {
		return fmt.Errorf("failed to update warehouse item: %w", err)
	}
	return expectOne(res, fmt.Sprintf("warehouse item %s/%s", wh, item))
}

func scanWarehouseItem(s scanner) (ledger.WarehouseItem, error) {
	var (
		wi        ledger.WarehouseItem
		updatedAt string
	)
	if err := s.Scan(&wi.WarehouseID, &wi.ItemID, &wi.CurrentQuantity, &wi.SafeQuantity, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return wi, err
		}
		return wi, fmt.Errorf("failed to scan warehouse item: %w", err)
	}
	wi.UpdatedAt = parseTime(updatedAt)
	return wi, nil
}
