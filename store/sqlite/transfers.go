package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/warp/distribution-ledger/ledger"
)

// =============================================================================
// WAREHOUSE TRANSFERS (ledger.TransferStore)
// =============================================================================

func (q *queries) CreateTransfer(ctx context.Context, t ledger.WarehouseTransfer) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO warehouse_transfers (code, org_id, transfer_date, from_warehouse, to_warehouse, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Code, t.OrgID, formatDate(t.Date), t.FromWarehouse, t.ToWarehouse, t.Note, now())
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("transfer %s already exists: %w", t.Code, ledger.ErrConcurrentModification)
		}
		return fmt.Errorf("failed to create transfer: %w", err)
	}

	for _, it := range t.Items {
		_, err := q.q.ExecContext(ctx, `
			INSERT INTO warehouse_transfer_items (transfer_code, line, item_id, quantity, unit_price, amount)
			VALUES (?, ?, ?, ?, ?, ?)`,
			t.Code, it.Line, it.ItemID, dec(it.Quantity), dec(it.UnitPrice), dec(it.Amount))
		if err != nil {
			return fmt.Errorf("failed to create transfer item: %w", err)
		}
	}
	return nil
}

func (q *queries) GetTransfer(ctx context.Context, code string) (*ledger.WarehouseTransfer, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT code, org_id, transfer_date, from_warehouse, to_warehouse, note, created_at
		FROM warehouse_transfers WHERE code = ?`, code)
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if t.Items, err = q.transferItems(ctx, t.Code); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTransfers returns transfers dated in [from, to] with their lines.
func (q *queries) ListTransfers(ctx context.Context, from, to time.Time) ([]ledger.WarehouseTransfer, error) {
	query := `SELECT code, org_id, transfer_date, from_warehouse, to_warehouse, note, created_at
		FROM warehouse_transfers WHERE 1 = 1`
	var args []any
	if !from.IsZero() {
		query += " AND transfer_date >= ?"
		args = append(args, formatDate(from))
	}
	if !to.IsZero() {
		query += " AND transfer_date <= ?"
		args = append(args, formatDate(to))
	}
	query += " ORDER BY code ASC"

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	var transfers []ledger.WarehouseTransfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// single connection: the cursor must be closed before the next query
	rows.Close()

	for i := range transfers {
		if transfers[i].Items, err = q.transferItems(ctx, transfers[i].Code); err != nil {
			return nil, err
		}
	}
	return transfers, nil
}

func (q *queries) LatestTransferCode(ctx context.Context, prefix string) (string, error) {
	var latest sql.NullString
	err := q.q.QueryRowContext(ctx,
		"SELECT MAX(code) FROM warehouse_transfers WHERE code LIKE ?", prefix+"%").Scan(&latest)
	if err != nil {
		return "", err
	}
	return latest.String, nil
}

func (q *queries) transferItems(ctx context.Context, code string) ([]ledger.WarehouseTransferItem, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, transfer_code, line, item_id, quantity, unit_price, amount
		FROM warehouse_transfer_items WHERE transfer_code = ? ORDER BY line ASC`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer items: %w", err)
	}
	defer rows.Close()

	var items []ledger.WarehouseTransferItem
	for rows.Next() {
		var it ledger.WarehouseTransferItem
		if err := rows.Scan(&it.ID, &it.TransferCode, &it.Line, &it.ItemID, &it.Quantity, &it.UnitPrice, &it.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan transfer item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanTransfer(s scanner) (ledger.WarehouseTransfer, error) {
	var (
		t         ledger.WarehouseTransfer
		date      string
		note      sql.NullString
		createdAt string
	)
	if err := s.Scan(&t.Code, &t.OrgID, &date, &t.FromWarehouse, &t.ToWarehouse, &note, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, err
		}
		return t, fmt.Errorf("failed to scan transfer: %w", err)
	}
	t.Date = parseDate(date)
	t.Note = note.String
	t.CreatedAt = parseTime(createdAt)
	return t, nil
}
