package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/warp/distribution-ledger/ledger"
)

// =============================================================================
// RETURNS (ledger.ReturnStore)
// =============================================================================

const returnColumns = `id, order_no, order_item_id, item_id, customer_id, quantity, unit_price,
	supply_amt, vat_amt, total_amt, status, reason, approved_at, approved_by, created_at, updated_at`

// SaveReturn inserts the return or replaces its mutable columns.
func (q *queries) SaveReturn(ctx context.Context, r ledger.Return) error {
	ts := now()
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO order_returns (`+returnColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			quantity = excluded.quantity,
			supply_amt = excluded.supply_amt,
			vat_amt = excluded.vat_amt,
			total_amt = excluded.total_amt,
			status = excluded.status,
			reason = excluded.reason,
			approved_at = excluded.approved_at,
			approved_by = excluded.approved_by,
			updated_at = excluded.updated_at`,
		r.ID, r.OrderNo, r.OrderItemID, r.ItemID, r.CustomerID, dec(r.Quantity), dec(r.UnitPrice),
		dec(r.SupplyAmt), dec(r.VatAmt), dec(r.TotalAmt), r.Status, r.Reason,
		nullTime(r.ApprovedAt), nullString(r.ApprovedBy), ts, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to save return: %w", err)
	}
	return nil
}

func (q *queries) GetReturn(ctx context.Context, id string) (*ledger.Return, error) {
	row := q.q.QueryRowContext(ctx, "SELECT "+returnColumns+" FROM order_returns WHERE id = ?", id)
	r, err := scanReturn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (q *queries) DeleteReturn(ctx context.Context, id string) error {
	_, err := q.q.ExecContext(ctx, "DELETE FROM order_returns WHERE id = ?", id)
	return err
}

func (q *queries) ListReturns(ctx context.Context, f ledger.ReturnFilter) ([]ledger.Return, error) {
	var (
		where []string
		args  []any
	)
	if f.OrderNo != "" {
		where = append(where, "order_no = ?")
		args = append(args, f.OrderNo)
	}
	if f.CustomerID != "" {
		where = append(where, "customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if !f.From.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, formatTime(f.To))
	}

	query := "SELECT " + returnColumns + " FROM order_returns"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, rowid ASC"

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query returns: %w", err)
	}
	defer rows.Close()

	var returns []ledger.Return
	for rows.Next() {
		r, err := scanReturn(rows)
		if err != nil {
			return nil, err
		}
		returns = append(returns, r)
	}
	return returns, rows.Err()
}

func scanReturn(s scanner) (ledger.Return, error) {
	var (
		r                    ledger.Return
		reason               sql.NullString
		approvedAt           sql.NullString
		approvedBy           sql.NullString
		createdAt, updatedAt string
	)
	err := s.Scan(&r.ID, &r.OrderNo, &r.OrderItemID, &r.ItemID, &r.CustomerID, &r.Quantity, &r.UnitPrice,
		&r.SupplyAmt, &r.VatAmt, &r.TotalAmt, &r.Status, &reason, &approvedAt, &approvedBy, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("failed to scan return: %w", err)
	}
	r.Reason = reason.String
	r.ApprovedAt = timePtr(approvedAt)
	r.ApprovedBy = approvedBy.String
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}
