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
// MONTHLY CLOSINGS (ledger.ClosingStore)
// =============================================================================

const closingColumns = `code, warehouse_id, item_id, period,
	opening_quantity, opening_amount, in_quantity, in_amount, out_quantity, out_amount,
	cal_quantity, cal_amount, actual_quantity, actual_unit_price, actual_amount,
	diff_quantity, diff_amount, counted, is_closed, closed_at, closed_by, updated_at`

func (q *queries) GetClosing(ctx context.Context, code string) (*ledger.MonthlyClosing, error) {
	row := q.q.QueryRowContext(ctx, "SELECT "+closingColumns+" FROM monthly_closings WHERE code = ?", code)
	c, err := scanClosing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (q *queries) LatestClosingBefore(ctx context.Context, wh ledger.WarehouseID, item ledger.ItemID, ym ledger.YearMonth) (*ledger.MonthlyClosing, error) {
	row := q.q.QueryRowContext(ctx, "SELECT "+closingColumns+` FROM monthly_closings
		WHERE warehouse_id = ? AND item_id = ? AND period < ?
		ORDER BY period DESC LIMIT 1`, wh, item, ym.String())
	c, err := scanClosing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveClosing inserts the row or replaces every column but the key.
func (q *queries) SaveClosing(ctx context.Context, c ledger.MonthlyClosing) error {
	query := `
		INSERT INTO monthly_closings (` + closingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			opening_quantity = excluded.opening_quantity,
			opening_amount = excluded.opening_amount,
			in_quantity = excluded.in_quantity,
			in_amount = excluded.in_amount,
			out_quantity = excluded.out_quantity,
			out_amount = excluded.out_amount,
			cal_quantity = excluded.cal_quantity,
			cal_amount = excluded.cal_amount,
			actual_quantity = excluded.actual_quantity,
			actual_unit_price = excluded.actual_unit_price,
			actual_amount = excluded.actual_amount,
			diff_quantity = excluded.diff_quantity,
			diff_amount = excluded.diff_amount,
			counted = excluded.counted,
			is_closed = excluded.is_closed,
			closed_at = excluded.closed_at,
			closed_by = excluded.closed_by,
			updated_at = excluded.updated_at
	`
	_, err := q.q.ExecContext(ctx, query,
		c.Code, c.WarehouseID, c.ItemID, c.Period.String(),
		dec(c.OpeningQuantity), dec(c.OpeningAmount),
		dec(c.InQuantity), dec(c.InAmount),
		dec(c.OutQuantity), dec(c.OutAmount),
		dec(c.CalQuantity), dec(c.CalAmount),
		dec(c.ActualQuantity), dec(c.ActualUnitPrice), dec(c.ActualAmount),
		dec(c.DiffQuantity), dec(c.DiffAmount),
		c.Counted, c.IsClosed, nullTime(c.ClosedAt), nullString(c.ClosedBy),
		now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save closing %s: %w", c.Code, err)
	}
	return nil
}

func (q *queries) ListClosings(ctx context.Context, wh ledger.WarehouseID, ym ledger.YearMonth) ([]ledger.MonthlyClosing, error) {
	rows, err := q.q.QueryContext(ctx, "SELECT "+closingColumns+` FROM monthly_closings
		WHERE warehouse_id = ? AND period = ?
		ORDER BY item_id`, wh, ym.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query closings: %w", err)
	}
	defer rows.Close()

	var closings []ledger.MonthlyClosing
	for rows.Next() {
		c, err := scanClosing(rows)
		if err != nil {
			return nil, err
		}
		closings = append(closings, c)
	}
	return closings, rows.Err()
}

func (q *queries) SetClosed(ctx context.Context, wh ledger.WarehouseID, ym ledger.YearMonth, closed bool, at *time.Time, by string) (int64, error) {
	res, err := q.q.ExecContext(ctx, `
		UPDATE monthly_closings SET is_closed = ?, closed_at = ?, closed_by = ?, updated_at = ?
		WHERE warehouse_id = ? AND period = ?`,
		closed, nullTime(at), nullString(by), now(), wh, ym.String())
	if err != nil {
		return 0, fmt.Errorf("failed to toggle closing: %w", err)
	}
	return res.RowsAffected()
}

func (q *queries) IsPeriodClosed(ctx context.Context, wh ledger.WarehouseID, ym ledger.YearMonth) (bool, error) {
	var count int
	err := q.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM monthly_closings
		WHERE warehouse_id = ? AND period = ? AND is_closed = TRUE`,
		wh, ym.String()).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanClosing(s scanner) (ledger.MonthlyClosing, error) {
	var (
		c         ledger.MonthlyClosing
		period    string
		closedAt  sql.NullString
		closedBy  sql.NullString
		updatedAt string
	)
	err := s.Scan(
		&c.Code, &c.WarehouseID, &c.ItemID, &period,
		&c.OpeningQuantity, &c.OpeningAmount, &c.InQuantity, &c.InAmount, &c.OutQuantity, &c.OutAmount,
		&c.CalQuantity, &c.CalAmount, &c.ActualQuantity, &c.ActualUnitPrice, &c.ActualAmount,
		&c.DiffQuantity, &c.DiffAmount, &c.Counted, &c.IsClosed, &closedAt, &closedBy, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, err
		}
		return c, fmt.Errorf("failed to scan closing: %w", err)
	}
	c.Period, _ = ledger.ParseYearMonth(period)
	c.ClosedAt = timePtr(closedAt)
	c.ClosedBy = closedBy.String
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}
