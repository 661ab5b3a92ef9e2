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
// ORDERS (ledger.OrderStore)
// =============================================================================

const orderColumns = `order_no, org_id, customer_id, requested_date, delivery_status, payment_status,
	deposit_type, taxable_amt, tax_free_amt, supply_amt, vat_amt, total_amt, total_qty,
	vehicle, driver, delivery_amt, delivery_date, note, created_at, updated_at`

func (q *queries) CreateOrder(ctx context.Context, o ledger.Order) error {
	ts := now()
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderNo, o.OrgID, o.CustomerID, formatDate(o.RequestedDate), o.DeliveryStatus, o.PaymentStatus,
		o.DepositType, dec(o.TaxableAmt), dec(o.TaxFreeAmt), dec(o.SupplyAmt), dec(o.VatAmt), dec(o.TotalAmt), dec(o.TotalQty),
		o.Vehicle, o.Driver, dec(o.DeliveryAmt), nullDate(o.DeliveryDate), o.Note, ts, ts,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("order %s already exists: %w", o.OrderNo, ledger.ErrConcurrentModification)
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// UpdateOrder rewrites every mutable header column.
func (q *queries) UpdateOrder(ctx context.Context, o ledger.Order) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE orders SET
			customer_id = ?, requested_date = ?, delivery_status = ?, payment_status = ?,
			deposit_type = ?, taxable_amt = ?, tax_free_amt = ?, supply_amt = ?, vat_amt = ?,
			total_amt = ?, total_qty = ?, vehicle = ?, driver = ?, delivery_amt = ?,
			delivery_date = ?, note = ?, updated_at = ?
		WHERE order_no = ?`,
		o.CustomerID, formatDate(o.RequestedDate), o.DeliveryStatus, o.PaymentStatus,
		o.DepositType, dec(o.TaxableAmt), dec(o.TaxFreeAmt), dec(o.SupplyAmt), dec(o.VatAmt),
		dec(o.TotalAmt), dec(o.TotalQty), o.Vehicle, o.Driver, dec(o.DeliveryAmt),
		nullDate(o.DeliveryDate), o.Note, now(),
		o.OrderNo,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.NotFound("order", o.OrderNo)
	}
	return nil
}

func (q *queries) GetOrder(ctx context.Context, no ledger.OrderNo) (*ledger.Order, error) {
	row := q.q.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE order_no = ?", no)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (q *queries) ListOrders(ctx context.Context, f ledger.OrderFilter) ([]ledger.Order, error) {
	var (
		where []string
		args  []any
	)
	if f.CustomerID != "" {
		where = append(where, "customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if f.Status != "" {
		where = append(where, "delivery_status = ?")
		args = append(args, f.Status)
	}
	if !f.From.IsZero() {
		where = append(where, "requested_date >= ?")
		args = append(args, formatDate(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "requested_date <= ?")
		args = append(args, formatDate(f.To))
	}

	query := "SELECT " + orderColumns + " FROM orders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY order_no ASC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []ledger.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (q *queries) DeleteOrder(ctx context.Context, no ledger.OrderNo) error {
	_, err := q.q.ExecContext(ctx, "DELETE FROM orders WHERE order_no = ?", no)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return nil
}

func (q *queries) LatestOrderNo(ctx context.Context, prefix string) (ledger.OrderNo, error) {
	var latest sql.NullString
	err := q.q.QueryRowContext(ctx,
		"SELECT MAX(order_no) FROM orders WHERE order_no LIKE ?", prefix+"%").Scan(&latest)
	if err != nil {
		return "", err
	}
	return ledger.OrderNo(latest.String), nil
}

func scanOrder(s scanner) (ledger.Order, error) {
	var (
		o                    ledger.Order
		requestedDate        string
		vehicle, driver      sql.NullString
		deliveryDate         sql.NullString
		note                 sql.NullString
		createdAt, updatedAt string
	)
	err := s.Scan(
		&o.OrderNo, &o.OrgID, &o.CustomerID, &requestedDate, &o.DeliveryStatus, &o.PaymentStatus,
		&o.DepositType, &o.TaxableAmt, &o.TaxFreeAmt, &o.SupplyAmt, &o.VatAmt, &o.TotalAmt, &o.TotalQty,
		&vehicle, &driver, &o.DeliveryAmt, &deliveryDate, &note, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return o, err
		}
		return o, fmt.Errorf("failed to scan order: %w", err)
	}
	o.RequestedDate = parseDate(requestedDate)
	o.Vehicle = vehicle.String
	o.Driver = driver.String
	if deliveryDate.Valid && deliveryDate.String != "" {
		d := parseDate(deliveryDate.String)
		o.DeliveryDate = &d
	}
	o.Note = note.String
	o.CreatedAt = parseTime(createdAt)
	o.UpdatedAt = parseTime(updatedAt)
	return o, nil
}

// =============================================================================
// ORDER ITEMS
// =============================================================================

const orderItemColumns = `id, order_no, line, item_id, warehouse_id, unit_price, quantity, taxable,
	supply_amt, vat_amt, total_amt, returnable_qty`

func (q *queries) InsertOrderItem(ctx context.Context, it ledger.OrderItem) (int64, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO order_items (order_no, line, item_id, warehouse_id, unit_price, quantity, taxable,
			supply_amt, vat_amt, total_amt, returnable_qty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.OrderNo, it.Line, it.ItemID, it.WarehouseID, dec(it.UnitPrice), dec(it.Quantity), it.Taxable,
		dec(it.SupplyAmt), dec(it.VatAmt), dec(it.TotalAmt), dec(it.ReturnableQty),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert order item: %w", err)
	}
	return res.LastInsertId()
}

func (q *queries) DeleteOrderItems(ctx context.Context, no ledger.OrderNo) error {
	_, err := q.q.ExecContext(ctx, "DELETE FROM order_items WHERE order_no = ?", no)
	if err != nil {
		return fmt.Errorf("failed to delete order items: %w", err)
	}
	return nil
}

func (q *queries) ListOrderItems(ctx context.Context, no ledger.OrderNo) ([]ledger.OrderItem, error) {
	rows, err := q.q.QueryContext(ctx,
		"SELECT "+orderItemColumns+" FROM order_items WHERE order_no = ? ORDER BY line ASC, id ASC", no)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []ledger.OrderItem
	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (q *queries) GetOrderItem(ctx context.Context, id int64) (*ledger.OrderItem, error) {
	row := q.q.QueryRowContext(ctx, "SELECT "+orderItemColumns+" FROM order_items WHERE id = ?", id)
	it, err := scanOrderItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (q *queries) SetReturnableQty(ctx context.Context, id int64, qty decimal.Decimal) error {
	res, err := q.q.ExecContext(ctx, "UPDATE order_items SET returnable_qty = ? WHERE id = ?", dec(qty), id)
	if err != nil {
		return fmt.Errorf("failed to update returnable quantity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.NotFound("order item", id)
	}
	return nil
}

func scanOrderItem(s scanner) (ledger.OrderItem, error) {
	var it ledger.OrderItem
	err := s.Scan(&it.ID, &it.OrderNo, &it.Line, &it.ItemID, &it.WarehouseID, &it.UnitPrice, &it.Quantity,
		&it.Taxable, &it.SupplyAmt, &it.VatAmt, &it.TotalAmt, &it.ReturnableQty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return it, err
		}
		return it, fmt.Errorf("failed to scan order item: %w", err)
	}
	return it, nil
}
