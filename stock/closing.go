package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/distribution-ledger/ledger"
)

// =============================================================================
// FLOW SIDE
// =============================================================================

// Side says which closing column a flow is booked on.
type Side int

const (
	SideIn Side = iota
	SideOut
)

// flowSide classifies a plain movement by its sign.
func flowSide(qty decimal.Decimal) Side {
	if qty.IsNegative() {
		return SideOut
	}
	return SideIn
}

// =============================================================================
// AGGREGATOR
// =============================================================================

// Aggregator maintains MonthlyClosing rows and the period lock.
type Aggregator struct {
	store  ledger.Store
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewAggregator(store ledger.Store, logger logrus.FieldLogger) *Aggregator {
	return &Aggregator{store: store, logger: logger, now: time.Now}
}

// RecordFlow books a signed flow for (wh, item, ym): positive quantities
// increase in, negative ones increase out by their absolute value.
func (a *Aggregator) RecordFlow(ctx context.Context, wh ledger.WarehouseID, item ledger.ItemID, ym ledger.YearMonth, qty, amount decimal.Decimal) error {
	return a.recordFlow(ctx, wh, item, ym, flowSide(qty), qty, amount)
}

// recordFlow applies qty/amount on side. On the in side the signed values
// are added; on the out side they are subtracted, so a negative outbound
// grows out and a positive reversal of it shrinks out again.
func (a *Aggregator) recordFlow(ctx context.Context, wh ledger.WarehouseID, item ledger.ItemID, ym ledger.YearMonth, side Side, qty, amount decimal.Decimal) error {
	wi, err := a.store.GetWarehouseItem(ctx, wh, item)
	if err != nil {
		return err
	}
	if wi == nil {
		a.logger.WithFields(logrus.Fields{
			"warehouse_id": wh,
			"item_id":      item,
			"period":       ym.String(),
		}).Warn("flow for unregistered warehouse item skipped")
		return nil
	}

	c, err := a.load(ctx, wh, item, ym)
	if err != nil {
		return err
	}
	if c.IsClosed {
		return &ledger.PeriodLockedError{WarehouseID: wh, Period: ym}
	}

	switch side {
	case SideIn:
		c.InQuantity = c.InQuantity.Add(qty)
		c.InAmount = c.InAmount.Add(amount)
	case SideOut:
		c.OutQuantity = c.OutQuantity.Sub(qty)
		c.OutAmount = c.OutAmount.Sub(amount)
	}
	c.Recompute()
	return a.store.SaveClosing(ctx, *c)
}

// load returns the existing row or a new one opening with the previous
// period's closing position.
func (a *Aggregator) load(ctx context.Context, wh ledger.WarehouseID, item ledger.ItemID, ym ledger.YearMonth) (*ledger.MonthlyClosing, error) {
	code := ledger.ClosingCode(wh, item, ym)
	c, err := a.store.GetClosing(ctx, code)
	if err != nil || c != nil {
		return c, err
	}

	c = &ledger.MonthlyClosing{Code: code, WarehouseID: wh, ItemID: item, Period: ym}
	prev, err := a.store.LatestClosingBefore(ctx, wh, item, ym)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		c.OpeningQuantity, c.OpeningAmount = prev.ClosingPosition()
	}
	c.Recompute()
	return c, nil
}

// SetActual records a physical count for the closing row and upserts its
// inventory_count record. CurrentQuantity is not touched.
func (a *Aggregator) SetActual(ctx context.Context, code string, qty, unitPrice decimal.Decimal) (*ledger.MonthlyClosing, error) {
	if qty.IsNegative() {
		return nil, ledger.Invalid("actual_quantity", "must not be negative")
	}
	if unitPrice.IsNegative() {
		return nil, ledger.Invalid("actual_unit_price", "must not be negative")
	}
	c, err := a.store.GetClosing(ctx, code)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ledger.NotFound("closing", code)
	}
	if c.IsClosed {
		return nil, &ledger.PeriodLockedError{WarehouseID: c.WarehouseID, Period: c.Period}
	}

	c.ActualQuantity = qty
	c.ActualUnitPrice = unitPrice
	c.ActualAmount = qty.Mul(unitPrice)
	c.Counted = true
	c.Recompute()
	if err := a.store.SaveClosing(ctx, *c); err != nil {
		return nil, err
	}

	err = a.store.UpsertCountEntry(ctx, ledger.StockEntry{
		ID:          "count-" + c.Code,
		WarehouseID: c.WarehouseID,
		ItemID:      c.ItemID,
		Date:        c.Period.End(),
		Type:        ledger.MoveInventoryCount,
		Quantity:    qty,
		UnitPrice:   unitPrice,
		Amount:      c.ActualAmount,
		Note:        fmt.Sprintf("inventory count %s", c.Period),
		Reference:   ledger.Reference{Type: ledger.RefCount, ID: c.Code},
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ToggleClosing locks every row of (wh, ym) when any is open, and unlocks
// them all otherwise. Returns the new state.
func (a *Aggregator) ToggleClosing(ctx context.Context, wh ledger.WarehouseID, ym ledger.YearMonth, actor string) (bool, error) {
	rows, err := a.store.ListClosings(ctx, wh, ym)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, ledger.NotFound("closing", fmt.Sprintf("%s/%s", wh, ym))
	}

	closed := false
	for _, r := range rows {
		if !r.IsClosed {
			closed = true
			break
		}
	}

	var at *time.Time
	by := ""
	if closed {
		t := a.now().UTC().Truncate(time.Second)
		at, by = &t, actor
	}
	if _, err := a.store.SetClosed(ctx, wh, ym, closed, at, by); err != nil {
		return false, err
	}

	a.logger.WithFields(logrus.Fields{
		"warehouse_id": wh,
		"period":       ym.String(),
		"closed":       closed,
		"actor":        actor,
		"rows":         len(rows),
	}).Info("closing toggled")
	return closed, nil
}

func (a *Aggregator) IsLocked(ctx context.Context, wh ledger.WarehouseID, ym ledger.YearMonth) (bool, error) {
	return a.store.IsPeriodClosed(ctx, wh, ym)
}

func (a *Aggregator) Snapshot(ctx context.Context, wh ledger.WarehouseID, ym ledger.YearMonth) ([]ledger.MonthlyClosing, error) {
	return a.store.ListClosings(ctx, wh, ym)
}
