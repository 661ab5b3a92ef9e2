/*
Package stock keeps the stock movement log, the current-quantity projection
and the monthly closing snapshot in step.

PURPOSE:
  Ledger appends signed stock entries and moves CurrentQuantity in the
  same store transaction. Every movement is forwarded to the Aggregator,
  which maintains the per-(warehouse, item, month) closing row.
  Neither type knows anything about orders or transfers: callers hand
  them a Movement with a Reference back to the source document.

INVARIANTS:
  - CurrentQuantity = Σ quantity of every movement entry for the item
    (inventory_count records excluded)
  - CurrentQuantity never goes negative
  - No entry is written into a month whose closing is locked
  - An entry is reversed at most once; reversals are never reversed

TRANSACTIONS:
  Ledger and Aggregator run on whatever ledger.Store they are built with.
  Build them on the store handed to WithTx so the entry, the projection and
  the closing row commit together:

    store.WithTx(ctx, func(tx ledger.Store) error {
        stk := stock.NewLedger(tx, logger)
        _, err := stk.ApplyMovement(ctx, mv)
        return err
    })

  Service does exactly that for the manual stock flows.

SEE ALSO:
  - closing.go: Aggregator
  - service.go: transactional entry points
*/
package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/distribution-ledger/ledger"
)

// Movement is a request to move stock. Quantity is signed: negative leaves
// the warehouse.
type Movement struct {
	OrgID     ledger.OrgID
	Warehouse ledger.WarehouseID
	Item      ledger.ItemID
	Date      time.Time
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Type      ledger.MovementType
	Note      string
	Reference ledger.Reference
}

// Ledger is the stock ledger bound to one store.
type Ledger struct {
	store  ledger.Store
	agg    *Aggregator
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewLedger(store ledger.Store, logger logrus.FieldLogger) *Ledger {
	return &Ledger{
		store:  store,
		agg:    NewAggregator(store, logger),
		logger: logger,
		now:    time.Now,
	}
}

// Aggregator returns the closing aggregator sharing this ledger's store.
func (l *Ledger) Aggregator() *Aggregator { return l.agg }

// WithClock replaces the clock used for undated movements, reversal dates
// and closing stamps.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	if now != nil {
		l.now = now
		l.agg.now = now
	}
	return l
}

// =============================================================================
// MOVEMENTS
// =============================================================================

// ApplyMovement writes one entry, updates the projection and the closing.
func (l *Ledger) ApplyMovement(ctx context.Context, m Movement) (*ledger.StockEntry, error) {
	if !m.Type.Valid() || !m.Type.Moves() || m.Type == ledger.MoveReversal {
		return nil, ledger.Invalid("type", "%q is not a movement type", m.Type)
	}
	if m.Quantity.IsZero() {
		return nil, ledger.Invalid("quantity", "must not be zero")
	}
	if m.UnitPrice.IsNegative() {
		return nil, ledger.Invalid("unit_price", "must not be negative")
	}
	if m.Date.IsZero() {
		m.Date = l.now()
	}

	entry := ledger.StockEntry{
		ID:          uuid.NewString(),
		OrgID:       m.OrgID,
		WarehouseID: m.Warehouse,
		ItemID:      m.Item,
		Date:        ledger.DateOf(m.Date),
		Type:        m.Type,
		Quantity:    m.Quantity,
		UnitPrice:   m.UnitPrice,
		Amount:      m.Quantity.Mul(m.UnitPrice),
		Note:        m.Note,
		Reference:   m.Reference,
	}
	if err := l.write(ctx, entry, flowSide(m.Quantity)); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ReverseMovement undoes entry with an opposite-signed reversal dated today,
// or on the original's date when that is later. Within the original's month
// the reversal restores the side it was booked on; in a later month it is a
// plain flow of that month, so earlier (possibly locked) periods stay as
// they were.
func (l *Ledger) ReverseMovement(ctx context.Context, entry ledger.StockEntry, note string) (*ledger.StockEntry, error) {
	if entry.IsReversal() || entry.Type == ledger.MoveReversal {
		return nil, ledger.Invalid("entry_id", "entry %s is itself a reversal", entry.ID)
	}
	if !entry.Type.Moves() {
		return nil, ledger.Invalid("entry_id", "entry %s is a count record", entry.ID)
	}
	reversed, err := l.store.IsStockEntryReversed(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	if reversed {
		return nil, ledger.Invalid("entry_id", "entry %s already reversed", entry.ID)
	}

	if note == "" {
		note = fmt.Sprintf("reversal of %s", entry.ID)
	}
	date := ledger.DateOf(l.now())
	if date.Before(entry.Date) {
		date = entry.Date
	}
	rev := ledger.StockEntry{
		ID:          uuid.NewString(),
		OrgID:       entry.OrgID,
		WarehouseID: entry.WarehouseID,
		ItemID:      entry.ItemID,
		Date:        date,
		Type:        ledger.MoveReversal,
		Quantity:    entry.Quantity.Neg(),
		UnitPrice:   entry.UnitPrice,
		Amount:      entry.Amount.Neg(),
		Note:        note,
		Reference:   entry.Reference,
		ReversesID:  entry.ID,
	}
	side := flowSide(rev.Quantity)
	if ledger.YearMonthOf(date) == ledger.YearMonthOf(entry.Date) {
		side = flowSide(entry.Quantity)
	}
	if err := l.write(ctx, rev, side); err != nil {
		return nil, err
	}
	return &rev, nil
}

// ReverseReference reverses every live movement of a source document. When
// ref.Line is set only that line's entries are reversed.
func (l *Ledger) ReverseReference(ctx context.Context, ref ledger.Reference, note string) ([]ledger.StockEntry, error) {
	entries, err := l.store.ListStockEntriesByReference(ctx, ref.Type, ref.ID)
	if err != nil {
		return nil, err
	}

	reversed := make(map[string]bool)
	for _, e := range entries {
		if e.IsReversal() {
			reversed[e.ReversesID] = true
		}
	}

	var out []ledger.StockEntry
	for _, e := range entries {
		if e.IsReversal() || reversed[e.ID] || !e.Type.Moves() {
			continue
		}
		if ref.Line != 0 && e.Reference.Line != ref.Line {
			continue
		}
		rev, err := l.ReverseMovement(ctx, e, note)
		if err != nil {
			return nil, err
		}
		out = append(out, *rev)
	}
	return out, nil
}

// write is the shared path of every quantity change.
func (l *Ledger) write(ctx context.Context, e ledger.StockEntry, side Side) error {
	ym := ledger.YearMonthOf(e.Date)
	locked, err := l.agg.IsLocked(ctx, e.WarehouseID, ym)
	if err != nil {
		return err
	}
	if locked {
		return &ledger.PeriodLockedError{WarehouseID: e.WarehouseID, Period: ym}
	}

	wi, err := l.store.GetWarehouseItem(ctx, e.WarehouseID, e.ItemID)
	if err != nil {
		return err
	}
	if wi == nil {
		if e.Quantity.IsNegative() {
			return &ledger.InsufficientStockError{
				WarehouseID: e.WarehouseID, ItemID: e.ItemID,
				Available: decimal.Zero, Requested: e.Quantity.Neg(),
			}
		}
		wi = &ledger.WarehouseItem{WarehouseID: e.WarehouseID, ItemID: e.ItemID}
		if err := l.store.CreateWarehouseItem(ctx, *wi); err != nil {
			return err
		}
	}

	next := wi.CurrentQuantity.Add(e.Quantity)
	if next.IsNegative() {
		return &ledger.InsufficientStockError{
			WarehouseID: e.WarehouseID, ItemID: e.ItemID,
			Available: wi.CurrentQuantity, Requested: e.Quantity.Neg(),
		}
	}

	if err := l.store.AppendStockEntry(ctx, e); err != nil {
		return err
	}
	if err := l.store.CompareAndSetQuantity(ctx, e.WarehouseID, e.ItemID, wi.CurrentQuantity, next); err != nil {
		return err
	}

	if next.LessThan(wi.SafeQuantity) && !wi.CurrentQuantity.LessThan(wi.SafeQuantity) {
		l.logger.WithFields(logrus.Fields{
			"warehouse_id": e.WarehouseID,
			"item_id":      e.ItemID,
			"quantity":     next.String(),
			"safe":         wi.SafeQuantity.String(),
		}).Warn("stock below safe quantity")
	}

	return l.agg.recordFlow(ctx, e.WarehouseID, e.ItemID, ym, side, e.Quantity, e.Amount)
}

// =============================================================================
// REGISTRATION / ADJUSTMENT
// =============================================================================

// OpenInput registers an item in a warehouse with its opening count.
type OpenInput struct {
	OrgID        ledger.OrgID
	Warehouse    ledger.WarehouseID
	Item         ledger.ItemID
	Date         time.Time
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	SafeQuantity decimal.Decimal
}

// OpenStock creates the WarehouseItem at zero and books the opening
// quantity as an opening movement. Returns nil entry for a zero opening.
func (l *Ledger) OpenStock(ctx context.Context, in OpenInput) (*ledger.StockEntry, error) {
	if in.Quantity.IsNegative() {
		return nil, ledger.Invalid("quantity", "opening quantity must not be negative")
	}
	if in.SafeQuantity.IsNegative() {
		return nil, ledger.Invalid("safe_quantity", "must not be negative")
	}
	existing, err := l.store.GetWarehouseItem(ctx, in.Warehouse, in.Item)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ledger.Invalid("item_id", "item %s already registered in warehouse %s", in.Item, in.Warehouse)
	}
	if err := l.store.CreateWarehouseItem(ctx, ledger.WarehouseItem{
		WarehouseID:  in.Warehouse,
		ItemID:       in.Item,
		SafeQuantity: in.SafeQuantity,
	}); err != nil {
		return nil, err
	}
	if in.Quantity.IsZero() {
		return nil, nil
	}
	return l.ApplyMovement(ctx, Movement{
		OrgID:     in.OrgID,
		Warehouse: in.Warehouse,
		Item:      in.Item,
		Date:      in.Date,
		Quantity:  in.Quantity,
		UnitPrice: in.UnitPrice,
		Type:      ledger.MoveOpening,
		Note:      "opening stock",
		Reference: ledger.Reference{Type: ledger.RefOpening, ID: fmt.Sprintf("%s-%s", in.Warehouse, in.Item)},
	})
}

// AdjustInput is a manual stock correction.
type AdjustInput struct {
	OrgID     ledger.OrgID
	Warehouse ledger.WarehouseID
	Item      ledger.ItemID
	Date      time.Time
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Note      string
}

func (l *Ledger) Adjust(ctx context.Context, in AdjustInput) (*ledger.StockEntry, error) {
	return l.ApplyMovement(ctx, Movement{
		OrgID:     in.OrgID,
		Warehouse: in.Warehouse,
		Item:      in.Item,
		Date:      in.Date,
		Quantity:  in.Quantity,
		UnitPrice: in.UnitPrice,
		Type:      ledger.MoveAdjustment,
		Note:      in.Note,
		Reference: ledger.Reference{Type: ledger.RefAdjustment, ID: uuid.NewString()},
	})
}

// =============================================================================
// QUERIES
// =============================================================================

func (l *Ledger) History(ctx context.Context, f ledger.StockEntryFilter) ([]ledger.StockEntry, error) {
	return l.store.ListStockEntries(ctx, f)
}

// Available returns the current quantity, zero for an unregistered item.
func (l *Ledger) Available(ctx context.Context, wh ledger.WarehouseID, item ledger.ItemID) (decimal.Decimal, error) {
	wi, err := l.store.GetWarehouseItem(ctx, wh, item)
	if err != nil || wi == nil {
		return decimal.Zero, err
	}
	return wi.CurrentQuantity, nil
}

// Require fails with InsufficientStock when less than qty is on hand.
// Nothing is written.
func (l *Ledger) Require(ctx context.Context, wh ledger.WarehouseID, item ledger.ItemID, qty decimal.Decimal) error {
	avail, err := l.Available(ctx, wh, item)
	if err != nil {
		return err
	}
	if avail.LessThan(qty) {
		return &ledger.InsufficientStockError{WarehouseID: wh, ItemID: item, Available: avail, Requested: qty}
	}
	return nil
}

// Verify recomputes the item's quantity from its entries and compares it
// with the projection.
func (l *Ledger) Verify(ctx context.Context, wh ledger.WarehouseID, item ledger.ItemID) error {
	entries, err := l.store.ListStockEntries(ctx, ledger.StockEntryFilter{WarehouseID: wh, ItemID: item})
	if err != nil {
		return err
	}
	sum := decimal.Zero
	for _, e := range entries {
		if e.Type.Moves() {
			sum = sum.Add(e.Quantity)
		}
	}
	current, err := l.Available(ctx, wh, item)
	if err != nil {
		return err
	}
	if !sum.Equal(current) {
		return fmt.Errorf("warehouse item %s/%s drifted: projection %s, entries %s", wh, item, current, sum)
	}
	return nil
}
