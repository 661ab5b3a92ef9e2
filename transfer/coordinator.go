// Package transfer moves stock between two warehouses as one document.
//
// Each line produces a transfer_out entry on the source warehouse and a
// transfer_in entry of the same magnitude on the destination, inside the
// same transaction as the transfer header. Transfers are create-only.
package transfer

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/distribution-ledger/ledger"
	"github.com/warp/distribution-ledger/lock"
	"github.com/warp/distribution-ledger/stock"
)

type LineInput struct {
	ItemID    ledger.ItemID
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

type TransferInput struct {
	OrgID ledger.OrgID
	Date  time.Time // zero = today
	From  ledger.WarehouseID
	To    ledger.WarehouseID
	Note  string
	Lines []LineInput
}

type Coordinator struct {
	Store  ledger.TxStore
	Locker lock.Locker
	Logger logrus.FieldLogger
	Now    func() time.Time
}

func NewCoordinator(store ledger.TxStore, locker lock.Locker, logger logrus.FieldLogger) *Coordinator {
	if locker == nil {
		locker = lock.Noop{}
	}
	return &Coordinator{Store: store, Locker: locker, Logger: logger, Now: time.Now}
}

// Transfer validates the whole document before writing anything: both
// periods open, every line covered by source stock.
func (c *Coordinator) Transfer(ctx context.Context, in TransferInput) (*ledger.WarehouseTransfer, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	date := in.Date
	if date.IsZero() {
		date = c.Now()
	}
	date = ledger.DateOf(date)
	ym := ledger.YearMonthOf(date)

	keys := []string{"transfer-seq:" + ledger.TransferCodePrefix(date)}
	for _, l := range in.Lines {
		keys = append(keys, lock.StockKey(in.From, l.ItemID), lock.StockKey(in.To, l.ItemID))
	}
	release, err := c.Locker.Acquire(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer release()

	var t *ledger.WarehouseTransfer
	err = c.Store.WithTx(ctx, func(tx ledger.Store) error {
		stk := stock.NewLedger(tx, c.Logger).WithClock(c.Now)
		agg := stk.Aggregator()

		for _, wh := range []ledger.WarehouseID{in.From, in.To} {
			locked, err := agg.IsLocked(ctx, wh, ym)
			if err != nil {
				return err
			}
			if locked {
				return &ledger.PeriodLockedError{WarehouseID: wh, Period: ym}
			}
		}

		demand := make(map[ledger.ItemID]decimal.Decimal)
		for _, l := range in.Lines {
			demand[l.ItemID] = demand[l.ItemID].Add(l.Quantity)
			if err := stk.Require(ctx, in.From, l.ItemID, demand[l.ItemID]); err != nil {
				return err
			}
		}

		prefix := ledger.TransferCodePrefix(date)
		latest, err := tx.LatestTransferCode(ctx, prefix)
		if err != nil {
			return err
		}
		code, err := ledger.NextNumber(prefix, latest)
		if err != nil {
			return err
		}

		t = &ledger.WarehouseTransfer{
			Code:          code,
			OrgID:         in.OrgID,
			Date:          date,
			FromWarehouse: in.From,
			ToWarehouse:   in.To,
			Note:          in.Note,
		}
		for i, l := range in.Lines {
			t.Items = append(t.Items, ledger.WarehouseTransferItem{
				TransferCode: code,
				Line:         i + 1,
				ItemID:       l.ItemID,
				Quantity:     l.Quantity,
				UnitPrice:    l.UnitPrice,
				Amount:       l.Quantity.Mul(l.UnitPrice),
			})
		}
		if err := tx.CreateTransfer(ctx, *t); err != nil {
			return err
		}

		for _, it := range t.Items {
			ref := ledger.Reference{Type: ledger.RefTransfer, ID: code, Line: int64(it.Line)}
			moves := []stock.Movement{
				{Warehouse: in.From, Quantity: it.Quantity.Neg(), Type: ledger.MoveTransferOut},
				{Warehouse: in.To, Quantity: it.Quantity, Type: ledger.MoveTransferIn},
			}
			for _, m := range moves {
				m.OrgID = in.OrgID
				m.Item = it.ItemID
				m.Date = date
				m.UnitPrice = it.UnitPrice
				m.Note = "transfer " + code
				m.Reference = ref
				if _, err := stk.ApplyMovement(ctx, m); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.Logger.WithFields(logrus.Fields{
		"code":  t.Code,
		"from":  t.FromWarehouse,
		"to":    t.ToWarehouse,
		"lines": len(t.Items),
	}).Info("warehouse transfer created")
	return t, nil
}

func validate(in TransferInput) error {
	if in.From == "" || in.To == "" {
		return ledger.Invalid("warehouse", "from and to are required")
	}
	if in.From == in.To {
		return ledger.Invalid("to_warehouse", "must differ from the source warehouse")
	}
	if len(in.Lines) == 0 {
		return ledger.Invalid("lines", "at least one line is required")
	}
	for i, l := range in.Lines {
		if l.ItemID == "" {
			return ledger.Invalid("lines", "line %d: item_id required", i+1)
		}
		if !l.Quantity.IsPositive() {
			return ledger.Invalid("lines", "line %d: quantity must be positive", i+1)
		}
		if l.UnitPrice.IsNegative() {
			return ledger.Invalid("lines", "line %d: unit_price must not be negative", i+1)
		}
	}
	return nil
}

func (c *Coordinator) Get(ctx context.Context, code string) (*ledger.WarehouseTransfer, error) {
	t, err := c.Store.GetTransfer(ctx, code)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ledger.NotFound("transfer", code)
	}
	return t, nil
}

// List returns transfers dated within [from, to]; zero bounds are open.
func (c *Coordinator) List(ctx context.Context, from, to time.Time) ([]ledger.WarehouseTransfer, error) {
	return c.Store.ListTransfers(ctx, from, to)
}
