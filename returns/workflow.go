// Package returns registers customer returns against delivered order lines.
//
// A return draws down the line's returnable counter while it is
// unapproved; editing or deleting it gives the difference back. Approval
// freezes the document. Stock and balance effects of a return belong to
// the billing surface and are not written here.
package returns

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/distribution-ledger/ledger"
	"github.com/warp/distribution-ledger/lock"
)

type RegisterInput struct {
	OrderItemID int64
	Quantity    decimal.Decimal
	Reason      string
}

type Workflow struct {
	Store   ledger.TxStore
	Locker  lock.Locker
	VATRate decimal.Decimal
	Logger  logrus.FieldLogger
	Now     func() time.Time
}

func NewWorkflow(store ledger.TxStore, locker lock.Locker, vatRate decimal.Decimal, logger logrus.FieldLogger) *Workflow {
	if locker == nil {
		locker = lock.Noop{}
	}
	return &Workflow{Store: store, Locker: locker, VATRate: vatRate, Logger: logger, Now: time.Now}
}

// Register creates an unapproved return for a line of a completed order.
func (w *Workflow) Register(ctx context.Context, in RegisterInput) (*ledger.Return, error) {
	if !in.Quantity.IsPositive() {
		return nil, ledger.Invalid("quantity", "must be positive")
	}
	item, err := w.item(ctx, w.Store, in.OrderItemID)
	if err != nil {
		return nil, err
	}

	var r *ledger.Return
	err = w.inTx(ctx, item.OrderNo, func(tx ledger.Store) error {
		item, err := w.item(ctx, tx, in.OrderItemID)
		if err != nil {
			return err
		}
		o, err := tx.GetOrder(ctx, item.OrderNo)
		if err != nil {
			return err
		}
		if o == nil {
			return ledger.NotFound("order", item.OrderNo)
		}
		if o.DeliveryStatus != ledger.DeliveryCompleted {
			return &ledger.TransitionError{Subject: "order", From: string(o.DeliveryStatus), Action: "register_return"}
		}
		if in.Quantity.GreaterThan(item.ReturnableQty) {
			return ledger.Invalid("quantity", "%s exceeds returnable quantity %s", in.Quantity, item.ReturnableQty)
		}

		r = &ledger.Return{
			ID:          uuid.NewString(),
			OrderNo:     item.OrderNo,
			OrderItemID: item.ID,
			ItemID:      item.ItemID,
			CustomerID:  o.CustomerID,
			UnitPrice:   item.UnitPrice,
			Status:      ledger.ReturnUnapproved,
			Reason:      in.Reason,
		}
		w.price(r, item, in.Quantity)
		if err := tx.SaveReturn(ctx, *r); err != nil {
			return err
		}
		return tx.SetReturnableQty(ctx, item.ID, item.ReturnableQty.Sub(in.Quantity))
	})
	if err != nil {
		return nil, err
	}

	w.Logger.WithFields(logrus.Fields{
		"return_id": r.ID,
		"order_no":  r.OrderNo,
		"item_id":   r.ItemID,
		"quantity":  r.Quantity.String(),
	}).Info("return registered")
	return r, nil
}

// Update changes the quantity and reason of an unapproved return and moves
// the returnable counter by the difference.
func (w *Workflow) Update(ctx context.Context, id string, qty decimal.Decimal, reason string) (*ledger.Return, error) {
	if !qty.IsPositive() {
		return nil, ledger.Invalid("quantity", "must be positive")
	}
	var r *ledger.Return
	err := w.withReturn(ctx, id, ledger.ReturnActionUpdate, func(tx ledger.Store, cur *ledger.Return, item *ledger.OrderItem) error {
		remaining := item.ReturnableQty.Add(cur.Quantity).Sub(qty)
		if remaining.IsNegative() {
			return ledger.Invalid("quantity", "%s exceeds returnable quantity %s", qty, item.ReturnableQty.Add(cur.Quantity))
		}
		w.price(cur, item, qty)
		cur.Reason = reason
		if err := tx.SaveReturn(ctx, *cur); err != nil {
			return err
		}
		r = cur
		return tx.SetReturnableQty(ctx, item.ID, remaining)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes an unapproved return and restores the counter.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	return w.withReturn(ctx, id, ledger.ReturnActionDelete, func(tx ledger.Store, cur *ledger.Return, item *ledger.OrderItem) error {
		if err := tx.DeleteReturn(ctx, id); err != nil {
			return err
		}
		return tx.SetReturnableQty(ctx, item.ID, item.ReturnableQty.Add(cur.Quantity))
	})
}

// Approve freezes a return.
func (w *Workflow) Approve(ctx context.Context, id, actor string) (*ledger.Return, error) {
	var r *ledger.Return
	err := w.withReturn(ctx, id, ledger.ReturnActionApprove, func(tx ledger.Store, cur *ledger.Return, _ *ledger.OrderItem) error {
		at := w.Now().UTC().Truncate(time.Second)
		cur.Status = ledger.ReturnApproved
		cur.ApprovedAt = &at
		cur.ApprovedBy = actor
		r = cur
		return tx.SaveReturn(ctx, *cur)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (w *Workflow) Get(ctx context.Context, id string) (*ledger.Return, error) {
	r, err := w.Store.GetReturn(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ledger.NotFound("return", id)
	}
	return r, nil
}

func (w *Workflow) List(ctx context.Context, f ledger.ReturnFilter) ([]ledger.Return, error) {
	return w.Store.ListReturns(ctx, f)
}

// =============================================================================
// INTERNALS
// =============================================================================

func (w *Workflow) inTx(ctx context.Context, no ledger.OrderNo, fn func(tx ledger.Store) error) error {
	release, err := w.Locker.Acquire(ctx, lock.OrderKey(no))
	if err != nil {
		return err
	}
	defer release()
	return w.Store.WithTx(ctx, fn)
}

// withReturn loads a return and its order line under the order's lock and
// checks that action is allowed.
func (w *Workflow) withReturn(ctx context.Context, id string, action ledger.ReturnAction,
	fn func(tx ledger.Store, r *ledger.Return, item *ledger.OrderItem) error) error {

	head, err := w.Get(ctx, id)
	if err != nil {
		return err
	}
	return w.inTx(ctx, head.OrderNo, func(tx ledger.Store) error {
		r, err := tx.GetReturn(ctx, id)
		if err != nil {
			return err
		}
		if r == nil {
			return ledger.NotFound("return", id)
		}
		if _, err := r.Status.Next(action); err != nil {
			return err
		}
		item, err := w.item(ctx, tx, r.OrderItemID)
		if err != nil {
			return err
		}
		return fn(tx, r, item)
	})
}

func (w *Workflow) item(ctx context.Context, store ledger.Store, id int64) (*ledger.OrderItem, error) {
	item, err := store.GetOrderItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ledger.NotFound("order item", id)
	}
	return item, nil
}

// price sets quantity and amounts from the order line's price and tax mode.
func (w *Workflow) price(r *ledger.Return, item *ledger.OrderItem, qty decimal.Decimal) {
	r.Quantity = qty
	r.SupplyAmt = item.UnitPrice.Mul(qty)
	r.VatAmt = decimal.Zero
	if item.Taxable {
		r.VatAmt = r.SupplyAmt.Mul(w.VATRate).Round(2)
	}
	r.TotalAmt = r.SupplyAmt.Add(r.VatAmt)
}
