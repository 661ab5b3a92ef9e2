package order

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/distribution-ledger/balance"
	"github.com/warp/distribution-ledger/ledger"
)

// ItemInput is one order line as submitted.
type ItemInput struct {
	ItemID      ledger.ItemID
	WarehouseID ledger.WarehouseID
	UnitPrice   decimal.Decimal
	Quantity    decimal.Decimal
	Taxable     bool
}

// ReplaceItems swaps every line of a requested order for items, recomputes
// the header totals and, for prepaid orders, posts the charge difference.
func (s *Service) ReplaceItems(ctx context.Context, no ledger.OrderNo, items []ItemInput) (detail *Detail, err error) {
	ctx, end := s.span(ctx, "ReplaceItems", no)
	defer func() { end(err) }()

	lines, err := s.buildLines(no, items)
	if err != nil {
		return nil, err
	}
	head, err := s.peek(ctx, no)
	if err != nil {
		return nil, err
	}
	old, err := s.Store.ListOrderItems(ctx, no)
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, keys(head, old, lines), func(tc *txContext) error {
		o, _, err := load(ctx, tc.store, no, ledger.ActionReplaceItems)
		if err != nil {
			return err
		}

		// Stock left over from a cancelled or partial dispatch goes back first.
		if _, err := tc.stock.ReverseReference(ctx, orderRef(no), "order items replaced"); err != nil {
			return err
		}
		if err := requireStock(ctx, tc, lines); err != nil {
			return err
		}

		if err := tc.store.DeleteOrderItems(ctx, no); err != nil {
			return err
		}
		saved := make([]ledger.OrderItem, 0, len(lines))
		for _, it := range lines {
			id, err := tc.store.InsertOrderItem(ctx, it)
			if err != nil {
				return err
			}
			it.ID = id
			saved = append(saved, it)
		}
		applyTotals(o, saved)

		if o.DepositType == ledger.DepositPrepaid {
			if err := s.reconcile(ctx, tc.balance, o); err != nil {
				return err
			}
		}
		if err := tc.store.UpdateOrder(ctx, *o); err != nil {
			return err
		}
		detail = &Detail{Order: *o, Items: saved}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// reconcile posts newTotal − alreadyCharged as a single entry.
func (s *Service) reconcile(ctx context.Context, bl *balance.Ledger, o *ledger.Order) error {
	prior, err := bl.NetCharge(ctx, ledger.RefOrder, string(o.OrderNo))
	if err != nil {
		return err
	}
	delta := o.TotalAmt.Sub(prior)

	in := balance.PostInput{
		Customer:  o.CustomerID,
		Reference: orderRef(o.OrderNo),
	}
	switch {
	case delta.IsPositive():
		if err := bl.Require(ctx, o.CustomerID, delta); err != nil {
			return err
		}
		in.Type, in.Amount, in.Note = ledger.BalanceWithdrawal, delta, "order charge"
	case delta.IsNegative():
		in.Type, in.Amount, in.Note = ledger.BalanceDeposit, delta.Neg(), "order charge reduced"
	}
	if !delta.IsZero() {
		if _, err := bl.Post(ctx, in); err != nil {
			return err
		}
		s.Logger.WithFields(logrus.Fields{
			"order_no": o.OrderNo,
			"prior":    prior.String(),
			"delta":    delta.String(),
		}).Info("prepaid order charge reconciled")
	}
	o.PaymentStatus = ledger.PaymentCompleted
	return nil
}

func (s *Service) buildLines(no ledger.OrderNo, items []ItemInput) ([]ledger.OrderItem, error) {
	if len(items) == 0 {
		return nil, ledger.Invalid("items", "at least one line is required")
	}
	lines := make([]ledger.OrderItem, 0, len(items))
	for i, in := range items {
		switch {
		case in.ItemID == "":
			return nil, ledger.Invalid("items", "line %d: item_id required", i+1)
		case in.WarehouseID == "":
			return nil, ledger.Invalid("items", "line %d: warehouse_id required", i+1)
		case !in.Quantity.IsPositive():
			return nil, ledger.Invalid("items", "line %d: quantity must be positive", i+1)
		case in.UnitPrice.IsNegative():
			return nil, ledger.Invalid("items", "line %d: unit_price must not be negative", i+1)
		}
		supply := in.UnitPrice.Mul(in.Quantity)
		vat := decimal.Zero
		if in.Taxable {
			vat = supply.Mul(s.VATRate).Round(2)
		}
		lines = append(lines, ledger.OrderItem{
			OrderNo:       no,
			Line:          i + 1,
			ItemID:        in.ItemID,
			WarehouseID:   in.WarehouseID,
			UnitPrice:     in.UnitPrice,
			Quantity:      in.Quantity,
			Taxable:       in.Taxable,
			SupplyAmt:     supply,
			VatAmt:        vat,
			TotalAmt:      supply.Add(vat),
			ReturnableQty: in.Quantity,
		})
	}
	return lines, nil
}

func applyTotals(o *ledger.Order, lines []ledger.OrderItem) {
	o.TaxableAmt, o.TaxFreeAmt = decimal.Zero, decimal.Zero
	o.SupplyAmt, o.VatAmt, o.TotalAmt, o.TotalQty = decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, it := range lines {
		if it.Taxable {
			o.TaxableAmt = o.TaxableAmt.Add(it.SupplyAmt)
		} else {
			o.TaxFreeAmt = o.TaxFreeAmt.Add(it.SupplyAmt)
		}
		o.SupplyAmt = o.SupplyAmt.Add(it.SupplyAmt)
		o.VatAmt = o.VatAmt.Add(it.VatAmt)
		o.TotalQty = o.TotalQty.Add(it.Quantity)
	}
	o.TotalAmt = o.SupplyAmt.Add(o.VatAmt)
}

type stockKey struct {
	wh   ledger.WarehouseID
	item ledger.ItemID
}

// requireStock checks the summed demand of lines per (warehouse, item).
func requireStock(ctx context.Context, tc *txContext, lines []ledger.OrderItem) error {
	demand := make(map[stockKey]decimal.Decimal)
	var order []stockKey
	for _, it := range lines {
		k := stockKey{it.WarehouseID, it.ItemID}
		if _, ok := demand[k]; !ok {
			order = append(order, k)
		}
		demand[k] = demand[k].Add(it.Quantity)
	}
	for _, k := range order {
		if err := tc.stock.Require(ctx, k.wh, k.item, demand[k]); err != nil {
			return err
		}
	}
	return nil
}
