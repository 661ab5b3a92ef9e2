package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/distribution-ledger/ledger"
	"github.com/warp/distribution-ledger/stock"
)

// DeliveryInfo is recorded when an order leaves the warehouse.
type DeliveryInfo struct {
	Vehicle     string
	Driver      string
	DeliveryAmt decimal.Decimal
	Date        time.Time // zero = today
}

// StartDelivery ships every line of a requested order. A line that cannot
// be shipped rolls the whole order back.
func (s *Service) StartDelivery(ctx context.Context, no ledger.OrderNo, info DeliveryInfo) (o *ledger.Order, err error) {
	ctx, end := s.span(ctx, "StartDelivery", no)
	defer func() { end(err) }()

	if info.DeliveryAmt.IsNegative() {
		return nil, ledger.Invalid("delivery_amt", "must not be negative")
	}
	return s.transition(ctx, no, ledger.ActionStartDelivery, func(tc *txContext, o *ledger.Order, lines []ledger.OrderItem) error {
		date := info.Date
		if date.IsZero() {
			date = s.Now()
		}
		date = ledger.DateOf(date)
		if err := dispatch(ctx, tc, o, lines, date); err != nil {
			return err
		}
		o.Vehicle = info.Vehicle
		o.Driver = info.Driver
		o.DeliveryAmt = info.DeliveryAmt
		o.DeliveryDate = &date
		return nil
	})
}

// CancelDelivery puts an in-delivery order back to requested and returns
// its stock.
func (s *Service) CancelDelivery(ctx context.Context, no ledger.OrderNo) (o *ledger.Order, err error) {
	ctx, end := s.span(ctx, "CancelDelivery", no)
	defer func() { end(err) }()

	return s.transition(ctx, no, ledger.ActionCancelDelivery, func(tc *txContext, o *ledger.Order, _ []ledger.OrderItem) error {
		if _, err := tc.stock.ReverseReference(ctx, orderRef(no), "delivery cancelled"); err != nil {
			return err
		}
		o.DeliveryDate = nil
		return nil
	})
}

// CompleteDelivery marks an order completed. An order that never started
// delivery is shipped first.
func (s *Service) CompleteDelivery(ctx context.Context, no ledger.OrderNo) (o *ledger.Order, err error) {
	ctx, end := s.span(ctx, "CompleteDelivery", no)
	defer func() { end(err) }()

	return s.transition(ctx, no, ledger.ActionCompleteDelivery, func(tc *txContext, o *ledger.Order, lines []ledger.OrderItem) error {
		if o.DeliveryStatus != ledger.DeliveryRequested {
			return nil
		}
		date := ledger.DateOf(s.Now())
		if err := dispatch(ctx, tc, o, lines, date); err != nil {
			return err
		}
		o.DeliveryDate = &date
		return nil
	})
}

// transition loads the order and its lines under lock, checks action, runs
// fn and saves the order in its new status.
func (s *Service) transition(ctx context.Context, no ledger.OrderNo, action ledger.OrderAction,
	fn func(tc *txContext, o *ledger.Order, lines []ledger.OrderItem) error) (*ledger.Order, error) {

	head, err := s.peek(ctx, no)
	if err != nil {
		return nil, err
	}
	lines, err := s.Store.ListOrderItems(ctx, no)
	if err != nil {
		return nil, err
	}

	var out *ledger.Order
	err = s.inTx(ctx, keys(head, lines), func(tc *txContext) error {
		o, next, err := load(ctx, tc.store, no, action)
		if err != nil {
			return err
		}
		lines, err := tc.store.ListOrderItems(ctx, no)
		if err != nil {
			return err
		}
		if err := fn(tc, o, lines); err != nil {
			return err
		}
		from := o.DeliveryStatus
		o.DeliveryStatus = next
		if err := tc.store.UpdateOrder(ctx, *o); err != nil {
			return err
		}
		s.Logger.WithFields(logrus.Fields{
			"order_no": no,
			"from":     from,
			"to":       next,
		}).Info("order status changed")
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// dispatch writes one order_out movement per line.
func dispatch(ctx context.Context, tc *txContext, o *ledger.Order, lines []ledger.OrderItem, date time.Time) error {
	if len(lines) == 0 {
		return ledger.Invalid("items", "order %s has no lines", o.OrderNo)
	}
	for _, it := range lines {
		_, err := tc.stock.ApplyMovement(ctx, stock.Movement{
			OrgID:     o.OrgID,
			Warehouse: it.WarehouseID,
			Item:      it.ItemID,
			Date:      date,
			Quantity:  it.Quantity.Neg(),
			UnitPrice: it.UnitPrice,
			Type:      ledger.MoveOrderOut,
			Note:      "order " + string(o.OrderNo),
			Reference: ledger.Reference{Type: ledger.RefOrder, ID: string(o.OrderNo), Line: it.ID},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// BATCH
// =============================================================================

// BatchFailure is one order a batch could not process.
type BatchFailure struct {
	OrderNo ledger.OrderNo `json:"order_no"`
	Reason  string         `json:"reason"`
	Code    string         `json:"code"`
}

// BatchResult reports every order of a batch. Successes are not rolled back
// when a sibling fails.
type BatchResult struct {
	Succeeded []ledger.OrderNo `json:"succeeded"`
	Failed    []BatchFailure   `json:"failed"`
}

// StartDeliveries ships each order in its own transaction with the same
// delivery info.
func (s *Service) StartDeliveries(ctx context.Context, nos []ledger.OrderNo, info DeliveryInfo) BatchResult {
	return s.batch(ctx, nos, func(no ledger.OrderNo) error {
		_, err := s.StartDelivery(ctx, no, info)
		return err
	})
}

func (s *Service) CancelDeliveries(ctx context.Context, nos []ledger.OrderNo) BatchResult {
	return s.batch(ctx, nos, func(no ledger.OrderNo) error {
		_, err := s.CancelDelivery(ctx, no)
		return err
	})
}

func (s *Service) CompleteDeliveries(ctx context.Context, nos []ledger.OrderNo) BatchResult {
	return s.batch(ctx, nos, func(no ledger.OrderNo) error {
		_, err := s.CompleteDelivery(ctx, no)
		return err
	})
}

func (s *Service) batch(ctx context.Context, nos []ledger.OrderNo, fn func(ledger.OrderNo) error) BatchResult {
	res := BatchResult{Succeeded: []ledger.OrderNo{}, Failed: []BatchFailure{}}
	for _, no := range nos {
		if err := fn(no); err != nil {
			res.Failed = append(res.Failed, BatchFailure{OrderNo: no, Reason: err.Error(), Code: ledger.Code(err)})
			continue
		}
		res.Succeeded = append(res.Succeeded, no)
	}
	return res
}
