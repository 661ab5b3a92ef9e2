package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/distribution-ledger/balance"
	"github.com/warp/distribution-ledger/ledger"
	"github.com/warp/distribution-ledger/lock"
)

// OrderInput is the editable order header.
type OrderInput struct {
	OrgID         ledger.OrgID
	CustomerID    ledger.CustomerID
	RequestedDate time.Time
	Note          string
}

// Detail is an order with its lines.
type Detail struct {
	ledger.Order
	Items []ledger.OrderItem
}

func (s *Service) CreateOrder(ctx context.Context, in OrderInput) (*ledger.Order, error) {
	return s.createOrUpdateOrder(ctx, "", in)
}

// UpdateOrder changes header fields of a requested order. Lines and totals
// are left alone.
func (s *Service) UpdateOrder(ctx context.Context, no ledger.OrderNo, in OrderInput) (*ledger.Order, error) {
	if no == "" {
		return nil, ledger.Invalid("order_no", "required")
	}
	return s.createOrUpdateOrder(ctx, no, in)
}

// createOrUpdateOrder creates a new order when no is empty.
func (s *Service) createOrUpdateOrder(ctx context.Context, no ledger.OrderNo, in OrderInput) (o *ledger.Order, err error) {
	name := "UpdateOrder"
	if no == "" {
		name = "CreateOrder"
	}
	ctx, end := s.span(ctx, name, no)
	defer func() { end(err) }()

	if in.CustomerID == "" {
		return nil, ledger.Invalid("customer_id", "required")
	}
	if in.RequestedDate.IsZero() {
		return nil, ledger.Invalid("requested_date", "required")
	}
	now := s.Now()
	if err := s.Gate.Check(ctx, in.OrgID, in.RequestedDate, now); err != nil {
		return nil, err
	}

	lockKeys := []string{lock.CustomerKey(in.CustomerID)}
	if no != "" {
		lockKeys = append(lockKeys, lock.OrderKey(no))
	} else {
		lockKeys = append(lockKeys, "order-seq:"+ledger.OrderNoPrefix(now))
	}

	created := no == ""
	err = s.inTx(ctx, lockKeys, func(tc *txContext) error {
		c, err := tc.store.GetCustomer(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		if c == nil {
			return ledger.NotFound("customer", in.CustomerID)
		}

		if created {
			o, err = s.newOrder(ctx, tc.store, c, in, now)
			return err
		}

		o, _, err = load(ctx, tc.store, no, ledger.ActionEditHeader)
		if err != nil {
			return err
		}
		if o.CustomerID != in.CustomerID && !o.TotalAmt.IsZero() && o.DepositType == ledger.DepositPrepaid {
			return ledger.Invalid("customer_id", "cannot move a charged prepaid order to another customer")
		}
		o.OrgID = in.OrgID
		o.CustomerID = in.CustomerID
		o.RequestedDate = ledger.DateOf(in.RequestedDate)
		o.Note = in.Note
		if o.TotalAmt.IsZero() {
			o.DepositType = c.DepositType
		}
		return tc.store.UpdateOrder(ctx, *o)
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.notifyCreated(ctx, *o)
	}
	return o, nil
}

func (s *Service) newOrder(ctx context.Context, store ledger.Store, c *ledger.Customer, in OrderInput, now time.Time) (*ledger.Order, error) {
	prefix := ledger.OrderNoPrefix(now)
	latest, err := store.LatestOrderNo(ctx, prefix)
	if err != nil {
		return nil, err
	}
	next, err := ledger.NextNumber(prefix, string(latest))
	if err != nil {
		return nil, err
	}
	o := &ledger.Order{
		OrderNo:        ledger.OrderNo(next),
		OrgID:          in.OrgID,
		CustomerID:     c.ID,
		RequestedDate:  ledger.DateOf(in.RequestedDate),
		DeliveryStatus: ledger.DeliveryRequested,
		PaymentStatus:  ledger.PaymentUnpaid,
		DepositType:    c.DepositType,
		Note:           in.Note,
	}
	if err := store.CreateOrder(ctx, *o); err != nil {
		return nil, err
	}
	return o, nil
}

// DeleteOrder removes a requested order and its lines. A prepaid order's
// net charge is refunded with one deposit.
func (s *Service) DeleteOrder(ctx context.Context, no ledger.OrderNo) (err error) {
	ctx, end := s.span(ctx, "DeleteOrder", no)
	defer func() { end(err) }()

	head, err := s.peek(ctx, no)
	if err != nil {
		return err
	}

	return s.inTx(ctx, keys(head), func(tc *txContext) error {
		o, _, err := load(ctx, tc.store, no, ledger.ActionDelete)
		if err != nil {
			return err
		}
		if o.DepositType == ledger.DepositPrepaid {
			if err := refund(ctx, tc.balance, o); err != nil {
				return err
			}
		}
		if err := tc.store.DeleteOrderItems(ctx, no); err != nil {
			return err
		}
		return tc.store.DeleteOrder(ctx, no)
	})
}

func refund(ctx context.Context, bl *balance.Ledger, o *ledger.Order) error {
	net, err := bl.NetCharge(ctx, ledger.RefOrder, string(o.OrderNo))
	if err != nil {
		return err
	}
	if !net.IsPositive() {
		return nil
	}
	_, err = bl.Post(ctx, balance.PostInput{
		Customer:  o.CustomerID,
		Type:      ledger.BalanceDeposit,
		Amount:    net,
		Reference: orderRef(o.OrderNo),
		Note:      "order deleted",
	})
	return err
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *Service) Get(ctx context.Context, no ledger.OrderNo) (*Detail, error) {
	o, err := s.peek(ctx, no)
	if err != nil {
		return nil, err
	}
	items, err := s.Store.ListOrderItems(ctx, no)
	if err != nil {
		return nil, err
	}
	return &Detail{Order: *o, Items: items}, nil
}

func (s *Service) List(ctx context.Context, f ledger.OrderFilter) ([]ledger.Order, error) {
	return s.Store.ListOrders(ctx, f)
}

// Charged is the amount currently charged to the customer for the order.
func (s *Service) Charged(ctx context.Context, no ledger.OrderNo) (decimal.Decimal, error) {
	return balance.NewLedger(s.Store, s.Logger).NetCharge(ctx, ledger.RefOrder, string(no))
}

// peek reads an order outside any transaction, to compute lock keys.
func (s *Service) peek(ctx context.Context, no ledger.OrderNo) (*ledger.Order, error) {
	o, err := s.Store.GetOrder(ctx, no)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ledger.NotFound("order", no)
	}
	return o, nil
}
