/*
Package order drives an order through its delivery lifecycle and keeps
stock and the customer balance consistent with it.

PURPOSE:
  Service is the only component that knows about orders. It opens one
  store transaction per order operation and drives the stock ledger and
  the balance ledger inside it, so an order's status, its stock entries
  and its balance entries always commit together.

STATE MACHINE:
  requested ──start──▶ in_delivery ──complete──▶ completed
      ▲                    │
      └──────cancel────────┘
  requested ──complete──▶ completed   (deducts stock on the way)

  Header edits, item replacement and deletion are allowed only while
  requested.

STOCK:
  Stock leaves the warehouse at delivery start, one order_out entry per
  line. Cancel reverses them. Item replacement reverses whatever is still
  unreversed for the order and only checks availability for the new lines.

BALANCE (prepaid only):
  The amount already charged for an order is rebuilt from the balance
  ledger on every item replacement. Only the difference to the new total
  is posted, so repeated edits never compound.

SEE ALSO:
  - orders.go: header operations and queries
  - items.go: item replacement and totals
  - delivery.go: start / cancel / complete, batch variants
*/
package order

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/distribution-ledger/balance"
	"github.com/warp/distribution-ledger/config"
	"github.com/warp/distribution-ledger/ledger"
	"github.com/warp/distribution-ledger/lock"
	"github.com/warp/distribution-ledger/stock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultVATRate applies when the service is built without one.
var DefaultVATRate = decimal.RequireFromString("0.1")

// DefaultNotifyTimeout bounds one notifier call.
const DefaultNotifyTimeout = 10 * time.Second

type Service struct {
	Store         ledger.TxStore
	Locker        lock.Locker
	Gate          ledger.DeliveryGate
	Notifier      ledger.Notifier
	NotifyTimeout time.Duration
	VATRate       decimal.Decimal
	Logger        logrus.FieldLogger
	Tracer        trace.Tracer
	Now           func() time.Time

	// shared by copies of the service
	notifying *sync.WaitGroup
}

// NewService returns a service with in-process locks, no delivery gate and
// a logging notifier. Callers replace the exported fields as needed.
func NewService(store ledger.TxStore, logger logrus.FieldLogger) *Service {
	return &Service{
		Store:         store,
		Locker:        lock.Noop{},
		Gate:          ledger.OpenGate,
		Notifier:      ledger.LogNotifier{Logger: logger},
		NotifyTimeout: DefaultNotifyTimeout,
		VATRate:       DefaultVATRate,
		Logger:        logger,
		Tracer:        otel.Tracer("distribution-ledger/order"),
		Now:           time.Now,
		notifying:     &sync.WaitGroup{},
	}
}

// notifyCreated hands o to the notifier in the background. The call gets
// ctx's values but not its cancellation, bounded by NotifyTimeout. A
// failure is logged only.
func (s *Service) notifyCreated(ctx context.Context, o ledger.Order) {
	notifier, timeout := s.Notifier, s.NotifyTimeout
	if timeout <= 0 {
		timeout = DefaultNotifyTimeout
	}
	s.notifying.Add(1)
	go func() {
		defer s.notifying.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := notifier.OrderCreated(nctx, o); err != nil {
			s.Logger.WithFields(logrus.Fields{
				"order_no": o.OrderNo,
				"error":    err.Error(),
			}).Warn("order notification failed")
		}
	}()
}

// WaitNotifications blocks until every pending notifier call has returned.
func (s *Service) WaitNotifications() {
	s.notifying.Wait()
}

// txContext carries the ledgers bound to one transaction.
type txContext struct {
	store   ledger.Store
	stock   *stock.Ledger
	balance *balance.Ledger
}

// inTx takes keys, then runs fn inside one transaction.
func (s *Service) inTx(ctx context.Context, keys []string, fn func(tc *txContext) error) error {
	release, err := s.Locker.Acquire(ctx, keys...)
	if err != nil {
		return err
	}
	defer release()

	return s.Store.WithTx(ctx, func(tx ledger.Store) error {
		return fn(&txContext{
			store:   tx,
			stock:   stock.NewLedger(tx, s.Logger).WithClock(s.Now),
			balance: balance.NewLedger(tx, s.Logger),
		})
	})
}

// span starts a span for an order operation. The returned func records err
// and ends the span.
func (s *Service) span(ctx context.Context, name string, no ledger.OrderNo) (context.Context, func(err error)) {
	ctx, span := s.Tracer.Start(ctx, "order."+name, trace.WithAttributes(
		attribute.String("order.no", string(no)),
	))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, ledger.Code(err))
			if !ledger.IsClientError(err) {
				config.LogError(s.Logger, "order", name, "order operation failed", map[string]any{"order_no": no}, err)
			}
		}
		span.End()
	}
}

// keys returns the lock keys for an order, its customer and every
// (warehouse, item) its lines touch.
func keys(o *ledger.Order, lines ...[]ledger.OrderItem) []string {
	out := []string{lock.OrderKey(o.OrderNo), lock.CustomerKey(o.CustomerID)}
	for _, ls := range lines {
		for _, it := range ls {
			out = append(out, lock.StockKey(it.WarehouseID, it.ItemID))
		}
	}
	return out
}

func orderRef(no ledger.OrderNo) ledger.Reference {
	return ledger.Reference{Type: ledger.RefOrder, ID: string(no)}
}

// load reads an order inside tc and checks that action is allowed.
func load(ctx context.Context, store ledger.Store, no ledger.OrderNo, action ledger.OrderAction) (*ledger.Order, ledger.DeliveryStatus, error) {
	o, err := store.GetOrder(ctx, no)
	if err != nil {
		return nil, "", err
	}
	if o == nil {
		return nil, "", ledger.NotFound("order", no)
	}
	next, err := o.DeliveryStatus.Next(action)
	if err != nil {
		return nil, "", err
	}
	return o, next, nil
}
