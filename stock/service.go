package stock

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/distribution-ledger/ledger"
	"github.com/warp/distribution-ledger/lock"
)

// Service runs the manual stock flows, each in its own transaction under
// the item's lock.
type Service struct {
	Store  ledger.TxStore
	Locker lock.Locker
	Logger logrus.FieldLogger
}

func NewService(store ledger.TxStore, locker lock.Locker, logger logrus.FieldLogger) *Service {
	if locker == nil {
		locker = lock.Noop{}
	}
	return &Service{Store: store, Locker: locker, Logger: logger}
}

func (s *Service) inTx(ctx context.Context, keys []string, fn func(l *Ledger) error) error {
	release, err := s.Locker.Acquire(ctx, keys...)
	if err != nil {
		return err
	}
	defer release()

	return s.Store.WithTx(ctx, func(tx ledger.Store) error {
		return fn(NewLedger(tx, s.Logger))
	})
}

func (s *Service) OpenStock(ctx context.Context, in OpenInput) (*ledger.StockEntry, error) {
	var entry *ledger.StockEntry
	err := s.inTx(ctx, []string{lock.StockKey(in.Warehouse, in.Item)}, func(l *Ledger) error {
		var err error
		entry, err = l.OpenStock(ctx, in)
		return err
	})
	return entry, err
}

func (s *Service) Adjust(ctx context.Context, in AdjustInput) (*ledger.StockEntry, error) {
	var entry *ledger.StockEntry
	err := s.inTx(ctx, []string{lock.StockKey(in.Warehouse, in.Item)}, func(l *Ledger) error {
		var err error
		entry, err = l.Adjust(ctx, in)
		return err
	})
	return entry, err
}

func (s *Service) SetActual(ctx context.Context, code string, qty, unitPrice decimal.Decimal) (*ledger.MonthlyClosing, error) {
	var c *ledger.MonthlyClosing
	err := s.inTx(ctx, []string{"closing:" + code}, func(l *Ledger) error {
		var err error
		c, err = l.Aggregator().SetActual(ctx, code, qty, unitPrice)
		return err
	})
	return c, err
}

func (s *Service) ToggleClosing(ctx context.Context, wh ledger.WarehouseID, ym ledger.YearMonth, actor string) (bool, error) {
	var closed bool
	err := s.inTx(ctx, []string{"closing:" + string(wh) + ":" + ym.String()}, func(l *Ledger) error {
		var err error
		closed, err = l.Aggregator().ToggleClosing(ctx, wh, ym, actor)
		return err
	})
	return closed, err
}

// =============================================================================
// READS
// =============================================================================

func (s *Service) History(ctx context.Context, f ledger.StockEntryFilter) ([]ledger.StockEntry, error) {
	return s.Store.ListStockEntries(ctx, f)
}

func (s *Service) Snapshot(ctx context.Context, wh ledger.WarehouseID, ym ledger.YearMonth) ([]ledger.MonthlyClosing, error) {
	return s.Store.ListClosings(ctx, wh, ym)
}

func (s *Service) WarehouseItems(ctx context.Context, wh ledger.WarehouseID) ([]ledger.WarehouseItem, error) {
	return s.Store.ListWarehouseItems(ctx, wh)
}

func (s *Service) Verify(ctx context.Context, wh ledger.WarehouseID, item ledger.ItemID) error {
	return NewLedger(s.Store, s.Logger).Verify(ctx, wh, item)
}
