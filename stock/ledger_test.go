package stock_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/distribution-ledger/config"
	"github.com/warp/distribution-ledger/ledger"
	"github.com/warp/distribution-ledger/lock"
	"github.com/warp/distribution-ledger/stock"
	"github.com/warp/distribution-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*stock.Service, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return stock.NewService(store, lock.Noop{}, config.DiscardLogger()), store
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

var (
	jan = ledger.YearMonth{Year: 2024, Month: time.January}
	feb = ledger.YearMonth{Year: 2024, Month: time.February}
)

func day(ym ledger.YearMonth, n int) time.Time {
	return time.Date(ym.Year, ym.Month, n, 0, 0, 0, 0, time.UTC)
}

func open(t *testing.T, svc *stock.Service, wh ledger.WarehouseID, item ledger.ItemID, qty int64) {
	t.Helper()
	_, err := svc.OpenStock(context.Background(), stock.OpenInput{
		Warehouse: wh, Item: item, Date: day(jan, 1), Quantity: d(qty), UnitPrice: d(500), SafeQuantity: d(10),
	})
	require.NoError(t, err)
}

func outbound(store ledger.TxStore, wh ledger.WarehouseID, item ledger.ItemID, qty int64, date time.Time) (*ledger.StockEntry, error) {
	var entry *ledger.StockEntry
	err := store.WithTx(context.Background(), func(tx ledger.Store) error {
		var err error
		entry, err = stock.NewLedger(tx, config.DiscardLogger()).ApplyMovement(context.Background(), stock.Movement{
			Warehouse: wh, Item: item, Date: date, Quantity: d(-qty), UnitPrice: d(500),
			Type:      ledger.MoveOrderOut,
			Reference: ledger.Reference{Type: ledger.RefOrder, ID: "202401150001", Line: 1},
		})
		return err
	})
	return entry, err
}

// reverser is a ledger whose clock sits inside January, where the test
// entries are dated.
func reverser(tx ledger.Store) *stock.Ledger {
	return stock.NewLedger(tx, config.DiscardLogger()).WithClock(func() time.Time { return day(jan, 20) })
}

func closing(t *testing.T, store *sqlite.Store, wh ledger.WarehouseID, item ledger.ItemID, ym ledger.YearMonth) *ledger.MonthlyClosing {
	t.Helper()
	c, err := store.GetClosing(context.Background(), ledger.ClosingCode(wh, item, ym))
	require.NoError(t, err)
	require.NotNil(t, c, "closing row %s", ledger.ClosingCode(wh, item, ym))
	return c
}

// =============================================================================
// MOVEMENTS
// =============================================================================

func TestApplyMovement_DeductsAndBooksOut(t *testing.T) {
	svc, store := newTestService(t)
	open(t, svc, "WH1", "I1", 100)

	_, err := outbound(store, "WH1", "I1", 10, day(jan, 15))
	require.NoError(t, err)

	wi, err := store.GetWarehouseItem(context.Background(), "WH1", "I1")
	require.NoError(t, err)
	assert.True(t, d(90).Equal(wi.CurrentQuantity))

	c := closing(t, store, "WH1", "I1", jan)
	assert.True(t, d(100).Equal(c.InQuantity), "opening registered as inflow")
	assert.True(t, d(10).Equal(c.OutQuantity))
	assert.True(t, d(5000).Equal(c.OutAmount))
	assert.True(t, d(90).Equal(c.CalQuantity))
}

func TestApplyMovement_InsufficientStock(t *testing.T) {
	// GIVEN: 5 on hand
	// WHEN: shipping 6
	// THEN: InsufficientStock, nothing written

	svc, store := newTestService(t)
	open(t, svc, "WH1", "I1", 5)

	_, err := outbound(store, "WH1", "I1", 6, day(jan, 15))
	var short *ledger.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.True(t, d(5).Equal(short.Available))
	assert.True(t, d(6).Equal(short.Requested))

	entries, err := svc.History(context.Background(), ledger.StockEntryFilter{ItemID: "I1"})
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the opening entry")
}

func TestApplyMovement_UnregisteredItem(t *testing.T) {
	_, store := newTestService(t)

	_, err := outbound(store, "WH1", "ghost", 1, day(jan, 15))
	var short *ledger.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.True(t, short.Available.IsZero())
}

func TestApplyMovement_InboundCreatesItem(t *testing.T) {
	_, store := newTestService(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx ledger.Store) error {
		_, err := stock.NewLedger(tx, config.DiscardLogger()).ApplyMovement(ctx, stock.Movement{
			Warehouse: "WH2", Item: "I1", Date: day(jan, 3), Quantity: d(7), UnitPrice: d(500),
			Type: ledger.MoveTransferIn, Reference: ledger.Reference{Type: ledger.RefTransfer, ID: "TR2401030001"},
		})
		return err
	})
	require.NoError(t, err)

	wi, err := store.GetWarehouseItem(ctx, "WH2", "I1")
	require.NoError(t, err)
	require.NotNil(t, wi)
	assert.True(t, d(7).Equal(wi.CurrentQuantity))
	assert.True(t, d(7).Equal(closing(t, store, "WH2", "I1", jan).InQuantity))
}

func TestApplyMovement_LockedPeriodRejected(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	open(t, svc, "WH1", "I1", 100)

	closed, err := svc.ToggleClosing(ctx, "WH1", jan, "alice")
	require.NoError(t, err)
	require.True(t, closed)

	_, err = outbound(store, "WH1", "I1", 1, day(jan, 20))
	assert.ErrorIs(t, err, ledger.ErrPeriodLocked)

	_, err = svc.Adjust(ctx, stock.AdjustInput{Warehouse: "WH1", Item: "I1", Date: day(jan, 31), Quantity: d(3), UnitPrice: d(500)})
	assert.ErrorIs(t, err, ledger.ErrPeriodLocked)

	// next month is open
	_, err = outbound(store, "WH1", "I1", 1, day(feb, 1))
	assert.NoError(t, err)

	// unlocking re-admits writes
	closed, err = svc.ToggleClosing(ctx, "WH1", jan, "alice")
	require.NoError(t, err)
	assert.False(t, closed)
	_, err = outbound(store, "WH1", "I1", 1, day(jan, 20))
	assert.NoError(t, err)
}

// =============================================================================
// REVERSALS
// =============================================================================

func TestReverseMovement_RoundTrip(t *testing.T) {
	// GIVEN: a shipment of 10
	// WHEN: it is reversed
	// THEN: quantity and the closing's out column return to their prior values

	svc, store := newTestService(t)
	ctx := context.Background()
	open(t, svc, "WH1", "I1", 100)

	before := *closing(t, store, "WH1", "I1", jan)
	entry, err := outbound(store, "WH1", "I1", 10, day(jan, 15))
	require.NoError(t, err)

	err = store.WithTx(ctx, func(tx ledger.Store) error {
		_, err := reverser(tx).ReverseMovement(ctx, *entry, "")
		return err
	})
	require.NoError(t, err)

	wi, _ := store.GetWarehouseItem(ctx, "WH1", "I1")
	assert.True(t, d(100).Equal(wi.CurrentQuantity))

	after := closing(t, store, "WH1", "I1", jan)
	assert.True(t, before.OutQuantity.Equal(after.OutQuantity), "out restored, not booked as inflow")
	assert.True(t, before.InQuantity.Equal(after.InQuantity))
	assert.True(t, before.CalQuantity.Equal(after.CalQuantity))

	// second reversal is refused
	err = store.WithTx(ctx, func(tx ledger.Store) error {
		_, err := reverser(tx).ReverseMovement(ctx, *entry, "")
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	require.NoError(t, svc.Verify(ctx, "WH1", "I1"))
}

func TestReverseMovement_Dating(t *testing.T) {
	// GIVEN: a January shipment in a locked January, and a shipment dated
	//        after the ledger's clock
	// WHEN: each is reversed on Feb 5
	// THEN: the first reversal lands in February as an inflow; the second
	//       keeps the later date and restores its out column

	svc, store := newTestService(t)
	ctx := context.Background()
	open(t, svc, "WH1", "I1", 100)

	janOut, err := outbound(store, "WH1", "I1", 10, day(jan, 31))
	require.NoError(t, err)
	lateOut, err := outbound(store, "WH1", "I1", 5, day(feb, 20))
	require.NoError(t, err)
	_, err = svc.ToggleClosing(ctx, "WH1", jan, "auditor")
	require.NoError(t, err)

	var revs []*ledger.StockEntry
	err = store.WithTx(ctx, func(tx ledger.Store) error {
		l := stock.NewLedger(tx, config.DiscardLogger()).WithClock(func() time.Time { return day(feb, 5) })
		for _, e := range []*ledger.StockEntry{janOut, lateOut} {
			rev, err := l.ReverseMovement(ctx, *e, "")
			if err != nil {
				return err
			}
			revs = append(revs, rev)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, day(feb, 5), revs[0].Date)
	assert.Equal(t, day(feb, 20), revs[1].Date)

	janRow := closing(t, store, "WH1", "I1", jan)
	assert.True(t, d(10).Equal(janRow.OutQuantity), "locked month untouched")

	febRow := closing(t, store, "WH1", "I1", feb)
	assert.True(t, d(90).Equal(febRow.OpeningQuantity))
	assert.True(t, d(10).Equal(febRow.InQuantity))
	assert.True(t, febRow.OutQuantity.IsZero())
	assert.True(t, d(100).Equal(febRow.CalQuantity))

	require.NoError(t, svc.Verify(ctx, "WH1", "I1"))
}

func TestReverseReference_SkipsAlreadyReversed(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	open(t, svc, "WH1", "I1", 100)

	first, err := outbound(store, "WH1", "I1", 10, day(jan, 15))
	require.NoError(t, err)
	_, err = outbound(store, "WH1", "I1", 5, day(jan, 16))
	require.NoError(t, err)

	ref := ledger.Reference{Type: ledger.RefOrder, ID: "202401150001"}
	err = store.WithTx(ctx, func(tx ledger.Store) error {
		l := reverser(tx)
		if _, err := l.ReverseMovement(ctx, *first, ""); err != nil {
			return err
		}
		revs, err := l.ReverseReference(ctx, ref, "cancel")
		assert.Len(t, revs, 1)
		return err
	})
	require.NoError(t, err)

	wi, _ := store.GetWarehouseItem(ctx, "WH1", "I1")
	assert.True(t, d(100).Equal(wi.CurrentQuantity))

	// nothing left to reverse
	err = store.WithTx(ctx, func(tx ledger.Store) error {
		revs, err := reverser(tx).ReverseReference(ctx, ref, "again")
		assert.Empty(t, revs)
		return err
	})
	require.NoError(t, err)
}

// =============================================================================
// CONSERVATION
// =============================================================================

func TestConservation_MixedFlows(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	open(t, svc, "WH1", "I1", 50)

	for _, q := range []int64{-5, 12, -20, 3} {
		_, err := svc.Adjust(ctx, stock.AdjustInput{Warehouse: "WH1", Item: "I1", Date: day(jan, 10), Quantity: d(q), UnitPrice: d(500)})
		require.NoError(t, err)
	}
	_, err := svc.SetActual(ctx, ledger.ClosingCode("WH1", "I1", jan), d(39), d(500))
	require.NoError(t, err)

	require.NoError(t, svc.Verify(ctx, "WH1", "I1"), "count records are excluded")
	wi, _ := store.GetWarehouseItem(ctx, "WH1", "I1")
	assert.True(t, d(40).Equal(wi.CurrentQuantity))
}
