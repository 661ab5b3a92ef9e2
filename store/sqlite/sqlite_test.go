package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/distribution-ledger/ledger"
	"github.com/warp/distribution-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

var jan15 = time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)

// =============================================================================
// PROJECTIONS
// =============================================================================

func TestCompareAndSetQuantity(t *testing.T) {
	// GIVEN: a warehouse item at 100
	// WHEN: two writers both read 100 and try to move it
	// THEN: only the first CAS wins

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateWarehouseItem(ctx, ledger.WarehouseItem{
		WarehouseID: "WH1", ItemID: "I1", CurrentQuantity: d(100), SafeQuantity: d(10),
	}))

	require.NoError(t, store.CompareAndSetQuantity(ctx, "WH1", "I1", d(100), d(90)))
	err := store.CompareAndSetQuantity(ctx, "WH1", "I1", d(100), d(80))
	assert.ErrorIs(t, err, ledger.ErrConcurrentModification)

	wi, err := store.GetWarehouseItem(ctx, "WH1", "I1")
	require.NoError(t, err)
	require.NotNil(t, wi)
	assert.True(t, d(90).Equal(wi.CurrentQuantity))

	missing, err := store.GetWarehouseItem(ctx, "WH1", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCompareAndSetBalance_DecimalCanonicalForm(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCustomer(ctx, ledger.Customer{
		ID: "C1", Name: "Corner Shop", DepositType: ledger.DepositPrepaid, Balance: decimal.RequireFromString("1000.50"),
	}))

	c, err := store.GetCustomer(ctx, "C1")
	require.NoError(t, err)
	// "1000.50" and "1000.5" are the same value
	require.NoError(t, store.CompareAndSetBalance(ctx, "C1", c.Balance, decimal.RequireFromString("900.5")))

	c, err = store.GetCustomer(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "900.5", c.Balance.String())

	// re-saving master data leaves the balance alone
	require.NoError(t, store.SaveCustomer(ctx, ledger.Customer{ID: "C1", Name: "Corner Shop Ltd", DepositType: ledger.DepositPrepaid}))
	c, err = store.GetCustomer(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "Corner Shop Ltd", c.Name)
	assert.Equal(t, "900.5", c.Balance.String())
}

// =============================================================================
// APPEND-ONLY LOGS
// =============================================================================

func TestStockEntry_ReversedOnlyOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	orig := ledger.StockEntry{
		ID: "e1", WarehouseID: "WH1", ItemID: "I1", Date: jan15, Type: ledger.MoveOrderOut,
		Quantity: d(-10), UnitPrice: d(500), Amount: d(-5000),
		Reference: ledger.Reference{Type: ledger.RefOrder, ID: "202401150001", Line: 1},
	}
	require.NoError(t, store.AppendStockEntry(ctx, orig))

	rev := orig
	rev.ID, rev.Type, rev.ReversesID = "e2", ledger.MoveReversal, "e1"
	rev.Quantity, rev.Amount = d(10), d(5000)
	require.NoError(t, store.AppendStockEntry(ctx, rev))

	reversed, err := store.IsStockEntryReversed(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, reversed)

	rev.ID = "e3"
	err = store.AppendStockEntry(ctx, rev)
	assert.ErrorIs(t, err, ledger.ErrConcurrentModification, "unique index on reverses_id")

	byRef, err := store.ListStockEntriesByReference(ctx, ledger.RefOrder, "202401150001")
	require.NoError(t, err)
	require.Len(t, byRef, 2)
	assert.Equal(t, int64(1), byRef[0].Reference.Line)
	assert.Equal(t, "e1", byRef[1].ReversesID)

	got, err := store.GetStockEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, jan15, got.Date)
	assert.True(t, d(-5000).Equal(got.Amount))
}

func TestUpsertCountEntry_ReplacesInPlace(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	count := ledger.StockEntry{
		ID: "count-WH1-I1-202401", WarehouseID: "WH1", ItemID: "I1", Date: jan15,
		Type: ledger.MoveInventoryCount, Quantity: d(95), UnitPrice: d(500), Amount: d(47500),
		Reference: ledger.Reference{Type: ledger.RefCount, ID: "WH1-I1-202401"},
	}
	require.NoError(t, store.UpsertCountEntry(ctx, count))

	count.Quantity, count.Amount = d(97), d(48500)
	require.NoError(t, store.UpsertCountEntry(ctx, count))

	entries, err := store.ListStockEntries(ctx, ledger.StockEntryFilter{
		WarehouseID: "WH1", Types: []ledger.MovementType{ledger.MoveInventoryCount},
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, d(97).Equal(entries[0].Quantity))
}

func TestListStockEntries_Filters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, day := range []int{5, 15, 25} {
		require.NoError(t, store.AppendStockEntry(ctx, ledger.StockEntry{
			ID: string(rune('a' + i)), WarehouseID: "WH1", ItemID: "I1",
			Date: time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC), Type: ledger.MoveAdjustment,
			Quantity: d(1), UnitPrice: d(1), Amount: d(1),
		}))
	}

	entries, err := store.ListStockEntries(ctx, ledger.StockEntryFilter{
		ItemID: "I1",
		From:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		To:     time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	limited, err := store.ListStockEntries(ctx, ledger.StockEntryFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

// =============================================================================
// CLOSINGS
// =============================================================================

func TestClosings_LatestBeforeAndToggle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	nov := ledger.YearMonth{Year: 2023, Month: time.November}
	jan := ledger.YearMonth{Year: 2024, Month: time.January}
	for _, ym := range []ledger.YearMonth{nov, jan} {
		c := ledger.MonthlyClosing{
			Code: ledger.ClosingCode("WH1", "I1", ym), WarehouseID: "WH1", ItemID: "I1", Period: ym,
			OpeningQuantity: d(10), InQuantity: d(5),
		}
		c.Recompute()
		require.NoError(t, store.SaveClosing(ctx, c))
	}

	prev, err := store.LatestClosingBefore(ctx, "WH1", "I1", jan)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, nov, prev.Period, "skips the missing December")
	assert.True(t, d(15).Equal(prev.CalQuantity))

	at := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	n, err := store.SetClosed(ctx, "WH1", jan, true, &at, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	closed, err := store.IsPeriodClosed(ctx, "WH1", jan)
	require.NoError(t, err)
	assert.True(t, closed)

	c, err := store.GetClosing(ctx, ledger.ClosingCode("WH1", "I1", jan))
	require.NoError(t, err)
	require.NotNil(t, c.ClosedAt)
	assert.Equal(t, at, *c.ClosedAt)
	assert.Equal(t, "alice", c.ClosedBy)

	n, err = store.SetClosed(ctx, "WH2", jan, true, &at, "alice")
	require.NoError(t, err)
	assert.Zero(t, n)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.CreateWarehouseItem(ctx, ledger.WarehouseItem{WarehouseID: "WH1", ItemID: "I1"}); err != nil {
			return err
		}
		wi, err := tx.GetWarehouseItem(ctx, "WH1", "I1")
		require.NoError(t, err)
		require.NotNil(t, wi, "visible inside the transaction")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	wi, err := store.GetWarehouseItem(ctx, "WH1", "I1")
	require.NoError(t, err)
	assert.Nil(t, wi)
}

// =============================================================================
// ORDERS / TRANSFERS / RETURNS / HOLIDAYS
// =============================================================================

func TestOrders_RoundTripWithItems(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCustomer(ctx, ledger.Customer{ID: "C1", Name: "C", DepositType: ledger.DepositPostpaid}))
	order := ledger.Order{
		OrderNo: "202401150001", CustomerID: "C1", RequestedDate: jan15,
		DeliveryStatus: ledger.DeliveryRequested, PaymentStatus: ledger.PaymentUnpaid, DepositType: ledger.DepositPostpaid,
		TotalAmt: d(5500),
	}
	require.NoError(t, store.CreateOrder(ctx, order))
	id, err := store.InsertOrderItem(ctx, ledger.OrderItem{
		OrderNo: order.OrderNo, Line: 1, ItemID: "I1", WarehouseID: "WH1",
		UnitPrice: d(500), Quantity: d(10), Taxable: true, ReturnableQty: d(10),
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	latest, err := store.LatestOrderNo(ctx, "20240115")
	require.NoError(t, err)
	assert.Equal(t, order.OrderNo, latest)

	none, err := store.LatestOrderNo(ctx, "20240116")
	require.NoError(t, err)
	assert.Empty(t, none)

	dd := jan15.AddDate(0, 0, 1)
	order.DeliveryStatus = ledger.DeliveryInProgress
	order.DeliveryDate = &dd
	require.NoError(t, store.UpdateOrder(ctx, order))

	got, err := store.GetOrder(ctx, order.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, ledger.DeliveryInProgress, got.DeliveryStatus)
	require.NotNil(t, got.DeliveryDate)
	assert.Equal(t, dd, *got.DeliveryDate)

	require.NoError(t, store.SetReturnableQty(ctx, id, d(7)))
	it, err := store.GetOrderItem(ctx, id)
	require.NoError(t, err)
	assert.True(t, d(7).Equal(it.ReturnableQty))

	err = store.UpdateOrder(ctx, ledger.Order{OrderNo: "nope"})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestTransfers_ListIncludesLines(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, code := range []string{"TR2401150001", "TR2401150002"} {
		require.NoError(t, store.CreateTransfer(ctx, ledger.WarehouseTransfer{
			Code: code, Date: jan15, FromWarehouse: "WH1", ToWarehouse: "WH2",
			Items: []ledger.WarehouseTransferItem{
				{Line: 1, ItemID: "I1", Quantity: d(5), UnitPrice: d(500), Amount: d(2500)},
				{Line: 2, ItemID: "I2", Quantity: d(1), UnitPrice: d(100), Amount: d(100)},
			},
		}))
	}

	list, err := store.ListTransfers(ctx, jan15, jan15)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Len(t, list[1].Items, 2)

	latest, err := store.LatestTransferCode(ctx, "TR240115")
	require.NoError(t, err)
	assert.Equal(t, "TR2401150002", latest)
}

func TestHolidays_RecurringMatchesAnyYear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveHoliday(ctx, ledger.Holiday{
		ID: "h1", Date: time.Date(2020, 12, 25, 0, 0, 0, 0, time.UTC), Name: "Christmas", Recurring: true,
	}))
	require.NoError(t, store.SaveHoliday(ctx, ledger.Holiday{
		ID: "h2", OrgID: "acme", Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Name: "Founders day",
	}))

	yes, err := store.IsHoliday(ctx, "other", time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, yes)

	yes, err = store.IsHoliday(ctx, "acme", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, yes)

	no, err := store.IsHoliday(ctx, "other", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, no)

	list, err := store.ListHolidays(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
