package stock_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/distribution-ledger/config"
	"github.com/warp/distribution-ledger/ledger"
	"github.com/warp/distribution-ledger/stock"
)

func TestRecordFlow_CarriesOpeningFromPreviousPeriod(t *testing.T) {
	// GIVEN: January closes at cal 90
	// WHEN: the first February movement arrives
	// THEN: February opens with 90

	svc, store := newTestService(t)
	open(t, svc, "WH1", "I1", 100)
	_, err := outbound(store, "WH1", "I1", 10, day(jan, 15))
	require.NoError(t, err)

	_, err = outbound(store, "WH1", "I1", 4, day(feb, 2))
	require.NoError(t, err)

	c := closing(t, store, "WH1", "I1", feb)
	assert.True(t, d(90).Equal(c.OpeningQuantity))
	assert.True(t, d(45000).Equal(c.OpeningAmount))
	assert.True(t, d(4).Equal(c.OutQuantity))
	assert.True(t, d(86).Equal(c.CalQuantity))
}

func TestRecordFlow_OpeningUsesCountWhenCounted(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	open(t, svc, "WH1", "I1", 100)

	_, err := svc.SetActual(ctx, ledger.ClosingCode("WH1", "I1", jan), d(97), d(500))
	require.NoError(t, err)

	_, err = outbound(store, "WH1", "I1", 1, day(feb, 2))
	require.NoError(t, err)

	c := closing(t, store, "WH1", "I1", feb)
	assert.True(t, d(97).Equal(c.OpeningQuantity))
}

func TestRecordFlow_DirectCall(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	open(t, svc, "WH1", "I1", 10)

	err := store.WithTx(ctx, func(tx ledger.Store) error {
		agg := stock.NewAggregator(tx, config.DiscardLogger())
		if err := agg.RecordFlow(ctx, "WH1", "I1", jan, d(5), d(2500)); err != nil {
			return err
		}
		if err := agg.RecordFlow(ctx, "WH1", "I1", jan, d(-3), d(-1500)); err != nil {
			return err
		}
		// unregistered items are skipped
		return agg.RecordFlow(ctx, "WH9", "I1", jan, d(1), d(1))
	})
	require.NoError(t, err)

	c := closing(t, store, "WH1", "I1", jan)
	assert.True(t, d(15).Equal(c.InQuantity))
	assert.True(t, d(3).Equal(c.OutQuantity))
	assert.True(t, d(12).Equal(c.CalQuantity))
	assert.True(t, c.CalQuantity.Equal(c.OpeningQuantity.Add(c.InQuantity).Sub(c.OutQuantity)))

	missing, err := store.GetClosing(ctx, ledger.ClosingCode("WH9", "I1", jan))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSetActual(t *testing.T) {
	// GIVEN: January cal 90
	// WHEN: the count finds 88 at 500
	// THEN: diff -2 / -1000, one count record, quantity untouched

	svc, store := newTestService(t)
	ctx := context.Background()
	open(t, svc, "WH1", "I1", 100)
	_, err := outbound(store, "WH1", "I1", 10, day(jan, 15))
	require.NoError(t, err)

	code := ledger.ClosingCode("WH1", "I1", jan)
	_, err = svc.SetActual(ctx, code, d(89), d(500))
	require.NoError(t, err)
	c, err := svc.SetActual(ctx, code, d(88), d(500))
	require.NoError(t, err)

	assert.True(t, c.Counted)
	assert.True(t, d(44000).Equal(c.ActualAmount))
	assert.True(t, d(-2).Equal(c.DiffQuantity))
	assert.True(t, d(-1000).Equal(c.DiffAmount))

	counts, err := svc.History(ctx, ledger.StockEntryFilter{
		WarehouseID: "WH1", ItemID: "I1", Types: []ledger.MovementType{ledger.MoveInventoryCount},
	})
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.True(t, d(88).Equal(counts[0].Quantity))

	wi, _ := store.GetWarehouseItem(ctx, "WH1", "I1")
	assert.True(t, d(90).Equal(wi.CurrentQuantity))

	// later movements keep diff in step
	_, err = outbound(store, "WH1", "I1", 2, day(jan, 20))
	require.NoError(t, err)
	c = closing(t, store, "WH1", "I1", jan)
	assert.True(t, c.DiffQuantity.IsZero())
}

func TestSetActual_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	open(t, svc, "WH1", "I1", 100)

	_, err := svc.SetActual(ctx, "WH1-I1-199901", d(1), d(1))
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = svc.ToggleClosing(ctx, "WH1", jan, "alice")
	require.NoError(t, err)
	_, err = svc.SetActual(ctx, ledger.ClosingCode("WH1", "I1", jan), d(1), d(1))
	assert.ErrorIs(t, err, ledger.ErrPeriodLocked)
}

func TestToggleClosing_StampsAndClears(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	open(t, svc, "WH1", "I1", 100)
	open(t, svc, "WH1", "I2", 100)

	_, err := svc.ToggleClosing(ctx, "WH2", jan, "alice")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	closed, err := svc.ToggleClosing(ctx, "WH1", jan, "alice")
	require.NoError(t, err)
	assert.True(t, closed)

	rows, err := svc.Snapshot(ctx, "WH1", jan)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.True(t, r.IsClosed)
		assert.NotNil(t, r.ClosedAt)
		assert.Equal(t, "alice", r.ClosedBy)
	}

	closed, err = svc.ToggleClosing(ctx, "WH1", jan, "bob")
	require.NoError(t, err)
	assert.False(t, closed)
	c := closing(t, store, "WH1", "I1", jan)
	assert.Nil(t, c.ClosedAt)
	assert.Empty(t, c.ClosedBy)
}
