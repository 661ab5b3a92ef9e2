package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/distribution-ledger/ledger"
)

// =============================================================================
// STATE MACHINES
// =============================================================================

func TestDeliveryStatus_Transitions(t *testing.T) {
	cases := []struct {
		from   ledger.DeliveryStatus
		action ledger.OrderAction
		want   ledger.DeliveryStatus
		ok     bool
	}{
		{ledger.DeliveryRequested, ledger.ActionStartDelivery, ledger.DeliveryInProgress, true},
		{ledger.DeliveryRequested, ledger.ActionCompleteDelivery, ledger.DeliveryCompleted, true},
		{ledger.DeliveryRequested, ledger.ActionCancelDelivery, "", false},
		{ledger.DeliveryRequested, ledger.ActionReplaceItems, ledger.DeliveryRequested, true},
		{ledger.DeliveryRequested, ledger.ActionDelete, ledger.DeliveryRequested, true},
		{ledger.DeliveryInProgress, ledger.ActionCancelDelivery, ledger.DeliveryRequested, true},
		{ledger.DeliveryInProgress, ledger.ActionCompleteDelivery, ledger.DeliveryCompleted, true},
		{ledger.DeliveryInProgress, ledger.ActionReplaceItems, "", false},
		{ledger.DeliveryInProgress, ledger.ActionDelete, "", false},
		{ledger.DeliveryCompleted, ledger.ActionCancelDelivery, "", false},
		{ledger.DeliveryCompleted, ledger.ActionEditHeader, "", false},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s/%s", tc.from, tc.action), func(t *testing.T) {
			next, err := tc.from.Next(tc.action)
			if !tc.ok {
				require.Error(t, err)
				assert.ErrorIs(t, err, ledger.ErrInvalidTransition)
				assert.Equal(t, ledger.CodeInvalidTransition, ledger.Code(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, next)
		})
	}
}

func TestReturnStatus_ApprovedIsFinal(t *testing.T) {
	next, err := ledger.ReturnUnapproved.Next(ledger.ReturnActionApprove)
	require.NoError(t, err)
	assert.Equal(t, ledger.ReturnApproved, next)

	for _, a := range []ledger.ReturnAction{ledger.ReturnActionUpdate, ledger.ReturnActionDelete, ledger.ReturnActionApprove} {
		_, err := ledger.ReturnApproved.Next(a)
		assert.ErrorIs(t, err, ledger.ErrInvalidTransition, a)
	}
}

func TestEnums_Valid(t *testing.T) {
	assert.True(t, ledger.DeliveryInProgress.Valid())
	assert.False(t, ledger.DeliveryStatus("shipped").Valid())
	assert.True(t, ledger.DepositPrepaid.Valid())
	assert.False(t, ledger.DepositType("credit").Valid())
	assert.True(t, ledger.MoveInventoryCount.Valid())
	assert.False(t, ledger.MoveInventoryCount.Moves())
	assert.True(t, ledger.MoveReversal.Moves())
	assert.Equal(t, ledger.BalanceWithdrawal, ledger.BalanceDeposit.Opposite())
}

// =============================================================================
// ERRORS
// =============================================================================

func TestCode_MapsEveryKind(t *testing.T) {
	cases := map[string]error{
		ledger.CodeNotFound:               ledger.NotFound("order", "x"),
		ledger.CodeInsufficientStock:      &ledger.InsufficientStockError{},
		ledger.CodeInsufficientBalance:    &ledger.InsufficientBalanceError{},
		ledger.CodePeriodLocked:           &ledger.PeriodLockedError{},
		ledger.CodeValidation:             ledger.Invalid("qty", "must be positive"),
		ledger.CodeConcurrentModification: fmt.Errorf("wrapped: %w", ledger.ErrConcurrentModification),
		ledger.CodeInternal:               errors.New("disk on fire"),
	}
	for want, err := range cases {
		assert.Equal(t, want, ledger.Code(err), err.Error())
	}
	assert.Equal(t, "", ledger.Code(nil))

	assert.True(t, ledger.IsClientError(ledger.Invalid("a", "b")))
	assert.False(t, ledger.IsClientError(errors.New("boom")))
	assert.False(t, ledger.IsClientError(ledger.ErrConcurrentModification))
}

func TestInsufficientBalanceError_ReportsShortfall(t *testing.T) {
	err := &ledger.InsufficientBalanceError{
		CustomerID: "C1",
		Available:  decimal.NewFromInt(50000),
		Requested:  decimal.NewFromInt(55000),
	}
	assert.Contains(t, err.Error(), "shortfall 5000")
}

// =============================================================================
// PERIODS + NUMBERING
// =============================================================================

func TestYearMonth(t *testing.T) {
	ym, err := ledger.ParseYearMonth("2024-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-01", ym.String())
	assert.Equal(t, "202401", ym.Compact())
	assert.Equal(t, ledger.YearMonth{Year: 2023, Month: time.December}, ym.Prev())
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), ym.End())

	compact, err := ledger.ParseYearMonth("202402")
	require.NoError(t, err)
	assert.Equal(t, ym.Next(), compact)

	_, err = ledger.ParseYearMonth("Jan 2024")
	assert.ErrorIs(t, err, ledger.ErrValidation)

	assert.Equal(t, "WH1-I1-202401", ledger.ClosingCode("WH1", "I1", ym))
}

func TestNextNumber(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	first, err := ledger.NextNumber(ledger.OrderNoPrefix(day), "")
	require.NoError(t, err)
	assert.Equal(t, "202401150001", first)

	next, err := ledger.NextNumber(ledger.OrderNoPrefix(day), "202401150041")
	require.NoError(t, err)
	assert.Equal(t, "202401150042", next)

	tr, err := ledger.NextNumber(ledger.TransferCodePrefix(day), "TR2401150009")
	require.NoError(t, err)
	assert.Equal(t, "TR2401150010", tr)

	_, err = ledger.NextNumber(ledger.OrderNoPrefix(day), "202401149999")
	assert.Error(t, err)

	_, err = ledger.NextNumber(ledger.OrderNoPrefix(day), "202401159999")
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

// =============================================================================
// CLOSING ARITHMETIC
// =============================================================================

func TestMonthlyClosing_Recompute(t *testing.T) {
	c := ledger.MonthlyClosing{
		OpeningQuantity: decimal.NewFromInt(100),
		OpeningAmount:   decimal.NewFromInt(50000),
		InQuantity:      decimal.NewFromInt(20),
		InAmount:        decimal.NewFromInt(10000),
		OutQuantity:     decimal.NewFromInt(10),
		OutAmount:       decimal.NewFromInt(5000),
	}
	c.Recompute()
	assert.True(t, decimal.NewFromInt(110).Equal(c.CalQuantity))
	assert.True(t, decimal.NewFromInt(55000).Equal(c.CalAmount))
	assert.True(t, c.DiffQuantity.IsZero(), "diff untouched until counted")

	c.Counted = true
	c.ActualQuantity = decimal.NewFromInt(108)
	c.ActualAmount = decimal.NewFromInt(54000)
	c.Recompute()
	assert.True(t, decimal.NewFromInt(-2).Equal(c.DiffQuantity))

	q, a := c.ClosingPosition()
	assert.True(t, decimal.NewFromInt(108).Equal(q))
	assert.True(t, decimal.NewFromInt(54000).Equal(a))
}

// =============================================================================
// DELIVERY GATE
// =============================================================================

type fixedHolidays map[string]bool

func (f fixedHolidays) IsHoliday(_ context.Context, _ ledger.OrgID, d time.Time) (bool, error) {
	return f[d.Format(ledger.DateLayout)], nil
}

func TestCalendarGate(t *testing.T) {
	ctx := context.Background()
	// Monday 2024-01-15, 10:00
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	gate := ledger.CalendarGate{
		Holidays:   fixedHolidays{"2024-01-17": true},
		CutoffHour: 15,
	}

	assert.NoError(t, gate.Check(ctx, "org", now.AddDate(0, 0, 1), now), "tuesday before cut-off")
	assert.ErrorIs(t, gate.Check(ctx, "org", now.AddDate(0, 0, -1), now), ledger.ErrValidation, "past")
	assert.ErrorIs(t, gate.Check(ctx, "org", now.AddDate(0, 0, 2), now), ledger.ErrValidation, "holiday")
	assert.ErrorIs(t, gate.Check(ctx, "org", now.AddDate(0, 0, 5), now), ledger.ErrValidation, "saturday")

	late := time.Date(2024, 1, 15, 16, 30, 0, 0, time.UTC)
	assert.ErrorIs(t, gate.Check(ctx, "org", now.AddDate(0, 0, 1), late), ledger.ErrValidation, "after cut-off")
	assert.NoError(t, gate.Check(ctx, "org", now.AddDate(0, 0, 3), late), "cut-off only affects next day")

	gate.AllowWeekend = true
	assert.NoError(t, gate.Check(ctx, "org", now.AddDate(0, 0, 5), now))
}
