package ledger

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// HolidayCalendar provides holiday lookup functionality.
type HolidayCalendar interface {
	// IsHoliday checks org-specific holidays first, then global ones.
	IsHoliday(ctx context.Context, org OrgID, date time.Time) (bool, error)
}

// NoHolidays is a calendar with no holidays.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(context.Context, OrgID, time.Time) (bool, error) { return false, nil }

// =============================================================================
// DELIVERY GATE - pass/fail check on a requested delivery date
// =============================================================================

type DeliveryGate interface {
	// Check returns a ValidationError when an order for date, placed at
	// now, cannot be accepted.
	Check(ctx context.Context, org OrgID, date, now time.Time) error
}

// GateFunc adapts a function to DeliveryGate.
type GateFunc func(ctx context.Context, org OrgID, date, now time.Time) error

func (f GateFunc) Check(ctx context.Context, org OrgID, date, now time.Time) error {
	return f(ctx, org, date, now)
}

// OpenGate accepts every date.
var OpenGate DeliveryGate = GateFunc(func(context.Context, OrgID, time.Time, time.Time) error { return nil })

// CalendarGate is the default gate:
//   - the date may not be in the past
//   - weekends are refused unless AllowWeekend
//   - holidays from Holidays are refused
//   - next-day delivery closes at CutoffHour on the day before (0 = no cut-off)
type CalendarGate struct {
	Holidays     HolidayCalendar
	AllowWeekend bool
	CutoffHour   int
}

func (g CalendarGate) Check(ctx context.Context, org OrgID, date, now time.Time) error {
	day := DateOf(date)
	today := DateOf(now)

	if day.Before(today) {
		return Invalid("requested_date", "%s is in the past", day.Format(DateLayout))
	}
	if !g.AllowWeekend && IsWeekend(day) {
		return Invalid("requested_date", "no deliveries on %s", day.Weekday())
	}
	if g.Holidays != nil {
		holiday, err := g.Holidays.IsHoliday(ctx, org, day)
		if err != nil {
			return err
		}
		if holiday {
			return Invalid("requested_date", "%s is a holiday", day.Format(DateLayout))
		}
	}
	if g.CutoffHour > 0 && day.Equal(today.AddDate(0, 0, 1)) && now.Hour() >= g.CutoffHour {
		return Invalid("requested_date", "next-day orders close at %02d:00", g.CutoffHour)
	}
	return nil
}

// =============================================================================
// NOTIFIER
// =============================================================================

// Notifier is told about new orders. Delivery is best-effort.
type Notifier interface {
	OrderCreated(ctx context.Context, o Order) error
}

// LogNotifier writes a log line per new order.
type LogNotifier struct {
	Logger logrus.FieldLogger
}

func (n LogNotifier) OrderCreated(_ context.Context, o Order) error {
	if n.Logger == nil {
		return nil
	}
	n.Logger.WithFields(logrus.Fields{
		"order_no":       o.OrderNo,
		"customer_id":    o.CustomerID,
		"requested_date": o.RequestedDate.Format(DateLayout),
		"total_amt":      o.TotalAmt.String(),
	}).Info("order created")
	return nil
}
