package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// YEAR-MONTH - The closing period
// =============================================================================

// YearMonth is the granularity of the closing snapshot and of the period lock.
type YearMonth struct {
	Year  int
	Month time.Month
}

// YearMonthOf returns the period containing t.
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// ParseYearMonth accepts "2006-01" or "200601".
func ParseYearMonth(s string) (YearMonth, error) {
	for _, layout := range []string{"2006-01", "200601"} {
		if t, err := time.Parse(layout, s); err == nil {
			return YearMonthOf(t), nil
		}
	}
	return YearMonth{}, &ValidationError{Field: "year_month", Reason: fmt.Sprintf("invalid period %q (use YYYY-MM)", s)}
}

func (ym YearMonth) Start() time.Time {
	return time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last day of the period.
func (ym YearMonth) End() time.Time {
	return ym.Start().AddDate(0, 1, -1)
}

func (ym YearMonth) Prev() YearMonth { return YearMonthOf(ym.Start().AddDate(0, -1, 0)) }
func (ym YearMonth) Next() YearMonth { return YearMonthOf(ym.Start().AddDate(0, 1, 0)) }

func (ym YearMonth) Contains(t time.Time) bool {
	return t.Year() == ym.Year && t.Month() == ym.Month
}

func (ym YearMonth) IsZero() bool { return ym.Year == 0 }

// String returns the storage form, "2006-01".
func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Compact returns "200601", used inside closing codes.
func (ym YearMonth) Compact() string {
	return fmt.Sprintf("%04d%02d", ym.Year, int(ym.Month))
}

// =============================================================================
// DATE HELPERS
// =============================================================================

const DateLayout = "2006-01-02"

// DateOf truncates t to midnight UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses YYYY-MM-DD into a UTC date.
func ParseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, &ValidationError{Field: field, Reason: fmt.Sprintf("invalid date %q (use YYYY-MM-DD)", s)}
	}
	return t, nil
}

func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
