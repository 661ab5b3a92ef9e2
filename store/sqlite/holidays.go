package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/distribution-ledger/ledger"
)

// =============================================================================
// HOLIDAYS (ledger.HolidayStore)
// =============================================================================

// SaveHoliday saves a holiday to the database.
func (q *queries) SaveHoliday(ctx context.Context, h ledger.Holiday) error {
	query := `
		INSERT INTO holidays (id, org_id, date, name, recurring, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(org_id, date, name) DO UPDATE SET
			recurring = excluded.recurring
	`
	_, err := q.q.ExecContext(ctx, query, h.ID, h.OrgID, formatDate(h.Date), h.Name, h.Recurring, now())
	if err != nil {
		return fmt.Errorf("failed to save holiday: %w", err)
	}
	return nil
}

// DeleteHoliday deletes a holiday by ID.
func (q *queries) DeleteHoliday(ctx context.Context, id string) error {
	_, err := q.q.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	return err
}

// ListHolidays returns the org's holidays plus the global ones.
func (q *queries) ListHolidays(ctx context.Context, org ledger.OrgID) ([]ledger.Holiday, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, org_id, date, name, recurring
		FROM holidays
		WHERE org_id = ? OR org_id = ''
		ORDER BY date ASC`, org)
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var holidays []ledger.Holiday
	for rows.Next() {
		var (
			h       ledger.Holiday
			dateStr string
		)
		if err := rows.Scan(&h.ID, &h.OrgID, &dateStr, &h.Name, &h.Recurring); err != nil {
			return nil, fmt.Errorf("failed to scan holiday: %w", err)
		}
		h.Date = parseDate(dateStr)
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// IsHoliday checks if a date is a holiday for the given org. Recurring
// holidays match on month and day.
func (q *queries) IsHoliday(ctx context.Context, org ledger.OrgID, date time.Time) (bool, error) {
	query := `
		SELECT COUNT(*) FROM holidays
		WHERE (org_id = ? OR org_id = '')
		  AND (
			(recurring = FALSE AND date = ?)
			OR (recurring = TRUE AND strftime('%m-%d', date) = ?)
		  )
	`
	var count int
	err := q.q.QueryRowContext(ctx, query, org, formatDate(date), date.Format("01-02")).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
