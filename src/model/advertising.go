package model

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/username/hermes/backend/src/models"
)

// UpsertAdvertisingDaily stores daily spend rows, replacing any row for the same item and day.
func UpsertAdvertisingDaily(db *sql.DB, rows []models.AdvertisingDaily) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
	INSERT INTO advertising_daily (item_id, date, cost, units, clicks, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(item_id, date) DO UPDATE SET
		cost = excluded.cost,
		units = excluded.units,
		clicks = excluded.clicks,
		updated_at = excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, r := range rows {
		if _, err := stmt.Exec(r.ItemID, r.Date.Format(models.PeriodDateLayout), r.Cost, r.Units, r.Clicks, now); err != nil {
			return fmt.Errorf("failed to upsert advertising for %s on %s: %w", r.ItemID, r.Date.Format(models.PeriodDateLayout), err)
		}
	}
	return tx.Commit()
}

// ListAdvertising returns the rows whose day falls inside period, in the period's location.
func ListAdvertising(db *sql.DB, period models.Period) ([]models.AdvertisingDaily, error) {
	rows, err := db.Query(`
	SELECT item_id, date, cost, units, clicks
	FROM advertising_daily
	WHERE date >= ? AND date <= ?
	ORDER BY date ASC, item_id ASC`,
		period.Start.Format(models.PeriodDateLayout), period.End.Format(models.PeriodDateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query advertising: %w", err)
	}
	defer rows.Close()

	loc := period.Start.Location()
	out := []models.AdvertisingDaily{}
	for rows.Next() {
		var r models.AdvertisingDaily
		var day string
		if err := rows.Scan(&r.ItemID, &day, &r.Cost, &r.Units, &r.Clicks); err != nil {
			return nil, fmt.Errorf("failed to scan advertising row: %w", err)
		}
		if r.Date, err = time.ParseInLocation(models.PeriodDateLayout, day, loc); err != nil {
			return nil, fmt.Errorf("invalid advertising date %q: %w", day, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
