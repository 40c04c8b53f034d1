package models

import "time"

// AdvertisingDaily is the spend recorded for one item on one day.
type AdvertisingDaily struct {
	ItemID string    `json:"itemId"`
	Date   time.Time `json:"date"`
	Cost   float64   `json:"cost"`
	Units  int       `json:"units"`
	Clicks int       `json:"clicks"`
}

// AdvertisingItem is the spend of one item summed over a period.
type AdvertisingItem struct {
	ItemID string  `json:"itemId"`
	Cost   float64 `json:"cost"`
	Units  int     `json:"units"`
	Clicks int     `json:"clicks"`
}

// AggregateAdvertising sums daily rows into one entry per item.
func AggregateAdvertising(rows []AdvertisingDaily) map[string]AdvertisingItem {
	out := make(map[string]AdvertisingItem)
	for _, r := range rows {
		agg := out[r.ItemID]
		agg.ItemID = r.ItemID
		agg.Cost += r.Cost
		agg.Units += r.Units
		agg.Clicks += r.Clicks
		out[r.ItemID] = agg
	}
	return out
}
