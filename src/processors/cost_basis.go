package processors

import (
	"sort"
	"time"

	"github.com/username/hermes/backend/src/models"
)

// AverageUnitCost walks the purchase history newest-first and averages the
// cost of the most recent `units` units. Withdrawals and purchases dated after
// asOf are ignored (a zero asOf disables the date filter). If the history holds
// fewer units than requested, the average covers the units actually found.
// With units <= 0 the weighted average of every eligible purchase is returned.
// The boolean is false when no eligible purchase exists.
func AverageUnitCost(item models.InventoryItem, units int, asOf time.Time) (float64, bool) {
	eligible := make([]models.Purchase, 0, len(item.Purchases))
	for _, p := range item.Purchases {
		if p.IsWithdrawal() || p.Quantity == 0 {
			continue
		}
		if !asOf.IsZero() && p.Date.After(asOf) {
			continue
		}
		eligible = append(eligible, p)
	}
	if len(eligible) == 0 {
		return 0, false
	}

	// Stable keeps the stored order for purchases on the same date.
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Date.After(eligible[j].Date)
	})

	if units <= 0 {
		return models.InventoryItem{Purchases: eligible}.WeightedAverageCost(), true
	}

	remaining := units
	consumed := 0
	var cost float64
	for _, p := range eligible {
		if remaining == 0 {
			break
		}
		take := p.Quantity
		if take > remaining {
			take = remaining
		}
		cost += float64(take) * p.EffectiveUnitCost()
		consumed += take
		remaining -= take
	}
	if consumed == 0 {
		return 0, false
	}
	return cost / float64(consumed), true
}
