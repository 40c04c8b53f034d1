package models

import "time"

// Purchase is a stock movement for an item. Negative quantities are withdrawals.
type Purchase struct {
	ID        int64     `json:"id"`
	ItemID    string    `json:"itemId"`
	Quantity  int       `json:"quantity"`
	UnitCost  float64   `json:"unitCost"`
	TotalCost float64   `json:"totalCost"`
	SourceID  string    `json:"sourceId"`
	Date      time.Time `json:"date"`
}

func (p Purchase) IsWithdrawal() bool {
	return p.Quantity < 0
}

// EffectiveUnitCost returns UnitCost, falling back to TotalCost over Quantity.
func (p Purchase) EffectiveUnitCost() float64 {
	if p.UnitCost != 0 {
		return p.UnitCost
	}
	if p.Quantity == 0 {
		return 0
	}
	return p.TotalCost / float64(p.Quantity)
}

// Cost is the purchase's quantity priced at its effective unit cost.
func (p Purchase) Cost() float64 {
	return float64(p.Quantity) * p.EffectiveUnitCost()
}

// InventoryItem holds an item's purchase history, newest first.
type InventoryItem struct {
	ItemID        string     `json:"itemId"`
	Title         string     `json:"title"`
	TotalQuantity int        `json:"totalQuantity"`
	Purchases     []Purchase `json:"purchases"`
}

// WeightedAverageCost averages the unit cost over every non-withdrawal purchase.
func (i InventoryItem) WeightedAverageCost() float64 {
	var units int
	var cost float64
	for _, p := range i.Purchases {
		if p.IsWithdrawal() || p.Quantity == 0 {
			continue
		}
		units += p.Quantity
		cost += p.Cost()
	}
	if units == 0 {
		return 0
	}
	return cost / float64(units)
}
