// src/processors/item_joiner.go
package processors

import (
	"sort"

	"github.com/username/hermes/backend/src/models"
)

type itemJoinerImpl struct {
	taxRate float64
}

// NewItemJoiner creates an ItemJoiner. A negative rate falls back to TaxRate.
func NewItemJoiner(taxRate float64) ItemJoiner {
	if taxRate < 0 {
		taxRate = TaxRate
	}
	return &itemJoinerImpl{taxRate: taxRate}
}

// itemAccumulator collects the raw sums of one item before derivation.
type itemAccumulator struct {
	summary        models.ItemSummary
	releasedOrders map[string]bool
	orders         map[string]bool
}

func (j *itemJoinerImpl) Join(in JoinInput) ([]models.ItemSummary, models.ItemTotals) {
	if in.Settlement == nil {
		return []models.ItemSummary{}, models.ItemTotals{}
	}

	// First release amount per order. Every release of a known order carries
	// the same settlement net, so each order is counted once.
	releaseByOrder := make(map[string]float64)
	if in.Releases != nil {
		for _, op := range in.Releases.OperationsWithOrder {
			if _, seen := releaseByOrder[op.OrderID]; !seen {
				releaseByOrder[op.OrderID] = op.Amount
			}
		}
	}

	accs := make(map[string]*itemAccumulator)
	var order []string

	for _, tx := range in.Settlement.Transactions {
		acc, ok := accs[tx.ItemID]
		if !ok {
			acc = &itemAccumulator{
				summary:        models.ItemSummary{ItemID: tx.ItemID, Title: tx.Title},
				releasedOrders: make(map[string]bool),
				orders:         make(map[string]bool),
			}
			accs[tx.ItemID] = acc
			order = append(order, tx.ItemID)
		}
		s := &acc.summary
		if s.Title == "" {
			s.Title = tx.Title
		}
		if !acc.orders[tx.OrderID] {
			acc.orders[tx.OrderID] = true
			s.OrderCount++
		}

		s.TotalSales += tx.GrossValue
		s.TotalUnits += tx.Units
		s.TotalRepasse += tx.NetValue

		if tx.IsRefunded {
			s.Refunded.Count += tx.Units
			s.Refunded.Amount += tx.NetValue
			continue
		}

		amount, released := releaseByOrder[tx.OrderID]
		if released && tx.OrderID != "" && !acc.releasedOrders[tx.OrderID] {
			acc.releasedOrders[tx.OrderID] = true
			s.Released.Count += tx.Units
			s.Released.Amount += amount
			s.ReleasedSales += tx.GrossValue
		}
	}

	items := make([]models.ItemSummary, 0, len(order))
	for _, id := range order {
		s := accs[id].summary
		j.derive(&s, in)
		items = append(items, s)
	}

	sort.SliceStable(items, func(a, b int) bool {
		if items[a].TotalSales != items[b].TotalSales {
			return items[a].TotalSales > items[b].TotalSales
		}
		return items[a].ItemID < items[b].ItemID
	})

	return items, SumItems(items)
}

// derive fills every computed field of an item from its raw sums.
func (j *itemJoinerImpl) derive(s *models.ItemSummary, in JoinInput) {
	s.TotalFees = s.TotalSales - s.TotalRepasse
	s.TaxAmount = j.taxRate * s.TotalSales

	s.Unreleased.Count = max(0, s.TotalUnits-s.Released.Count-s.Refunded.Count)
	s.Unreleased.Amount = max(0, s.TotalRepasse-s.Released.Amount-s.Refunded.Amount)

	if inv, ok := in.Inventory[s.ItemID]; ok {
		if s.Title == "" {
			s.Title = inv.Title
		}
		target := s.Released.Count
		if target == 0 {
			target = s.TotalUnits
		}
		s.AvgUnitCost, s.HasCostBasis = AverageUnitCost(inv, target, in.Period.End)
	}

	if ad, ok := in.Advertising[s.ItemID]; ok {
		s.AdCost = ad.Cost
		s.AdUnits = ad.Units
		s.AdClicks = ad.Clicks
	}

	units := float64(s.TotalUnits)
	s.SalesPerUnit = safeDiv(s.TotalSales, units)
	s.RepassePerUnit = safeDiv(s.TotalRepasse, units)
	s.CostPerUnit = s.AvgUnitCost
	s.AdCostPerUnit = safeDiv(s.AdCost, units)
	s.TaxPerUnit = safeDiv(s.TaxAmount, units)

	// Per released unit: the released units' share of each amount over released.count.
	// Ad spend is shared across sold units, tax follows released sales.
	released := float64(s.Released.Count)
	if s.Released.Count > 0 {
		releasedCost := s.AvgUnitCost * released
		releasedAdCost := s.AdCostPerUnit * released
		releasedTax := j.taxRate * s.ReleasedSales

		s.SalesPerReleasedUnit = safeDiv(s.ReleasedSales, released)
		s.RepassePerReleasedUnit = safeDiv(s.Released.Amount, released)
		s.CostPerReleasedUnit = safeDiv(releasedCost, released)
		s.AdCostPerReleasedUnit = safeDiv(releasedAdCost, released)
		s.TaxPerReleasedUnit = safeDiv(releasedTax, released)
	}

	s.TotalCost = s.AvgUnitCost * float64(s.TotalUnits-s.Refunded.Count)

	unitBurden := s.AvgUnitCost + s.AdCostPerUnit + s.TaxPerUnit
	s.ProfitTotal = (s.TotalRepasse - s.Refunded.Amount) - s.TotalCost - s.AdCost - s.TaxAmount
	s.ProfitReleased = s.Released.Amount - unitBurden*released
	s.ProfitProjected = s.ProfitReleased + s.Unreleased.Amount - unitBurden*float64(s.Unreleased.Count)
	s.MarginPercent = safeDiv(s.ProfitTotal, s.TotalSales) * 100
}

// SumItems builds the column-totals row.
func SumItems(items []models.ItemSummary) models.ItemTotals {
	var t models.ItemTotals
	for _, s := range items {
		t.OrderCount += s.OrderCount
		t.TotalSales += s.TotalSales
		t.TotalUnits += s.TotalUnits
		t.TotalRepasse += s.TotalRepasse
		t.TotalFees += s.TotalFees
		t.Released.Count += s.Released.Count
		t.Released.Amount += s.Released.Amount
		t.ReleasedSales += s.ReleasedSales
		t.Refunded.Count += s.Refunded.Count
		t.Refunded.Amount += s.Refunded.Amount
		t.Unreleased.Count += s.Unreleased.Count
		t.Unreleased.Amount += s.Unreleased.Amount
		t.TaxAmount += s.TaxAmount
		t.TotalCost += s.TotalCost
		t.AdCost += s.AdCost
		t.AdUnits += s.AdUnits
		t.AdClicks += s.AdClicks
		t.ProfitTotal += s.ProfitTotal
		t.ProfitReleased += s.ProfitReleased
		t.ProfitProjected += s.ProfitProjected
	}
	t.MarginPercent = safeDiv(t.ProfitTotal, t.TotalSales) * 100
	return t
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
