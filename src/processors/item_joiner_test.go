package processors

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/hermes/backend/src/models"
	"github.com/username/hermes/backend/src/parsers/mercadolivre"
)

func tx(orderID, itemID string, units int, gross, net float64, refunded bool) models.SettlementTransaction {
	return models.SettlementTransaction{
		OrderID:    orderID,
		ItemID:     itemID,
		Title:      "Item " + itemID,
		Units:      units,
		GrossValue: gross,
		NetValue:   net,
		IsRefunded: refunded,
	}
}

func settlementOf(txs ...models.SettlementTransaction) *models.SettlementResult {
	res := &models.SettlementResult{Transactions: txs}
	recomputeTotals(res)
	return res
}

func findItem(t *testing.T, items []models.ItemSummary, id string) models.ItemSummary {
	t.Helper()
	for _, it := range items {
		if it.ItemID == id {
			return it
		}
	}
	require.FailNow(t, "item not found", id)
	return models.ItemSummary{}
}

func TestJoin_ReleasedRefundedUnreleased(t *testing.T) {
	settlement := settlementOf(
		tx("o1", "MLB1", 2, 200, 160, false),
		tx("o2", "MLB1", 1, 100, 80, true),
		tx("o3", "MLB1", 3, 300, 240, false),
		tx("o4", "MLB1", 1, 100, 80, false),
	)
	lines := []models.ReleaseLine{
		releaseLine("o1", "payment", 150, 0),
		releaseLine("o1", "payment", 10, 0),
		releaseLine("o2", "payment", 80, 0),
		releaseLine("o4", "payment", 70, 0),
	}
	releases := NewReleaseProcessor().Process(lines, settlement)

	items, totals := NewItemJoiner(TaxRate).Join(JoinInput{Settlement: settlement, Releases: releases})
	require.Len(t, items, 1)
	s := items[0]

	assert.Equal(t, 700.0, s.TotalSales)
	assert.Equal(t, 7, s.TotalUnits)
	assert.Equal(t, 560.0, s.TotalRepasse)
	assert.Equal(t, 140.0, s.TotalFees)
	assert.Equal(t, 4, s.OrderCount)

	// o1 counted once with its settlement net, refunded o2 never released.
	assert.Equal(t, models.UnitAmount{Count: 3, Amount: 240}, s.Released)
	assert.Equal(t, 300.0, s.ReleasedSales)
	assert.Equal(t, models.UnitAmount{Count: 1, Amount: 80}, s.Refunded)
	assert.Equal(t, models.UnitAmount{Count: 3, Amount: 240}, s.Unreleased)

	assert.Equal(t, 480.0, settlement.TotalNetSales)
	assert.Equal(t, s.TotalSales, totals.TotalSales)
}

func TestJoin_RefundedExcludedFromNetButCountedAsRefund(t *testing.T) {
	settlement := settlementOf(
		tx("r1", "MLB2", 1, 100, 80, true),
		tx("n1", "MLB2", 1, 100, 85, false),
	)
	assert.Equal(t, 85.0, settlement.TotalNetSales)

	items, _ := NewItemJoiner(TaxRate).Join(JoinInput{Settlement: settlement, Releases: models.NewReleaseSummary()})
	s := findItem(t, items, "MLB2")
	assert.Equal(t, 80.0, s.Refunded.Amount)
	assert.Equal(t, 1, s.Refunded.Count)
}

func TestJoin_Invariants(t *testing.T) {
	settlement := settlementOf(
		tx("a1", "A", 5, 500, 400, false),
		tx("a2", "A", 2, 150, 120, true),
		tx("b1", "B", 1, 99.9, 70, false),
		tx("b2", "B", 4, 410, 300, false),
		tx("c1", "C", 1, 10, 7, true),
	)
	lines := []models.ReleaseLine{
		releaseLine("a1", "payment", 999, 0),
		releaseLine("a2", "payment", 120, 0),
		releaseLine("b2", "payment", 300, 0),
		releaseLine("b2", "payment", 300, 0),
	}
	releases := NewReleaseProcessor().Process(lines, settlement)
	items, _ := NewItemJoiner(TaxRate).Join(JoinInput{Settlement: settlement, Releases: releases})
	require.Len(t, items, 3)

	for _, s := range items {
		assert.LessOrEqual(t, s.Released.Count+s.Unreleased.Count+s.Refunded.Count, s.TotalUnits, s.ItemID)
		assert.GreaterOrEqual(t, s.Unreleased.Amount, 0.0, s.ItemID)
		assert.Equal(t, 0.10*s.TotalSales, s.TaxAmount, s.ItemID)
	}
}

func TestJoin_OpeningBalanceDoesNotChangeTotals(t *testing.T) {
	const header = "REPORT,,,,,,,,\nDATE,SOURCE_ID,EXTERNAL_REFERENCE,RECORD_TYPE,DESCRIPTION,NET_CREDIT,NET_DEBIT,ITEM_ID,SALE_DETAIL\n"
	const body = "2024-01-10T10:00:00.000Z,1,o1,release,payment,80.00,0.00,MLB1,\n" +
		"2024-01-11T10:00:00.000Z,2,,payout,payout,0.00,50.00,,\n"
	const opening = "2024-01-01T00:00:00.000Z,0,,initial,initial_available_balance,1200.00,0.00,,\n"
	const footer = "TOTAL,,,,,1280.00,50.00,,\n"

	period := models.NewPeriod(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	settlement := settlementOf(tx("o1", "MLB1", 1, 100, 80, false))
	parser := mercadolivre.NewReleaseParser(time.UTC)

	build := func(report string) (*models.ReleaseSummary, []models.ItemSummary) {
		lines, _, err := parser.Parse(strings.NewReader(report), period)
		require.NoError(t, err)
		summary := NewReleaseProcessor().Process(lines, settlement)
		items, _ := NewItemJoiner(TaxRate).Join(JoinInput{Period: period, Settlement: settlement, Releases: summary})
		return summary, items
	}

	without, itemsWithout := build(header + body + footer)
	with, itemsWith := build(header + opening + body + footer)

	assert.Equal(t, without.BucketTotals, with.BucketTotals)
	assert.Equal(t, without.ReleasedTotal, with.ReleasedTotal)
	assert.Equal(t, without.OperationsWithOrder, with.OperationsWithOrder)
	assert.Equal(t, itemsWithout, itemsWith)
}

func TestJoin_CostAdvertisingAndProfit(t *testing.T) {
	settlement := settlementOf(
		tx("o1", "MLB1", 2, 200, 150, false),
		tx("o2", "MLB1", 2, 200, 150, false),
	)
	releases := NewReleaseProcessor().Process([]models.ReleaseLine{releaseLine("o1", "payment", 150, 0)}, settlement)
	inventory := map[string]models.InventoryItem{
		"MLB1": {ItemID: "MLB1", Purchases: []models.Purchase{
			{Quantity: 1, UnitCost: 40, Date: time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)},
			{Quantity: 10, UnitCost: 30, Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		}},
	}
	ads := map[string]models.AdvertisingItem{"MLB1": {ItemID: "MLB1", Cost: 20, Units: 3, Clicks: 90}}
	period := models.NewPeriod(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))

	items, totals := NewItemJoiner(TaxRate).Join(JoinInput{
		Period:      period,
		Settlement:  settlement,
		Releases:    releases,
		Inventory:   inventory,
		Advertising: ads,
	})
	s := findItem(t, items, "MLB1")

	assert.True(t, s.HasCostBasis)
	assert.InDelta(t, 30.0, s.AvgUnitCost, 1e-9)
	assert.InDelta(t, 40.0, s.TaxAmount, 1e-9)
	assert.InDelta(t, 100.0, s.SalesPerUnit, 1e-9)
	assert.InDelta(t, 75.0, s.RepassePerUnit, 1e-9)
	assert.InDelta(t, 5.0, s.AdCostPerUnit, 1e-9)
	assert.InDelta(t, 10.0, s.TaxPerUnit, 1e-9)
	assert.InDelta(t, 100.0, s.SalesPerReleasedUnit, 1e-9)
	assert.InDelta(t, 75.0, s.RepassePerReleasedUnit, 1e-9)
	assert.InDelta(t, 5.0, s.AdCostPerReleasedUnit, 1e-9)
	assert.InDelta(t, 10.0, s.TaxPerReleasedUnit, 1e-9)
	assert.Equal(t, 3, s.AdUnits)
	assert.Equal(t, 90, s.AdClicks)

	// 300 repasse - 120 cost - 20 ads - 40 tax
	assert.InDelta(t, 120.0, s.TotalCost, 1e-9)
	assert.InDelta(t, 120.0, s.ProfitTotal, 1e-9)
	// 150 - (30+5+10)*2
	assert.InDelta(t, 60.0, s.ProfitReleased, 1e-9)
	// 60 + 150 - 45*2
	assert.InDelta(t, 120.0, s.ProfitProjected, 1e-9)
	assert.InDelta(t, 30.0, s.MarginPercent, 1e-9)
	assert.InDelta(t, 30.0, totals.MarginPercent, 1e-9)
}

func TestJoin_PerReleasedUnitUsesReleasedShare(t *testing.T) {
	settlement := settlementOf(
		tx("o1", "MLB1", 2, 300, 240, false),
		tx("o2", "MLB1", 2, 100, 80, false),
	)
	releases := NewReleaseProcessor().Process([]models.ReleaseLine{releaseLine("o1", "payment", 240, 0)}, settlement)
	inventory := map[string]models.InventoryItem{
		"MLB1": {ItemID: "MLB1", Purchases: []models.Purchase{
			{Quantity: 10, UnitCost: 25, Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		}},
	}
	ads := map[string]models.AdvertisingItem{"MLB1": {ItemID: "MLB1", Cost: 40}}
	period := models.NewPeriod(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))

	items, _ := NewItemJoiner(0.1).Join(JoinInput{
		Period:      period,
		Settlement:  settlement,
		Releases:    releases,
		Inventory:   inventory,
		Advertising: ads,
	})
	s := findItem(t, items, "MLB1")
	require.Equal(t, 2, s.Released.Count)

	assert.InDelta(t, 150.0, s.SalesPerReleasedUnit, 1e-9)
	assert.InDelta(t, 120.0, s.RepassePerReleasedUnit, 1e-9)
	assert.InDelta(t, 25.0, s.CostPerReleasedUnit, 1e-9)
	// 40 of ads over 4 sold units, 2 of them released
	assert.InDelta(t, 10.0, s.AdCostPerReleasedUnit, 1e-9)
	assert.InDelta(t, s.AdCostPerUnit, s.AdCostPerReleasedUnit, 1e-9)
	// 10% of the 300 released sales
	assert.InDelta(t, 15.0, s.TaxPerReleasedUnit, 1e-9)
	assert.InDelta(t, 10.0, s.TaxPerUnit, 1e-9)
}

func TestJoin_SortedBySalesWithZeroGuards(t *testing.T) {
	settlement := settlementOf(
		tx("o1", "SMALL", 1, 10, 7, false),
		tx("o2", "BIG", 1, 1000, 700, false),
		tx("o3", "FREE", 1, 0, 0, true),
	)
	items, totals := NewItemJoiner(TaxRate).Join(JoinInput{Settlement: settlement})
	require.Len(t, items, 3)
	assert.Equal(t, []string{"BIG", "SMALL", "FREE"}, []string{items[0].ItemID, items[1].ItemID, items[2].ItemID})

	free := items[2]
	assert.Equal(t, 0.0, free.MarginPercent)
	assert.Equal(t, 0.0, free.SalesPerReleasedUnit)
	assert.False(t, free.HasCostBasis)
	assert.Equal(t, 3, totals.TotalUnits)
	assert.Equal(t, 3, totals.OrderCount)
}

func TestJoin_NilSettlement(t *testing.T) {
	items, totals := NewItemJoiner(TaxRate).Join(JoinInput{})
	assert.Empty(t, items)
	assert.Equal(t, models.ItemTotals{}, totals)
}
