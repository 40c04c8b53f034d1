package services

import (
	"github.com/username/hermes/backend/src/models"
	"github.com/username/hermes/backend/src/utils"
)

// Money values are kept unrounded through the pipeline and rounded to cents
// only here, right before they leave the service.

func roundUnitAmount(u models.UnitAmount) models.UnitAmount {
	return models.UnitAmount{Count: u.Count, Amount: utils.RoundMoney(u.Amount)}
}

func roundItems(items []models.ItemSummary) []models.ItemSummary {
	out := make([]models.ItemSummary, len(items))
	for i, s := range items {
		s.TotalSales = utils.RoundMoney(s.TotalSales)
		s.TotalRepasse = utils.RoundMoney(s.TotalRepasse)
		s.TotalFees = utils.RoundMoney(s.TotalFees)
		s.Released = roundUnitAmount(s.Released)
		s.ReleasedSales = utils.RoundMoney(s.ReleasedSales)
		s.Refunded = roundUnitAmount(s.Refunded)
		s.Unreleased = roundUnitAmount(s.Unreleased)
		s.TaxAmount = utils.RoundMoney(s.TaxAmount)
		s.AvgUnitCost = utils.RoundMoney(s.AvgUnitCost)
		s.TotalCost = utils.RoundMoney(s.TotalCost)
		s.AdCost = utils.RoundMoney(s.AdCost)

		s.SalesPerUnit = utils.RoundMoney(s.SalesPerUnit)
		s.RepassePerUnit = utils.RoundMoney(s.RepassePerUnit)
		s.CostPerUnit = utils.RoundMoney(s.CostPerUnit)
		s.AdCostPerUnit = utils.RoundMoney(s.AdCostPerUnit)
		s.TaxPerUnit = utils.RoundMoney(s.TaxPerUnit)
		s.SalesPerReleasedUnit = utils.RoundMoney(s.SalesPerReleasedUnit)
		s.RepassePerReleasedUnit = utils.RoundMoney(s.RepassePerReleasedUnit)
		s.CostPerReleasedUnit = utils.RoundMoney(s.CostPerReleasedUnit)
		s.AdCostPerReleasedUnit = utils.RoundMoney(s.AdCostPerReleasedUnit)
		s.TaxPerReleasedUnit = utils.RoundMoney(s.TaxPerReleasedUnit)

		s.ProfitTotal = utils.RoundMoney(s.ProfitTotal)
		s.ProfitReleased = utils.RoundMoney(s.ProfitReleased)
		s.ProfitProjected = utils.RoundMoney(s.ProfitProjected)
		s.MarginPercent = utils.RoundFloat(s.MarginPercent, 2)
		out[i] = s
	}
	return out
}

func roundTotals(t models.ItemTotals) models.ItemTotals {
	t.TotalSales = utils.RoundMoney(t.TotalSales)
	t.TotalRepasse = utils.RoundMoney(t.TotalRepasse)
	t.TotalFees = utils.RoundMoney(t.TotalFees)
	t.Released = roundUnitAmount(t.Released)
	t.ReleasedSales = utils.RoundMoney(t.ReleasedSales)
	t.Refunded = roundUnitAmount(t.Refunded)
	t.Unreleased = roundUnitAmount(t.Unreleased)
	t.TaxAmount = utils.RoundMoney(t.TaxAmount)
	t.TotalCost = utils.RoundMoney(t.TotalCost)
	t.AdCost = utils.RoundMoney(t.AdCost)
	t.ProfitTotal = utils.RoundMoney(t.ProfitTotal)
	t.ProfitReleased = utils.RoundMoney(t.ProfitReleased)
	t.ProfitProjected = utils.RoundMoney(t.ProfitProjected)
	t.MarginPercent = utils.RoundFloat(t.MarginPercent, 2)
	return t
}

func roundReleases(s models.ReleaseSummary) models.ReleaseSummary {
	out := s
	out.OperationsWithOrder = roundOperations(s.OperationsWithOrder)
	out.OtherOperations = roundOperations(s.OtherOperations)
	out.BucketTotals = make(map[models.ReleaseBucket]float64, len(s.BucketTotals))
	for b, v := range s.BucketTotals {
		out.BucketTotals[b] = utils.RoundMoney(v)
	}
	out.ReleasedTotal = utils.RoundMoney(s.ReleasedTotal)
	return out
}

func roundOperations(ops []models.ReleaseOperation) []models.ReleaseOperation {
	out := make([]models.ReleaseOperation, len(ops))
	for i, op := range ops {
		op.Amount = utils.RoundMoney(op.Amount)
		out[i] = op
	}
	return out
}
