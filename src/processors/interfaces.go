// src/processors/interfaces.go
package processors

import (
	"github.com/username/hermes/backend/src/models"
)

const (
	// EstimatedNetRatio is the share of the gross value assumed to reach the
	// seller until the exact net is known.
	EstimatedNetRatio = 0.70
	// TaxRate is the flat tax estimate applied to gross sales.
	TaxRate = 0.10
)

// SettlementProcessor aggregates raw orders into settlement transactions.
type SettlementProcessor interface {
	Process(orders []models.RawOrder) *models.SettlementResult
	// ApplyExactNetValues overwrites estimated nets with exact ones and
	// recomputes the running totals. It returns how many were overwritten.
	ApplyExactNetValues(result *models.SettlementResult, nets map[string]float64) int
}

// ReleaseProcessor classifies parsed release lines against the settlement.
type ReleaseProcessor interface {
	Process(lines []models.ReleaseLine, settlement *models.SettlementResult) *models.ReleaseSummary
}

// JoinInput is everything the per-item join needs.
type JoinInput struct {
	Period      models.Period
	Settlement  *models.SettlementResult
	Releases    *models.ReleaseSummary
	Inventory   map[string]models.InventoryItem
	Advertising map[string]models.AdvertisingItem
}

// ItemJoiner builds the per-item financial table.
type ItemJoiner interface {
	Join(in JoinInput) ([]models.ItemSummary, models.ItemTotals)
}
