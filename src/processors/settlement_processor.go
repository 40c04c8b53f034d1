// src/processors/settlement_processor.go
package processors

import (
	"strings"
	"time"

	"github.com/username/hermes/backend/src/logger"
	"github.com/username/hermes/backend/src/models"
)

var excludedPaymentStatuses = map[string]bool{
	"cancelled": true,
	"rejected":  true,
}

var orderDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type settlementProcessorImpl struct {
	netRatio float64
}

// NewSettlementProcessor creates a SettlementProcessor. A non-positive ratio
// falls back to EstimatedNetRatio.
func NewSettlementProcessor(netRatio float64) SettlementProcessor {
	if netRatio <= 0 {
		netRatio = EstimatedNetRatio
	}
	return &settlementProcessorImpl{netRatio: netRatio}
}

func (p *settlementProcessorImpl) Process(orders []models.RawOrder) *models.SettlementResult {
	result := &models.SettlementResult{Transactions: make([]models.SettlementTransaction, 0, len(orders))}

	for _, order := range orders {
		tx := p.aggregateOrder(order)
		if tx.SourceID == "" {
			result.UnpaidOrders++
			logger.L.Debug("Settlement: order without valid payments", "orderID", order.ID.String())
		}
		result.Transactions = append(result.Transactions, tx)
	}

	recomputeTotals(result)
	return result
}

func (p *settlementProcessorImpl) aggregateOrder(order models.RawOrder) models.SettlementTransaction {
	var gross float64
	var main *models.RawPayment
	refunded := false

	for i := range order.Payments {
		pay := &order.Payments[i]
		if pay.StatusDetail == "bpp_refunded" || pay.Status == "refunded" {
			refunded = true
		}
		if !IsValidPayment(*pay) {
			continue
		}
		gross += pay.TransactionAmount
		if main == nil || pay.TransactionAmount > main.TransactionAmount {
			main = pay
		}
	}

	tx := models.SettlementTransaction{
		OrderID:    order.ID.String(),
		Units:      orderUnits(order.OrderItems),
		GrossValue: gross,
		NetValue:   gross * p.netRatio,
		IsRefunded: refunded,
	}

	// Without a surviving payment the order keeps gross 0 and its own date.
	if main != nil {
		tx.SourceID = main.ID.String()
		tx.Date = firstValidDate(main.DateApproved, main.DateCreated, order.DateCreated)
	} else {
		tx.Date = firstValidDate(order.DateCreated, order.DateClosed)
	}

	if len(order.OrderItems) > 0 {
		first := order.OrderItems[0].Item
		tx.ItemID = first.ID
		tx.Title = first.Title
		tx.Group = first.CategoryID
	}

	return tx
}

// IsValidPayment reports whether a payment counts toward gross sales.
func IsValidPayment(p models.RawPayment) bool {
	return p.TransactionAmount > 0 && !excludedPaymentStatuses[strings.ToLower(p.Status)]
}

// orderUnits sums item quantities. Items without a positive quantity count as
// one unit and an order without items is one unit.
func orderUnits(items []models.RawOrderItem) int {
	if len(items) == 0 {
		return 1
	}
	units := 0
	for _, it := range items {
		if it.Quantity > 0 {
			units += it.Quantity
		} else {
			units++
		}
	}
	return units
}

func firstValidDate(values ...string) time.Time {
	for _, v := range values {
		if t, ok := ParseOrderDate(v); ok {
			return t
		}
	}
	return time.Time{}
}

// ParseOrderDate reads the timestamp formats used by orders and payments.
func ParseOrderDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range orderDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (p *settlementProcessorImpl) ApplyExactNetValues(result *models.SettlementResult, nets map[string]float64) int {
	if result == nil || len(nets) == 0 {
		return 0
	}
	applied := 0
	for i := range result.Transactions {
		tx := &result.Transactions[i]
		if net, ok := nets[tx.OrderID]; ok {
			tx.NetValue = net
			tx.NetIsExact = true
			applied++
		}
	}
	recomputeTotals(result)
	return applied
}

// recomputeTotals rebuilds the running totals. Refunded orders stay in the
// transaction list but are left out of the totals.
func recomputeTotals(result *models.SettlementResult) {
	result.TotalGrossSales = 0
	result.TotalNetSales = 0
	result.RefundedCount = 0
	for _, tx := range result.Transactions {
		if tx.IsRefunded {
			result.RefundedCount++
			continue
		}
		result.TotalGrossSales += tx.GrossValue
		result.TotalNetSales += tx.NetValue
	}
}
