// src/processors/release_processor.go
package processors

import (
	"github.com/username/hermes/backend/src/models"
)

const DescriptionPayment = "payment"

// releaseBuckets maps a release description to its bucket. Anything not
// listed is uncategorized.
var releaseBuckets = map[string]models.ReleaseBucket{
	"reserve_for_dispute":             models.BucketClaims,
	"reserve_for_bpp_shipping_return": models.BucketClaims,
	"refund":                          models.BucketClaims,
	"reserve_for_refund":              models.BucketClaims,
	"mediation":                       models.BucketClaims,
	"reserve_for_debt_payment":        models.BucketDebts,
	"payout":                          models.BucketTransfers,
	"reserve_for_payout":              models.BucketTransfers,
	"credit_payment":                  models.BucketCreditCard,
	"shipping":                        models.BucketShippingCashback,
	"cashback":                        models.BucketShippingCashback,
}

// BucketFor returns the bucket of a description.
func BucketFor(description string) models.ReleaseBucket {
	if b, ok := releaseBuckets[description]; ok {
		return b
	}
	return models.BucketUncategorized
}

type releaseProcessorImpl struct{}

func NewReleaseProcessor() ReleaseProcessor {
	return &releaseProcessorImpl{}
}

// Process splits release lines into order releases and other operations.
// A payment line tied to an order takes the order's settlement net value when
// the order is known, otherwise its own credit.
func (p *releaseProcessorImpl) Process(lines []models.ReleaseLine, settlement *models.SettlementResult) *models.ReleaseSummary {
	summary := models.NewReleaseSummary()

	byOrder := settlement.ByOrder()

	for _, line := range lines {
		op := models.ReleaseOperation{
			OrderID:     line.ExternalReference,
			ItemID:      line.ItemID,
			Description: line.Description,
			SourceID:    line.SourceID,
			Date:        line.Date,
		}

		if line.Description == DescriptionPayment && line.ExternalReference != "" {
			op.Amount = line.NetCredit
			if tx, ok := byOrder[line.ExternalReference]; ok {
				op.Amount = tx.NetValue
				op.FromSettlement = true
				op.Title = tx.Title
				if op.ItemID == "" {
					op.ItemID = tx.ItemID
				}
			}
			summary.OperationsWithOrder = append(summary.OperationsWithOrder, op)
			summary.ReleasedTotal += op.Amount
			continue
		}

		net := line.NetAmount()
		if net == 0 {
			summary.Stats.ZeroAmount++
			continue
		}
		op.Amount = net
		op.Bucket = BucketFor(line.Description)
		if tx, ok := byOrder[line.ExternalReference]; ok {
			op.Title = tx.Title
		}
		summary.OtherOperations = append(summary.OtherOperations, op)
		summary.BucketTotals[op.Bucket] += net
	}

	return summary
}
