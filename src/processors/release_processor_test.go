package processors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/hermes/backend/src/models"
)

func releaseLine(orderID, description string, credit, debit float64) models.ReleaseLine {
	return models.ReleaseLine{
		Date:              time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		SourceID:          "src-" + orderID,
		ExternalReference: orderID,
		Description:       description,
		NetCredit:         credit,
		NetDebit:          debit,
	}
}

func TestRelease_PaymentsWithoutSettlementUseCredit(t *testing.T) {
	lines := []models.ReleaseLine{
		releaseLine("123", "payment", 100, 0),
		releaseLine("123", "payment", 50, 0),
	}

	summary := NewReleaseProcessor().Process(lines, &models.SettlementResult{})
	require.Len(t, summary.OperationsWithOrder, 2)
	assert.Equal(t, 150.0, summary.AmountByOrder()["123"])
	assert.Equal(t, 150.0, summary.ReleasedTotal)
	assert.False(t, summary.OperationsWithOrder[0].FromSettlement)
}

func TestRelease_PaymentUsesSettlementNet(t *testing.T) {
	settlement := &models.SettlementResult{Transactions: []models.SettlementTransaction{
		{OrderID: "777", ItemID: "MLB7", Title: "Luminária", NetValue: 61.25},
	}}
	lines := []models.ReleaseLine{releaseLine("777", "payment", 64, 0)}

	summary := NewReleaseProcessor().Process(lines, settlement)
	require.Len(t, summary.OperationsWithOrder, 1)
	op := summary.OperationsWithOrder[0]
	assert.Equal(t, 61.25, op.Amount)
	assert.True(t, op.FromSettlement)
	assert.Equal(t, "MLB7", op.ItemID)
	assert.Equal(t, "Luminária", op.Title)
}

func TestRelease_NilSettlementAndUnkeyedTransactions(t *testing.T) {
	lines := []models.ReleaseLine{releaseLine("9", "payment", 30, 0)}

	summary := NewReleaseProcessor().Process(lines, nil)
	require.Len(t, summary.OperationsWithOrder, 1)
	assert.Equal(t, 30.0, summary.OperationsWithOrder[0].Amount)

	settlement := &models.SettlementResult{Transactions: []models.SettlementTransaction{
		{OrderID: "", ItemID: "MLB0", NetValue: 99},
		{OrderID: "9", ItemID: "MLB9", NetValue: 25},
	}}
	index := settlement.ByOrder()
	assert.Len(t, index, 1)
	assert.Equal(t, "MLB9", index["9"].ItemID)

	summary = NewReleaseProcessor().Process(lines, settlement)
	assert.Equal(t, 25.0, summary.OperationsWithOrder[0].Amount)
	assert.True(t, summary.OperationsWithOrder[0].FromSettlement)
}

func TestRelease_Buckets(t *testing.T) {
	tests := []struct {
		description string
		want        models.ReleaseBucket
	}{
		{"reserve_for_dispute", models.BucketClaims},
		{"reserve_for_bpp_shipping_return", models.BucketClaims},
		{"refund", models.BucketClaims},
		{"reserve_for_refund", models.BucketClaims},
		{"mediation", models.BucketClaims},
		{"reserve_for_debt_payment", models.BucketDebts},
		{"payout", models.BucketTransfers},
		{"reserve_for_payout", models.BucketTransfers},
		{"credit_payment", models.BucketCreditCard},
		{"shipping", models.BucketShippingCashback},
		{"cashback", models.BucketShippingCashback},
		{"Payout", models.BucketUncategorized},
		{"tax_withholding", models.BucketUncategorized},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			assert.Equal(t, tt.want, BucketFor(tt.description))
		})
	}
}

func TestRelease_OtherOperationsAndTotals(t *testing.T) {
	lines := []models.ReleaseLine{
		releaseLine("", "payout", 0, 500),
		releaseLine("9", "refund", 0, 40),
		releaseLine("9", "mediation", 10, 0),
		releaseLine("", "shipping", 0, 0),
		releaseLine("", "payment", 30, 0),
		releaseLine("", "something_new", 5, 2),
	}

	summary := NewReleaseProcessor().Process(lines, nil)
	assert.Empty(t, summary.OperationsWithOrder)
	assert.Len(t, summary.OtherOperations, 5)
	assert.Equal(t, 1, summary.Stats.ZeroAmount)

	assert.Equal(t, -500.0, summary.BucketTotals[models.BucketTransfers])
	assert.Equal(t, -30.0, summary.BucketTotals[models.BucketClaims])
	assert.Equal(t, 0.0, summary.BucketTotals[models.BucketShippingCashback])
	// A payment without an order reference is not a release.
	assert.Equal(t, 33.0, summary.BucketTotals[models.BucketUncategorized])
	assert.Len(t, summary.BucketTotals, len(models.AllReleaseBuckets))
}
