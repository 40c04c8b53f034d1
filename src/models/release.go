package models

import "time"

// ReleaseBucket classifies release-report lines that are not tied to an order.
type ReleaseBucket string

const (
	BucketClaims           ReleaseBucket = "claims"
	BucketDebts            ReleaseBucket = "debts"
	BucketTransfers        ReleaseBucket = "transfers"
	BucketCreditCard       ReleaseBucket = "credit_card"
	BucketShippingCashback ReleaseBucket = "shipping_cashback"
	BucketUncategorized    ReleaseBucket = "uncategorized"
)

// AllReleaseBuckets lists the buckets in presentation order.
var AllReleaseBuckets = []ReleaseBucket{
	BucketClaims,
	BucketDebts,
	BucketTransfers,
	BucketCreditCard,
	BucketShippingCashback,
	BucketUncategorized,
}

// ReleaseLine is one data line of the release report.
type ReleaseLine struct {
	Date              time.Time
	SourceID          string
	ExternalReference string
	RecordType        string
	Description       string
	NetCredit         float64
	NetDebit          float64
	ItemID            string
	SaleDetail        string
}

func (l ReleaseLine) NetAmount() float64 {
	return l.NetCredit - l.NetDebit
}

type ReleaseOperation struct {
	OrderID     string        `json:"orderId,omitempty"`
	ItemID      string        `json:"itemId"`
	Title       string        `json:"title"`
	Amount      float64       `json:"amount"`
	Description string        `json:"description"`
	SourceID    string        `json:"sourceId"`
	Date        time.Time     `json:"date"`
	Bucket      ReleaseBucket `json:"bucket,omitempty"`
	// FromSettlement is set when Amount came from the order's settlement net value.
	FromSettlement bool `json:"fromSettlement"`
}

// ReleaseParseStats counts what the parser dropped or repaired.
type ReleaseParseStats struct {
	DataLines      int `json:"dataLines"`
	OutOfPeriod    int `json:"outOfPeriod"`
	OpeningBalance int `json:"openingBalance"`
	InvalidDates   int `json:"invalidDates"`
	InvalidAmounts int `json:"invalidAmounts"`
	ZeroAmount     int `json:"zeroAmount"`
}

type ReleaseSummary struct {
	OperationsWithOrder []ReleaseOperation        `json:"operationsWithOrder"`
	OtherOperations     []ReleaseOperation        `json:"otherOperations"`
	BucketTotals        map[ReleaseBucket]float64 `json:"bucketTotals"`
	ReleasedTotal       float64                   `json:"releasedTotal"`
	Stats               ReleaseParseStats         `json:"stats"`
}

// NewReleaseSummary returns an empty summary with every bucket present.
func NewReleaseSummary() *ReleaseSummary {
	totals := make(map[ReleaseBucket]float64, len(AllReleaseBuckets))
	for _, b := range AllReleaseBuckets {
		totals[b] = 0
	}
	return &ReleaseSummary{
		OperationsWithOrder: []ReleaseOperation{},
		OtherOperations:     []ReleaseOperation{},
		BucketTotals:        totals,
	}
}

// AmountByOrder sums the release amounts per order id.
func (s *ReleaseSummary) AmountByOrder() map[string]float64 {
	totals := make(map[string]float64)
	for _, op := range s.OperationsWithOrder {
		totals[op.OrderID] += op.Amount
	}
	return totals
}

// ReleaseReport is an uploaded release report kept in the database.
type ReleaseReport struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"sizeBytes"`
	LineCount  int       `json:"lineCount"`
	Content    string    `json:"-"`
	UploadedBy int64     `json:"uploadedBy"`
	UploadedAt time.Time `json:"uploadedAt"`
}
