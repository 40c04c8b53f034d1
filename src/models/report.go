// src/models/report.go
package models

import (
	"encoding/json"
	"time"
)

const PeriodDateLayout = "2006-01-02"

// Period is an inclusive calendar range: Start at 00:00:00, End at the last
// instant of its day.
type Period struct {
	Start time.Time
	End   time.Time
}

func NewPeriod(start, end time.Time) Period {
	return Period{
		Start: time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location()),
		End:   time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), end.Location()),
	}
}

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Key identifies the period in caches.
func (p Period) Key() string {
	return p.Start.Format(PeriodDateLayout) + "_" + p.End.Format(PeriodDateLayout)
}

func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"start": p.Start.Format(PeriodDateLayout),
		"end":   p.End.Format(PeriodDateLayout),
	})
}

// UnitAmount is a unit count with its money amount.
type UnitAmount struct {
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// ItemSummary is the per-item financial row. It is always computed, never stored.
type ItemSummary struct {
	ItemID     string `json:"itemId"`
	Title      string `json:"title"`
	OrderCount int    `json:"orderCount"`

	TotalSales   float64 `json:"totalSales"`
	TotalUnits   int     `json:"totalUnits"`
	TotalRepasse float64 `json:"totalRepasse"`
	TotalFees    float64 `json:"totalFees"`

	Released      UnitAmount `json:"released"`
	ReleasedSales float64    `json:"releasedSales"`
	Refunded      UnitAmount `json:"refunded"`
	Unreleased    UnitAmount `json:"unreleased"`

	TaxAmount float64 `json:"taxAmount"`

	AvgUnitCost  float64 `json:"avgUnitCost"`
	HasCostBasis bool    `json:"hasCostBasis"`
	TotalCost    float64 `json:"totalCost"`

	AdCost   float64 `json:"adCost"`
	AdUnits  int     `json:"adUnits"`
	AdClicks int     `json:"adClicks"`

	SalesPerUnit   float64 `json:"salesPerUnit"`
	RepassePerUnit float64 `json:"repassePerUnit"`
	CostPerUnit    float64 `json:"costPerUnit"`
	AdCostPerUnit  float64 `json:"adCostPerUnit"`
	TaxPerUnit     float64 `json:"taxPerUnit"`

	SalesPerReleasedUnit   float64 `json:"salesPerReleasedUnit"`
	RepassePerReleasedUnit float64 `json:"repassePerReleasedUnit"`
	CostPerReleasedUnit    float64 `json:"costPerReleasedUnit"`
	AdCostPerReleasedUnit  float64 `json:"adCostPerReleasedUnit"`
	TaxPerReleasedUnit     float64 `json:"taxPerReleasedUnit"`

	ProfitTotal     float64 `json:"profitTotal"`
	ProfitReleased  float64 `json:"profitReleased"`
	ProfitProjected float64 `json:"profitProjected"`
	MarginPercent   float64 `json:"marginPercent"`
}

// ItemTotals is the column-totals row of the per-item table.
type ItemTotals struct {
	OrderCount      int        `json:"orderCount"`
	TotalSales      float64    `json:"totalSales"`
	TotalUnits      int        `json:"totalUnits"`
	TotalRepasse    float64    `json:"totalRepasse"`
	TotalFees       float64    `json:"totalFees"`
	Released        UnitAmount `json:"released"`
	ReleasedSales   float64    `json:"releasedSales"`
	Refunded        UnitAmount `json:"refunded"`
	Unreleased      UnitAmount `json:"unreleased"`
	TaxAmount       float64    `json:"taxAmount"`
	TotalCost       float64    `json:"totalCost"`
	AdCost          float64    `json:"adCost"`
	AdUnits         int        `json:"adUnits"`
	AdClicks        int        `json:"adClicks"`
	ProfitTotal     float64    `json:"profitTotal"`
	ProfitReleased  float64    `json:"profitReleased"`
	ProfitProjected float64    `json:"profitProjected"`
	MarginPercent   float64    `json:"marginPercent"`
}

type FinanceReport struct {
	Period          Period         `json:"period"`
	GeneratedAt     time.Time      `json:"generatedAt"`
	OrderCount      int            `json:"orderCount"`
	TotalGrossSales float64        `json:"totalGrossSales"`
	TotalNetSales   float64        `json:"totalNetSales"`
	RefundedCount   int            `json:"refundedCount"`
	UnpaidOrders    int            `json:"unpaidOrders"`
	ExactNetCount   int            `json:"exactNetCount"`
	ReleaseSource   string         `json:"releaseSource"`
	Releases        ReleaseSummary `json:"releases"`
	Items           []ItemSummary  `json:"items"`
	Totals          ItemTotals     `json:"totals"`
	Warnings        []string       `json:"warnings"`
}
