package services

import (
	"context"
	"time"

	"github.com/username/hermes/backend/src/logger"
	"github.com/username/hermes/backend/src/utils"
)

// ReportRefresher rebuilds the current month's report in the background so
// the first request of the day does not pay for the upstream calls.
type ReportRefresher struct {
	finance  FinanceService
	interval time.Duration
	loc      *time.Location
	now      func() time.Time
}

func NewReportRefresher(finance FinanceService, interval time.Duration, loc *time.Location) *ReportRefresher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReportRefresher{finance: finance, interval: interval, loc: loc, now: time.Now}
}

// Run refreshes once immediately and then on every tick until ctx is done.
func (r *ReportRefresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	logger.L.Info("Report refresher started", "interval", r.interval.String())
	r.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.L.Info("Report refresher stopped")
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *ReportRefresher) refresh(ctx context.Context) {
	period := utils.CurrentMonth(r.now().In(r.loc))
	if _, err := r.finance.RefreshReport(ctx, period); err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.L.Error("Background report refresh failed", "period", period.Key(), "error", err)
	}
}
