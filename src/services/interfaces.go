// backend/src/services/interfaces.go
package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/username/hermes/backend/src/models"
	"github.com/username/hermes/backend/src/utils"
)

const (
	ckFinanceReport        = "finance_report_%s"
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
	ReportBuildTimeout     = 2 * time.Minute
)

// Define common service errors
var (
	ErrSalesUnavailable = errors.New("sales data unavailable")
	ErrInvalidPeriod    = utils.ErrInvalidPeriod
	ErrReportParsing    = errors.New("release report parsing failed")
	ErrNoReleaseReport  = errors.New("no release report available")
	ErrUpstreamStatus   = errors.New("upstream returned non-OK status")
)

// SalesSource provides raw orders and the exact net received per order.
type SalesSource interface {
	FetchOrders(ctx context.Context, period models.Period) ([]models.RawOrder, error)
	// FetchOrderNets may return a partial map together with an error.
	FetchOrderNets(ctx context.Context, orders []models.RawOrder) (map[string]float64, error)
}

// ReleaseSource provides the text of a release report.
type ReleaseSource interface {
	Name() string
	FetchReleaseReport(ctx context.Context) ([]byte, error)
}

// ItemCatalog resolves listing titles for items that no order named.
type ItemCatalog interface {
	FetchItemTitles(ctx context.Context, itemIDs []string) (map[string]string, error)
}

// FinanceService builds and caches the per-period reconciliation report.
type FinanceService interface {
	// GetReport returns the cached report for the period, building it on a miss.
	GetReport(ctx context.Context, period models.Period) (*models.FinanceReport, error)
	// RefreshReport always rebuilds and stores the result if it is the freshest build.
	RefreshReport(ctx context.Context, period models.Period) (*models.FinanceReport, error)
	UploadReleaseReport(ctx context.Context, r io.Reader, filename string, userID int64) (*models.ReleaseReport, error)
	ListReleaseReports(limit int) ([]models.ReleaseReport, error)
	InvalidateCache()
}
