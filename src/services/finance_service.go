// backend/src/services/finance_service.go
package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/username/hermes/backend/src/logger"
	"github.com/username/hermes/backend/src/model"
	"github.com/username/hermes/backend/src/models"
	"github.com/username/hermes/backend/src/parsers/mercadolivre"
	"github.com/username/hermes/backend/src/processors"
	"github.com/username/hermes/backend/src/utils"
)

// cachedReport remembers when its build started so an older build never
// replaces a newer one.
type cachedReport struct {
	report    *models.FinanceReport
	startedAt time.Time
}

type financeServiceImpl struct {
	db                  *sql.DB
	sales               SalesSource
	releaseSources      []ReleaseSource
	catalog             ItemCatalog
	settlementProcessor processors.SettlementProcessor
	releaseProcessor    processors.ReleaseProcessor
	itemJoiner          processors.ItemJoiner
	releaseParser       *mercadolivre.ReleaseParser
	reportCache         *cache.Cache
	cacheExpiration     time.Duration

	builds        singleflight.Group
	mu            sync.Mutex
	invalidatedAt time.Time
	now           func() time.Time
}

// NewFinanceService wires the reconciliation pipeline. releaseSources are
// tried in order; catalog may be nil.
func NewFinanceService(
	db *sql.DB,
	sales SalesSource,
	releaseSources []ReleaseSource,
	catalog ItemCatalog,
	settlementProcessor processors.SettlementProcessor,
	releaseProcessor processors.ReleaseProcessor,
	itemJoiner processors.ItemJoiner,
	releaseParser *mercadolivre.ReleaseParser,
	reportCache *cache.Cache,
	cacheExpiration time.Duration,
) FinanceService {
	if cacheExpiration <= 0 {
		cacheExpiration = DefaultCacheExpiration
	}
	return &financeServiceImpl{
		db:                  db,
		sales:               sales,
		releaseSources:      releaseSources,
		catalog:             catalog,
		settlementProcessor: settlementProcessor,
		releaseProcessor:    releaseProcessor,
		itemJoiner:          itemJoiner,
		releaseParser:       releaseParser,
		reportCache:         reportCache,
		cacheExpiration:     cacheExpiration,
		now:                 time.Now,
	}
}

func (s *financeServiceImpl) GetReport(ctx context.Context, period models.Period) (*models.FinanceReport, error) {
	cacheKey := fmt.Sprintf(ckFinanceReport, period.Key())
	if cached, found := s.reportCache.Get(cacheKey); found {
		reportCacheRequests.WithLabelValues("hit").Inc()
		return cached.(*cachedReport).report, nil
	}
	reportCacheRequests.WithLabelValues("miss").Inc()

	// The shared build outlives any single caller; each caller only waits.
	builds := s.builds.DoChan(cacheKey, func() (interface{}, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ReportBuildTimeout)
		defer cancel()
		return s.RefreshReport(buildCtx, period)
	})
	select {
	case res := <-builds:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.FinanceReport), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *financeServiceImpl) RefreshReport(ctx context.Context, period models.Period) (*models.FinanceReport, error) {
	startedAt := s.now()
	report, err := s.buildReport(ctx, period)
	if err != nil {
		return nil, err
	}
	s.storeIfFresher(fmt.Sprintf(ckFinanceReport, period.Key()), report, startedAt)
	return report, nil
}

func (s *financeServiceImpl) storeIfFresher(key string, report *models.FinanceReport, startedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if startedAt.Before(s.invalidatedAt) {
		logger.L.Debug("Discarding report built before cache invalidation", "key", key)
		return
	}
	if existing, found := s.reportCache.Get(key); found && existing.(*cachedReport).startedAt.After(startedAt) {
		logger.L.Debug("Discarding stale report build", "key", key)
		return
	}
	s.reportCache.Set(key, &cachedReport{report: report, startedAt: startedAt}, s.cacheExpiration)
}

func (s *financeServiceImpl) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidatedAt = s.now()
	s.reportCache.Flush()
	logger.L.Info("Finance report cache cleared")
}

// warningList collects non-fatal problems from concurrent fetches.
type warningList struct {
	mu    sync.Mutex
	items []string
}

func (w *warningList) add(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.items = append(w.items, fmt.Sprintf(format, args...))
}

func (s *financeServiceImpl) buildReport(ctx context.Context, period models.Period) (*models.FinanceReport, error) {
	timer := prometheus.NewTimer(reportBuildDuration)
	defer timer.ObserveDuration()

	log := logger.FromContext(ctx).With("period", period.Key())
	log.Info("Building finance report")

	var (
		orders        []models.RawOrder
		releaseText   []byte
		releaseSource string
		inventory     map[string]models.InventoryItem
		adRows        []models.AdvertisingDaily
		warnings      warningList
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = s.sales.FetchOrders(gctx, period)
		if err != nil {
			upstreamFailures.WithLabelValues("orders").Inc()
			return fmt.Errorf("%w: %v", ErrSalesUnavailable, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		releaseText, releaseSource, err = s.fetchReleaseReport(gctx)
		if err != nil {
			upstreamFailures.WithLabelValues("releases").Inc()
			log.Warn("Release report unavailable", "error", err)
			warnings.add("Relatório de liberações indisponível: %v", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		inventory, err = model.InventoryByItem(s.db)
		if err != nil {
			upstreamFailures.WithLabelValues("inventory").Inc()
			log.Warn("Inventory unavailable", "error", err)
			warnings.add("Estoque indisponível, custos não calculados: %v", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		adRows, err = model.ListAdvertising(s.db, period)
		if err != nil {
			upstreamFailures.WithLabelValues("advertising").Inc()
			log.Warn("Advertising unavailable", "error", err)
			warnings.add("Publicidade indisponível: %v", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error("Finance report build failed", "error", err)
		return nil, err
	}

	settlement := s.settlementProcessor.Process(orders)

	nets, err := s.sales.FetchOrderNets(ctx, orders)
	if err != nil {
		upstreamFailures.WithLabelValues("nets").Inc()
		log.Warn("Exact net lookup failed, using estimates where missing", "error", err, "resolved", len(nets))
		warnings.add("Valores líquidos exatos indisponíveis para parte dos pedidos; usando estimativa de %.0f%%", processors.EstimatedNetRatio*100)
	}
	exact := s.settlementProcessor.ApplyExactNetValues(settlement, nets)
	if n := len(settlement.Transactions); n > 0 {
		exactNetRatio.Set(float64(exact) / float64(n))
	}

	releases := models.NewReleaseSummary()
	if len(releaseText) > 0 {
		lines, stats, err := s.releaseParser.Parse(bytes.NewReader(releaseText), period)
		if err != nil {
			log.Warn("Release report could not be parsed", "error", err, "source", releaseSource)
			warnings.add("%v: %v", ErrReportParsing, err)
		} else {
			releases = s.releaseProcessor.Process(lines, settlement)
			releases.Stats = mergeParseStats(stats, releases.Stats)
			s.reportParseProblems(log, stats, &warnings)
		}
	}

	items, totals := s.itemJoiner.Join(processors.JoinInput{
		Period:      period,
		Settlement:  settlement,
		Releases:    releases,
		Inventory:   inventory,
		Advertising: models.AggregateAdvertising(adRows),
	})
	s.fillMissingTitles(ctx, items, &warnings)

	report := &models.FinanceReport{
		Period:          period,
		GeneratedAt:     s.now(),
		OrderCount:      len(settlement.Transactions),
		TotalGrossSales: utils.RoundMoney(settlement.TotalGrossSales),
		TotalNetSales:   utils.RoundMoney(settlement.TotalNetSales),
		RefundedCount:   settlement.RefundedCount,
		UnpaidOrders:    settlement.UnpaidOrders,
		ExactNetCount:   exact,
		ReleaseSource:   releaseSource,
		Releases:        roundReleases(*releases),
		Items:           roundItems(items),
		Totals:          roundTotals(totals),
		Warnings:        warnings.items,
	}
	if report.Warnings == nil {
		report.Warnings = []string{}
	}

	log.Info("Finance report built",
		"orders", report.OrderCount,
		"items", len(report.Items),
		"exactNets", exact,
		"warnings", len(report.Warnings))
	return report, nil
}

func (s *financeServiceImpl) fetchReleaseReport(ctx context.Context) ([]byte, string, error) {
	var errs []error
	for _, src := range s.releaseSources {
		text, err := src.FetchReleaseReport(ctx)
		if err == nil && len(bytes.TrimSpace(text)) > 0 {
			return text, src.Name(), nil
		}
		if err == nil {
			err = errors.New("empty report")
		}
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
	}
	if len(errs) == 0 {
		return nil, "", ErrNoReleaseReport
	}
	return nil, "", errors.Join(errs...)
}

// mergeParseStats keeps the parser's counters and the processor's zero-amount count.
func mergeParseStats(parsed, processed models.ReleaseParseStats) models.ReleaseParseStats {
	parsed.ZeroAmount = processed.ZeroAmount
	return parsed
}

func (s *financeServiceImpl) reportParseProblems(log *slog.Logger, stats models.ReleaseParseStats, warnings *warningList) {
	if stats.InvalidDates > 0 {
		releaseParseFailures.WithLabelValues("invalid_date").Add(float64(stats.InvalidDates))
		log.Warn("Release lines with invalid dates skipped", "count", stats.InvalidDates)
		warnings.add("%d linhas do relatório de liberações com data inválida foram ignoradas", stats.InvalidDates)
	}
	if stats.InvalidAmounts > 0 {
		releaseParseFailures.WithLabelValues("invalid_amount").Add(float64(stats.InvalidAmounts))
		log.Warn("Release lines with invalid amounts read as zero", "count", stats.InvalidAmounts)
		warnings.add("%d valores inválidos no relatório de liberações foram considerados zero", stats.InvalidAmounts)
	}
}

func (s *financeServiceImpl) fillMissingTitles(ctx context.Context, items []models.ItemSummary, warnings *warningList) {
	if s.catalog == nil {
		return
	}
	var missing []string
	for _, it := range items {
		if it.Title == "" && it.ItemID != "" {
			missing = append(missing, it.ItemID)
		}
	}
	if len(missing) == 0 {
		return
	}
	titles, err := s.catalog.FetchItemTitles(ctx, missing)
	if err != nil {
		upstreamFailures.WithLabelValues("titles").Inc()
		logger.FromContext(ctx).Warn("Item title lookup failed", "error", err)
	}
	for i := range items {
		if t, ok := titles[items[i].ItemID]; ok && items[i].Title == "" {
			items[i].Title = t
		}
	}
}

func (s *financeServiceImpl) UploadReleaseReport(ctx context.Context, r io.Reader, filename string, userID int64) (*models.ReleaseReport, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read release report: %w", err)
	}

	// Reject files the parser cannot read at all before storing them.
	if _, _, err := s.releaseParser.Parse(bytes.NewReader(content), models.Period{}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReportParsing, err)
	}

	lineCount := mercadolivre.CountDataLines(content)
	if lineCount == 0 {
		return nil, fmt.Errorf("%w: report has no data lines", ErrReportParsing)
	}

	report := &models.ReleaseReport{
		Filename:   filename,
		SizeBytes:  int64(len(content)),
		LineCount:  lineCount,
		Content:    string(content),
		UploadedBy: userID,
		UploadedAt: s.now(),
	}
	if err := model.SaveReleaseReport(s.db, report); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Release report uploaded", "filename", filename, "lines", report.LineCount, "bytes", report.SizeBytes)

	s.InvalidateCache()
	return report, nil
}

func (s *financeServiceImpl) ListReleaseReports(limit int) ([]models.ReleaseReport, error) {
	return model.ListReleaseReports(s.db, limit)
}

// StoredReleaseSource serves the most recent release report uploaded to Hermes.
type StoredReleaseSource struct {
	DB *sql.DB
}

func (s StoredReleaseSource) Name() string { return "upload" }

func (s StoredReleaseSource) FetchReleaseReport(ctx context.Context) ([]byte, error) {
	report, err := model.GetLatestReleaseReport(s.DB)
	if err != nil {
		if errors.Is(err, model.ErrNoReleaseReport) {
			return nil, ErrNoReleaseReport
		}
		return nil, err
	}
	return []byte(report.Content), nil
}
