package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reportBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hermes_report_build_duration_seconds",
		Help:    "Time spent building a finance report",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	upstreamFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hermes_upstream_failures_total",
		Help: "Failed fetches per upstream data source",
	}, []string{"source"}) // orders, orders_truncated, nets, releases, inventory, advertising, titles

	releaseParseFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hermes_release_parse_failures_total",
		Help: "Release report lines with an unparseable field",
	}, []string{"kind"}) // invalid_date, invalid_amount

	reportCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hermes_report_cache_requests_total",
		Help: "Finance report cache lookups",
	}, []string{"result"}) // hit, miss

	exactNetRatio = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hermes_exact_net_ratio",
		Help: "Share of transactions in the last built report whose net value is exact",
	})
)
