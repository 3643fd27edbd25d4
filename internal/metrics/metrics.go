// Package metrics 流水线的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SitesProcessed 按状态统计的站点处理数
	SitesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "configurator_sites_processed_total",
			Help: "Total number of sites processed, by outcome status",
		},
		[]string{"status"},
	)

	// WarningsTotal 按类型统计的警告数
	WarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "configurator_warnings_total",
			Help: "Total number of per-site resolution warnings, by kind",
		},
		[]string{"kind"},
	)

	// SiteDuration 单站点处理耗时
	SiteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "configurator_site_duration_seconds",
			Help:    "Time taken to process a single site",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// RunsTotal 批次运行数
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "configurator_runs_total",
			Help: "Total number of pipeline runs, by final status",
		},
		[]string{"status"},
	)
)
