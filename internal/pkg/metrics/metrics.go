package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 抓取相关指标。
var (
	// ScrapeRequestsTotal 按零售商与结果状态统计的抓取请求数。
	ScrapeRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricehawk",
		Subsystem: "scraper",
		Name:      "requests_total",
		Help:      "Total scrape requests by retailer and status.",
	}, []string{"retailer", "status"})

	// ScrapeDuration 按零售商统计的抓取耗时。
	ScrapeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pricehawk",
		Subsystem: "scraper",
		Name:      "request_duration_seconds",
		Help:      "Scrape request duration by retailer.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"retailer"})

	// ItemsDroppedTotal 规范化阶段因字段不合法被丢弃的条目数。
	ItemsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricehawk",
		Subsystem: "scraper",
		Name:      "items_dropped_total",
		Help:      "Items dropped during normalization by retailer and reason.",
	}, []string{"retailer", "reason"})

	// DemoFallbackTotal 演示数据兜底被触发的次数。
	DemoFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pricehawk",
		Subsystem: "scraper",
		Name:      "demo_fallback_total",
		Help:      "Times the demo fallback replaced an empty result set.",
	})
)

// 存储与告警相关指标。
var (
	// ObservationsAppendedTotal 实际写入的价格观测数（不含幂等去重）。
	ObservationsAppendedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pricehawk",
		Subsystem: "store",
		Name:      "observations_appended_total",
		Help:      "Price observations actually inserted (duplicates excluded).",
	})

	// StatsCacheOps 统计缓存命中/未命中计数。
	StatsCacheOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricehawk",
		Subsystem: "store",
		Name:      "stats_cache_ops_total",
		Help:      "Stats cache operations by outcome (hit/miss/invalidate).",
	}, []string{"outcome"})

	// AlertsTriggeredTotal 被触发的告警数。
	AlertsTriggeredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricehawk",
		Subsystem: "alerts",
		Name:      "triggered_total",
		Help:      "Alerts triggered by condition.",
	}, []string{"condition"})

	// NotifyFailuresTotal 通知派发失败数。
	NotifyFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pricehawk",
		Subsystem: "alerts",
		Name:      "notify_failures_total",
		Help:      "Notification dispatch failures.",
	})
)

// 限流相关指标。
var (
	// RateLimitWaitDuration 限流等待耗时。
	RateLimitWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pricehawk",
		Subsystem: "ratelimit",
		Name:      "wait_duration_seconds",
		Help:      "Time spent waiting for a rate limit token.",
		Buckets:   prometheus.DefBuckets,
	})

	// RateLimitTimeoutTotal 限流等待超时次数。
	RateLimitTimeoutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pricehawk",
		Subsystem: "ratelimit",
		Name:      "timeout_total",
		Help:      "Rate limit waits aborted by context cancellation.",
	})
)
