package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	notificationsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookkeeping_notifications_emitted_total",
			Help: "Total number of notifications persisted labeled by notification type",
		},
		[]string{"type"},
	)
	budgetSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookkeeping_budget_evaluations_suppressed_total",
			Help: "Budget evaluations that produced no notification labeled by reason",
		},
		[]string{"reason"},
	)
	summaryCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookkeeping_summary_cache_total",
			Help: "Summary cache lookups labeled by result",
		},
		[]string{"result"},
	)
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookkeeping_http_requests_total",
			Help: "Total number of HTTP requests labeled by method, route and status",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookkeeping_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// 预算评估未产生通知的原因
const (
	ReasonNoBudget     = "no_budget"
	ReasonBelowBand    = "below_threshold"
	ReasonDeduplicated = "deduplicated"
	ReasonPreference   = "preference_disabled"
)

// 汇总缓存查询结果
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// RecordNotification 记录一条已落库的通知
func RecordNotification(notificationType string) {
	if notificationType == "" {
		notificationType = "unknown"
	}
	notificationsEmittedTotal.WithLabelValues(notificationType).Inc()
}

// RecordBudgetSuppressed 记录一次未发出通知的预算评估
func RecordBudgetSuppressed(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	budgetSuppressedTotal.WithLabelValues(reason).Inc()
}

// RecordSummaryCache 记录汇总缓存查询结果
func RecordSummaryCache(result string) {
	summaryCacheTotal.WithLabelValues(result).Inc()
}

// RecordHTTPRequest 记录一次 HTTP 请求
// route 使用路由模板（如 /api/v1/transactions/:id），避免标签基数膨胀
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler 暴露 /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
