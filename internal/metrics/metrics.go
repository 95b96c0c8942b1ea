// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/profileman/internal/model"
)

// MetricsCollector はメトリクス収集のインターフェース。
// オーケストレーターやワーカーから利用する。
type MetricsCollector interface {
	RecordSyncSuccess(platform model.Platform)
	RecordSyncFailure(platform model.Platform, category model.SyncErrorCategory)
	RecordSyncLatency(platform model.Platform, duration time.Duration)
	RecordTokenRefresh(platform model.Platform, success bool)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	syncSuccess  *prometheus.CounterVec
	syncFail     *prometheus.CounterVec
	syncLatency  *prometheus.HistogramVec
	tokenRefresh *prometheus.CounterVec
	httpStatus   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profileman_sync_success_total",
			Help: "プラットフォーム別の同期成功の合計数",
		}, []string{"platform"}),
		syncFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profileman_sync_fail_total",
			Help: "プラットフォーム別・エラー分類別の同期失敗の合計数",
		}, []string{"platform", "category"}),
		syncLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "profileman_sync_latency_seconds",
			Help:    "プラットフォーム別の同期レイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"platform"}),
		tokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profileman_token_refresh_total",
			Help: "プラットフォーム別・結果別のトークンリフレッシュ数",
		}, []string{"platform", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profileman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.syncSuccess,
		c.syncFail,
		c.syncLatency,
		c.tokenRefresh,
		c.httpStatus,
	)

	return c
}

// RecordSyncSuccess は同期成功を記録する。
func (c *Collector) RecordSyncSuccess(platform model.Platform) {
	c.syncSuccess.WithLabelValues(string(platform)).Inc()
}

// RecordSyncFailure は同期失敗をエラー分類付きで記録する。
func (c *Collector) RecordSyncFailure(platform model.Platform, category model.SyncErrorCategory) {
	c.syncFail.WithLabelValues(string(platform), string(category)).Inc()
}

// RecordSyncLatency は同期のレイテンシを記録する。
func (c *Collector) RecordSyncLatency(platform model.Platform, duration time.Duration) {
	c.syncLatency.WithLabelValues(string(platform)).Observe(duration.Seconds())
}

// RecordTokenRefresh はトークンリフレッシュの結果を記録する。
func (c *Collector) RecordTokenRefresh(platform model.Platform, success bool) {
	result := "success"
	if !success {
		result = "fail"
	}
	c.tokenRefresh.WithLabelValues(string(platform), result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
