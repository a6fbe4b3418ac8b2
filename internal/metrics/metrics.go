// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// セッションストアやデータ取得層から利用する。
type MetricsCollector interface {
	RecordAuthEvent(eventType string)
	RecordSessionResolution(outcome string)
	RecordDataFetchSuccess(table string)
	RecordDataFetchFailure(table string)
	RecordDataFetchStatus(statusCode int)
	RecordDataFetchLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authEvents        *prometheus.CounterVec
	sessionResolution *prometheus.CounterVec
	dataFetchSuccess  *prometheus.CounterVec
	dataFetchFail     *prometheus.CounterVec
	dataFetchStatus   *prometheus.CounterVec
	dataFetchLatency  prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pathway_auth_events_total",
			Help: "認証イベントの種別ごとの合計数",
		}, []string{"event_type"}),
		sessionResolution: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pathway_session_resolutions_total",
			Help: "セッション解決の結果ごとの合計数",
		}, []string{"outcome"}),
		dataFetchSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pathway_data_fetch_success_total",
			Help: "テーブルデータ取得成功の合計数",
		}, []string{"table"}),
		dataFetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pathway_data_fetch_fail_total",
			Help: "テーブルデータ取得失敗の合計数",
		}, []string{"table"}),
		dataFetchStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pathway_data_fetch_status_total",
			Help: "外部データAPIのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		dataFetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pathway_data_fetch_latency_seconds",
			Help:    "テーブルデータ取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.authEvents,
		c.sessionResolution,
		c.dataFetchSuccess,
		c.dataFetchFail,
		c.dataFetchStatus,
		c.dataFetchLatency,
	)

	return c
}

// RecordAuthEvent は認証イベントを記録する。
func (c *Collector) RecordAuthEvent(eventType string) {
	c.authEvents.WithLabelValues(eventType).Inc()
}

// RecordSessionResolution はセッション解決の結果を記録する。
// outcomeは"success"または"partial"（プロフィールか購読の解決に失敗）。
func (c *Collector) RecordSessionResolution(outcome string) {
	c.sessionResolution.WithLabelValues(outcome).Inc()
}

// RecordDataFetchSuccess はテーブルデータ取得成功を記録する。
func (c *Collector) RecordDataFetchSuccess(table string) {
	c.dataFetchSuccess.WithLabelValues(table).Inc()
}

// RecordDataFetchFailure はテーブルデータ取得失敗を記録する。
func (c *Collector) RecordDataFetchFailure(table string) {
	c.dataFetchFail.WithLabelValues(table).Inc()
}

// RecordDataFetchStatus は外部データAPIのHTTPステータスコードを記録する。
func (c *Collector) RecordDataFetchStatus(statusCode int) {
	c.dataFetchStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordDataFetchLatency はテーブルデータ取得のレイテンシを記録する。
func (c *Collector) RecordDataFetchLatency(duration time.Duration) {
	c.dataFetchLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
