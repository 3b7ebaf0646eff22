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
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordHTTPRequest(path string, statusCode int, duration time.Duration)
	RecordTokensDebited(count int64)
	RecordChatSaved()
	RecordPromptOp(op string)
	RecordIconCached()
	RecordIconFetchFailure()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	tokensDebited  prometheus.Counter
	chatsSaved     prometheus.Counter
	promptOps      *prometheus.CounterVec
	iconsCached    prometheus.Counter
	iconFetchFail  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptchat_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "promptchat_request_latency_seconds",
			Help:    "APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		tokensDebited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promptchat_tokens_debited_total",
			Help: "アシスタントメッセージで消費されたトークンの合計数",
		}),
		chatsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promptchat_chats_saved_total",
			Help: "保存されたチャット文書の合計数",
		}),
		promptOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptchat_prompt_ops_total",
			Help: "プロンプト操作（create/update/delete/upvote/unvote）の合計数",
		}, []string{"op"}),
		iconsCached: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promptchat_icons_cached_total",
			Help: "キャッシュされたプロンプトアイコンの合計数",
		}),
		iconFetchFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promptchat_icon_fetch_fail_total",
			Help: "プロンプトアイコン取得失敗の合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.tokensDebited,
		c.chatsSaved,
		c.promptOps,
		c.iconsCached,
		c.iconFetchFail,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストのステータスとレイテンシを記録する。
func (c *Collector) RecordHTTPRequest(path string, statusCode int, duration time.Duration) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.requestLatency.Observe(duration.Seconds())
}

// RecordTokensDebited は消費されたトークン数を記録する。
func (c *Collector) RecordTokensDebited(count int64) {
	c.tokensDebited.Add(float64(count))
}

// RecordChatSaved はチャット保存を記録する。
func (c *Collector) RecordChatSaved() {
	c.chatsSaved.Inc()
}

// RecordPromptOp はプロンプト操作を記録する。
func (c *Collector) RecordPromptOp(op string) {
	c.promptOps.WithLabelValues(op).Inc()
}

// RecordIconCached はアイコンキャッシュ成功を記録する。
func (c *Collector) RecordIconCached() {
	c.iconsCached.Inc()
}

// RecordIconFetchFailure はアイコン取得失敗を記録する。
func (c *Collector) RecordIconFetchFailure() {
	c.iconFetchFail.Inc()
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
