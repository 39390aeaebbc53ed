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
// BFFルート、認証ハンドラー、ルートガードから利用する。
type MetricsCollector interface {
	RecordUpstream(resource string, statusCode int, duration time.Duration)
	RecordSignIn(result string)
	RecordGuardDecision(decision string)
}

// サインイン結果のラベル値
const (
	SignInSuccess       = "success"
	SignInAccessDenied  = "access_denied"
	SignInFailed        = "failed"
	SignInStateMismatch = "state_mismatch"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	signIns          *prometheus.CounterVec
	guardDecisions   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lunchmap_upstream_requests_total",
			Help: "バックエンドAPI呼び出しのリソース・ステータスコード別の合計数",
		}, []string{"resource", "status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lunchmap_upstream_latency_seconds",
			Help:    "バックエンドAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"resource"}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lunchmap_signin_total",
			Help: "サインイン試行の結果別の合計数",
		}, []string{"result"}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lunchmap_guard_decisions_total",
			Help: "ルートガードの判定結果別の合計数",
		}, []string{"decision"}),
	}

	reg.MustRegister(
		c.upstreamRequests,
		c.upstreamLatency,
		c.signIns,
		c.guardDecisions,
	)

	return c
}

// RecordUpstream はバックエンドAPI呼び出しの結果とレイテンシを記録する。
// トランスポート障害はstatusCode=0ではなく500として記録される。
func (c *Collector) RecordUpstream(resource string, statusCode int, duration time.Duration) {
	c.upstreamRequests.WithLabelValues(resource, strconv.Itoa(statusCode)).Inc()
	c.upstreamLatency.WithLabelValues(resource).Observe(duration.Seconds())
}

// RecordSignIn はサインイン試行の結果を記録する。
func (c *Collector) RecordSignIn(result string) {
	c.signIns.WithLabelValues(result).Inc()
}

// RecordGuardDecision はルートガードの判定を記録する。
func (c *Collector) RecordGuardDecision(decision string) {
	c.guardDecisions.WithLabelValues(decision).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。メトリクス未設定時に使用する。
type Nop struct{}

func (Nop) RecordUpstream(string, int, time.Duration) {}
func (Nop) RecordSignIn(string)                       {}
func (Nop) RecordGuardDecision(string)                {}

// compile-time interface checks
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
