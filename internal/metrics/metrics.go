// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス記録のインターフェース。
// スキャナー、取り込み処理、モデレーション処理から利用する。
type Recorder interface {
	RecordFetchSuccess(feedURL string)
	RecordFetchFailure(feedURL string, code string)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordPostsIngested(inserted, updated int)
	RecordRandomID()
	RecordModeration(action string, ok bool)
	RecordScanCycle(duration time.Duration)
	RecordCacheLookup(hit bool)
}

// Collector はPrometheusメトリクスを収集するRecorderの実装。
type Collector struct {
	fetchSuccess  prometheus.Counter
	fetchFail     *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
	fetchLatency  prometheus.Histogram
	postsIngested *prometheus.CounterVec
	randomIDs     prometheus.Counter
	moderation    *prometheus.CounterVec
	scanDuration  prometheus.Histogram
	cacheLookups  *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedpress_fetch_success_total",
			Help: "フィード取得成功の合計数",
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedpress_fetch_fail_total",
			Help: "フィード取得失敗の合計数（エラーコード別）",
		}, []string{"code"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedpress_http_status_total",
			Help: "フィード取得時の異常HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "feedpress_fetch_latency_seconds",
			Help:    "フィード取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		postsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedpress_posts_ingested_total",
			Help: "取り込まれた記事の合計数（inserted/updated別）",
		}, []string{"result"}),
		randomIDs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedpress_posts_random_id_total",
			Help: "guidとlinkを持たないためランダムIDを割り当てた記事の数",
		}),
		moderation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedpress_moderation_actions_total",
			Help: "モデレーション操作の合計数（操作・結果別）",
		}, []string{"action", "outcome"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "feedpress_scan_cycle_seconds",
			Help:    "スキャン1サイクルの所要時間（秒）",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedpress_cache_lookups_total",
			Help: "公開一覧キャッシュの参照数（hit/miss別）",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.httpStatus,
		c.fetchLatency,
		c.postsIngested,
		c.randomIDs,
		c.moderation,
		c.scanDuration,
		c.cacheLookups,
	)

	return c
}

// RecordFetchSuccess はフィード取得成功を記録する。
// フィードURLはカーディナリティを抑えるためラベルにしない。
func (c *Collector) RecordFetchSuccess(feedURL string) {
	c.fetchSuccess.Inc()
}

// RecordFetchFailure はフィード取得失敗をエラーコード別に記録する。
func (c *Collector) RecordFetchFailure(feedURL string, code string) {
	c.fetchFail.WithLabelValues(code).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency はフィード取得のレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordPostsIngested は新規挿入・更新された記事数を記録する。
func (c *Collector) RecordPostsIngested(inserted, updated int) {
	c.postsIngested.WithLabelValues("inserted").Add(float64(inserted))
	c.postsIngested.WithLabelValues("updated").Add(float64(updated))
}

// RecordRandomID はランダムIDを割り当てた記事を記録する。
func (c *Collector) RecordRandomID() {
	c.randomIDs.Inc()
}

// RecordModeration はモデレーション操作の結果を記録する。
func (c *Collector) RecordModeration(action string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	c.moderation.WithLabelValues(action, outcome).Inc()
}

// RecordScanCycle はスキャン1サイクルの所要時間を記録する。
func (c *Collector) RecordScanCycle(duration time.Duration) {
	c.scanDuration.Observe(duration.Seconds())
}

// RecordCacheLookup は公開一覧キャッシュのヒット/ミスを記録する。
func (c *Collector) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// Nop は何も記録しないRecorder。
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordFetchSuccess(string) {}
func (Nop) RecordFetchFailure(string, string) {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordFetchLatency(time.Duration) {}
func (Nop) RecordPostsIngested(int, int) {}
func (Nop) RecordRandomID() {}
func (Nop) RecordModeration(string, bool) {}
func (Nop) RecordScanCycle(time.Duration) {}
func (Nop) RecordCacheLookup(bool) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
