package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// セレクターのプラン列挙時間
	SelectorDuration prometheus.Histogram

	// セレクターが生成したプラン数（kind: single, combination）
	SelectorPlansGenerated *prometheus.CounterVec

	// セレクターの探索打ち切り回数（cause: limit, timeout, bucket）
	SelectorSearchStops *prometheus.CounterVec

	// ホールドのライフサイクル（operation: create, extend, release, confirm, sweep / status: success, conflict, rate_limited, error)
	HoldOperationsTotal *prometheus.CounterVec

	// コミットの結果（status: success, conflict, validation, error, shadow）
	CommitsTotal *prometheus.CounterVec

	// アクティブなホールド数
	ActiveHolds prometheus.Gauge
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		SelectorDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "selector_planning_duration_seconds",
				Help:    "Time spent enumerating and scoring table plans",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
		),
		SelectorPlansGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "selector_plans_generated_total",
				Help: "Total number of candidate plans generated",
			},
			[]string{"kind"},
		),
		SelectorSearchStops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "selector_search_stops_total",
				Help: "Total number of early search terminations",
			},
			[]string{"cause"},
		),
		HoldOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "table_hold_operations_total",
				Help: "Total number of table hold operations",
			},
			[]string{"operation", "status"},
		),
		CommitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assignment_commits_total",
				Help: "Total number of assignment commit attempts",
			},
			[]string{"status"},
		),
		ActiveHolds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_table_holds",
				Help: "Current number of active table holds",
			},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SelectorDuration,
		m.SelectorPlansGenerated,
		m.SelectorSearchStops,
		m.HoldOperationsTotal,
		m.CommitsTotal,
		m.ActiveHolds,
	)

	return m
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
