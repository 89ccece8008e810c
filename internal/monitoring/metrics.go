package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP请求指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiro_console_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_class"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiro_console_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "path", "status_class"},
	)

	// HTTP 并发请求数
	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiro_console_http_inflight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// 上游 provider-pool API 调用指标
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiro_console_upstream_requests_total",
			Help: "Total number of provider-pool API requests",
		},
		[]string{"operation", "status_class"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiro_console_upstream_request_duration_seconds",
			Help:    "Provider-pool API latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation"},
	)

	UpstreamRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiro_console_upstream_retry_attempts_total",
			Help: "Total number of provider-pool API retry attempts",
		},
		[]string{"operation"},
	)

	// 凭证操作指标
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiro_console_actions_total",
			Help: "Total number of per-credential actions by outcome",
		},
		[]string{"action", "status"}, // status: ok/error/busy/rejected
	)

	PanelFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiro_console_panel_fetches_total",
			Help: "Total number of detail panel fetches",
		},
		[]string{"panel", "status"},
	)

	BatchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiro_console_batch_items_total",
			Help: "Total number of credentials processed by batch runs",
		},
		[]string{"batch", "result"},
	)

	// 凭证列表指标
	CredentialsListed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kiro_console_credentials",
			Help: "Number of credentials in the last loaded list",
		},
		[]string{"state"}, // state: healthy/unhealthy/disabled
	)

	NotificationStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiro_console_notification_streams",
			Help: "Number of connected notification websocket clients",
		},
	)

	ConfigReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiro_console_config_reloads_total",
			Help: "Total number of config file reload attempts",
		},
		[]string{"result"},
	)
)

// StatusClass buckets an HTTP status code as 2xx/3xx/4xx/5xx.
func StatusClass(code int) string {
	switch {
	case code <= 0:
		return "error"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
