// Package metrics provides Prometheus metrics for the proxy.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets for request latency. Media fetches run longer
// than typical API calls, so the tail extends to 60 seconds.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}

// Metrics holds all Prometheus metric collectors for the proxy.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	UpstreamDuration  *prometheus.HistogramVec
	UpstreamResponses *prometheus.CounterVec

	ProxiedContent *prometheus.CounterVec
	BytesStreamed  prometheus.Counter
	BlockedTargets *prometheus.CounterVec

	ImageCacheHits   prometheus.Counter
	ImageCacheMisses prometheus.Counter
}

// New creates a Metrics instance with a custom registry and all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flixnest_proxy_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code", "path_prefix"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flixnest_proxy_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "path_prefix"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flixnest_proxy_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flixnest_proxy_upstream_request_duration_seconds",
			Help:    "Upstream fetch latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method"}),

		UpstreamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flixnest_proxy_upstream_responses_total",
			Help: "Total upstream responses by method and status code.",
		}, []string{"method", "status_code"}),

		ProxiedContent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flixnest_proxy_proxied_content_total",
			Help: "Proxied responses by content class (json, playlist, text, binary).",
		}, []string{"class"}),

		BytesStreamed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flixnest_proxy_streamed_bytes_total",
			Help: "Total response body bytes streamed to players.",
		}),

		BlockedTargets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flixnest_proxy_blocked_targets_total",
			Help: "Proxy requests refused by target validation, by reason.",
		}, []string{"reason"}),

		ImageCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flixnest_proxy_image_cache_hits_total",
			Help: "Image proxy responses served from cache.",
		}),

		ImageCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flixnest_proxy_image_cache_misses_total",
			Help: "Image proxy responses that required an upstream fetch.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.UpstreamDuration,
		m.UpstreamResponses,
		m.ProxiedContent,
		m.BytesStreamed,
		m.BlockedTargets,
		m.ImageCacheHits,
		m.ImageCacheMisses,
	)

	return m
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// knownPrefixes lists the allowed path label values (bounded cardinality).
var knownPrefixes = []string{"/proxy", "/image-proxy", "/vlc-playlist", "/hls-probe", "/healthz", "/status", "/metrics"}

// NormalizePath returns a bounded path label for Prometheus metrics.
func NormalizePath(path string) string {
	for _, prefix := range knownPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") || strings.HasPrefix(path, prefix+"?") {
			return prefix
		}
	}
	return "other"
}
