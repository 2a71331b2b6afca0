package server

import (
	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barscan_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "barscan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Decode metrics
	decodeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barscan_decode_requests_total",
			Help: "Total number of decode requests",
		},
		[]string{"type", "status"}, // type: image, pdf, batch, websocket
	)

	decodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "barscan_decode_duration_seconds",
			Help:    "Decode duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"type"},
	)

	decodeOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barscan_decode_outcomes_total",
			Help: "Decode outcomes by reading path",
		},
		[]string{"type", "outcome"}, // outcome: bar, glyphs_only, mismatch, none
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barscan_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, hour, requests, data
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "barscan_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "barscan_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barscan_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

// outcome classifies a result for the outcomes counter.
func outcome(res *pipeline.Result) string {
	switch {
	case res == nil:
		return "none"
	case res.Mismatch:
		return "mismatch"
	case res.BarNumber != nil:
		return "bar"
	case res.GlyphNumber != nil:
		return "glyphs_only"
	default:
		return "none"
	}
}

func recordOutcome(kind string, res *pipeline.Result) {
	decodeOutcomes.WithLabelValues(kind, outcome(res)).Inc()
}
