package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OCR Prometheus metrics.
var (
	OCRAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docintake",
			Name:      "ocr_attempts_total",
			Help:      "OCR engine attempts by provider, role and outcome",
		},
		[]string{"provider", "role", "outcome"}, // outcome: "success" / "low_confidence" / "error" / "timeout"
	)

	OCRAttemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docintake",
			Name:      "ocr_attempt_duration_seconds",
			Help:      "OCR attempt duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "role"},
	)

	OCRFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docintake",
			Name:      "ocr_fallbacks_total",
			Help:      "Fallback engine invocations by trigger",
		},
		[]string{"reason"}, // "primary_failed" / "below_threshold"
	)
)

// Pipeline Prometheus metrics.
var (
	DocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docintake",
			Name:      "documents_total",
			Help:      "Documents processed by outcome and classified type",
		},
		[]string{"outcome", "document_type"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docintake",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docintake",
			Name:      "queue_depth",
			Help:      "Jobs waiting in the processing queue",
		},
	)
)

// Transport Prometheus metrics.
var (
	GRPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docintake",
			Name:      "grpc_requests_total",
			Help:      "Total number of gRPC requests",
		},
		[]string{"method", "code"},
	)

	GRPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docintake",
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docintake",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

var registerOnce sync.Once

// Register registers every collector with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			OCRAttemptsTotal,
			OCRAttemptDuration,
			OCRFallbacksTotal,
			DocumentsTotal,
			StageDuration,
			QueueDepth,
			GRPCRequestsTotal,
			GRPCRequestDuration,
			HTTPRequestsTotal,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
