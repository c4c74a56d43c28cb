package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moneyocr_http_requests_total",
		Help: "HTTP requests by path, method and status code.",
	}, []string{"path", "method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "moneyocr_http_request_duration_seconds",
		Help:    "HTTP request latency by path.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})

	recognitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moneyocr_recognitions_total",
		Help: "Recognition attempts by outcome.",
	}, []string{"outcome"})

	recognitionConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "moneyocr_recognition_confidence",
		Help:    "Average confidence of successful recognitions.",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})
)

// observeRecognition records the outcome of one pipeline invocation.
func observeRecognition(outcome string, confidence float64) {
	recognitionsTotal.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		recognitionConfidence.Observe(confidence)
	}
}
