package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MeKo-Tech/kvmap/internal/align"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvmap_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kvmap_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Alignment metrics
	alignmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvmap_alignments_total",
			Help: "Total number of document alignments",
		},
		[]string{"source", "status"}, // source: http, websocket, batch
	)

	alignmentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kvmap_alignment_duration_seconds",
			Help:    "Alignment duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"source"},
	)

	keyMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvmap_key_matches_total",
			Help: "Keys anchored per stage",
		},
		[]string{"stage"}, // stage: text, iou, value, unmatched; refine counts value matches nudged afterwards
	)

	etcLabelsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvmap_etc_labels_total",
			Help: "Free-standing labels matched or dropped",
		},
		[]string{"result"},
	)

	ocrWordsIndexed = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kvmap_ocr_words",
			Help:    "Number of OCR words per document",
			Buckets: []float64{0, 10, 50, 100, 250, 500, 1000, 2500},
		},
		[]string{"source"}, // source: fine, coarse
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvmap_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kvmap_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvmap_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

// recordAlignment records the outcome of one alignment.
func recordAlignment(source string, stats *align.Stats, err error, duration time.Duration) {
	if err != nil {
		alignmentsTotal.WithLabelValues(source, "error").Inc()
		return
	}
	alignmentsTotal.WithLabelValues(source, "success").Inc()
	alignmentDuration.WithLabelValues(source).Observe(duration.Seconds())
	if stats == nil {
		return
	}

	keyMatchesTotal.WithLabelValues("text").Add(float64(stats.Stage1Text))
	keyMatchesTotal.WithLabelValues("iou").Add(float64(stats.Stage1IoU))
	keyMatchesTotal.WithLabelValues("value").Add(float64(stats.Stage2))
	keyMatchesTotal.WithLabelValues("refine").Add(float64(stats.Stage3))
	unmatched := stats.Keys - stats.Stage1Text - stats.Stage1IoU - stats.Stage2
	if unmatched > 0 {
		keyMatchesTotal.WithLabelValues("unmatched").Add(float64(unmatched))
	}
	etcLabelsTotal.WithLabelValues("matched").Add(float64(stats.EtcMatched))
	etcLabelsTotal.WithLabelValues("dropped").Add(float64(stats.EtcDropped))
	ocrWordsIndexed.WithLabelValues("fine").Observe(float64(stats.FineWords))
	ocrWordsIndexed.WithLabelValues("coarse").Observe(float64(stats.CoarseWords))
}
