package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	protocolRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xpbridge",
			Subsystem: "protocol",
			Name:      "requests_total",
			Help:      "Total bridge protocol requests.",
		},
		[]string{"listener", "method", "route", "status"},
	)
	protocolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "xpbridge",
			Subsystem: "protocol",
			Name:      "request_duration_seconds",
			Help:      "Bridge protocol request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"listener", "method", "route", "status"},
	)
	frameEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xpbridge",
			Subsystem: "frames",
			Name:      "events_total",
			Help:      "Frame pipeline events by outcome.",
		},
		[]string{"outcome"},
	)
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "xpbridge",
			Subsystem: "frames",
			Name:      "stage_duration_seconds",
			Help:      "Frame pipeline stage duration in seconds.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
		[]string{"stage"},
	)
	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "xpbridge",
			Subsystem: "frames",
			Name:      "queue_depth",
			Help:      "Pending payloads per decode strategy.",
		},
		[]string{"strategy"},
	)
	receivedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "xpbridge",
			Subsystem: "frames",
			Name:      "received_bytes_total",
			Help:      "Encoded image bytes delivered to the renderer.",
		},
	)
)

// Frame pipeline outcomes used as the "outcome" label.
const (
	FrameQueued        = "queued"
	FrameDequeued      = "dequeued"
	FrameApplied       = "applied"
	FrameDropped       = "dropped"
	FrameDecodeFailure = "decode_failure"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(protocolRequests, protocolDuration, frameEvents, stageDuration, queueDepth, receivedBytes)
	})
}

func RecordHTTPRequest(listener, method, route string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	protocolRequests.WithLabelValues(listener, method, route, statusLabel).Inc()
	protocolDuration.WithLabelValues(listener, method, route, statusLabel).Observe(duration.Seconds())
}

func RecordFrameEvent(outcome string, n int) {
	if n <= 0 {
		return
	}
	RegisterMetrics()
	frameEvents.WithLabelValues(outcome).Add(float64(n))
}

func ObserveStage(stage string, d time.Duration) {
	RegisterMetrics()
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func SetQueueDepth(strategy string, depth int) {
	RegisterMetrics()
	queueDepth.WithLabelValues(strategy).Set(float64(depth))
}

func AddReceivedBytes(n int) {
	if n <= 0 {
		return
	}
	RegisterMetrics()
	receivedBytes.Add(float64(n))
}
