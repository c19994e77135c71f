// Package prometheus provides Prometheus metrics for media resolution, blob
// handles, voice sessions and the HTTP API.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "studio"

var (
	// mediaResolutionsTotal is a counter of resolutions by kind and outcome.
	mediaResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_resolutions_total",
			Help:      "Total number of media payload resolutions",
		},
		[]string{"kind", "outcome"}, // outcome: empty, passthrough, inline, synthesized, materialized, decode_failure
	)

	// mediaInputLength is a histogram of plain-string payload lengths.
	mediaInputLength = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "media_input_length_chars",
			Help:      "Length of plain-string media payloads in characters",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8), // 64 .. ~1M
		},
		[]string{"kind"},
	)

	// blobHandlesLive is a gauge of handles created and not yet revoked.
	blobHandlesLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "blob_handles_live",
			Help:      "Number of live blob handles",
		},
	)

	// blobBytesLive is a gauge of bytes held by live handles.
	blobBytesLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "blob_bytes_live",
			Help:      "Bytes held by live blob handles",
		},
	)

	// blobEventsTotal is a counter of handle lifecycle events.
	blobEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_events_total",
			Help:      "Total number of blob handle lifecycle events",
		},
		[]string{"event"}, // event: created, retained, released, revoked
	)

	// voiceSessionsTotal is a counter of finished voice sessions.
	voiceSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_sessions_total",
			Help:      "Total number of finished voice sessions",
		},
		[]string{"direction", "outcome"},
	)

	// httpRequestDuration is a histogram of API request durations.
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP API requests in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"route", "method"},
	)

	// httpRequestsTotal is a counter of API requests.
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP API requests",
		},
		[]string{"route", "method", "code"},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		mediaResolutionsTotal,
		mediaInputLength,
		blobHandlesLive,
		blobBytesLive,
		blobEventsTotal,
		voiceSessionsTotal,
		httpRequestDuration,
		httpRequestsTotal,
	}
)

// RecordResolution records one media resolution.
func RecordResolution(kind, outcome string, inputLen int) {
	mediaResolutionsTotal.WithLabelValues(kind, outcome).Inc()
	if inputLen > 0 {
		mediaInputLength.WithLabelValues(kind).Observe(float64(inputLen))
	}
}

// RecordBlobCreated records a new handle of size bytes.
func RecordBlobCreated(size int) {
	blobEventsTotal.WithLabelValues("created").Inc()
	blobHandlesLive.Inc()
	blobBytesLive.Add(float64(size))
}

// RecordBlobRevoked records a handle whose last holder released it.
func RecordBlobRevoked(size int) {
	blobEventsTotal.WithLabelValues("revoked").Inc()
	blobHandlesLive.Dec()
	blobBytesLive.Sub(float64(size))
}

// RecordBlobEvent records a lifecycle event that does not change the live set.
func RecordBlobEvent(event string) {
	blobEventsTotal.WithLabelValues(event).Inc()
}

// RecordVoiceSession records a finished voice session.
func RecordVoiceSession(direction, outcome string) {
	voiceSessionsTotal.WithLabelValues(direction, outcome).Inc()
}

// RecordHTTPRequest records an API request.
func RecordHTTPRequest(route, method, code string, durationSeconds float64) {
	httpRequestDuration.WithLabelValues(route, method).Observe(durationSeconds)
	httpRequestsTotal.WithLabelValues(route, method, code).Inc()
}
