// Package metrics defines the Prometheus instrumentation for the transcript
// server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the transcript server
type Metrics struct {
	// Chunk ingestion metrics
	ChunksReceived  prometheus.Counter
	ChunksProcessed prometheus.Counter
	ChunksFailed    prometheus.Counter
	ChunksDuplicate prometheus.Counter
	ChunkDuration   prometheus.Histogram
	TranscriptLines prometheus.Histogram

	// Session lifecycle metrics
	SessionsCreated   prometheus.Counter
	SessionsCompleted prometheus.Counter
	VersionConflicts  prometheus.Counter

	// Collaborator metrics
	CollaboratorRequests *prometheus.CounterVec
	CollaboratorFailures *prometheus.CounterVec
	CollaboratorDuration *prometheus.HistogramVec
	DegradedMerges       *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registerer.
// Production passes prometheus.DefaultRegisterer; tests pass a fresh
// registry so parallel test packages do not collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ChunksReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcript_chunks_received_total",
			Help: "Total number of audio chunks received",
		}),
		ChunksProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcript_chunks_processed_total",
			Help: "Total number of audio chunks consolidated into a session",
		}),
		ChunksFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcript_chunks_failed_total",
			Help: "Total number of chunks that failed processing",
		}),
		ChunksDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcript_chunks_duplicate_total",
			Help: "Total number of chunk submissions skipped as already-applied retries",
		}),
		ChunkDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "transcript_chunk_processing_duration_seconds",
			Help:    "End-to-end duration of chunk consolidation",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		TranscriptLines: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "transcript_chunk_lines",
			Help:    "Transcript lines produced per chunk",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8), // 1 to 128
		}),

		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcript_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		SessionsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcript_sessions_completed_total",
			Help: "Total number of sessions finalized",
		}),
		VersionConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcript_session_version_conflicts_total",
			Help: "Total number of optimistic concurrency conflicts on session saves",
		}),

		CollaboratorRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "transcript_collaborator_requests_total",
			Help: "Total number of collaborator invocations (after retry wrapping)",
		}, []string{"collaborator"}),
		CollaboratorFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "transcript_collaborator_failures_total",
			Help: "Total number of collaborator invocations that exhausted their retry budget",
		}, []string{"collaborator"}),
		CollaboratorDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "transcript_collaborator_duration_seconds",
			Help:    "Duration of collaborator invocations including retries",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"collaborator"}),
		DegradedMerges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "transcript_degraded_merges_total",
			Help: "Total number of semantic merges that fell back to the deterministic path",
		}, []string{"kind"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "transcript_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "transcript_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "transcript_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordChunkProcessed records a successfully consolidated chunk
func (m *Metrics) RecordChunkProcessed(durationSeconds float64, lines int) {
	m.ChunksProcessed.Inc()
	m.ChunkDuration.Observe(durationSeconds)
	m.TranscriptLines.Observe(float64(lines))
}

// RecordCollaborator records one wrapped collaborator invocation
func (m *Metrics) RecordCollaborator(name string, durationSeconds float64, err error) {
	m.CollaboratorRequests.WithLabelValues(name).Inc()
	m.CollaboratorDuration.WithLabelValues(name).Observe(durationSeconds)
	if err != nil {
		m.CollaboratorFailures.WithLabelValues(name).Inc()
	}
}

// RecordDegradedMerge records a semantic merge that fell back deterministically
func (m *Metrics) RecordDegradedMerge(kind string) {
	m.DegradedMerges.WithLabelValues(kind).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
