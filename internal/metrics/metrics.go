package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Queue metrics
var (
	JobsEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidqueue_jobs_enqueued_total",
			Help: "Total number of transcode jobs accepted by the queue",
		},
	)

	JobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidqueue_jobs_finished_total",
			Help: "Total number of transcode jobs that reached a terminal status",
		},
		[]string{"status"}, // "completed", "failed"
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidqueue_queue_depth",
			Help: "Number of jobs waiting behind the active job",
		},
	)

	JobActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidqueue_job_active",
			Help: "1 while a transcode job is executing",
		},
	)

	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vidqueue_job_duration_seconds",
			Help:    "Wall time from dequeue to terminal status",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 2400, 3600},
		},
	)
)

// Pipeline metrics
var (
	TierEncodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidqueue_tier_encode_duration_seconds",
			Help:    "Encode time per rendition tier",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"tier"},
	)

	ArtifactUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidqueue_artifact_uploads_total",
			Help: "Artifact handoffs to the store",
		},
		[]string{"kind", "result"}, // kind: "thumbnail", "rendition"; result: "ok", "error"
	)
)

// Registry metrics
var (
	RegistrySnapshots = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidqueue_registry_snapshots",
			Help: "Progress snapshots currently held in memory",
		},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidqueue_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidqueue_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Result labels for ArtifactUploadsTotal.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// ObserveUpload records one artifact handoff.
func ObserveUpload(kind string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	ArtifactUploadsTotal.WithLabelValues(kind, result).Inc()
}
