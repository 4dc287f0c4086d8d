package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoder_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transcoder_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Job Metrics
	JobsSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcoder_jobs_submitted_total",
			Help: "Total number of jobs submitted to the transcoding service",
		},
	)

	JobsCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcoder_jobs_completed_total",
			Help: "Total number of jobs that completed",
		},
	)

	JobsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoder_jobs_failed_total",
			Help: "Total number of jobs that failed",
		},
		[]string{"error_code"},
	)

	JobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transcoder_jobs_in_progress",
			Help: "Number of jobs currently being tracked",
		},
	)

	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transcoder_job_duration_seconds",
			Help:    "Time from job submission to terminal status in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		},
	)

	// Output Metrics
	OutputsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoder_outputs_completed_total",
			Help: "Total number of outputs that reached a terminal status",
		},
		[]string{"type", "status"},
	)

	// Webhook Metrics
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoder_webhook_events_total",
			Help: "Total number of webhook notifications received",
		},
		[]string{"event"},
	)

	WebhookStaleTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcoder_webhook_stale_total",
			Help: "Total number of webhook notifications ignored as stale",
		},
	)

	// Poll Metrics
	PollCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoder_poll_cycles_total",
			Help: "Total number of remote status checks by the run loop",
		},
		[]string{"status"},
	)

	// Upload Metrics
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoder_uploads_total",
			Help: "Total number of source media uploads",
		},
		[]string{"status"},
	)

	UploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transcoder_upload_size_bytes",
			Help:    "Size of uploaded source media in bytes",
			Buckets: prometheus.ExponentialBuckets(1024*1024, 2, 15), // 1MB to 16GB
		},
	)

	// Queue Metrics
	QueueMessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcoder_queue_messages_published_total",
			Help: "Total number of messages published to the submission queue",
		},
	)

	QueueMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoder_queue_messages_consumed_total",
			Help: "Total number of messages consumed from the submission queue",
		},
		[]string{"status"},
	)
)
