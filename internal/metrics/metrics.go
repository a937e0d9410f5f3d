package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadrop_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediadrop_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediadrop_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Blossom server metrics
var (
	ServerAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadrop_server_attempts_total",
			Help: "Total number of upload attempts against Blossom servers by result",
		},
		[]string{"server", "result"}, // result: ok, status, transport, malformed, hash-mismatch
	)

	ServerAttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediadrop_server_attempt_duration_seconds",
			Help:    "Duration of a single upload attempt against a Blossom server",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"server"},
	)

	IntegrityRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadrop_integrity_rejections_total",
			Help: "Successful server responses rejected because the reported hash did not match",
		},
		[]string{"server"},
	)
)

// Upload pipeline metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadrop_uploads_total",
			Help: "Total number of uploads by route and outcome",
		},
		[]string{"via", "result"}, // via: blossom, fallback
	)

	UploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadrop_upload_bytes_total",
			Help: "Total bytes successfully uploaded by route",
		},
		[]string{"via"},
	)

	UploadFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadrop_upload_failures_total",
			Help: "Terminal upload failures by user-facing category",
		},
		[]string{"category"},
	)

	UploadsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediadrop_uploads_in_progress",
			Help: "Number of uploads currently running",
		},
	)
)

// Transcoder metrics
var (
	TranscoderJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadrop_transcoder_attempts_total",
			Help: "Total number of transcoding tier attempts by tier and status",
		},
		[]string{"tier", "status"},
	)

	TranscoderJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediadrop_transcoder_attempt_duration_seconds",
			Help:    "Duration of a transcoding tier attempt",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"tier"},
	)

	TranscoderCompressionRatio = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mediadrop_transcoder_compression_ratio",
			Help:    "Fraction of bytes saved by transcoding (0 = no savings)",
			Buckets: []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9},
		},
	)

	TranscoderJobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediadrop_transcoder_jobs_in_progress",
			Help: "Number of transcodes currently running",
		},
	)
)

// Image metrics
var (
	ImageResizesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadrop_image_resizes_total",
			Help: "Total number of image downscales by engine and status",
		},
		[]string{"engine", "status"},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadrop_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediadrop_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	HistoryUploadsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mediadrop_history_uploads",
			Help: "Uploads recorded in the local history by route",
		},
		[]string{"via"},
	)

	HistoryBytesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediadrop_history_bytes",
			Help: "Sum of final payload sizes recorded in the local history",
		},
	)
)

// Memory admission metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediadrop_memory_usage_ratio",
			Help: "Heap usage as a ratio of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediadrop_memory_paused",
			Help: "1 while new uploads are refused for memory pressure",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediadrop_memory_pauses_total",
			Help: "Number of times upload admission was paused for memory pressure",
		},
	)

	UploadsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadrop_uploads_rejected_total",
			Help: "Uploads refused before processing by reason",
		},
		[]string{"reason"},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mediadrop_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadrop_filesystem_retry_attempts_total",
			Help: "Total number of filesystem retries after a stale file handle",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadrop_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retrying",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadrop_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadrop_filesystem_stale_errors_total",
			Help: "Total number of ESTALE errors seen",
		},
		[]string{"operation"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediadrop_filesystem_retry_duration_seconds",
			Help:    "Duration of filesystem operations including retries",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation"},
	)
)
