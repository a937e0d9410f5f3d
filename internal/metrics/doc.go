// Package metrics provides Prometheus instrumentation for mediadrop.
//
// All metrics are registered with the default registry through promauto and
// are prefixed with "mediadrop_".
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Blossom Server Metrics
//
//   - ServerAttemptsTotal: Counter of attempts by server host and result
//   - ServerAttemptDuration: Histogram of attempt duration by server host
//   - IntegrityRejectionsTotal: Counter of 2xx responses whose reported hash
//     did not match the local digest
//
// ## Upload Metrics
//
//   - UploadsTotal: Counter by route (blossom/fallback) and result
//   - UploadBytesTotal: Counter of bytes published by route
//   - UploadFailuresTotal: Counter of terminal failures by category
//   - UploadsInProgress: Gauge of running uploads
//
// ## Transcoder Metrics
//
//   - TranscoderJobsTotal: Counter of tier attempts by tier and status
//   - TranscoderJobDuration: Histogram of tier attempt duration
//   - TranscoderCompressionRatio: Histogram of the fraction of bytes saved
//   - TranscoderJobsInProgress: Gauge of active transcodes
//
// ## History Metrics
//
//   - DBQueryTotal, DBQueryDuration: per-operation query accounting
//   - HistoryUploadsTotal, HistoryBytesTotal: gauges refreshed by [Collector]
//
// # Observers
//
// The blossom and transcoder packages do not import this package. They accept
// small observer interfaces instead, and [NewServerObserver] and
// [NewTranscoderObserver] return implementations backed by the metrics here.
//
// # Prometheus Queries
//
// Server failover rate:
//
//	sum(rate(mediadrop_server_attempts_total{result!="ok"}[5m])) by (server)
//
// Integrity rejections:
//
//	increase(mediadrop_integrity_rejections_total[1h])
//
// Tier fallthrough:
//
//	sum(rate(mediadrop_transcoder_attempts_total{status="error"}[1h])) by (tier)
package metrics
