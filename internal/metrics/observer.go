package metrics

import (
	"mediadrop/internal/blossom"
	"mediadrop/internal/filesystem"
	"mediadrop/internal/transcoder"
)

// serverObserver implements blossom.Observer using the Prometheus
// metrics declared in this package.
type serverObserver struct{}

// NewServerObserver creates an observer that records per-server upload
// attempts into the counters and histograms declared in metrics.go.
func NewServerObserver() blossom.Observer {
	return &serverObserver{}
}

func (o *serverObserver) ObserveAttempt(host, reason string, durationSeconds float64) {
	ServerAttemptsTotal.WithLabelValues(host, reason).Inc()
	ServerAttemptDuration.WithLabelValues(host).Observe(durationSeconds)
	if reason == blossom.ReasonHashMismatch {
		IntegrityRejectionsTotal.WithLabelValues(host).Inc()
	}
}

// transcoderObserver implements transcoder.Observer.
type transcoderObserver struct{}

// NewTranscoderObserver creates an observer that records tier attempts and
// compression results.
func NewTranscoderObserver() transcoder.Observer {
	return &transcoderObserver{}
}

func (o *transcoderObserver) ObserveStart() {
	TranscoderJobsInProgress.Inc()
}

func (o *transcoderObserver) ObserveDone() {
	TranscoderJobsInProgress.Dec()
}

func (o *transcoderObserver) ObserveTier(tier string, durationSeconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	TranscoderJobsTotal.WithLabelValues(tier, status).Inc()
	TranscoderJobDuration.WithLabelValues(tier).Observe(durationSeconds)
}

func (o *transcoderObserver) ObserveCompression(originalBytes, finalBytes int64) {
	if originalBytes <= 0 {
		return
	}
	saved := 1 - float64(finalBytes)/float64(originalBytes)
	if saved < 0 {
		saved = 0
	}
	TranscoderCompressionRatio.Observe(saved)
}

// filesystemObserver implements filesystem.Observer.
type filesystemObserver struct{}

// NewFilesystemObserver creates an observer for NFS retry activity.
func NewFilesystemObserver() filesystem.Observer {
	return &filesystemObserver{}
}

func (o *filesystemObserver) ObserveRetryAttempt(op string) {
	FilesystemRetryAttempts.WithLabelValues(op).Inc()
}

func (o *filesystemObserver) ObserveRetrySuccess(op string) {
	FilesystemRetrySuccess.WithLabelValues(op).Inc()
}

func (o *filesystemObserver) ObserveRetryFailure(op string) {
	FilesystemRetryFailures.WithLabelValues(op).Inc()
}

func (o *filesystemObserver) ObserveStaleError(op string) {
	FilesystemStaleErrors.WithLabelValues(op).Inc()
}

func (o *filesystemObserver) ObserveRetryDuration(op string, durationSeconds float64) {
	FilesystemRetryDuration.WithLabelValues(op).Observe(durationSeconds)
}
